// Package api provides the REST client for the dashboard backend.
//
// Trading actions (POST, {success, message|error} envelope):
//   - /api/execute-trade
//   - /api/update-position
//   - /api/emergency-exit
//
// Per-channel snapshot reads (GET): /api/portfolio-status,
// /api/active-positions, /api/signal-feed, /api/whale-activity and the rest
// of the channel set via SnapshotPath.
package api
