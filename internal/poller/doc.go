// Package poller implements the REST fallback poller.
//
// The poller:
//   - Fetches per-channel snapshots while the stream is not open
//   - Feeds results into the mirror with source="poller"
//   - Backs off per channel on errors, capped at a configured ceiling
//   - Resets a channel's interval on the first successful fetch
package poller
