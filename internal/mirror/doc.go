// Package mirror keeps a client-side copy of the dashboard state: the
// latest snapshot per channel, the latest broadcast per kind, and a bounded
// ring of recent alerts. It is fed by stream events or by the REST poller
// and read by whatever renders or records the state.
package mirror
