// Package stream implements the real-time connection controller.
//
// The Controller:
//   - Maintains one WebSocket connection to the dashboard backend
//   - Reconnects with capped exponential backoff, Failed after max attempts
//   - Detects silently dead connections via JSON ping/pong heartbeats
//   - Replays the desired channel set on every reconnect
//   - Queues commands issued while offline (bounded, drop-oldest)
//   - Dispatches parsed inbound messages as named events to consumers
package stream
