// Package recorder persists channel updates to TimescaleDB.
//
// Dispatcher callbacks enqueue into a growable ring buffer so the stream
// never waits on the database. A consumer drains the buffer into batches
// and a pgx.Batch insert writes them with ON CONFLICT DO NOTHING; a flush
// ticker bounds latency for quiet channels and Stop performs a final flush.
package recorder
