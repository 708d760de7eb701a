package stream

import "time"

// commandQueue buffers commands issued while the connection is not open.
// Bounded: pushing onto a full queue drops the oldest entry. Not safe for
// concurrent use; the Controller's mutex guards it.
type commandQueue struct {
	limit   int
	entries []queuedCommand
	dropped int64
}

func newCommandQueue(limit int) *commandQueue {
	if limit < 1 {
		limit = 1
	}
	return &commandQueue{limit: limit}
}

// push enqueues a command. If the queue was full, the dropped oldest entry
// is returned with overflow=true.
func (q *commandQueue) push(cmd Command, now time.Time) (dropped queuedCommand, overflow bool) {
	if len(q.entries) >= q.limit {
		dropped = q.entries[0]
		q.entries = q.entries[1:]
		q.dropped++
		overflow = true
	}
	q.entries = append(q.entries, queuedCommand{cmd: cmd, enqueuedAt: now})
	return dropped, overflow
}

// drain returns all queued commands in enqueue order and empties the queue.
func (q *commandQueue) drain() []queuedCommand {
	out := q.entries
	q.entries = nil
	return out
}

func (q *commandQueue) len() int {
	return len(q.entries)
}

func (q *commandQueue) droppedCount() int64 {
	return q.dropped
}
