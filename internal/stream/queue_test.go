package stream

import (
	"testing"
	"time"
)

func TestCommandQueue_DrainPreservesEnqueueOrder(t *testing.T) {
	q := newCommandQueue(10)
	now := time.Now()

	q.push(Command{Action: "a"}, now)
	q.push(Command{Action: "b"}, now)
	q.push(Command{Action: "c"}, now)

	if q.len() != 3 {
		t.Fatalf("len = %d, want 3", q.len())
	}

	drained := q.drain()
	if len(drained) != 3 {
		t.Fatalf("drained %d entries, want 3", len(drained))
	}
	for i, want := range []string{"a", "b", "c"} {
		if drained[i].cmd.Action != want {
			t.Errorf("drained[%d] = %s, want %s", i, drained[i].cmd.Action, want)
		}
	}

	if q.len() != 0 {
		t.Errorf("len after drain = %d, want 0", q.len())
	}
	if q.drain() != nil {
		t.Error("drain of empty queue should return nil")
	}
}

func TestCommandQueue_OverflowDropsOldest(t *testing.T) {
	q := newCommandQueue(2)
	now := time.Now()

	if _, overflow := q.push(Command{Action: "a"}, now); overflow {
		t.Error("unexpected overflow on first push")
	}
	if _, overflow := q.push(Command{Action: "b"}, now); overflow {
		t.Error("unexpected overflow on second push")
	}

	dropped, overflow := q.push(Command{Action: "c"}, now)
	if !overflow {
		t.Fatal("expected overflow on third push")
	}
	if dropped.cmd.Action != "a" {
		t.Errorf("dropped = %s, want a (oldest)", dropped.cmd.Action)
	}
	if q.droppedCount() != 1 {
		t.Errorf("droppedCount = %d, want 1", q.droppedCount())
	}

	drained := q.drain()
	if len(drained) != 2 || drained[0].cmd.Action != "b" || drained[1].cmd.Action != "c" {
		t.Errorf("drained = %v, want [b c]", drained)
	}
}

func TestCommandQueue_MinimumLimit(t *testing.T) {
	q := newCommandQueue(0)
	now := time.Now()

	q.push(Command{Action: "a"}, now)
	dropped, overflow := q.push(Command{Action: "b"}, now)
	if !overflow || dropped.cmd.Action != "a" {
		t.Errorf("limit floor broken: overflow=%v dropped=%v", overflow, dropped.cmd.Action)
	}
}
