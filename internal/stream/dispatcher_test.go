package stream

import (
	"testing"
)

func TestDispatcher_InvokesInRegistrationOrder(t *testing.T) {
	d := NewDispatcher(testLogger())

	var order []int
	d.On("update", func(Event) { order = append(order, 1) })
	d.On("update", func(Event) { order = append(order, 2) })
	d.On("update", func(Event) { order = append(order, 3) })

	d.Emit("update", nil)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("invocation order = %v, want [1 2 3]", order)
	}
}

func TestDispatcher_OffRemovesOnlyTargetHandler(t *testing.T) {
	d := NewDispatcher(testLogger())

	var got []string
	d.On("update", func(Event) { got = append(got, "a") })
	id := d.On("update", func(Event) { got = append(got, "b") })
	d.On("update", func(Event) { got = append(got, "c") })

	if !d.Off("update", id) {
		t.Fatal("Off returned false for a live registration")
	}
	if d.Off("update", id) {
		t.Error("Off returned true for an already-removed registration")
	}

	d.Emit("update", nil)
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("handlers after Off = %v, want [a c]", got)
	}
}

func TestDispatcher_DuplicateRegistrationRunsTwice(t *testing.T) {
	d := NewDispatcher(testLogger())

	calls := 0
	fn := func(Event) { calls++ }
	d.On("update", fn)
	d.On("update", fn)

	d.Emit("update", nil)
	if calls != 2 {
		t.Errorf("duplicate registration invoked %d times, want 2", calls)
	}
}

func TestDispatcher_PanickingHandlerDoesNotAbortDispatch(t *testing.T) {
	d := NewDispatcher(testLogger())

	var reached bool
	d.On("update", func(Event) { panic("handler bug") })
	d.On("update", func(Event) { reached = true })

	d.Emit("update", nil)
	if !reached {
		t.Error("handler after the panicking one was not invoked")
	}
}

func TestDispatcher_EmitCarriesNameAndPayload(t *testing.T) {
	d := NewDispatcher(testLogger())

	var got Event
	d.On("alert", func(ev Event) { got = ev })

	d.Emit("alert", "risk limit breached")
	if got.Name != "alert" || got.Payload != "risk limit breached" {
		t.Errorf("received event = %+v", got)
	}

	if d.HandlerCount("alert") != 1 {
		t.Errorf("HandlerCount = %d, want 1", d.HandlerCount("alert"))
	}
	if d.HandlerCount("unknown") != 0 {
		t.Errorf("HandlerCount for unknown event = %d, want 0", d.HandlerCount("unknown"))
	}
}
