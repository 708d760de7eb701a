package stream

import (
	"log/slog"
	"sync"
)

// Event is a named notification delivered to registered handlers.
type Event struct {
	Name    string
	Payload any
}

// Handler receives dispatched events.
type Handler func(Event)

// HandlerID identifies a registration for removal. Go functions are not
// comparable, so removal is by handle rather than by function reference.
type HandlerID uint64

type registration struct {
	id HandlerID
	fn Handler
}

// Dispatcher fans events out to handlers in registration order. The same
// function registered twice is invoked twice; registrations are not
// deduplicated.
type Dispatcher struct {
	logger *slog.Logger

	mu       sync.Mutex
	nextID   HandlerID
	handlers map[string][]registration
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:   logger,
		handlers: make(map[string][]registration),
	}
}

// On registers a handler for the named event and returns its removal handle.
func (d *Dispatcher) On(name string, fn Handler) HandlerID {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.handlers[name] = append(d.handlers[name], registration{id: id, fn: fn})
	return id
}

// Off removes a registration. Returns false if the handle is unknown.
// Removal keeps the handler out of future dispatches, but an Emit that
// has already snapshotted the handler list may still invoke it once
// after Off returns.
func (d *Dispatcher) Off(name string, id HandlerID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := d.handlers[name]
	for i, reg := range regs {
		if reg.id == id {
			d.handlers[name] = append(regs[:i:i], regs[i+1:]...)
			if len(d.handlers[name]) == 0 {
				delete(d.handlers, name)
			}
			return true
		}
	}
	return false
}

// Emit invokes all handlers registered for the event, in registration
// order. A panicking handler is recovered and logged; remaining handlers
// still run.
func (d *Dispatcher) Emit(name string, payload any) {
	d.mu.Lock()
	regs := make([]registration, len(d.handlers[name]))
	copy(regs, d.handlers[name])
	d.mu.Unlock()

	ev := Event{Name: name, Payload: payload}
	for _, reg := range regs {
		d.invoke(reg, ev)
	}
}

func (d *Dispatcher) invoke(reg registration, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				"event", ev.Name,
				"handler", uint64(reg.id),
				"panic", r,
			)
		}
	}()
	reg.fn(ev)
}

// HandlerCount returns the number of handlers registered for an event.
func (d *Dispatcher) HandlerCount(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handlers[name])
}
