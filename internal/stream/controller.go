package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Controller owns the persistent connection to the dashboard backend. It
// drives the connection lifecycle, replays subscriptions on reconnect,
// queues commands issued while offline, and fans inbound messages out
// through the event dispatcher.
//
// All state is mutated by the controller itself; consumers interact only
// through the command API, the accessors, and registered event handlers.
// Public methods never panic and never surface transport errors directly;
// failures route through the state machine and the "error" event.
type Controller struct {
	cfg      Config
	logger   *slog.Logger
	dispatch *Dispatcher
	clientID string

	mu             sync.Mutex
	state          ConnState
	transport      Transport
	gen            uint64 // transport epoch; bumped whenever an epoch ends
	attempt        int
	autoReconnect  bool
	desired        map[string]struct{}
	confirmed      map[string]struct{}
	available      []string
	queue          *commandQueue
	reconnectTimer *time.Timer
	loopStop       chan struct{} // closed when the epoch's loops must exit
	hb             heartbeatState
}

// heartbeatState tracks liveness probing. Mutated only by the heartbeat
// loop and the message-receive path, under the controller mutex.
type heartbeatState struct {
	lastPingSentAt     time.Time
	lastPongReceivedAt time.Time
	lastAnyMessageAt   time.Time
	pingOutstanding    bool
}

// Stats is a snapshot of controller counters.
type Stats struct {
	State             ConnState
	Attempt           int
	QueuedCommands    int
	DroppedCommands   int64
	DesiredChannels   int
	ConfirmedChannels int
}

// New creates a Controller. It does not connect; call Connect.
func New(cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	return &Controller{
		cfg:       cfg,
		logger:    logger,
		dispatch:  NewDispatcher(logger),
		clientID:  clientID,
		state:     StateDisconnected,
		desired:   make(map[string]struct{}),
		confirmed: make(map[string]struct{}),
		queue:     newCommandQueue(cfg.QueueLimit),
	}
}

// On registers an event handler. See Dispatcher.On.
func (c *Controller) On(name string, fn Handler) HandlerID {
	return c.dispatch.On(name, fn)
}

// Off removes an event handler registration.
func (c *Controller) Off(name string, id HandlerID) bool {
	return c.dispatch.Off(name, id)
}

// State returns the current connection state.
func (c *Controller) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsOpen reports whether the connection is established.
func (c *Controller) IsOpen() bool {
	return c.State() == StateOpen
}

// ClientID returns the identifier sent on heartbeat pings.
func (c *Controller) ClientID() string {
	return c.clientID
}

// Stats returns current counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		State:             c.state,
		Attempt:           c.attempt,
		QueuedCommands:    c.queue.len(),
		DroppedCommands:   c.queue.droppedCount(),
		DesiredChannels:   len(c.desired),
		ConfirmedChannels: len(c.confirmed),
	}
}

// Desired returns the desired channel set, sorted.
func (c *Controller) Desired() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedKeys(c.desired)
}

// Confirmed returns the server-confirmed channel set, sorted.
func (c *Controller) Confirmed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedKeys(c.confirmed)
}

// AvailableChannels returns the channel list announced by the backend on
// the last connection_established message.
func (c *Controller) AvailableChannels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.available...)
}

// Connect starts connecting and enables auto-reconnect. A no-op while
// already connecting, open, or waiting to reconnect. From Failed, Connect
// starts a fresh attempt cycle.
func (c *Controller) Connect() {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateOpen, StateReconnecting:
		c.mu.Unlock()
		return
	}
	c.autoReconnect = true
	c.attempt = 0
	c.dialLocked()
	c.mu.Unlock()
}

// Disconnect closes the connection with a normal status code and disables
// auto-reconnect. Both heartbeat timers and any scheduled reconnect are
// stopped before it returns.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	c.autoReconnect = false
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.stopLoopsLocked()
	c.gen++
	if c.transport != nil {
		c.transport.Close(closeCodeNormal, "client disconnect")
		c.transport = nil
	}
	c.confirmed = make(map[string]struct{})
	prev := c.state
	c.state = StateDisconnected
	c.mu.Unlock()

	if prev == StateDisconnected {
		return
	}
	c.logger.Info("disconnected")
	c.dispatch.Emit(EventDisconnect, nil)
	c.dispatch.Emit(EventStatus, StatusOffline)
}

// Subscribe adds channels to the desired set. While open, a subscribe
// command is transmitted for the newly added channels only; the rest are
// already confirmed or pending. While not open, the addition is retained
// and replayed on the next open.
func (c *Controller) Subscribe(channels ...string) {
	c.mu.Lock()
	added := make([]string, 0, len(channels))
	for _, ch := range channels {
		if _, ok := c.desired[ch]; !ok {
			c.desired[ch] = struct{}{}
			added = append(added, ch)
		}
	}
	if c.state == StateOpen && len(added) > 0 {
		if err := c.sendLocked(c.transport, Command{Action: ActionSubscribe, Channels: added}); err != nil {
			c.logger.Warn("subscribe send failed", "channels", added, "error", err)
		}
	}
	c.mu.Unlock()
}

// Unsubscribe removes channels from both the desired and confirmed sets.
// While open, an unsubscribe command is transmitted fire-and-forget; no
// confirmation is expected.
func (c *Controller) Unsubscribe(channels ...string) {
	c.mu.Lock()
	for _, ch := range channels {
		delete(c.desired, ch)
		delete(c.confirmed, ch)
	}
	if c.state == StateOpen && len(channels) > 0 {
		if err := c.sendLocked(c.transport, Command{Action: ActionUnsubscribe, Channels: channels}); err != nil {
			c.logger.Warn("unsubscribe send failed", "channels", channels, "error", err)
		}
	}
	c.mu.Unlock()
}

// Send transmits a command immediately while open, otherwise queues it for
// the next open. SendQueued is not delivery confirmation.
func (c *Controller) Send(cmd Command) SendResult {
	c.mu.Lock()
	if c.state == StateOpen {
		if err := c.sendLocked(c.transport, cmd); err == nil {
			c.mu.Unlock()
			return SendSent
		}
		// Write failed; the read loop will notice the dead transport
		// shortly. Keep the command for the next session.
	}
	dropped, overflow := c.queue.push(cmd, time.Now())
	queued := c.queue.len()
	c.mu.Unlock()

	if overflow {
		c.logger.Warn("outbound queue full, dropped oldest command",
			"dropped_action", dropped.cmd.Action,
			"enqueued_at", dropped.enqueuedAt,
			"limit", c.cfg.QueueLimit,
		)
	}
	c.logger.Debug("command queued", "action", cmd.Action, "depth", queued)
	return SendQueued
}

// dialLocked starts a new transport epoch. Caller holds mu.
func (c *Controller) dialLocked() {
	c.gen++
	gen := c.gen
	c.state = StateConnecting

	tr := c.cfg.Dial(TransportConfig{
		URL:              c.cfg.URL,
		WriteTimeout:     c.cfg.WriteTimeout,
		HandshakeTimeout: c.cfg.DialTimeout,
		BufferSize:       c.cfg.BufferSize,
	}, c.logger)
	c.transport = tr

	go c.dial(gen, tr)
}

// dial establishes a transport and transitions to open or back down.
func (c *Controller) dial(gen uint64, tr Transport) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	err := tr.Connect(ctx)
	cancel()

	c.mu.Lock()
	if gen != c.gen {
		// A Disconnect or newer attempt superseded this epoch.
		c.mu.Unlock()
		tr.Close(closeCodeNormal, "superseded")
		return
	}

	if err != nil {
		c.logger.Warn("connect failed", "url", c.cfg.URL, "error", err)
		events := c.transportDownLocked(err)
		c.mu.Unlock()
		c.emitAll(events)
		return
	}

	events := c.openLocked(gen, tr)
	c.mu.Unlock()
	c.emitAll(events)
}

// openLocked transitions to Open: resets the attempt counter, flushes the
// outbound queue in enqueue order, replays the full desired channel set,
// and starts the heartbeat monitor. Caller holds mu, which keeps new Send
// calls from interleaving with the flush.
func (c *Controller) openLocked(gen uint64, tr Transport) []Event {
	c.state = StateOpen
	c.attempt = 0
	c.hb = heartbeatState{lastAnyMessageAt: time.Now()}

	flushed := c.queue.drain()
	for _, qc := range flushed {
		if err := c.sendLocked(tr, qc.cmd); err != nil {
			c.logger.Warn("failed to flush queued command",
				"action", qc.cmd.Action, "error", err)
		}
	}

	if chs := sortedKeys(c.desired); len(chs) > 0 {
		if err := c.sendLocked(tr, Command{Action: ActionSubscribe, Channels: chs}); err != nil {
			c.logger.Warn("subscription replay failed", "channels", chs, "error", err)
		}
	}

	c.loopStop = make(chan struct{})
	go c.heartbeatLoop(gen, tr, c.loopStop)
	go c.readLoop(gen, tr, c.loopStop)

	c.logger.Info("connected", "url", c.cfg.URL, "flushed", len(flushed))

	return []Event{
		{Name: EventConnect},
		{Name: EventStatus, Payload: StatusOnline},
	}
}

// transportDownLocked handles loss of the current transport: stops the
// epoch's loops, clears the confirmed subset (desired survives), and either
// schedules a reconnect, gives up into Failed, or settles Disconnected.
// Caller holds mu; returned events must be emitted after unlock.
func (c *Controller) transportDownLocked(cause error) []Event {
	c.stopLoopsLocked()
	c.confirmed = make(map[string]struct{})
	if c.transport != nil {
		c.transport.Close(closeCodeNormal, "")
		c.transport = nil
	}
	c.gen++

	events := []Event{{Name: EventError, Payload: cause}}

	if !c.autoReconnect {
		c.state = StateDisconnected
		return append(events,
			Event{Name: EventDisconnect},
			Event{Name: EventStatus, Payload: StatusOffline},
		)
	}

	if c.attempt >= c.cfg.MaxReconnectAttempts {
		c.state = StateFailed
		c.autoReconnect = false
		c.logger.Error("reconnect attempts exhausted",
			"attempts", c.attempt, "cause", cause)
		return append(events,
			Event{Name: EventFailed, Payload: c.attempt},
			Event{Name: EventStatus, Payload: StatusFailed},
		)
	}

	c.attempt++
	delay := c.backoffDelay(c.attempt)
	c.state = StateReconnecting
	gen := c.gen
	c.reconnectTimer = time.AfterFunc(delay, func() { c.redial(gen) })

	c.logger.Warn("connection down, reconnect scheduled",
		"attempt", c.attempt, "delay", delay, "cause", cause)

	return append(events,
		Event{Name: EventReconnecting, Payload: ReconnectInfo{Attempt: c.attempt, Delay: delay}},
		Event{Name: EventStatus, Payload: StatusReconnecting},
	)
}

// transportDown is the unlocked entry for epoch-scoped goroutines. Stale
// epochs are ignored.
func (c *Controller) transportDown(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	events := c.transportDownLocked(cause)
	c.mu.Unlock()
	c.emitAll(events)
}

// redial fires when the reconnect timer elapses.
func (c *Controller) redial(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.dialLocked()
	c.mu.Unlock()
}

// backoffDelay computes min(base * 2^(attempt-1), cap). Non-decreasing in
// the attempt count, always capped.
func (c *Controller) backoffDelay(attempt int) time.Duration {
	d := c.cfg.ReconnectBaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.cfg.ReconnectMaxDelay {
			return c.cfg.ReconnectMaxDelay
		}
	}
	if d > c.cfg.ReconnectMaxDelay {
		d = c.cfg.ReconnectMaxDelay
	}
	return d
}

// readLoop consumes one transport epoch. Messages are handled strictly in
// receipt order; a transport error or the epoch's stop channel ends it.
func (c *Controller) readLoop(gen uint64, tr Transport, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case msg, ok := <-tr.Messages():
			if !ok {
				c.transportDown(gen, ErrTransportClosed)
				return
			}
			c.handleMessage(gen, msg)
		case err := <-tr.Errors():
			if err == nil {
				err = ErrTransportClosed
			}
			c.transportDown(gen, err)
			return
		}
	}
}

// handleMessage parses one inbound message and dispatches events. A parse
// failure is logged and dropped without touching connection state.
func (c *Controller) handleMessage(gen uint64, msg TimestampedMessage) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}

	// Any traffic counts against the silence window, parseable or not.
	c.hb.lastAnyMessageAt = msg.ReceivedAt

	var sm ServerMessage
	if err := json.Unmarshal(msg.Data, &sm); err != nil {
		c.mu.Unlock()
		c.logger.Warn("dropping malformed message", "error", err, "bytes", len(msg.Data))
		return
	}
	sm.ReceivedAt = msg.ReceivedAt

	events := []Event{{Name: EventMessage, Payload: sm}}

	switch sm.Type {
	case msgConnectionEstablished:
		c.available = append([]string(nil), sm.AvailableChannels...)
		events = append(events, Event{
			Name:    EventChannelsAvailable,
			Payload: append([]string(nil), c.available...),
		})

	case msgSubscriptionConfirmed:
		for _, ch := range sm.Channels {
			c.confirmed[ch] = struct{}{}
		}
		events = append(events, Event{
			Name:    EventSubscriptionsConfirmed,
			Payload: sortedKeys(c.confirmed),
		})

	case msgPong:
		c.hb.lastPongReceivedAt = msg.ReceivedAt
		if c.hb.pingOutstanding {
			c.hb.pingOutstanding = false
			rtt := msg.ReceivedAt.Sub(c.hb.lastPingSentAt)
			if rtt > c.cfg.LatencyWarnThreshold {
				c.logger.Warn("high heartbeat latency", "rtt", rtt)
				events = append(events, Event{
					Name:    EventLatencyWarning,
					Payload: LatencyWarning{RTT: rtt},
				})
			}
		}

	case msgDataUpdate:
		events = append(events, Event{Name: EventDataUpdate, Payload: DataUpdate{
			Channel:    sm.Channel,
			Data:       sm.Data,
			ReceivedAt: msg.ReceivedAt,
		}})

	case msgBroadcast:
		var body broadcastBody
		if err := json.Unmarshal(sm.Data, &body); err == nil && body.Type != "" {
			events = append(events, Event{Name: EventBroadcast, Payload: Broadcast{
				Kind:       body.Type,
				Data:       body.Data,
				ReceivedAt: msg.ReceivedAt,
			}})
		}

	case msgAlert:
		events = append(events, Event{Name: EventAlert, Payload: Alert{
			AlertType:  sm.AlertType,
			Message:    sm.Message,
			Severity:   sm.Severity,
			ReceivedAt: msg.ReceivedAt,
		}})
	}

	c.mu.Unlock()
	c.emitAll(events)
}

// sendLocked marshals a command and writes it to the transport. Caller
// holds mu.
func (c *Controller) sendLocked(tr Transport, cmd Command) error {
	if tr == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return tr.Send(data)
}

func (c *Controller) stopLoopsLocked() {
	if c.loopStop != nil {
		close(c.loopStop)
		c.loopStop = nil
	}
}

func (c *Controller) emitAll(events []Event) {
	for _, ev := range events {
		c.dispatch.Emit(ev.Name, ev.Payload)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
