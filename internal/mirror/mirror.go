package mirror

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/quantdegen/swarm-stream/internal/stream"
)

// Snapshot sources.
const (
	SourceStream = "stream"
	SourcePoller = "poller"
)

// DefaultAlertLimit bounds the recent-alert ring.
const DefaultAlertLimit = 100

// Snapshot is the latest known payload for one channel.
type Snapshot struct {
	Channel    string
	Data       json.RawMessage
	Source     string
	ReceivedAt time.Time
}

// Mirror keeps the latest snapshot per channel, the latest broadcast per
// kind, and a bounded ring of recent alerts. All methods are safe for
// concurrent use.
type Mirror struct {
	logger *slog.Logger

	mu         sync.RWMutex
	snapshots  map[string]Snapshot
	broadcasts map[string]stream.Broadcast
	alerts     []stream.Alert
	alertLimit int
	status     stream.Status
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mirror) {
		m.logger = logger
	}
}

// WithAlertLimit bounds the recent-alert ring.
func WithAlertLimit(n int) Option {
	return func(m *Mirror) {
		if n > 0 {
			m.alertLimit = n
		}
	}
}

// New creates an empty mirror.
func New(opts ...Option) *Mirror {
	m := &Mirror{
		logger:     slog.Default(),
		snapshots:  make(map[string]Snapshot),
		broadcasts: make(map[string]stream.Broadcast),
		alertLimit: DefaultAlertLimit,
		status:     stream.StatusOffline,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetSnapshot stores the latest payload for a channel.
func (m *Mirror) SetSnapshot(channel string, data json.RawMessage, source string, receivedAt time.Time) {
	m.mu.Lock()
	m.snapshots[channel] = Snapshot{
		Channel:    channel,
		Data:       data,
		Source:     source,
		ReceivedAt: receivedAt,
	}
	m.mu.Unlock()
}

// Snapshot returns the latest payload for a channel.
func (m *Mirror) Snapshot(channel string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[channel]
	return s, ok
}

// Channels returns the channels a snapshot exists for.
func (m *Mirror) Channels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.snapshots))
	for ch := range m.snapshots {
		out = append(out, ch)
	}
	return out
}

// LatestBroadcast returns the most recent broadcast of the given kind
// (e.g. "trade_executed").
func (m *Mirror) LatestBroadcast(kind string) (stream.Broadcast, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.broadcasts[kind]
	return b, ok
}

// AddAlert appends to the recent-alert ring, evicting the oldest entry
// once the limit is reached.
func (m *Mirror) AddAlert(a stream.Alert) {
	m.mu.Lock()
	m.alerts = append(m.alerts, a)
	if len(m.alerts) > m.alertLimit {
		m.alerts = m.alerts[len(m.alerts)-m.alertLimit:]
	}
	m.mu.Unlock()
}

// RecentAlerts returns the alert ring, oldest first.
func (m *Mirror) RecentAlerts() []stream.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]stream.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// Status returns the last connection status observed on the stream.
func (m *Mirror) Status() stream.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Mirror) setStatus(s stream.Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Mirror) setBroadcast(b stream.Broadcast) {
	m.mu.Lock()
	m.broadcasts[b.Kind] = b
	m.mu.Unlock()
}

// Attach subscribes the mirror to a controller's events. The returned
// function detaches all handlers.
func (m *Mirror) Attach(c *stream.Controller) func() {
	ids := []struct {
		name string
		id   stream.HandlerID
	}{}

	register := func(name string, h stream.Handler) {
		id := c.On(name, h)
		ids = append(ids, struct {
			name string
			id   stream.HandlerID
		}{name, id})
	}

	register(stream.EventDataUpdate, func(ev stream.Event) {
		du, ok := ev.Payload.(stream.DataUpdate)
		if !ok {
			return
		}
		m.SetSnapshot(du.Channel, du.Data, SourceStream, du.ReceivedAt)
	})

	register(stream.EventBroadcast, func(ev stream.Event) {
		b, ok := ev.Payload.(stream.Broadcast)
		if !ok {
			return
		}
		m.setBroadcast(b)
	})

	register(stream.EventAlert, func(ev stream.Event) {
		a, ok := ev.Payload.(stream.Alert)
		if !ok {
			return
		}
		m.AddAlert(a)
		m.logger.Info("alert received",
			"alert_type", a.AlertType,
			"severity", a.Severity,
			"message", a.Message,
		)
	})

	register(stream.EventStatus, func(ev stream.Event) {
		s, ok := ev.Payload.(stream.Status)
		if !ok {
			return
		}
		m.setStatus(s)
	})

	return func() {
		for _, reg := range ids {
			c.Off(reg.name, reg.id)
		}
	}
}
