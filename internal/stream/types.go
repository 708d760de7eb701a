package stream

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (heartbeat timeout)")
	ErrTransportClosed = errors.New("transport closed")
	ErrAlreadyClosed   = errors.New("already closed")
)

// ConnState is the connection lifecycle state. It only changes through
// Controller transitions, never directly by consumers.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Status is the coarse connection indicator surfaced on the "status" event
// for status cards and other consumers that only care about up/down.
type Status string

const (
	StatusOnline       Status = "ONLINE"
	StatusReconnecting Status = "RECONNECTING"
	StatusOffline      Status = "OFFLINE"
	StatusFailed       Status = "FAILED"
)

// Event names emitted by the Controller.
const (
	EventConnect                = "connect"
	EventDisconnect             = "disconnect"
	EventReconnecting           = "reconnecting"
	EventFailed                 = "failed"
	EventError                  = "error"
	EventStatus                 = "status"
	EventMessage                = "message"
	EventChannelsAvailable      = "channels_available"
	EventSubscriptionsConfirmed = "subscriptions_confirmed"
	EventLatencyWarning         = "latency_warning"
	EventDataUpdate             = "data_update"
	EventBroadcast              = "broadcast"
	EventAlert                  = "alert"
)

// Actions reserved by the controller itself. Application commands use
// their own action names and pass through Send unchanged.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
)

// Command is an outbound message to the backend.
type Command struct {
	Action    string          `json:"action"`
	Channels  []string        `json:"channels,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"` // Unix milliseconds (ping)
	ClientID  string          `json:"client_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SendResult reports what happened to a command handed to Send.
// SendQueued is not delivery: callers that need confirmation must wait
// for a matching inbound message.
type SendResult int

const (
	SendSent SendResult = iota
	SendQueued
)

func (r SendResult) String() string {
	switch r {
	case SendSent:
		return "sent"
	case SendQueued:
		return "queued"
	}
	return "unknown"
}

// queuedCommand is a Command held by the outbound queue while offline.
type queuedCommand struct {
	cmd        Command
	enqueuedAt time.Time
}

// TimestampedMessage wraps raw transport bytes with a receive timestamp.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// ServerMessage is a decoded inbound message. Fields are populated per the
// Type discriminator; unknown types still reach generic consumers via the
// "message" event.
type ServerMessage struct {
	Type              string          `json:"type"`
	Channel           string          `json:"channel,omitempty"`
	Data              json.RawMessage `json:"data,omitempty"`
	AvailableChannels []string        `json:"available_channels,omitempty"`
	Channels          []string        `json:"channels,omitempty"`
	AlertType         string          `json:"alert_type,omitempty"`
	Message           string          `json:"message,omitempty"`
	Severity          string          `json:"severity,omitempty"`
	Timestamp         string          `json:"timestamp,omitempty"`

	ReceivedAt time.Time `json:"-"`
}

// Inbound message type discriminators.
const (
	msgConnectionEstablished = "connection_established"
	msgSubscriptionConfirmed = "subscription_confirmed"
	msgDataUpdate            = "data_update"
	msgBroadcast             = "broadcast"
	msgAlert                 = "alert"
	msgPong                  = "pong"
)

// DataUpdate is the payload of the "data_update" event.
type DataUpdate struct {
	Channel    string
	Data       json.RawMessage
	ReceivedAt time.Time
}

// Broadcast is the payload of the "broadcast" event. Kind is the
// application-defined inner type (e.g. "trade_executed").
type Broadcast struct {
	Kind       string
	Data       json.RawMessage
	ReceivedAt time.Time
}

// broadcastBody is the inner envelope of a broadcast message.
type broadcastBody struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Alert is the payload of the "alert" event.
type Alert struct {
	AlertType  string
	Message    string
	Severity   string
	ReceivedAt time.Time
}

// ReconnectInfo is the payload of the "reconnecting" event.
type ReconnectInfo struct {
	Attempt int
	Delay   time.Duration
}

// LatencyWarning is the payload of the "latency_warning" event.
type LatencyWarning struct {
	RTT time.Duration
}

// WebSocket close codes used by the controller. 4000-range codes are
// application-defined; the stale code distinguishes heartbeat kills from
// normal closure in server logs.
const (
	closeCodeNormal = 1000
	closeCodeStale  = 4000
)

// Config configures a Controller.
type Config struct {
	URL      string // ws:// or wss:// endpoint
	ClientID string // optional; generated if empty

	PingInterval         time.Duration // heartbeat ping cadence
	StaleCheckInterval   time.Duration // staleness evaluation cadence
	SilenceThreshold     time.Duration // max tolerated gap without any traffic
	PongTimeout          time.Duration // max wait for a pong before the connection is dead
	LatencyWarnThreshold time.Duration // RTT above this surfaces latency_warning

	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int

	QueueLimit   int // outbound queue bound; oldest dropped on overflow
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	BufferSize   int // transport message channel buffer

	// Dial builds the transport for each connection attempt.
	// Defaults to NewWebSocketTransport.
	Dial DialFunc
}

// DefaultConfig returns sensible defaults for the given endpoint.
func DefaultConfig(url string) Config {
	cfg := Config{URL: url}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.PingInterval == 0 {
		c.PingInterval = 15 * time.Second
	}
	if c.StaleCheckInterval == 0 {
		c.StaleCheckInterval = 45 * time.Second
	}
	if c.SilenceThreshold == 0 {
		c.SilenceThreshold = 60 * time.Second
	}
	if c.PongTimeout == 0 {
		c.PongTimeout = 30 * time.Second
	}
	if c.LatencyWarnThreshold == 0 {
		c.LatencyWarnThreshold = 5 * time.Second
	}
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 60 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 10
	}
	if c.QueueLimit == 0 {
		c.QueueLimit = 50
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.BufferSize == 0 {
		c.BufferSize = 1000
	}
	if c.Dial == nil {
		c.Dial = NewWebSocketTransport
	}
}
