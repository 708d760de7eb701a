package config

import "time"

// Default values for optional configuration fields. Stream tuning defaults
// live in the stream package; zero values there mean "use the default".
const (
	DefaultBaseURL         = "http://localhost:8000"
	DefaultWSPath          = "/ws"
	DefaultPollInterval    = 10 * time.Second
	DefaultPollMaxInterval = 2 * time.Minute
	DefaultPollTimeout     = 10 * time.Second
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
	DefaultBatchSize       = 500
	DefaultFlushInterval   = 1 * time.Second
	DefaultBufferSize      = 10000
	DefaultHealthPort      = 8080
	DefaultHealthPath      = "/health"
)

// DefaultChannels is the full channel set the backend serves.
var DefaultChannels = []string{
	"portfolio_status",
	"active_positions",
	"ai_analysis",
	"market_analysis",
	"meme_scanner",
	"risk_management",
	"signal_feed",
	"whale_activity",
}

func (c *Config) applyDefaults() {
	if c.Endpoint.BaseURL == "" {
		c.Endpoint.BaseURL = DefaultBaseURL
	}
	if len(c.Channels) == 0 {
		c.Channels = append([]string(nil), DefaultChannels...)
	}
	if c.Endpoint.WSPath == "" {
		c.Endpoint.WSPath = DefaultWSPath
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.MaxInterval == 0 {
		c.Poller.MaxInterval = DefaultPollMaxInterval
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Recorder defaults
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
	if c.Recorder.BufferSize == 0 {
		c.Recorder.BufferSize = DefaultBufferSize
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
