package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration shared by the swarm-stream binaries.
type Config struct {
	Endpoint EndpointConfig `yaml:"endpoint"`
	Stream   StreamConfig   `yaml:"stream"`
	Channels []string       `yaml:"channels"`
	Poller   PollerConfig   `yaml:"poller"`
	Database DatabaseConfig `yaml:"database"`
	Recorder RecorderConfig `yaml:"recorder"`
	Health   HealthConfig   `yaml:"health"`
}

// EndpointConfig locates the dashboard backend.
type EndpointConfig struct {
	BaseURL string `yaml:"base_url"` // http(s) base; ws scheme is derived
	WSPath  string `yaml:"ws_path"`
	APIKey  string `yaml:"api_key"`
}

// StreamConfig tunes the connection controller. Zero values fall through
// to the stream package defaults.
type StreamConfig struct {
	ClientID             string        `yaml:"client_id"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	StaleCheckInterval   time.Duration `yaml:"stale_check_interval"`
	SilenceThreshold     time.Duration `yaml:"silence_threshold"`
	PongTimeout          time.Duration `yaml:"pong_timeout"`
	LatencyWarnThreshold time.Duration `yaml:"latency_warn_threshold"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	QueueLimit           int           `yaml:"queue_limit"`
	BufferSize           int           `yaml:"buffer_size"`
}

// PollerConfig tunes the REST fallback poller.
type PollerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	MaxInterval time.Duration `yaml:"max_interval"` // error backoff ceiling
	Timeout     time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds the TimescaleDB connection for recorded updates.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RecorderConfig holds batch writer settings.
type RecorderConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// WSEndpoint derives the streaming endpoint from the base URL: http maps
// to ws, https to wss, mirroring how the hosting page's scheme selects the
// socket scheme.
func (c *Config) WSEndpoint() (string, error) {
	u, err := url.Parse(c.Endpoint.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base_url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base_url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + c.Endpoint.WSPath
	return u.String(), nil
}
