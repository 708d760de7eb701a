package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
endpoint:
  base_url: https://dash.example.com
  ws_path: /ws
channels:
  - portfolio_status
  - signal_feed
stream:
  ping_interval: 15s
  max_reconnect_attempts: 5
database:
  timescale:
    host: localhost
    port: 5432
    name: test_ts
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Endpoint.BaseURL != "https://dash.example.com" {
		t.Errorf("Endpoint.BaseURL = %q, want %q", cfg.Endpoint.BaseURL, "https://dash.example.com")
	}
	if len(cfg.Channels) != 2 || cfg.Channels[0] != "portfolio_status" {
		t.Errorf("Channels = %v, want [portfolio_status signal_feed]", cfg.Channels)
	}
	if cfg.Stream.PingInterval != 15*time.Second {
		t.Errorf("Stream.PingInterval = %v, want 15s", cfg.Stream.PingInterval)
	}
	if cfg.Stream.MaxReconnectAttempts != 5 {
		t.Errorf("Stream.MaxReconnectAttempts = %d, want 5", cfg.Stream.MaxReconnectAttempts)
	}
	if cfg.Database.Timescale.Host != "localhost" {
		t.Errorf("Database.Timescale.Host = %q, want %q", cfg.Database.Timescale.Host, "localhost")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_API_KEY", "secret123")
	t.Setenv("TEST_DB_PASSWORD", "hunter2")

	yaml := `
endpoint:
  base_url: http://localhost:8000
  api_key: ${TEST_API_KEY}
database:
  timescale:
    host: localhost
    name: test_ts
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Endpoint.APIKey != "secret123" {
		t.Errorf("Endpoint.APIKey = %q, want %q", cfg.Endpoint.APIKey, "secret123")
	}
	if cfg.Database.Timescale.Password != "hunter2" {
		t.Errorf("Database.Timescale.Password = %q, want %q", cfg.Database.Timescale.Password, "hunter2")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
channels:
  - portfolio_status
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Endpoint.BaseURL != DefaultBaseURL {
		t.Errorf("Endpoint.BaseURL = %q, want default %q", cfg.Endpoint.BaseURL, DefaultBaseURL)
	}
	if cfg.Endpoint.WSPath != DefaultWSPath {
		t.Errorf("Endpoint.WSPath = %q, want default %q", cfg.Endpoint.WSPath, DefaultWSPath)
	}
	if cfg.Poller.Interval != DefaultPollInterval {
		t.Errorf("Poller.Interval = %v, want default %v", cfg.Poller.Interval, DefaultPollInterval)
	}
	if cfg.Poller.MaxInterval != DefaultPollMaxInterval {
		t.Errorf("Poller.MaxInterval = %v, want default %v", cfg.Poller.MaxInterval, DefaultPollMaxInterval)
	}
	if cfg.Database.Timescale.Port != DefaultDBPort {
		t.Errorf("Database.Timescale.Port = %d, want default %d", cfg.Database.Timescale.Port, DefaultDBPort)
	}
	if cfg.Database.Timescale.MaxConns != DefaultMaxConns {
		t.Errorf("Database.Timescale.MaxConns = %d, want default %d", cfg.Database.Timescale.MaxConns, DefaultMaxConns)
	}
	if cfg.Recorder.BatchSize != DefaultBatchSize {
		t.Errorf("Recorder.BatchSize = %d, want default %d", cfg.Recorder.BatchSize, DefaultBatchSize)
	}
	if cfg.Health.Port != DefaultHealthPort {
		t.Errorf("Health.Port = %d, want default %d", cfg.Health.Port, DefaultHealthPort)
	}
	// Explicit channel list is preserved.
	if len(cfg.Channels) != 1 || cfg.Channels[0] != "portfolio_status" {
		t.Errorf("Channels = %v, want [portfolio_status]", cfg.Channels)
	}
}

func TestDefaultChannels(t *testing.T) {
	path := writeTempFile(t, "endpoint:\n  base_url: http://localhost:8000\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if len(cfg.Channels) != len(DefaultChannels) {
		t.Errorf("Channels = %v, want full default set", cfg.Channels)
	}
}

func TestWSEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wsPath  string
		want    string
		wantErr bool
	}{
		{
			name:    "http maps to ws",
			baseURL: "http://localhost:8000",
			wsPath:  "/ws",
			want:    "ws://localhost:8000/ws",
		},
		{
			name:    "https maps to wss",
			baseURL: "https://dash.example.com",
			wsPath:  "/ws",
			want:    "wss://dash.example.com/ws",
		},
		{
			name:    "trailing slash trimmed",
			baseURL: "https://dash.example.com/",
			wsPath:  "/ws",
			want:    "wss://dash.example.com/ws",
		},
		{
			name:    "ws scheme passes through",
			baseURL: "ws://localhost:8000",
			wsPath:  "/ws",
			want:    "ws://localhost:8000/ws",
		},
		{
			name:    "unsupported scheme",
			baseURL: "ftp://localhost",
			wsPath:  "/ws",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Endpoint: EndpointConfig{BaseURL: tt.baseURL, WSPath: tt.wsPath}}
			got, err := cfg.WSEndpoint()
			if tt.wantErr {
				if err == nil {
					t.Errorf("WSEndpoint() expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("WSEndpoint() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("WSEndpoint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Endpoint: EndpointConfig{BaseURL: "http://localhost:8000", WSPath: "/ws"},
			Poller:   PollerConfig{Interval: 10 * time.Second, MaxInterval: 2 * time.Minute},
			Recorder: RecorderConfig{BatchSize: 500, FlushInterval: time.Second, BufferSize: 10000},
			Health:   HealthConfig{Port: 8080, Path: "/health"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.Endpoint.BaseURL = "" },
			wantErr: "endpoint.base_url is required",
		},
		{
			name:    "unsupported scheme",
			mutate:  func(c *Config) { c.Endpoint.BaseURL = "ftp://localhost" },
			wantErr: `unsupported base_url scheme "ftp"`,
		},
		{
			name:    "negative reconnect attempts",
			mutate:  func(c *Config) { c.Stream.MaxReconnectAttempts = -1 },
			wantErr: "stream.max_reconnect_attempts must be >= 0",
		},
		{
			name: "base delay exceeds max delay",
			mutate: func(c *Config) {
				c.Stream.ReconnectBaseDelay = 2 * time.Minute
				c.Stream.ReconnectMaxDelay = time.Minute
			},
			wantErr: "stream.reconnect_base_delay (2m0s) cannot exceed reconnect_max_delay (1m0s)",
		},
		{
			name:    "poller max interval below interval",
			mutate:  func(c *Config) { c.Poller.MaxInterval = time.Second },
			wantErr: "poller.max_interval (1s) must be >= poller.interval (10s)",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.Recorder.BatchSize = 0 },
			wantErr: "recorder.batch_size must be >= 1",
		},
		{
			name:    "health port out of range",
			mutate:  func(c *Config) { c.Health.Port = 70000 },
			wantErr: "health.port must be between 1 and 65535, got 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestValidateDatabase(t *testing.T) {
	tests := []struct {
		name    string
		db      DBConfig
		wantErr string
	}{
		{
			name:    "missing host",
			db:      DBConfig{},
			wantErr: "database.timescale.host is required",
		},
		{
			name:    "missing password",
			db:      DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 5},
			wantErr: "database.timescale.password is required",
		},
		{
			name:    "min_conns exceeds max_conns",
			db:      DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10},
			wantErr: "database.timescale.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "valid database",
			db:      DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 10, MinConns: 2},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Database: DatabaseConfig{Timescale: tt.db}}
			err := cfg.ValidateDatabase()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateDatabase() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("ValidateDatabase() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("ValidateDatabase() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
