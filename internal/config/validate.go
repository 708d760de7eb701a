package config

import (
	"errors"
	"fmt"
)

// Validate checks that values shared by all binaries are valid. Database
// settings are only required by the recorder; see ValidateDatabase.
func (c *Config) Validate() error {
	if c.Endpoint.BaseURL == "" {
		return errors.New("endpoint.base_url is required")
	}
	if _, err := c.WSEndpoint(); err != nil {
		return err
	}

	if c.Stream.MaxReconnectAttempts < 0 {
		return errors.New("stream.max_reconnect_attempts must be >= 0")
	}
	if c.Stream.QueueLimit < 0 {
		return errors.New("stream.queue_limit must be >= 0")
	}
	if c.Stream.ReconnectMaxDelay != 0 && c.Stream.ReconnectBaseDelay > c.Stream.ReconnectMaxDelay {
		return fmt.Errorf("stream.reconnect_base_delay (%v) cannot exceed reconnect_max_delay (%v)",
			c.Stream.ReconnectBaseDelay, c.Stream.ReconnectMaxDelay)
	}

	if c.Poller.MaxInterval < c.Poller.Interval {
		return fmt.Errorf("poller.max_interval (%v) must be >= poller.interval (%v)",
			c.Poller.MaxInterval, c.Poller.Interval)
	}

	if c.Recorder.BatchSize < 1 {
		return errors.New("recorder.batch_size must be >= 1")
	}
	if c.Recorder.BufferSize < 1 {
		return errors.New("recorder.buffer_size must be >= 1")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

// ValidateDatabase checks the fields the recorder needs on top of Validate.
func (c *Config) ValidateDatabase() error {
	return c.Database.Timescale.validate("database.timescale")
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
