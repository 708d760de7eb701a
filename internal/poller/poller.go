package poller

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// SnapshotClient fetches the current snapshot for a channel.
type SnapshotClient interface {
	ChannelSnapshot(ctx context.Context, channel string) (json.RawMessage, error)
}

// StreamState reports whether the live stream is delivering updates.
type StreamState interface {
	IsOpen() bool
}

// Sink receives fetched snapshots.
type Sink interface {
	SetSnapshot(channel string, data json.RawMessage, source string, receivedAt time.Time)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Base poll interval
	MaxInterval time.Duration // Error backoff ceiling
	Timeout     time.Duration // Per-request timeout
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    10 * time.Second,
		MaxInterval: 2 * time.Minute,
		Timeout:     10 * time.Second,
	}
}

// channelState tracks per-channel scheduling. A failing channel's delay
// doubles up to MaxInterval and snaps back to Interval on success.
type channelState struct {
	delay  time.Duration
	nextAt time.Time
}

// Poller polls per-channel snapshot endpoints while the stream is down.
type Poller struct {
	cfg      Config
	client   SnapshotClient
	stream   StreamState
	sink     Sink
	channels []string
	logger   *slog.Logger

	state map[string]*channelState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller for the given channels.
func New(cfg Config, client SnapshotClient, stream StreamState, sink Sink, channels []string, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	state := make(map[string]*channelState, len(channels))
	for _, ch := range channels {
		state[ch] = &channelState{delay: cfg.Interval}
	}
	return &Poller{
		cfg:      cfg,
		client:   client,
		stream:   stream,
		sink:     sink,
		channels: channels,
		logger:   logger,
		state:    state,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("fallback poller started",
		"interval", p.cfg.Interval,
		"max_interval", p.cfg.MaxInterval,
		"channels", len(p.channels),
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("fallback poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.pollDue()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollDue()
		}
	}
}

// pollDue fetches every channel whose backoff has elapsed. While the
// stream is open the poller stays idle; the live feed is authoritative.
func (p *Poller) pollDue() {
	if p.stream.IsOpen() {
		return
	}

	now := time.Now()
	var due []string
	for _, ch := range p.channels {
		if !p.state[ch].nextAt.After(now) {
			due = append(due, ch)
		}
	}
	if len(due) == 0 {
		return
	}

	start := time.Now()
	var wg sync.WaitGroup
	var fetched, failed atomic.Int64

	for _, ch := range due {
		wg.Add(1)
		go func(channel string) {
			defer wg.Done()
			if err := p.pollChannel(channel); err != nil {
				p.logger.Warn("failed to poll channel",
					"channel", channel,
					"retry_in", p.state[channel].delay,
					"err", err,
				)
				failed.Add(1)
				return
			}
			fetched.Add(1)
		}(ch)
	}

	wg.Wait()

	p.logger.Debug("poll cycle complete",
		"due", len(due),
		"fetched", fetched.Load(),
		"failed", failed.Load(),
		"duration", time.Since(start),
	)
}

// pollChannel fetches one channel's snapshot and reschedules it. On error
// the channel's delay doubles, capped at MaxInterval so a dead endpoint
// can never push the retry horizon out unbounded.
func (p *Poller) pollChannel(channel string) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	st := p.state[channel]

	data, err := p.client.ChannelSnapshot(ctx, channel)
	if err != nil {
		st.delay *= 2
		if st.delay > p.cfg.MaxInterval {
			st.delay = p.cfg.MaxInterval
		}
		st.nextAt = time.Now().Add(st.delay)
		return err
	}

	st.delay = p.cfg.Interval
	st.nextAt = time.Now().Add(st.delay)

	p.sink.SetSnapshot(channel, data, "poller", time.Now())
	return nil
}
