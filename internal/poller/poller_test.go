package poller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClient serves canned snapshots and can be told to fail per channel.
type fakeClient struct {
	mu      sync.Mutex
	failing map[string]bool
	calls   map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		failing: make(map[string]bool),
		calls:   make(map[string]int),
	}
}

func (f *fakeClient) ChannelSnapshot(ctx context.Context, channel string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[channel]++
	if f.failing[channel] {
		return nil, errors.New("backend unavailable")
	}
	return json.RawMessage(`{"channel":"` + channel + `"}`), nil
}

func (f *fakeClient) setFailing(channel string, fail bool) {
	f.mu.Lock()
	f.failing[channel] = fail
	f.mu.Unlock()
}

func (f *fakeClient) callCount(channel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[channel]
}

// fakeStream reports a settable open state.
type fakeStream struct {
	open atomic.Bool
}

func (f *fakeStream) IsOpen() bool { return f.open.Load() }

// recordingSink captures snapshot writes.
type recordingSink struct {
	mu    sync.Mutex
	got   map[string]json.RawMessage
	count int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{got: make(map[string]json.RawMessage)}
}

func (r *recordingSink) SetSnapshot(channel string, data json.RawMessage, source string, receivedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if source != "poller" {
		panic("unexpected source " + source)
	}
	r.got[channel] = data
	r.count++
}

func (r *recordingSink) snapshot(channel string) (json.RawMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.got[channel]
	return d, ok
}

func (r *recordingSink) writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPoller_FetchesWhileStreamDown(t *testing.T) {
	client := newFakeClient()
	st := &fakeStream{}
	sink := newRecordingSink()

	cfg := Config{Interval: 5 * time.Millisecond, MaxInterval: 40 * time.Millisecond, Timeout: time.Second}
	p := New(cfg, client, st, sink, []string{"portfolio_status", "signal_feed"}, testLogger())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(context.Background())

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := sink.snapshot("portfolio_status"); ok {
			break
		}
		time.Sleep(time.Millisecond)
	}

	data, ok := sink.snapshot("portfolio_status")
	if !ok {
		t.Fatal("no snapshot fetched for portfolio_status")
	}
	if string(data) != `{"channel":"portfolio_status"}` {
		t.Errorf("snapshot = %s", data)
	}
	if _, ok := sink.snapshot("signal_feed"); !ok {
		t.Error("no snapshot fetched for signal_feed")
	}
}

func TestPoller_IdleWhileStreamOpen(t *testing.T) {
	client := newFakeClient()
	st := &fakeStream{}
	st.open.Store(true)
	sink := newRecordingSink()

	cfg := Config{Interval: 2 * time.Millisecond, MaxInterval: 20 * time.Millisecond, Timeout: time.Second}
	p := New(cfg, client, st, sink, []string{"portfolio_status"}, testLogger())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if n := sink.writes(); n != 0 {
		t.Errorf("writes = %d, want 0 while stream open", n)
	}

	// Stream drops, polling resumes.
	st.open.Store(false)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && sink.writes() == 0 {
		time.Sleep(time.Millisecond)
	}
	if sink.writes() == 0 {
		t.Error("poller did not resume after stream dropped")
	}

	p.Stop(context.Background())
}

func TestPoller_ErrorBackoffCappedAndReset(t *testing.T) {
	client := newFakeClient()
	client.setFailing("portfolio_status", true)
	st := &fakeStream{}
	sink := newRecordingSink()

	cfg := Config{Interval: 10 * time.Millisecond, MaxInterval: 40 * time.Millisecond, Timeout: time.Second}
	p := New(cfg, client, st, sink, []string{"portfolio_status"}, testLogger())
	p.ctx, p.cancel = context.WithCancel(context.Background())
	defer p.cancel()

	chState := p.state["portfolio_status"]

	// Consecutive failures double the delay up to the cap.
	wantDelays := []time.Duration{
		20 * time.Millisecond,
		40 * time.Millisecond,
		40 * time.Millisecond, // capped
		40 * time.Millisecond,
	}
	for i, want := range wantDelays {
		if err := p.pollChannel("portfolio_status"); err == nil {
			t.Fatalf("attempt %d: expected error", i)
		}
		if chState.delay != want {
			t.Errorf("attempt %d: delay = %v, want %v", i, chState.delay, want)
		}
	}

	// First success snaps back to the base interval.
	client.setFailing("portfolio_status", false)
	if err := p.pollChannel("portfolio_status"); err != nil {
		t.Fatalf("pollChannel after recovery: %v", err)
	}
	if chState.delay != cfg.Interval {
		t.Errorf("delay after success = %v, want %v", chState.delay, cfg.Interval)
	}
	if _, ok := sink.snapshot("portfolio_status"); !ok {
		t.Error("snapshot missing after recovery")
	}
}

func TestPoller_BackedOffChannelNotDue(t *testing.T) {
	client := newFakeClient()
	client.setFailing("signal_feed", true)
	st := &fakeStream{}
	sink := newRecordingSink()

	cfg := Config{Interval: time.Hour, MaxInterval: 2 * time.Hour, Timeout: time.Second}
	p := New(cfg, client, st, sink, []string{"signal_feed"}, testLogger())
	p.ctx, p.cancel = context.WithCancel(context.Background())
	defer p.cancel()

	p.pollDue()
	if client.callCount("signal_feed") != 1 {
		t.Fatalf("calls = %d, want 1", client.callCount("signal_feed"))
	}

	// The failed channel is scheduled in the future; another cycle now
	// must not touch it.
	p.pollDue()
	if client.callCount("signal_feed") != 1 {
		t.Errorf("calls = %d, want still 1 while backed off", client.callCount("signal_feed"))
	}
}

func TestPoller_StopHaltsLoop(t *testing.T) {
	client := newFakeClient()
	st := &fakeStream{}
	sink := newRecordingSink()

	cfg := Config{Interval: 2 * time.Millisecond, MaxInterval: 20 * time.Millisecond, Timeout: time.Second}
	p := New(cfg, client, st, sink, []string{"portfolio_status"}, testLogger())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	before := sink.writes()
	time.Sleep(20 * time.Millisecond)
	if after := sink.writes(); after != before {
		t.Errorf("writes advanced after Stop: %d -> %d", before, after)
	}
}
