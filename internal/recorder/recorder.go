package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantdegen/swarm-stream/internal/stream"
)

// Update is one recorded channel payload.
type Update struct {
	Channel    string
	Kind       string // broadcast inner type, empty for plain updates
	Payload    []byte
	ReceivedAt time.Time
}

// updateRow is an Update ready for insertion.
type updateRow struct {
	ID         uuid.UUID
	Channel    string
	Kind       string
	ReceivedAt int64 // µs since epoch
	Payload    []byte
}

// Config holds recorder configuration.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// Metrics counts recorder activity.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
	Dropped   int64
}

// Recorder consumes channel updates from a growable buffer and batch-writes
// them to the channel_updates table.
type Recorder struct {
	cfg    Config
	logger *slog.Logger

	input *GrowableBuffer[Update]
	db    *pgxpool.Pool

	batch       []updateRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// New creates a new Recorder.
func New(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:    cfg,
		db:     db,
		logger: logger,
		input:  NewGrowableBuffer[Update](cfg.BufferSize),
		batch:  make([]updateRow, 0, cfg.BatchSize),
	}
}

// Enqueue hands an update to the recorder. Safe to call from dispatcher
// callbacks; it never blocks on the database.
func (r *Recorder) Enqueue(u Update) {
	if !r.input.Send(u) {
		r.batchMu.Lock()
		r.metrics.Dropped++
		r.batchMu.Unlock()
	}
}

// Attach subscribes the recorder to a controller's data events. The
// returned function detaches the handlers.
func (r *Recorder) Attach(c *stream.Controller) func() {
	duID := c.On(stream.EventDataUpdate, func(ev stream.Event) {
		du, ok := ev.Payload.(stream.DataUpdate)
		if !ok {
			return
		}
		r.Enqueue(Update{
			Channel:    du.Channel,
			Payload:    du.Data,
			ReceivedAt: du.ReceivedAt,
		})
	})

	bcID := c.On(stream.EventBroadcast, func(ev stream.Event) {
		b, ok := ev.Payload.(stream.Broadcast)
		if !ok {
			return
		}
		r.Enqueue(Update{
			Channel:    "broadcast",
			Kind:       b.Kind,
			Payload:    b.Data,
			ReceivedAt: b.ReceivedAt,
		})
	})

	return func() {
		c.Off(stream.EventDataUpdate, duID)
		c.Off(stream.EventBroadcast, bcID)
	}
}

// Start begins consuming updates and writing to the database.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the recorder, flushing what remains.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping recorder")

	if r.cancel != nil {
		r.cancel()
	}
	r.input.Close()

	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("recorder stopped")
	case <-ctx.Done():
		r.logger.Warn("recorder stop timed out")
	}

	// Drain whatever the consumer did not get to, then final flush.
	for {
		u, ok := r.input.TryReceive()
		if !ok {
			break
		}
		r.appendRow(u)
	}
	r.flush(context.Background())

	return nil
}

// Stats returns current metrics.
func (r *Recorder) Stats() Metrics {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.metrics
}

// BufferStats returns input buffer statistics.
func (r *Recorder) BufferStats() BufferStats {
	return r.input.Stats()
}

// consumeLoop reads from the input buffer and accumulates batches.
func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		default:
			u, ok := r.input.TryReceive()
			if !ok {
				select {
				case <-r.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			if r.appendRow(u) {
				r.flush(r.ctx)
			}
		}
	}
}

// flushLoop periodically flushes the batch.
func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flush(r.ctx)
		}
	}
}

// appendRow transforms an update and adds it to the batch. Reports whether
// the batch reached the flush threshold.
func (r *Recorder) appendRow(u Update) bool {
	row := transform(u)

	r.batchMu.Lock()
	r.batch = append(r.batch, row)
	full := len(r.batch) >= r.cfg.BatchSize
	r.batchMu.Unlock()

	return full
}

// transform converts an Update to an updateRow.
func transform(u Update) updateRow {
	return updateRow{
		ID:         uuid.New(),
		Channel:    u.Channel,
		Kind:       u.Kind,
		ReceivedAt: u.ReceivedAt.UnixMicro(),
		Payload:    u.Payload,
	}
}

// flush writes the current batch to the database.
func (r *Recorder) flush(ctx context.Context) {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	batch := r.batch
	r.batch = make([]updateRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	conflicts, err := r.batchInsert(ctx, batch)
	if err != nil {
		r.logger.Error("batch insert failed", "error", err, "count", len(batch))
		r.batchMu.Lock()
		r.metrics.Errors++
		r.batchMu.Unlock()
		return
	}

	r.batchMu.Lock()
	r.metrics.Inserts += int64(len(batch) - conflicts)
	r.metrics.Conflicts += int64(conflicts)
	r.metrics.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed updates",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (r *Recorder) batchInsert(ctx context.Context, rows []updateRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO channel_updates (id, channel, kind, received_at, payload)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, row.ID, row.Channel, row.Kind, row.ReceivedAt, row.Payload)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
