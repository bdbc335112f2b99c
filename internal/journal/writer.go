package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/nft-market/internal/model"
)

const insertEvent = `
	INSERT INTO market_events (event_id, event_type, asset_contract, asset_id, seller, buyer, price, fee, proceeds, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (event_id) DO NOTHING
`

// Config contains configuration for the journal writer.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

// BatchSender sends a pgx batch. *pgxpool.Pool satisfies it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Metrics holds writer counters.
type Metrics struct {
	Inserts   int64 `json:"inserts"`
	Conflicts int64 `json:"conflicts"`
	Errors    int64 `json:"errors"`
	Flushes   int64 `json:"flushes"`
	Requeued  int64 `json:"requeued"`
	Dropped   int64 `json:"dropped"`
}

// eventRow represents a row in the market_events table.
type eventRow struct {
	EventID       string
	EventType     string
	AssetContract string
	AssetID       string
	Seller        string
	Buyer         *string
	Price         string // NUMERIC as text
	Fee           string
	Proceeds      string
	OccurredAt    time.Time

	retried bool // already failed one flush
}

// Writer batches events and appends them to the journal.
type Writer struct {
	cfg    Config
	logger *slog.Logger
	db     BatchSender

	batch   []eventRow
	batchMu sync.Mutex

	// flushMu serialises flushes so rows are written in event order.
	flushMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// NewWriter creates a new journal Writer.
func NewWriter(cfg Config, db BatchSender, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	return &Writer{
		cfg:    cfg,
		db:     db,
		logger: logger,
		batch:  make([]eventRow, 0, cfg.BatchSize),
	}
}

// Name identifies the writer as a dispatch sink.
func (w *Writer) Name() string { return "journal" }

// Start begins the periodic flush loop.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop halts the flush loop and writes whatever is still batched.
func (w *Writer) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
	}

	// Final flush on the caller's context; ours is already cancelled.
	// A second pass gives requeued rows their one retry.
	w.flush(ctx)
	if w.pending() > 0 {
		w.flush(ctx)
	}

	w.logger.Info("journal writer stopped")
	return nil
}

// Publish adds an event to the batch, flushing when the batch is full.
func (w *Writer) Publish(ctx context.Context, e model.Event) error {
	row := toRow(e)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(ctx)
	}
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]eventRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("journal insert failed", "error", err, "count", len(batch))
		w.requeue(batch)
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed journal",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// requeue puts rows from a failed flush back at the head of the batch for
// one more attempt. Rows that already had their retry are dropped.
// Inserts are idempotent on event_id, so a retry never duplicates.
func (w *Writer) requeue(rows []eventRow) {
	var retry, dropped []eventRow
	for _, r := range rows {
		if r.retried {
			dropped = append(dropped, r)
			continue
		}
		r.retried = true
		retry = append(retry, r)
	}

	w.batchMu.Lock()
	w.batch = append(retry, w.batch...)
	w.metrics.Errors++
	w.metrics.Requeued += int64(len(retry))
	w.metrics.Dropped += int64(len(dropped))
	w.batchMu.Unlock()

	if len(dropped) > 0 {
		w.logger.Error("journal rows dropped",
			"count", len(dropped),
			"first_event_id", dropped[0].EventID,
			"last_event_id", dropped[len(dropped)-1].EventID,
		)
	}
}

func (w *Writer) pending() int {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return len(w.batch)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []eventRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertEvent,
			r.EventID, r.EventType, r.AssetContract, r.AssetID, r.Seller, r.Buyer,
			r.Price, r.Fee, r.Proceeds, r.OccurredAt)
	}

	results := w.db.SendBatch(ctx, batch)
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

// toRow converts an event to its journal row.
func toRow(e model.Event) eventRow {
	row := eventRow{
		EventID:       e.ID.String(),
		EventType:     string(e.Type),
		AssetContract: e.Key.Contract.String(),
		AssetID:       e.Key.TokenID,
		Seller:        e.Seller.String(),
		Price:         e.Price.String(),
		Fee:           e.Fee.String(),
		Proceeds:      e.Proceeds.String(),
		OccurredAt:    e.OccurredAt,
	}
	if !e.Buyer.IsZero() {
		buyer := e.Buyer.String()
		row.Buyer = &buyer
	}
	return row
}
