package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rsethi/vitalrelay/internal/classify"
	"github.com/rsethi/vitalrelay/internal/model"
)

// Config holds batch writer settings.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: 2 * time.Second,
	}
}

// Metrics tracks writer activity.
type Metrics struct {
	Inserts int64
	Flushes int64
	Errors  int64
}

// vitalRow is the database shape of one sample.
type vitalRow struct {
	PatientID  string
	HeartRate  float64
	SpO2       float64
	Pressure   float64
	Status     string
	RecordedAt int64 // µs since epoch
}

// Writer consumes vital samples and batch-writes them to the
// vital_history table.
type Writer struct {
	cfg        Config
	logger     *slog.Logger
	input      <-chan model.VitalSample
	db         *pgxpool.Pool
	classifier classify.Classifier

	batch       []vitalRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// NewWriter creates a history writer consuming from input.
func NewWriter(cfg Config, input <-chan model.VitalSample, db *pgxpool.Pool, classifier classify.Classifier, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = classify.DefaultThresholds()
	}
	return &Writer{
		cfg:        cfg,
		logger:     logger,
		input:      input,
		db:         db,
		classifier: classifier,
		batch:      make([]vitalRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming samples and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("history writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer, flushing any pending rows.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping history writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("history writer stopped")
	case <-ctx.Done():
		w.logger.Warn("history writer stop timed out")
	}

	w.flush(context.Background())
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads samples and accumulates batches.
func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case sample, ok := <-w.input:
			if !ok {
				return
			}
			w.handleSample(sample)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// handleSample transforms and adds a sample to the batch.
func (w *Writer) handleSample(sample model.VitalSample) {
	row := w.transform(sample)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// transform converts a sample to its database row, grading readings the
// client left ungraded.
func (w *Writer) transform(sample model.VitalSample) vitalRow {
	status := sample.Vitals.Status
	if status == "" {
		status = w.classifier.Classify(sample.Vitals)
	}

	return vitalRow{
		PatientID:  sample.PatientID,
		HeartRate:  sample.Vitals.HeartRate,
		SpO2:       sample.Vitals.SpO2,
		Pressure:   sample.Vitals.Pressure,
		Status:     status,
		RecordedAt: sample.RecordedAt.UnixMicro(),
	}
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	batch := w.batch
	w.batch = make([]vitalRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.batchInsert(ctx, batch); err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed vital history",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch.
func (w *Writer) batchInsert(ctx context.Context, rows []vitalRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO vital_history (patient_id, heart_rate, spo2, pressure, status, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, r.PatientID, r.HeartRate, r.SpO2, r.Pressure, r.Status, r.RecordedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}

	return nil
}
