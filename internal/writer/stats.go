package writer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aios-edge/fleet-realtime/internal/clock"
	"github.com/aios-edge/fleet-realtime/internal/monitor"
)

// StatsWriter periodically writes monitor aggregates to the stats table.
type StatsWriter struct {
	cfg    WriterConfig
	logger *slog.Logger
	clock  clock.Clock

	source SnapshotSource
	db     DB
	table  string // sanitized identifier

	// Pipelines already written, keyed by id, with the UpdatedAt written.
	mu      sync.Mutex
	written map[string]time.Time
	metrics WriterMetrics

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStatsWriter creates a new StatsWriter. A nil clock uses the real clock.
func NewStatsWriter(cfg WriterConfig, source SnapshotSource, db DB, clk clock.Clock, logger *slog.Logger) *StatsWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	if cfg.Table == "" {
		cfg.Table = DefaultWriterConfig().Table
	}

	return &StatsWriter{
		cfg:     cfg,
		logger:  logger.With("component", "writer"),
		clock:   clk,
		source:  source,
		db:      db,
		table:   pgx.Identifier(strings.Split(cfg.Table, ".")).Sanitize(),
		written: make(map[string]time.Time),
	}
}

// EnsureTable creates the stats table if it does not exist.
func (w *StatsWriter) EnsureTable(ctx context.Context) error {
	_, err := w.db.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			recorded_at         TIMESTAMPTZ      NOT NULL,
			instance_id         TEXT             NOT NULL,
			pipeline_id         TEXT             NOT NULL,
			status              TEXT             NOT NULL DEFAULT '',
			frames              BIGINT           NOT NULL,
			detections          BIGINT           NOT NULL,
			last_fps            DOUBLE PRECISION NOT NULL,
			avg_processing_time DOUBLE PRECISION NOT NULL,
			errors              BIGINT           NOT NULL,
			last_error          TEXT             NOT NULL DEFAULT '',
			reported_frames     BIGINT           NOT NULL,
			reported_fps        DOUBLE PRECISION NOT NULL
		)`, w.table))
	if err != nil {
		return fmt.Errorf("create %s: %w", w.cfg.Table, err)
	}
	return nil
}

// Start begins the periodic flush.
func (w *StatsWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	ticker := w.clock.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.flushLoop(ticker)

	w.logger.Info("stats writer started",
		"table", w.cfg.Table,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer, flushing once more.
func (w *StatsWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping stats writer")

	if w.cancel != nil {
		w.cancel()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("stats writer stopped")
	case <-ctx.Done():
		w.logger.Warn("stats writer stop timed out")
	}

	// Final flush
	return w.Flush(ctx)
}

// Stats returns current metrics.
func (w *StatsWriter) Stats() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// flushLoop periodically flushes.
func (w *StatsWriter) flushLoop(ticker *clock.Ticker) {
	defer w.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if err := w.Flush(w.ctx); err != nil {
				w.logger.Error("flush failed", "error", err)
			}
		}
	}
}

// Flush writes one row for every pipeline updated since the last
// successful flush.
func (w *StatsWriter) Flush(ctx context.Context) error {
	snap := w.source.Snapshot()

	w.mu.Lock()
	rows := w.pending(snap)
	w.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}

	start := time.Now()
	if err := w.batchInsert(ctx, rows); err != nil {
		w.mu.Lock()
		w.metrics.Errors++
		w.mu.Unlock()
		return fmt.Errorf("insert %d rows: %w", len(rows), err)
	}

	w.mu.Lock()
	for _, p := range snap.Pipelines {
		w.written[p.PipelineID] = p.UpdatedAt
	}
	w.metrics.Inserts += int64(len(rows))
	w.metrics.Flushes++
	w.metrics.LastFlush = snap.TakenAt
	w.mu.Unlock()

	w.logger.Debug("flushed pipeline stats",
		"count", len(rows),
		"duration", time.Since(start),
	)
	return nil
}

// pending returns rows for pipelines that changed. w.mu must be held.
func (w *StatsWriter) pending(snap monitor.Snapshot) []statsRow {
	var rows []statsRow
	for _, p := range snap.Pipelines {
		if last, ok := w.written[p.PipelineID]; ok && !p.UpdatedAt.After(last) {
			continue
		}
		rows = append(rows, w.transform(snap.TakenAt, p))
	}
	return rows
}

// transform converts monitor aggregates to a statsRow.
func (w *StatsWriter) transform(at time.Time, p monitor.PipelineStats) statsRow {
	return statsRow{
		RecordedAt:        at,
		InstanceID:        w.cfg.InstanceID,
		PipelineID:        p.PipelineID,
		Status:            p.Status,
		Frames:            p.Frames,
		Detections:        p.Detections,
		LastFPS:           p.LastFPS,
		AvgProcessingTime: p.AvgProcessingTime,
		Errors:            p.Errors,
		LastError:         p.LastError,
		ReportedFrames:    p.Reported.TotalFramesProcessed,
		ReportedFPS:       p.Reported.FramesPerSecond,
	}
}

// batchInsert inserts rows using pgx.Batch.
func (w *StatsWriter) batchInsert(ctx context.Context, rows []statsRow) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (recorded_at, instance_id, pipeline_id, status, frames, detections,
			last_fps, avg_processing_time, errors, last_error, reported_frames, reported_fps)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, w.table)

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(query,
			r.RecordedAt, r.InstanceID, r.PipelineID, r.Status, r.Frames, r.Detections,
			r.LastFPS, r.AvgProcessingTime, r.Errors, r.LastError, r.ReportedFrames, r.ReportedFPS,
		)
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
