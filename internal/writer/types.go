package writer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aios-edge/fleet-realtime/internal/monitor"
)

// WriterConfig holds the writer settings.
type WriterConfig struct {
	FlushInterval time.Duration
	Table         string // Optionally schema-qualified, e.g. "metrics.pipeline_stats"
	InstanceID    string // Recorded with every row
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		FlushInterval: 10 * time.Second,
		Table:         "pipeline_stats",
	}
}

// WriterMetrics tracks writer statistics.
type WriterMetrics struct {
	Inserts   int64
	Flushes   int64
	Errors    int64
	LastFlush time.Time
}

// DB is the subset of *pgxpool.Pool used by the writer.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// SnapshotSource yields monitor snapshots. *monitor.Monitor implements it.
type SnapshotSource interface {
	Snapshot() monitor.Snapshot
}

// statsRow is one pipeline_stats row.
type statsRow struct {
	RecordedAt        time.Time
	InstanceID        string
	PipelineID        string
	Status            string
	Frames            int64
	Detections        int64
	LastFPS           float64
	AvgProcessingTime float64
	Errors            int64
	LastError         string
	ReportedFrames    int64
	ReportedFPS       float64
}
