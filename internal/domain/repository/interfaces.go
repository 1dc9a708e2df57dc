package repository

import (
	"context"
	"time"

	"MacroPulse/internal/domain/models"
)

// IndicatorStream is a push feed of indicator samples (WebSocket or
// message bus). Ingestion beyond this contract is an external concern.
type IndicatorStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.IndicatorSample, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// ReportPublisher hands finished engine reports to a downstream bus.
type ReportPublisher interface {
	Publish(ctx context.Context, r *models.EngineReport) error
	PublishBatch(ctx context.Context, rs []*models.EngineReport) error
	Close() error
}

// ReportStore is the durable sink for engine reports. Persistence is
// delegated to it; the computation core never queries it on the hot path.
type ReportStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, r *models.EngineReport) error
	StoreBatch(ctx context.Context, rs []*models.EngineReport) error
	Query(ctx context.Context, engineID string, from, to time.Time, limit int) ([]*models.EngineReport, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// Metrics is the pipeline's metrics recorder contract.
type Metrics interface {
	RecordExecution(engineID, status string)
	RecordConfidence(engineID string, confidence float64)
	RecordPipelineDuration(seconds float64)
	RecordBridgeSize(n int)
	RecordLimiterWait(api string, seconds float64)
	RecordError(kind string)
}
