package usecase

import (
	"context"
	"fmt"
	"time"

	"MacroPulse/internal/domain/models"
	drepo "MacroPulse/internal/domain/repository"
)

// ReportProcessor routes finished engine reports to the configured
// backend: the message bus, durable storage, or both.
type ReportProcessor struct {
	pub     drepo.ReportPublisher
	store   drepo.ReportStore
	metrics drepo.Metrics
	backend string
}

// NewReportProcessor creates a new ReportProcessor instance.
func NewReportProcessor(
	pub drepo.ReportPublisher,
	store drepo.ReportStore,
	metrics drepo.Metrics,
	backend string,
) *ReportProcessor {
	return &ReportProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

// Process routes a single report to the configured backend.
func (p *ReportProcessor) Process(ctx context.Context, r *models.EngineReport) error {
	if r == nil {
		return fmt.Errorf("report is nil")
	}

	var err error
	switch p.backend {
	case "kafka":
		err = p.pub.Publish(ctx, r)
	case "clickhouse":
		err = p.store.Store(ctx, r)
	case "both":
		if err = p.pub.Publish(ctx, r); err == nil {
			err = p.store.Store(ctx, r)
		}
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("report_process")
		return fmt.Errorf("process report: %w", err)
	}
	return nil
}

// ProcessBatch routes one pipeline run's reports in a batch.
func (p *ReportProcessor) ProcessBatch(ctx context.Context, reports []*models.EngineReport) error {
	if len(reports) == 0 {
		return nil
	}

	var err error
	switch p.backend {
	case "kafka":
		err = p.pub.PublishBatch(ctx, reports)
	case "clickhouse":
		err = p.store.StoreBatch(ctx, reports)
	case "both":
		if err = p.pub.PublishBatch(ctx, reports); err == nil {
			err = p.store.StoreBatch(ctx, reports)
		}
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("report_process_batch")
		return fmt.Errorf("process report batch: %w", err)
	}
	return nil
}

// Query fetches stored reports for one engine within a time range.
func (p *ReportProcessor) Query(ctx context.Context, engineID string, from, to time.Time, limit int) ([]*models.EngineReport, error) {
	if p.store == nil {
		return nil, fmt.Errorf("report store unavailable")
	}
	return p.store.Query(ctx, engineID, from, to, limit)
}

// Close closes underlying resources if available.
func (p *ReportProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
