package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"MacroPulse/internal/domain/models"
	drepo "MacroPulse/internal/domain/repository"
	"MacroPulse/internal/hub"
	"MacroPulse/internal/orchestrator"
	"MacroPulse/pkg/clock"
	"MacroPulse/pkg/logger"
)

// SampleSource provides the latest sample per indicator.
type SampleSource interface {
	Snapshot() models.SampleSet
}

// SampleSourceFunc adapts a function to SampleSource.
type SampleSourceFunc func() models.SampleSet

func (f SampleSourceFunc) Snapshot() models.SampleSet { return f() }

// PipelineRunner triggers integrated pipeline runs on an interval,
// merging all sample sources and routing the resulting reports to the
// report processor.
type PipelineRunner struct {
	logger   *logger.Logger
	hub      *hub.Hub
	proc     *ReportProcessor
	metrics  drepo.Metrics
	sources  []SampleSource
	interval time.Duration
	clock    clock.Clock

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type RunnerOption func(*PipelineRunner)

// WithRunnerClock injects a clock, used by tests.
func WithRunnerClock(c clock.Clock) RunnerOption {
	return func(r *PipelineRunner) { r.clock = c }
}

func NewPipelineRunner(
	lgr *logger.Logger,
	h *hub.Hub,
	proc *ReportProcessor,
	metrics drepo.Metrics,
	interval time.Duration,
	sources []SampleSource,
	opts ...RunnerOption,
) *PipelineRunner {
	if interval <= 0 {
		interval = time.Minute
	}
	r := &PipelineRunner{
		logger:   lgr,
		hub:      h,
		proc:     proc,
		metrics:  metrics,
		sources:  sources,
		interval: interval,
		clock:    clock.New(),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the periodic run loop.
func (r *PipelineRunner) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := r.clock.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-ticker.C():
				r.RunOnce(ctx)
			}
		}
	}()
}

// Stop terminates the run loop and waits for in-flight runs.
func (r *PipelineRunner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

// RunOnce merges all sources and executes one pipeline run. Overlapping
// triggers are skipped, not queued.
func (r *PipelineRunner) RunOnce(ctx context.Context) {
	samples := r.merge()
	outcome, err := r.hub.ExecuteIntegratedPipeline(ctx, samples)
	if err != nil {
		if errors.Is(err, orchestrator.ErrAlreadyExecuting) {
			r.logger.Warn("pipeline run skipped, previous run in flight")
			return
		}
		r.logger.Error("pipeline run failed", logger.Error(err))
		r.metrics.RecordError("pipeline_run")
		return
	}

	reports := make([]*models.EngineReport, 0, len(outcome.Reports))
	for _, rep := range outcome.Reports {
		reports = append(reports, rep)
	}
	if len(reports) == 0 {
		return
	}
	if err := r.proc.ProcessBatch(ctx, reports); err != nil {
		r.logger.Error("report routing failed", logger.Error(err))
	}
}

func (r *PipelineRunner) merge() models.SampleSet {
	merged := make(models.SampleSet)
	for _, src := range r.sources {
		for k, v := range src.Snapshot() {
			cur, ok := merged[k]
			if !ok || v.Timestamp.After(cur.Timestamp) {
				merged[k] = v
			}
		}
	}
	return merged
}
