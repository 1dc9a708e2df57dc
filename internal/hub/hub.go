// Package hub wires the registry, orchestrator and data bridge into a
// single pipeline entry point and aggregates system health from
// per-engine performance records.
package hub

import (
	"context"
	"sync"
	"time"

	"MacroPulse/internal/bridge"
	"MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
	"MacroPulse/internal/orchestrator"
	"MacroPulse/pkg/clock"
	"MacroPulse/pkg/logger"
)

// EventKind names a hub lifecycle event.
type EventKind string

const (
	EventPipelineStarted   EventKind = "pipeline:started"
	EventPipelineCompleted EventKind = "pipeline:completed"
	EventPipelineError     EventKind = "pipeline:error"
	EventHealthWarning     EventKind = "health:warning"
	EventHealthCritical    EventKind = "health:critical"
)

// Event is delivered synchronously to listeners in registration order.
type Event struct {
	Kind      EventKind
	Timestamp time.Time
	Health    *models.SystemHealthMetrics
	Results   map[string]orchestrator.Result
	Err       error
}

// Listener receives hub lifecycle events.
type Listener func(Event)

// PipelineOutcome is the return of one integrated pipeline run.
type PipelineOutcome struct {
	Reports map[string]*models.EngineReport
	Results map[string]orchestrator.Result
	Health  models.SystemHealthMetrics
	Elapsed time.Duration
}

// Hub is the top-level façade over the computation core.
type Hub struct {
	logger  *logger.Logger
	orch    *orchestrator.Orchestrator
	bridge  *bridge.Bridge
	perf    *PerformanceTracker
	metrics domrepo.Metrics
	clock   clock.Clock

	checkInterval time.Duration

	mu        sync.RWMutex
	listeners []Listener
	lastRun   time.Time

	healthStop chan struct{}
	healthOnce sync.Once
}

type Option func(*Hub)

// WithClock injects a clock, used by tests.
func WithClock(c clock.Clock) Option {
	return func(h *Hub) { h.clock = c }
}

// WithHealthCheckInterval sets the periodic health check cadence.
func WithHealthCheckInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.checkInterval = d
		}
	}
}

func New(lgr *logger.Logger, orch *orchestrator.Orchestrator, br *bridge.Bridge, metrics domrepo.Metrics, opts ...Option) *Hub {
	h := &Hub{
		logger:        lgr,
		orch:          orch,
		bridge:        br,
		perf:          NewPerformanceTracker(),
		metrics:       metrics,
		clock:         clock.New(),
		checkInterval: 30 * time.Second,
		healthStop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddListener attaches a lifecycle event listener.
func (h *Hub) AddListener(l Listener) {
	h.mu.Lock()
	h.listeners = append(h.listeners, l)
	h.mu.Unlock()
}

// Performance exposes the tracker for operator surfaces.
func (h *Hub) Performance() *PerformanceTracker { return h.perf }

// ExecuteIntegratedPipeline runs the orchestrator across all phases,
// bridges successful reports, updates performance records and
// recomputes system health. A run already in progress is rejected with
// orchestrator.ErrAlreadyExecuting.
func (h *Hub) ExecuteIntegratedPipeline(ctx context.Context, samples models.SampleSet) (*PipelineOutcome, error) {
	start := h.clock.Now()
	h.emit(Event{Kind: EventPipelineStarted, Timestamp: start})

	results, err := h.orch.ExecuteAll(ctx, samples)
	if err != nil {
		h.emit(Event{Kind: EventPipelineError, Timestamp: h.clock.Now(), Err: err, Results: results})
		return nil, err
	}

	reports := make(map[string]*models.EngineReport, len(results))
	for id, res := range results {
		switch res.Status {
		case orchestrator.StatusSuccess:
			h.perf.RecordSuccess(id, res.Report.Confidence, h.clock.Now())
			if h.metrics != nil {
				h.metrics.RecordExecution(id, "success")
				h.metrics.RecordConfidence(id, res.Report.Confidence)
			}
			reports[id] = res.Report
			h.bridge.BridgeReport(res.Report)
		case orchestrator.StatusFailed:
			h.perf.RecordFailure(id, res.Err, h.clock.Now())
			if h.metrics != nil {
				h.metrics.RecordExecution(id, "failed")
			}
		case orchestrator.StatusSkipped:
			// insufficient data is recoverable, not a failure
			if h.metrics != nil {
				h.metrics.RecordExecution(id, "skipped")
			}
		}
	}

	health := computeHealth(h.perf.All(), h.clock.Now())
	elapsed := h.clock.Now().Sub(start)
	if h.metrics != nil {
		h.metrics.RecordPipelineDuration(elapsed.Seconds())
	}

	h.mu.Lock()
	h.lastRun = h.clock.Now()
	h.mu.Unlock()

	h.emit(Event{Kind: EventPipelineCompleted, Timestamp: h.clock.Now(), Health: &health, Results: results})
	h.logger.Info("pipeline completed",
		logger.Int("engines", len(results)),
		logger.Int("reports", len(reports)),
		logger.Float64("health", health.Overall),
		logger.Duration("elapsed", elapsed))

	return &PipelineOutcome{
		Reports: reports,
		Results: results,
		Health:  health,
		Elapsed: elapsed,
	}, nil
}

// Health re-derives the aggregate snapshot independent of pipeline runs.
func (h *Hub) Health() models.SystemHealthMetrics {
	return computeHealth(h.perf.All(), h.clock.Now())
}

// StartHealthMonitor launches the periodic health check, raising
// warning and critical events when the overall score drops below the
// configured thresholds.
func (h *Hub) StartHealthMonitor() {
	go func() {
		ticker := h.clock.NewTicker(h.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-h.healthStop:
				return
			case <-ticker.C():
				h.checkHealth()
			}
		}
	}()
}

// StopHealthMonitor stops the periodic check. Idempotent.
func (h *Hub) StopHealthMonitor() {
	h.healthOnce.Do(func() { close(h.healthStop) })
}

func (h *Hub) checkHealth() {
	health := h.Health()
	switch healthLevel(health) {
	case HealthCritical:
		h.logger.Error("system health critical",
			logger.Float64("overall", health.Overall),
			logger.Strings("failing", health.FailingEngines))
		h.emit(Event{Kind: EventHealthCritical, Timestamp: health.Timestamp, Health: &health})
	case HealthWarning:
		h.logger.Warn("system health degraded",
			logger.Float64("overall", health.Overall))
		h.emit(Event{Kind: EventHealthWarning, Timestamp: health.Timestamp, Health: &health})
	}
}

func (h *Hub) emit(ev Event) {
	h.mu.RLock()
	listeners := h.listeners
	h.mu.RUnlock()
	for _, l := range listeners {
		l(ev)
	}
}
