// Package orchestrator executes registered engines in dependency-ordered
// phases with bounded concurrency. A single engine's failure never
// blocks its phase-mates or later phases.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"MacroPulse/internal/domain/models"
	domsvc "MacroPulse/internal/domain/service"
	"MacroPulse/internal/registry"
	"MacroPulse/pkg/logger"
)

// ErrAlreadyExecuting is returned when ExecuteAll is called while a run
// is in progress. The second call fails fast rather than queuing.
var ErrAlreadyExecuting = errors.New("pipeline already executing")

// State tracks the lifecycle of a pipeline run.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Status records one engine's outcome within a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped" // insufficient data, engine declined
)

// Result is the per-engine outcome of a pipeline run.
type Result struct {
	EngineID string
	Phase    models.Phase
	Status   Status
	Report   *models.EngineReport
	Err      error
	Elapsed  time.Duration
}

// Orchestrator schedules engines out of the registry.
type Orchestrator struct {
	logger   *logger.Logger
	registry *registry.Registry

	concurrency int
	state       atomic.Int32
	running     atomic.Bool
}

type Option func(*Orchestrator)

// WithConcurrency bounds in-flight engines per phase.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func New(lgr *logger.Logger, reg *registry.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{logger: lgr, registry: reg, concurrency: 4}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the lifecycle state of the last or current run.
func (o *Orchestrator) State() State { return State(o.state.Load()) }

// ExecuteAll partitions registered engines into phases and runs them.
// Engines in a later phase start only after every engine in earlier
// phases has completed, successfully or not. Reports from completed
// engines are injected into later-phase engines that implement
// DataInjectable and declared them as dependencies.
func (o *Orchestrator) ExecuteAll(ctx context.Context, samples models.SampleSet) (map[string]Result, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyExecuting
	}
	defer o.running.Store(false)

	o.state.Store(int32(StateRunning))
	results := make(map[string]Result)

	metas := o.registry.AllMetadata()
	byPhase := make(map[models.Phase][]models.EngineMetadata)
	for _, m := range metas {
		byPhase[m.Phase] = append(byPhase[m.Phase], m)
	}

	for _, phase := range models.Phases() {
		batch := byPhase[phase]
		if len(batch) == 0 {
			continue
		}
		o.logger.Debug("phase starting",
			logger.String("phase", phase.String()),
			logger.Int("engines", len(batch)))
		o.runPhase(ctx, phase, batch, samples, results)
	}

	if err := ctx.Err(); err != nil {
		o.state.Store(int32(StateFailed))
		return results, err
	}
	o.state.Store(int32(StateCompleted))
	return results, nil
}

// runPhase fans out one phase's engines up to the concurrency limit and
// waits for all of them. Dependency injection reads a snapshot of the
// results taken before the phase starts, so only completed phases are
// visible and same-phase writes never race with reads.
func (o *Orchestrator) runPhase(ctx context.Context, phase models.Phase, batch []models.EngineMetadata, samples models.SampleSet, results map[string]Result) {
	prior := make(map[string]Result, len(results))
	for k, v := range results {
		prior[k] = v
	}

	sem := make(chan struct{}, o.concurrency)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, meta := range batch {
		wg.Add(1)
		go func(meta models.EngineMetadata) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := o.executeOne(ctx, meta, samples, prior)
			mu.Lock()
			results[meta.ID] = res
			mu.Unlock()
		}(meta)
	}
	wg.Wait()
}

// executeOne runs a single engine, feeding it earlier-phase reports it
// depends on. Failures are recorded, never raised.
func (o *Orchestrator) executeOne(ctx context.Context, meta models.EngineMetadata, samples models.SampleSet, prior map[string]Result) Result {
	start := time.Now()
	engine, err := o.registry.Engine(meta.ID)
	if err != nil {
		return Result{EngineID: meta.ID, Phase: meta.Phase, Status: StatusFailed, Err: err, Elapsed: time.Since(start)}
	}

	// Inject successful upstream reports into dependent engines.
	// prior only holds completed phases at this point; failed
	// dependencies are simply absent.
	if inj, ok := engine.(domsvc.DataInjectable); ok {
		for _, dep := range meta.Dependencies {
			if r, ok := prior[dep]; ok && r.Status == StatusSuccess && r.Report != nil {
				inj.InjectData(dep, r.Report)
			}
		}
	}

	if !engine.ValidateData(samples) {
		o.logger.Warn("engine skipped, insufficient data", logger.String("engine", meta.ID))
		return Result{EngineID: meta.ID, Phase: meta.Phase, Status: StatusSkipped, Elapsed: time.Since(start)}
	}

	report, err := o.registry.Execute(ctx, meta.ID, samples)
	if err != nil {
		o.logger.Error("engine execution failed",
			logger.String("engine", meta.ID),
			logger.Error(err))
		return Result{EngineID: meta.ID, Phase: meta.Phase, Status: StatusFailed, Err: err, Elapsed: time.Since(start)}
	}
	return Result{EngineID: meta.ID, Phase: meta.Phase, Status: StatusSuccess, Report: report, Elapsed: time.Since(start)}
}
