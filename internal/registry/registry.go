// Package registry catalogs signal engines and their registration
// metadata, and dispatches individual executions with typed success and
// error notifications.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"MacroPulse/internal/domain/models"
	domsvc "MacroPulse/internal/domain/service"
	"MacroPulse/pkg/logger"
)

var (
	ErrDuplicateEngine = errors.New("engine already registered")
	ErrEngineNotFound  = errors.New("engine not found")
)

// ExecutionListener receives the outcome of every dispatched execution.
// Listeners run synchronously in registration order.
type ExecutionListener interface {
	OnSuccess(engineID string, report *models.EngineReport, elapsed time.Duration)
	OnError(engineID string, err error, elapsed time.Duration)
}

type entry struct {
	engine domsvc.Engine
	meta   models.EngineMetadata
}

// Registry is the engine catalog. All methods are safe for concurrent use.
type Registry struct {
	logger *logger.Logger

	mu        sync.RWMutex
	engines   map[string]entry
	interest  map[string][]string // indicator id -> engine ids
	listeners []ExecutionListener
}

func New(lgr *logger.Logger) *Registry {
	return &Registry{
		logger:   lgr,
		engines:  make(map[string]entry),
		interest: make(map[string][]string),
	}
}

// Register stores the engine under its metadata id, rejecting
// duplicates. Declared dependencies are advisory data for the
// orchestrator and are not validated here. The indicator interest table
// is built from the engine's declared indicator set at this point.
func (r *Registry) Register(engine domsvc.Engine, meta models.EngineMetadata) error {
	if meta.ID == "" {
		meta.ID = engine.ID()
	}
	if meta.ID != engine.ID() {
		return fmt.Errorf("metadata id %q does not match engine id %q", meta.ID, engine.ID())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.engines[meta.ID]; exists {
		return fmt.Errorf("register %s: %w", meta.ID, ErrDuplicateEngine)
	}
	r.engines[meta.ID] = entry{engine: engine, meta: meta}
	for _, ind := range engine.RequiredIndicators() {
		r.interest[ind] = append(r.interest[ind], meta.ID)
	}

	r.logger.Info("engine registered",
		logger.String("engine", meta.ID),
		logger.String("pillar", string(meta.Pillar)),
		logger.String("phase", meta.Phase.String()),
		logger.Int("priority", meta.Priority))
	return nil
}

// Engine returns the engine registered under id.
func (r *Registry) Engine(id string) (domsvc.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[id]
	if !ok {
		return nil, fmt.Errorf("engine %s: %w", id, ErrEngineNotFound)
	}
	return e.engine, nil
}

// Metadata returns the registration record for id.
func (r *Registry) Metadata(id string) (models.EngineMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[id]
	if !ok {
		return models.EngineMetadata{}, fmt.Errorf("engine %s: %w", id, ErrEngineNotFound)
	}
	return e.meta, nil
}

// AllMetadata returns every registration record, ordered by phase then
// descending priority for stable iteration.
func (r *Registry) AllMetadata() []models.EngineMetadata {
	r.mu.RLock()
	out := make([]models.EngineMetadata, 0, len(r.engines))
	for _, e := range r.engines {
		out = append(out, e.meta)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Phase != out[j].Phase {
			return out[i].Phase < out[j].Phase
		}
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// InterestedEngines returns the ids of engines that declared the
// indicator, in registration order.
func (r *Registry) InterestedEngines(indicator string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.interest[indicator]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// AddListener attaches an execution listener. Not safe to call
// concurrently with Execute.
func (r *Registry) AddListener(l ExecutionListener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// Execute looks up and invokes the engine, notifying listeners of the
// outcome. A panic inside Calculate is recovered and reported as an
// execution error.
func (r *Registry) Execute(ctx context.Context, id string, samples models.SampleSet) (report *models.EngineReport, err error) {
	engine, lookupErr := r.Engine(id)
	if lookupErr != nil {
		return nil, lookupErr
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("engine %s panicked: %v", id, rec)
		}
		elapsed := time.Since(start)
		r.mu.RLock()
		listeners := r.listeners
		r.mu.RUnlock()
		for _, l := range listeners {
			if err != nil {
				l.OnError(id, err, elapsed)
			} else {
				l.OnSuccess(id, report, elapsed)
			}
		}
	}()

	report, err = engine.Calculate(ctx, samples)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", id, err)
	}
	return report, nil
}
