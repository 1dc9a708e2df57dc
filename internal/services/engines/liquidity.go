package engines

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"MacroPulse/internal/domain/models"
	domsvc "MacroPulse/internal/domain/service"
)

// SourceWeight declares an upstream engine feeding the composite and
// its blend weight.
type SourceWeight struct {
	EngineID string
	Weight   float64
}

// LiquidityCompositeEngine blends the composites of earlier-phase
// engines into the headline liquidity score. It consumes no raw
// indicators; upstream reports arrive through InjectData, so it runs in
// the synthesis phase after its declared dependencies.
type LiquidityCompositeEngine struct {
	id      string
	sources []SourceWeight

	mu       sync.Mutex
	injected map[string]*models.EngineReport

	lastComposite float64
}

func NewLiquidityCompositeEngine(id string, sources []SourceWeight) *LiquidityCompositeEngine {
	return &LiquidityCompositeEngine{
		id:       id,
		sources:  sources,
		injected: make(map[string]*models.EngineReport, len(sources)),
	}
}

func (e *LiquidityCompositeEngine) ID() string { return e.id }

// RequiredIndicators is empty: inputs arrive by injection, not samples.
func (e *LiquidityCompositeEngine) RequiredIndicators() []string { return nil }

// Dependencies lists the upstream engine ids for registration metadata.
func (e *LiquidityCompositeEngine) Dependencies() []string {
	ids := make([]string, 0, len(e.sources))
	for _, s := range e.sources {
		ids = append(ids, s.EngineID)
	}
	return ids
}

// InjectData records an upstream report for the next calculation.
func (e *LiquidityCompositeEngine) InjectData(sourceEngineID string, report *models.EngineReport) {
	e.mu.Lock()
	e.injected[sourceEngineID] = report
	e.mu.Unlock()
}

// ValidateData passes when at least one upstream report has arrived.
func (e *LiquidityCompositeEngine) ValidateData(_ models.SampleSet) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.injected) > 0
}

func (e *LiquidityCompositeEngine) Calculate(_ context.Context, _ models.SampleSet) (*models.EngineReport, error) {
	e.mu.Lock()
	reports := make(map[string]*models.EngineReport, len(e.injected))
	for k, v := range e.injected {
		reports[k] = v
	}
	e.mu.Unlock()

	if len(reports) == 0 {
		return nil, fmt.Errorf("no upstream reports injected into %s", e.id)
	}

	var (
		weightedSum float64
		weightTotal float64
		confSum     float64
		contributed int
		subMetrics  = make(map[string]float64, len(e.sources))
	)
	for _, src := range e.sources {
		r, ok := reports[src.EngineID]
		if !ok {
			continue
		}
		score := r.PrimaryMetric.Value
		subMetrics[src.EngineID] = score
		weightedSum += score * src.Weight
		weightTotal += src.Weight
		confSum += r.Confidence
		contributed++
	}
	if contributed == 0 {
		return nil, fmt.Errorf("none of the declared sources reported for %s", e.id)
	}

	composite := Round6(weightedSum / weightTotal)
	confidence := Round6(confSum / float64(contributed))

	now := time.Now()
	report := &models.EngineReport{
		EngineID:  e.id,
		Timestamp: now,
		PrimaryMetric: models.PrimaryMetric{
			Value:  composite,
			Change: Round6(composite - e.lastComposite),
		},
		Signal:     classifySignal(composite),
		Regime:     classifyRegime(composite),
		Confidence: confidence,
		Analysis: fmt.Sprintf("liquidity composite %.4f blended from %d/%d upstream engines",
			composite, contributed, len(e.sources)),
		SubMetrics: subMetrics,
	}
	if math.Abs(composite) > 2.5 {
		report.Alerts = append(report.Alerts, models.Alert{
			Level:     models.AlertCritical,
			Message:   fmt.Sprintf("%s composite at extreme level %.2f", e.id, composite),
			Timestamp: now,
		})
	}

	e.lastComposite = composite
	return report, nil
}

var (
	_ domsvc.Engine         = (*LiquidityCompositeEngine)(nil)
	_ domsvc.DataInjectable = (*LiquidityCompositeEngine)(nil)
)
