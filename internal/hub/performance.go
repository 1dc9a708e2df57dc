package hub

import (
	"sync"
	"time"

	"MacroPulse/internal/domain/models"
)

const (
	successRateStep    = 2.0
	failureRatePenalty = 5.0
	trendWindow        = 10
)

// PerformanceTracker keeps the rolling execution record per engine.
// Success nudges the rate upward (capped at 100), failure drags it down
// (floored at 0) and increments the error counter. Records are never
// reset except through Reset, an explicit operator action.
type PerformanceTracker struct {
	mu      sync.RWMutex
	metrics map[string]*models.PerformanceMetrics
	deltas  map[string][]float64
}

func NewPerformanceTracker() *PerformanceTracker {
	return &PerformanceTracker{
		metrics: make(map[string]*models.PerformanceMetrics),
		deltas:  make(map[string][]float64),
	}
}

// RecordSuccess updates the record after a successful execution.
func (p *PerformanceTracker) RecordSuccess(engineID string, confidence float64, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.get(engineID)
	m.SuccessRate += successRateStep
	if m.SuccessRate > 100 {
		m.SuccessRate = 100
	}
	m.Confidence = confidence
	m.LastExecution = at
	p.pushDelta(engineID, successRateStep)
	m.Trend = p.trend(engineID)
}

// RecordFailure updates the record after a failed execution.
func (p *PerformanceTracker) RecordFailure(engineID string, err error, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.get(engineID)
	m.SuccessRate -= failureRatePenalty
	if m.SuccessRate < 0 {
		m.SuccessRate = 0
	}
	m.ErrorCount++
	m.LastExecution = at
	if err != nil {
		m.LastError = err.Error()
	}
	p.pushDelta(engineID, -failureRatePenalty)
	m.Trend = p.trend(engineID)
}

// Metrics returns a copy of one engine's record.
func (p *PerformanceTracker) Metrics(engineID string) (models.PerformanceMetrics, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.metrics[engineID]
	if !ok {
		return models.PerformanceMetrics{}, false
	}
	return *m, true
}

// All returns copies of every engine record.
func (p *PerformanceTracker) All() []models.PerformanceMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.PerformanceMetrics, 0, len(p.metrics))
	for _, m := range p.metrics {
		out = append(out, *m)
	}
	return out
}

// Reset clears one engine's record. Operator action only.
func (p *PerformanceTracker) Reset(engineID string) {
	p.mu.Lock()
	delete(p.metrics, engineID)
	delete(p.deltas, engineID)
	p.mu.Unlock()
}

func (p *PerformanceTracker) get(engineID string) *models.PerformanceMetrics {
	m, ok := p.metrics[engineID]
	if !ok {
		// new engines start optimistic so a single early failure does
		// not flag the whole system unhealthy
		m = &models.PerformanceMetrics{EngineID: engineID, SuccessRate: 100, Trend: models.TrendStable}
		p.metrics[engineID] = m
	}
	return m
}

func (p *PerformanceTracker) pushDelta(engineID string, d float64) {
	ds := append(p.deltas[engineID], d)
	if len(ds) > trendWindow {
		ds = ds[len(ds)-trendWindow:]
	}
	p.deltas[engineID] = ds
}

func (p *PerformanceTracker) trend(engineID string) models.Trend {
	sum := 0.0
	for _, d := range p.deltas[engineID] {
		sum += d
	}
	switch {
	case sum > successRateStep:
		return models.TrendImproving
	case sum < -failureRatePenalty:
		return models.TrendDegrading
	default:
		return models.TrendStable
	}
}
