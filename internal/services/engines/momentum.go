package engines

import (
	"context"
	"fmt"
	"math"
	"time"

	"MacroPulse/internal/domain/models"
	domsvc "MacroPulse/internal/domain/service"
)

// MomentumEngine reads directional persistence from its indicator
// basket: rate of change over a lookback plus the slope of a fast EMA
// against a slow EMA, normalized by the window's own dispersion.
type MomentumEngine struct {
	id         string
	indicators []IndicatorSpec
	windows    map[string]*Window
	lookback   int

	lastComposite float64
	hasLast       bool
}

func NewMomentumEngine(id string, indicators []IndicatorSpec, windowCap, lookback int) *MomentumEngine {
	if lookback <= 0 {
		lookback = 20
	}
	e := &MomentumEngine{
		id:         id,
		indicators: indicators,
		windows:    make(map[string]*Window, len(indicators)),
		lookback:   lookback,
	}
	for _, spec := range indicators {
		e.windows[spec.Name] = NewWindow(windowCap)
	}
	return e
}

func (e *MomentumEngine) ID() string { return e.id }

func (e *MomentumEngine) RequiredIndicators() []string {
	names := make([]string, 0, len(e.indicators))
	for _, s := range e.indicators {
		names = append(names, s.Name)
	}
	return names
}

func (e *MomentumEngine) ValidateData(samples models.SampleSet) bool {
	present := 0
	for _, spec := range e.indicators {
		if samples.Has(spec.Name) {
			present++
		}
	}
	return present*2 >= len(e.indicators)
}

func (e *MomentumEngine) Calculate(_ context.Context, samples models.SampleSet) (*models.EngineReport, error) {
	var (
		weightedSum float64
		weightTotal float64
		contributed int
		missing     int
		subMetrics  = make(map[string]float64, len(e.indicators))
	)

	for _, spec := range e.indicators {
		sample, ok := samples[spec.Name]
		if !ok || sample == nil {
			missing++
			continue
		}
		w := e.windows[spec.Name]
		w.Append(sample.Value)

		score := e.score(w)
		subMetrics[spec.Name] = score
		weightedSum += score * spec.Weight
		weightTotal += spec.Weight
		contributed++
	}

	composite := 0.0
	if contributed > 0 && weightTotal > 0 {
		composite = Round6(weightedSum / weightTotal)
	}

	confidence := 100.0
	if len(e.indicators) > 0 {
		confidence *= float64(len(e.indicators)-missing) / float64(len(e.indicators))
	}

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
		Confidence: Round6(confidence),
		Analysis: fmt.Sprintf("momentum composite %.4f over %d-period lookback from %d/%d indicators",
			composite, e.lookback, contributed, len(e.indicators)),
		SubMetrics: subMetrics,
	}
	if math.Abs(composite) > 2.5 {
		report.Alerts = append(report.Alerts, models.Alert{
			Level:     models.AlertCritical,
			Message:   fmt.Sprintf("%s momentum at extreme level %.2f", e.id, composite),
			Timestamp: now,
		})
	}

	e.lastComposite = composite
	e.hasLast = true
	return report, nil
}

// score combines lookback rate-of-change with EMA crossover slope,
// scaled by the window's standard deviation so baskets with different
// units remain comparable.
func (e *MomentumEngine) score(w *Window) float64 {
	values := w.Values()
	if len(values) < minWindowPoints {
		return 0
	}
	lb := e.lookback
	if lb >= len(values) {
		lb = len(values) - 1
	}
	current := values[len(values)-1]
	past := values[len(values)-1-lb]

	sd := StdDev(values)
	if sd == 0 {
		return 0
	}
	roc := (current - past) / sd

	fast := EMA(values, lb/2+1)
	slow := EMA(values, lb)
	slope := (fast - slow) / sd

	return Round6(0.7*roc + 0.3*slope)
}

var _ domsvc.Engine = (*MomentumEngine)(nil)
