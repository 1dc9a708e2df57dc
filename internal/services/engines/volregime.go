package engines

import (
	"context"
	"fmt"
	"math"
	"time"

	"MacroPulse/internal/domain/models"
	domsvc "MacroPulse/internal/domain/service"
)

// VolRegimeEngine classifies the volatility regime of its basket: the
// rolling dispersion of each indicator's changes is ranked against the
// window's own history, and the percentile drives the regime tier.
type VolRegimeEngine struct {
	id         string
	indicators []IndicatorSpec
	windows    map[string]*Window
	volWindows map[string]*Window
	volSpan    int
}

func NewVolRegimeEngine(id string, indicators []IndicatorSpec, windowCap, volSpan int) *VolRegimeEngine {
	if volSpan <= 1 {
		volSpan = 20
	}
	e := &VolRegimeEngine{
		id:         id,
		indicators: indicators,
		windows:    make(map[string]*Window, len(indicators)),
		volWindows: make(map[string]*Window, len(indicators)),
		volSpan:    volSpan,
	}
	for _, spec := range indicators {
		e.windows[spec.Name] = NewWindow(windowCap)
		e.volWindows[spec.Name] = NewWindow(windowCap)
	}
	return e
}

func (e *VolRegimeEngine) ID() string { return e.id }

func (e *VolRegimeEngine) RequiredIndicators() []string {
	names := make([]string, 0, len(e.indicators))
	for _, s := range e.indicators {
		names = append(names, s.Name)
	}
	return names
}

func (e *VolRegimeEngine) ValidateData(samples models.SampleSet) bool {
	present := 0
	for _, spec := range e.indicators {
		if samples.Has(spec.Name) {
			present++
		}
	}
	return present*2 >= len(e.indicators)
}

func (e *VolRegimeEngine) Calculate(_ context.Context, samples models.SampleSet) (*models.EngineReport, error) {
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

		pct, vol := e.volPercentile(spec.Name, w)
		subMetrics[spec.Name] = Round6(pct)
		subMetrics[spec.Name+"_vol"] = Round6(vol)
		weightedSum += pct * spec.Weight
		weightTotal += spec.Weight
		contributed++
	}

	// composite percentile in [0,1]; rescale to the shared score axis
	// so regime and signal thresholds stay comparable across engines.
	percentile := 0.0
	if contributed > 0 && weightTotal > 0 {
		percentile = weightedSum / weightTotal
	}
	composite := Round6((percentile - 0.5) * 5)

	confidence := 100.0
	if len(e.indicators) > 0 {
		confidence *= float64(len(e.indicators)-missing) / float64(len(e.indicators))
	}

	now := time.Now()
	report := &models.EngineReport{
		EngineID:  e.id,
		Timestamp: now,
		PrimaryMetric: models.PrimaryMetric{
			Value: Round6(percentile * 100),
		},
		Signal:     classifySignal(composite),
		Regime:     classifyRegime(composite),
		Confidence: Round6(confidence),
		Analysis: fmt.Sprintf("volatility at %.0fth percentile of recent history from %d/%d indicators",
			percentile*100, contributed, len(e.indicators)),
		SubMetrics: subMetrics,
	}
	if percentile > 0.95 {
		report.Alerts = append(report.Alerts, models.Alert{
			Level:     models.AlertCritical,
			Message:   fmt.Sprintf("%s volatility above the 95th percentile", e.id),
			Timestamp: now,
		})
	}
	return report, nil
}

// volPercentile computes the rolling dispersion of changes over volSpan
// and ranks it against the accumulated dispersion history.
func (e *VolRegimeEngine) volPercentile(name string, w *Window) (pct, vol float64) {
	values := w.Values()
	if len(values) < minWindowPoints {
		return 0.5, 0
	}
	span := e.volSpan
	if span >= len(values) {
		span = len(values) - 1
	}
	changes := make([]float64, 0, span)
	for i := len(values) - span; i < len(values); i++ {
		changes = append(changes, values[i]-values[i-1])
	}
	vol = StdDev(changes)
	if math.IsNaN(vol) {
		vol = 0
	}

	vw := e.volWindows[name]
	vw.Append(vol)
	if vw.Len() < 2 {
		return 0.5, vol
	}
	return Percentile(vol, vw.Values()), vol
}

var _ domsvc.Engine = (*VolRegimeEngine)(nil)
