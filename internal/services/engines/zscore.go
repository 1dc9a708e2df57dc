package engines

import (
	"context"
	"fmt"
	"math"
	"time"

	"MacroPulse/internal/domain/models"
	domsvc "MacroPulse/internal/domain/service"
)

const (
	minWindowPoints   = 10 // below this an indicator scores neutral
	minCleanedPoints  = 5  // required after IQR outlier removal
	maxOutlierPenalty = 30.0
)

// IndicatorSpec declares one required indicator and its composite weight.
type IndicatorSpec struct {
	Name   string
	Weight float64
}

// ZScoreEngine scores a basket of indicators against their own history
// and blends them into a composite stress reading. It is the statistical
// regime engine behind most dashboard pillars.
type ZScoreEngine struct {
	id         string
	indicators []IndicatorSpec
	windows    map[string]*Window
	windowCap  int

	lastComposite float64
	hasLast       bool
}

type ZScoreOption func(*ZScoreEngine)

// WithWindowCap overrides the per-indicator history length.
func WithWindowCap(n int) ZScoreOption {
	return func(e *ZScoreEngine) {
		if n > 0 {
			e.windowCap = n
		}
	}
}

// NewZScoreEngine creates an engine for the given indicator basket.
func NewZScoreEngine(id string, indicators []IndicatorSpec, opts ...ZScoreOption) *ZScoreEngine {
	e := &ZScoreEngine{
		id:         id,
		indicators: indicators,
		windows:    make(map[string]*Window, len(indicators)),
		windowCap:  252,
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, spec := range indicators {
		e.windows[spec.Name] = NewWindow(e.windowCap)
	}
	return e
}

func (e *ZScoreEngine) ID() string { return e.id }

func (e *ZScoreEngine) RequiredIndicators() []string {
	names := make([]string, 0, len(e.indicators))
	for _, s := range e.indicators {
		names = append(names, s.Name)
	}
	return names
}

// ValidateData requires at least half of the declared indicators.
func (e *ZScoreEngine) ValidateData(samples models.SampleSet) bool {
	present := 0
	for _, spec := range e.indicators {
		if samples.Has(spec.Name) {
			present++
		}
	}
	return present*2 >= len(e.indicators)
}

// Calculate appends the latest samples to each indicator's window,
// scores every indicator as (current-mean)/stddev over its IQR-cleaned
// history, and classifies the weighted composite.
func (e *ZScoreEngine) Calculate(_ context.Context, samples models.SampleSet) (*models.EngineReport, error) {
	if len(e.indicators) == 0 {
		return nil, fmt.Errorf("engine %s has no indicators declared", e.id)
	}

	var (
		weightedSum float64
		weightTotal float64
		contributed int
		missing     int
		outliers    int
		positive    int
		negative    int
		neutral     int
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

		score := 0.0
		if w.Len() >= minWindowPoints {
			cleaned, removed := RemoveOutliersIQR(w.Values())
			outliers += removed
			if len(cleaned) >= minCleanedPoints {
				score = ZScore(sample.Value, cleaned)
			}
		}

		subMetrics[spec.Name] = score
		weightedSum += score * spec.Weight
		weightTotal += spec.Weight
		contributed++

		switch {
		case score > 0:
			positive++
		case score < 0:
			negative++
		default:
			neutral++
		}
	}

	composite := 0.0
	if contributed > 0 && weightTotal > 0 {
		composite = Round6(weightedSum / weightTotal)
	}

	confidence := e.confidence(missing, contributed, outliers, positive, negative, neutral)
	now := time.Now()

	report := &models.EngineReport{
		EngineID:      e.id,
		Timestamp:     now,
		PrimaryMetric: e.primaryMetric(composite),
		Signal:        classifySignal(composite),
		Regime:        classifyRegime(composite),
		Confidence:    confidence,
		Analysis:      e.analysis(composite, contributed, missing, outliers),
		SubMetrics:    subMetrics,
		Alerts:        e.alerts(composite, outliers, now),
	}

	e.lastComposite = composite
	e.hasLast = true
	return report, nil
}

func (e *ZScoreEngine) primaryMetric(composite float64) models.PrimaryMetric {
	pm := models.PrimaryMetric{Value: composite}
	if e.hasLast {
		pm.Change = Round6(composite - e.lastComposite)
		if e.lastComposite != 0 {
			pm.ChangePercent = Round6(pm.Change / math.Abs(e.lastComposite) * 100)
		}
	}
	return pm
}

// confidence starts at 100 and is scaled by the available-indicator
// share, an outlier penalty of 10 per removed point (capped), and the
// sign-agreement fraction of contributing indicators.
func (e *ZScoreEngine) confidence(missing, contributed, outliers, positive, negative, neutral int) float64 {
	conf := 100.0

	required := len(e.indicators)
	if required > 0 {
		conf *= float64(required-missing) / float64(required)
	}

	penalty := float64(outliers) * 10
	if penalty > maxOutlierPenalty {
		penalty = maxOutlierPenalty
	}
	conf -= penalty

	if contributed > 0 {
		majority := positive
		if negative > majority {
			majority = negative
		}
		if neutral > majority {
			majority = neutral
		}
		conf *= float64(majority) / float64(contributed)
	}

	if conf < 0 {
		conf = 0
	}
	if conf > 100 {
		conf = 100
	}
	return Round6(conf)
}

func (e *ZScoreEngine) analysis(composite float64, contributed, missing, outliers int) string {
	return fmt.Sprintf("composite %.4f (%s regime) from %d/%d indicators, %d outliers removed",
		composite, classifyRegime(composite), contributed, contributed+missing, outliers)
}

func (e *ZScoreEngine) alerts(composite float64, outliers int, now time.Time) []models.Alert {
	var alerts []models.Alert
	if math.Abs(composite) > 2.5 {
		alerts = append(alerts, models.Alert{
			Level:     models.AlertCritical,
			Message:   fmt.Sprintf("%s composite at extreme level %.2f", e.id, composite),
			Timestamp: now,
		})
	}
	if outliers > 2 {
		alerts = append(alerts, models.Alert{
			Level:     models.AlertWarning,
			Message:   fmt.Sprintf("%s removed %d outliers this cycle", e.id, outliers),
			Timestamp: now,
		})
	}
	return alerts
}

// classifyRegime maps |composite| onto the stress tier. The tiers are
// monotonic: a larger magnitude never maps to a milder regime.
func classifyRegime(composite float64) models.Regime {
	abs := math.Abs(composite)
	switch {
	case abs > 2.5:
		return models.RegimeExtreme
	case abs > 1.5:
		return models.RegimeElevated
	case abs > 0.8:
		return models.RegimeModerate
	default:
		return models.RegimeNormal
	}
}

// classifySignal maps the signed composite onto the trading signal.
func classifySignal(composite float64) models.Signal {
	switch {
	case composite > 2.0:
		return models.SignalRiskOff
	case composite > 1.0:
		return models.SignalWarning
	case composite < -2.0:
		return models.SignalRiskOn
	default:
		return models.SignalNeutral
	}
}

var _ domsvc.Engine = (*ZScoreEngine)(nil)
