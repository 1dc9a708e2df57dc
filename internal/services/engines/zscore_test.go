package engines

import (
	"context"
	"testing"
	"time"

	"MacroPulse/internal/domain/models"
)

func sampleSet(values map[string]float64) models.SampleSet {
	set := make(models.SampleSet, len(values))
	for name, v := range values {
		set[name] = &models.IndicatorSample{
			Symbol:    name,
			Timestamp: time.Now(),
			Value:     v,
			Source:    "test",
		}
	}
	return set
}

func TestClassifyRegime(t *testing.T) {
	cases := []struct {
		composite float64
		want      models.Regime
	}{
		{0, models.RegimeNormal},
		{0.8, models.RegimeNormal},
		{-1.2, models.RegimeModerate},
		{1.6, models.RegimeElevated},
		{-2.6, models.RegimeExtreme},
		{3.0, models.RegimeExtreme},
	}
	for _, c := range cases {
		if got := classifyRegime(c.composite); got != c.want {
			t.Fatalf("classifyRegime(%v) = %v, want %v", c.composite, got, c.want)
		}
	}
}

func TestClassifySignal(t *testing.T) {
	cases := []struct {
		composite float64
		want      models.Signal
	}{
		{0, models.SignalNeutral},
		{1.0, models.SignalNeutral},
		{1.5, models.SignalWarning},
		{2.5, models.SignalRiskOff},
		{-2.5, models.SignalRiskOn},
		{-1.9, models.SignalNeutral},
	}
	for _, c := range cases {
		if got := classifySignal(c.composite); got != c.want {
			t.Fatalf("classifySignal(%v) = %v, want %v", c.composite, got, c.want)
		}
	}
}

func TestZScoreEngineValidateData(t *testing.T) {
	e := NewZScoreEngine("test", []IndicatorSpec{
		{Name: "a", Weight: 0.5},
		{Name: "b", Weight: 0.3},
		{Name: "c", Weight: 0.2},
	})
	if !e.ValidateData(sampleSet(map[string]float64{"a": 1, "b": 2})) {
		t.Fatalf("2 of 3 indicators must validate")
	}
	if e.ValidateData(sampleSet(map[string]float64{"a": 1})) {
		t.Fatalf("1 of 3 indicators must not validate")
	}
}

func TestZScoreEngineNeutralOnShortHistory(t *testing.T) {
	e := NewZScoreEngine("test", []IndicatorSpec{{Name: "a", Weight: 1}})
	report, err := e.Calculate(context.Background(), sampleSet(map[string]float64{"a": 42}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.PrimaryMetric.Value != 0 {
		t.Fatalf("short history must score 0, got %v", report.PrimaryMetric.Value)
	}
	if report.Signal != models.SignalNeutral || report.Regime != models.RegimeNormal {
		t.Fatalf("short history must stay neutral: %v %v", report.Signal, report.Regime)
	}
}

func TestZScoreEngineConstantSeries(t *testing.T) {
	e := NewZScoreEngine("test", []IndicatorSpec{{Name: "a", Weight: 1}})
	ctx := context.Background()
	var report *models.EngineReport
	var err error
	for i := 0; i < 15; i++ {
		report, err = e.Calculate(ctx, sampleSet(map[string]float64{"a": 5}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if report.PrimaryMetric.Value != 0 {
		t.Fatalf("zero-deviation series must score 0, got %v", report.PrimaryMetric.Value)
	}
	if report.Confidence != 100 {
		t.Fatalf("confidence %v, want 100", report.Confidence)
	}
}

func TestZScoreEngineSpikeGoesRiskOff(t *testing.T) {
	e := NewZScoreEngine("test", []IndicatorSpec{{Name: "a", Weight: 1}})
	ctx := context.Background()
	for i := 1; i <= 20; i++ {
		if _, err := e.Calculate(ctx, sampleSet(map[string]float64{"a": float64(i)})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	report, err := e.Calculate(ctx, sampleSet(map[string]float64{"a": 100}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Signal != models.SignalRiskOff {
		t.Fatalf("spike must read risk-off, got %v", report.Signal)
	}
	if report.Regime != models.RegimeExtreme {
		t.Fatalf("spike must read extreme, got %v", report.Regime)
	}
	if len(report.Alerts) == 0 || report.Alerts[0].Level != models.AlertCritical {
		t.Fatalf("extreme composite must raise a critical alert: %+v", report.Alerts)
	}
	// one outlier removed costs 10 confidence points
	if report.Confidence != 90 {
		t.Fatalf("confidence %v, want 90", report.Confidence)
	}
}

func TestZScoreEngineMissingIndicatorLowersConfidence(t *testing.T) {
	e := NewZScoreEngine("test", []IndicatorSpec{
		{Name: "a", Weight: 0.5},
		{Name: "b", Weight: 0.5},
	})
	ctx := context.Background()
	var report *models.EngineReport
	var err error
	for i := 0; i < 12; i++ {
		report, err = e.Calculate(ctx, sampleSet(map[string]float64{"a": 5}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if report.Confidence != 50 {
		t.Fatalf("half the basket missing must halve confidence, got %v", report.Confidence)
	}
	if _, ok := report.SubMetrics["b"]; ok {
		t.Fatalf("missing indicator must not appear in sub metrics")
	}
}

func TestLiquidityCompositeInjection(t *testing.T) {
	e := NewLiquidityCompositeEngine("liq", []SourceWeight{
		{EngineID: "up1", Weight: 0.6},
		{EngineID: "up2", Weight: 0.4},
	})
	if e.ValidateData(nil) {
		t.Fatalf("no injected reports must fail validation")
	}

	e.InjectData("up1", &models.EngineReport{
		EngineID:      "up1",
		PrimaryMetric: models.PrimaryMetric{Value: 2.0},
		Confidence:    80,
	})
	e.InjectData("up2", &models.EngineReport{
		EngineID:      "up2",
		PrimaryMetric: models.PrimaryMetric{Value: -1.0},
		Confidence:    60,
	})
	if !e.ValidateData(nil) {
		t.Fatalf("injected reports must validate")
	}

	report, err := e.Calculate(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// (2.0*0.6 + -1.0*0.4) / 1.0
	if report.PrimaryMetric.Value != 0.8 {
		t.Fatalf("composite %v, want 0.8", report.PrimaryMetric.Value)
	}
	if report.Confidence != 70 {
		t.Fatalf("confidence %v, want mean of upstream confidences", report.Confidence)
	}
}

func TestMomentumEngineFlatSeriesNeutral(t *testing.T) {
	e := NewMomentumEngine("mom", []IndicatorSpec{{Name: "a", Weight: 1}}, 100, 10)
	ctx := context.Background()
	var report *models.EngineReport
	var err error
	for i := 0; i < 15; i++ {
		report, err = e.Calculate(ctx, sampleSet(map[string]float64{"a": 10}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if report.PrimaryMetric.Value != 0 {
		t.Fatalf("flat series must have no momentum, got %v", report.PrimaryMetric.Value)
	}
	if report.Signal != models.SignalNeutral {
		t.Fatalf("flat series must be neutral, got %v", report.Signal)
	}
}

func TestMomentumEngineUptrendPositive(t *testing.T) {
	e := NewMomentumEngine("mom", []IndicatorSpec{{Name: "a", Weight: 1}}, 100, 10)
	ctx := context.Background()
	var report *models.EngineReport
	var err error
	for i := 1; i <= 30; i++ {
		report, err = e.Calculate(ctx, sampleSet(map[string]float64{"a": float64(i)}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if report.PrimaryMetric.Value <= 0 {
		t.Fatalf("steady uptrend must score positive, got %v", report.PrimaryMetric.Value)
	}
}

func TestVolRegimeEngineNeutralWithoutHistory(t *testing.T) {
	e := NewVolRegimeEngine("vol", []IndicatorSpec{{Name: "a", Weight: 1}}, 100, 10)
	report, err := e.Calculate(context.Background(), sampleSet(map[string]float64{"a": 20}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// without history the engine sits at the 50th percentile
	if report.PrimaryMetric.Value != 50 {
		t.Fatalf("expected 50th percentile, got %v", report.PrimaryMetric.Value)
	}
	if report.Regime != models.RegimeNormal {
		t.Fatalf("expected normal regime, got %v", report.Regime)
	}
}
