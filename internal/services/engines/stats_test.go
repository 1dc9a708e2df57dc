package engines

import (
	"math"
	"testing"
)

func TestRound6(t *testing.T) {
	if got := Round6(1.23456789); got != 1.234568 {
		t.Fatalf("unexpected rounding %v", got)
	}
	if got := Round6(-0.0000004); got != 0 {
		t.Fatalf("expected zero, got %v", got)
	}
}

func TestStdDevConstantSeries(t *testing.T) {
	if got := StdDev([]float64{5, 5, 5, 5}); got != 0 {
		t.Fatalf("expected 0 for constant series, got %v", got)
	}
	if got := StdDev([]float64{7}); got != 0 {
		t.Fatalf("expected 0 for single value, got %v", got)
	}
}

func TestStdDevBessel(t *testing.T) {
	// sample variance of {2,4,4,4,5,5,7,9} with n-1 is 32/7
	got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	want := math.Sqrt(32.0 / 7.0)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("stddev %v, want %v", got, want)
	}
}

func TestRemoveOutliersIQR(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 100}
	cleaned, removed := RemoveOutliersIQR(xs)
	if removed != 1 {
		t.Fatalf("expected 1 outlier removed, got %d", removed)
	}
	for _, v := range cleaned {
		if v == 100 {
			t.Fatalf("outlier survived cleaning")
		}
	}
	if len(cleaned) != 10 {
		t.Fatalf("expected 10 cleaned values, got %d", len(cleaned))
	}
}

func TestRemoveOutliersIQRShortSeries(t *testing.T) {
	xs := []float64{1, 2, 1000}
	cleaned, removed := RemoveOutliersIQR(xs)
	if removed != 0 || len(cleaned) != 3 {
		t.Fatalf("short series must pass through unchanged")
	}
}

func TestZScoreZeroDeviation(t *testing.T) {
	if got := ZScore(9, []float64{5, 5, 5, 5, 5}); got != 0 {
		t.Fatalf("expected 0 when deviation collapses, got %v", got)
	}
}

func TestZScoreKnownValue(t *testing.T) {
	// mean 3, stddev sqrt(2.5) over {1..5}
	got := ZScore(5, []float64{1, 2, 3, 4, 5})
	want := Round6(2 / math.Sqrt(2.5))
	if got != want {
		t.Fatalf("zscore %v, want %v", got, want)
	}
}

func TestPercentile(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	if got := Percentile(3, xs); got != 0.5 {
		t.Fatalf("percentile %v, want 0.5", got)
	}
	if got := Percentile(10, xs); got != 1 {
		t.Fatalf("percentile %v, want 1", got)
	}
	if got := Percentile(0, nil); got != 0 {
		t.Fatalf("empty series must rank 0, got %v", got)
	}
}

func TestEMA(t *testing.T) {
	if got := EMA(nil, 5); got != 0 {
		t.Fatalf("empty ema %v", got)
	}
	if got := EMA([]float64{1, 2, 3}, 1); got != 3 {
		t.Fatalf("span 1 must return last value, got %v", got)
	}
	constant := EMA([]float64{4, 4, 4, 4}, 3)
	if constant != 4 {
		t.Fatalf("constant ema %v", constant)
	}
}
