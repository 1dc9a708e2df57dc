package engines

import (
	"math"
	"sort"
)

// Round6 rounds to 6 decimal digits, the precision reports are emitted at.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Mean returns the arithmetic mean, 0 for empty input.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the sample standard deviation (Bessel's correction).
// Returns 0 for fewer than two values.
func StdDev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	m := Mean(xs)
	sum2 := 0.0
	for _, x := range xs {
		d := x - m
		sum2 += d * d
	}
	variance := sum2 / float64(n-1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// quartile returns the q-th quantile of sorted xs with linear interpolation.
func quartile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// RemoveOutliersIQR drops values outside [Q1-1.5*IQR, Q3+1.5*IQR] and
// returns the cleaned series in original order plus the removed count.
func RemoveOutliersIQR(xs []float64) ([]float64, int) {
	if len(xs) < 4 {
		return xs, 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	q1 := quartile(sorted, 0.25)
	q3 := quartile(sorted, 0.75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	cleaned := make([]float64, 0, len(xs))
	removed := 0
	for _, x := range xs {
		if x < lower || x > upper {
			removed++
			continue
		}
		cleaned = append(cleaned, x)
	}
	return cleaned, removed
}

// ZScore scores current against the cleaned series: (current-mean)/std,
// 0 when the deviation collapses. Rounded to 6 decimals.
func ZScore(current float64, cleaned []float64) float64 {
	sd := StdDev(cleaned)
	if sd == 0 {
		return 0
	}
	return Round6((current - Mean(cleaned)) / sd)
}

// EMA computes an exponential moving average over xs with the given span.
func EMA(xs []float64, span int) float64 {
	if len(xs) == 0 {
		return 0
	}
	if span <= 1 {
		return xs[len(xs)-1]
	}
	alpha := 2.0 / (float64(span) + 1)
	ema := xs[0]
	for _, x := range xs[1:] {
		ema = alpha*x + (1-alpha)*ema
	}
	return ema
}

// Percentile returns the fraction of xs strictly below v, in [0,1].
func Percentile(v float64, xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	below := 0
	for _, x := range xs {
		if x < v {
			below++
		}
	}
	return float64(below) / float64(len(xs))
}
