package models

import "time"

// IndicatorSample is the raw input unit handed to engines by the ingestion
// layer. Immutable once produced.
type IndicatorSample struct {
	Symbol     string
	Timestamp  time.Time
	Value      float64
	Confidence float64 // 0 means unknown
	Source     string
}

// SampleSet maps indicator identifiers to their latest sample.
type SampleSet map[string]*IndicatorSample

// Has reports whether a non-nil sample exists for the indicator.
func (s SampleSet) Has(indicator string) bool {
	sm, ok := s[indicator]
	return ok && sm != nil
}
