package models

import "time"

// Format names an output representation of an engine report.
type Format string

const (
	FormatTile      Format = "tile"
	FormatIndicator Format = "indicator"
	FormatChart     Format = "chart"
)

// BridgedData is a cache entry derived from an engine report. A new
// execution supersedes the entry; it is never mutated in place.
type BridgedData struct {
	EngineID  string
	Format    Format
	Payload   any
	Timestamp time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry's TTL has elapsed at now.
func (b *BridgedData) Expired(now time.Time) bool {
	return now.After(b.ExpiresAt)
}

// TilePayload is the compact dashboard-tile view of a report.
type TilePayload struct {
	Value      float64
	Change     float64
	Signal     Signal
	Regime     Regime
	Confidence float64
	Analysis   string
}

// IndicatorPayload carries sub-metrics and alerts for detail views.
type IndicatorPayload struct {
	Primary    PrimaryMetric
	SubMetrics map[string]float64
	Alerts     []Alert
}

// ChartPayload is a plottable point series keyed by sub-metric name.
type ChartPayload struct {
	Timestamp time.Time
	Series    map[string]float64
}
