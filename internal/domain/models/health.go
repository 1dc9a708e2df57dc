package models

import "time"

// Trend summarizes the recent direction of an engine's success rate.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDegrading Trend = "degrading"
)

// PerformanceMetrics is the per-engine rolling execution record. Mutated
// after every execution attempt, never reset except by operator action.
type PerformanceMetrics struct {
	EngineID      string
	SuccessRate   float64 // 0..100
	Confidence    float64 // 0..100, last reported
	ErrorCount    int64
	LastExecution time.Time
	LastError     string
	Trend         Trend
}

// SystemHealthMetrics is the aggregate pipeline health snapshot.
// Component scores are in [0,1].
type SystemHealthMetrics struct {
	Timestamp         time.Time
	EngineHealth      float64
	DataFlowHealth    float64
	IntegrationHealth float64
	Overall           float64
	EngineCount       int
	FailingEngines    []string
}
