package models

import "time"

// Signal classifies the directional read of a composite score.
type Signal string

const (
	SignalRiskOn  Signal = "RISK_ON"
	SignalRiskOff Signal = "RISK_OFF"
	SignalWarning Signal = "WARNING"
	SignalNeutral Signal = "NEUTRAL"
)

// Regime is the stress tier derived from the composite magnitude.
type Regime string

const (
	RegimeNormal   Regime = "normal"
	RegimeModerate Regime = "moderate"
	RegimeElevated Regime = "elevated"
	RegimeExtreme  Regime = "extreme"
)

// AlertLevel grades an engine alert.
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// Alert is an engine-raised condition attached to a report.
type Alert struct {
	Level     AlertLevel
	Message   string
	Timestamp time.Time
}

// PrimaryMetric is the headline value of a report.
type PrimaryMetric struct {
	Value         float64
	Change        float64
	ChangePercent float64
}

// EngineReport is produced once per execution cycle and is immutable.
// Consumed by the data bridge and presentation collaborators.
type EngineReport struct {
	EngineID      string
	Timestamp     time.Time
	PrimaryMetric PrimaryMetric
	Signal        Signal
	Regime        Regime
	Confidence    float64 // 0..100
	Analysis      string
	SubMetrics    map[string]float64
	Alerts        []Alert
}

// Pillar groups engines by dashboard category.
type Pillar string

const (
	PillarLiquidity  Pillar = "liquidity"
	PillarMomentum   Pillar = "momentum"
	PillarVolatility Pillar = "volatility"
	PillarCredit     Pillar = "credit"
)

// Phase orders engine execution batches. Engines in a later phase run
// only after every engine in earlier phases has completed.
type Phase int

const (
	PhaseFoundation Phase = iota
	PhaseCore
	PhaseSynthesis
	PhaseExecution
)

var phaseNames = map[Phase]string{
	PhaseFoundation: "foundation",
	PhaseCore:       "core",
	PhaseSynthesis:  "synthesis",
	PhaseExecution:  "execution",
}

func (p Phase) String() string {
	if n, ok := phaseNames[p]; ok {
		return n
	}
	return "unknown"
}

// Phases lists execution phases in declared order.
func Phases() []Phase {
	return []Phase{PhaseFoundation, PhaseCore, PhaseSynthesis, PhaseExecution}
}

// EngineMetadata is the static registration record for an engine.
// Created at registration time, read-only thereafter. Dependencies are
// advisory data for the orchestrator, not enforced at registration.
type EngineMetadata struct {
	ID           string
	Name         string
	Pillar       Pillar
	Phase        Phase
	Priority     int
	Category     string
	Dependencies []string
}
