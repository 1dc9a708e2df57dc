package hub

import (
	"time"

	"MacroPulse/internal/domain/models"
)

const (
	healthWarningThreshold  = 0.8
	healthCriticalThreshold = 0.7
	stalenessWindow         = 5 * time.Minute
)

// HealthLevel grades an aggregate health snapshot.
type HealthLevel string

const (
	HealthOK       HealthLevel = "ok"
	HealthWarning  HealthLevel = "warning"
	HealthCritical HealthLevel = "critical"
)

// computeHealth derives the aggregate snapshot from per-engine records.
// Engine health is the mean success rate; data-flow health is the share
// of engines that executed recently; integration health is the share of
// engines whose rate holds above half. All components are in [0,1].
func computeHealth(records []models.PerformanceMetrics, now time.Time) models.SystemHealthMetrics {
	h := models.SystemHealthMetrics{
		Timestamp:   now,
		EngineCount: len(records),
	}
	if len(records) == 0 {
		h.EngineHealth = 1
		h.DataFlowHealth = 1
		h.IntegrationHealth = 1
		h.Overall = 1
		return h
	}

	var rateSum float64
	var fresh, stable int
	for _, m := range records {
		rateSum += m.SuccessRate / 100
		if !m.LastExecution.IsZero() && now.Sub(m.LastExecution) < stalenessWindow {
			fresh++
		}
		if m.SuccessRate >= 50 {
			stable++
		} else {
			h.FailingEngines = append(h.FailingEngines, m.EngineID)
		}
	}

	n := float64(len(records))
	h.EngineHealth = rateSum / n
	h.DataFlowHealth = float64(fresh) / n
	h.IntegrationHealth = float64(stable) / n
	h.Overall = (h.EngineHealth + h.DataFlowHealth + h.IntegrationHealth) / 3
	return h
}

func healthLevel(h models.SystemHealthMetrics) HealthLevel {
	switch {
	case h.Overall < healthCriticalThreshold:
		return HealthCritical
	case h.Overall < healthWarningThreshold:
		return HealthWarning
	default:
		return HealthOK
	}
}
