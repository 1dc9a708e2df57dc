package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"MacroPulse/internal/domain/models"
)

func TestComputeHealthEmpty(t *testing.T) {
	h := computeHealth(nil, time.Now())
	require.Equal(t, 1.0, h.Overall)
	require.Equal(t, 1.0, h.EngineHealth)
	require.Equal(t, 1.0, h.DataFlowHealth)
	require.Equal(t, 1.0, h.IntegrationHealth)
	require.Zero(t, h.EngineCount)
}

func TestComputeHealthComponents(t *testing.T) {
	now := time.Now()
	records := []models.PerformanceMetrics{
		{EngineID: "fresh_ok", SuccessRate: 100, LastExecution: now.Add(-time.Minute)},
		{EngineID: "stale_bad", SuccessRate: 40, LastExecution: now.Add(-time.Hour)},
	}
	h := computeHealth(records, now)

	require.Equal(t, 2, h.EngineCount)
	require.InDelta(t, 0.7, h.EngineHealth, 1e-9)      // mean of 1.0 and 0.4
	require.InDelta(t, 0.5, h.DataFlowHealth, 1e-9)    // one of two fresh
	require.InDelta(t, 0.5, h.IntegrationHealth, 1e-9) // one of two above half
	require.InDelta(t, 17.0/30.0, h.Overall, 1e-9)     // mean of the three
	require.Equal(t, []string{"stale_bad"}, h.FailingEngines)
}

func TestComputeHealthInRange(t *testing.T) {
	now := time.Now()
	records := []models.PerformanceMetrics{
		{EngineID: "a", SuccessRate: 0},
		{EngineID: "b", SuccessRate: 100, LastExecution: now},
	}
	h := computeHealth(records, now)
	for _, v := range []float64{h.EngineHealth, h.DataFlowHealth, h.IntegrationHealth, h.Overall} {
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 1.0)
	}
}

func TestHealthLevelThresholds(t *testing.T) {
	cases := []struct {
		overall float64
		want    HealthLevel
	}{
		{1.0, HealthOK},
		{0.8, HealthOK},
		{0.79, HealthWarning},
		{0.7, HealthWarning},
		{0.69, HealthCritical},
		{0, HealthCritical},
	}
	for _, c := range cases {
		got := healthLevel(models.SystemHealthMetrics{Overall: c.overall})
		require.Equal(t, c.want, got, "overall %v", c.overall)
	}
}
