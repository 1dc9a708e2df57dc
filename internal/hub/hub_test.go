package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"MacroPulse/internal/bridge"
	"MacroPulse/internal/domain/models"
	"MacroPulse/internal/orchestrator"
	"MacroPulse/internal/registry"
	"MacroPulse/pkg/clock"
	"MacroPulse/pkg/logger"
)

type hubStubEngine struct {
	id  string
	err error
}

func (s *hubStubEngine) ID() string                         { return s.id }
func (s *hubStubEngine) RequiredIndicators() []string       { return nil }
func (s *hubStubEngine) ValidateData(models.SampleSet) bool { return true }
func (s *hubStubEngine) Calculate(context.Context, models.SampleSet) (*models.EngineReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.EngineReport{
		EngineID:      s.id,
		Timestamp:     time.Now(),
		PrimaryMetric: models.PrimaryMetric{Value: 1},
		Signal:        models.SignalNeutral,
		Regime:        models.RegimeNormal,
		Confidence:    88,
		SubMetrics:    map[string]float64{"x": 1},
	}, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return l
}

func newTestHub(t *testing.T, fake *clock.Fake, engines ...*hubStubEngine) *Hub {
	t.Helper()
	reg := registry.New(testLogger(t))
	for _, e := range engines {
		require.NoError(t, reg.Register(e, models.EngineMetadata{ID: e.id, Phase: models.PhaseFoundation}))
	}
	orch := orchestrator.New(testLogger(t), reg)
	br := bridge.New(testLogger(t), bridge.WithClock(fake))
	return New(testLogger(t), orch, br, nil, WithClock(fake))
}

func TestExecuteIntegratedPipeline(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))
	ok := &hubStubEngine{id: "ok"}
	bad := &hubStubEngine{id: "bad", err: errors.New("broken")}
	h := newTestHub(t, fake, ok, bad)

	var mu sync.Mutex
	var kinds []EventKind
	h.AddListener(func(ev Event) {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
	})

	outcome, err := h.ExecuteIntegratedPipeline(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, outcome.Reports, 1)
	require.Contains(t, outcome.Reports, "ok")
	require.Len(t, outcome.Results, 2)
	require.Equal(t, orchestrator.StatusFailed, outcome.Results["bad"].Status)

	// successful engine got capped at 100, the failed one was penalized
	m, _ := h.Performance().Metrics("ok")
	require.Equal(t, 100.0, m.SuccessRate)
	require.Equal(t, 88.0, m.Confidence)
	m, _ = h.Performance().Metrics("bad")
	require.Equal(t, 95.0, m.SuccessRate)

	require.Equal(t, []EventKind{EventPipelineStarted, EventPipelineCompleted}, kinds)
	require.GreaterOrEqual(t, outcome.Health.Overall, 0.0)
	require.LessOrEqual(t, outcome.Health.Overall, 1.0)
}

func TestPipelineBridgesSuccessfulReports(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))
	reg := registry.New(testLogger(t))
	require.NoError(t, reg.Register(&hubStubEngine{id: "ok"}, models.EngineMetadata{ID: "ok"}))
	orch := orchestrator.New(testLogger(t), reg)
	br := bridge.New(testLogger(t), bridge.WithClock(fake))
	h := New(testLogger(t), orch, br, nil, WithClock(fake))

	_, err := h.ExecuteIntegratedPipeline(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, br.Get("ok", models.FormatTile))
	require.NotNil(t, br.Get("ok", models.FormatChart))
}

func TestHealthMonitorEmitsCritical(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))
	h := newTestHub(t, fake)

	// drive one engine's record into the ground
	for i := 0; i < 25; i++ {
		h.Performance().RecordFailure("sick", errors.New("down"), fake.Now())
	}

	events := make(chan Event, 4)
	h.AddListener(func(ev Event) { events <- ev })

	h.StartHealthMonitor()
	defer h.StopHealthMonitor()

	// the monitor installs its ticker asynchronously, keep advancing
	// until the check fires
	deadline := time.After(2 * time.Second)
	for {
		fake.Advance(31 * time.Second)
		select {
		case ev := <-events:
			require.Equal(t, EventHealthCritical, ev.Kind)
			require.NotNil(t, ev.Health)
			require.Contains(t, ev.Health.FailingEngines, "sick")
			return
		case <-deadline:
			t.Fatalf("health monitor never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHubHealthIdleSystem(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))
	h := newTestHub(t, fake)
	health := h.Health()
	require.Equal(t, 1.0, health.Overall, "no engines means nothing is failing")
}
