package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"MacroPulse/internal/domain/models"
	"MacroPulse/internal/registry"
	"MacroPulse/pkg/logger"
)

type stubEngine struct {
	id    string
	valid bool
	err   error
	block chan struct{}

	mu       sync.Mutex
	injected map[string]*models.EngineReport
	value    float64
}

func newStubEngine(id string, value float64) *stubEngine {
	return &stubEngine{id: id, valid: true, value: value, injected: make(map[string]*models.EngineReport)}
}

func (s *stubEngine) ID() string                         { return s.id }
func (s *stubEngine) RequiredIndicators() []string       { return nil }
func (s *stubEngine) ValidateData(models.SampleSet) bool { return s.valid }

func (s *stubEngine) InjectData(src string, r *models.EngineReport) {
	s.mu.Lock()
	s.injected[src] = r
	s.mu.Unlock()
}

func (s *stubEngine) Injected() map[string]*models.EngineReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*models.EngineReport, len(s.injected))
	for k, v := range s.injected {
		out[k] = v
	}
	return out
}

func (s *stubEngine) Calculate(context.Context, models.SampleSet) (*models.EngineReport, error) {
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return &models.EngineReport{
		EngineID:      s.id,
		Timestamp:     time.Now(),
		PrimaryMetric: models.PrimaryMetric{Value: s.value},
		Signal:        models.SignalNeutral,
		Regime:        models.RegimeNormal,
		Confidence:    100,
	}, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return l
}

func newTestRegistry(t *testing.T, engines map[*stubEngine]models.EngineMetadata) *registry.Registry {
	t.Helper()
	reg := registry.New(testLogger(t))
	for e, meta := range engines {
		require.NoError(t, reg.Register(e, meta))
	}
	return reg
}

func TestExecuteAllEmptyRegistry(t *testing.T) {
	reg := registry.New(testLogger(t))
	o := New(testLogger(t), reg)

	results, err := o.ExecuteAll(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, results)
	require.Equal(t, StateCompleted, o.State())
}

func TestExecuteAllDependencyInjection(t *testing.T) {
	a := newStubEngine("a", 1.5)
	b := newStubEngine("b", 0)
	b.err = errors.New("b is broken")
	c := newStubEngine("c", 0)

	reg := newTestRegistry(t, map[*stubEngine]models.EngineMetadata{
		a: {ID: "a", Phase: models.PhaseFoundation, Priority: 10},
		b: {ID: "b", Phase: models.PhaseFoundation, Priority: 5},
		c: {ID: "c", Phase: models.PhaseSynthesis, Dependencies: []string{"a", "b"}},
	})
	o := New(testLogger(t), reg)

	results, err := o.ExecuteAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.Equal(t, StatusSuccess, results["a"].Status)
	require.Equal(t, StatusFailed, results["b"].Status)
	require.Error(t, results["b"].Err)
	// b's failure must not block c
	require.Equal(t, StatusSuccess, results["c"].Status)

	// c received only the successful dependency
	injected := c.Injected()
	require.Contains(t, injected, "a")
	require.NotContains(t, injected, "b")
	require.Equal(t, 1.5, injected["a"].PrimaryMetric.Value)
}

func TestExecuteAllSkipsInvalidData(t *testing.T) {
	e := newStubEngine("picky", 1)
	e.valid = false
	reg := newTestRegistry(t, map[*stubEngine]models.EngineMetadata{
		e: {ID: "picky", Phase: models.PhaseCore},
	})
	o := New(testLogger(t), reg)

	results, err := o.ExecuteAll(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, results["picky"].Status)
	require.Nil(t, results["picky"].Report)
	require.NoError(t, results["picky"].Err)
}

func TestExecuteAllRejectsConcurrentRun(t *testing.T) {
	blocked := newStubEngine("slow", 1)
	blocked.block = make(chan struct{})
	reg := newTestRegistry(t, map[*stubEngine]models.EngineMetadata{
		blocked: {ID: "slow", Phase: models.PhaseFoundation},
	})
	o := New(testLogger(t), reg)

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, err := o.ExecuteAll(context.Background(), nil)
		require.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		return o.State() == StateRunning
	}, time.Second, time.Millisecond)

	_, err := o.ExecuteAll(context.Background(), nil)
	require.ErrorIs(t, err, ErrAlreadyExecuting)

	close(blocked.block)
	<-firstDone

	// a finished run can be re-executed
	_, err = o.ExecuteAll(context.Background(), nil)
	require.NoError(t, err)
}

func TestExecuteAllPhaseOrdering(t *testing.T) {
	var order []string
	var mu sync.Mutex
	record := func(id string) {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
	}

	mk := func(id string) *stubEngine {
		e := newStubEngine(id, 1)
		return e
	}
	f1, f2, s1 := mk("f1"), mk("f2"), mk("s1")

	reg := registry.New(testLogger(t))
	for e, meta := range map[*stubEngine]models.EngineMetadata{
		f1: {ID: "f1", Phase: models.PhaseFoundation},
		f2: {ID: "f2", Phase: models.PhaseFoundation},
		s1: {ID: "s1", Phase: models.PhaseSynthesis},
	} {
		require.NoError(t, reg.Register(e, meta))
	}
	reg.AddListener(orderListener{record})

	o := New(testLogger(t), reg, WithConcurrency(2))
	_, err := o.ExecuteAll(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, order, 3)
	require.Equal(t, "s1", order[2], "synthesis engine must run after foundation completes")
}

type orderListener struct {
	record func(string)
}

func (l orderListener) OnSuccess(engineID string, _ *models.EngineReport, _ time.Duration) {
	l.record(engineID)
}
func (l orderListener) OnError(engineID string, _ error, _ time.Duration) {
	l.record(engineID)
}
