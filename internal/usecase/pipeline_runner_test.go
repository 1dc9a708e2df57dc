package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"MacroPulse/internal/bridge"
	"MacroPulse/internal/domain/models"
	"MacroPulse/internal/hub"
	"MacroPulse/internal/orchestrator"
	"MacroPulse/internal/registry"
	"MacroPulse/pkg/clock"
	"MacroPulse/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return l
}

// echoEngine reports the value of one indicator so tests can observe
// which sample version reached the pipeline.
type echoEngine struct {
	id        string
	indicator string

	mu   sync.Mutex
	seen []float64
}

func (e *echoEngine) ID() string                   { return e.id }
func (e *echoEngine) RequiredIndicators() []string { return []string{e.indicator} }
func (e *echoEngine) ValidateData(samples models.SampleSet) bool {
	return samples.Has(e.indicator)
}

func (e *echoEngine) Calculate(_ context.Context, samples models.SampleSet) (*models.EngineReport, error) {
	v := samples[e.indicator].Value
	e.mu.Lock()
	e.seen = append(e.seen, v)
	e.mu.Unlock()
	return &models.EngineReport{
		EngineID:      e.id,
		Timestamp:     time.Now(),
		PrimaryMetric: models.PrimaryMetric{Value: v},
		Signal:        models.SignalNeutral,
		Regime:        models.RegimeNormal,
		Confidence:    100,
	}, nil
}

func newRunnerFixture(t *testing.T, backend string, sources []SampleSource, eng *echoEngine) (*PipelineRunner, *fakePublisher, *fakeStore) {
	t.Helper()
	lgr := testLogger(t)
	reg := registry.New(lgr)
	require.NoError(t, reg.Register(eng, models.EngineMetadata{ID: eng.ID(), Phase: models.PhaseFoundation}))
	orch := orchestrator.New(lgr, reg)
	br := bridge.New(lgr)
	h := hub.New(lgr, orch, br, nil)

	pub, store := &fakePublisher{}, &fakeStore{}
	proc := NewReportProcessor(pub, store, newFakeMetrics(), backend)
	r := NewPipelineRunner(lgr, h, proc, newFakeMetrics(), time.Minute, sources)
	return r, pub, store
}

func TestRunOnceRoutesReports(t *testing.T) {
	eng := &echoEngine{id: "echo", indicator: "vix"}
	src := SampleSourceFunc(func() models.SampleSet {
		return models.SampleSet{"vix": {Symbol: "vix", Timestamp: time.Now(), Value: 21}}
	})
	r, pub, _ := newRunnerFixture(t, "kafka", []SampleSource{src}, eng)

	r.RunOnce(context.Background())

	require.Equal(t, 1, pub.count())
	require.Equal(t, "echo", pub.published[0].EngineID)
	require.Equal(t, 21.0, pub.published[0].PrimaryMetric.Value)
}

func TestMergePrefersNewestSample(t *testing.T) {
	old := time.Unix(1700000000, 0)
	eng := &echoEngine{id: "echo", indicator: "vix"}
	wsSource := SampleSourceFunc(func() models.SampleSet {
		return models.SampleSet{"vix": {Symbol: "vix", Timestamp: old, Value: 10}}
	})
	kafkaSource := SampleSourceFunc(func() models.SampleSet {
		return models.SampleSet{"vix": {Symbol: "vix", Timestamp: old.Add(time.Minute), Value: 30}}
	})
	r, _, store := newRunnerFixture(t, "clickhouse", []SampleSource{wsSource, kafkaSource}, eng)

	r.RunOnce(context.Background())

	require.Equal(t, []float64{30}, eng.seen)
	require.Equal(t, 1, store.count())
}

func TestRunOnceNoSamplesSkipsEngine(t *testing.T) {
	eng := &echoEngine{id: "echo", indicator: "vix"}
	r, pub, store := newRunnerFixture(t, "both", nil, eng)

	r.RunOnce(context.Background())

	require.Empty(t, eng.seen)
	require.Equal(t, 0, pub.count())
	require.Equal(t, 0, store.count())
}

func TestRunnerTicksOnClock(t *testing.T) {
	eng := &echoEngine{id: "echo", indicator: "vix"}
	src := SampleSourceFunc(func() models.SampleSet {
		return models.SampleSet{"vix": {Symbol: "vix", Timestamp: time.Now(), Value: 1}}
	})

	lgr := testLogger(t)
	reg := registry.New(lgr)
	require.NoError(t, reg.Register(eng, models.EngineMetadata{ID: eng.ID()}))
	h := hub.New(lgr, orchestrator.New(lgr, reg), bridge.New(lgr), nil)
	pub := &fakePublisher{}
	proc := NewReportProcessor(pub, &fakeStore{}, newFakeMetrics(), "kafka")

	fake := clock.NewFake(time.Unix(1700000000, 0))
	r := NewPipelineRunner(lgr, h, proc, newFakeMetrics(), time.Minute, []SampleSource{src}, WithRunnerClock(fake))
	r.Start(context.Background())
	defer r.Stop()

	deadline := time.After(2 * time.Second)
	for pub.count() == 0 {
		fake.Advance(time.Minute + time.Second)
		select {
		case <-deadline:
			t.Fatalf("runner never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
