package bridge

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"MacroPulse/internal/domain/models"
	"MacroPulse/pkg/clock"
	"MacroPulse/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return l
}

func testReport(engineID string, value float64) *models.EngineReport {
	return &models.EngineReport{
		EngineID:      engineID,
		Timestamp:     time.Now(),
		PrimaryMetric: models.PrimaryMetric{Value: value},
		Signal:        models.SignalNeutral,
		Regime:        models.RegimeNormal,
		Confidence:    90,
		SubMetrics:    map[string]float64{"a": value},
	}
}

func TestBridgeRoundTrip(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))
	b := New(testLogger(t), WithClock(fake), WithCacheTimeout(30*time.Second))

	b.BridgeReport(testReport("eng", 1.5))

	tile := b.Get("eng", models.FormatTile)
	require.NotNil(t, tile)
	payload, ok := tile.Payload.(models.TilePayload)
	require.True(t, ok)
	require.Equal(t, 1.5, payload.Value)

	require.NotNil(t, b.Get("eng", models.FormatIndicator))
	require.NotNil(t, b.Get("eng", models.FormatChart))
	require.Nil(t, b.Get("other", models.FormatTile))
}

func TestBridgeTTLExpiry(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))
	b := New(testLogger(t), WithClock(fake), WithCacheTimeout(30*time.Second))

	b.BridgeReport(testReport("eng", 1))
	require.NotNil(t, b.Get("eng", models.FormatTile))

	fake.Advance(31 * time.Second)
	require.Nil(t, b.Get("eng", models.FormatTile), "expired entry must read as a miss")

	// expired entries linger until swept
	require.Equal(t, 3, b.Size())
	b.Sweep()
	require.Equal(t, 0, b.Size())
}

func TestBridgeLastWriteWins(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))
	b := New(testLogger(t), WithClock(fake))

	b.BridgeReport(testReport("eng", 1))
	b.BridgeReport(testReport("eng", 2))

	tile := b.Get("eng", models.FormatTile)
	require.NotNil(t, tile)
	require.Equal(t, 2.0, tile.Payload.(models.TilePayload).Value)
	// one entry per (engine, format), not an append log
	require.Equal(t, 3, b.Size())
}

func TestBridgeMaxSizeEvictsOldest(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))
	b := New(testLogger(t), WithClock(fake), WithMaxCacheSize(2), WithCacheTimeout(time.Hour))

	r1 := testReport("e1", 1)
	r1.SubMetrics = nil
	b.BridgeReport(r1) // tile + indicator, timestamps equal
	fake.Advance(time.Second)
	r2 := testReport("e2", 2)
	r2.SubMetrics = nil
	b.BridgeReport(r2)

	require.Equal(t, 2, b.Size())
	// the two newest entries survive
	require.NotNil(t, b.Get("e2", models.FormatTile))
	require.NotNil(t, b.Get("e2", models.FormatIndicator))
	require.Nil(t, b.Get("e1", models.FormatTile))
}

func TestBridgeSubscribeAndUnsubscribe(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))
	b := New(testLogger(t), WithClock(fake))

	var got []*models.BridgedData
	unsub := b.Subscribe("eng", models.FormatTile, func(d *models.BridgedData) {
		got = append(got, d)
	})

	b.BridgeReport(testReport("eng", 1))
	require.Len(t, got, 1)
	require.Equal(t, "eng", got[0].EngineID)

	// other keys do not notify
	b.BridgeReport(testReport("other", 1))
	require.Len(t, got, 1)

	unsub()
	b.BridgeReport(testReport("eng", 2))
	require.Len(t, got, 1, "unsubscribed callback must not fire")
}

func TestBridgeTransformation(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))
	b := New(testLogger(t), WithClock(fake))

	const custom = models.Format("gauge")
	b.RegisterTransformation(Transformation{
		SourceEngineID: "eng",
		TargetFormat:   custom,
		Transform: func(r *models.EngineReport) (any, error) {
			return r.PrimaryMetric.Value * 10, nil
		},
	})

	b.BridgeReport(testReport("eng", 2))
	entry := b.Get("eng", custom)
	require.NotNil(t, entry)
	require.Equal(t, 20.0, entry.Payload)
}

func TestBridgeTransformationFailureIsolated(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))
	b := New(testLogger(t), WithClock(fake))

	var events []ErrorEvent
	b.OnTransformError(func(ev ErrorEvent) { events = append(events, ev) })
	b.RegisterTransformation(Transformation{
		SourceEngineID: "eng",
		TargetFormat:   models.Format("broken"),
		Transform: func(*models.EngineReport) (any, error) {
			return nil, errors.New("derive failed")
		},
	})

	b.BridgeReport(testReport("eng", 1))

	// the standard representations still landed
	require.NotNil(t, b.Get("eng", models.FormatTile))
	require.Nil(t, b.Get("eng", models.Format("broken")))
	require.Len(t, events, 1)
	require.Equal(t, "eng", events[0].SourceEngineID)
}
