package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSamplesHandlerFeedsSink(t *testing.T) {
	acc := NewAccumulator()
	h := NewKafkaSamplesHandler("indicator-samples", acc, newFakeMetrics())
	require.Equal(t, "indicator-samples", h.Topic())

	msg := []byte(`{"indicator":"vix","t":1700000000,"v":18.5,"conf":95,"source":"vendor"}`)
	require.NoError(t, h.Handle(context.Background(), msg))

	s := acc.Snapshot()["vix"]
	require.NotNil(t, s)
	require.Equal(t, 18.5, s.Value)
	require.Equal(t, 95.0, s.Confidence)
	require.Equal(t, "vendor", s.Source)
	require.Equal(t, time.Unix(1700000000, 0), s.Timestamp)
}

func TestSamplesHandlerConvertsMilliseconds(t *testing.T) {
	acc := NewAccumulator()
	h := NewKafkaSamplesHandler("t", acc, newFakeMetrics())

	msg := []byte(`{"indicator":"move","t":1700000000123,"v":110}`)
	require.NoError(t, h.Handle(context.Background(), msg))
	require.Equal(t, time.Unix(1700000000, 0), acc.Snapshot()["move"].Timestamp)
}

func TestSamplesHandlerDefaultsSource(t *testing.T) {
	acc := NewAccumulator()
	h := NewKafkaSamplesHandler("t", acc, newFakeMetrics())

	require.NoError(t, h.Handle(context.Background(), []byte(`{"indicator":"vix","t":1700000000,"v":1}`)))
	require.Equal(t, "kafka", acc.Snapshot()["vix"].Source)
}

func TestSamplesHandlerRejectsMalformed(t *testing.T) {
	m := newFakeMetrics()
	h := NewKafkaSamplesHandler("t", NewAccumulator(), m)

	require.Error(t, h.Handle(context.Background(), []byte(`{"indicator":`)))
	require.Equal(t, 1, m.errors["consumer_unmarshal"])
}
