package usecase

import (
	"context"
	"sync"

	"MacroPulse/internal/domain/models"
	drepo "MacroPulse/internal/domain/repository"
	mid "MacroPulse/internal/middleware"
)

// SampleSink accepts validated indicator samples.
type SampleSink interface {
	Process(ctx context.Context, s *models.IndicatorSample) error
}

// Accumulator keeps the latest sample per indicator. It is the terminal
// sink of the streaming path and the source the pipeline runner snapshots.
type Accumulator struct {
	mu     sync.RWMutex
	latest models.SampleSet
}

func NewAccumulator() *Accumulator {
	return &Accumulator{latest: make(models.SampleSet)}
}

func (a *Accumulator) Process(_ context.Context, s *models.IndicatorSample) error {
	a.mu.Lock()
	a.latest[s.Symbol] = s
	a.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the latest sample per indicator.
func (a *Accumulator) Snapshot() models.SampleSet {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(models.SampleSet, len(a.latest))
	for k, v := range a.latest {
		out[k] = v
	}
	return out
}

var _ SampleSink = (*Accumulator)(nil)
var _ mid.Proc = (*Accumulator)(nil)

// SampleCollector reads the indicator stream and pushes samples through
// the middleware pipeline into the accumulator.
type SampleCollector struct {
	stream  drepo.IndicatorStream
	acc     *Accumulator
	metrics drepo.Metrics
	pipe    *mid.SamplePipeline
}

// NewSampleCollector creates a new SampleCollector instance.
func NewSampleCollector(stream drepo.IndicatorStream, acc *Accumulator, metrics drepo.Metrics, pipe *mid.SamplePipeline) *SampleCollector {
	return &SampleCollector{stream: stream, acc: acc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the indicator stream is connected.
func (c *SampleCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Accumulator returns the terminal sink for snapshotting.
func (c *SampleCollector) Accumulator() *Accumulator { return c.acc }

func (c *SampleCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	smCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, smCh, errCh)
	return nil
}

func (c *SampleCollector) consume(ctx context.Context, smCh <-chan *models.IndicatorSample, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case s := <-smCh:
			if s == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, s)
			} else {
				_ = c.acc.Process(ctx, s)
			}
		}
	}
}

func (c *SampleCollector) Stop() error { return c.stream.Close() }

// Shutdown stops the pipeline and closes the stream.
func (c *SampleCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
