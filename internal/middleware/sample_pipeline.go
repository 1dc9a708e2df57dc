package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
)

// Proc is the minimal downstream interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, s *models.IndicatorSample) error
}

// SamplePipeline sits between the indicator feed and the collector.
// It validates, throttles per indicator, optionally transforms, and
// buffers samples when the downstream is unavailable.
type SamplePipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.IndicatorSample
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-indicator last accepted time
	// optional normalization hook
	transform func(*models.IndicatorSample) *models.IndicatorSample
}

type PipelineOption func(*SamplePipeline)

// WithMaxRPS sets the max accepted samples per second per indicator.
func WithMaxRPS(n int) PipelineOption {
	return func(p *SamplePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the buffer size used when downstream fails.
func WithBufferSize(n int) PipelineOption {
	return func(p *SamplePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a normalization hook applied before validation.
func WithTransform(fn func(*models.IndicatorSample) *models.IndicatorSample) PipelineOption {
	return func(p *SamplePipeline) { p.transform = fn }
}

// NewSamplePipeline creates a new pipeline.
func NewSamplePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *SamplePipeline {
	p := &SamplePipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   20,
		bufSize:  1000,
		bufCh:    make(chan *models.IndicatorSample, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.IndicatorSample, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered samples.
func (p *SamplePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case s := <-p.bufCh:
				if s == nil {
					continue
				}
				if err := p.proc.Process(ctx, s); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- s:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *SamplePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards a sample downstream,
// buffering on downstream errors.
func (p *SamplePipeline) Process(ctx context.Context, s *models.IndicatorSample) error {
	start := time.Now()
	if p.transform != nil {
		s = p.transform(s)
	}
	if err := validateSample(s); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(s.Symbol, start) {
		// throttled; drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, s); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- s:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	return nil
}

func validateSample(s *models.IndicatorSample) error {
	if s == nil {
		return fmt.Errorf("sample nil")
	}
	if s.Symbol == "" {
		return fmt.Errorf("indicator empty")
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	return nil
}

func (p *SamplePipeline) allow(indicator string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[indicator]
	if last.IsZero() {
		p.lastSeen[indicator] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[indicator] = now
	return true
}
