// Package bridge caches each engine's latest output under an
// (engineID, format) key with a TTL and notifies subscribers on update.
// It is a last-write-wins cache, not an append log: at most one entry
// exists per key at any time.
package bridge

import (
	"fmt"
	"sync"
	"time"

	"MacroPulse/internal/domain/models"
	domrepo "MacroPulse/internal/domain/repository"
	"MacroPulse/pkg/clock"
	"MacroPulse/pkg/logger"
)

// Callback receives a freshly written entry. Invoked synchronously in
// registration order; callbacks must not block.
type Callback func(*models.BridgedData)

// Transformation derives an additional synthetic output from a source
// engine's report. A transformation failure is isolated and reported,
// never aborting the main bridging step.
type Transformation struct {
	SourceEngineID string
	TargetFormat   models.Format
	Transform      func(*models.EngineReport) (any, error)
}

// ErrorEvent describes an isolated transformation failure.
type ErrorEvent struct {
	SourceEngineID string
	TargetFormat   models.Format
	Err            error
}

type key struct {
	engineID string
	format   models.Format
}

type subscriber struct {
	id int
	fn Callback
}

// Bridge is the shared cache between the orchestrator's result stream
// and presentation consumers. Every mutation is atomic with respect to
// readers.
type Bridge struct {
	logger  *logger.Logger
	clock   clock.Clock
	metrics domrepo.Metrics

	cacheTimeout  time.Duration
	maxCacheSize  int
	sweepInterval time.Duration

	mu          sync.RWMutex
	cache       map[key]*models.BridgedData
	subscribers map[key][]subscriber
	transforms  []Transformation
	errorSubs   []func(ErrorEvent)
	nextSubID   int

	sweepStop chan struct{}
	sweepOnce sync.Once
}

type Option func(*Bridge)

// WithCacheTimeout sets the entry TTL.
func WithCacheTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.cacheTimeout = d
		}
	}
}

// WithMaxCacheSize caps the entry count; overflow evicts oldest-first.
func WithMaxCacheSize(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.maxCacheSize = n
		}
	}
}

// WithSweepInterval sets the background cleanup cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.sweepInterval = d
		}
	}
}

// WithClock injects a clock, used by tests.
func WithClock(c clock.Clock) Option {
	return func(b *Bridge) { b.clock = c }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m domrepo.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

func New(lgr *logger.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		logger:        lgr,
		clock:         clock.New(),
		cacheTimeout:  30 * time.Second,
		maxCacheSize:  500,
		sweepInterval: 10 * time.Second,
		cache:         make(map[key]*models.BridgedData),
		subscribers:   make(map[key][]subscriber),
		sweepStop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RegisterTransformation adds a synthetic output derivation.
func (b *Bridge) RegisterTransformation(t Transformation) {
	b.mu.Lock()
	b.transforms = append(b.transforms, t)
	b.mu.Unlock()
}

// OnTransformError registers a listener for isolated transformation
// failures.
func (b *Bridge) OnTransformError(fn func(ErrorEvent)) {
	b.mu.Lock()
	b.errorSubs = append(b.errorSubs, fn)
	b.mu.Unlock()
}

// BridgeReport derives the standard output representations from a
// report, writes them, and applies registered transformations for the
// source engine.
func (b *Bridge) BridgeReport(report *models.EngineReport) {
	if report == nil {
		return
	}
	b.put(report.EngineID, models.FormatTile, tilePayload(report))
	b.put(report.EngineID, models.FormatIndicator, indicatorPayload(report))
	if len(report.SubMetrics) > 0 {
		b.put(report.EngineID, models.FormatChart, chartPayload(report))
	}

	b.mu.RLock()
	transforms := b.transforms
	b.mu.RUnlock()

	for _, t := range transforms {
		if t.SourceEngineID != report.EngineID {
			continue
		}
		payload, err := t.Transform(report)
		if err != nil {
			b.logger.Warn("bridge transformation failed",
				logger.String("engine", t.SourceEngineID),
				logger.String("format", string(t.TargetFormat)),
				logger.Error(err))
			b.emitError(ErrorEvent{SourceEngineID: t.SourceEngineID, TargetFormat: t.TargetFormat, Err: err})
			continue
		}
		b.put(report.EngineID, t.TargetFormat, payload)
	}
}

// Get returns the cached entry for (engineID, format) if it has not
// expired, else nil. Expiry is a cache miss, not a re-fetch;
// re-population happens only on the next engine execution.
func (b *Bridge) Get(engineID string, format models.Format) *models.BridgedData {
	b.mu.RLock()
	entry := b.cache[key{engineID, format}]
	b.mu.RUnlock()
	if entry == nil || entry.Expired(b.clock.Now()) {
		return nil
	}
	return entry
}

// Subscribe registers a callback for writes to (engineID, format) and
// returns an unsubscribe closure.
func (b *Bridge) Subscribe(engineID string, format models.Format, fn Callback) func() {
	k := key{engineID, format}
	b.mu.Lock()
	b.nextSubID++
	id := b.nextSubID
	b.subscribers[k] = append(b.subscribers[k], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[k]
		for i, s := range subs {
			if s.id == id {
				b.subscribers[k] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Size reports the current entry count.
func (b *Bridge) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.cache)
}

// StartSweep launches the periodic cleanup task. Stop it with
// StopSweep; the bridge works without it but expired entries then
// linger until read.
func (b *Bridge) StartSweep() {
	go func() {
		ticker := b.clock.NewTicker(b.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-b.sweepStop:
				return
			case <-ticker.C():
				b.Sweep()
			}
		}
	}()
}

// StopSweep stops the cleanup task. Idempotent.
func (b *Bridge) StopSweep() {
	b.sweepOnce.Do(func() { close(b.sweepStop) })
}

// Sweep deletes expired entries and, if the cache still exceeds its
// maximum size, evicts the oldest entries by timestamp until under the
// limit.
func (b *Bridge) Sweep() {
	now := b.clock.Now()
	b.mu.Lock()
	for k, e := range b.cache {
		if e.Expired(now) {
			delete(b.cache, k)
		}
	}
	for len(b.cache) > b.maxCacheSize {
		var oldestKey key
		var oldest time.Time
		first := true
		for k, e := range b.cache {
			if first || e.Timestamp.Before(oldest) {
				oldestKey, oldest, first = k, e.Timestamp, false
			}
		}
		delete(b.cache, oldestKey)
	}
	size := len(b.cache)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.RecordBridgeSize(size)
	}
}

// put writes a superseding entry and notifies matching subscribers.
func (b *Bridge) put(engineID string, format models.Format, payload any) {
	now := b.clock.Now()
	entry := &models.BridgedData{
		EngineID:  engineID,
		Format:    format,
		Payload:   payload,
		Timestamp: now,
		ExpiresAt: now.Add(b.cacheTimeout),
	}
	k := key{engineID, format}

	b.mu.Lock()
	b.cache[k] = entry
	if len(b.cache) > b.maxCacheSize {
		b.evictOldestLocked()
	}
	subs := make([]subscriber, len(b.subscribers[k]))
	copy(subs, b.subscribers[k])
	size := len(b.cache)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.RecordBridgeSize(size)
	}
	for _, s := range subs {
		s.fn(entry)
	}
}

func (b *Bridge) evictOldestLocked() {
	var oldestKey key
	var oldest time.Time
	first := true
	for k, e := range b.cache {
		if first || e.Timestamp.Before(oldest) {
			oldestKey, oldest, first = k, e.Timestamp, false
		}
	}
	if !first {
		delete(b.cache, oldestKey)
	}
}

func (b *Bridge) emitError(ev ErrorEvent) {
	b.mu.RLock()
	subs := b.errorSubs
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func tilePayload(r *models.EngineReport) models.TilePayload {
	return models.TilePayload{
		Value:      r.PrimaryMetric.Value,
		Change:     r.PrimaryMetric.Change,
		Signal:     r.Signal,
		Regime:     r.Regime,
		Confidence: r.Confidence,
		Analysis:   r.Analysis,
	}
}

func indicatorPayload(r *models.EngineReport) models.IndicatorPayload {
	return models.IndicatorPayload{
		Primary:    r.PrimaryMetric,
		SubMetrics: r.SubMetrics,
		Alerts:     r.Alerts,
	}
}

func chartPayload(r *models.EngineReport) models.ChartPayload {
	series := make(map[string]float64, len(r.SubMetrics))
	for k, v := range r.SubMetrics {
		series[k] = v
	}
	return models.ChartPayload{Timestamp: r.Timestamp, Series: series}
}

// String implements fmt.Stringer for debugging.
func (b *Bridge) String() string {
	return fmt.Sprintf("bridge(entries=%d, ttl=%s)", b.Size(), b.cacheTimeout)
}
