package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"MacroPulse/internal/domain/models"
	drepo "MacroPulse/internal/domain/repository"
	"MacroPulse/internal/service/ratelimit"
	"MacroPulse/internal/service/retry"
	"MacroPulse/pkg/cache"
	xhttp "MacroPulse/pkg/http"
	"MacroPulse/pkg/logger"
	"MacroPulse/pkg/queue"
)

// SourceConfig describes one polled HTTP indicator source.
type SourceConfig struct {
	Name              string
	URL               string
	Indicator         string
	Priority          int
	RequestsPerMinute int
	MaxRetries        int
	CacheTTL          time.Duration
}

// Fetcher polls HTTP indicator sources through the priority queue.
// Every request passes the rate limiter and the retry handler; fresh
// responses land in the layered cache and in the latest-sample set.
type Fetcher struct {
	logger  *logger.Logger
	client  *xhttp.Client
	limiter *ratelimit.Limiter
	queue   *queue.PriorityQueue
	cache   cache.Store
	metrics drepo.Metrics
	retry   retry.Config
	sources []SourceConfig

	mu     sync.RWMutex
	latest models.SampleSet
}

func NewFetcher(
	lgr *logger.Logger,
	client *xhttp.Client,
	limiter *ratelimit.Limiter,
	pq *queue.PriorityQueue,
	c cache.Store,
	metrics drepo.Metrics,
	retryCfg retry.Config,
	sources []SourceConfig,
) *Fetcher {
	f := &Fetcher{
		logger:  lgr,
		client:  client,
		limiter: limiter,
		queue:   pq,
		cache:   c,
		metrics: metrics,
		retry:   retryCfg,
		sources: sources,
		latest:  make(models.SampleSet),
	}
	for _, src := range sources {
		limiter.Configure(src.Name, src.RequestsPerMinute)
	}
	return f
}

// Latest returns a copy of the most recent sample per indicator.
func (f *Fetcher) Latest() models.SampleSet {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(models.SampleSet, len(f.latest))
	for k, v := range f.latest {
		out[k] = v
	}
	return out
}

// ScheduleAll enqueues one fetch task per source.
func (f *Fetcher) ScheduleAll() error {
	for _, src := range f.sources {
		src := src
		task := &queue.Task{
			ID:         "fetch:" + src.Name,
			Priority:   src.Priority,
			MaxRetries: src.MaxRetries,
			Run: func(ctx context.Context) error {
				return f.fetchOne(ctx, src)
			},
		}
		if err := f.queue.Submit(task); err != nil {
			return fmt.Errorf("schedule %s: %w", src.Name, err)
		}
	}
	return nil
}

type sourceResponse struct {
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
	Timestamp  int64   `json:"timestamp"`
}

func (f *Fetcher) fetchOne(ctx context.Context, src SourceConfig) error {
	cacheKey := cache.Key("ingest", src.Indicator)

	// serve from cache when the previous poll is still fresh
	var cached sourceResponse
	if err := f.cache.Get(ctx, cacheKey, &cached); err == nil && cached.Timestamp > 0 {
		f.record(src, cached)
		return nil
	}

	waitStart := time.Now()
	if err := f.limiter.Wait(ctx, src.Name); err != nil {
		return fmt.Errorf("limiter wait %s: %w", src.Name, err)
	}
	if f.metrics != nil {
		f.metrics.RecordLimiterWait(src.Name, time.Since(waitStart).Seconds())
	}

	resp, err := retry.DoWithResult(ctx, f.retry, func() (sourceResponse, error) {
		var r sourceResponse
		httpResp, err := f.client.SendRequest(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    src.URL,
		})
		if err != nil {
			return r, retry.Retryable(err)
		}
		defer httpResp.Body.Close()
		if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
			return r, &retry.HTTPError{Status: httpResp.StatusCode, Msg: string(body)}
		}
		if err := json.NewDecoder(httpResp.Body).Decode(&r); err != nil {
			return r, fmt.Errorf("decode %s response: %w", src.Name, err)
		}
		return r, nil
	})
	if err != nil {
		if f.metrics != nil {
			f.metrics.RecordError("fetch_" + src.Name)
		}
		return fmt.Errorf("fetch %s: %w", src.Name, err)
	}
	if resp.Timestamp == 0 {
		resp.Timestamp = time.Now().Unix()
	}

	if err := f.cache.Set(ctx, cacheKey, resp, src.CacheTTL); err != nil {
		f.logger.Warn("fetch cache write failed",
			logger.String("source", src.Name),
			logger.Error(err))
	}
	f.record(src, resp)
	return nil
}

func (f *Fetcher) record(src SourceConfig, resp sourceResponse) {
	sample := &models.IndicatorSample{
		Symbol:     src.Indicator,
		Timestamp:  time.Unix(resp.Timestamp, 0),
		Value:      resp.Value,
		Confidence: resp.Confidence,
		Source:     src.Name,
	}
	f.mu.Lock()
	f.latest[src.Indicator] = sample
	f.mu.Unlock()
}
