package di

import (
	"context"
	"fmt"
	"time"

	"MacroPulse/internal/bridge"
	"MacroPulse/internal/domain/models"
	"MacroPulse/internal/domain/repository"
	domsvc "MacroPulse/internal/domain/service"
	"MacroPulse/internal/handler/api"
	"MacroPulse/internal/hub"
	"MacroPulse/internal/ingest"
	mid "MacroPulse/internal/middleware"
	"MacroPulse/internal/orchestrator"
	"MacroPulse/internal/registry"
	internalrepo "MacroPulse/internal/repository"
	"MacroPulse/internal/service/ratelimit"
	"MacroPulse/internal/service/retry"
	"MacroPulse/internal/services/engines"
	"MacroPulse/internal/usecase"
	"MacroPulse/pkg/cache"
	pkgch "MacroPulse/pkg/clickhouse"
	"MacroPulse/pkg/config"
	xhttp "MacroPulse/pkg/http"
	pkgkafka "MacroPulse/pkg/kafka"
	applogger "MacroPulse/pkg/logger"
	"MacroPulse/pkg/metrics"
	"MacroPulse/pkg/queue"
	"MacroPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.Open(pkgch.Config{
		Host:         cfg.ClickHouse.Host,
		Port:         cfg.ClickHouse.Port,
		Database:     cfg.ClickHouse.Database,
		User:         cfg.ClickHouse.User,
		Password:     cfg.ClickHouse.Password,
		UseHTTP:      cfg.ClickHouse.UseHTTP,
		AsyncInsert:  cfg.ClickHouse.AsyncInsert,
		WaitForAsync: cfg.ClickHouse.WaitForAsync,
		DialTimeout:  cfg.ClickHouse.DialTimeout,
		ReadTimeout:  cfg.ClickHouse.ReadTimeout,
		MaxExecTime:  cfg.ClickHouse.MaxExecutionTime,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		"CREATE TABLE IF NOT EXISTS " + db + ".engine_reports (" +
			"ts DateTime, engine_id String, value Float64, change Float64, " +
			"signal String, regime String, confidence Float64, analysis String, sub_metrics String" +
			") ENGINE=MergeTree ORDER BY (engine_id, ts)",
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		Compression:  cfg.Kafka.Compression,
		RequiredAcks: cfg.Kafka.RequiredAcks,
		MaxAttempts:  cfg.Kafka.Producer.MaxAttempts,
		BatchSize:    cfg.Kafka.Producer.BatchSize,
		BatchBytes:   cfg.Kafka.Producer.BatchBytes,
		BatchTimeout: cfg.Kafka.Producer.Linger,
		WriteTimeout: cfg.Kafka.Producer.WriteTimeout,
		ReadTimeout:  cfg.Kafka.Producer.ReadTimeout,
		Async:        cfg.Kafka.Producer.Async,
		HashByKey:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
// Returns nil when the consumer path is disabled.
func ProvideKafkaConsumer(lgr *applogger.Logger, cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(lgr, pkgkafka.ConsumerConfig{
		Brokers:    cfg.Kafka.Brokers,
		GroupID:    cfg.Kafka.Consumer.GroupID,
		RetryMax:   cfg.Kafka.Consumer.RetryMax,
		BackoffMin: cfg.Kafka.Consumer.BackoffMin,
		BackoffMax: cfg.Kafka.Consumer.BackoffMax,
		DLQTopic:   cfg.Kafka.Consumer.DLQTopic,
		MinBytes:   cfg.Kafka.Consumer.MinBytes,
		MaxBytes:   cfg.Kafka.Consumer.MaxBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache creates the ingest cache, layered over Redis when enabled.
func ProvideCache(cfg *config.Config) (cache.Store, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemory(), nil
	}
	rc, err := cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayered(rc), nil
}

// ProvideReportStore creates the ClickHouse report sink.
func ProvideReportStore(chClient *pkgch.Client, cfg *config.Config) repository.ReportStore {
	return internalrepo.NewClickHouseReportStore(chClient.DB(), cfg.ClickHouse.Database+".engine_reports")
}

// ProvideReportPublisher creates the Kafka report publisher.
func ProvideReportPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ReportPublisher {
	return internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.ReportsTopic)
}

// ProvideRetryConfig builds the shared retry policy.
func ProvideRetryConfig(cfg *config.Config) retry.Config {
	rc := retry.DefaultConfig()
	if cfg.Retry.MaxRetries > 0 {
		rc.MaxRetries = cfg.Retry.MaxRetries
	}
	if cfg.Retry.InitialDelay > 0 {
		rc.InitialDelay = cfg.Retry.InitialDelay
	}
	if cfg.Retry.MaxDelay > 0 {
		rc.MaxDelay = cfg.Retry.MaxDelay
	}
	if cfg.Retry.Multiplier > 0 {
		rc.Multiplier = cfg.Retry.Multiplier
	}
	return rc
}

// ProvideLimiter creates the per-source rate limiter.
func ProvideLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideQueue creates the fetch work queue.
func ProvideQueue(lgr *applogger.Logger, cfg *config.Config, rc retry.Config) *queue.PriorityQueue {
	return queue.New(lgr, queue.Config{
		ConcurrentLimit: cfg.Queue.ConcurrentLimit,
		MaxDepth:        cfg.Queue.MaxDepth,
		RetryPolicy:     rc,
	})
}

// ProvideFetcher creates the HTTP source fetcher.
func ProvideFetcher(
	lgr *applogger.Logger,
	limiter *ratelimit.Limiter,
	pq *queue.PriorityQueue,
	c cache.Store,
	m repository.Metrics,
	rc retry.Config,
	cfg *config.Config,
) *ingest.Fetcher {
	sources := make([]ingest.SourceConfig, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sources = append(sources, ingest.SourceConfig{
			Name:              s.Name,
			URL:               s.URL,
			Indicator:         s.Indicator,
			Priority:          s.Priority,
			RequestsPerMinute: s.RequestsPerMinute,
			MaxRetries:        s.MaxRetries,
			CacheTTL:          s.CacheTTL,
		})
	}
	client := xhttp.NewClient()
	return ingest.NewFetcher(lgr, client, limiter, pq, c, m, rc, sources)
}

// ProvideStream creates the WebSocket indicator stream.
func ProvideStream(lgr *applogger.Logger, cfg *config.Config) repository.IndicatorStream {
	if len(cfg.Feed.Indicators) == 0 {
		return nil
	}
	return ingest.NewStream(
		lgr,
		cfg.Feed.Token,
		cfg.Feed.WebSocketURL,
		cfg.Feed.Indicators,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
	)
}

// ProvideCollector creates the streaming sample collector.
func ProvideCollector(
	stream repository.IndicatorStream,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.SampleCollector {
	if stream == nil {
		return nil
	}
	acc := usecase.NewAccumulator()
	pipe := mid.NewSamplePipeline(acc, m,
		mid.WithMaxRPS(cfg.Pipeline.MaxRPS),
		mid.WithBufferSize(cfg.Pipeline.BufferSize),
	)
	return usecase.NewSampleCollector(stream, acc, m, pipe)
}

// ProvideKafkaSamplesHandler registers the handler for the samples topic.
func ProvideKafkaSamplesHandler(collector *usecase.SampleCollector, m repository.Metrics, cfg *config.Config) pkgkafka.MessageHandler {
	if collector == nil || cfg.Kafka.SamplesTopic == "" {
		return nil
	}
	return usecase.NewKafkaSamplesHandler(cfg.Kafka.SamplesTopic, collector.Accumulator(), m)
}

// ProvideRegistry creates the engine registry with the default engine set.
func ProvideRegistry(lgr *applogger.Logger) (*registry.Registry, error) {
	reg := registry.New(lgr)

	liquidity := engines.NewLiquidityCompositeEngine("liquidity_composite", []engines.SourceWeight{
		{EngineID: "funding_stress", Weight: 0.4},
		{EngineID: "credit_spread", Weight: 0.35},
		{EngineID: "fx_swap_basis", Weight: 0.25},
	})

	defs := []struct {
		engine domsvc.Engine
		meta   models.EngineMetadata
	}{
		{
			engine: engines.NewZScoreEngine("funding_stress", []engines.IndicatorSpec{
				{Name: "sofr_iorb_spread", Weight: 0.45},
				{Name: "repo_volume", Weight: 0.3},
				{Name: "bill_10y_spread", Weight: 0.25},
			}),
			meta: models.EngineMetadata{
				ID: "funding_stress", Name: "Funding Stress", Pillar: models.PillarLiquidity,
				Phase: models.PhaseFoundation, Priority: 90, Category: "rates",
			},
		},
		{
			engine: engines.NewZScoreEngine("credit_spread", []engines.IndicatorSpec{
				{Name: "hy_oas", Weight: 0.6},
				{Name: "ig_oas", Weight: 0.4},
			}),
			meta: models.EngineMetadata{
				ID: "credit_spread", Name: "Credit Spreads", Pillar: models.PillarCredit,
				Phase: models.PhaseFoundation, Priority: 80, Category: "credit",
			},
		},
		{
			engine: engines.NewZScoreEngine("fx_swap_basis", []engines.IndicatorSpec{
				{Name: "eurusd_basis_3m", Weight: 0.5},
				{Name: "usdjpy_basis_3m", Weight: 0.5},
			}),
			meta: models.EngineMetadata{
				ID: "fx_swap_basis", Name: "FX Swap Basis", Pillar: models.PillarLiquidity,
				Phase: models.PhaseFoundation, Priority: 70, Category: "fx",
			},
		},
		{
			engine: engines.NewMomentumEngine("equity_momentum", []engines.IndicatorSpec{
				{Name: "spx_close", Weight: 0.7},
				{Name: "ndx_close", Weight: 0.3},
			}, 252, 20),
			meta: models.EngineMetadata{
				ID: "equity_momentum", Name: "Equity Momentum", Pillar: models.PillarMomentum,
				Phase: models.PhaseCore, Priority: 60, Category: "equity",
			},
		},
		{
			engine: engines.NewVolRegimeEngine("vol_regime", []engines.IndicatorSpec{
				{Name: "vix", Weight: 0.6},
				{Name: "move", Weight: 0.4},
			}, 252, 60),
			meta: models.EngineMetadata{
				ID: "vol_regime", Name: "Volatility Regime", Pillar: models.PillarVolatility,
				Phase: models.PhaseCore, Priority: 50, Category: "volatility",
			},
		},
		{
			engine: liquidity,
			meta: models.EngineMetadata{
				ID: "liquidity_composite", Name: "Liquidity Composite", Pillar: models.PillarLiquidity,
				Phase: models.PhaseSynthesis, Priority: 40, Category: "composite",
				Dependencies: liquidity.Dependencies(),
			},
		},
	}

	for _, d := range defs {
		if err := reg.Register(d.engine, d.meta); err != nil {
			return nil, fmt.Errorf("register %s: %w", d.meta.ID, err)
		}
	}
	return reg, nil
}

// ProvideOrchestrator creates the phased orchestrator.
func ProvideOrchestrator(lgr *applogger.Logger, reg *registry.Registry, cfg *config.Config) *orchestrator.Orchestrator {
	return orchestrator.New(lgr, reg, orchestrator.WithConcurrency(cfg.Orchestrator.MaxConcurrent))
}

// ProvideBridge creates the data bridge.
func ProvideBridge(lgr *applogger.Logger, m repository.Metrics, cfg *config.Config) *bridge.Bridge {
	opts := []bridge.Option{bridge.WithMetrics(m)}
	if cfg.Bridge.CacheTimeout > 0 {
		opts = append(opts, bridge.WithCacheTimeout(cfg.Bridge.CacheTimeout))
	}
	if cfg.Bridge.MaxCacheSize > 0 {
		opts = append(opts, bridge.WithMaxCacheSize(cfg.Bridge.MaxCacheSize))
	}
	if cfg.Bridge.SweepInterval > 0 {
		opts = append(opts, bridge.WithSweepInterval(cfg.Bridge.SweepInterval))
	}
	b := bridge.New(lgr, opts...)
	b.StartSweep()
	return b
}

// ProvideHub creates the integration hub.
func ProvideHub(lgr *applogger.Logger, orch *orchestrator.Orchestrator, br *bridge.Bridge, m repository.Metrics, cfg *config.Config) *hub.Hub {
	opts := []hub.Option{}
	if cfg.Hub.HealthCheckInterval > 0 {
		opts = append(opts, hub.WithHealthCheckInterval(cfg.Hub.HealthCheckInterval))
	}
	return hub.New(lgr, orch, br, m, opts...)
}

// ProvideReportProcessor creates the report routing use case.
func ProvideReportProcessor(
	pub repository.ReportPublisher,
	store repository.ReportStore,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.ReportProcessor {
	return usecase.NewReportProcessor(pub, store, m, cfg.Backend.Type)
}

// ProvideRunner creates the periodic pipeline runner.
func ProvideRunner(
	lgr *applogger.Logger,
	h *hub.Hub,
	proc *usecase.ReportProcessor,
	m repository.Metrics,
	collector *usecase.SampleCollector,
	fetcher *ingest.Fetcher,
	cfg *config.Config,
) *usecase.PipelineRunner {
	var sources []usecase.SampleSource
	if collector != nil {
		sources = append(sources, collector.Accumulator())
	}
	if fetcher != nil {
		sources = append(sources, usecase.SampleSourceFunc(fetcher.Latest))
	}
	return usecase.NewPipelineRunner(lgr, h, proc, m, cfg.Runner.Interval, sources)
}

// ProvideDashboardHandler creates the HTTP handler.
func ProvideDashboardHandler(
	lgr *applogger.Logger,
	h *hub.Hub,
	br *bridge.Bridge,
	reg *registry.Registry,
	proc *usecase.ReportProcessor,
	runner *usecase.PipelineRunner,
) *api.DashboardHandler {
	return api.NewDashboardHandler(lgr, h, br, reg, proc, runner)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	collector *usecase.SampleCollector,
	fetcher *ingest.Fetcher,
	pq *queue.PriorityQueue,
	runner *usecase.PipelineRunner,
	h *hub.Hub,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	proc *usecase.ReportProcessor,
	handler *api.DashboardHandler,
) *server.App {
	app := server.New(cfg, lgr, collector, fetcher, pq, runner, h, consumer, kh, chClient)
	app.ReportProc = proc
	app.SetHTTPHandler(handler)
	return app
}
