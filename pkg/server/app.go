package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MacroPulse/internal/hub"
	"MacroPulse/internal/ingest"
	"MacroPulse/internal/usecase"
	pkgch "MacroPulse/pkg/clickhouse"
	"MacroPulse/pkg/config"
	xhttp "MacroPulse/pkg/http"
	pkgkafka "MacroPulse/pkg/kafka"
	applogger "MacroPulse/pkg/logger"
	"MacroPulse/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	collector   *usecase.SampleCollector
	fetcher     *ingest.Fetcher
	queue       *queue.PriorityQueue
	runner      *usecase.PipelineRunner
	hub         *hub.Hub
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
	ReportProc  *usecase.ReportProcessor
}

// New creates a new App instance with all dependencies.
func New(
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
) *App {
	return &App{
		cfg:       cfg,
		logger:    lgr,
		collector: collector,
		fetcher:   fetcher,
		queue:     pq,
		runner:    runner,
		hub:       h,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	a.httpServer = xhttp.NewServer(l, a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Work queue first, then the fetch schedule that feeds it
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return err
		}
	}
	if a.fetcher != nil {
		go a.fetchLoop(ctx)
		l.Info("fetch schedule started")
	}

	// Streaming path
	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("collector started", applogger.Strings("indicators", a.cfg.Feed.Indicators))
	}

	// Kafka sample consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Pipeline cadence and health monitoring
	if a.runner != nil {
		a.runner.Start(ctx)
		l.Info("pipeline runner started", applogger.String("interval", a.cfg.Runner.Interval.String()))
	}
	if a.hub != nil {
		a.hub.StartHealthMonitor()
	}

	// HTTP surface
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// fetchLoop re-enqueues the HTTP source fetches on the runner cadence so
// every pipeline run sees samples no older than one interval.
func (a *App) fetchLoop(ctx context.Context) {
	interval := a.cfg.Runner.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	if err := a.fetcher.ScheduleAll(); err != nil {
		a.logger.Warn("initial fetch schedule failed", applogger.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.fetcher.ScheduleAll(); err != nil {
				a.logger.Warn("fetch schedule failed", applogger.Error(err))
			}
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger
	l.Info("shutting down...")

	if a.runner != nil {
		a.runner.Stop()
	}
	if a.hub != nil {
		a.hub.StopHealthMonitor()
	}

	// Stop collector (pipeline + stream)
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Drain the work queue
	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			l.Warn("queue stop error", applogger.Error(err))
		}
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	// Close report processor resources (publisher/storage)
	if a.ReportProc != nil {
		a.ReportProc.Close()
	}

	l.Info("shutdown complete")
	return nil
}
