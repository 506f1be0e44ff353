// Package app composes every Aegis subsystem behind a single facade, the
// same shape as the teacher's engine.Engine: one constructor that wires
// storage, ingestion, registry, health, and the read API, and a pair of
// lifecycle methods (Run, Stop) an embedder or CLI drives without touching
// the individual components directly.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fieldwatch/aegis/internal/config"
	"github.com/fieldwatch/aegis/internal/health"
	"github.com/fieldwatch/aegis/internal/httpapi"
	"github.com/fieldwatch/aegis/internal/ingest/bus"
	"github.com/fieldwatch/aegis/internal/ingest/httpcollector"
	"github.com/fieldwatch/aegis/internal/query"
	"github.com/fieldwatch/aegis/internal/registry"
	"github.com/fieldwatch/aegis/internal/store"
	"github.com/fieldwatch/aegis/internal/telemetry/events"
	"github.com/fieldwatch/aegis/internal/telemetry/logging"
	"github.com/fieldwatch/aegis/internal/telemetry/metrics"
)

// App composes the server's subsystems. Zero value is not usable; build one
// with New.
type App struct {
	cfg config.Config

	writer     *store.Writer
	registry   *registry.Registry
	supervisor *health.Supervisor
	repo       query.Repository
	collector  *httpcollector.Collector
	subscriber *bus.Subscriber

	metrics metrics.Provider
	log     logging.Logger

	httpServer    *http.Server
	metricsServer *http.Server

	wg sync.WaitGroup
}

// New wires every component from cfg but starts nothing. Run starts the
// background loops and blocks the read API's HTTP server.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	baseLog, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	log := logging.New(baseLog)

	metricsProvider := selectMetricsProvider(cfg)

	eventBus := events.NewBus(metricsProvider)

	if err := store.Migrate(cfg.Store.DSN); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	writer, err := store.NewWriter(ctx, cfg.Store.DSN, cfg.Store.MaxConns, cfg.Store.MaxRetries, log, metricsProvider)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	reg, err := registry.New(cfg.Registry.KitFilePath, eventBus, log)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("load kit registry: %w", err)
	}

	supervisor := health.NewSupervisor(reg, cfg.Registry.Thresholds, cfg.Registry.HealthTTL, eventBus)

	collector := httpcollector.New(httpcollector.Config{
		MaxInFlight:       cfg.Ingest.MaxInFlight,
		ReconcileInterval: 5 * time.Second,
		PollTimeout:       5 * time.Second,
		Backoff:           cfg.Ingest.Backoff,
		WriterHighWater:   cfg.Store.WriterHighWater,
		WriterLowWater:    cfg.Store.WriterLowWater,
	}, reg, reg, writer, log, metricsProvider)

	var subscriber *bus.Subscriber
	if cfg.Ingest.MQTTEnabled {
		subscriber = bus.New(bus.Config{
			BrokerURL: cfg.Ingest.MQTTBrokerURL,
			ClientID:  cfg.Ingest.MQTTClientID,
			Topics:    cfg.Ingest.MQTTTopics,
		}, writer, reg, log, metricsProvider)
	}

	repo := query.NewRepository(writer.Pool())

	a := &App{
		cfg:        cfg,
		writer:     writer,
		registry:   reg,
		supervisor: supervisor,
		repo:       repo,
		collector:  collector,
		subscriber: subscriber,
		metrics:    metricsProvider,
		log:        log,
	}
	return a, nil
}

// Run starts the registry file watcher, ingestion loops, and the read HTTP
// API, blocking until ctx is cancelled or the HTTP server fails to serve.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Registry.WatchFile {
		if err := a.registry.WatchFile(ctx); err != nil {
			return fmt.Errorf("watch kit file: %w", err)
		}
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.collector.Run(ctx)
	}()

	if a.subscriber != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.subscriber.Run(ctx); err != nil {
				a.log.ErrorCtx(ctx, "mqtt subscriber exited", zap.Error(err))
			}
		}()
	}

	router := httpapi.NewRouter(httpapi.Config{
		Kits:           a.registry,
		Data:           a.writer,
		HealthSource:   a.supervisor,
		Repository:     a.repo,
		Metrics:        a.metrics,
		Log:            a.log,
		AllowedOrigins: a.cfg.HTTPAPI.AllowedOrigins,
	})
	a.httpServer = &http.Server{Addr: a.cfg.HTTPAPI.ListenAddr, Handler: router}

	if a.cfg.Telemetry.MetricsEnabled && a.cfg.Telemetry.PrometheusAddr != a.cfg.HTTPAPI.ListenAddr {
		mh := metricsHandler(a.metrics)
		if mh != nil {
			mux := http.NewServeMux()
			mux.Handle("/metrics", mh)
			a.metricsServer = &http.Server{Addr: a.cfg.Telemetry.PrometheusAddr, Handler: mux}
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				a.log.InfoCtx(ctx, "metrics server listening", zap.String("addr", a.cfg.Telemetry.PrometheusAddr))
				if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					a.log.ErrorCtx(ctx, "metrics server exited", zap.Error(err))
				}
			}()
		}
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.httpServer.Shutdown(shutdownCtx)
		if a.metricsServer != nil {
			_ = a.metricsServer.Shutdown(shutdownCtx)
		}
	}()

	a.log.InfoCtx(ctx, "http api listening", zap.String("addr", a.cfg.HTTPAPI.ListenAddr))
	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http api: %w", err)
	}
	a.wg.Wait()
	return nil
}

// Stop releases the storage pool. Safe to call after Run returns.
func (a *App) Stop() {
	if a.writer != nil {
		a.writer.Close()
	}
}

func metricsHandler(p metrics.Provider) http.Handler {
	if h, ok := p.(interface{ MetricsHandler() http.Handler }); ok {
		return h.MetricsHandler()
	}
	return nil
}

// selectMetricsProvider picks a backend the way the teacher's engine
// construction does: Prometheus by default, OTel or noop by explicit
// config, always falling back to Prometheus for an unrecognized value.
func selectMetricsProvider(cfg config.Config) metrics.Provider {
	if !cfg.Telemetry.MetricsEnabled {
		return metrics.NewNoopProvider()
	}
	switch cfg.Telemetry.MetricsBackend {
	case "otel":
		return metrics.NewOTelProvider(metrics.OTelProviderOptions{ServiceName: "aegis", CardinalityLimit: cfg.Telemetry.CardinalityLimit})
	case "noop":
		return metrics.NewNoopProvider()
	default:
		return metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{CardinalityLimit: cfg.Telemetry.CardinalityLimit})
	}
}
