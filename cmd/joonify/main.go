package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/larsjoon/joonify/pkg/actor"
	"github.com/larsjoon/joonify/pkg/config"
	"github.com/larsjoon/joonify/pkg/gateway"
	"github.com/larsjoon/joonify/pkg/httputil"
	"github.com/larsjoon/joonify/pkg/observability"
	"github.com/larsjoon/joonify/pkg/storage"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "joonify: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout).WithField("service", "joonify")
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("joonify exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := context.Background()

	if cfg.Observability.OTel.ServiceVersion == "dev" {
		cfg.Observability.OTel.ServiceVersion = version
	}
	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	logger.WithField("backend", cfg.Storage.Type).Info("Stats store opened")

	actors := actor.NewRegistry(func(name string) (*actor.Actor, error) {
		return actor.New(name, actor.Config{
			Secret:        cfg.Stats.Secret,
			Store:         store,
			Logger:        logger,
			Metrics:       metrics,
			Subscriptions: cfg.Stats.Subscriptions,
		})
	})
	statsActor, err := actors.Get(cfg.Stats.ActorName)
	if err != nil {
		return err
	}

	agg := newAggregator(cfg, statsActor, logger, metrics)
	sender := newSender(cfg, logger)

	gw, err := gateway.New(gateway.Config{
		Secret:           cfg.Stats.Secret,
		Actor:            statsActor.Handler(),
		Aggregator:       agg,
		Sender:           sender,
		ContactLimit:     cfg.Contact.RateLimit,
		ScheduledTimeout: cfg.Analytics.CycleTimeout + 5*time.Second,
		Logger:           logger,
		Metrics:          metrics,
	})
	if err != nil {
		return err
	}

	handler := httputil.Chain(
		httputil.RequestIDMiddleware(logger),
		httputil.RecoveryMiddleware,
		httputil.LoggingMiddleware,
		observability.HTTPMetricsMiddleware(metrics),
	)(gw.Handler())

	server := newPublicServer(cfg.Server, otelhttp.NewHandler(handler, "joonify"))

	health := observability.NewHealthChecker(version)
	health.AddCheck("storage", true, func(ctx context.Context) error {
		if p, ok := store.(storage.Pinger); ok {
			return p.Ping(ctx)
		}
		return nil
	})
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, health)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := newHealthServer(cfg.Server, healthMux)

	scheduler := cron.New(cron.WithLocation(time.UTC))
	if cfg.Analytics.Schedule != "" {
		if _, err := scheduler.AddFunc(cfg.Analytics.Schedule, func() {
			gw.Scheduled(observability.WithLogger(context.Background(), logger))
		}); err != nil {
			return fmt.Errorf("failed to schedule aggregation: %w", err)
		}
		scheduler.Start()
		logger.WithField("schedule", cfg.Analytics.Schedule).Info("Aggregation scheduled")
	}
	if cfg.Analytics.RunOnStart {
		gw.Scheduled(observability.WithLogger(context.Background(), logger))
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	shutdown.AddServer(server)
	shutdown.AddServer(healthServer)
	shutdown.RegisterShutdownFunc("cron", func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdown.RegisterShutdownFunc("actors", func(context.Context) error { return actors.Close() })
	shutdown.RegisterShutdownFunc("storage", func(context.Context) error { return store.Close() })
	shutdown.RegisterShutdownFunc("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	waitCtx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	for _, srv := range []*http.Server{server, healthServer} {
		go func(srv *http.Server) {
			logger.WithField("addr", srv.Addr).Info("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).WithField("addr", srv.Addr).Error("HTTP server failed")
				cancel()
			}
		}(srv)
	}

	return shutdown.Wait(waitCtx)
}
