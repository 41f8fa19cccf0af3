package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/larsjoon/joonify/pkg/actor"
	"github.com/larsjoon/joonify/pkg/analytics"
	"github.com/larsjoon/joonify/pkg/config"
	"github.com/larsjoon/joonify/pkg/observability"
)

// Options holds command line settings. Secrets come from the environment.
type Options struct {
	ActorURL      string
	Schedule      string
	RunOnce       bool
	CycleTimeout  time.Duration
	ClientTimeout time.Duration
	LogLevel      string
}

func main() {
	opts := parseFlags()
	logger := setupLogger(opts.LogLevel)
	lib := libraryLogger(opts.LogLevel)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if !cfg.AnalyticsEnabled() {
		logger.Fatal("CLOUDFLARE_ZONE_ID and ANALYTICS_TOKEN are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel, lib)
	if err != nil {
		logger.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}
	defer observability.ShutdownOTel(context.Background(), providers, lib)

	agg := analytics.NewAggregator(
		analytics.NewCloudflareProvider(analytics.CloudflareConfig{
			Endpoint: cfg.Analytics.Endpoint,
			Token:    cfg.Analytics.Token,
			Timeout:  cfg.Analytics.Timeout,
		}),
		actor.NewClient(opts.ActorURL, opts.ClientTimeout),
		analytics.Config{
			ZoneTag:      cfg.Analytics.ZoneTag,
			Secret:       cfg.Stats.Secret,
			CycleTimeout: opts.CycleTimeout,
			Logger:       lib,
		},
	)

	if opts.RunOnce {
		result, err := agg.Run(ctx)
		if err != nil {
			logger.Fatalf("Aggregation failed: %v", err)
		}
		out, _ := json.Marshal(result)
		fmt.Println(string(out))
		return
	}

	if err := runScheduled(ctx, agg, opts.Schedule, logger, lib); err != nil {
		logger.Fatal(err)
	}
}

func parseFlags() Options {
	var opts Options
	flag.StringVar(&opts.ActorURL, "actor-url", getEnv("JOONIFY_ACTOR_URL", "http://localhost:8080"), "Base URL of the joonify server")
	flag.StringVar(&opts.Schedule, "schedule", getEnv("JOONIFY_SCHEDULE", "*/30 * * * *"), "Cron schedule for aggregation (UTC)")
	flag.BoolVar(&opts.RunOnce, "run-once", false, "Run one aggregation cycle, print the result and exit")
	flag.DurationVar(&opts.CycleTimeout, "cycle-timeout", analytics.DefaultCycleTimeout, "Upper bound for one cycle")
	flag.DurationVar(&opts.ClientTimeout, "client-timeout", 10*time.Second, "Timeout for calls to the joonify server")
	flag.StringVar(&opts.LogLevel, "log-level", getEnv("JOONIFY_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	flag.Parse()
	return opts
}

type cycleRunner interface {
	Run(ctx context.Context) (*analytics.CycleResult, error)
}

// runScheduled runs agg on schedule until ctx is canceled, then waits for a
// running cycle to finish.
func runScheduled(ctx context.Context, agg cycleRunner, schedule string, logger *logrus.Logger, lib *observability.Logger) error {
	c := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(schedule, func() {
		defer observability.RecoverPanic(lib, "scheduled aggregation")

		start := time.Now()
		result, err := agg.Run(ctx)
		if err != nil {
			logger.WithError(err).Error("Aggregation failed")
			return
		}
		logger.WithFields(logrus.Fields{
			"visitors":  result.Visitors,
			"countries": result.Countries,
			"duration":  time.Since(start).Round(time.Millisecond),
		}).Info("Aggregation completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule aggregation: %w", err)
	}

	c.Start()
	logger.Infof("Joonify aggregator started, schedule %q", schedule)

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")
	<-c.Stop().Done()
	logger.Info("Aggregator stopped")
	return nil
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// libraryLogger is the structured logger handed to joonify packages.
func libraryLogger(logLevel string) *observability.Logger {
	level, _ := observability.ParseLogLevel(logLevel)
	return observability.NewLogger(level, os.Stderr).WithField("service", "joonify-aggregator")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
