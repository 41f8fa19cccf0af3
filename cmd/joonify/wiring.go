package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/larsjoon/joonify/pkg/actor"
	"github.com/larsjoon/joonify/pkg/analytics"
	"github.com/larsjoon/joonify/pkg/config"
	"github.com/larsjoon/joonify/pkg/gateway"
	"github.com/larsjoon/joonify/pkg/observability"
	"github.com/larsjoon/joonify/pkg/relay"
)

var (
	errAnalyticsDisabled = errors.New("analytics is not configured (CLOUDFLARE_ZONE_ID, ANALYTICS_TOKEN)")
	errContactDisabled   = fmt.Errorf("%w: RESEND_API_KEY is not set", relay.ErrRelayFailed)
)

// disabledAggregator stands in when analytics credentials are missing so the
// rest of the service still runs.
type disabledAggregator struct{}

func (disabledAggregator) Run(context.Context) (*analytics.CycleResult, error) {
	return nil, errAnalyticsDisabled
}

type disabledSender struct{}

func (disabledSender) Send(context.Context, relay.ContactRequest) error {
	return errContactDisabled
}

func newAggregator(cfg *config.Config, a *actor.Actor, logger *observability.Logger, metrics *observability.Metrics) gateway.Aggregator {
	if !cfg.AnalyticsEnabled() {
		logger.Warn("Analytics credentials missing, aggregation disabled")
		return disabledAggregator{}
	}

	provider := analytics.NewCloudflareProvider(analytics.CloudflareConfig{
		Endpoint: cfg.Analytics.Endpoint,
		Token:    cfg.Analytics.Token,
		Timeout:  cfg.Analytics.Timeout,
	})
	return analytics.NewAggregator(provider, a, analytics.Config{
		ZoneTag:      cfg.Analytics.ZoneTag,
		Secret:       cfg.Stats.Secret,
		CycleTimeout: cfg.Analytics.CycleTimeout,
		Logger:       logger,
		Metrics:      metrics,
	})
}

func newSender(cfg *config.Config, logger *observability.Logger) relay.Sender {
	if !cfg.ContactEnabled() {
		logger.Warn("RESEND_API_KEY missing, contact relay disabled")
		return disabledSender{}
	}
	return relay.NewResendSender(cfg.ResendConfig())
}

// newPublicServer serves the gateway. It sets no write timeout: websocket
// subscriptions outlive any single response, and the actor sets per-frame
// write deadlines itself.
func newPublicServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:     handler,
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: cfg.IdleTimeout,
	}
}

// newHealthServer serves health checks and metrics; every response is short.
func newHealthServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.HealthPort),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
