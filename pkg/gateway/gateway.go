package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/larsjoon/joonify/pkg/analytics"
	"github.com/larsjoon/joonify/pkg/async"
	"github.com/larsjoon/joonify/pkg/observability"
	"github.com/larsjoon/joonify/pkg/relay"
)

// Aggregator runs one aggregation cycle.
type Aggregator interface {
	Run(ctx context.Context) (*analytics.CycleResult, error)
}

// Config configures a Gateway.
type Config struct {
	// Secret guards the manual trigger.
	Secret string
	// Actor serves every request the gateway does not handle itself.
	Actor http.Handler
	// Aggregator runs manual and scheduled cycles.
	Aggregator Aggregator
	// Sender relays contact messages.
	Sender relay.Sender
	// ContactLimit limits contact submissions per client.
	ContactLimit RateLimitConfig
	// ScheduledTimeout bounds a background cycle. Defaults to one minute.
	ScheduledTimeout time.Duration
	// Logger defaults to an info-level JSON logger on stdout.
	Logger *observability.Logger
	// Metrics is optional.
	Metrics *observability.Metrics
}

// Gateway dispatches public requests.
type Gateway struct {
	secret           string
	actor            http.Handler
	aggregator       Aggregator
	sender           relay.Sender
	limiter          *ClientLimiter
	scheduledTimeout time.Duration
	logger           *observability.Logger
	metrics          *observability.Metrics
}

// New creates a gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.Secret == "" {
		return nil, errors.New("gateway: secret is required")
	}
	if cfg.Actor == nil {
		return nil, errors.New("gateway: actor handler is required")
	}
	if cfg.Aggregator == nil {
		return nil, errors.New("gateway: aggregator is required")
	}
	if cfg.Sender == nil {
		return nil, errors.New("gateway: sender is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	timeout := cfg.ScheduledTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	return &Gateway{
		secret:           cfg.Secret,
		actor:            cfg.Actor,
		aggregator:       cfg.Aggregator,
		sender:           cfg.Sender,
		limiter:          NewClientLimiter(cfg.ContactLimit),
		scheduledTimeout: timeout,
		logger:           logger.WithField("component", "gateway"),
		metrics:          cfg.Metrics,
	}, nil
}

// Handler returns the gateway's HTTP surface.
func (g *Gateway) Handler() http.Handler {
	r := mux.NewRouter()

	contact := g.limiter.Middleware(http.HandlerFunc(g.handleContact), g.onRateLimited)
	r.Handle("/api/contact", contact).Methods(http.MethodPost)
	r.HandleFunc("/api/contact", handleContactPreflight).Methods(http.MethodOptions)
	r.HandleFunc("/api/force-update", g.handleForceUpdate)
	r.PathPrefix("/").Handler(g.actor)

	return r
}

// Scheduled starts one aggregation cycle in the background and returns
// immediately. Failures are only logged.
func (g *Gateway) Scheduled(ctx context.Context) {
	async.SafeGo(ctx, g.scheduledTimeout, "scheduled aggregation", func(ctx context.Context) error {
		_, err := g.aggregator.Run(ctx)
		return err
	})
}

func (g *Gateway) onRateLimited(r *http.Request) {
	g.countContact("rate_limited")
	g.logger.WithField("client", clientIP(r, g.limiter.config.TrustProxyHeaders)).Warn("Contact form rate limited")
}

func (g *Gateway) countContact(result string) {
	if g.metrics != nil {
		g.metrics.ContactMessagesTotal.WithLabelValues(result).Inc()
	}
}
