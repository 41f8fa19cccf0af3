package actor

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/larsjoon/joonify/pkg/observability"
	"github.com/larsjoon/joonify/pkg/signature"
	"github.com/larsjoon/joonify/pkg/stats"
	"github.com/larsjoon/joonify/pkg/storage"
)

// DefaultName is the name of the process-wide stats actor.
const DefaultName = "joonify-live-stats"

var tracer = otel.Tracer("joonify/actor")

// Config configures an Actor.
type Config struct {
	// Secret is the shared secret used for privileged reads and update tags.
	Secret string
	// Store persists the snapshot.
	Store storage.Store
	// Logger defaults to an info-level JSON logger on stdout.
	Logger *observability.Logger
	// Metrics is optional.
	Metrics *observability.Metrics
	// Subscriptions tunes viewer connections; zero fields take defaults.
	Subscriptions SubscriptionConfig
}

// Actor owns the stats snapshot and the live subscriptions.
type Actor struct {
	name    string
	secret  string
	store   storage.Store
	logger  *observability.Logger
	metrics *observability.Metrics
	subCfg  SubscriptionConfig

	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool
}

// New creates an actor. It does not touch the store until the first call.
func New(name string, cfg Config) (*Actor, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("actor %s: secret is required", name)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("actor %s: store is required", name)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	return &Actor{
		name:    name,
		secret:  cfg.Secret,
		store:   cfg.Store,
		logger:  logger.WithField("actor", name),
		metrics: cfg.Metrics,
		subCfg:  cfg.Subscriptions.withDefaults(),
		subs:    make(map[string]*Subscription),
	}, nil
}

// Name returns the actor's registry name.
func (a *Actor) Name() string {
	return a.name
}

// Stats returns the persisted snapshot to callers presenting the shared
// secret. Any other secret, including an empty one, yields ErrForbidden.
func (a *Actor) Stats(ctx context.Context, secret string) (stats.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Actor.Stats")
	defer span.End()

	if subtle.ConstantTimeCompare([]byte(secret), []byte(a.secret)) != 1 {
		a.countRead("forbidden")
		span.SetStatus(codes.Error, "forbidden")
		return nil, ErrForbidden
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	snap, err := a.store.Get(ctx)
	if err != nil {
		a.countRead("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "store read failed")
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}

	a.countRead("ok")
	return snap, nil
}

// Update verifies tag over body, merges the partial snapshot in body over
// the persisted one, persists the result and broadcasts it to every open
// subscription. Nothing is mutated unless the signature and payload are valid.
func (a *Actor) Update(ctx context.Context, body []byte, tag string) error {
	ctx, span := tracer.Start(ctx, "Actor.Update",
		trace.WithAttributes(attribute.Int("body.size", len(body))),
	)
	defer span.End()

	if !signature.Verify(a.secret, body, tag) {
		a.countUpdate("invalid_signature")
		span.SetStatus(codes.Error, "invalid signature")
		return ErrInvalidSignature
	}

	update, err := stats.Parse(body)
	if err == nil {
		err = update.Validate()
	}
	if err != nil {
		a.countUpdate("invalid_payload")
		span.SetStatus(codes.Error, "invalid payload")
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	current, err := a.store.Get(ctx)
	if err != nil {
		a.countUpdate("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "store read failed")
		return fmt.Errorf("failed to read stats: %w", err)
	}

	merged := current.Merge(update)
	if err := a.store.Put(ctx, merged); err != nil {
		a.countUpdate("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "store write failed")
		return fmt.Errorf("failed to persist stats: %w", err)
	}

	payload, err := merged.Encode()
	if err != nil {
		a.countUpdate("error")
		return fmt.Errorf("failed to encode stats: %w", err)
	}

	delivered := a.broadcast(payload)
	span.SetAttributes(
		attribute.Int("update.keys", len(update)),
		attribute.Int("broadcast.recipients", delivered),
	)
	a.countUpdate("ok")

	a.logger.WithFields(map[string]interface{}{
		"keys":       len(update),
		"recipients": delivered,
	}).Debug("Stats updated")
	return nil
}

// Subscribe registers conn as a viewer. The current snapshot is queued as
// its first message before any later broadcast can reach it.
func (a *Actor) Subscribe(ctx context.Context, conn Conn) (*Subscription, error) {
	sub := newSubscription(conn, a.subCfg)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		conn.Close()
		return nil, ErrClosed
	}

	snap, err := a.store.Get(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	first, err := snap.Encode()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to encode stats: %w", err)
	}

	sub.open(first)
	a.subs[sub.id] = sub
	a.setActive()

	go func() {
		defer observability.RecoverPanicWithCallback(a.logger, "subscription write loop", func() { a.drop(sub, reasonWriteFailed) })
		sub.writeLoop(a.drop)
	}()
	go func() {
		defer observability.RecoverPanicWithCallback(a.logger, "subscription read loop", func() { a.drop(sub, reasonPeerClosed) })
		sub.readLoop(a.drop)
	}()

	a.logger.WithField("subscription_id", sub.id).Debug("Subscription opened")
	return sub, nil
}

// SubscriberCount returns the number of open subscriptions.
func (a *Actor) SubscriberCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subs)
}

// Close closes every subscription and rejects further writes. The store is
// left open; its owner closes it.
func (a *Actor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	for _, sub := range a.subs {
		a.remove(sub, reasonShutdown)
	}
	return nil
}

// broadcast queues payload on every open subscription. Subscriptions that
// cannot take it are collected and removed after the loop. Callers hold a.mu.
func (a *Actor) broadcast(payload []byte) int {
	var dead []*Subscription
	delivered := 0
	for _, sub := range a.subs {
		if sub.enqueue(payload) {
			delivered++
			continue
		}
		dead = append(dead, sub)
	}

	for _, sub := range dead {
		reason := reasonSlowConsumer
		if sub.State() == StateClosed {
			reason = reasonClosed
		}
		a.remove(sub, reason)
	}

	if a.metrics != nil {
		a.metrics.BroadcastsTotal.Inc()
		a.metrics.BroadcastRecipients.Observe(float64(delivered))
	}
	return delivered
}

// drop is called by a subscription's own goroutines when it fails.
func (a *Actor) drop(sub *Subscription, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.remove(sub, reason)
}

// remove closes sub and deletes it from the set. Callers hold a.mu.
func (a *Actor) remove(sub *Subscription, reason string) {
	sub.close()
	if _, ok := a.subs[sub.id]; !ok {
		return
	}
	delete(a.subs, sub.id)
	a.setActive()

	if a.metrics != nil {
		a.metrics.SubscriptionsDropped.WithLabelValues(reason).Inc()
	}
	a.logger.WithFields(map[string]interface{}{
		"subscription_id": sub.id,
		"reason":          reason,
	}).Debug("Subscription closed")
}

func (a *Actor) setActive() {
	if a.metrics != nil {
		a.metrics.SubscriptionsActive.Set(float64(len(a.subs)))
	}
}

func (a *Actor) countUpdate(result string) {
	if a.metrics != nil {
		a.metrics.UpdatesTotal.WithLabelValues(result).Inc()
	}
}

func (a *Actor) countRead(result string) {
	if a.metrics != nil {
		a.metrics.StatsReadsTotal.WithLabelValues(result).Inc()
	}
}
