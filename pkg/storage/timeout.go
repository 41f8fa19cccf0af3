package storage

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/larsjoon/joonify/pkg/stats"
)

var tracer = otel.Tracer("joonify/storage")

// instrumentedStore bounds every call by a timeout and records a span.
type instrumentedStore struct {
	next    Store
	backend string
	timeout time.Duration
}

// WithTimeout wraps store so each Get and Put runs under its own span and,
// when d is positive, its own deadline. Ping is forwarded when the wrapped
// store supports it.
func WithTimeout(store Store, backend string, d time.Duration) Store {
	return &instrumentedStore{next: store, backend: backend, timeout: d}
}

func (s *instrumentedStore) start(ctx context.Context, op string) (context.Context, context.CancelFunc, trace.Span) {
	ctx, span := tracer.Start(ctx, "Storage."+op,
		trace.WithAttributes(
			attribute.String("storage.backend", s.backend),
			attribute.String("storage.operation", op),
		),
	)
	if s.timeout <= 0 {
		return ctx, func() {}, span
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return ctx, cancel, span
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (s *instrumentedStore) Get(ctx context.Context) (stats.Snapshot, error) {
	ctx, cancel, span := s.start(ctx, "Get")
	defer cancel()

	snap, err := s.next.Get(ctx)
	finish(span, err)
	return snap, err
}

func (s *instrumentedStore) Put(ctx context.Context, snap stats.Snapshot) error {
	ctx, cancel, span := s.start(ctx, "Put")
	defer cancel()

	err := s.next.Put(ctx, snap)
	finish(span, err)
	return err
}

func (s *instrumentedStore) Ping(ctx context.Context) error {
	p, ok := s.next.(Pinger)
	if !ok {
		return nil
	}
	ctx, cancel, span := s.start(ctx, "Ping")
	defer cancel()

	err := p.Ping(ctx)
	finish(span, err)
	return err
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}
