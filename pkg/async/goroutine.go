package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/larsjoon/joonify/pkg/observability"
)

// SafeGo executes fn in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging through the context's logger
//
// The returned channel is closed once fn has returned or panicked.
//
// Example:
//
//	SafeGo(ctx, time.Minute, "scheduled aggregation", func(ctx context.Context) error {
//	    _, err := aggregator.Run(ctx)
//	    return err
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	logger := observability.FromContext(parentCtx).WithField("task", taskName)

	go func() {
		defer close(done)

		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(map[string]interface{}{
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				}).Error("Background task panicked")
			}
		}()

		start := time.Now()
		if err := fn(ctx); err != nil {
			logger.WithError(err).Error("Background task failed")
			return
		}
		logger.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("Background task complete")
	}()

	return done
}
