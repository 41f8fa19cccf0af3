// Package async provides safe execution of background tasks.
//
// # Overview
//
// SafeGo runs a function in its own goroutine with a timeout, panic
// recovery and structured error logging, so a failing background task never
// takes the process down.
//
//	async.SafeGo(ctx, time.Minute, "scheduled aggregation", func(ctx context.Context) error {
//		_, err := aggregator.Run(ctx)
//		return err
//	})
//
// Errors are logged through observability.FromContext(ctx).
//
// # Related Packages
//
//   - pkg/gateway: runs scheduled aggregation cycles through SafeGo
package async
