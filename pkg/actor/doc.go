// Package actor implements the live stats actor: the single owner of the
// persisted stats snapshot and of the set of live viewer subscriptions.
//
// # Overview
//
// Every actor operation runs under one mutex, so a read, a merge-persist-
// broadcast sequence and a subscription registration never interleave. The
// actor is the only writer of the snapshot and of the subscription set.
//
// Writes are authenticated with an HMAC-SHA256 tag over the raw request
// body (see pkg/signature). Privileged reads require the shared secret in
// the X-Internal-Secret header.
//
// # Subscriptions
//
// A subscription moves through Connecting, Open and Closed. The first
// message a new subscription receives is the current snapshot ({} when
// nothing has been stored). Each subscription owns a bounded send queue
// drained by a single writer goroutine; a reader goroutine detects peer
// close. A broadcast never blocks on a viewer: a full queue marks the
// subscription dead and it is reaped once the fan-out loop finishes.
//
// # HTTP Surface
//
//	GET  /api/get-stats    X-Internal-Secret  -> 200 snapshot | 403 Forbidden
//	POST /api/update       X-Signature        -> 200 Stats updated | 401 Invalid signature
//	any  Upgrade: websocket                   -> 101 + subscription
//	otherwise                                 -> 404 Not found
//
// # Usage Example
//
//	registry := actor.NewRegistry(func(name string) (*actor.Actor, error) {
//		return actor.New(name, actor.Config{
//			Secret: cfg.Secret,
//			Store:  store,
//			Logger: logger,
//		})
//	})
//	a, err := registry.Get(actor.DefaultName)
//	if err != nil {
//		return err
//	}
//	http.Handle("/", a.Handler())
//
// A separate process can reach the actor over HTTP through Client, which
// implements the same Stats and Update methods.
//
// # Related Packages
//
//   - pkg/storage: Snapshot persistence
//   - pkg/signature: Update authentication
//   - pkg/analytics: Produces the signed updates
package actor
