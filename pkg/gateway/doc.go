// Package gateway is the public HTTP entry point of the stats service.
//
// # Overview
//
// The gateway owns two routes and forwards everything else, unmodified, to
// the stats actor:
//
//	POST /api/contact                 contact form -> email relay (rate limited)
//	GET  /api/force-update?key=SECRET run one aggregation cycle now
//	*                                 stats actor (get-stats, update, websocket)
//
// Scheduled runs a cycle in the background for cron-style triggers; its
// errors are logged and never surfaced.
//
// # Usage Example
//
//	gw, err := gateway.New(gateway.Config{
//		Secret:     cfg.Secret,
//		Actor:      statsActor.Handler(),
//		Aggregator: agg,
//		Sender:     sender,
//		Logger:     logger,
//	})
//	if err != nil {
//		return err
//	}
//	srv := &http.Server{Addr: ":8080", Handler: gw.Handler()}
//
// # Related Packages
//
//   - pkg/actor: Receives all other requests
//   - pkg/analytics: Runs the aggregation cycle
//   - pkg/relay: Delivers contact messages
package gateway
