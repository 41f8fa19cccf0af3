// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helpers for JSON encoding/decoding, JSON error
// responses of the form {"error": "..."}, and the middleware shared by the
// joonify HTTP servers.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, result)
//	httputil.WriteBadRequest(w, "Missing fields")
//	httputil.WriteUnauthorized(w, "Unauthorized")
//	httputil.WriteTooManyRequests(w, "rate limit exceeded")
//
// # Request Parsing
//
//	var req relay.ContactRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.LoggingMiddleware,
//	)(router)
//
// The wrapped response writer supports http.Hijacker, so websocket
// upgrades work behind the chain.
//
// # Related Packages
//
//   - pkg/observability: request-scoped loggers and metrics middleware
//   - pkg/gateway: the public router these middleware wrap
package httputil
