// Package middleware holds the echo middleware chain: request ids, the
// per-request logger, New Relic tracing, rate limiting, authentication and
// the global error handler that renders errs.HTTPError bodies.
package middleware
