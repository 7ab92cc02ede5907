// Package errs defines the error shapes returned to API clients.
//
// Handlers return *HTTPError values; the global error handler serializes
// them as JSON. Field-level validation failures travel in Errors.
package errs
