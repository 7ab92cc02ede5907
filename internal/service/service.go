// Package service holds the business rules between the HTTP handlers and
// the repositories. Unlike the repositories it reports failures as
// *errs.HTTPError values the handlers can return directly.
package service
