package models

import "errors"

var (
	// ErrInvalidArgument marks caller mistakes (blank ticker and the like).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUpstreamUnavailable marks a failing price or catalog collaborator.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrQuoteNotFound is returned by a price source that has no data for a ticker.
	ErrQuoteNotFound = errors.New("quote not found")
	// ErrStrategyNotFound is returned by catalogs for unknown template ids.
	ErrStrategyNotFound = errors.New("strategy not found")
)
