package catalog

import "errors"

// Sentinel errors for the catalog domain.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrBadRequest   = errors.New("bad request")
	ErrRateLimited  = errors.New("rate limit exceeded")
	// ErrSourceUnavailable is returned when the content source is skipped
	// because its circuit breaker is open.
	ErrSourceUnavailable = errors.New("content source unavailable")
)
