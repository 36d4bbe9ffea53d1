package domain

import "errors"

var (
	// ErrEmbeddingUnavailable signals that the embedding provider could not produce a vector.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrIndexUnavailable signals that the vector candidate source failed.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrProfileLookupPartial signals that some candidate profiles were missing.
	// It is informational: missing profiles are dropped, never surfaced as a failure.
	ErrProfileLookupPartial = errors.New("profile lookup partial")
	// ErrOptimizationFailed signals a query rewrite failure; callers fall back to the original query.
	ErrOptimizationFailed = errors.New("optimization failed")
	// ErrSchedulerRunSkipped signals a maintenance pass skipped because another pass is running.
	ErrSchedulerRunSkipped = errors.New("scheduler run skipped")
	// ErrInvalidQuery signals malformed search input.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrNotFound signals a missing artisan or vector.
	ErrNotFound = errors.New("not found")
)
