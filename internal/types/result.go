package types

import "time"

// ResultKind is the outcome of one coordinated provider fetch.
type ResultKind string

const (
	// ResultSuccess is a fresh live fetch.
	ResultSuccess ResultKind = "success"
	// ResultDegraded is last-known-good data served from the degradation
	// cache. Stale is always true; the boundary must not hide it.
	ResultDegraded ResultKind = "degraded"
	// ResultRateLimited means quota is exhausted and no cached substitute
	// exists. RetryAfter tells the caller when to come back.
	ResultRateLimited ResultKind = "rate_limited"
	// ResultError carries a taxonomy error (auth, unavailable, validation).
	ResultError ResultKind = "error"
)

// Result is what Coordinator.Execute returns. Exactly one shape per kind:
// Success and Degraded carry Items, RateLimited carries RetryAfter, Error
// carries Err. The three user-visible states — fresh, stale-but-available,
// unavailable-retry-later — are unambiguous by construction.
type Result struct {
	Kind       ResultKind
	Items      []UnifiedItem
	Stale      bool
	StoredAt   time.Time
	RetryAfter time.Duration
	Err        *Error
}

// Success builds a fresh result.
func Success(items []UnifiedItem) Result {
	return Result{Kind: ResultSuccess, Items: items}
}

// Degraded builds a stale cached result.
func Degraded(items []UnifiedItem, storedAt time.Time) Result {
	return Result{Kind: ResultDegraded, Items: items, Stale: true, StoredAt: storedAt}
}

// RateLimited builds a quota-exhausted result.
func RateLimited(retryAfter time.Duration) Result {
	return Result{Kind: ResultRateLimited, RetryAfter: retryAfter}
}

// Failure wraps a taxonomy error as a result.
func Failure(err *Error) Result {
	return Result{Kind: ResultError, Err: err}
}
