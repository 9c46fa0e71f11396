// Package quota tracks a local approximation of each provider's rate limit,
// scoped per (provider, credential identity). Windows are created lazily,
// reset atomically with the first read past their deadline, and only ever
// count upward between resets.
package quota

import (
	"sync"
	"time"

	"github.com/af-corp/pulseboard/internal/types"
)

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed    bool
	Remaining  int
	Limit      int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Defaults supplies the initial limit and window length for a provider's
// quota window, consulted once when the window is first created.
type Defaults func(provider types.ProviderID) (limit int, window time.Duration)

type key struct {
	provider   types.ProviderID
	credential types.CredentialIdentity
}

// window is one (provider, credential) quota window. Each window carries
// its own mutex so contention on one pair never blocks another.
type window struct {
	mu      sync.Mutex
	count   int
	limit   int
	length  time.Duration
	resetAt time.Time
}

// Tracker holds all quota windows. Safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	windows map[key]*window

	defaults      Defaults
	minRetryAfter time.Duration
	now           func() time.Time
}

// NewTracker creates a tracker. minRetryAfter is the floor applied to
// RetryAfter so limited callers never busy-loop.
func NewTracker(defaults Defaults, minRetryAfter time.Duration) *Tracker {
	if minRetryAfter <= 0 {
		minRetryAfter = time.Second
	}
	return &Tracker{
		windows:       make(map[key]*window),
		defaults:      defaults,
		minRetryAfter: minRetryAfter,
		now:           time.Now,
	}
}

// getWindow returns (or lazily creates) the window for a key.
func (t *Tracker) getWindow(k key) *window {
	t.mu.RLock()
	w, ok := t.windows[k]
	t.mu.RUnlock()
	if ok {
		return w
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double-check after acquiring write lock
	if w, ok := t.windows[k]; ok {
		return w
	}
	limit, length := t.defaults(k.provider)
	w = &window{
		limit:   limit,
		length:  length,
		resetAt: t.now().Add(length),
	}
	t.windows[k] = w
	return w
}

// resetIfExpired rolls the window forward when its deadline has passed.
// Must be called with w.mu held.
func (t *Tracker) resetIfExpired(w *window, now time.Time) {
	if now.Before(w.resetAt) {
		return
	}
	w.count = 0
	w.resetAt = now.Add(w.length)
}

func (t *Tracker) decision(w *window, now time.Time, allowed bool) Decision {
	remaining := w.limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{
		Allowed:   allowed,
		Remaining: remaining,
		Limit:     w.limit,
		ResetAt:   w.resetAt,
	}
	if !allowed {
		d.RetryAfter = w.resetAt.Sub(now)
		if d.RetryAfter < t.minRetryAfter {
			d.RetryAfter = t.minRetryAfter
		}
	}
	return d
}

// Check reports whether a call would be admitted, without consuming a slot.
func (t *Tracker) Check(provider types.ProviderID, credential types.CredentialIdentity) Decision {
	w := t.getWindow(key{provider, credential})
	w.mu.Lock()
	defer w.mu.Unlock()
	now := t.now()
	t.resetIfExpired(w, now)
	return t.decision(w, now, w.count < w.limit)
}

// Acquire admits a call and consumes one quota slot in a single step, so
// two concurrent callers can never both squeeze through the last slot.
func (t *Tracker) Acquire(provider types.ProviderID, credential types.CredentialIdentity) Decision {
	w := t.getWindow(key{provider, credential})
	w.mu.Lock()
	defer w.mu.Unlock()
	now := t.now()
	t.resetIfExpired(w, now)
	if w.count >= w.limit {
		return t.decision(w, now, false)
	}
	w.count++
	return t.decision(w, now, true)
}

// RecordUsage adds extra consumed units beyond the one Acquire took, for
// calls a provider bills as more than a single request. Non-positive
// deltas are ignored: the count only moves down on reset.
func (t *Tracker) RecordUsage(provider types.ProviderID, credential types.CredentialIdentity, delta int) {
	if delta <= 0 {
		return
	}
	w := t.getWindow(key{provider, credential})
	w.mu.Lock()
	defer w.mu.Unlock()
	t.resetIfExpired(w, t.now())
	w.count += delta
}

// ApplyServerQuota folds authoritative quota numbers from a provider
// response into the local window, keeping whichever view is more
// restrictive: the higher used count, the server's limit, the later reset.
func (t *Tracker) ApplyServerQuota(provider types.ProviderID, credential types.CredentialIdentity, remaining, limit int, resetAt time.Time) {
	if limit <= 0 {
		return
	}
	w := t.getWindow(key{provider, credential})
	w.mu.Lock()
	defer w.mu.Unlock()

	used := limit - remaining
	if used < 0 {
		used = 0
	}
	w.limit = limit
	if used > w.count {
		w.count = used
	}
	if resetAt.After(w.resetAt) {
		w.resetAt = resetAt
	}
}

// Window returns a snapshot of the current window state, if one exists.
func (t *Tracker) Window(provider types.ProviderID, credential types.CredentialIdentity) (count, limit int, resetAt time.Time, ok bool) {
	t.mu.RLock()
	w, exists := t.windows[key{provider, credential}]
	t.mu.RUnlock()
	if !exists {
		return 0, 0, time.Time{}, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count, w.limit, w.resetAt, true
}
