// Package coordinator decides, for every outbound provider call, whether
// to execute it, hold it back, or serve a cached substitute — and keeps
// the quota and backoff bookkeeping consistent while doing so.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/af-corp/pulseboard/internal/backoff"
	"github.com/af-corp/pulseboard/internal/cache"
	"github.com/af-corp/pulseboard/internal/normalize"
	"github.com/af-corp/pulseboard/internal/providers"
	"github.com/af-corp/pulseboard/internal/quota"
	"github.com/af-corp/pulseboard/internal/registry"
	"github.com/af-corp/pulseboard/internal/telemetry"
	"github.com/af-corp/pulseboard/internal/types"
)

// Coordinator is the single entry point the portal boundary calls for
// provider data. All state it touches is keyed by (provider, credential
// identity); sessions sharing a credential share quota, sessions with
// distinct credentials share nothing.
type Coordinator struct {
	registry *registry.Registry
	clients  *providers.Set
	tracker  *quota.Tracker
	backoff  *backoff.Scheduler
	cache    cache.Store
	metrics  *telemetry.Metrics

	now func() time.Time
}

// New wires a coordinator. metrics may be nil.
func New(reg *registry.Registry, clients *providers.Set, tracker *quota.Tracker, sched *backoff.Scheduler, store cache.Store, metrics *telemetry.Metrics) *Coordinator {
	return &Coordinator{
		registry: reg,
		clients:  clients,
		tracker:  tracker,
		backoff:  sched,
		cache:    store,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Execute performs one coordinated fetch. Exactly one live attempt is ever
// made; when it cannot be made or fails softly, the degradation cache is
// the only fallback. Retrying is the caller's job, guided by RetryAfter.
func (c *Coordinator) Execute(ctx context.Context, provider types.ProviderID, cred types.Credential, endpoint string, params url.Values) types.Result {
	desc, ok := c.registry.Get(provider)
	if !ok {
		return c.fail(types.NewError(types.KindValidation, provider, "unknown provider", nil), endpoint)
	}
	if !desc.Supports(endpoint) {
		return c.fail(types.NewError(types.KindValidation, provider,
			fmt.Sprintf("provider does not support endpoint %q", endpoint), nil), endpoint)
	}
	if cred.Identity == "" {
		return c.fail(types.NewError(types.KindValidation, provider, "missing credential identity", nil), endpoint)
	}
	if cred.Expired(c.now()) {
		return c.fail(types.NewError(types.KindAuth, provider, "provider credential expired", nil), endpoint)
	}
	client, ok := c.clients.Get(provider)
	if !ok {
		return c.fail(types.NewError(types.KindValidation, provider, "no client configured", nil), endpoint)
	}

	key := cache.Key{Credential: cred.Identity, Provider: provider, Endpoint: endpoint}

	// Local quota first: a limited window means cache-or-429 without
	// touching the network.
	if d := c.tracker.Check(provider, cred.Identity); !d.Allowed {
		c.recordRateLimit(provider, "local")
		return c.cacheOrLimited(ctx, key, d.RetryAfter, endpoint)
	}

	// Prior failures still cooling down are treated the same way; no live
	// call until the backoff deadline passes.
	if ready, remaining := c.backoff.Ready(provider, cred.Identity); !ready {
		slog.Debug("provider cooling down",
			"provider", provider, "endpoint", endpoint, "remaining", remaining)
		return c.cacheOrLimited(ctx, key, remaining, endpoint)
	}

	// Admission consumes the quota slot atomically; a concurrent caller
	// cannot take the same last slot.
	adm := c.tracker.Acquire(provider, cred.Identity)
	if !adm.Allowed {
		c.recordRateLimit(provider, "local")
		return c.cacheOrLimited(ctx, key, adm.RetryAfter, endpoint)
	}
	if c.metrics != nil {
		c.metrics.SetQuotaRemaining(string(provider), adm.Remaining)
	}

	started := c.now()
	resp, err := client.Fetch(ctx, endpoint, params, cred.Token)
	if err != nil {
		// Transport failure or timeout. The slot stays consumed — we
		// cannot know whether the provider saw the request.
		delay := c.backoff.RecordFailure(provider, cred.Identity)
		slog.Warn("provider call failed",
			"provider", provider, "endpoint", endpoint, "backoff", delay, "error", err)
		return c.cacheOrError(ctx, key, endpoint,
			types.NewError(types.KindProviderUnavailable, provider, "provider unreachable", err))
	}
	if c.metrics != nil {
		c.metrics.RecordProviderLatency(string(provider), float64(c.now().Sub(started).Milliseconds()))
	}

	switch {
	case resp.Status >= 200 && resp.Status < 300:
		return c.handleSuccess(ctx, desc, key, cred, endpoint, resp)

	case resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden:
		// Credential rejected. Not a quota signal: tracker and backoff
		// stay untouched, nothing is retried.
		return c.fail(types.NewError(types.KindAuth, provider,
			fmt.Sprintf("provider rejected credential (status %d)", resp.Status), nil), endpoint)

	case resp.Status == http.StatusTooManyRequests:
		return c.handleServerRateLimit(ctx, key, cred, endpoint, resp)

	case resp.Status >= 500:
		delay := c.backoff.RecordFailure(provider, cred.Identity)
		slog.Warn("provider error response",
			"provider", provider, "endpoint", endpoint, "status", resp.Status, "backoff", delay)
		return c.cacheOrError(ctx, key, endpoint,
			types.NewError(types.KindProviderUnavailable, provider,
				fmt.Sprintf("provider returned status %d", resp.Status), nil))

	default:
		return c.fail(types.NewError(types.KindUnknown, provider,
			fmt.Sprintf("unexpected provider status %d", resp.Status), nil), endpoint)
	}
}

func (c *Coordinator) handleSuccess(ctx context.Context, desc *registry.Descriptor, key cache.Key, cred types.Credential, endpoint string, resp *providers.Response) types.Result {
	items, err := normalize.Normalize(desc, endpoint, resp.Body)
	if err != nil {
		// The call went through and consumed quota; only the payload is
		// unusable. Not a provider-health signal, so no backoff.
		slog.Error("normalization failed", "provider", desc.ID, "endpoint", endpoint, "error", err)
		return c.fail(types.NewError(types.KindUnknown, desc.ID, "unreadable provider payload", err), endpoint)
	}

	if resp.Quota != nil && resp.Quota.Limit > 0 {
		c.tracker.ApplyServerQuota(desc.ID, cred.Identity, resp.Quota.Remaining, resp.Quota.Limit, resp.Quota.ResetAt)
	}
	c.backoff.RecordSuccess(desc.ID, cred.Identity)
	c.cache.Set(ctx, key, items)

	if c.metrics != nil {
		c.metrics.RecordFetch(string(desc.ID), endpoint, string(types.ResultSuccess))
	}
	return types.Success(items)
}

func (c *Coordinator) handleServerRateLimit(ctx context.Context, key cache.Key, cred types.Credential, endpoint string, resp *providers.Response) types.Result {
	provider := key.Provider
	retryAfter := time.Duration(0)
	if resp.Quota != nil {
		if resp.Quota.Limit > 0 {
			c.tracker.ApplyServerQuota(provider, cred.Identity, resp.Quota.Remaining, resp.Quota.Limit, resp.Quota.ResetAt)
		}
		retryAfter = resp.Quota.RetryAfter
	}
	c.backoff.RecordFailure(provider, cred.Identity)
	c.recordRateLimit(provider, "server")

	if retryAfter <= 0 {
		retryAfter = c.tracker.Check(provider, cred.Identity).RetryAfter
	}
	if retryAfter <= 0 {
		retryAfter = c.backoff.NextDelay(provider, cred.Identity)
	}
	slog.Warn("provider rate limited",
		"provider", provider, "endpoint", endpoint, "retry_after", retryAfter)
	return c.cacheOrLimited(ctx, key, retryAfter, endpoint)
}

// cacheOrLimited serves the degradation cache if it has anything, else a
// rate-limited result carrying the wait hint.
func (c *Coordinator) cacheOrLimited(ctx context.Context, key cache.Key, retryAfter time.Duration, endpoint string) types.Result {
	if e, ok := c.cache.Get(ctx, key); ok {
		return c.degraded(key, endpoint, e)
	}
	if c.metrics != nil {
		c.metrics.RecordFetch(string(key.Provider), endpoint, string(types.ResultRateLimited))
	}
	return types.RateLimited(retryAfter)
}

// cacheOrError serves the degradation cache if it has anything, else the
// taxonomy error.
func (c *Coordinator) cacheOrError(ctx context.Context, key cache.Key, endpoint string, err *types.Error) types.Result {
	if e, ok := c.cache.Get(ctx, key); ok {
		return c.degraded(key, endpoint, e)
	}
	return c.fail(err, endpoint)
}

func (c *Coordinator) degraded(key cache.Key, endpoint string, e *cache.Entry) types.Result {
	if c.metrics != nil {
		c.metrics.RecordDegraded(string(key.Provider), endpoint)
		c.metrics.RecordFetch(string(key.Provider), endpoint, string(types.ResultDegraded))
	}
	return types.Degraded(e.Items, e.StoredAt)
}

func (c *Coordinator) fail(err *types.Error, endpoint string) types.Result {
	if c.metrics != nil {
		c.metrics.RecordFetch(string(err.Provider), endpoint, string(err.Kind))
	}
	return types.Failure(err)
}

func (c *Coordinator) recordRateLimit(provider types.ProviderID, source string) {
	if c.metrics != nil {
		c.metrics.RecordRateLimitHit(string(provider), source)
	}
}
