package providers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/af-corp/pulseboard/internal/types"
)

// parseQuotaHeaders extracts server-reported quota state. Each provider
// family spells the headers differently:
//
//	GitHub: X-RateLimit-Remaining / X-RateLimit-Limit / X-RateLimit-Reset (unix seconds)
//	GitLab: RateLimit-Remaining / RateLimit-Limit / RateLimit-Reset (unix seconds)
//	Jira:   X-RateLimit-* when configured, plus Retry-After on 429
//
// Returns nil when the response carries no quota information at all.
func parseQuotaHeaders(id types.ProviderID, h http.Header) *QuotaInfo {
	var info QuotaInfo
	var found bool

	remainingKey, limitKey, resetKey := "X-RateLimit-Remaining", "X-RateLimit-Limit", "X-RateLimit-Reset"
	if id == types.ProviderGitLab {
		remainingKey, limitKey, resetKey = "RateLimit-Remaining", "RateLimit-Limit", "RateLimit-Reset"
	}

	if v, ok := intHeader(h, remainingKey); ok {
		info.Remaining = v
		found = true
	}
	if v, ok := intHeader(h, limitKey); ok {
		info.Limit = v
		found = true
	}
	if v, ok := intHeader(h, resetKey); ok {
		info.ResetAt = time.Unix(int64(v), 0)
		found = true
	}
	if d, ok := retryAfterHeader(h); ok {
		info.RetryAfter = d
		found = true
	}

	if !found {
		return nil
	}
	return &info
}

// retryAfterHeader parses Retry-After in either form RFC 9110 allows:
// delta-seconds or an HTTP-date.
func retryAfterHeader(h http.Header) (time.Duration, bool) {
	raw := h.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return time.Duration(v) * time.Second, true
	}
	if t, err := http.ParseTime(raw); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

func intHeader(h http.Header, key string) (int, bool) {
	raw := h.Get(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
