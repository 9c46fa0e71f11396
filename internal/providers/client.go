// Package providers issues the live HTTP calls to upstream work-tracking
// services and classifies what comes back: payload, status family, and any
// quota numbers the provider reported in its headers.
package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/af-corp/pulseboard/internal/registry"
	"github.com/af-corp/pulseboard/internal/types"
)

// QuotaInfo carries server-reported quota headers, when present.
type QuotaInfo struct {
	Remaining  int
	Limit      int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Response is the provider-neutral result of one live call.
type Response struct {
	Status int
	Body   []byte
	Quota  *QuotaInfo
}

// Client performs one logical fetch against a provider endpoint. The token
// is used for the Authorization header only and must never be logged.
type Client interface {
	Provider() types.ProviderID
	Fetch(ctx context.Context, endpoint string, params url.Values, token string) (*Response, error)
}

// HTTPClient is the production Client backed by net/http.
type HTTPClient struct {
	desc   *registry.Descriptor
	client *http.Client
}

func NewHTTPClient(desc *registry.Descriptor) *HTTPClient {
	return &HTTPClient{
		desc: desc,
		client: &http.Client{
			Timeout: desc.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

func (c *HTTPClient) Provider() types.ProviderID { return c.desc.ID }

func (c *HTTPClient) Fetch(ctx context.Context, endpoint string, params url.Values, token string) (*Response, error) {
	path, ok := c.desc.Paths[endpoint]
	if !ok {
		return nil, fmt.Errorf("provider %s has no endpoint %q", c.desc.ID, endpoint)
	}

	query := defaultParams(c.desc.ID, endpoint)
	for k, v := range params {
		query[k] = v
	}

	u := c.desc.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	setAuthHeader(req, c.desc.ID, token)
	req.Header.Set("Accept", acceptHeader(c.desc.ID))
	for k, v := range c.desc.Headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", c.desc.ID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", c.desc.ID, err)
	}

	return &Response{
		Status: resp.StatusCode,
		Body:   body,
		Quota:  parseQuotaHeaders(c.desc.ID, resp.Header),
	}, nil
}

// defaultParams returns the params an endpoint cannot be called without.
// GitHub serves pull requests through the search API, which rejects
// requests carrying no q. Callers may override any of these.
func defaultParams(id types.ProviderID, endpoint string) url.Values {
	query := url.Values{}
	if id == types.ProviderGitHub && endpoint == registry.EndpointPullRequests {
		query.Set("q", "is:pr involves:@me")
		query.Set("sort", "created")
	}
	return query
}

func setAuthHeader(req *http.Request, id types.ProviderID, token string) {
	switch id {
	case types.ProviderGitLab:
		req.Header.Set("PRIVATE-TOKEN", token)
	default:
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func acceptHeader(id types.ProviderID) string {
	if id == types.ProviderGitHub {
		return "application/vnd.github+json"
	}
	return "application/json"
}

// Set holds the built clients, one per registered provider. Hot reload
// swaps the whole set.
type Set struct {
	mu      sync.RWMutex
	clients map[types.ProviderID]Client
}

func NewSet() *Set {
	return &Set{clients: make(map[types.ProviderID]Client)}
}

func (s *Set) Register(c Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.Provider()] = c
}

func (s *Set) Get(id types.ProviderID) (Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	return c, ok
}

// Swap replaces the client set with other's. Used on config hot reload.
func (s *Set) Swap(other *Set) {
	other.mu.RLock()
	clients := other.clients
	other.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = clients
}

// BuildFromRegistry creates an HTTP client per registered provider.
func BuildFromRegistry(reg *registry.Registry) *Set {
	set := NewSet()
	for _, id := range reg.IDs() {
		if desc, ok := reg.Get(id); ok {
			set.Register(NewHTTPClient(desc))
		}
	}
	return set
}
