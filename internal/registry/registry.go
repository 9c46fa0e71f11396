// Package registry holds the static catalog of work-tracking providers:
// which endpoints each one serves, the item kind an endpoint yields, and
// the local quota defaults applied before the provider reports its own.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/af-corp/pulseboard/internal/config"
	"github.com/af-corp/pulseboard/internal/types"
)

// Endpoint is a logical endpoint name, stable across providers.
const (
	EndpointIssues        = "issues"
	EndpointPullRequests  = "pull-requests"
	EndpointMergeRequests = "merge-requests"
	EndpointPipelines     = "pipelines"
)

// Descriptor describes one registered provider: its native paths per
// logical endpoint and the quota window used until the provider reports
// authoritative numbers.
type Descriptor struct {
	ID          types.ProviderID
	BaseURL     string
	Timeout     time.Duration
	QuotaLimit  int
	QuotaWindow time.Duration
	// Paths maps logical endpoint -> provider-native path. Absence means
	// the provider does not support that endpoint.
	Paths map[string]string
	// Headers are extra static headers sent on every live call.
	Headers map[string]string
}

// Supports reports whether the provider serves the logical endpoint.
func (d *Descriptor) Supports(endpoint string) bool {
	_, ok := d.Paths[endpoint]
	return ok
}

// ItemKind returns the unified item type an endpoint yields for this provider.
func (d *Descriptor) ItemKind(endpoint string) types.ItemType {
	switch endpoint {
	case EndpointIssues:
		return types.ItemIssue
	case EndpointPullRequests:
		if d.ID == types.ProviderGitLab {
			return types.ItemMergeRequest
		}
		return types.ItemPullRequest
	case EndpointMergeRequests:
		return types.ItemMergeRequest
	case EndpointPipelines:
		return types.ItemPipeline
	default:
		return types.ItemIssue
	}
}

// Registry is the closed provider catalog. It is safe for concurrent use;
// hot reload swaps descriptors under the write lock.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[types.ProviderID]*Descriptor
}

func New() *Registry {
	return &Registry{
		descriptors: make(map[types.ProviderID]*Descriptor),
	}
}

func (r *Registry) Register(d *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[d.ID] = d
}

// Get looks up a provider descriptor. Unknown IDs fail here so nothing
// deeper ever sees them.
func (r *Registry) Get(id types.ProviderID) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[id]
	return d, ok
}

// Swap replaces the catalog contents with those of other. Used on config
// hot reload so existing references keep working.
func (r *Registry) Swap(other *Registry) {
	other.mu.RLock()
	descriptors := other.descriptors
	other.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors = descriptors
}

// IDs returns the registered provider IDs.
func (r *Registry) IDs() []types.ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]types.ProviderID, 0, len(r.descriptors))
	for id := range r.descriptors {
		ids = append(ids, id)
	}
	return ids
}

// defaultPaths returns the native endpoint paths for a known provider type.
func defaultPaths(typ string) map[string]string {
	switch typ {
	case "github":
		return map[string]string{
			EndpointIssues:       "/issues",
			EndpointPullRequests: "/search/issues",
		}
	case "gitlab":
		return map[string]string{
			EndpointIssues:        "/issues",
			EndpointMergeRequests: "/merge_requests",
			EndpointPipelines:     "/pipelines",
		}
	case "jira":
		return map[string]string{
			EndpointIssues: "/rest/api/2/search",
		}
	}
	return nil
}

// BuildFromConfig builds the registry from the providers config, applying
// global quota defaults where the provider sets none.
func BuildFromConfig(provCfg *config.ProvidersConfig, quota config.QuotaConfig) (*Registry, error) {
	r := New()
	for name, cfg := range provCfg.Providers {
		id := types.ProviderID(name)
		switch id {
		case types.ProviderGitHub, types.ProviderGitLab, types.ProviderJira:
		default:
			return nil, fmt.Errorf("unknown provider %q in config", name)
		}

		paths := defaultPaths(cfg.Type)
		if paths == nil {
			return nil, fmt.Errorf("provider %q has unknown type %q", name, cfg.Type)
		}
		for ep, p := range cfg.Endpoints {
			paths[ep] = p
		}

		limit := cfg.Limit
		if limit <= 0 {
			limit = quota.DefaultLimit
		}
		window := cfg.Window
		if window <= 0 {
			window = quota.DefaultWindow
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}

		r.Register(&Descriptor{
			ID:          id,
			BaseURL:     cfg.BaseURL,
			Timeout:     timeout,
			QuotaLimit:  limit,
			QuotaWindow: window,
			Paths:       paths,
			Headers:     cfg.Headers,
		})
	}
	return r, nil
}
