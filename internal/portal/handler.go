// Package portal is the HTTP boundary: it resolves the caller's session,
// asks the coordinator for data, and maps coordination results onto HTTP
// responses. All provider fan-out for the dashboard happens here.
package portal

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/af-corp/pulseboard/internal/coordinator"
	"github.com/af-corp/pulseboard/internal/httputil"
	"github.com/af-corp/pulseboard/internal/registry"
	"github.com/af-corp/pulseboard/internal/session"
	"github.com/af-corp/pulseboard/internal/types"
)

// Handler holds dependencies for the portal HTTP handlers.
type Handler struct {
	coordinator *coordinator.Coordinator
	registry    *registry.Registry
}

func NewHandler(coord *coordinator.Coordinator, reg *registry.Registry) *Handler {
	return &Handler{coordinator: coord, registry: reg}
}

// providerInfo describes one provider as exposed to dashboard clients.
type providerInfo struct {
	ID        types.ProviderID `json:"id"`
	Endpoints []string         `json:"endpoints"`
	Connected bool             `json:"connected"`
}

// ListProviders handles GET /v1/providers
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	meta, ok := session.FromContext(r.Context())
	if !ok {
		httputil.WriteAuthError(w, reqID, "Not authenticated")
		return
	}

	infos := make([]providerInfo, 0)
	for _, id := range h.registry.IDs() {
		desc, ok := h.registry.Get(id)
		if !ok {
			continue
		}
		endpoints := make([]string, 0, len(desc.Paths))
		for ep := range desc.Paths {
			endpoints = append(endpoints, ep)
		}
		sort.Strings(endpoints)
		_, connected := meta.CredentialFor(id)
		infos = append(infos, providerInfo{ID: id, Endpoints: endpoints, Connected: connected})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

	writeJSON(w, http.StatusOK, map[string]any{"providers": infos})
}

// itemsResponse is the payload for a single-provider fetch.
type itemsResponse struct {
	Provider types.ProviderID    `json:"provider"`
	Endpoint string              `json:"endpoint"`
	Stale    bool                `json:"stale"`
	StoredAt *time.Time          `json:"stored_at,omitempty"`
	Items    []types.UnifiedItem `json:"items"`
}

// Items handles GET /v1/items/{provider}?endpoint=issues
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	meta, ok := session.FromContext(r.Context())
	if !ok {
		httputil.WriteAuthError(w, reqID, "Not authenticated")
		return
	}

	provider := types.ProviderID(chi.URLParam(r, "provider"))
	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		endpoint = registry.EndpointIssues
	}

	cred, ok := meta.CredentialFor(provider)
	if !ok {
		httputil.WriteBadRequestError(w, reqID, "No credential for provider "+string(provider))
		return
	}

	params := passthroughParams(r.URL.Query())
	res := h.coordinator.Execute(r.Context(), provider, cred, endpoint, params)
	h.writeResult(w, reqID, provider, endpoint, res)
}

// sourceStatus reports how one (provider, endpoint) pair fared during a
// dashboard fan-out.
type sourceStatus struct {
	Provider   types.ProviderID `json:"provider"`
	Endpoint   string           `json:"endpoint"`
	Status     types.ResultKind `json:"status"`
	Stale      bool             `json:"stale,omitempty"`
	RetryAfter float64          `json:"retry_after_seconds,omitempty"`
	Error      string           `json:"error,omitempty"`
}

type dashboardResponse struct {
	User    string              `json:"user"`
	Items   []types.UnifiedItem `json:"items"`
	Sources []sourceStatus      `json:"sources"`
}

// Dashboard handles GET /v1/dashboard. It fans out to every provider the
// session holds a credential for, across every endpoint that provider
// supports, and merges whatever came back into one feed. A provider having
// a bad day degrades its own sources and nothing else.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	meta, ok := session.FromContext(r.Context())
	if !ok {
		httputil.WriteAuthError(w, reqID, "Not authenticated")
		return
	}

	type target struct {
		provider types.ProviderID
		endpoint string
		cred     types.Credential
	}
	var targets []target
	for _, cred := range meta.Credentials {
		desc, ok := h.registry.Get(cred.Provider)
		if !ok {
			continue
		}
		endpoints := make([]string, 0, len(desc.Paths))
		for ep := range desc.Paths {
			endpoints = append(endpoints, ep)
		}
		sort.Strings(endpoints)
		for _, ep := range endpoints {
			targets = append(targets, target{provider: cred.Provider, endpoint: ep, cred: cred})
		}
	}

	results := make([]types.Result, len(targets))
	var wg sync.WaitGroup
	for i, tgt := range targets {
		wg.Add(1)
		go func(i int, tgt target) {
			defer wg.Done()
			results[i] = h.coordinator.Execute(r.Context(), tgt.provider, tgt.cred, tgt.endpoint, nil)
		}(i, tgt)
	}
	wg.Wait()

	resp := dashboardResponse{
		User:    meta.User,
		Items:   make([]types.UnifiedItem, 0),
		Sources: make([]sourceStatus, 0, len(targets)),
	}
	for i, tgt := range targets {
		res := results[i]
		status := sourceStatus{
			Provider: tgt.provider,
			Endpoint: tgt.endpoint,
			Status:   res.Kind,
			Stale:    res.Stale,
		}
		if res.RetryAfter > 0 {
			status.RetryAfter = res.RetryAfter.Seconds()
		}
		if res.Err != nil {
			status.Error = res.Err.Message
		}
		resp.Sources = append(resp.Sources, status)
		resp.Items = append(resp.Items, res.Items...)
	}
	types.SortItems(resp.Items)

	writeJSON(w, http.StatusOK, resp)
}

// writeResult maps a coordination result onto the HTTP surface.
func (h *Handler) writeResult(w http.ResponseWriter, reqID string, provider types.ProviderID, endpoint string, res types.Result) {
	switch res.Kind {
	case types.ResultSuccess:
		writeJSON(w, http.StatusOK, itemsResponse{
			Provider: provider, Endpoint: endpoint, Items: res.Items,
		})

	case types.ResultDegraded:
		storedAt := res.StoredAt
		writeJSON(w, http.StatusOK, itemsResponse{
			Provider: provider, Endpoint: endpoint, Stale: true, StoredAt: &storedAt, Items: res.Items,
		})

	case types.ResultRateLimited:
		httputil.WriteRateLimitError(w, reqID, res.RetryAfter,
			"Provider quota exhausted and nothing cached; retry later")

	default:
		h.writeError(w, reqID, res.Err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, reqID string, err *types.Error) {
	if err == nil {
		httputil.WriteInternalError(w, reqID, "Unknown failure")
		return
	}
	switch err.Kind {
	case types.KindAuth:
		httputil.WriteAuthError(w, reqID, err.Message)
	case types.KindValidation:
		httputil.WriteBadRequestError(w, reqID, err.Message)
	case types.KindRateLimit:
		httputil.WriteRateLimitError(w, reqID, err.RetryAfter, err.Message)
	case types.KindProviderUnavailable:
		httputil.WriteServiceUnavailableError(w, reqID, err.Message)
	default:
		httputil.WriteInternalError(w, reqID, err.Message)
	}
}

// passthroughParams keeps only the query params forwarded to providers.
func passthroughParams(q url.Values) url.Values {
	params := url.Values{}
	for _, k := range []string{"state", "per_page", "assignee"} {
		if v := q.Get(k); v != "" {
			params.Set(k, v)
		}
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
