package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/af-corp/pulseboard/internal/backoff"
	"github.com/af-corp/pulseboard/internal/cache"
	"github.com/af-corp/pulseboard/internal/coordinator"
	"github.com/af-corp/pulseboard/internal/providers"
	"github.com/af-corp/pulseboard/internal/quota"
	"github.com/af-corp/pulseboard/internal/registry"
	"github.com/af-corp/pulseboard/internal/session"
	"github.com/af-corp/pulseboard/internal/types"
)

const githubIssues = `[
	{"number": 7, "title": "Fix login flow", "state": "open",
	 "created_at": "2025-06-02T09:00:00Z", "html_url": "https://github.com/acme/app/issues/7"}
]`

const gitlabIssues = `[
	{"iid": 3, "title": "Update pipeline image", "state": "opened",
	 "created_at": "2025-06-03T09:00:00Z", "web_url": "https://gitlab.com/acme/app/-/issues/3"}
]`

// stubClient returns a fixed status and body for every fetch.
type stubClient struct {
	provider types.ProviderID
	status   int
	body     string
	err      error
}

func (s *stubClient) Provider() types.ProviderID { return s.provider }

func (s *stubClient) Fetch(_ context.Context, _ string, _ url.Values, _ string) (*providers.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &providers.Response{Status: s.status, Body: []byte(s.body)}, nil
}

func testHandler(t *testing.T, clients ...providers.Client) (*Handler, *registry.Registry) {
	t.Helper()

	reg := registry.New()
	for _, c := range clients {
		reg.Register(&registry.Descriptor{
			ID:          c.Provider(),
			QuotaLimit:  100,
			QuotaWindow: time.Minute,
			Paths:       map[string]string{registry.EndpointIssues: "/issues"},
		})
	}

	set := providers.NewSet()
	for _, c := range clients {
		set.Register(c)
	}

	tracker := quota.NewTracker(func(id types.ProviderID) (int, time.Duration) {
		d, _ := reg.Get(id)
		return d.QuotaLimit, d.QuotaWindow
	}, time.Second)
	sched := backoff.NewScheduler(time.Second, time.Minute, 8)
	store := cache.NewMemoryStore(5*time.Minute, 100)

	coord := coordinator.New(reg, set, tracker, sched, store, nil)
	return NewHandler(coord, reg), reg
}

func testSession() *session.Metadata {
	return &session.Metadata{
		ID:   "sess-1",
		User: "casey",
		Credentials: []types.Credential{
			{Provider: types.ProviderGitHub, Identity: "gh-casey", Token: "gh-tok"},
			{Provider: types.ProviderGitLab, Identity: "gl-casey", Token: "gl-tok"},
		},
	}
}

func doRequest(h *Handler, meta *session.Metadata, method, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/v1/providers", h.ListProviders)
	r.Get("/v1/items/{provider}", h.Items)
	r.Get("/v1/dashboard", h.Dashboard)

	req := httptest.NewRequest(method, path, nil)
	if meta != nil {
		req = req.WithContext(session.ContextWithSession(req.Context(), meta))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestItems_Success(t *testing.T) {
	h, _ := testHandler(t, &stubClient{provider: types.ProviderGitHub, status: http.StatusOK, body: githubIssues})

	w := doRequest(h, testSession(), "GET", "/v1/items/github?endpoint=issues")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp itemsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Stale {
		t.Error("fresh fetch must not be stale")
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "#7" {
		t.Errorf("items = %+v", resp.Items)
	}
}

func TestItems_NoCredential(t *testing.T) {
	h, _ := testHandler(t, &stubClient{provider: types.ProviderGitHub, status: http.StatusOK, body: githubIssues})

	meta := &session.Metadata{ID: "sess-2", User: "sam"}
	w := doRequest(h, meta, "GET", "/v1/items/github")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestItems_NotAuthenticated(t *testing.T) {
	h, _ := testHandler(t, &stubClient{provider: types.ProviderGitHub, status: http.StatusOK, body: githubIssues})

	w := doRequest(h, nil, "GET", "/v1/items/github")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestItems_ProviderAuthFailure(t *testing.T) {
	h, _ := testHandler(t, &stubClient{provider: types.ProviderGitHub, status: http.StatusUnauthorized})

	w := doRequest(h, testSession(), "GET", "/v1/items/github")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestItems_RateLimitedWithRetryAfter(t *testing.T) {
	h, _ := testHandler(t, &stubClient{
		provider: types.ProviderGitHub,
		status:   http.StatusTooManyRequests,
	})

	w := doRequest(h, testSession(), "GET", "/v1/items/github")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestItems_DegradedAfterFailure(t *testing.T) {
	stub := &stubClient{provider: types.ProviderGitHub, status: http.StatusOK, body: githubIssues}
	h, _ := testHandler(t, stub)
	meta := testSession()

	if w := doRequest(h, meta, "GET", "/v1/items/github"); w.Code != http.StatusOK {
		t.Fatalf("prime fetch: %d", w.Code)
	}

	// Provider starts failing; cached data is served stale with 200
	stub.status = http.StatusInternalServerError
	stub.body = ""
	w := doRequest(h, meta, "GET", "/v1/items/github")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 degraded", w.Code)
	}

	var resp itemsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Stale {
		t.Error("degraded response must carry stale flag")
	}
	if resp.StoredAt == nil {
		t.Error("degraded response must carry stored_at")
	}
	if len(resp.Items) != 1 {
		t.Errorf("items = %+v", resp.Items)
	}
}

func TestItems_ProviderUnavailable(t *testing.T) {
	h, _ := testHandler(t, &stubClient{provider: types.ProviderGitHub, status: http.StatusBadGateway})

	w := doRequest(h, testSession(), "GET", "/v1/items/github")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestListProviders(t *testing.T) {
	h, _ := testHandler(t,
		&stubClient{provider: types.ProviderGitHub, status: http.StatusOK, body: githubIssues},
		&stubClient{provider: types.ProviderJira, status: http.StatusOK, body: `{"issues":[]}`},
	)

	// Session only holds a github credential
	meta := &session.Metadata{
		ID: "sess-3", User: "casey",
		Credentials: []types.Credential{
			{Provider: types.ProviderGitHub, Identity: "gh-casey", Token: "t"},
		},
	}
	w := doRequest(h, meta, "GET", "/v1/providers")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Providers []providerInfo `json:"providers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Providers) != 2 {
		t.Fatalf("providers = %+v", resp.Providers)
	}
	for _, p := range resp.Providers {
		switch p.ID {
		case types.ProviderGitHub:
			if !p.Connected {
				t.Error("github should be connected")
			}
		case types.ProviderJira:
			if p.Connected {
				t.Error("jira should not be connected")
			}
		}
	}
}

func TestDashboard_MergesAndIsolatesFailures(t *testing.T) {
	h, _ := testHandler(t,
		&stubClient{provider: types.ProviderGitHub, status: http.StatusOK, body: githubIssues},
		&stubClient{provider: types.ProviderGitLab, status: http.StatusServiceUnavailable},
	)

	w := doRequest(h, testSession(), "GET", "/v1/dashboard")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: a failing provider must not fail the dashboard", w.Code)
	}

	var resp dashboardResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.User != "casey" {
		t.Errorf("user = %q", resp.User)
	}
	if len(resp.Items) != 1 || resp.Items[0].SourceTool != types.ProviderGitHub {
		t.Errorf("items = %+v", resp.Items)
	}

	byProvider := map[types.ProviderID]sourceStatus{}
	for _, s := range resp.Sources {
		byProvider[s.Provider] = s
	}
	if byProvider[types.ProviderGitHub].Status != types.ResultSuccess {
		t.Errorf("github source = %+v", byProvider[types.ProviderGitHub])
	}
	gl := byProvider[types.ProviderGitLab]
	if gl.Status != types.ResultError || gl.Error == "" {
		t.Errorf("gitlab source = %+v", gl)
	}
}

func TestDashboard_MergedFeedSorted(t *testing.T) {
	h, _ := testHandler(t,
		&stubClient{provider: types.ProviderGitHub, status: http.StatusOK, body: githubIssues},
		&stubClient{provider: types.ProviderGitLab, status: http.StatusOK, body: gitlabIssues},
	)

	w := doRequest(h, testSession(), "GET", "/v1/dashboard")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp dashboardResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Items) != 2 {
		t.Fatalf("items = %+v", resp.Items)
	}
	// GitLab issue is newer, so it leads the merged feed
	if resp.Items[0].SourceTool != types.ProviderGitLab || resp.Items[1].SourceTool != types.ProviderGitHub {
		t.Errorf("merged order wrong: %+v", resp.Items)
	}
}
