package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Resinat/dohswitch/internal/config"
	"github.com/Resinat/dohswitch/internal/daemon"
	"github.com/Resinat/dohswitch/internal/endpoint"
	"github.com/Resinat/dohswitch/internal/history"
	"github.com/Resinat/dohswitch/internal/monitor"
	"github.com/Resinat/dohswitch/internal/probe"
	"github.com/Resinat/dohswitch/internal/provider"
	"github.com/Resinat/dohswitch/internal/service"
)

const testAdminToken = "test-admin-token"

var cloudflare = endpoint.Active{
	Name:    "Cloudflare",
	FullURL: "https://cloudflare-dns.com/dns-query",
	Key:     "https://cloudflare-dns.com/dns-query",
}

type fakeResolver struct {
	mu     sync.Mutex
	active endpoint.Active
}

func (r *fakeResolver) Resolve() endpoint.Active {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *fakeResolver) Invalidate() {}

func (r *fakeResolver) set(a endpoint.Active) {
	r.mu.Lock()
	r.active = a
	r.mu.Unlock()
}

type fakeSwitcher struct {
	resolver *fakeResolver
	registry *provider.Registry
}

func (s *fakeSwitcher) Apply(_ context.Context, upstream string) error {
	key := endpoint.Normalize(upstream)
	name, _ := s.registry.NameFor(key)
	s.resolver.set(endpoint.Active{Name: name, FullURL: upstream, Key: key})
	return nil
}

type fakeController struct {
	mu     sync.Mutex
	status string
	err    error
}

func (c *fakeController) Status(context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *fakeController) set(status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.status = status
	return nil
}

func (c *fakeController) Start(context.Context) error   { return c.set(daemon.StatusRunning) }
func (c *fakeController) Stop(context.Context) error    { return c.set(daemon.StatusNotRunning) }
func (c *fakeController) Restart(context.Context) error { return c.set(daemon.StatusRunning) }
func (c *fakeController) Reload(context.Context) error  { return nil }

type fakeHost struct{ ctl *fakeController }

func (h fakeHost) ServiceStatus(ctx context.Context) string { return h.ctl.Status(ctx) }
func (fakeHost) NetworkInfo(context.Context) daemon.NetworkInfo {
	return daemon.NetworkInfo{LocalIP: "10.0.0.5", Gateway: "10.0.0.1", DNSServers: []string{"127.0.0.1"}}
}

type testEnv struct {
	srv      *Server
	cp       *service.ControlPlaneService
	hub      *monitor.Hub
	sampler  *monitor.Sampler
	resolver *fakeResolver
	ctl      *fakeController
	registry *provider.Registry
}

type testServerOptions struct {
	maxBody    int64
	privileged service.PrivilegeCheck
	adminToken string
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithOptions(t, testServerOptions{maxBody: 1 << 20, adminToken: testAdminToken})
}

func newTestEnvWithOptions(t *testing.T, opts testServerOptions) *testEnv {
	t.Helper()
	dir := t.TempDir()
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	repo, err := history.NewRepo(filepath.Join(dir, "history.db"), clk)
	if err != nil {
		t.Fatalf("NewRepo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	reg, err := provider.Open(filepath.Join(dir, "doh_providers.json"))
	if err != nil {
		t.Fatalf("provider.Open: %v", err)
	}

	resolver := &fakeResolver{active: cloudflare}
	ctl := &fakeController{status: daemon.StatusRunning}
	hub := monitor.NewHub(nil)
	t.Cleanup(hub.Close)
	apiCache := history.NewCache(history.DefaultAPILimit)
	bcast := history.NewCache(history.DefaultBroadcastLimit)

	sampler := monitor.NewSampler(monitor.SamplerConfig{
		Resolver: resolver,
		Prober: probe.Funcs{
			Latency: func(context.Context, endpoint.Key) *float64 { return history.Float(12.5) },
			DoH:     func(context.Context, string) bool { return true },
		},
		Store:          repo,
		APICache:       apiCache,
		BroadcastCache: bcast,
		Hub:            hub,
		HostInfo:       fakeHost{ctl: ctl},
		Clock:          clk,
		Retention:      time.Hour,
	})

	results := service.NewTestResultCache(16)
	t.Cleanup(results.Close)

	reachability := probe.Funcs{
		Latency: func(_ context.Context, key endpoint.Key) *float64 {
			if endpoint.Host(key) == "down.example" {
				return nil
			}
			return history.Float(12.5)
		},
	}

	cp := &service.ControlPlaneService{
		Store:          repo,
		APICache:       apiCache,
		BroadcastCache: bcast,
		Resolver:       resolver,
		Registry:       reg,
		Lookups: probe.ResolverFunc(func(_ context.Context, _ string, domain string) ([]string, error) {
			if domain == "nxdomain.example" {
				return nil, errors.New("no such host")
			}
			return []string{"93.184.216.34"}, nil
		}),
		Prober:      reachability,
		Tester:      sampler,
		Host:        fakeHost{ctl: ctl},
		Controller:  ctl,
		Switcher:    &fakeSwitcher{resolver: resolver, registry: reg},
		TestResults: results,
		EnvCfg: &config.EnvConfig{
			ListenAddress: "127.0.0.1",
			Port:          5003,
			ServiceName:   "cloudflared.service",
			TestInterval:  5 * time.Second,
			Retention:     6 * time.Hour,
			AdminToken:    testAdminToken,
		},
		Info:      service.SystemInfo{Version: "1.2.3", GitCommit: "abc123"},
		Clock:     clk,
		Retention: time.Hour,
	}

	srv := NewServerWithOptions(Options{
		ListenAddress:   "127.0.0.1",
		AdminToken:      opts.adminToken,
		APIMaxBodyBytes: opts.maxBody,
		ControlPlane:    cp,
		Hub:             hub,
		Privileged:      opts.privileged,
	})
	return &testEnv{
		srv:      srv,
		cp:       cp,
		hub:      hub,
		sampler:  sampler,
		resolver: resolver,
		ctl:      ctl,
		registry: reg,
	}
}

func doJSONRequest(t *testing.T, srv *Server, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody []byte
	var err error
	if body != nil {
		switch v := body.(type) {
		case []byte:
			reqBody = v
		case string:
			reqBody = []byte(v)
		default:
			reqBody, err = json.Marshal(v)
			if err != nil {
				t.Fatalf("marshal request body: %v", err)
			}
		}
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testAdminToken)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSONMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal body: %v body=%q", err, rec.Body.String())
	}
	return m
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, code string) {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("unmarshal error response: %v body=%q", err, rec.Body.String())
	}
	if er.Error.Code != code {
		t.Fatalf("error code: got %q, want %q (body=%s)", er.Error.Code, code, rec.Body.String())
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status: got %d, want %d, body=%s", rec.Code, want, rec.Body.String())
	}
}

func TestAPIContract_HealthzAndAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSONRequest(t, env.srv, http.MethodGet, "/healthz", nil, false)
	assertStatus(t, rec, http.StatusOK)
	if body := decodeJSONMap(t, rec); body["status"] != "ok" || body["upstream_configured"] != true {
		t.Fatalf("healthz: %v", body)
	}

	env.resolver.set(endpoint.Unknown())
	rec = doJSONRequest(t, env.srv, http.MethodGet, "/healthz", nil, false)
	assertStatus(t, rec, http.StatusOK)
	if got := decodeJSONMap(t, rec)["upstream_configured"]; got != false {
		t.Fatalf("upstream_configured without upstream: %v", got)
	}

	rec = doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/status", nil, false)
	assertStatus(t, rec, http.StatusUnauthorized)
	assertErrorCode(t, rec, "UNAUTHORIZED")
}

func TestAPIContract_EmptyTokenDisablesAuth(t *testing.T) {
	env := newTestEnvWithOptions(t, testServerOptions{maxBody: 1 << 20})

	rec := doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/status", nil, false)
	assertStatus(t, rec, http.StatusOK)
}

func TestAPIContract_PrivilegeCheck(t *testing.T) {
	env := newTestEnvWithOptions(t, testServerOptions{
		maxBody:    1 << 20,
		adminToken: testAdminToken,
		privileged: func() bool { return false },
	})

	rec := doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/status", nil, true)
	assertStatus(t, rec, http.StatusForbidden)
	assertErrorCode(t, rec, "FORBIDDEN")

	// Health stays public.
	rec = doJSONRequest(t, env.srv, http.MethodGet, "/healthz", nil, false)
	assertStatus(t, rec, http.StatusOK)
}

func TestAPIContract_RequestBodyTooLarge(t *testing.T) {
	env := newTestEnvWithOptions(t, testServerOptions{maxBody: 16, adminToken: testAdminToken})

	rec := doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/providers", map[string]any{
		"name": "Very Long Provider Name",
		"url":  "https://doh.example.net/dns-query",
	}, true)
	assertStatus(t, rec, http.StatusRequestEntityTooLarge)
	assertErrorCode(t, rec, "PAYLOAD_TOO_LARGE")
}

func TestAPIContract_StatusHistoryAnalytics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		env.sampler.Tick(ctx)
	}

	rec := doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/status", nil, true)
	assertStatus(t, rec, http.StatusOK)
	status := decodeJSONMap(t, rec)
	if status["provider"] != "Cloudflare" {
		t.Fatalf("provider: got %v", status["provider"])
	}
	if status["service_status"] != daemon.StatusRunning {
		t.Fatalf("service_status: got %v", status["service_status"])
	}
	if status["current_ping"] != 12.5 {
		t.Fatalf("current_ping: got %v", status["current_ping"])
	}
	if got := len(status["ping_history"].([]any)); got != 3 {
		t.Fatalf("ping_history len: got %d, want 3", got)
	}

	rec = doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/history", nil, true)
	assertStatus(t, rec, http.StatusOK)
	hist := decodeJSONMap(t, rec)
	if got := len(hist["history"].([]any)); got != 3 {
		t.Fatalf("history len: got %d, want 3", got)
	}

	first := hist["history"].([]any)[0].(map[string]any)
	for _, field := range []string{"endpoint_key", "timestamp", "latency", "doh_ok"} {
		if _, ok := first[field]; !ok {
			t.Fatalf("history sample missing %q: %v", field, first)
		}
	}
	if first["endpoint_key"] != string(cloudflare.Key) || first["latency"] != 12.5 {
		t.Fatalf("history sample: %v", first)
	}

	rec = doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/history?provider=cloudflare", nil, true)
	assertStatus(t, rec, http.StatusOK)
	byName := decodeJSONMap(t, rec)
	if byName["provider"] != "Cloudflare" || len(byName["history"].([]any)) != 3 {
		t.Fatalf("history by name: %v", byName)
	}

	rec = doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/history?provider=NoSuchProvider", nil, true)
	assertStatus(t, rec, http.StatusNotFound)

	rec = doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/analytics?provider="+endpoint.ID(cloudflare.Key), nil, true)
	assertStatus(t, rec, http.StatusOK)
	stats := decodeJSONMap(t, rec)
	if stats["count"] != float64(3) || stats["avg"] != 12.5 {
		t.Fatalf("analytics: %v", stats)
	}

	rec = doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/history?provider=0000000000000000", nil, true)
	assertStatus(t, rec, http.StatusNotFound)
	assertErrorCode(t, rec, "NOT_FOUND")
}

func TestAPIContract_ClearAndPrune(t *testing.T) {
	env := newTestEnv(t)
	env.sampler.Tick(context.Background())

	rec := doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/history/clear", nil, true)
	assertStatus(t, rec, http.StatusOK)
	if got := decodeJSONMap(t, rec)["all"]; got != true {
		t.Fatalf("all: got %v", got)
	}

	if got := len(env.cp.APICache.Recent(cloudflare.Key)); got != 0 {
		t.Fatalf("cached samples after clear: got %d", got)
	}

	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/history/clear", map[string]any{
		"provider":      cloudflare.FullURL,
		"include_store": true,
	}, true)
	assertStatus(t, rec, http.StatusOK)
	if got := decodeJSONMap(t, rec)["store_rows_deleted"]; got != float64(1) {
		t.Fatalf("store_rows_deleted: got %v", got)
	}

	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/history/clear", `{"unknown":1}`, true)
	assertStatus(t, rec, http.StatusBadRequest)

	env.sampler.Tick(context.Background())
	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/history/clear?include_store=true", map[string]any{
		"provider": "Cloudflare",
	}, true)
	assertStatus(t, rec, http.StatusOK)
	if got := decodeJSONMap(t, rec)["store_rows_deleted"]; got != float64(1) {
		t.Fatalf("store_rows_deleted via query flag: got %v", got)
	}

	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/history/clear?include_store=maybe", nil, true)
	assertStatus(t, rec, http.StatusBadRequest)
	assertErrorCode(t, rec, "INVALID_ARGUMENT")

	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/history/prune", nil, true)
	assertStatus(t, rec, http.StatusOK)
	if _, ok := decodeJSONMap(t, rec)["probes_deleted"]; !ok {
		t.Fatalf("prune result missing probes_deleted: %s", rec.Body.String())
	}
}

func TestAPIContract_Lookup(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/lookup", map[string]any{"domain": "Example.COM."}, true)
	assertStatus(t, rec, http.StatusOK)
	body := decodeJSONMap(t, rec)
	if body["domain"] != "example.com" {
		t.Fatalf("domain: got %v", body["domain"])
	}

	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/lookup", map[string]any{"domain": ""}, true)
	assertStatus(t, rec, http.StatusBadRequest)
	assertErrorCode(t, rec, "INVALID_ARGUMENT")

	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/lookup", map[string]any{"domain": "nxdomain.example"}, true)
	assertStatus(t, rec, http.StatusServiceUnavailable)

	rec = doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/lookups?limit=5", nil, true)
	assertStatus(t, rec, http.StatusOK)
	if got := len(decodeJSONMap(t, rec)["items"].([]any)); got != 1 {
		t.Fatalf("lookups: got %d, want 1", got)
	}

	rec = doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/lookups?limit=abc", nil, true)
	assertStatus(t, rec, http.StatusBadRequest)

	rec = doJSONRequest(t, env.srv, http.MethodDelete, "/api/v1/lookups", nil, true)
	assertStatus(t, rec, http.StatusOK)
	if got := decodeJSONMap(t, rec)["deleted"]; got != float64(1) {
		t.Fatalf("deleted: got %v", got)
	}
}

func TestAPIContract_ProviderLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/providers", nil, true)
	assertStatus(t, rec, http.StatusOK)
	page := decodeJSONMap(t, rec)
	if page["total"] != float64(len(provider.Defaults)) {
		t.Fatalf("total: got %v", page["total"])
	}
	first := page["items"].([]any)[0].(map[string]any)
	if first["name"] != "Cloudflare" || first["active"] != true || first["is_default"] != true {
		t.Fatalf("first provider: %v", first)
	}

	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/providers", map[string]any{
		"name": "Mullvad",
		"url":  "doh.mullvad.net/dns-query/",
	}, true)
	assertStatus(t, rec, http.StatusCreated)
	created := decodeJSONMap(t, rec)
	id := created["id"].(string)
	if created["base_url"] != "https://doh.mullvad.net/dns-query" {
		t.Fatalf("base_url: got %v", created["base_url"])
	}

	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/providers", map[string]any{
		"name": "Dup",
		"url":  "https://doh.mullvad.net/dns-query",
	}, true)
	assertStatus(t, rec, http.StatusConflict)

	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/providers", map[string]any{
		"name": "Down",
		"url":  "https://down.example/dns-query",
	}, true)
	assertStatus(t, rec, http.StatusBadRequest)
	assertErrorCode(t, rec, "INVALID_ARGUMENT")

	rec = doJSONRequest(t, env.srv, http.MethodPatch, "/api/v1/providers/"+id, map[string]any{
		"url": "https://down.example/dns-query",
	}, true)
	assertStatus(t, rec, http.StatusBadRequest)
	assertErrorCode(t, rec, "INVALID_ARGUMENT")

	rec = doJSONRequest(t, env.srv, http.MethodPatch, "/api/v1/providers/"+id, map[string]any{"name": "Mullvad DNS"}, true)
	assertStatus(t, rec, http.StatusOK)
	if got := decodeJSONMap(t, rec)["name"]; got != "Mullvad DNS" {
		t.Fatalf("renamed: got %v", got)
	}

	rec = doJSONRequest(t, env.srv, http.MethodPatch, "/api/v1/providers/"+id, map[string]any{"color": "blue"}, true)
	assertStatus(t, rec, http.StatusBadRequest)
	rec = doJSONRequest(t, env.srv, http.MethodPatch, "/api/v1/providers/"+id, `{}`, true)
	assertStatus(t, rec, http.StatusBadRequest)

	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/providers/"+id+"/actions/select", nil, true)
	assertStatus(t, rec, http.StatusOK)
	if got := decodeJSONMap(t, rec)["active"]; got != true {
		t.Fatalf("active after select: got %v", got)
	}
	if got := env.resolver.Resolve().Name; got != "Mullvad DNS" {
		t.Fatalf("resolver name: got %q", got)
	}

	cfID := endpoint.ID(cloudflare.Key)
	rec = doJSONRequest(t, env.srv, http.MethodDelete, "/api/v1/providers/"+cfID, nil, true)
	assertStatus(t, rec, http.StatusForbidden)

	rec = doJSONRequest(t, env.srv, http.MethodDelete, "/api/v1/providers/"+id, nil, true)
	assertStatus(t, rec, http.StatusNoContent)

	rec = doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/providers/"+id, nil, true)
	assertStatus(t, rec, http.StatusNotFound)

	rec = doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/providers/not-an-id", nil, true)
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestAPIContract_ProviderPaginationAndSorting(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/providers?sort_by=name&sort_order=desc&limit=2&offset=1", nil, true)
	assertStatus(t, rec, http.StatusOK)
	page := decodeJSONMap(t, rec)
	items := page["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("items: got %d, want 2", len(items))
	}
	// Descending: SecureDNS, Quad9, OpenDNS, ...
	if got := items[0].(map[string]any)["name"]; got != "Quad9" {
		t.Fatalf("items[0]: got %v, want Quad9", got)
	}

	rec = doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/providers?sort_by=latency", nil, true)
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestAPIContract_TestProviders(t *testing.T) {
	env := newTestEnv(t)

	id := endpoint.ID("https://dns.google/dns-query")
	rec := doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/providers/"+id+"/actions/test", nil, true)
	assertStatus(t, rec, http.StatusOK)
	res := decodeJSONMap(t, rec)
	if res["name"] != "Google" || res["ping"] != 12.5 || res["doh_ok"] != true {
		t.Fatalf("test result: %v", res)
	}

	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/providers/actions/test", map[string]any{
		"url": "https://doh.example.net/dns-query",
	}, true)
	assertStatus(t, rec, http.StatusOK)

	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/providers/actions/test", map[string]any{"url": ""}, true)
	assertStatus(t, rec, http.StatusBadRequest)

	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/providers/actions/test-all", nil, true)
	assertStatus(t, rec, http.StatusOK)
	if got := len(decodeJSONMap(t, rec)["items"].([]any)); got != len(provider.Defaults) {
		t.Fatalf("test-all: got %d results", got)
	}

	rec = doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/providers/test-results", nil, true)
	assertStatus(t, rec, http.StatusOK)
	if got := len(decodeJSONMap(t, rec)["items"].([]any)); got != len(provider.Defaults)+1 {
		t.Fatalf("test-results: got %d", got)
	}
}

func TestAPIContract_BackupRestore(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/providers/actions/restore", nil, true)
	assertStatus(t, rec, http.StatusNotFound)

	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/providers/actions/backup", nil, true)
	assertStatus(t, rec, http.StatusOK)
	if got := decodeJSONMap(t, rec)["path"]; got != env.registry.BackupPath() {
		t.Fatalf("backup path: got %v", got)
	}

	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/providers", map[string]any{
		"name": "Temp",
		"url":  "https://doh.example.org/dns-query",
	}, true)
	assertStatus(t, rec, http.StatusCreated)

	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/providers/actions/restore", nil, true)
	assertStatus(t, rec, http.StatusOK)
	if got := len(decodeJSONMap(t, rec)["items"].([]any)); got != len(provider.Defaults) {
		t.Fatalf("restored: got %d providers", got)
	}
}

func TestAPIContract_ServiceControl(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/service/actions/stop", nil, true)
	assertStatus(t, rec, http.StatusOK)
	if got := decodeJSONMap(t, rec)["status"]; got != daemon.StatusNotRunning {
		t.Fatalf("status after stop: got %v", got)
	}

	rec = doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/service", nil, true)
	assertStatus(t, rec, http.StatusOK)
	if got := decodeJSONMap(t, rec)["service"]; got != "cloudflared.service" {
		t.Fatalf("service: got %v", got)
	}

	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/service/actions/explode", nil, true)
	assertStatus(t, rec, http.StatusNotFound)

	env.ctl.err = errors.New("unit masked")
	rec = doJSONRequest(t, env.srv, http.MethodPost, "/api/v1/service/actions/start", nil, true)
	assertStatus(t, rec, http.StatusServiceUnavailable)
	assertErrorCode(t, rec, "UNAVAILABLE")
}

func TestAPIContract_System(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/system/info", nil, true)
	assertStatus(t, rec, http.StatusOK)
	assertBodyContains(t, rec, "1.2.3")

	rec = doJSONRequest(t, env.srv, http.MethodGet, "/api/v1/system/config", nil, true)
	assertStatus(t, rec, http.StatusOK)
	if bytes.Contains(rec.Body.Bytes(), []byte(testAdminToken)) {
		t.Fatalf("settings leak the admin token: %s", rec.Body.String())
	}
	assertBodyContains(t, rec, "cloudflared.service")
}

func TestAPIContract_MetricsOptional(t *testing.T) {
	env := newTestEnv(t)
	rec := doJSONRequest(t, env.srv, http.MethodGet, "/metrics", nil, false)
	assertStatus(t, rec, http.StatusNotFound)

	srv := NewServerWithOptions(Options{
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("dohswitch_probe_total 1\n"))
		}),
	})
	rec = doJSONRequest(t, srv, http.MethodGet, "/metrics", nil, false)
	assertStatus(t, rec, http.StatusOK)
	assertBodyContains(t, rec, "dohswitch_probe_total")
}

func TestAPIContract_Dashboard(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSONRequest(t, env.srv, http.MethodGet, "/", nil, false)
	assertStatus(t, rec, http.StatusOK)
	assertBodyContains(t, rec, "<title>DoHSwitch</title>")
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("Cache-Control: got %q", got)
	}

	rec = doJSONRequest(t, env.srv, http.MethodGet, "/app.js", nil, false)
	assertStatus(t, rec, http.StatusOK)

	rec = doJSONRequest(t, env.srv, http.MethodGet, "/missing.css", nil, false)
	assertStatus(t, rec, http.StatusNotFound)
}
