package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vertextoedge/picture-cache/internal/domain"
	"github.com/vertextoedge/picture-cache/internal/port"
	"github.com/vertextoedge/picture-cache/internal/service/cacher"
)

// mockStore implements port.Store for testing; only Ping is used
type mockStore struct {
	port.Store
	pingErr error
}

func (m *mockStore) Ping() error { return m.pingErr }

type mockLoader struct {
	images       map[string]*domain.Image
	err          error
	profile      cacher.Profile
	memoryClears int
}

func (m *mockLoader) Load(ctx context.Context, url string) (*domain.Image, error) {
	if m.err != nil {
		return nil, m.err
	}
	img, ok := m.images[url]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return img, nil
}
func (m *mockLoader) Profile() cacher.Profile { return m.profile }
func (m *mockLoader) ClearMemory()            { m.memoryClears++ }

type mockDisk struct {
	stats   domain.CacheStats
	cleared int
}

func (m *mockDisk) Stats() (*domain.CacheStats, error) {
	s := m.stats
	return &s, nil
}
func (m *mockDisk) Clear() (int, error) {
	m.cleared++
	return 3, nil
}

type mockMemory struct{}

func (mockMemory) Get(key string) (*domain.Image, bool)   { return nil, false }
func (mockMemory) Set(key string, img *domain.Image) bool { return true }
func (mockMemory) Clear()                                 {}
func (mockMemory) Stats() (uint64, uint64, int64)         { return 7, 2, 1024 }

type mockDownloads int

func (m mockDownloads) Len() int { return int(m) }

type mockPlanner struct {
	plan   domain.CapacityPlan
	prefer bool
}

func (m *mockPlanner) Plan(ext, in, margin int64) (domain.CapacityPlan, error) {
	if ext <= 0 || in <= 0 {
		return domain.NoCache, domain.ErrInvalidInput
	}
	return m.plan, nil
}
func (m *mockPlanner) PreferDiskCache() bool { return m.prefer }

type mockReplanner struct {
	plan  domain.CapacityPlan
	calls int
}

func (m *mockReplanner) Replan() (domain.CapacityPlan, bool, error) {
	m.calls++
	return m.plan, true, nil
}

type testEnv struct {
	store     *mockStore
	loader    *mockLoader
	disk      *mockDisk
	replanner *mockReplanner
	handler   http.Handler
}

var externalPlan = domain.CapacityPlan{
	Tier:           domain.StorageTier{Kind: domain.TierExternal, RootPath: "/mnt/sdcard/picture-cache", Available: true, Writable: true},
	RequestedBytes: 20 << 20,
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store: &mockStore{},
		loader: &mockLoader{
			images: map[string]*domain.Image{
				"https://example.com/a.png": {SourceURL: "https://example.com/a.png", ContentType: "image/png", Data: []byte("png-bytes")},
			},
			profile: cacher.ProfileWithDiskCache,
		},
		disk:      &mockDisk{stats: domain.CacheStats{Entries: 4, TotalBytes: 4096, Enabled: true, Tier: "external"}},
		replanner: &mockReplanner{plan: externalPlan},
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter", Help: "test"}))

	cfg := DefaultConfig()
	cfg.AdminUsername = "admin"
	cfg.AdminPassword = "secret"

	s := New(cfg, Deps{
		Store:     env.store,
		Loader:    env.loader,
		Disk:      env.disk,
		Memory:    mockMemory{},
		Planner:   &mockPlanner{plan: externalPlan, prefer: true},
		Replanner: env.replanner,
		Downloads: mockDownloads(5),
		Budget:    domain.CacheBudget{ExternalBytes: 20 << 20, InternalBytes: 8 << 20, MarginBytes: 1 << 20},
		Gatherer:  reg,
	}, zap.NewNop())
	env.handler = s.Handler()
	return env
}

func (e *testEnv) do(method, target string, auth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if auth {
		req.SetBasicAuth("admin", "secret")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/health", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	env.store.pingErr = errors.New("db closed")
	rec = env.do(http.MethodGet, "/health", false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(http.MethodPost, "/health", false)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Images(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/images?url=https://example.com/a.png", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "9", rec.Header().Get("Content-Length"))
	assert.Equal(t, "disk", rec.Header().Get("X-Cache-Profile"))
	assert.Equal(t, "png-bytes", rec.Body.String())

	rec = env.do(http.MethodHead, "/images?url=https://example.com/a.png", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestServer_ImageErrors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		method     string
		err        error
		wantStatus int
	}{
		{"missing url", "/images", http.MethodGet, nil, http.StatusBadRequest},
		{"wrong method", "/images?url=x", http.MethodPost, nil, http.StatusMethodNotAllowed},
		{"not found", "/images?url=https://example.com/missing.png", http.MethodGet, nil, http.StatusNotFound},
		{"invalid url", "/images?url=ftp://x", http.MethodGet, domain.ErrInvalidInput, http.StatusBadRequest},
		{"offline", "/images?url=https://example.com/a.png", http.MethodGet, domain.ErrOffline, http.StatusServiceUnavailable},
		{"host not allowed", "/images?url=https://evil.test/a.png", http.MethodGet, domain.ErrHostNotAllowed, http.StatusForbidden},
		{"upstream busy", "/images?url=https://example.com/a.png", http.MethodGet, domain.NewRetryableError(errors.New("status 503"), 0), http.StatusServiceUnavailable},
		{"queue closed", "/images?url=https://example.com/a.png", http.MethodGet, domain.ErrQueueClosed, http.StatusServiceUnavailable},
		{"upstream failure", "/images?url=https://example.com/a.png", http.MethodGet, errors.New("reset"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.loader.err = tt.err
			rec := env.do(tt.method, tt.target, false)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestServer_ImageRetryAfter(t *testing.T) {
	env := newTestEnv(t)
	env.loader.err = domain.NewRetryableError(errors.New("status 429"), 30*time.Second)

	rec := env.do(http.MethodGet, "/images?url=https://example.com/a.png", false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestServer_DebugPlan(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/debug/plan", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Plan            planView `json:"plan"`
		PreferDiskCache bool     `json:"prefer_disk_cache"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.PreferDiskCache)
	assert.Equal(t, "external", body.Plan.Tier)
	assert.Equal(t, "/mnt/sdcard/picture-cache", body.Plan.RootPath)
	assert.Equal(t, int64(20<<20), body.Plan.RequestedBytes)
	assert.Equal(t, "20 MiB", body.Plan.Requested)
	assert.False(t, body.Plan.NoCache)
}

func TestServer_DebugStats(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/debug/stats", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats domain.CacheStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(4), stats.Entries)
	assert.Equal(t, uint64(7), stats.MemoryHits)
	assert.Equal(t, uint64(2), stats.MemoryMisses)
	assert.Equal(t, int64(1024), stats.MemoryBytes)
	assert.Equal(t, 5, stats.PendingDownloads)
}

func TestServer_AdminReset(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/admin/cache/reset", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec = env.do(http.MethodGet, "/admin/cache/reset", true)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = env.do(http.MethodPost, "/admin/cache/reset", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.loader.memoryClears)
	assert.Equal(t, 1, env.disk.cleared)
	assert.Equal(t, 1, env.replanner.calls)

	var body struct {
		Removed      int      `json:"removed"`
		Plan         planView `json:"plan"`
		Reconfigured bool     `json:"reconfigured"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 3, body.Removed)
	assert.Equal(t, "external", body.Plan.Tier)
	assert.True(t, body.Reconfigured)
}

func TestServer_AdminDisabledWithoutPassword(t *testing.T) {
	s := New(&Config{}, Deps{Store: &mockStore{}, Loader: &mockLoader{}, Disk: &mockDisk{}, Memory: mockMemory{}, Planner: &mockPlanner{}}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/admin/cache/reset", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/metrics", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "test_counter"))
}
