package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okozhin/catalogd/internal/app"
	"github.com/okozhin/catalogd/internal/auth"
	"github.com/okozhin/catalogd/internal/cache"
	"github.com/okozhin/catalogd/internal/telemetry"
	"github.com/okozhin/catalogd/internal/testutil"
)

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	mem, err := cache.NewMemory(100, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	store := testutil.NewFakeStore()
	seedStore(store)

	h := New(Deps{
		Auth:           auth.NewBearer(),
		Catalog:        app.NewCatalogService(store, cache.NewPages(mem, time.Hour), app.NewCacheStats(metrics)),
		Metrics:        metrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	// Hit a normal endpoint first to generate metrics.
	req := httptest.NewRequest(http.MethodGet, "/v1/products", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d; body = %s", rec.Code, rec.Body.String())
	}

	// Now check /metrics.
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "catalogd_requests_total") {
		t.Error("metrics should contain catalogd_requests_total")
	}
	if !strings.Contains(body, "catalogd_request_duration_seconds") {
		t.Error("metrics should contain catalogd_request_duration_seconds")
	}
	if !strings.Contains(body, "catalogd_cache_misses_total") {
		t.Error("metrics should contain catalogd_cache_misses_total")
	}
}
