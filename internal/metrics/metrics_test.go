package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsExposure(t *testing.T) {
	IncCommandRun("serve")
	IncCommandError("serve")
	IncAnalysis("basic", "engagement")
	ObserveFetch("mirror", "empty", time.Now().Add(-1500*time.Millisecond))
	IncAPIRetry("/test")
	IncGeneratorFallback()
	SetCacheEntries(3)
	IncHTTPRequest("/api/health", "200")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, m := range []string{
		"auralytics_command_runs_total",
		"auralytics_command_errors_total",
		"auralytics_analyses_total",
		"auralytics_fetch_total",
		"auralytics_fetch_duration_seconds",
		"auralytics_api_retries_total",
		"auralytics_generator_fallbacks_total",
		"auralytics_cache_entries 3",
		"auralytics_http_requests_total",
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected metric %s in body", m)
		}
	}
}
