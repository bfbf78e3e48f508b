package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.ItemProcessed()
	m.ItemBlocked()
	m.BatchRun()
	m.OracleRequest("ok")
	m.CacheLookup("hit")
	if m.Handler() == nil {
		t.Error("nil metrics should still serve a handler")
	}
}

func TestCountersAppearInExposition(t *testing.T) {
	m := New()
	m.ItemProcessed()
	m.ItemProcessed()
	m.ItemBlocked()
	m.BatchRun()
	m.OracleRequest("error")
	m.CacheLookup("expired")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		"feedsift_items_processed_total 2",
		"feedsift_items_blocked_total 1",
		"feedsift_batch_runs_total 1",
		`feedsift_oracle_requests_total{outcome="error"} 1`,
		`feedsift_detectcache_lookups_total{outcome="expired"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
