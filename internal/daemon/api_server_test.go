package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func apiRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	h := newTestHarness(t)
	handler := h.apiHandler(t, "")

	rec := apiRequest(t, handler, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var status Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Enabled {
		t.Error("filtering should default to enabled")
	}

	if rec := apiRequest(t, handler, http.MethodPost, "/api/status", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status code = %d, want 405", rec.Code)
	}
}

func TestChannelEndpoints(t *testing.T) {
	h := newTestHarness(t)
	handler := h.apiHandler(t, "")
	ctx := context.Background()

	rec := apiRequest(t, handler, http.MethodPost, "/api/channels/allow", `{"name":"trusted"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("allow status code = %d: %s", rec.Code, rec.Body.String())
	}
	rec = apiRequest(t, handler, http.MethodPost, "/api/channels/block", `{"name":"spam"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("block status code = %d", rec.Code)
	}

	listing, err := h.store.ChannelListing(ctx)
	if err != nil {
		t.Fatalf("ChannelListing failed: %v", err)
	}
	if !listing.IsAllowed("trusted") || !listing.IsBlocked("spam") {
		t.Errorf("listing = %+v", listing)
	}

	rec = apiRequest(t, handler, http.MethodGet, "/api/channels", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status code = %d", rec.Code)
	}
	var channels channelsResponse
	if err := json.NewDecoder(rec.Body).Decode(&channels); err != nil {
		t.Fatalf("decode channels: %v", err)
	}
	if len(channels.Channels) != 2 {
		t.Errorf("channels = %d, want 2", len(channels.Channels))
	}

	if rec := apiRequest(t, handler, http.MethodPost, "/api/channels/remove", `{"name":"unknown"}`); rec.Code != http.StatusNotFound {
		t.Errorf("remove unknown status code = %d, want 404", rec.Code)
	}
	if rec := apiRequest(t, handler, http.MethodPost, "/api/channels/allow", `{"name":"  "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("blank name status code = %d, want 400", rec.Code)
	}
	if rec := apiRequest(t, handler, http.MethodPost, "/api/channels/allow", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status code = %d, want 400", rec.Code)
	}
}

func TestEnabledAndQueryEndpoints(t *testing.T) {
	h := newTestHarness(t)
	handler := h.apiHandler(t, "")
	ctx := context.Background()

	rec := apiRequest(t, handler, http.MethodPost, "/api/enabled", `{"enabled":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("enabled status code = %d", rec.Code)
	}
	settings, err := h.store.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if settings.Enabled {
		t.Error("filtering should be disabled after the call")
	}

	rec = apiRequest(t, handler, http.MethodPost, "/api/query", `{"query":"объяснение"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("query status code = %d", rec.Code)
	}
	if h.view.ActiveQuery() != "объяснение" {
		t.Errorf("active query = %q", h.view.ActiveQuery())
	}
}

func TestSourceEndpoint(t *testing.T) {
	h := newTestHarness(t)
	handler := h.apiHandler(t, "")

	rec := apiRequest(t, handler, http.MethodPost, "/api/source", `{"url":"https://example.com/other.xml"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("source status code = %d", rec.Code)
	}
	if h.view.ActiveSource() != "https://example.com/other.xml" {
		t.Errorf("active source = %q", h.view.ActiveSource())
	}

	if rec := apiRequest(t, handler, http.MethodPost, "/api/source", `{"url":""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("blank url status code = %d, want 400", rec.Code)
	}
}

func TestReprocessEndpointRevealsItems(t *testing.T) {
	h := newTestHarness(t)
	handler := h.apiHandler(t, "")

	h.view.add("a", "title", "one")
	h.view.MarkDecided("a")
	h.view.Hide("a")

	rec := apiRequest(t, handler, http.MethodPost, "/api/reprocess", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("reprocess status code = %d", rec.Code)
	}
	if h.view.hiddenCount() != 0 {
		t.Error("reprocess should reveal hidden items")
	}
	if len(h.view.Undecided()) != 1 {
		t.Error("reprocess should clear decision marks")
	}
}

func TestItemsEndpoint(t *testing.T) {
	h := newTestHarness(t)
	handler := h.apiHandler(t, "")

	h.view.add("a", "Перший запис", "Канал")
	h.view.Hide("a")

	rec := apiRequest(t, handler, http.MethodGet, "/api/items", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("items status code = %d", rec.Code)
	}
	var items itemsResponse
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(items.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(items.Items))
	}
	if !items.Items[0].Hidden || items.Items[0].Title != "Перший запис" {
		t.Errorf("item = %+v", items.Items[0])
	}
}

func TestBearerTokenAuth(t *testing.T) {
	h := newTestHarness(t)
	handler := h.apiHandler(t, "secret")

	rec := apiRequest(t, handler, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status code = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status code = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token status code = %d, want 200", rec.Code)
	}
}
