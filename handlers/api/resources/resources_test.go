package resources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dispatch-gateway/core"
	"dispatch-gateway/hub"
	"dispatch-gateway/stores/memory"
)

type failingStore struct {
	core.DocumentStore
}

func (failingStore) List(ctx context.Context, collection string) ([]*core.Document, error) {
	return nil, errors.New("connection reset by peer")
}

func (failingStore) Count(ctx context.Context, collection string) (int, error) {
	return 0, errors.New("connection reset by peer")
}

type staticStats hub.Stats

func (s staticStats) Stats() hub.Stats { return hub.Stats(s) }

func do(t *testing.T, h http.Handler, method, path, body string, ctx context.Context) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if ctx != nil {
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCRUDLifecycle(t *testing.T) {
	store := memory.NewStore()
	h := Routes(store, "pickups")
	ctx := core.WithActor(context.Background(), &core.Actor{ID: "u1", Role: core.RoleCustomer})

	rec := do(t, h, http.MethodPost, "/", `{"address":"Main St 1"}`, ctx)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST status mismatch: got %d, body %s", rec.Code, rec.Body)
	}
	var created core.Document
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if created.ID == "" || created.CreatedBy != "u1" {
		t.Errorf("Created document mismatch: %+v", created)
	}

	rec = do(t, h, http.MethodGet, "/"+created.ID, "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Main St 1") {
		t.Errorf("GET mismatch: %d %s", rec.Code, rec.Body)
	}

	rec = do(t, h, http.MethodPut, "/"+created.ID, `{"address":"Side St 2"}`, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Side St 2") {
		t.Errorf("PUT mismatch: %d %s", rec.Code, rec.Body)
	}

	rec = do(t, h, http.MethodGet, "/", "", nil)
	var list []core.Document
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil || len(list) != 1 {
		t.Errorf("LIST mismatch: %v, %d items", err, len(list))
	}

	rec = do(t, h, http.MethodDelete, "/"+created.ID, "", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status mismatch: got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/"+created.ID, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete: got %d, want 404", rec.Code)
	}
}

func TestList_EmptyIsArray(t *testing.T) {
	rec := do(t, Routes(memory.NewStore(), "trucks"), http.MethodGet, "/", "", nil)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty list should render [], got %s", rec.Body)
	}
}

func TestRejectsNonObjectBodies(t *testing.T) {
	h := Routes(memory.NewStore(), "messages")
	for _, body := range []string{`[1]`, `"text"`, `null`, `{broken`} {
		if rec := do(t, h, http.MethodPost, "/", body, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("POST %s: got %d, want 400", body, rec.Code)
		}
	}
}

func TestUpdate_Missing(t *testing.T) {
	rec := do(t, Routes(memory.NewStore(), "users"), http.MethodPut, "/nope", `{}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("PUT missing: got %d, want 404", rec.Code)
	}
}

func TestStoreFailureIsGeneric(t *testing.T) {
	rec := do(t, Routes(failingStore{}, "users"), http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status mismatch: got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Errorf("internal detail leaked: %s", rec.Body)
	}
}

func TestAnalyticsAndDashboard(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	_, _ = store.Create(ctx, &core.Document{Collection: "trucks", Data: json.RawMessage(`{}`)})
	_, _ = store.Create(ctx, &core.Document{Collection: "trucks", Data: json.RawMessage(`{}`)})
	_, _ = store.Create(ctx, &core.Document{Collection: "bookings", Data: json.RawMessage(`{}`)})

	rec := do(t, HandleAnalytics(store), http.MethodGet, "/", "", nil)
	var analytics AnalyticsResponse
	if err := json.NewDecoder(rec.Body).Decode(&analytics); err != nil {
		t.Fatalf("Failed to decode analytics: %v", err)
	}
	if analytics.Counts["trucks"] != 2 || analytics.Counts["bookings"] != 1 || analytics.Counts["users"] != 0 {
		t.Errorf("Counts mismatch: %v", analytics.Counts)
	}

	rec = do(t, HandleDashboard(store, staticStats{Connections: 3, Rooms: 2, AdminMembers: 1}), http.MethodGet, "/", "", nil)
	var dashboard DashboardResponse
	if err := json.NewDecoder(rec.Body).Decode(&dashboard); err != nil {
		t.Fatalf("Failed to decode dashboard: %v", err)
	}
	if dashboard.Realtime.Connections != 3 || dashboard.Counts["trucks"] != 2 {
		t.Errorf("Dashboard mismatch: %+v", dashboard)
	}

	if rec := do(t, HandleAnalytics(failingStore{}), http.MethodGet, "/", "", nil); rec.Code != http.StatusInternalServerError {
		t.Errorf("failing analytics: got %d", rec.Code)
	}
}
