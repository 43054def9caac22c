package requests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/missedcall-flow/pkg/logging"
)

func newTestRouter(repo Repository) http.Handler {
	h := NewHandler(repo, logging.Default())
	r := chi.NewRouter()
	r.Get("/admin/businesses/{businessRef}/requests", h.ListRecords)
	r.Get("/admin/requests/{id}", h.GetRecord)
	return r
}

func TestListRecords(t *testing.T) {
	repo := NewInMemoryRepository()
	if _, _, err := repo.Create(context.Background(), newCreateRequest("s-1")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/businesses/B1/requests?limit=10", nil)
	w := httptest.NewRecorder()
	newTestRouter(repo).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp ListRecordsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 1 || resp.Limit != 10 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Records[0].Priority != "Hitno" {
		t.Errorf("expected priority Hitno, got %q", resp.Records[0].Priority)
	}
}

func TestGetRecord(t *testing.T) {
	repo := NewInMemoryRepository()
	rec, _, err := repo.Create(context.Background(), newCreateRequest("s-1"))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	router := newTestRouter(repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/requests/"+rec.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var got Record
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.SessionID != "s-1" {
		t.Errorf("expected session s-1, got %q", got.SessionID)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/requests/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}
