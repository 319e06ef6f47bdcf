package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hearthside/gallery/internal/cache"
)

func TestHealthReportsBackendAndCacheState(t *testing.T) {
	h := HealthHandler{Backend: "http", Cache: &cacheStub{}}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var payload map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["status"] != "ok" || payload["backend"] != "http" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if payload["cache"] != "cold" {
		t.Fatalf("empty cache should report cold, got %q", payload["cache"])
	}
}

func TestHealthReportsWarmCache(t *testing.T) {
	h := HealthHandler{Backend: "s3", Cache: &cacheStub{view: &cache.HydratedGallery{}}}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	var payload map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["cache"] != "warm" {
		t.Fatalf("synced cache should report warm, got %q", payload["cache"])
	}
}
