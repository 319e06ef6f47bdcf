package handlers

import (
	"encoding/json"
	"net/http"
)

// HealthHandler reports liveness plus which remote backend the client is
// wired against and whether the local cache has ever completed a sync.
type HealthHandler struct {
	Backend string
	Cache   GalleryCache
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	payload := map[string]string{
		"status":  "ok",
		"backend": h.Backend,
		"cache":   h.cacheState(r),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (h HealthHandler) cacheState(r *http.Request) string {
	if h.Cache == nil {
		return "unavailable"
	}
	view, err := h.Cache.Load(r.Context())
	if err != nil {
		return "unavailable"
	}
	if view == nil {
		return "cold"
	}
	return "warm"
}
