package handlers

import (
	"net/http"

	"github.com/hearthside/gallery/internal/logging"
)

// SyncHandler triggers a sync pass against the remote backend.
type SyncHandler struct {
	Runner  SyncRunner
	Limiter RateLimiter
}

// Trigger handles POST /api/v1/sync. The pass runs to completion before the
// response is written; the UI shows progress from its own polling of the
// gallery view.
func (h SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Runner == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "sync unavailable"})
		return
	}

	if !allowRequest(h.Limiter, r, "sync") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "sync already requested recently"})
		return
	}

	summary, err := h.Runner.Run(ctx)
	if err != nil {
		logger.Error("sync pass failed", "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "sync failed"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, summary)
}
