package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hearthside/gallery/internal/logging"
	"github.com/hearthside/gallery/internal/remote"
)

// TimelineHandler exposes timeline events with resolved media associations.
type TimelineHandler struct {
	Timeline TimelineSource
}

// List handles GET /api/v1/timeline.
func (h TimelineHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if h.Timeline == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "timeline unavailable"})
		return
	}

	views, err := h.Timeline.Timeline(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("resolve timeline", "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "failed to load timeline"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, views)
}

// Delete handles DELETE /api/v1/timeline/{id}. Deleting an event clears media
// back-references but never deletes media.
func (h TimelineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if h.Timeline == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "timeline unavailable"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/timeline/")
	if id == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "event id is required"})
		return
	}

	if err := h.Timeline.DeleteEvent(ctx, id); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "event not found"})
			return
		}
		logging.FromContext(ctx).Error("delete timeline event", "id", id, "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "failed to delete event"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"deleted": id})
}
