package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hearthside/gallery/internal/cache"
	"github.com/hearthside/gallery/internal/logging"
	"github.com/hearthside/gallery/internal/models"
	"github.com/hearthside/gallery/internal/timeline"
)

// GalleryHandler exposes the hydrated local view.
type GalleryHandler struct {
	Cache GalleryCache
}

type galleryResponse struct {
	Cold    bool                 `json:"cold"`
	Records []models.MediaRecord `json:"records"`
	Cached  []string             `json:"cached"`
	Days    []timeline.DayGroup  `json:"days"`
}

// View handles GET /api/v1/gallery. A cold cache is reported as such rather
// than as an error; the UI then waits for the first sync.
func (h GalleryHandler) View(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Cache == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "gallery cache unavailable"})
		return
	}

	view, err := h.Cache.Load(ctx)
	if err != nil {
		// A broken local store reads as a cold cache, not a dead service.
		logger.Error("load cached gallery", "error", err)
		respondJSON(ctx, w, http.StatusOK, galleryResponse{Cold: true, Records: []models.MediaRecord{}, Cached: []string{}})
		return
	}
	if view == nil {
		respondJSON(ctx, w, http.StatusOK, galleryResponse{Cold: true, Records: []models.MediaRecord{}, Cached: []string{}})
		return
	}

	cached := make([]string, 0, len(view.Items))
	for _, item := range view.Items {
		cached = append(cached, item.Meta.ID)
	}

	respondJSON(ctx, w, http.StatusOK, galleryResponse{
		Records: view.Metas,
		Cached:  cached,
		Days:    timeline.GroupByDay(view.Metas),
	})
}

// ThumbHandler serves cached thumbnail bytes.
type ThumbHandler struct {
	Cache GalleryCache
}

// Serve handles GET /api/v1/thumbs/{id}. Video thumbnails use the id form
// "video:{id}". Uncached ids return 404; the UI falls back to the remote URL.
func (h ThumbHandler) Serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if h.Cache == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "gallery cache unavailable"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/thumbs/")
	if id == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "thumbnail id is required"})
		return
	}

	var (
		data []byte
		err  error
	)
	if videoID, ok := strings.CutPrefix(id, "video:"); ok {
		data, err = h.Cache.VideoThumb(ctx, videoID)
	} else {
		data, err = h.Cache.Thumb(ctx, id)
	}

	if errors.Is(err, cache.ErrNotCached) {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "thumbnail not cached"})
		return
	}
	if err != nil {
		logging.FromContext(ctx).Error("read cached thumbnail", "id", id, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to read thumbnail"})
		return
	}

	// The store keeps raw bytes without a recorded type, so sniff it; uploads
	// are not guaranteed to be JPEG.
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}
