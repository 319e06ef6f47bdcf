package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Backend: deps.Backend, Cache: deps.Cache}
	gallery := GalleryHandler{Cache: deps.Cache}
	thumbs := ThumbHandler{Cache: deps.Cache}
	sync := SyncHandler{Runner: deps.Syncer, Limiter: deps.SyncLimiter}
	timeline := TimelineHandler{Timeline: deps.Timeline}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/gallery", gallery.View)
	mux.HandleFunc("/api/v1/thumbs/", thumbs.Serve)
	mux.HandleFunc("/api/v1/sync", sync.Trigger)
	mux.HandleFunc("/api/v1/timeline", timeline.List)
	mux.HandleFunc("/api/v1/timeline/", timeline.Delete)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Backend     string
	Cache       GalleryCache
	Syncer      SyncRunner
	SyncLimiter RateLimiter
	Timeline    TimelineSource
}
