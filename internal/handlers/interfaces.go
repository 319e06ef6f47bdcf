package handlers

import (
	"context"

	"github.com/hearthside/gallery/internal/cache"
	"github.com/hearthside/gallery/internal/timeline"
)

// GalleryCache captures the local-cache reads required by the viewer API.
type GalleryCache interface {
	Load(ctx context.Context) (*cache.HydratedGallery, error)
	Thumb(ctx context.Context, id string) ([]byte, error)
	VideoThumb(ctx context.Context, id string) ([]byte, error)
}

// SyncSummary reports the outcome of one sync pass.
type SyncSummary struct {
	Images   int `json:"images"`
	Videos   int `json:"videos"`
	Hydrated int `json:"hydrated"`
}

// SyncRunner executes a full sync pass against the remote backend.
type SyncRunner interface {
	Run(ctx context.Context) (SyncSummary, error)
}

// TimelineSource resolves timeline events and handles event deletion.
type TimelineSource interface {
	Timeline(ctx context.Context) ([]timeline.EventView, error)
	DeleteEvent(ctx context.Context, eventID string) error
}
