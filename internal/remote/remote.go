package remote

import (
	"context"
	"errors"
	"io"

	"github.com/hearthside/gallery/internal/models"
)

var (
	// ErrBackendUnavailable indicates the remote library is not configured.
	ErrBackendUnavailable = errors.New("remote library unavailable")
	// ErrNotFound indicates the requested remote document does not exist.
	ErrNotFound = errors.New("remote document not found")
)

// Library is the authoritative source of gallery metadata. Listings reflect
// server truth at call time; no pagination is assumed.
type Library interface {
	ListImages(ctx context.Context) ([]models.MediaRecord, error)
	ListVideos(ctx context.Context) ([]models.MediaRecord, error)
	ListEvents(ctx context.Context) ([]models.TimelineEvent, error)

	AddMedia(ctx context.Context, record models.MediaRecord, data io.Reader) error
	SetMediaEvent(ctx context.Context, mediaID, event string) error
	DeleteEvent(ctx context.Context, eventID string) error
}

// BlobFetcher retrieves thumbnail bytes from a locator issued by the Library.
type BlobFetcher interface {
	FetchThumb(ctx context.Context, url string) ([]byte, error)
}
