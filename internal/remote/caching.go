package remote

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/hearthside/gallery/internal/models"
)

type listingEntry[T any] struct {
	values  []T
	expires time.Time
}

// CachingLibrary wraps another Library with a TTL-based in-memory cache over
// the three listings. Writes pass through and drop whatever is cached so the
// next listing reflects them.
type CachingLibrary struct {
	base Library
	ttl  time.Duration

	mu     sync.Mutex
	images listingEntry[models.MediaRecord]
	videos listingEntry[models.MediaRecord]
	events listingEntry[models.TimelineEvent]
}

// NewCachingLibrary returns a Library that caches listings for the provided TTL.
func NewCachingLibrary(base Library, ttl time.Duration) *CachingLibrary {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingLibrary{base: base, ttl: ttl}
}

// ListImages returns the cached image listing when fresh.
func (c *CachingLibrary) ListImages(ctx context.Context) ([]models.MediaRecord, error) {
	if c == nil || c.base == nil {
		return nil, ErrBackendUnavailable
	}
	return cachedListing(c, &c.images, func() ([]models.MediaRecord, error) {
		return c.base.ListImages(ctx)
	})
}

// ListVideos returns the cached video listing when fresh.
func (c *CachingLibrary) ListVideos(ctx context.Context) ([]models.MediaRecord, error) {
	if c == nil || c.base == nil {
		return nil, ErrBackendUnavailable
	}
	return cachedListing(c, &c.videos, func() ([]models.MediaRecord, error) {
		return c.base.ListVideos(ctx)
	})
}

// ListEvents returns the cached event listing when fresh.
func (c *CachingLibrary) ListEvents(ctx context.Context) ([]models.TimelineEvent, error) {
	if c == nil || c.base == nil {
		return nil, ErrBackendUnavailable
	}
	return cachedListing(c, &c.events, func() ([]models.TimelineEvent, error) {
		return c.base.ListEvents(ctx)
	})
}

// AddMedia delegates to the wrapped Library and invalidates the listings.
func (c *CachingLibrary) AddMedia(ctx context.Context, record models.MediaRecord, data io.Reader) error {
	if c == nil || c.base == nil {
		return ErrBackendUnavailable
	}
	if err := c.base.AddMedia(ctx, record, data); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

// SetMediaEvent delegates to the wrapped Library and invalidates the listings.
func (c *CachingLibrary) SetMediaEvent(ctx context.Context, mediaID, event string) error {
	if c == nil || c.base == nil {
		return ErrBackendUnavailable
	}
	if err := c.base.SetMediaEvent(ctx, mediaID, event); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

// DeleteEvent delegates to the wrapped Library and invalidates the listings.
func (c *CachingLibrary) DeleteEvent(ctx context.Context, eventID string) error {
	if c == nil || c.base == nil {
		return ErrBackendUnavailable
	}
	if err := c.base.DeleteEvent(ctx, eventID); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

func (c *CachingLibrary) invalidate() {
	c.mu.Lock()
	c.images = listingEntry[models.MediaRecord]{}
	c.videos = listingEntry[models.MediaRecord]{}
	c.events = listingEntry[models.TimelineEvent]{}
	c.mu.Unlock()
}

func cachedListing[T any](c *CachingLibrary, entry *listingEntry[T], fetch func() ([]T, error)) ([]T, error) {
	now := time.Now()

	c.mu.Lock()
	if entry.values != nil && now.Before(entry.expires) {
		values := entry.values
		c.mu.Unlock()
		return values, nil
	}
	c.mu.Unlock()

	values, err := fetch()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	*entry = listingEntry[T]{values: values, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return values, nil
}
