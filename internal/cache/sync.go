package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/hearthside/gallery/internal/models"
)

// Sync reconciles the local image keyspace with the authoritative fresh
// listing: stale blobs are evicted, missing blobs are downloaded in batches,
// and the manifest is replaced wholesale at the end. Per-item download
// failures are logged and counted toward progress without aborting the pass;
// the item simply stays absent until the next sync retries it. Local-storage
// write failures are different: they abort the pass, keeping whatever already
// committed and leaving the manifest untouched.
func (c *Cache) Sync(ctx context.Context, fresh []models.MediaRecord, onProgress ProgressFunc) ([]HydratedItem, error) {
	stored, err := c.storedIDs(thumbPrefix)
	if err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}

	downloaded, err := c.reconcile(ctx, fresh, stored, thumbKey, onProgress)
	if err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}

	// Reassemble in fresh-list order, re-reading blobs for everything that was
	// already local.
	items := make([]HydratedItem, 0, len(fresh))
	for _, rec := range fresh {
		blob, ok := downloaded[rec.ID]
		if !ok {
			var err error
			blob, err = c.readBlob(thumbKey(rec.ID))
			if err != nil {
				// Failed download this pass, or a blob lost underneath us.
				continue
			}
		}
		items = append(items, HydratedItem{Meta: rec, Blob: blob})
	}

	// The manifest captures metadata changes even for items whose blob did not
	// change, so it is always the verbatim fresh listing.
	if err := c.writeManifest(fresh); err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}

	return items, nil
}

// SyncVideoThumbs runs the same diff/evict/download pass restricted to the
// video-thumbnail keyspace. It never touches the image keyspace or the
// manifest.
func (c *Cache) SyncVideoThumbs(ctx context.Context, videos []models.MediaRecord) error {
	stored, err := c.storedIDs(videoPrefix)
	if err != nil {
		return fmt.Errorf("sync video thumbs: %w", err)
	}

	if _, err := c.reconcile(ctx, videos, stored, videoKey, nil); err != nil {
		return fmt.Errorf("sync video thumbs: %w", err)
	}
	return nil
}

// reconcile performs the shared diff/evict/download algorithm and returns the
// blobs downloaded during this pass, keyed by record id.
func (c *Cache) reconcile(
	ctx context.Context,
	fresh []models.MediaRecord,
	stored map[string]struct{},
	key func(string) []byte,
	onProgress ProgressFunc,
) (map[string][]byte, error) {
	freshIDs := make(map[string]struct{}, len(fresh))
	var toDownload []models.MediaRecord
	for _, rec := range fresh {
		freshIDs[rec.ID] = struct{}{}
		if _, ok := stored[rec.ID]; !ok {
			toDownload = append(toDownload, rec)
		}
	}

	var toRemove [][]byte
	for id := range stored {
		if _, ok := freshIDs[id]; !ok {
			toRemove = append(toRemove, key(id))
		}
	}

	// Deleting a stale local blob is always safe; do it before any network
	// activity and without retry.
	if err := c.deleteBlobs(toRemove); err != nil {
		return nil, err
	}

	if len(toDownload) > 0 && c.fetcher == nil {
		return nil, ErrNoFetcher
	}

	total := len(fresh)
	loaded := total - len(toDownload)

	progress := &progressTracker{report: onProgress, loaded: loaded, total: total}
	progress.emit()

	downloaded := make(map[string][]byte, len(toDownload))
	var (
		mu       sync.Mutex
		storeErr error
	)

	for start := 0; start < len(toDownload); start += c.batchSize {
		end := start + c.batchSize
		if end > len(toDownload) {
			end = len(toDownload)
		}

		var wg sync.WaitGroup
		for _, rec := range toDownload[start:end] {
			wg.Add(1)
			go func(rec models.MediaRecord) {
				defer wg.Done()
				defer progress.step()

				data, err := c.fetcher.FetchThumb(ctx, rec.ThumbURL)
				if err != nil {
					c.logger.Warn("thumbnail download failed", "id", rec.ID, "url", rec.ThumbURL, "error", err)
					return
				}
				if err := c.writeBlob(key(rec.ID), data); err != nil {
					mu.Lock()
					if storeErr == nil {
						storeErr = fmt.Errorf("store thumbnail %s: %w", rec.ID, err)
					}
					mu.Unlock()
					return
				}

				mu.Lock()
				downloaded[rec.ID] = data
				mu.Unlock()
			}(rec)
		}
		wg.Wait()

		// A failed local write means the store itself is unhealthy, unlike a
		// flaky download. Keep what already committed and stop here.
		if storeErr != nil {
			return nil, storeErr
		}
	}

	return downloaded, nil
}

// progressTracker serializes progress callbacks so reported values stay
// monotonic while batch goroutines complete in arbitrary order.
type progressTracker struct {
	mu     sync.Mutex
	report ProgressFunc
	loaded int
	total  int
}

func (p *progressTracker) emit() {
	if p.report == nil {
		return
	}
	p.mu.Lock()
	p.report(p.loaded, p.total)
	p.mu.Unlock()
}

func (p *progressTracker) step() {
	if p.report == nil {
		p.mu.Lock()
		p.loaded++
		p.mu.Unlock()
		return
	}
	p.mu.Lock()
	p.loaded++
	p.report(p.loaded, p.total)
	p.mu.Unlock()
}
