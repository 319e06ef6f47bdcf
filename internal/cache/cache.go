// Package cache mirrors remote thumbnail bytes into a local badger store so
// the gallery renders instantly on repeat visits. It keeps two keyspaces of
// blobs (images and video thumbnails) plus a single manifest record holding
// the last fully synced image listing.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dgraph-io/badger"
	"golang.org/x/sync/errgroup"

	"github.com/hearthside/gallery/internal/models"
)

var (
	// ErrNotCached indicates the requested blob is not in the local store.
	ErrNotCached = errors.New("blob not cached")
	// ErrNoFetcher indicates a sync needed downloads but no fetcher is wired.
	ErrNoFetcher = errors.New("no blob fetcher configured")
)

// Keyspace prefixes. Image blobs live under thumbPrefix+id, video thumbnails
// under videoPrefix+id, and the manifest under a single fixed key.
var (
	thumbPrefix = []byte("thumb:")
	videoPrefix = []byte("video:")
	manifestKey = []byte("manifest")
)

const hydrateParallelism = 16

// HydratedItem pairs a media record with its locally stored thumbnail bytes.
type HydratedItem struct {
	Meta models.MediaRecord
	Blob []byte
}

// HydratedGallery is the reconstructed local view handed to the UI layer.
type HydratedGallery struct {
	Metas []models.MediaRecord
	Items []HydratedItem
}

// ProgressFunc receives sync progress. Values are monotonically non-decreasing
// within one sync pass and the final call reports loaded == total.
type ProgressFunc func(loaded, total int)

// Cache owns the badger database. It assumes a single writer per client; all
// writes are keyed and idempotent, so a redundant concurrent sync can at worst
// repeat downloads, never corrupt state.
type Cache struct {
	db        *badger.DB
	fetcher   Fetcher
	batchSize int
	logger    *slog.Logger
}

// Fetcher downloads thumbnail bytes for a locator. Implementations live in the
// remote package.
type Fetcher interface {
	FetchThumb(ctx context.Context, url string) ([]byte, error)
}

// Options tune a Cache beyond its defaults.
type Options struct {
	BatchSize int
	Logger    *slog.Logger
}

// Open creates or reopens the store under dir.
func Open(dir string, fetcher Fetcher, opts Options) (*Cache, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 60
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open cache at %s: %w", dir, err)
	}

	return &Cache{
		db:        db,
		fetcher:   fetcher,
		batchSize: opts.BatchSize,
		logger:    opts.Logger,
	}, nil
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Load reconstructs the last synced gallery from local state. It returns
// (nil, nil) when no manifest has ever been written, which is a cold cache
// rather than an error. Manifest entries whose blob is missing are skipped;
// the next sync treats them as not yet downloaded.
func (c *Cache) Load(ctx context.Context) (*HydratedGallery, error) {
	manifest, err := c.readManifest()
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if len(manifest) == 0 {
		return nil, nil
	}

	blobs := make([][]byte, len(manifest))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(hydrateParallelism)
	for i := range manifest {
		i := i
		g.Go(func() error {
			data, err := c.readBlob(thumbKey(manifest[i].ID))
			if err != nil && !errors.Is(err, ErrNotCached) {
				return err
			}
			blobs[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("hydrate blobs: %w", err)
	}

	view := &HydratedGallery{Metas: manifest}
	for i, rec := range manifest {
		if blobs[i] == nil {
			continue
		}
		view.Items = append(view.Items, HydratedItem{Meta: rec, Blob: blobs[i]})
	}

	sortHydratedByDateDesc(view)
	return view, nil
}

// Thumb returns the cached image thumbnail for id, or ErrNotCached.
func (c *Cache) Thumb(ctx context.Context, id string) ([]byte, error) {
	return c.readBlob(thumbKey(id))
}

// VideoThumb returns the cached video thumbnail for id, or ErrNotCached.
func (c *Cache) VideoThumb(ctx context.Context, id string) ([]byte, error) {
	return c.readBlob(videoKey(id))
}

// VideoThumbs returns locally cached video thumbnails for the given records.
// Ids without a cached blob are absent from the map; callers fall back to the
// remote thumbnail URL for those.
func (c *Cache) VideoThumbs(ctx context.Context, videos []models.MediaRecord) (map[string][]byte, error) {
	out := make(map[string][]byte, len(videos))
	for _, rec := range videos {
		data, err := c.readBlob(videoKey(rec.ID))
		if errors.Is(err, ErrNotCached) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read video thumb %s: %w", rec.ID, err)
		}
		out[rec.ID] = data
	}
	return out, nil
}

// Clear unconditionally empties both blob keyspaces and the manifest. Used on
// sign-out only; no partial-clear mode exists.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.db.DropAll(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

func (c *Cache) readManifest() ([]models.MediaRecord, error) {
	var manifest []models.MediaRecord
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(manifestKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &manifest)
		})
	})
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

// writeManifest replaces the manifest wholesale. Partial merges never happen;
// the snapshot is whatever listing the last successful sync worked from.
func (c *Cache) writeManifest(records []models.MediaRecord) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(manifestKey, payload)
	})
}

func (c *Cache) readBlob(key []byte) ([]byte, error) {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotCached
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// writeBlob commits one thumbnail in its own transaction so partial sync
// progress survives a crash.
func (c *Cache) writeBlob(key, data []byte) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

func (c *Cache) deleteBlobs(keys [][]byte) error {
	for _, key := range keys {
		err := c.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			return fmt.Errorf("delete blob %s: %w", key, err)
		}
	}
	return nil
}

// storedIDs lists the ids present under one keyspace prefix.
func (c *Cache) storedIDs(prefix []byte) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			ids[string(key[len(prefix):])] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list stored keys: %w", err)
	}
	return ids, nil
}

func thumbKey(id string) []byte {
	return append(append([]byte{}, thumbPrefix...), id...)
}

func videoKey(id string) []byte {
	return append(append([]byte{}, videoPrefix...), id...)
}

func sortHydratedByDateDesc(view *HydratedGallery) {
	models.SortByDateDesc(view.Metas)
	sort.SliceStable(view.Items, func(i, j int) bool {
		return view.Items[i].Meta.Date > view.Items[j].Meta.Date
	})
}
