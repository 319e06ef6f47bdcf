package cache

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hearthside/gallery/internal/models"
)

type stubFetcher struct {
	mu    sync.Mutex
	blobs map[string][]byte
	fails map[string]error
	calls []string
}

func (f *stubFetcher) FetchThumb(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.fails[url]; ok {
		return nil, err
	}
	data, ok := f.blobs[url]
	if !ok {
		return nil, errors.New("unknown url")
	}
	return data, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func record(id, date string) models.MediaRecord {
	return models.MediaRecord{
		ID:       id,
		Date:     date,
		Kind:     models.KindImage,
		ThumbURL: "/thumbs/" + id,
	}
}

func openTestCache(t *testing.T, fetcher Fetcher) *Cache {
	t.Helper()
	c, err := Open(t.TempDir(), fetcher, Options{BatchSize: 2})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("close cache: %v", err)
		}
	})
	return c
}

func TestLoadColdCacheReturnsNil(t *testing.T) {
	c := openTestCache(t, nil)

	view, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if view != nil {
		t.Fatalf("expected nil view on cold cache got %+v", view)
	}
}

func TestSyncDownloadsAndHydrates(t *testing.T) {
	fetcher := &stubFetcher{blobs: map[string][]byte{
		"/thumbs/a": []byte("blob-a"),
		"/thumbs/b": []byte("blob-b"),
		"/thumbs/c": []byte("blob-c"),
	}}
	c := openTestCache(t, fetcher)

	fresh := []models.MediaRecord{
		record("a", "2024-03-01"),
		record("b", "2024-03-02"),
		record("c", "2024-03-03"),
	}

	items, err := c.Sync(context.Background(), fresh, nil)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 hydrated items got %d", len(items))
	}
	for i, rec := range fresh {
		if items[i].Meta.ID != rec.ID {
			t.Fatalf("hydrated order mismatch at %d: %s", i, items[i].Meta.ID)
		}
	}
	if !bytes.Equal(items[1].Blob, []byte("blob-b")) {
		t.Fatalf("unexpected blob bytes %q", items[1].Blob)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	fetcher := &stubFetcher{blobs: map[string][]byte{
		"/thumbs/a": []byte("blob-a"),
		"/thumbs/b": []byte("blob-b"),
	}}
	c := openTestCache(t, fetcher)

	fresh := []models.MediaRecord{record("a", "2024-01-01"), record("b", "2024-01-02")}

	if _, err := c.Sync(context.Background(), fresh, nil); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	first := fetcher.callCount()

	if _, err := c.Sync(context.Background(), fresh, nil); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if fetcher.callCount() != first {
		t.Fatalf("second sync fetched %d extra thumbnails", fetcher.callCount()-first)
	}
}

func TestSyncDiff(t *testing.T) {
	fetcher := &stubFetcher{blobs: map[string][]byte{
		"/thumbs/a": []byte("blob-a"),
		"/thumbs/b": []byte("blob-b"),
		"/thumbs/c": []byte("blob-c"),
	}}
	c := openTestCache(t, fetcher)

	prior := []models.MediaRecord{record("a", "2024-01-01"), record("b", "2024-01-02")}
	if _, err := c.Sync(context.Background(), prior, nil); err != nil {
		t.Fatalf("prior sync: %v", err)
	}

	before := fetcher.callCount()

	fresher := []models.MediaRecord{record("b", "2024-01-02"), record("c", "2024-01-03")}
	items, err := c.Sync(context.Background(), fresher, nil)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if got := fetcher.callCount() - before; got != 1 {
		t.Fatalf("expected exactly one fetch for {c} got %d", got)
	}
	if len(items) != 2 || items[0].Meta.ID != "b" || items[1].Meta.ID != "c" {
		t.Fatalf("unexpected hydration %+v", items)
	}

	if _, err := c.Thumb(context.Background(), "a"); !errors.Is(err, ErrNotCached) {
		t.Fatalf("expected a evicted got %v", err)
	}
	blob, err := c.Thumb(context.Background(), "b")
	if err != nil {
		t.Fatalf("read b: %v", err)
	}
	if !bytes.Equal(blob, []byte("blob-b")) {
		t.Fatalf("b bytes changed: %q", blob)
	}
}

func TestSyncProgressMonotonic(t *testing.T) {
	fetcher := &stubFetcher{blobs: map[string][]byte{
		"/thumbs/a": []byte("blob-a"),
		"/thumbs/b": []byte("blob-b"),
		"/thumbs/c": []byte("blob-c"),
		"/thumbs/d": []byte("blob-d"),
		"/thumbs/e": []byte("blob-e"),
	}}
	c := openTestCache(t, fetcher)

	if _, err := c.Sync(context.Background(), []models.MediaRecord{record("a", "2024-01-01")}, nil); err != nil {
		t.Fatalf("seed sync: %v", err)
	}

	fresh := []models.MediaRecord{
		record("a", "2024-01-01"),
		record("b", "2024-01-02"),
		record("c", "2024-01-03"),
		record("d", "2024-01-04"),
		record("e", "2024-01-05"),
	}

	var loadedValues []int
	var total int
	onProgress := func(loaded, tot int) {
		loadedValues = append(loadedValues, loaded)
		total = tot
	}

	if _, err := c.Sync(context.Background(), fresh, onProgress); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if len(loadedValues) == 0 {
		t.Fatal("expected progress callbacks")
	}
	// Initial report counts already-cached items before any network activity.
	if loadedValues[0] != 1 {
		t.Fatalf("expected initial progress 1 got %d", loadedValues[0])
	}
	for i := 1; i < len(loadedValues); i++ {
		if loadedValues[i] < loadedValues[i-1] {
			t.Fatalf("progress regressed: %v", loadedValues)
		}
	}
	if last := loadedValues[len(loadedValues)-1]; last != total || total != 5 {
		t.Fatalf("expected final progress %d/%d to equal 5/5", last, total)
	}
}

func TestSyncSurvivesItemFailure(t *testing.T) {
	fetcher := &stubFetcher{
		blobs: map[string][]byte{"/thumbs/a": []byte("blob-a")},
		fails: map[string]error{"/thumbs/broken": errors.New("boom")},
	}
	c := openTestCache(t, fetcher)

	fresh := []models.MediaRecord{record("a", "2024-01-01"), record("broken", "2024-01-02")}

	var final int
	items, err := c.Sync(context.Background(), fresh, func(loaded, total int) { final = loaded })
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(items) != 1 || items[0].Meta.ID != "a" {
		t.Fatalf("expected only a hydrated got %+v", items)
	}
	if final != 2 {
		t.Fatalf("failed item should still count toward progress, got %d", final)
	}

	// The failed item never became cached, so the next sync retries it.
	fetcher.mu.Lock()
	delete(fetcher.fails, "/thumbs/broken")
	fetcher.blobs["/thumbs/broken"] = []byte("blob-broken")
	fetcher.mu.Unlock()

	items, err = c.Sync(context.Background(), fresh, nil)
	if err != nil {
		t.Fatalf("retry sync: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected retry to recover item got %+v", items)
	}
}

func TestSyncManifestReplacedWholesale(t *testing.T) {
	fetcher := &stubFetcher{blobs: map[string][]byte{"/thumbs/a": []byte("blob-a")}}
	c := openTestCache(t, fetcher)

	fresh := []models.MediaRecord{record("a", "2024-01-01")}
	if _, err := c.Sync(context.Background(), fresh, nil); err != nil {
		t.Fatalf("sync: %v", err)
	}

	// Metadata-only change: same blob, different event label.
	fresh[0].Event = "anniversary"
	if _, err := c.Sync(context.Background(), fresh, nil); err != nil {
		t.Fatalf("sync: %v", err)
	}

	view, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if view == nil || len(view.Metas) != 1 {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Metas[0].Event != "anniversary" {
		t.Fatalf("manifest did not capture metadata change: %+v", view.Metas[0])
	}
	if fetcher.callCount() != 1 {
		t.Fatalf("metadata change should not refetch blobs, got %d calls", fetcher.callCount())
	}
}

func TestLoadSortsByDateDescending(t *testing.T) {
	fetcher := &stubFetcher{blobs: map[string][]byte{
		"/thumbs/old": []byte("blob-old"),
		"/thumbs/new": []byte("blob-new"),
	}}
	c := openTestCache(t, fetcher)

	fresh := []models.MediaRecord{record("old", "2023-05-01"), record("new", "2024-05-01")}
	if _, err := c.Sync(context.Background(), fresh, nil); err != nil {
		t.Fatalf("sync: %v", err)
	}

	view, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if view.Metas[0].ID != "new" || view.Items[0].Meta.ID != "new" {
		t.Fatalf("expected newest first got %+v", view.Metas)
	}
}

func TestVideoThumbKeyspaceIsolation(t *testing.T) {
	fetcher := &stubFetcher{blobs: map[string][]byte{
		"/thumbs/img": []byte("blob-img"),
		"/thumbs/vid": []byte("blob-vid"),
	}}
	c := openTestCache(t, fetcher)

	images := []models.MediaRecord{record("img", "2024-01-01")}
	if _, err := c.Sync(context.Background(), images, nil); err != nil {
		t.Fatalf("image sync: %v", err)
	}

	videos := []models.MediaRecord{{ID: "vid", Date: "2024-01-02", Kind: models.KindVideo, ThumbURL: "/thumbs/vid"}}
	if err := c.SyncVideoThumbs(context.Background(), videos); err != nil {
		t.Fatalf("video sync: %v", err)
	}

	thumbs, err := c.VideoThumbs(context.Background(), videos)
	if err != nil {
		t.Fatalf("video thumbs: %v", err)
	}
	if !bytes.Equal(thumbs["vid"], []byte("blob-vid")) {
		t.Fatalf("unexpected video thumb %q", thumbs["vid"])
	}

	// Emptying the video listing must not disturb the image keyspace or the
	// manifest.
	if err := c.SyncVideoThumbs(context.Background(), nil); err != nil {
		t.Fatalf("video evict sync: %v", err)
	}
	if _, err := c.VideoThumb(context.Background(), "vid"); !errors.Is(err, ErrNotCached) {
		t.Fatalf("expected video thumb evicted got %v", err)
	}
	if _, err := c.Thumb(context.Background(), "img"); err != nil {
		t.Fatalf("image blob disturbed: %v", err)
	}
	view, err := c.Load(context.Background())
	if err != nil || view == nil || len(view.Metas) != 1 {
		t.Fatalf("manifest disturbed: %+v err %v", view, err)
	}
}

func TestVideoThumbsSkipsUncached(t *testing.T) {
	c := openTestCache(t, nil)

	videos := []models.MediaRecord{{ID: "nope", Kind: models.KindVideo, ThumbURL: "/thumbs/nope"}}
	thumbs, err := c.VideoThumbs(context.Background(), videos)
	if err != nil {
		t.Fatalf("video thumbs: %v", err)
	}
	if len(thumbs) != 0 {
		t.Fatalf("expected empty map got %v", thumbs)
	}
}

func TestClearEmptiesEverything(t *testing.T) {
	fetcher := &stubFetcher{blobs: map[string][]byte{
		"/thumbs/a": []byte("blob-a"),
		"/thumbs/v": []byte("blob-v"),
	}}
	c := openTestCache(t, fetcher)

	if _, err := c.Sync(context.Background(), []models.MediaRecord{record("a", "2024-01-01")}, nil); err != nil {
		t.Fatalf("sync: %v", err)
	}
	videos := []models.MediaRecord{{ID: "v", Kind: models.KindVideo, ThumbURL: "/thumbs/v"}}
	if err := c.SyncVideoThumbs(context.Background(), videos); err != nil {
		t.Fatalf("video sync: %v", err)
	}

	if err := c.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}

	view, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if view != nil {
		t.Fatalf("expected nil view after clear got %+v", view)
	}
	thumbs, err := c.VideoThumbs(context.Background(), videos)
	if err != nil {
		t.Fatalf("video thumbs: %v", err)
	}
	if len(thumbs) != 0 {
		t.Fatalf("expected no video thumbs after clear got %v", thumbs)
	}
}

func TestLoadSkipsMissingBlob(t *testing.T) {
	fetcher := &stubFetcher{blobs: map[string][]byte{
		"/thumbs/keep": []byte("blob-keep"),
		"/thumbs/gone": []byte("blob-gone"),
	}}
	c := openTestCache(t, fetcher)

	fresh := []models.MediaRecord{record("keep", "2024-01-01"), record("gone", "2024-01-02")}
	if _, err := c.Sync(context.Background(), fresh, nil); err != nil {
		t.Fatalf("sync: %v", err)
	}

	// Simulate a partially written entry by deleting the blob underneath the
	// manifest.
	if err := c.deleteBlobs([][]byte{thumbKey("gone")}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	view, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(view.Metas) != 2 {
		t.Fatalf("manifest should still list both records: %+v", view.Metas)
	}
	if len(view.Items) != 1 || view.Items[0].Meta.ID != "keep" {
		t.Fatalf("expected missing blob skipped got %+v", view.Items)
	}
}

func TestSyncStoreFailureAbortsPass(t *testing.T) {
	// Badger rejects keys past its size limit, which makes the local write
	// fail while the download itself succeeds.
	hugeID := strings.Repeat("x", 70000)
	fetcher := &stubFetcher{blobs: map[string][]byte{
		"/thumbs/a":         []byte("blob-a"),
		"/thumbs/" + hugeID: []byte("blob-huge"),
	}}
	c := openTestCache(t, fetcher)

	ctx := context.Background()
	if _, err := c.Sync(ctx, []models.MediaRecord{record("a", "2024-01-01")}, nil); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	fresh := []models.MediaRecord{record("a", "2024-01-01"), record(hugeID, "2024-01-02")}
	if _, err := c.Sync(ctx, fresh, nil); err == nil {
		t.Fatal("expected a storage write failure to abort the sync")
	}

	// The manifest must still reflect the last successful pass, and blobs
	// committed before the failure stay readable.
	view, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if view == nil || len(view.Metas) != 1 || view.Metas[0].ID != "a" {
		t.Fatalf("manifest should be untouched by the failed pass, got %+v", view)
	}
	if _, err := c.Thumb(ctx, "a"); err != nil {
		t.Fatalf("previously committed blob lost: %v", err)
	}
}

func TestSyncFetchFailureDoesNotAbortPass(t *testing.T) {
	fetcher := &stubFetcher{
		blobs: map[string][]byte{"/thumbs/a": []byte("blob-a")},
		fails: map[string]error{"/thumbs/b": errors.New("connection reset")},
	}
	c := openTestCache(t, fetcher)

	ctx := context.Background()
	fresh := []models.MediaRecord{record("a", "2024-01-01"), record("b", "2024-01-02")}
	items, err := c.Sync(ctx, fresh, nil)
	if err != nil {
		t.Fatalf("download failures must not abort the pass: %v", err)
	}
	if len(items) != 1 || items[0].Meta.ID != "a" {
		t.Fatalf("unexpected hydrated items %+v", items)
	}

	// Unlike a storage failure, the manifest advances to the fresh listing.
	view, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if view == nil || len(view.Metas) != 2 {
		t.Fatalf("manifest should hold the fresh listing, got %+v", view)
	}
}
