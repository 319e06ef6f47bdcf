package app

import (
	"context"
	"io"
	"testing"

	"github.com/hearthside/gallery/internal/cache"
	"github.com/hearthside/gallery/internal/models"
)

type libraryStub struct {
	images []models.MediaRecord
	videos []models.MediaRecord
}

func (l *libraryStub) ListImages(context.Context) ([]models.MediaRecord, error) {
	return l.images, nil
}

func (l *libraryStub) ListVideos(context.Context) ([]models.MediaRecord, error) {
	return l.videos, nil
}

func (l *libraryStub) ListEvents(context.Context) ([]models.TimelineEvent, error) {
	return nil, nil
}

func (l *libraryStub) AddMedia(context.Context, models.MediaRecord, io.Reader) error { return nil }

func (l *libraryStub) SetMediaEvent(context.Context, string, string) error { return nil }

func (l *libraryStub) DeleteEvent(context.Context, string) error { return nil }

type fetcherStub struct {
	calls int
}

func (f *fetcherStub) FetchThumb(_ context.Context, url string) ([]byte, error) {
	f.calls++
	return []byte("blob:" + url), nil
}

func TestSyncerRunCoversBothKeyspaces(t *testing.T) {
	library := &libraryStub{
		images: []models.MediaRecord{
			{ID: "a", Date: "2024-03-01", Kind: models.KindImage, ThumbURL: "/media/a/thumb"},
			{ID: "b", Date: "2024-03-02", Kind: models.KindImage, ThumbURL: "/media/b/thumb"},
		},
		videos: []models.MediaRecord{
			{ID: "v", Date: "2024-03-03", Kind: models.KindVideo, ThumbURL: "/media/v/thumb"},
		},
	}
	fetcher := &fetcherStub{}

	store, err := cache.Open(t.TempDir(), fetcher, cache.Options{BatchSize: 2})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer store.Close()

	syncer := &Syncer{Library: library, Cache: store}
	summary, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("run sync: %v", err)
	}

	if summary.Images != 2 || summary.Videos != 1 || summary.Hydrated != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if fetcher.calls != 3 {
		t.Fatalf("expected 3 downloads, got %d", fetcher.calls)
	}

	if _, err := store.VideoThumb(context.Background(), "v"); err != nil {
		t.Fatalf("video thumb not cached: %v", err)
	}
}

func TestSyncerRunWithoutLibrary(t *testing.T) {
	syncer := &Syncer{}
	if _, err := syncer.Run(context.Background()); err == nil {
		t.Fatal("expected error without a configured backend")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"info":    "INFO",
		"warn":    "WARN",
		"error":   "ERROR",
		"unknown": "INFO",
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
