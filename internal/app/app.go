// Package app bootstraps the gallery client: configuration, logging, the
// local cache, the remote library, and either the viewer HTTP server or one
// of the one-shot maintenance commands.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hearthside/gallery/internal/cache"
	"github.com/hearthside/gallery/internal/config"
	"github.com/hearthside/gallery/internal/handlers"
	"github.com/hearthside/gallery/internal/httpserver"
	"github.com/hearthside/gallery/internal/ingest"
	"github.com/hearthside/gallery/internal/logging"
	"github.com/hearthside/gallery/internal/middleware"
	"github.com/hearthside/gallery/internal/remote"
	"github.com/hearthside/gallery/internal/sniff"
	"github.com/hearthside/gallery/internal/timeline"
)

const listingTTL = time.Minute

// Run dispatches the gallery client commands.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, sync, ingest, date, or clear")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "sync":
		return runSync(ctx)
	case "ingest":
		return runIngest(ctx, args[1:])
	case "date":
		return runDate(args[1:])
	case "clear":
		return runClear(ctx)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	library, fetcher := buildBackend(ctx, cfg)
	if library == nil {
		return remote.ErrBackendUnavailable
	}

	store, err := openCache(cfg, fetcher, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	syncer := &Syncer{Library: library, Cache: store, Logger: logger}
	events := timeline.NewService(library, logger)

	deps := handlers.Dependencies{
		Backend: cfg.Backend,
		Cache:   store,
		Syncer:  syncer,
		// One manual sync per 30s per client is plenty; the UI disables the
		// button while a pass runs anyway.
		SyncLimiter: middleware.NewKeyRateLimiter(1, 30*time.Second, 1, time.Hour),
		Timeline:    events,
	}

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	handler := middleware.RequestLogger(logger)(mux)

	srv := httpserver.New(cfg.AppPort, handler)

	logger.Info("starting viewer server", "port", cfg.AppPort, "backend", cfg.Backend)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func runSync(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	library, fetcher := buildBackend(ctx, cfg)
	if library == nil {
		return remote.ErrBackendUnavailable
	}

	store, err := openCache(cfg, fetcher, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	syncer := &Syncer{Library: library, Cache: store, Logger: logger}
	summary, err := syncer.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("sync complete",
		"images", summary.Images,
		"videos", summary.Videos,
		"hydrated", summary.Hydrated,
	)
	return nil
}

func runIngest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	date := fs.String("date", "", "capture date override (YYYY-MM-DD)")
	event := fs.String("event", "", "timeline event title to attach")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("ingest: expected at least one file path")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	library, _ := buildBackend(ctx, cfg)
	if library == nil {
		return remote.ErrBackendUnavailable
	}

	ing := ingest.New(library, logger)
	for _, path := range fs.Args() {
		record, err := ing.Ingest(ctx, path, ingest.Options{Date: *date, Event: *event})
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\t%s\n", record.ID, record.Kind, record.Date)
	}
	return nil
}

// runDate prints the sniffed capture date for each path, one line per file.
// An unreadable file yields an empty line, matching sniff.CaptureDate.
func runDate(args []string) error {
	if len(args) == 0 {
		return errors.New("date: expected at least one file path")
	}
	for _, path := range args {
		fmt.Println(sniff.CaptureDate(path))
	}
	return nil
}

func runClear(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	store, err := openCache(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Clear(ctx); err != nil {
		return err
	}
	logger.Info("cache cleared", "dir", cfg.DataDir)
	return nil
}

// buildBackend assembles the remote library and blob fetcher for the
// configured backend kind. Listings are cached briefly and thumbnail
// downloads are throttled regardless of transport.
func buildBackend(ctx context.Context, cfg config.Config) (remote.Library, remote.BlobFetcher) {
	var (
		base    remote.Library
		fetcher remote.BlobFetcher
	)

	switch cfg.Backend {
	case config.BackendS3:
		lib, err := remote.NewS3Library(ctx, cfg.ObjectStore)
		if err != nil {
			slog.Default().Error("configure object store backend", "error", err)
			return nil, nil
		}
		base, fetcher = lib, lib
	default:
		lib := remote.NewHTTPLibrary(cfg.BackendURL, cfg.HTTPTimeout)
		base, fetcher = lib, lib
	}

	library := remote.NewCachingLibrary(base, listingTTL)
	limited := remote.NewLimitedFetcher(fetcher, cfg.FetchPerSec, cfg.FetchBurst)
	return library, limited
}

func openCache(cfg config.Config, fetcher remote.BlobFetcher, logger *slog.Logger) (*cache.Cache, error) {
	return cache.Open(cfg.DataDir, fetcher, cache.Options{
		BatchSize: cfg.SyncBatchSize,
		Logger:    logger,
	})
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     parseLevel(level),
	}))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Syncer runs a full sync pass: image listing into the manifest keyspace,
// video listing into the video-thumbnail keyspace.
type Syncer struct {
	Library remote.Library
	Cache   *cache.Cache
	Logger  *slog.Logger
}

// Run implements handlers.SyncRunner.
func (s *Syncer) Run(ctx context.Context) (handlers.SyncSummary, error) {
	if s == nil || s.Library == nil || s.Cache == nil {
		return handlers.SyncSummary{}, remote.ErrBackendUnavailable
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, op := logging.StartOperation(ctx, "sync")

	images, err := s.Library.ListImages(ctx)
	if err != nil {
		return handlers.SyncSummary{}, fmt.Errorf("sync: %w", err)
	}

	items, err := s.Cache.Sync(ctx, images, func(loaded, total int) {
		logger.Debug("sync progress", "loaded", loaded, "total", total)
	})
	if err != nil {
		return handlers.SyncSummary{}, fmt.Errorf("sync: %w", err)
	}

	videos, err := s.Library.ListVideos(ctx)
	if err != nil {
		return handlers.SyncSummary{}, fmt.Errorf("sync: %w", err)
	}
	if err := s.Cache.SyncVideoThumbs(ctx, videos); err != nil {
		return handlers.SyncSummary{}, fmt.Errorf("sync: %w", err)
	}

	summary := handlers.SyncSummary{
		Images:   len(images),
		Videos:   len(videos),
		Hydrated: len(items),
	}
	op.End(
		slog.Int("images", summary.Images),
		slog.Int("videos", summary.Videos),
		slog.Int("hydrated", summary.Hydrated),
	)
	return summary, nil
}
