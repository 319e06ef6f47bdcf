// Package ingest handles the programmatic upload path: derive a stable id
// from the filename, recover the capture date, and hand bytes plus record to
// the remote library.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hearthside/gallery/internal/logging"
	"github.com/hearthside/gallery/internal/models"
	"github.com/hearthside/gallery/internal/remote"
	"github.com/hearthside/gallery/internal/sniff"
)

// ErrDateRequired indicates no capture date could be inferred and the caller
// did not supply one.
var ErrDateRequired = errors.New("capture date required")

// Options override inferred values for one ingest.
type Options struct {
	// Date overrides the sniffed capture date (YYYY-MM-DD).
	Date string
	// Event attaches the media to a timeline event by title.
	Event string
}

// Ingestor uploads local files into the remote library.
type Ingestor struct {
	library remote.Library
	logger  *slog.Logger
}

// New constructs an Ingestor over the given library.
func New(library remote.Library, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{library: library, logger: logger}
}

// Ingest uploads the file at path and returns the created record.
func (i *Ingestor) Ingest(ctx context.Context, path string, opts Options) (models.MediaRecord, error) {
	if i == nil || i.library == nil {
		return models.MediaRecord{}, remote.ErrBackendUnavailable
	}

	ctx, op := logging.StartOperation(ctx, "ingest")

	date := opts.Date
	if date == "" {
		date = sniff.CaptureDate(path)
	}
	if date == "" {
		return models.MediaRecord{}, fmt.Errorf("ingest %s: %w", path, ErrDateRequired)
	}

	taken, err := i.takenIDs(ctx)
	if err != nil {
		return models.MediaRecord{}, fmt.Errorf("ingest %s: %w", path, err)
	}

	base := filepath.Base(path)
	kind := kindForName(base)
	id := ResolveID(base, taken)

	record := models.MediaRecord{
		ID:       id,
		Date:     date,
		Event:    opts.Event,
		Kind:     kind,
		ThumbURL: fmt.Sprintf("/media/%s/thumb", id),
	}
	if kind == models.KindVideo {
		record.VideoPath = fmt.Sprintf("/media/%s/video", id)
	} else {
		record.DownloadURL = fmt.Sprintf("/media/%s/full", id)
	}

	f, err := os.Open(path)
	if err != nil {
		return models.MediaRecord{}, fmt.Errorf("ingest %s: %w", path, err)
	}
	defer f.Close()

	if err := i.library.AddMedia(ctx, record, f); err != nil {
		return models.MediaRecord{}, fmt.Errorf("ingest %s: %w", path, err)
	}

	op.End(slog.String("id", id), slog.String("date", date))
	return record, nil
}

func (i *Ingestor) takenIDs(ctx context.Context) (map[string]struct{}, error) {
	images, err := i.library.ListImages(ctx)
	if err != nil {
		return nil, err
	}
	videos, err := i.library.ListVideos(ctx)
	if err != nil {
		return nil, err
	}

	taken := make(map[string]struct{}, len(images)+len(videos))
	for _, rec := range images {
		taken[rec.ID] = struct{}{}
	}
	for _, rec := range videos {
		taken[rec.ID] = struct{}{}
	}
	return taken, nil
}

// ResolveID slugifies a filename into an id and resolves collisions against
// taken by appending a numeric suffix.
func ResolveID(filename string, taken map[string]struct{}) string {
	id := Slug(filename)
	if id == "" {
		id = "media"
	}
	if _, exists := taken[id]; !exists {
		return id
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", id, n)
		if _, exists := taken[candidate]; !exists {
			return candidate
		}
	}
}

// Slug lowercases the filename stem and replaces every non-alphanumeric run
// with a single dash.
func Slug(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	stem = strings.ToLower(stem)

	var b strings.Builder
	dash := false
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func kindForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".m4v", ".mov", ".qt", ".webm", ".avi":
		return models.KindVideo
	}
	return models.KindImage
}
