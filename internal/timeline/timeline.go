// Package timeline groups gallery media into owner-curated events and keeps
// the event/media back-references consistent.
package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hearthside/gallery/internal/models"
	"github.com/hearthside/gallery/internal/remote"
)

// EventView is a timeline event with its associated media resolved.
type EventView struct {
	Event    models.TimelineEvent `json:"event"`
	MediaIDs []string             `json:"mediaIds"`
}

// Service resolves event/media associations through the remote library.
type Service struct {
	library remote.Library
	logger  *slog.Logger
}

// NewService constructs a timeline service over the given library.
func NewService(library remote.Library, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{library: library, logger: logger}
}

// Timeline returns every event with its resolved media ids, sorted by event
// date descending.
func (s *Service) Timeline(ctx context.Context) ([]EventView, error) {
	if s == nil || s.library == nil {
		return nil, remote.ErrBackendUnavailable
	}

	events, err := s.library.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}

	media, err := s.allMedia(ctx)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}

	views := make([]EventView, 0, len(events))
	for _, ev := range events {
		views = append(views, EventView{Event: ev, MediaIDs: MediaFor(ev, media)})
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Event.Date > views[j].Event.Date
	})
	return views, nil
}

// DeleteEvent removes an event and clears the Event field on any media that
// pointed at it. Media are never deleted alongside their event.
func (s *Service) DeleteEvent(ctx context.Context, eventID string) error {
	if s == nil || s.library == nil {
		return remote.ErrBackendUnavailable
	}

	events, err := s.library.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	var target *models.TimelineEvent
	for i := range events {
		if events[i].ID == eventID {
			target = &events[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("delete event %s: %w", eventID, remote.ErrNotFound)
	}

	media, err := s.allMedia(ctx)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	for _, id := range MediaFor(*target, media) {
		if err := s.library.SetMediaEvent(ctx, id, ""); err != nil {
			return fmt.Errorf("delete event %s: clear media %s: %w", eventID, id, err)
		}
		s.logger.Debug("cleared event reference", "event_id", eventID, "media_id", id)
	}

	if err := s.library.DeleteEvent(ctx, eventID); err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}

func (s *Service) allMedia(ctx context.Context) ([]models.MediaRecord, error) {
	images, err := s.library.ListImages(ctx)
	if err != nil {
		return nil, err
	}
	videos, err := s.library.ListVideos(ctx)
	if err != nil {
		return nil, err
	}
	return append(images, videos...), nil
}

// MediaFor resolves the media ids belonging to an event: the explicit id list
// when present, otherwise an exact normalized-title match against each
// record's Event field.
func MediaFor(ev models.TimelineEvent, media []models.MediaRecord) []string {
	if len(ev.MediaIDs) > 0 {
		return append([]string(nil), ev.MediaIDs...)
	}

	title := NormalizeTitle(ev.Title)
	if title == "" {
		return nil
	}

	var ids []string
	for _, rec := range media {
		if NormalizeTitle(rec.Event) == title {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

// NormalizeTitle lowercases and collapses interior whitespace so "Beach Trip"
// and " beach  trip " match.
func NormalizeTitle(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// GroupByDay buckets media by calendar date, newest day first.
type DayGroup struct {
	Date  string               `json:"date"`
	Media []models.MediaRecord `json:"media"`
}

// GroupByDay buckets records by their Date field and returns the days sorted
// descending. Records keep their relative order within a day.
func GroupByDay(records []models.MediaRecord) []DayGroup {
	byDay := make(map[string][]models.MediaRecord)
	var days []string
	for _, rec := range records {
		if _, seen := byDay[rec.Date]; !seen {
			days = append(days, rec.Date)
		}
		byDay[rec.Date] = append(byDay[rec.Date], rec)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	groups := make([]DayGroup, 0, len(days))
	for _, day := range days {
		groups = append(groups, DayGroup{Date: day, Media: byDay[day]})
	}
	return groups
}
