package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hearthside/gallery/internal/models"
)

// HTTPLibrary talks to the managed backend's JSON API. It implements both
// Library and BlobFetcher.
type HTTPLibrary struct {
	baseURL string
	client  *http.Client
}

// NewHTTPLibrary constructs a client for the backend at baseURL.
func NewHTTPLibrary(baseURL string, timeout time.Duration) *HTTPLibrary {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPLibrary{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// ListImages returns the authoritative image listing.
func (l *HTTPLibrary) ListImages(ctx context.Context) ([]models.MediaRecord, error) {
	var records []models.MediaRecord
	if err := l.getJSON(ctx, "/api/media?kind=image", &records); err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return records, nil
}

// ListVideos returns the authoritative video listing.
func (l *HTTPLibrary) ListVideos(ctx context.Context) ([]models.MediaRecord, error) {
	var records []models.MediaRecord
	if err := l.getJSON(ctx, "/api/media?kind=video", &records); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return records, nil
}

// ListEvents returns all timeline events.
func (l *HTTPLibrary) ListEvents(ctx context.Context) ([]models.TimelineEvent, error) {
	var events []models.TimelineEvent
	if err := l.getJSON(ctx, "/api/events", &events); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// AddMedia uploads the media bytes together with their record as a multipart
// document.
func (l *HTTPLibrary) AddMedia(ctx context.Context, record models.MediaRecord, data io.Reader) error {
	if l == nil || l.client == nil {
		return ErrBackendUnavailable
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	meta, err := mw.CreateFormField("record")
	if err != nil {
		return fmt.Errorf("add media: %w", err)
	}
	if err := json.NewEncoder(meta).Encode(record); err != nil {
		return fmt.Errorf("add media: encode record: %w", err)
	}

	file, err := mw.CreateFormFile("file", record.ID)
	if err != nil {
		return fmt.Errorf("add media: %w", err)
	}
	if _, err := io.Copy(file, data); err != nil {
		return fmt.Errorf("add media: copy payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("add media: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/api/media", &body)
	if err != nil {
		return fmt.Errorf("add media: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("add media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("add media: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// SetMediaEvent updates (or clears, with an empty string) the event label on a
// media document.
func (l *HTTPLibrary) SetMediaEvent(ctx context.Context, mediaID, event string) error {
	payload, err := json.Marshal(map[string]string{"event": event})
	if err != nil {
		return fmt.Errorf("set media event: %w", err)
	}

	target := fmt.Sprintf("%s/api/media/%s", l.baseURL, url.PathEscape(mediaID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("set media event: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("set media event: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("set media event %s: %w", mediaID, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("set media event %s: unexpected status %d", mediaID, resp.StatusCode)
	}
	return nil
}

// DeleteEvent removes a timeline event document.
func (l *HTTPLibrary) DeleteEvent(ctx context.Context, eventID string) error {
	target := fmt.Sprintf("%s/api/events/%s", l.baseURL, url.PathEscape(eventID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("delete event %s: %w", eventID, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("delete event %s: unexpected status %d", eventID, resp.StatusCode)
	}
	return nil
}

// FetchThumb performs a plain GET against the thumbnail locator. Relative
// locators are resolved against the backend base URL.
func (l *HTTPLibrary) FetchThumb(ctx context.Context, thumbURL string) ([]byte, error) {
	if l == nil || l.client == nil {
		return nil, ErrBackendUnavailable
	}

	target := thumbURL
	if strings.HasPrefix(target, "/") {
		target = l.baseURL + target
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch thumb: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch thumb %s: %w", thumbURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch thumb %s: unexpected status %d", thumbURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch thumb %s: read body: %w", thumbURL, err)
	}
	return data, nil
}

func (l *HTTPLibrary) getJSON(ctx context.Context, path string, out any) error {
	if l == nil || l.client == nil {
		return ErrBackendUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
