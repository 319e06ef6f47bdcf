package models

import "sort"

// Media kinds understood by the gallery.
const (
	KindImage = "image"
	KindVideo = "video"
)

// MediaRecord describes one photo or video as the remote backend reports it.
// The cache treats these as read-only snapshots.
type MediaRecord struct {
	ID          string `json:"id"`
	Date        string `json:"date"` // calendar day, YYYY-MM-DD
	Event       string `json:"event,omitempty"`
	Kind        string `json:"kind"`
	ThumbURL    string `json:"thumbUrl"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	VideoPath   string `json:"videoPath,omitempty"`
}

// TimelineEvent is an owner-curated entry on the gallery timeline. Media attach
// to an event either through an explicit id list or by carrying the event's
// title in their Event field.
type TimelineEvent struct {
	ID       string   `json:"id"`
	Date     string   `json:"date"`
	Title    string   `json:"title"`
	Glyph    string   `json:"glyph,omitempty"`
	MediaIDs []string `json:"mediaIds,omitempty"`
}

// SortByDateDesc orders records newest-first. Dates are plain YYYY-MM-DD
// strings, so lexicographic order is chronological order. Ties keep their
// relative input order.
func SortByDateDesc(records []MediaRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date > records[j].Date
	})
}
