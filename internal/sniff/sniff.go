// Package sniff recovers the capture date of uploaded media by inspecting the
// file's own metadata: JPEG EXIF timestamps first, then QuickTime/MP4 movie
// headers, then the filesystem modification time. Parsing problems never
// surface as errors; a method that cannot produce a date simply falls through
// to the next one.
package sniff

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DateLayout is the calendar-day format returned by CaptureDate.
const DateLayout = "2006-01-02"

type fileKind int

const (
	kindUnknown fileKind = iota
	kindJPEG
	kindQuickTime
)

// CaptureDate returns the best-available capture date for the file as a local
// YYYY-MM-DD string, or "" when nothing usable was found. Embedded dates are
// taken at face value; no timezone conversion is applied. Grouping is by
// calendar day, so time-of-day is discarded.
func CaptureDate(path string) string {
	if date, ok := embeddedDate(path); ok {
		return date
	}

	if fi, err := os.Stat(path); err == nil {
		if mt := fi.ModTime(); !mt.IsZero() && mt.Unix() > 0 {
			return mt.Local().Format(DateLayout)
		}
	}

	return ""
}

func embeddedDate(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	return embeddedDateFrom(f, classify(path))
}

func embeddedDateFrom(r io.ReadSeeker, kind fileKind) (string, bool) {
	switch kind {
	case kindJPEG:
		if date, ok := exifCaptureDate(r); ok {
			return date, true
		}
	case kindQuickTime:
		if t, ok := quickTimeCreation(r); ok {
			return t.Local().Format(DateLayout), true
		}
	}
	return "", false
}

func classify(path string) fileKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return kindJPEG
	case ".mp4", ".m4v", ".mov", ".qt":
		return kindQuickTime
	}
	return kindUnknown
}

// reformatExifDate converts an EXIF "YYYY:MM:DD[ HH:MM:SS]" string to
// YYYY-MM-DD, rejecting anything that does not parse as a real date.
func reformatExifDate(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if len(value) < 10 {
		return "", false
	}
	t, err := time.Parse("2006:01:02", value[:10])
	if err != nil {
		return "", false
	}
	if t.Year() <= 1 {
		// Cameras write "0000:00:00 00:00:00" for unset clocks.
		return "", false
	}
	return t.Format(DateLayout), true
}
