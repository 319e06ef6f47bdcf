package sniff

import (
	"encoding/binary"
	"io"
	"time"
)

// QuickTime timestamps count seconds from 1904-01-01; Unix from 1970-01-01.
const quickTimeEpochOffset = 2082844800

// mvhd creation_time sits after version(1) + flags(3).
const mvhdTimeOffset = 4

// quickTimeCreation walks the top-level boxes of an ISO base media file for
// moov/mvhd and returns the movie creation time.
func quickTimeCreation(r io.ReadSeeker) (time.Time, bool) {
	moov, ok := findBox(r, 0, -1, "moov")
	if !ok {
		return time.Time{}, false
	}

	mvhd, ok := findBox(r, moov.payload, moov.payloadSize, "mvhd")
	if !ok {
		return time.Time{}, false
	}

	header := make([]byte, 12)
	if _, err := r.Seek(mvhd.payload, io.SeekStart); err != nil {
		return time.Time{}, false
	}
	if _, err := io.ReadFull(r, header); err != nil {
		return time.Time{}, false
	}

	var creation uint64
	switch header[0] {
	case 0:
		creation = uint64(binary.BigEndian.Uint32(header[mvhdTimeOffset : mvhdTimeOffset+4]))
	case 1:
		creation = binary.BigEndian.Uint64(header[mvhdTimeOffset : mvhdTimeOffset+8])
	default:
		return time.Time{}, false
	}

	if creation <= quickTimeEpochOffset {
		// Zero or pre-Unix-epoch values mean an unset encoder clock.
		return time.Time{}, false
	}

	return time.Unix(int64(creation-quickTimeEpochOffset), 0), true
}

type boxRef struct {
	payload     int64 // offset of the box payload within the stream
	payloadSize int64 // -1 when the box extends to EOF
}

// findBox scans sibling boxes starting at off (bounded by size, or to EOF when
// size < 0) for the named box type.
func findBox(r io.ReadSeeker, off, size int64, name string) (boxRef, bool) {
	end := int64(-1)
	if size >= 0 {
		end = off + size
	}

	header := make([]byte, 8)
	for {
		if end >= 0 && off+8 > end {
			return boxRef{}, false
		}
		if _, err := r.Seek(off, io.SeekStart); err != nil {
			return boxRef{}, false
		}
		if _, err := io.ReadFull(r, header); err != nil {
			return boxRef{}, false
		}

		boxSize := int64(binary.BigEndian.Uint32(header[:4]))
		boxType := string(header[4:8])
		payload := off + 8

		switch boxSize {
		case 0:
			// Box extends to end of file.
			if boxType == name {
				return boxRef{payload: payload, payloadSize: -1}, true
			}
			return boxRef{}, false
		case 1:
			// 64-bit largesize follows the type field.
			large := make([]byte, 8)
			if _, err := io.ReadFull(r, large); err != nil {
				return boxRef{}, false
			}
			boxSize = int64(binary.BigEndian.Uint64(large))
			if boxSize < 16 {
				return boxRef{}, false
			}
			if boxType == name {
				return boxRef{payload: payload + 8, payloadSize: boxSize - 16}, true
			}
		default:
			if boxSize < 8 {
				return boxRef{}, false
			}
			if boxType == name {
				return boxRef{payload: payload, payloadSize: boxSize - 8}, true
			}
		}

		off += boxSize
		if end >= 0 && off >= end {
			return boxRef{}, false
		}
	}
}
