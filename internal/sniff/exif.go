package sniff

import (
	"bytes"
	"encoding/binary"
	"io"
)

// exifScanLimit bounds how much of a JPEG is inspected for the APP1 segment.
// Capture metadata lives at the front of the file; anything past the first
// 512 KiB is not worth reading.
const exifScanLimit = 512 * 1024

// TIFF/EXIF tags of interest.
const (
	tagDateTime          = 0x0132 // IFD0
	tagExifIFDPointer    = 0x8769 // IFD0 -> Exif sub-IFD
	tagDateTimeOriginal  = 0x9003 // Exif sub-IFD
	tagDateTimeDigitized = 0x9004 // Exif sub-IFD
)

const typeASCII = 2

// exifCaptureDate scans a JPEG stream for the EXIF capture timestamp and
// returns it as YYYY-MM-DD. Preference order: DateTimeOriginal, then
// DateTimeDigitized, then the IFD0 DateTime.
func exifCaptureDate(r io.Reader) (date string, ok bool) {
	// Corrupt files must fall through, never panic; the parser below indexes
	// defensively but slice arithmetic on hostile input earns a recover.
	defer func() {
		if rec := recover(); rec != nil {
			date, ok = "", false
		}
	}()

	head := make([]byte, exifScanLimit)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", false
	}
	head = head[:n]

	tiff := findExifPayload(head)
	if tiff == nil {
		return "", false
	}
	return parseTIFFDate(tiff)
}

// findExifPayload walks JPEG segment markers looking for APP1 with the "Exif"
// signature and returns the embedded TIFF bytes.
func findExifPayload(buf []byte) []byte {
	if len(buf) < 4 || buf[0] != 0xFF || buf[1] != 0xD8 {
		// Not a JPEG stream.
		return nil
	}

	off := 2
	for off+4 <= len(buf) {
		if buf[off] != 0xFF {
			return nil
		}
		marker := buf[off+1]

		switch {
		case marker == 0xFF:
			// Fill byte before a marker.
			off++
			continue
		case marker == 0xD8 || (marker >= 0xD0 && marker <= 0xD7) || marker == 0x01:
			// Standalone markers carry no length.
			off += 2
			continue
		case marker == 0xDA || marker == 0xD9:
			// Entropy-coded data or end of image; EXIF never appears after.
			return nil
		}

		length := int(binary.BigEndian.Uint16(buf[off+2 : off+4]))
		if length < 2 || off+2+length > len(buf) {
			return nil
		}
		payload := buf[off+4 : off+2+length]

		if marker == 0xE1 && len(payload) > 6 && bytes.Equal(payload[:6], []byte("Exif\x00\x00")) {
			return payload[6:]
		}

		off += 2 + length
	}
	return nil
}

// parseTIFFDate walks IFD0 and the Exif sub-IFD of a TIFF structure for the
// capture timestamp tags.
func parseTIFFDate(tiff []byte) (string, bool) {
	if len(tiff) < 8 {
		return "", false
	}

	var bo binary.ByteOrder
	switch {
	case tiff[0] == 'I' && tiff[1] == 'I':
		bo = binary.LittleEndian
	case tiff[0] == 'M' && tiff[1] == 'M':
		bo = binary.BigEndian
	default:
		return "", false
	}
	if bo.Uint16(tiff[2:4]) != 42 {
		return "", false
	}

	ifd0 := int(bo.Uint32(tiff[4:8]))

	var ifd0DateTime string
	var exifOffset int
	walkIFD(tiff, ifd0, bo, func(tag, typ uint16, count uint32, value []byte) {
		switch tag {
		case tagDateTime:
			if typ == typeASCII {
				ifd0DateTime = asciiValue(value)
			}
		case tagExifIFDPointer:
			if len(value) >= 4 {
				exifOffset = int(bo.Uint32(value[:4]))
			}
		}
	})

	var original, digitized string
	if exifOffset > 0 {
		walkIFD(tiff, exifOffset, bo, func(tag, typ uint16, count uint32, value []byte) {
			if typ != typeASCII {
				return
			}
			switch tag {
			case tagDateTimeOriginal:
				original = asciiValue(value)
			case tagDateTimeDigitized:
				digitized = asciiValue(value)
			}
		})
	}

	for _, candidate := range []string{original, digitized, ifd0DateTime} {
		if date, ok := reformatExifDate(candidate); ok {
			return date, true
		}
	}
	return "", false
}

// walkIFD visits every entry of the IFD at off, handing each visitor the raw
// value bytes (inline or dereferenced through the value offset).
func walkIFD(tiff []byte, off int, bo binary.ByteOrder, visit func(tag, typ uint16, count uint32, value []byte)) {
	if off < 0 || off+2 > len(tiff) {
		return
	}
	count := int(bo.Uint16(tiff[off : off+2]))
	entries := off + 2

	for i := 0; i < count; i++ {
		entry := entries + i*12
		if entry+12 > len(tiff) {
			return
		}

		tag := bo.Uint16(tiff[entry : entry+2])
		typ := bo.Uint16(tiff[entry+2 : entry+4])
		valCount := bo.Uint32(tiff[entry+4 : entry+8])

		size := valueSize(typ, valCount)
		var value []byte
		if size > 0 && size <= 4 {
			value = tiff[entry+8 : entry+12]
		} else if size > 4 {
			valOff := int(bo.Uint32(tiff[entry+8 : entry+12]))
			if valOff < 0 || valOff+size > len(tiff) {
				continue
			}
			value = tiff[valOff : valOff+size]
		}

		visit(tag, typ, valCount, value)
	}
}

func valueSize(typ uint16, count uint32) int {
	var unit int
	switch typ {
	case 1, 2, 6, 7: // BYTE, ASCII, SBYTE, UNDEFINED
		unit = 1
	case 3, 8: // SHORT, SSHORT
		unit = 2
	case 4, 9, 11: // LONG, SLONG, FLOAT
		unit = 4
	case 5, 10, 12: // RATIONAL, SRATIONAL, DOUBLE
		unit = 8
	default:
		return 0
	}
	size := int(count) * unit
	if size < 0 || size > exifScanLimit {
		return 0
	}
	return size
}

func asciiValue(value []byte) string {
	return string(bytes.TrimRight(value, "\x00"))
}
