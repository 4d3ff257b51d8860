package utils

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
)

// ExifTakenAtMillis extracts the EXIF capture time from raw image bytes as
// epoch milliseconds. Images without usable EXIF data yield nil; that is the
// common case for screenshots and re-encoded uploads, not an error.
func ExifTakenAtMillis(data []byte) *int64 {
	exifData, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	dt, err := exifData.DateTime()
	if err != nil {
		return nil
	}

	ms := dt.UnixMilli()
	if ms < 0 {
		return nil
	}
	return &ms
}
