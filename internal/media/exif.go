package media

import (
	"bytes"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// TakenAt returns the capture time recorded in the image's EXIF data, or nil
// when the image carries none.
func TakenAt(data []byte) *time.Time {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	t, err := x.DateTime()
	if err != nil || t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}
