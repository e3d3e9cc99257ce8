// Package exif extracts the EXIF orientation tag from JPEG input, using
// github.com/rwcarlsen/goexif rather than a hand-rolled APP1/TIFF parser.
package exif

import (
	"bytes"
	"io"

	goexif "github.com/rwcarlsen/goexif/exif"
)

// ReadOrientation returns the EXIF orientation tag (1-8) from r, or
// (0, false) if the stream has no EXIF data or no orientation tag. r must
// be positioned at the start of a JPEG stream; its contents are consumed.
func ReadOrientation(r io.Reader) (int, bool) {
	x, err := goexif.Decode(r)
	if err != nil {
		return 0, false
	}
	tag, err := x.Get(goexif.Orientation)
	if err != nil {
		return 0, false
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 0, false
	}
	return v, true
}

// ReadOrientationBytes is a convenience wrapper over ReadOrientation for
// already-buffered JPEG bytes.
func ReadOrientationBytes(b []byte) (int, bool) {
	return ReadOrientation(bytes.NewReader(b))
}

// SwapsDimensions reports whether the given EXIF orientation value implies
// a width/height swap (values 5-8 correspond to a 90-or-270-degree turn).
func SwapsDimensions(orientation int) bool {
	return orientation >= 5 && orientation <= 8
}
