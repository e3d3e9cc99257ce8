package exif_test

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/jpeg"
	"testing"

	"github.com/pixelforge/imgcore/exif"
)

// buildJPEGWithOrientation returns a minimal valid JPEG carrying an APP1
// EXIF segment whose sole IFD0 entry is the orientation tag.
func buildJPEGWithOrientation(t *testing.T, orientation int) []byte {
	t.Helper()
	var base bytes.Buffer
	if err := jpeg.Encode(&base, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil); err != nil {
		t.Fatalf("encode fixture jpeg: %v", err)
	}

	var payload bytes.Buffer
	payload.WriteString("Exif\x00\x00")
	payload.Write([]byte{'I', 'I', 0x2A, 0x00})
	payload.Write([]byte{0x08, 0x00, 0x00, 0x00})
	payload.Write([]byte{0x01, 0x00})

	entry := make([]byte, 12)
	binary.LittleEndian.PutUint16(entry[0:2], 0x0112)
	binary.LittleEndian.PutUint16(entry[2:4], 3)
	binary.LittleEndian.PutUint32(entry[4:8], 1)
	binary.LittleEndian.PutUint16(entry[8:10], uint16(orientation))
	payload.Write(entry)
	payload.Write([]byte{0x00, 0x00, 0x00, 0x00})

	segLen := payload.Len() + 2
	var out bytes.Buffer
	out.Write(base.Bytes()[:2])
	out.Write([]byte{0xFF, 0xE1, byte(segLen >> 8), byte(segLen)})
	out.Write(payload.Bytes())
	out.Write(base.Bytes()[2:])
	return out.Bytes()
}

func TestReadOrientationBytes(t *testing.T) {
	for _, o := range []int{1, 3, 6, 8} {
		data := buildJPEGWithOrientation(t, o)
		got, ok := exif.ReadOrientationBytes(data)
		if !ok {
			t.Fatalf("orientation %d: ReadOrientationBytes ok = false", o)
		}
		if got != o {
			t.Fatalf("orientation %d: got %d", o, got)
		}
	}
}

func TestReadOrientationBytesNoExif(t *testing.T) {
	var plain bytes.Buffer
	if err := jpeg.Encode(&plain, image.NewRGBA(image.Rect(0, 0, 2, 2)), nil); err != nil {
		t.Fatalf("encode plain jpeg: %v", err)
	}
	if _, ok := exif.ReadOrientationBytes(plain.Bytes()); ok {
		t.Fatal("ReadOrientationBytes ok = true for a JPEG with no EXIF segment")
	}
}

func TestSwapsDimensions(t *testing.T) {
	for o := 1; o <= 8; o++ {
		want := o >= 5 && o <= 8
		if got := exif.SwapsDimensions(o); got != want {
			t.Fatalf("SwapsDimensions(%d) = %v, want %v", o, got, want)
		}
	}
}
