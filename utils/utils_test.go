package utils_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pixelforge/imgcore/utils"
)

func TestScaleDimensionsBothAxesGiven(t *testing.T) {
	w, h := utils.ScaleDimensions(100, 50, 40, 40)
	if w != 40 || h != 40 {
		t.Fatalf("got %dx%d, want 40x40 (explicit dims pass through untouched)", w, h)
	}
}

func TestScaleDimensionsWidthOnly(t *testing.T) {
	w, h := utils.ScaleDimensions(200, 100, 100, 0)
	if w != 100 || h != 50 {
		t.Fatalf("got %dx%d, want 100x50", w, h)
	}
}

func TestScaleDimensionsHeightOnly(t *testing.T) {
	w, h := utils.ScaleDimensions(200, 100, 0, 50)
	if w != 100 || h != 50 {
		t.Fatalf("got %dx%d, want 100x50", w, h)
	}
}

func TestScaleDimensionsNeitherGiven(t *testing.T) {
	w, h := utils.ScaleDimensions(64, 32, 0, 0)
	if w != 64 || h != 32 {
		t.Fatalf("got %dx%d, want source dims 64x32 unchanged", w, h)
	}
}

func TestDrainReaderCloneAndRelease(t *testing.T) {
	buf, err := utils.DrainReader(strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("DrainReader: %v", err)
	}
	cloned := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	if string(cloned) != "payload" {
		t.Fatalf("cloned = %q, want %q", cloned, "payload")
	}

	// Mutating the clone must not reach any buffer still held by the pool.
	cloned[0] = 'X'
	reused := utils.AcquireBuffer()
	if reused.Len() != 0 {
		t.Fatalf("AcquireBuffer did not reset: len=%d", reused.Len())
	}
	utils.ReleaseBuffer(reused)
}

func TestCloneBytesIndependence(t *testing.T) {
	src := []byte("abc")
	clone := utils.CloneBytes(src)
	clone[0] = 'z'
	if !bytes.Equal(src, []byte("abc")) {
		t.Fatal("mutating the clone affected the source slice")
	}
}
