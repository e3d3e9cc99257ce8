package core_test

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/pixelforge/imgcore/codecs"
	"github.com/pixelforge/imgcore/core"
	apperrors "github.com/pixelforge/imgcore/errors"
	"github.com/pixelforge/imgcore/hooks"
)

func newPNG(t *testing.T, w, h int, fill color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture png: %v", err)
	}
	return buf.Bytes()
}

// newJPEGWithOrientation builds a minimal JPEG with a hand-rolled EXIF APP1
// segment carrying the given orientation tag, inserted right after the SOI
// marker a stdlib-encoded JPEG starts with.
func newJPEGWithOrientation(t *testing.T, w, h, orientation int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode fixture jpeg: %v", err)
	}
	base := buf.Bytes()

	var exifPayload bytes.Buffer
	exifPayload.WriteString("Exif\x00\x00")
	exifPayload.Write([]byte{'I', 'I', 0x2A, 0x00})    // TIFF header, little-endian
	exifPayload.Write([]byte{0x08, 0x00, 0x00, 0x00}) // offset to IFD0
	exifPayload.Write([]byte{0x01, 0x00})             // one IFD0 entry

	entry := make([]byte, 12)
	binary.LittleEndian.PutUint16(entry[0:2], 0x0112) // Orientation tag
	binary.LittleEndian.PutUint16(entry[2:4], 3)      // type SHORT
	binary.LittleEndian.PutUint32(entry[4:8], 1)      // count
	binary.LittleEndian.PutUint16(entry[8:10], uint16(orientation))
	exifPayload.Write(entry)
	exifPayload.Write([]byte{0x00, 0x00, 0x00, 0x00}) // next IFD offset

	app1Len := exifPayload.Len() + 2
	var out bytes.Buffer
	out.Write(base[:2]) // SOI
	out.Write([]byte{0xFF, 0xE1, byte(app1Len >> 8), byte(app1Len)})
	out.Write(exifPayload.Bytes())
	out.Write(base[2:])
	return out.Bytes()
}

func mustCreate(t *testing.T, opts ...core.Option) *core.Context {
	t.Helper()
	ctx, err := core.Create(opts...)
	if err != nil {
		t.Fatalf("core.Create: %v", err)
	}
	return ctx
}

// ── Scenario 1: PNG RGBA passthrough ────────────────────────────────────────

func TestPNGRoundTrip(t *testing.T) {
	ctx := mustCreate(t)
	defer ctx.Destroy()

	src := newPNG(t, 8, 4, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	if err := ctx.AddInputBuffer(1, src); err != nil {
		t.Fatalf("AddInputBuffer: %v", err)
	}
	if err := ctx.AddOutputBuffer(2); err != nil {
		t.Fatalf("AddOutputBuffer: %v", err)
	}

	result, err := ctx.Execute(core.JobDescription{
		Chains: []core.ChainSpec{{
			InputIoID: 1, OutputIoID: 2, HasOutput: true, OutputFormat: "png",
		}},
	}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Decodes) != 1 || result.Decodes[0].Width != 8 || result.Decodes[0].Height != 4 {
		t.Fatalf("unexpected decodes: %+v", result.Decodes)
	}
	if len(result.Encodes) != 1 || result.Encodes[0].Width != 8 || result.Encodes[0].Height != 4 {
		t.Fatalf("unexpected encodes: %+v", result.Encodes)
	}

	out, err := ctx.GetOutputBufferSlice(2)
	if err != nil {
		t.Fatalf("GetOutputBufferSlice: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode round-tripped png: %v", err)
	}
	b := decoded.Bounds()
	if b.Dx() != 8 || b.Dy() != 4 {
		t.Fatalf("round-tripped dims = %dx%d, want 8x4", b.Dx(), b.Dy())
	}
	r, g, bb, _ := decoded.At(0, 0).RGBA()
	if r>>8 != 10 || g>>8 != 20 || bb>>8 != 30 {
		t.Fatalf("round-tripped pixel = (%d,%d,%d), want (10,20,30)", r>>8, g>>8, bb>>8)
	}
}

// ── Scenario 2: grayscale op ─────────────────────────────────────────────────

func TestGrayscaleOp(t *testing.T) {
	ctx := mustCreate(t)
	defer ctx.Destroy()

	src := newPNG(t, 4, 4, color.RGBA{R: 200, G: 50, B: 10, A: 255})
	if err := ctx.AddInputBuffer(1, src); err != nil {
		t.Fatalf("AddInputBuffer: %v", err)
	}
	if err := ctx.AddOutputBuffer(2); err != nil {
		t.Fatalf("AddOutputBuffer: %v", err)
	}

	_, err := ctx.Execute(core.JobDescription{
		Chains: []core.ChainSpec{{
			InputIoID: 1, OutputIoID: 2, HasOutput: true, OutputFormat: "png",
			Ops: []core.ChainOp{core.GrayscaleOp{}},
		}},
	}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	out, err := ctx.GetOutputBufferSlice(2)
	if err != nil {
		t.Fatalf("GetOutputBufferSlice: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode grayscale output: %v", err)
	}
	r, g, b, _ := decoded.At(0, 0).RGBA()
	if r != g || g != b {
		t.Fatalf("grayscale output not desaturated: r=%d g=%d b=%d", r, g, b)
	}
}

// ── Scenario 3: size-limit rejection ─────────────────────────────────────────

func TestSizeLimitExceeded(t *testing.T) {
	frameCap := &core.FrameCap{Width: 2, Height: 2}
	ctx := mustCreate(t, core.WithSecurityPolicy(core.SecurityPolicy{MaxFrameSize: frameCap}))
	defer ctx.Destroy()

	src := newPNG(t, 16, 16, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	if err := ctx.AddInputBuffer(1, src); err != nil {
		t.Fatalf("AddInputBuffer: %v", err)
	}
	if err := ctx.AddOutputBuffer(2); err != nil {
		t.Fatalf("AddOutputBuffer: %v", err)
	}

	_, err := ctx.Execute(core.JobDescription{
		Chains: []core.ChainSpec{{
			InputIoID: 1, OutputIoID: 2, HasOutput: true, OutputFormat: "png",
		}},
	}, nil)
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if apperrors.KindOf(err) != apperrors.KindSizeLimitExceeded {
		t.Fatalf("kind = %s, want SizeLimitExceeded", apperrors.KindOf(err))
	}
}

// ── Scenario 4: duplicate io_id ──────────────────────────────────────────────

func TestDuplicateIoID(t *testing.T) {
	ctx := mustCreate(t)
	defer ctx.Destroy()

	src := newPNG(t, 2, 2, color.RGBA{A: 255})
	if err := ctx.AddInputBuffer(1, src); err != nil {
		t.Fatalf("first AddInputBuffer: %v", err)
	}
	err := ctx.AddInputBuffer(1, src)
	if err == nil {
		t.Fatal("expected an error registering a duplicate io_id, got nil")
	}
	if apperrors.KindOf(err) != apperrors.KindDuplicateIoId {
		t.Fatalf("kind = %s, want DuplicateIoId", apperrors.KindOf(err))
	}
}

// ── Scenario 5: EXIF rotation via JPEG ───────────────────────────────────────

func TestJPEGExifRotation(t *testing.T) {
	ctx := mustCreate(t)
	defer ctx.Destroy()

	src := newJPEGWithOrientation(t, 20, 10, 6) // orientation 6: 90deg, swaps dims
	if err := ctx.AddInputBuffer(1, src); err != nil {
		t.Fatalf("AddInputBuffer: %v", err)
	}

	unrotated, err := ctx.GetUnscaledUnrotatedImageInfo(1)
	if err != nil {
		t.Fatalf("GetUnscaledUnrotatedImageInfo: %v", err)
	}
	if unrotated.ImageWidth != 20 || unrotated.ImageHeight != 10 {
		t.Fatalf("unrotated dims = %dx%d, want 20x10", unrotated.ImageWidth, unrotated.ImageHeight)
	}

	rotated, err := ctx.GetUnscaledRotatedImageInfo(1)
	if err != nil {
		t.Fatalf("GetUnscaledRotatedImageInfo: %v", err)
	}
	if rotated.ImageWidth != 10 || rotated.ImageHeight != 20 {
		t.Fatalf("rotated dims = %dx%d, want swapped 10x20", rotated.ImageWidth, rotated.ImageHeight)
	}
}

// ── Scenario 6: cancellation ─────────────────────────────────────────────────

func TestCancellation(t *testing.T) {
	ctx := mustCreate(t)
	defer ctx.Destroy()

	src := newPNG(t, 4, 4, color.RGBA{A: 255})
	if err := ctx.AddInputBuffer(1, src); err != nil {
		t.Fatalf("AddInputBuffer: %v", err)
	}
	if err := ctx.AddOutputBuffer(2); err != nil {
		t.Fatalf("AddOutputBuffer: %v", err)
	}

	result, err := ctx.Execute(core.JobDescription{
		Chains: []core.ChainSpec{{
			InputIoID: 1, OutputIoID: 2, HasOutput: true, OutputFormat: "png",
		}},
	}, func() bool { return true })
	if err == nil {
		t.Fatal("expected a cancellation error, got nil")
	}
	if apperrors.KindOf(err) != apperrors.KindCancelled {
		t.Fatalf("kind = %s, want Cancelled", apperrors.KindOf(err))
	}
	if !result.Canceled {
		t.Fatal("JobResult.Canceled = false, want true")
	}
}

// ── Open-question regressions ────────────────────────────────────────────────

// TestGetImageDecodes_DistinctWidthHeight guards against a width/height
// transposition bug in GetImageDecodes: width and height must come back
// exactly as decoded, not swapped, for a non-square input.
func TestGetImageDecodes_DistinctWidthHeight(t *testing.T) {
	ctx := mustCreate(t)
	defer ctx.Destroy()

	src := newPNG(t, 30, 7, color.RGBA{A: 255})
	if err := ctx.AddInputBuffer(1, src); err != nil {
		t.Fatalf("AddInputBuffer: %v", err)
	}

	decodes := ctx.GetImageDecodes()
	if len(decodes) != 1 {
		t.Fatalf("len(decodes) = %d, want 1", len(decodes))
	}
	if decodes[0].Width != 30 || decodes[0].Height != 7 {
		t.Fatalf("decodes[0] = %dx%d, want 30x7", decodes[0].Width, decodes[0].Height)
	}
}

// TestDestroyIdempotent guards the open question of whether a second
// teardown call (e.g. a caller invoking Destroy from both a defer and an
// explicit error path) is safe: it must be a no-op, not a double-clear
// panic or error.
func TestDestroyIdempotent(t *testing.T) {
	ctx := mustCreate(t)
	src := newPNG(t, 2, 2, color.RGBA{A: 255})
	if err := ctx.AddInputBuffer(1, src); err != nil {
		t.Fatalf("AddInputBuffer: %v", err)
	}
	if err := ctx.Destroy(); err != nil {
		t.Fatalf("first Destroy: %v", err)
	}
	if err := ctx.Destroy(); err != nil {
		t.Fatalf("second Destroy: %v", err)
	}
}

// ── Universal invariants ─────────────────────────────────────────────────────

func TestBorrowBitmapsMutExclusive(t *testing.T) {
	ctx := mustCreate(t)
	defer ctx.Destroy()

	_, release, err := ctx.BorrowBitmapsMut()
	if err != nil {
		t.Fatalf("first BorrowBitmapsMut: %v", err)
	}
	if _, _, err := ctx.BorrowBitmapsMut(); apperrors.KindOf(err) != apperrors.KindFailedBorrow {
		t.Fatalf("second exclusive borrow kind = %s, want FailedBorrow", apperrors.KindOf(err))
	}
	if _, _, err := ctx.BorrowBitmaps(); apperrors.KindOf(err) != apperrors.KindFailedBorrow {
		t.Fatalf("shared borrow while exclusive outstanding kind = %s, want FailedBorrow", apperrors.KindOf(err))
	}
	release()
	if _, release2, err := ctx.BorrowBitmapsMut(); err != nil {
		t.Fatalf("BorrowBitmapsMut after release: %v", err)
	} else {
		release2()
	}
}

func TestRunAfterDestroyFails(t *testing.T) {
	ctx := mustCreate(t)
	if err := ctx.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	_, err := ctx.Execute(core.JobDescription{}, nil)
	if err == nil {
		t.Fatal("expected Execute on a destroyed context to fail")
	}
}

func TestConfigureSecurityMergePreservesUnsetFields(t *testing.T) {
	ctx := mustCreate(t)
	defer ctx.Destroy()

	ctx.ConfigureSecurity(core.SecurityPolicy{
		MaxEncodeSize: &core.FrameCap{Width: 100, Height: 100},
	})
	ctx.ConfigureSecurity(core.SecurityPolicy{
		MaxDecodeSize: &core.FrameCap{Width: 50, Height: 50},
	})

	src := newPNG(t, 4, 4, color.RGBA{A: 255})
	if err := ctx.AddInputBuffer(1, src); err != nil {
		t.Fatalf("AddInputBuffer: %v", err)
	}
	if err := ctx.AddOutputBuffer(2); err != nil {
		t.Fatalf("AddOutputBuffer: %v", err)
	}
	if _, err := ctx.Execute(core.JobDescription{
		Chains: []core.ChainSpec{{InputIoID: 1, OutputIoID: 2, HasOutput: true, OutputFormat: "png"}},
	}, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// The 100x100 encode cap from the first call must survive the second:
	// a 40x40 input (within the 50x50 decode cap) resized to 120x120 is
	// rejected at encode time.
	if err := ctx.AddInputBuffer(3, newPNG(t, 40, 40, color.RGBA{A: 255})); err != nil {
		t.Fatalf("AddInputBuffer: %v", err)
	}
	if err := ctx.AddOutputBuffer(4); err != nil {
		t.Fatalf("AddOutputBuffer: %v", err)
	}
	_, err := ctx.Execute(core.JobDescription{
		Chains: []core.ChainSpec{{InputIoID: 3, OutputIoID: 4, HasOutput: true, OutputFormat: "png",
			Ops: []core.ChainOp{core.ResizeOp{Width: 120, Height: 120}}}},
	}, nil)
	if apperrors.KindOf(err) != apperrors.KindSizeLimitExceeded {
		t.Fatalf("kind = %s, want SizeLimitExceeded (encode cap lost)", apperrors.KindOf(err))
	}
}

func TestMaxDecodeSizeRejectsOversizedInput(t *testing.T) {
	ctx := mustCreate(t, core.WithSecurityPolicy(core.SecurityPolicy{
		MaxDecodeSize: &core.FrameCap{Width: 50, Height: 50},
	}))
	defer ctx.Destroy()

	src := newPNG(t, 200, 200, color.RGBA{A: 255})
	if err := ctx.AddInputBuffer(1, src); err != nil {
		t.Fatalf("AddInputBuffer: %v", err)
	}
	if err := ctx.AddOutputBuffer(2); err != nil {
		t.Fatalf("AddOutputBuffer: %v", err)
	}

	_, err := ctx.Execute(core.JobDescription{
		Chains: []core.ChainSpec{{InputIoID: 1, OutputIoID: 2, HasOutput: true, OutputFormat: "png"}},
	}, nil)
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if apperrors.KindOf(err) != apperrors.KindSizeLimitExceeded {
		t.Fatalf("kind = %s, want SizeLimitExceeded", apperrors.KindOf(err))
	}
}

func TestMaxEncodeSizeRejectsOversizedOutput(t *testing.T) {
	ctx := mustCreate(t, core.WithSecurityPolicy(core.SecurityPolicy{
		MaxEncodeSize: &core.FrameCap{Width: 50, Height: 50},
	}))
	defer ctx.Destroy()

	src := newPNG(t, 200, 200, color.RGBA{A: 255})
	if err := ctx.AddInputBuffer(1, src); err != nil {
		t.Fatalf("AddInputBuffer: %v", err)
	}
	if err := ctx.AddOutputBuffer(2); err != nil {
		t.Fatalf("AddOutputBuffer: %v", err)
	}

	// No resize op: the decoded bitmap stays at its native 200x200 and must
	// be rejected at encode time, not silently passed through.
	_, err := ctx.Execute(core.JobDescription{
		Chains: []core.ChainSpec{{InputIoID: 1, OutputIoID: 2, HasOutput: true, OutputFormat: "png"}},
	}, nil)
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if apperrors.KindOf(err) != apperrors.KindSizeLimitExceeded {
		t.Fatalf("kind = %s, want SizeLimitExceeded", apperrors.KindOf(err))
	}
}

// ── declarative bindings ──────────────────────────────────────────────────────

func TestDeclarativeBindings(t *testing.T) {
	ctx := mustCreate(t)
	defer ctx.Destroy()

	src := newPNG(t, 12, 12, color.RGBA{R: 5, G: 6, B: 7, A: 255})
	result, err := ctx.Execute(core.JobDescription{
		Bindings: []core.IOBinding{
			{IoID: 1, Direction: core.DirectionIn, Kind: core.IOKindCopiedBuffer, Bytes: src},
			{IoID: 2, Direction: core.DirectionOut, Kind: core.IOKindOutputSink},
		},
		Chains: []core.ChainSpec{{
			InputIoID: 1, OutputIoID: 2, HasOutput: true, OutputFormat: "jpeg",
			Ops: []core.ChainOp{core.CropOp{X: 0, Y: 0, Width: 8, Height: 8}},
		}},
	}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Encodes) != 1 || result.Encodes[0].Width != 8 || result.Encodes[0].Height != 8 {
		t.Fatalf("unexpected encodes: %+v", result.Encodes)
	}
}

func TestAddOutputBufferRejectsDuplicateIoID(t *testing.T) {
	ctx := mustCreate(t)
	defer ctx.Destroy()

	if err := ctx.AddOutputBuffer(1); err != nil {
		t.Fatalf("AddOutputBuffer: %v", err)
	}
	if err := ctx.AddOutputBuffer(1); apperrors.KindOf(err) != apperrors.KindDuplicateIoId {
		t.Fatalf("kind = %s, want DuplicateIoId", apperrors.KindOf(err))
	}
}

func TestMetricsRecordedDuringExecute(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	ctx := mustCreate(t, core.WithMetrics(m))
	defer ctx.Destroy()

	src := newPNG(t, 8, 8, color.RGBA{R: 9, G: 9, B: 9, A: 255})
	if err := ctx.AddInputBuffer(1, src); err != nil {
		t.Fatalf("AddInputBuffer: %v", err)
	}
	if err := ctx.AddOutputBuffer(2); err != nil {
		t.Fatalf("AddOutputBuffer: %v", err)
	}
	if _, err := ctx.Execute(core.JobDescription{
		Chains: []core.ChainSpec{{InputIoID: 1, OutputIoID: 2, HasOutput: true, OutputFormat: "png"}},
	}, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	snap := m.Snapshot()
	if snap.OpCalls["decode"] != 1 {
		t.Fatalf("OpCalls[decode] = %d, want 1", snap.OpCalls["decode"])
	}
	if snap.OpCalls["encode"] != 1 {
		t.Fatalf("OpCalls[encode] = %d, want 1", snap.OpCalls["encode"])
	}
	if snap.TotalThroughputB <= 0 {
		t.Fatalf("TotalThroughputB = %d, want > 0", snap.TotalThroughputB)
	}
}

func TestEnabledCodecsDisablesFormat(t *testing.T) {
	ctx := mustCreate(t, core.WithEnabledCodecs(codecs.EnabledCodecs{WebP: true, JPEG: true}))
	defer ctx.Destroy()

	src := newPNG(t, 4, 4, color.RGBA{A: 255})
	err := ctx.AddInputBuffer(1, src)
	if apperrors.KindOf(err) != apperrors.KindCodecNotFound {
		t.Fatalf("kind = %s, want CodecNotFound with PNG disabled", apperrors.KindOf(err))
	}
}
