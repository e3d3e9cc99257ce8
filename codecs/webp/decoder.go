// Package webp adds WebP decode/encode paths to the codec registry.
//
// Two decode paths are registered, selected by codecs.EnabledCodecs:
//   - PureGo (default): golang.org/x/image/webp, lossy-only per its
//     documented limitation.
//   - Wasm (PreferWasm): github.com/gen2brain/webp, which runs libwebp
//     compiled to wasm via tetratelabs/wazero and ebitengine/purego, and
//     supports lossless WebP.
//
// Two encode paths are registered, selected the same way:
//   - cgo (default): github.com/chai2010/webp.
//   - PureGo (PreferPureGo): github.com/HugoSmits86/nativewebp, for
//     CGO_ENABLED=0 builds.
package webp

import (
	"bytes"
	"image"
	"image/color"
	"io"

	xwebp "golang.org/x/image/webp"

	"github.com/pixelforge/imgcore/bitmaps"
	"github.com/pixelforge/imgcore/codecs"
	apperrors "github.com/pixelforge/imgcore/errors"
)

// MatchesSignature reports whether peek begins with the 12-byte
// "RIFF....WEBP" container prefix.
func MatchesSignature(peek []byte) bool {
	return len(peek) >= 12 &&
		peek[0] == 'R' && peek[1] == 'I' && peek[2] == 'F' && peek[3] == 'F' &&
		peek[8] == 'W' && peek[9] == 'E' && peek[10] == 'B' && peek[11] == 'P'
}

// Decoder is the pure-Go (golang.org/x/image/webp) WebP decoder. Lossy-only,
// per the library's documented limitation.
type Decoder struct {
	img image.Image
}

// New decodes r eagerly: x/image/webp has no separate header-only query,
// so the whole frame is decoded up front and cached on the Decoder.
func New(r io.Reader) (codecs.Decoder, error) {
	img, err := xwebp.Decode(r)
	if err != nil {
		return nil, apperrors.New(apperrors.KindImageDecodingError, "webp.new", err)
	}
	return &Decoder{img: img}, nil
}

func (d *Decoder) Initialize(codecs.DecodeContext) error { return nil }

func (d *Decoder) info() codecs.ImageInfo {
	b := d.img.Bounds()
	return codecs.ImageInfo{
		ImageWidth:         int32(b.Dx()),
		ImageHeight:        int32(b.Dy()),
		FrameDecodesInto:   codecs.PixelFormatBGRA32,
		PreferredMimeType:  "image/webp",
		PreferredExtension: "webp",
	}
}

func (d *Decoder) GetUnscaledImageInfo(codecs.DecodeContext) (codecs.ImageInfo, error) {
	return d.info(), nil
}
func (d *Decoder) GetScaledImageInfo(codecs.DecodeContext) (codecs.ImageInfo, error) {
	return d.info(), nil
}
func (d *Decoder) GetExifRotationFlag(codecs.DecodeContext) (int, bool, error) { return 0, false, nil }

// TellDecoder ignores every command: this decoder has no native
// scale-on-decode support, so a WebPDecoderHint is left for a later resize
// graph node to honor via x/image/draw instead.
func (d *Decoder) TellDecoder(codecs.DecodeContext, codecs.DecoderCommand) error { return nil }

func (d *Decoder) HasMoreFrames() (bool, error) { return false, nil }

func (d *Decoder) ReadFrame(ctx codecs.DecodeContext) (bitmaps.Key, error) {
	b := d.img.Bounds()
	w, h := b.Dx(), b.Dy()

	key, win, err := ctx.CreateAndBorrowBitmap(w, h, bitmaps.LayoutBGRA, true, true,
		bitmaps.ColorSpaceStandardRGB, bitmaps.ReplaceSelf)
	if err != nil {
		return bitmaps.Key{}, err
	}
	defer win.Close()

	for y := 0; y < h; y++ {
		row := make([]bitmaps.PixelBGRA, w)
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(d.img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			row[x] = bitmaps.PixelBGRA{B: c.B, G: c.G, R: c.R, A: c.A}
		}
		win.SetRowBGRA(y, row)
	}
	return key, nil
}

// DrainAndWrap buffers r (some decode paths, like the wasm one, need a
// ReaderAt-free full buffer) and returns a fresh reader over the bytes.
func DrainAndWrap(r io.Reader) (*bytes.Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.New(apperrors.KindIoError, "webp.drain", err)
	}
	return bytes.NewReader(data), nil
}
