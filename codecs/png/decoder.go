// Package png is the PNG reference decoder and encoder: it normalizes
// every PNG color type and bit depth to 8-bit-per-channel BGRA before
// handing pixels to the rest of the pipeline.
//
// Go's image/png package always returns a concrete image.Image, but that
// concrete type can be *image.Paletted, *image.Gray16, *image.RGBA64 or
// *image.NRGBA64 as well as the already-8-bit *image.NRGBA/*image.RGBA/
// *image.Gray. normalize8 below expands the non-8-bit cases up front so
// the row-conversion switch in ReadFrame only ever sees 8-bit channels.
// No PNG library available here exposes color-type/bit-depth
// transformation hooks directly, so this component stays on the standard
// library (see DESIGN.md).
package png

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/pixelforge/imgcore/bitmaps"
	"github.com/pixelforge/imgcore/codecs"
	apperrors "github.com/pixelforge/imgcore/errors"
	"github.com/pixelforge/imgcore/utils"
)

// Signature is the 8-byte PNG magic used by the codec registry's signature
// test.
var Signature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// MatchesSignature reports whether peek begins with the PNG magic.
func MatchesSignature(peek []byte) bool {
	if len(peek) < len(Signature) {
		return false
	}
	for i, b := range Signature {
		if peek[i] != b {
			return false
		}
	}
	return true
}

// Decoder is the PNG reference Decoder implementation.
type Decoder struct {
	data []byte
	cfg  image.Config
}

// New constructs a Decoder, consuming r fully and reading the PNG
// information header (dimensions, color model) without decoding pixels.
func New(r io.Reader) (codecs.Decoder, error) {
	buf, err := utils.DrainReader(r)
	if err != nil {
		return nil, apperrors.New(apperrors.KindIoError, "png.new", err)
	}
	data := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.New(apperrors.KindImageDecodingError, "png.new", err)
	}
	return &Decoder{data: data, cfg: cfg}, nil
}

// Initialize is a no-op; header parsing already happened in New.
func (d *Decoder) Initialize(codecs.DecodeContext) error { return nil }

func (d *Decoder) info() codecs.ImageInfo {
	return codecs.ImageInfo{
		ImageWidth:         int32(d.cfg.Width),
		ImageHeight:        int32(d.cfg.Height),
		FrameDecodesInto:   codecs.PixelFormatBGRA32,
		PreferredMimeType:  "image/png",
		PreferredExtension: "png",
	}
}

func (d *Decoder) GetUnscaledImageInfo(codecs.DecodeContext) (codecs.ImageInfo, error) {
	return d.info(), nil
}

// GetScaledImageInfo: PNG has no scale-on-decode mode, so this returns the
// same value as GetUnscaledImageInfo.
func (d *Decoder) GetScaledImageInfo(codecs.DecodeContext) (codecs.ImageInfo, error) {
	return d.info(), nil
}

// GetExifRotationFlag always returns (0, false, nil): PNG carries no EXIF
// orientation metadata.
func (d *Decoder) GetExifRotationFlag(codecs.DecodeContext) (int, bool, error) {
	return 0, false, nil
}

// TellDecoder ignores every command: PNG has nothing analogous to JPEG
// DCT-scaling or WebP decode hints.
func (d *Decoder) TellDecoder(codecs.DecodeContext, codecs.DecoderCommand) error { return nil }

func (d *Decoder) HasMoreFrames() (bool, error) { return false, nil }

// ReadFrame decodes the PNG, normalizes it to 8-bit channels, and converts
// row-by-row into a newly allocated BGRA bitmap.
func (d *Decoder) ReadFrame(ctx codecs.DecodeContext) (bitmaps.Key, error) {
	img, err := png.Decode(bytes.NewReader(d.data))
	if err != nil {
		return bitmaps.Key{}, apperrors.New(apperrors.KindImageDecodingError, "png.read_frame", err)
	}
	img = normalize8(img)

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	key, win, err := ctx.CreateAndBorrowBitmap(w, h, bitmaps.LayoutBGRA, false, true,
		bitmaps.ColorSpaceStandardRGB, bitmaps.ReplaceSelf)
	if err != nil {
		return bitmaps.Key{}, err
	}
	defer win.Close()

	switch src := img.(type) {
	case *image.NRGBA:
		// Either RGBA or GrayscaleAlpha source: both normalize to NRGBA in
		// Go's decoder, and for GrayscaleAlpha R==G==B already.
		for y := 0; y < h; y++ {
			row := make([]bitmaps.PixelBGRA, w)
			for x := 0; x < w; x++ {
				c := src.NRGBAAt(b.Min.X+x, b.Min.Y+y)
				row[x] = bitmaps.PixelBGRA{B: c.B, G: c.G, R: c.R, A: c.A}
			}
			win.SetRowBGRA(y, row)
		}
	case *image.RGBA:
		// Truecolor without alpha: Go's decoder sets every pixel opaque.
		for y := 0; y < h; y++ {
			row := make([]bitmaps.PixelBGRA, w)
			for x := 0; x < w; x++ {
				c := src.RGBAAt(b.Min.X+x, b.Min.Y+y)
				row[x] = bitmaps.PixelBGRA{B: c.B, G: c.G, R: c.R, A: 255}
			}
			win.SetRowBGRA(y, row)
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			row := make([]bitmaps.PixelBGRA, w)
			for x := 0; x < w; x++ {
				v := src.GrayAt(b.Min.X+x, b.Min.Y+y).Y
				row[x] = bitmaps.PixelBGRA{B: v, G: v, R: v, A: 255}
			}
			win.SetRowBGRA(y, row)
		}
	default:
		// Reaching here means an indexed (or other non-8-bit) image
		// slipped past normalize8 — a decoder bug, not a recoverable
		// input error.
		panic("png decoder bug: image was not normalized to 8-bit channels")
	}

	return key, nil
}

// normalize8 expands palette-indexed, 16-bit, and other non-8-bit-channel
// image.Image concrete types that Go's png.Decode can return into one of
// *image.NRGBA, *image.RGBA, or *image.Gray.
func normalize8(img image.Image) image.Image {
	switch src := img.(type) {
	case *image.Paletted:
		b := src.Bounds()
		dst := image.NewNRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst.Set(x, y, src.At(x, y))
			}
		}
		return dst
	case *image.Gray16:
		b := src.Bounds()
		dst := image.NewGray(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				v := src.Gray16At(x, y).Y
				dst.SetGray(x, y, color.Gray{Y: uint8(v >> 8)})
			}
		}
		return dst
	case *image.RGBA64:
		b := src.Bounds()
		dst := image.NewRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := src.RGBA64At(x, y)
				dst.SetRGBA(x, y, color.RGBA{
					R: uint8(c.R >> 8), G: uint8(c.G >> 8),
					B: uint8(c.B >> 8), A: uint8(c.A >> 8),
				})
			}
		}
		return dst
	case *image.NRGBA64:
		b := src.Bounds()
		dst := image.NewNRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := src.NRGBA64At(x, y)
				dst.SetNRGBA(x, y, color.NRGBA{
					R: uint8(c.R >> 8), G: uint8(c.G >> 8),
					B: uint8(c.B >> 8), A: uint8(c.A >> 8),
				})
			}
		}
		return dst
	default:
		return img
	}
}
