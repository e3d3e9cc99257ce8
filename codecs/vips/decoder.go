// Package vips adds a libvips-backed decode and encode path to the codec
// registry, selected by codecs.EnabledCodecs.PreferVips over the pure-Go
// reference decoders in codecs/png, codecs/jpeg and codecs/webp. Pixel
// extraction and packing reuse the same BGRA conversion the pure-Go paths
// use, via an sRGB colorspace conversion and an intermediate PNG round-trip
// through libvips; pixels are not rotated, and EXIF orientation is only
// reported through GetExifRotationFlag. The default registry routes only
// PNG, JPEG and WebP input here.
package vips

import (
	"bytes"
	stdpng "image/png"
	"image/color"
	"io"
	"sync"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/pixelforge/imgcore/bitmaps"
	"github.com/pixelforge/imgcore/codecs"
	apperrors "github.com/pixelforge/imgcore/errors"
	"github.com/pixelforge/imgcore/utils"
)

var startupOnce sync.Once

// ensureStarted calls govips.Startup exactly once per process. libvips has
// no per-call init; Startup/Shutdown bracket the whole process lifetime.
func ensureStarted() {
	startupOnce.Do(func() {
		govips.Startup(&govips.Config{ConcurrencyLevel: 1})
	})
}

// Shutdown releases libvips's process-wide resources. Callers that embed
// imgcore as a library should call this once at process exit, if this
// package's decode or encode path was ever used.
func Shutdown() {
	govips.Shutdown()
}

// Decoder decodes via libvips, covering every format libvips itself
// supports rather than only the handful the pure-Go decoders recognize.
type Decoder struct {
	ref  *govips.ImageRef
	mime string
	ext  string
}

// New decodes the full buffer eagerly via libvips, matching the pure-Go
// decoders' eager-decode behavior (x/image/webp.New does the same).
func New(r io.Reader) (codecs.Decoder, error) {
	ensureStarted()
	buf, err := utils.DrainReader(r)
	if err != nil {
		return nil, apperrors.New(apperrors.KindIoError, "vips.new", err)
	}
	data := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, apperrors.New(apperrors.KindImageDecodingError, "vips.new", err)
	}
	mime, ext := vipsFormatMeta(ref.Format())
	return &Decoder{ref: ref, mime: mime, ext: ext}, nil
}

func (d *Decoder) Initialize(codecs.DecodeContext) error { return nil }

func (d *Decoder) info() codecs.ImageInfo {
	return codecs.ImageInfo{
		ImageWidth:         int32(d.ref.Width()),
		ImageHeight:        int32(d.ref.Height()),
		FrameDecodesInto:   codecs.PixelFormatBGRA32,
		PreferredMimeType:  d.mime,
		PreferredExtension: d.ext,
	}
}

func (d *Decoder) GetUnscaledImageInfo(codecs.DecodeContext) (codecs.ImageInfo, error) {
	return d.info(), nil
}
func (d *Decoder) GetScaledImageInfo(codecs.DecodeContext) (codecs.ImageInfo, error) {
	return d.info(), nil
}

func (d *Decoder) GetExifRotationFlag(codecs.DecodeContext) (int, bool, error) {
	o := d.ref.Orientation()
	if o < 1 || o > 8 {
		return 0, false, nil
	}
	return o, true, nil
}

// TellDecoder ignores every command, same as the pure-Go WebP path: no
// native scale-on-decode is wired through libvips here, so a resize graph
// node handles any requested scale-down after ReadFrame.
func (d *Decoder) TellDecoder(codecs.DecodeContext, codecs.DecoderCommand) error { return nil }

func (d *Decoder) HasMoreFrames() (bool, error) { return false, nil }

func (d *Decoder) ReadFrame(ctx codecs.DecodeContext) (bitmaps.Key, error) {
	if err := d.ref.ToColorSpace(govips.InterpretationSRGB); err != nil {
		return bitmaps.Key{}, apperrors.New(apperrors.KindImageDecodingError, "vips.read_frame", err)
	}

	ep := govips.NewPngExportParams()
	data, _, err := d.ref.ExportPng(ep)
	if err != nil {
		return bitmaps.Key{}, apperrors.New(apperrors.KindImageDecodingError, "vips.read_frame", err)
	}
	img, err := stdpng.Decode(bytes.NewReader(data))
	if err != nil {
		return bitmaps.Key{}, apperrors.New(apperrors.KindImageDecodingError, "vips.read_frame", err)
	}

	b := img.Bounds()
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
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			row[x] = bitmaps.PixelBGRA{B: c.B, G: c.G, R: c.R, A: c.A}
		}
		win.SetRowBGRA(y, row)
	}
	return key, nil
}

func vipsFormatMeta(t govips.ImageType) (mime, ext string) {
	switch t {
	case govips.ImageTypePNG:
		return "image/png", "png"
	case govips.ImageTypeWEBP:
		return "image/webp", "webp"
	case govips.ImageTypeJPEG:
		return "image/jpeg", "jpg"
	case govips.ImageTypeGIF:
		return "image/gif", "gif"
	case govips.ImageTypeTIFF:
		return "image/tiff", "tiff"
	default:
		return "application/octet-stream", ""
	}
}
