// Package jpeg is the JPEG reference decoder and encoder, built on the
// standard library's image/jpeg. It is the only pure-Go decoder whose
// GetExifRotationFlag can return a non-zero orientation (see
// exif.ReadOrientation); the libvips path in codecs/vips reports whatever
// orientation libvips reads.
package jpeg

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"io"

	"github.com/pixelforge/imgcore/bitmaps"
	"github.com/pixelforge/imgcore/codecs"
	apperrors "github.com/pixelforge/imgcore/errors"
	"github.com/pixelforge/imgcore/exif"
	"github.com/pixelforge/imgcore/utils"
)

// Signature is the JPEG SOI marker the codec registry's signature test
// looks for.
var Signature = []byte{0xFF, 0xD8, 0xFF}

// MatchesSignature reports whether peek begins with the JPEG SOI marker.
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

// Decoder is the JPEG reference Decoder implementation.
type Decoder struct {
	data        []byte
	cfg         image.Config
	orientation int
	hasOrient   bool

	scaleHint codecs.JpegDownscaleHint
	hasHint   bool
}

// New constructs a Decoder, consuming r fully, reading the JPEG header,
// and extracting any EXIF orientation tag up front.
func New(r io.Reader) (codecs.Decoder, error) {
	buf, err := utils.DrainReader(r)
	if err != nil {
		return nil, apperrors.New(apperrors.KindIoError, "jpeg.new", err)
	}
	data := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.New(apperrors.KindImageDecodingError, "jpeg.new", err)
	}
	d := &Decoder{data: data, cfg: cfg}
	if o, ok := exif.ReadOrientationBytes(data); ok {
		d.orientation, d.hasOrient = o, true
	}
	return d, nil
}

func (d *Decoder) Initialize(codecs.DecodeContext) error { return nil }

func (d *Decoder) info() codecs.ImageInfo {
	w, h := int32(d.cfg.Width), int32(d.cfg.Height)
	if d.hasHint && d.scaleHint.Width > 0 && d.scaleHint.Height > 0 {
		w, h = int32(d.scaleHint.Width), int32(d.scaleHint.Height)
	}
	return codecs.ImageInfo{
		ImageWidth:         w,
		ImageHeight:        h,
		FrameDecodesInto:   codecs.PixelFormatBGRA32,
		PreferredMimeType:  "image/jpeg",
		PreferredExtension: "jpg",
	}
}

func (d *Decoder) GetUnscaledImageInfo(codecs.DecodeContext) (codecs.ImageInfo, error) {
	return codecs.ImageInfo{
		ImageWidth:         int32(d.cfg.Width),
		ImageHeight:        int32(d.cfg.Height),
		FrameDecodesInto:   codecs.PixelFormatBGRA32,
		PreferredMimeType:  "image/jpeg",
		PreferredExtension: "jpg",
	}, nil
}

// GetScaledImageInfo reflects a prior JpegDownscaleHint from TellDecoder.
// The standard library's image/jpeg has no DCT-scaling hook, so the hint
// only changes what this reports, not what ReadFrame actually decodes;
// a resize graph node still performs the real scale-down afterward.
func (d *Decoder) GetScaledImageInfo(codecs.DecodeContext) (codecs.ImageInfo, error) {
	return d.info(), nil
}

func (d *Decoder) GetExifRotationFlag(codecs.DecodeContext) (int, bool, error) {
	return d.orientation, d.hasOrient, nil
}

// TellDecoder records a JpegDownscaleHint for GetScaledImageInfo to
// report; other commands are ignored.
func (d *Decoder) TellDecoder(_ codecs.DecodeContext, cmd codecs.DecoderCommand) error {
	if hint, ok := cmd.(codecs.JpegDownscaleHint); ok {
		d.scaleHint, d.hasHint = hint, true
	}
	return nil
}

func (d *Decoder) HasMoreFrames() (bool, error) { return false, nil }

func (d *Decoder) ReadFrame(ctx codecs.DecodeContext) (bitmaps.Key, error) {
	img, err := jpeg.Decode(bytes.NewReader(d.data))
	if err != nil {
		return bitmaps.Key{}, apperrors.New(apperrors.KindImageDecodingError, "jpeg.read_frame", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	key, win, err := ctx.CreateAndBorrowBitmap(w, h, bitmaps.LayoutBGRA, false, true,
		bitmaps.ColorSpaceStandardRGB, bitmaps.ReplaceSelf)
	if err != nil {
		return bitmaps.Key{}, err
	}
	defer win.Close()

	switch src := img.(type) {
	case *image.YCbCr:
		for y := 0; y < h; y++ {
			row := make([]bitmaps.PixelBGRA, w)
			for x := 0; x < w; x++ {
				c := color.NRGBAModel.Convert(src.YCbCrAt(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				row[x] = bitmaps.PixelBGRA{B: c.B, G: c.G, R: c.R, A: 255}
			}
			win.SetRowBGRA(y, row)
		}
	case *image.CMYK:
		for y := 0; y < h; y++ {
			row := make([]bitmaps.PixelBGRA, w)
			for x := 0; x < w; x++ {
				c := color.NRGBAModel.Convert(src.CMYKAt(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
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
		for y := 0; y < h; y++ {
			row := make([]bitmaps.PixelBGRA, w)
			for x := 0; x < w; x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				row[x] = bitmaps.PixelBGRA{B: c.B, G: c.G, R: c.R, A: 255}
			}
			win.SetRowBGRA(y, row)
		}
	}

	return key, nil
}
