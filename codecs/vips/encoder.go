package vips

import (
	"bytes"
	"image"
	"image/color"
	stdpng "image/png"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/pixelforge/imgcore/bitmaps"
	"github.com/pixelforge/imgcore/codecs"
	apperrors "github.com/pixelforge/imgcore/errors"
)

// DefaultQuality is the lossy-encode quality (1-100) used when a job does
// not specify one.
const DefaultQuality = 85

// Encoder encodes a decoded bitmap via libvips, into one of the formats
// named by Format ("png", "webp", "jpeg").
type Encoder struct {
	Format  string
	Quality int
}

// NewPNGEncoder constructs a libvips-backed PNG encoder.
func NewPNGEncoder() (codecs.Encoder, error) { return &Encoder{Format: "png"}, nil }

// NewWebPEncoder constructs a libvips-backed WebP encoder.
func NewWebPEncoder() (codecs.Encoder, error) {
	return &Encoder{Format: "webp", Quality: DefaultQuality}, nil
}

// NewJPEGEncoder constructs a libvips-backed JPEG encoder.
func NewJPEGEncoder() (codecs.Encoder, error) {
	return &Encoder{Format: "jpeg", Quality: DefaultQuality}, nil
}

func (e *Encoder) Encode(ctx codecs.EncodeContext, key bitmaps.Key, w interface {
	Write([]byte) (int, error)
}) error {
	bmp, err := ctx.BorrowBitmap(key)
	if err != nil {
		return err
	}
	if bmp.Layout != bitmaps.LayoutBGRA {
		return apperrors.New(apperrors.KindImageEncodingError, "vips.encode", apperrors.ErrUnsupportedFormat)
	}

	img := image.NewNRGBA(image.Rect(0, 0, bmp.Width, bmp.Height))
	buf := bmp.Buf()
	bpp := bmp.Layout.BytesPerPixel()
	for y := 0; y < bmp.Height; y++ {
		row := buf[y*bmp.Stride : y*bmp.Stride+bmp.Width*bpp]
		for x := 0; x < bmp.Width; x++ {
			px := row[x*bpp : x*bpp+bpp]
			img.SetNRGBA(x, y, color.NRGBA{R: px[2], G: px[1], B: px[0], A: px[3]})
		}
	}

	// libvips has no documented raw-memory constructor in its high-level
	// Go API; route the decoded bitmap through it via a lossless PNG
	// intermediate so the subsequent export still goes through libvips's
	// own encoder rather than a pure-Go one.
	var tmp bytes.Buffer
	if err := stdpng.Encode(&tmp, img); err != nil {
		return apperrors.New(apperrors.KindImageEncodingError, "vips.encode", err)
	}

	ensureStarted()
	ref, err := govips.NewImageFromBuffer(tmp.Bytes())
	if err != nil {
		return apperrors.New(apperrors.KindImageEncodingError, "vips.encode", err)
	}
	defer ref.Close()

	var out []byte
	switch e.Format {
	case "png":
		ep := govips.NewPngExportParams()
		out, _, err = ref.ExportPng(ep)
	case "webp":
		ep := govips.NewWebpExportParams()
		ep.Quality = e.Quality
		out, _, err = ref.ExportWebp(ep)
	case "jpeg":
		ep := govips.NewJpegExportParams()
		ep.Quality = e.Quality
		out, _, err = ref.ExportJpeg(ep)
	default:
		return apperrors.New(apperrors.KindImageEncodingError, "vips.encode", apperrors.ErrUnsupportedFormat)
	}
	if err != nil {
		return apperrors.New(apperrors.KindImageEncodingError, "vips.encode", err)
	}
	_, err = w.Write(out)
	return err
}
