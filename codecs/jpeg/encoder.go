package jpeg

import (
	"image"
	"image/color"
	"image/jpeg"

	"github.com/pixelforge/imgcore/bitmaps"
	"github.com/pixelforge/imgcore/codecs"
	apperrors "github.com/pixelforge/imgcore/errors"
)

// DefaultQuality is the JPEG encode quality (1-100) used when a job does
// not specify one.
const DefaultQuality = 85

// Encoder serializes a BGRA bitmap to JPEG bytes using the standard
// library encoder.
type Encoder struct{ Quality int }

// NewEncoder constructs a JPEG Encoder with the default quality.
func NewEncoder() (codecs.Encoder, error) { return &Encoder{Quality: DefaultQuality}, nil }

func (e *Encoder) Encode(ctx codecs.EncodeContext, key bitmaps.Key, w interface {
	Write([]byte) (int, error)
}) error {
	bmp, err := ctx.BorrowBitmap(key)
	if err != nil {
		return err
	}
	if bmp.Layout != bitmaps.LayoutBGRA {
		return apperrors.New(apperrors.KindImageEncodingError, "jpeg.encode", apperrors.ErrUnsupportedFormat)
	}

	img := image.NewRGBA(image.Rect(0, 0, bmp.Width, bmp.Height))
	buf := bmp.Buf()
	bpp := bmp.Layout.BytesPerPixel()
	for y := 0; y < bmp.Height; y++ {
		row := buf[y*bmp.Stride : y*bmp.Stride+bmp.Width*bpp]
		for x := 0; x < bmp.Width; x++ {
			px := row[x*bpp : x*bpp+bpp]
			img.SetRGBA(x, y, color.RGBA{R: px[2], G: px[1], B: px[0], A: 255})
		}
	}

	quality := e.Quality
	if quality <= 0 {
		quality = DefaultQuality
	}
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
		return apperrors.New(apperrors.KindImageEncodingError, "jpeg.encode", err)
	}
	return nil
}
