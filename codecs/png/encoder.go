package png

import (
	"image"
	"image/color"
	"image/png"

	"github.com/pixelforge/imgcore/bitmaps"
	"github.com/pixelforge/imgcore/codecs"
	apperrors "github.com/pixelforge/imgcore/errors"
)

// Encoder serializes a BGRA bitmap back to PNG bytes using the standard
// library encoder, so decode-then-encode round trips without leaving
// the package.
type Encoder struct{}

// NewEncoder constructs a PNG Encoder.
func NewEncoder() (codecs.Encoder, error) { return &Encoder{}, nil }

func (Encoder) Encode(ctx codecs.EncodeContext, key bitmaps.Key, w interface {
	Write([]byte) (int, error)
}) error {
	bmp, err := ctx.BorrowBitmap(key)
	if err != nil {
		return err
	}
	if bmp.Layout != bitmaps.LayoutBGRA {
		return apperrors.New(apperrors.KindImageEncodingError, "png.encode", apperrors.ErrUnsupportedFormat)
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

	if err := png.Encode(w, img); err != nil {
		return apperrors.New(apperrors.KindImageEncodingError, "png.encode", err)
	}
	return nil
}
