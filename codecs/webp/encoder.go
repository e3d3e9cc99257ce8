package webp

import (
	"image"
	"image/color"

	chaiwebp "github.com/chai2010/webp"
	"github.com/HugoSmits86/nativewebp"

	"github.com/pixelforge/imgcore/bitmaps"
	"github.com/pixelforge/imgcore/codecs"
	apperrors "github.com/pixelforge/imgcore/errors"
)

// DefaultQuality is the WebP encode quality (1-100) used when a job does
// not specify one.
const DefaultQuality = 85

// CGOEncoder encodes via github.com/chai2010/webp (libwebp via cgo),
// supporting both lossy and lossless output.
type CGOEncoder struct{ Quality int }

// NewCGOEncoder constructs a CGOEncoder with the default quality.
func NewCGOEncoder() (codecs.Encoder, error) { return &CGOEncoder{Quality: DefaultQuality}, nil }

func (e *CGOEncoder) Encode(ctx codecs.EncodeContext, key bitmaps.Key, w interface {
	Write([]byte) (int, error)
}) error {
	img, err := bitmapToNRGBA(ctx, key)
	if err != nil {
		return err
	}
	data, err := chaiwebp.EncodeRGBA(img, float32(e.Quality))
	if err != nil {
		return apperrors.New(apperrors.KindImageEncodingError, "webp.cgo_encode", err)
	}
	_, err = w.Write(data)
	return err
}

// PureGoEncoder encodes via github.com/HugoSmits86/nativewebp, selected
// when codecs.EnabledCodecs.PreferPureGo is set (CGO_ENABLED=0 builds).
type PureGoEncoder struct{}

// NewPureGoEncoder constructs a PureGoEncoder.
func NewPureGoEncoder() (codecs.Encoder, error) { return &PureGoEncoder{}, nil }

func (PureGoEncoder) Encode(ctx codecs.EncodeContext, key bitmaps.Key, w interface {
	Write([]byte) (int, error)
}) error {
	img, err := bitmapToNRGBA(ctx, key)
	if err != nil {
		return err
	}
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return apperrors.New(apperrors.KindImageEncodingError, "webp.puregoencode", err)
	}
	return nil
}

func bitmapToNRGBA(ctx codecs.EncodeContext, key bitmaps.Key) (*image.NRGBA, error) {
	bmp, err := ctx.BorrowBitmap(key)
	if err != nil {
		return nil, err
	}
	if bmp.Layout != bitmaps.LayoutBGRA {
		return nil, apperrors.New(apperrors.KindImageEncodingError, "webp.encode", apperrors.ErrUnsupportedFormat)
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
	return img, nil
}
