package graph

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/pixelforge/imgcore/bitmaps"
	apperrors "github.com/pixelforge/imgcore/errors"
	"github.com/pixelforge/imgcore/utils"
)

func applyOp(ctx EngineContext, key bitmaps.Key, op Op) (bitmaps.Key, error) {
	switch o := op.(type) {
	case ResizeOp:
		return resize(ctx, key, o)
	case CropOp:
		return crop(ctx, key, o)
	case GrayscaleOp:
		return grayscale(ctx, key)
	case WatermarkOp:
		return watermark(ctx, key, o)
	default:
		return bitmaps.Key{}, apperrors.New(apperrors.KindNodeError, "graph.apply_op", apperrors.ErrUnsupportedFormat)
	}
}

func toNRGBA(ctx EngineContext, key bitmaps.Key) (*image.NRGBA, error) {
	bmp, err := ctx.BorrowBitmap(key)
	if err != nil {
		return nil, err
	}
	if bmp.Layout != bitmaps.LayoutBGRA {
		return nil, apperrors.New(apperrors.KindNodeError, "graph.to_nrgba", apperrors.ErrUnsupportedFormat)
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

func fromNRGBA(ctx EngineContext, src *image.NRGBA) (bitmaps.Key, error) {
	b := src.Bounds()
	key, win, err := ctx.CreateAndBorrowBitmap(b.Dx(), b.Dy(), bitmaps.LayoutBGRA, true, false,
		bitmaps.ColorSpaceStandardRGB, bitmaps.ReplaceSelf)
	if err != nil {
		return bitmaps.Key{}, err
	}
	defer win.Close()
	for y := 0; y < b.Dy(); y++ {
		row := make([]bitmaps.PixelBGRA, b.Dx())
		for x := 0; x < b.Dx(); x++ {
			c := src.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			row[x] = bitmaps.PixelBGRA{B: c.B, G: c.G, R: c.R, A: c.A}
		}
		win.SetRowBGRA(y, row)
	}
	return key, nil
}

func resize(ctx EngineContext, key bitmaps.Key, o ResizeOp) (bitmaps.Key, error) {
	src, err := toNRGBA(ctx, key)
	if err != nil {
		return bitmaps.Key{}, err
	}
	srcB := src.Bounds()
	dstW, dstH := utils.ScaleDimensions(srcB.Dx(), srcB.Dy(), o.Width, o.Height)
	if dstW <= 0 || dstH <= 0 {
		return bitmaps.Key{}, apperrors.New(apperrors.KindNodeError, "graph.resize", apperrors.ErrInvalidDimensions)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, srcB, xdraw.Over, nil)
	return fromNRGBA(ctx, dst)
}

func crop(ctx EngineContext, key bitmaps.Key, o CropOp) (bitmaps.Key, error) {
	src, err := toNRGBA(ctx, key)
	if err != nil {
		return bitmaps.Key{}, err
	}
	rect := image.Rect(o.X, o.Y, o.X+o.Width, o.Y+o.Height)
	if !rect.In(src.Bounds()) {
		return bitmaps.Key{}, apperrors.New(apperrors.KindNodeError, "graph.crop", apperrors.ErrInvalidDimensions)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, o.Width, o.Height))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)
	return fromNRGBA(ctx, dst)
}

func grayscale(ctx EngineContext, key bitmaps.Key) (bitmaps.Key, error) {
	src, err := toNRGBA(ctx, key)
	if err != nil {
		return bitmaps.Key{}, err
	}
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.NRGBAAt(x, y)
			g := color.GrayModel.Convert(c).(color.Gray).Y
			dst.SetNRGBA(x, y, color.NRGBA{R: g, G: g, B: g, A: c.A})
		}
	}
	return fromNRGBA(ctx, dst)
}

func watermark(ctx EngineContext, key bitmaps.Key, o WatermarkOp) (bitmaps.Key, error) {
	base, err := toNRGBA(ctx, key)
	if err != nil {
		return bitmaps.Key{}, err
	}
	wmKey, err := ctx.DecodeFrame(o.WatermarkIoID)
	if err != nil {
		return bitmaps.Key{}, err
	}
	wm, err := toNRGBA(ctx, wmKey)
	if err != nil {
		return bitmaps.Key{}, err
	}
	dst := image.NewNRGBA(base.Bounds())
	draw.Draw(dst, dst.Bounds(), base, image.Point{}, draw.Src)
	offset := image.Point{X: o.OffsetX, Y: o.OffsetY}
	draw.Draw(dst, wm.Bounds().Add(offset), wm, image.Point{}, draw.Over)
	return fromNRGBA(ctx, dst)
}

