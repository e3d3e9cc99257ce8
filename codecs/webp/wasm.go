package webp

import (
	"io"

	gen2webp "github.com/gen2brain/webp"

	"github.com/pixelforge/imgcore/codecs"
	apperrors "github.com/pixelforge/imgcore/errors"
)

// NewWasm decodes via github.com/gen2brain/webp, which runs libwebp
// compiled to wasm under github.com/tetratelabs/wazero, calling into the
// host through github.com/ebitengine/purego. Selected when
// codecs.EnabledCodecs.PreferWasm is set; supports lossless WebP, unlike
// the pure-Go x/image/webp path.
func NewWasm(r io.Reader) (codecs.Decoder, error) {
	img, err := gen2webp.Decode(r)
	if err != nil {
		return nil, apperrors.New(apperrors.KindImageDecodingError, "webp.new_wasm", err)
	}
	return &Decoder{img: img}, nil
}
