package core

import (
	"github.com/pixelforge/imgcore/codecs"
	"github.com/pixelforge/imgcore/codecs/jpeg"
	"github.com/pixelforge/imgcore/codecs/png"
	"github.com/pixelforge/imgcore/codecs/vips"
	"github.com/pixelforge/imgcore/codecs/webp"
)

// defaultRegistry builds the codec registry a Context starts with: the PNG
// and JPEG reference decoders/encoders, WebP's three decode paths
// (pure-Go, wasm, libvips) and two encode paths (cgo, pure-Go), plus
// libvips as an alternate PNG/JPEG/WebP backend selected by
// EnabledCodecs.PreferVips.
func defaultRegistry() *codecs.Registry {
	r := codecs.NewRegistry()

	r.RegisterDecoder("png", png.MatchesSignature, "image/png", png.New, false, false, false)
	r.RegisterDecoder("png", png.MatchesSignature, "image/png", vips.New, true, false, false)
	r.RegisterEncoder("png", png.NewEncoder, false, false, false)
	r.RegisterEncoder("png", vips.NewPNGEncoder, true, false, false)

	r.RegisterDecoder("jpeg", jpeg.MatchesSignature, "image/jpeg", jpeg.New, false, false, false)
	r.RegisterDecoder("jpeg", jpeg.MatchesSignature, "image/jpeg", vips.New, true, false, false)
	r.RegisterEncoder("jpeg", jpeg.NewEncoder, false, false, false)
	r.RegisterEncoder("jpeg", vips.NewJPEGEncoder, true, false, false)

	r.RegisterDecoder("webp", webp.MatchesSignature, "image/webp", webp.New, false, false, true)
	r.RegisterDecoder("webp", webp.MatchesSignature, "image/webp", webp.NewWasm, false, true, false)
	r.RegisterDecoder("webp", webp.MatchesSignature, "image/webp", vips.New, true, false, false)
	r.RegisterEncoder("webp", webp.NewCGOEncoder, false, false, false)
	r.RegisterEncoder("webp", webp.NewPureGoEncoder, false, false, true)
	r.RegisterEncoder("webp", vips.NewWebPEncoder, true, false, false)

	return r
}

// formatMeta maps an output format name to the MIME type and extension an
// EncodeSummary reports for it.
var formatMeta = map[string]struct{ mime, ext string }{
	"png":  {"image/png", "png"},
	"jpeg": {"image/jpeg", "jpg"},
	"webp": {"image/webp", "webp"},
}
