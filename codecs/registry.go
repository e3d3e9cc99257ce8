package codecs

import (
	"io"
	"sync"

	apperrors "github.com/pixelforge/imgcore/errors"
)

// EnabledCodecs is the job's codec-selection policy: which formats are
// permitted, and which concrete backend family to prefer when more than one
// implements a format.
type EnabledCodecs struct {
	PNG, WebP, JPEG bool

	// PreferPureGo selects a CGO-free decode/encode path when more than
	// one backend is registered for a format (codecs/webp).
	PreferPureGo bool
	// PreferWasm selects the wasm-runtime backed path (codecs/webp/wasm.go).
	PreferWasm bool
	// PreferVips selects the libvips-backed path (codecs/vips) over the
	// pure-Go reference decoder for a format, when both are registered.
	PreferVips bool
}

// DefaultEnabledCodecs enables every reference codec with no backend
// preference (the first registered backend that is neither vips- nor
// wasm-backed is used).
func DefaultEnabledCodecs() EnabledCodecs {
	return EnabledCodecs{PNG: true, WebP: true, JPEG: true}
}

// DecoderConstructor builds a Decoder from a readable stream.
type DecoderConstructor func(r io.Reader) (Decoder, error)

// EncoderConstructor builds an Encoder.
type EncoderConstructor func() (Encoder, error)

type decoderEntry struct {
	format    string
	signature func([]byte) bool
	mime      string
	vips      bool // true if this is the libvips-backed path for the format
	wasm      bool
	pureGo    bool
	construct DecoderConstructor
}

type encoderEntry struct {
	format    string
	vips      bool
	wasm      bool
	pureGo    bool
	construct EncoderConstructor
}

// Registry maps file signatures (magic-byte prefix tests) and declared MIME
// types to a decoder constructor, and format names to encoder constructors.
type Registry struct {
	mu       sync.RWMutex
	decoders []decoderEntry
	encoders []encoderEntry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// formatEnabled reports whether enabled permits decoding/encoding format.
func formatEnabled(format string, enabled EnabledCodecs) bool {
	switch format {
	case "png":
		return enabled.PNG
	case "webp":
		return enabled.WebP
	case "jpeg":
		return enabled.JPEG
	default:
		return false
	}
}

// RegisterDecoder adds a decoder path for format, selected when signature
// matches the first bytes of the stream and the EnabledCodecs policy
// permits it. backendFlags distinguishes multiple decoders registered for
// the same format (pure-Go vs wasm vs vips); pass all false for the sole
// implementation of a format.
func (r *Registry) RegisterDecoder(format string, signature func([]byte) bool, mime string, ctor DecoderConstructor, vips, wasm, pureGo bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders = append(r.decoders, decoderEntry{
		format: format, signature: signature, mime: mime,
		vips: vips, wasm: wasm, pureGo: pureGo, construct: ctor,
	})
}

// RegisterEncoder adds an encoder path for format. backendFlags distinguish
// multiple encoders registered for the same format the same way
// RegisterDecoder's do.
func (r *Registry) RegisterEncoder(format string, ctor EncoderConstructor, vips, wasm, pureGo bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoders = append(r.encoders, encoderEntry{
		format: format, vips: vips, wasm: wasm, pureGo: pureGo, construct: ctor,
	})
}

// DecoderFor selects a decoder constructor for the given signature peek,
// honoring the enabled-codecs policy and backend preference. Fails with
// CodecNotFound if no registered decoder's signature matches, or the
// matching format is disabled.
func (r *Registry) DecoderFor(peek []byte, enabled EnabledCodecs) (DecoderConstructor, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []decoderEntry
	for _, e := range r.decoders {
		if e.signature(peek) && formatEnabled(e.format, enabled) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil, "", apperrors.New(apperrors.KindCodecNotFound, "registry.decoder_for", nil)
	}

	best := pickDecoderBackend(candidates, enabled)
	return best.construct, best.format, nil
}

func pickDecoderBackend(candidates []decoderEntry, enabled EnabledCodecs) decoderEntry {
	preferred := func(e decoderEntry) bool {
		switch {
		case enabled.PreferVips:
			return e.vips
		case enabled.PreferWasm:
			return e.wasm
		case enabled.PreferPureGo:
			return e.pureGo
		default:
			return !e.vips && !e.wasm
		}
	}
	for _, e := range candidates {
		if preferred(e) {
			return e
		}
	}
	// Fall back to the first candidate if no backend matches the
	// preference (e.g. only a vips path is registered for this format).
	return candidates[0]
}

// EncoderFor returns the registered encoder constructor for format,
// honoring the same backend preference DecoderFor does. Fails with
// CodecNotFound if no encoder is registered for format, or it is disabled.
func (r *Registry) EncoderFor(format string, enabled EnabledCodecs) (EncoderConstructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !formatEnabled(format, enabled) {
		return nil, apperrors.New(apperrors.KindCodecNotFound, "registry.encoder_for", nil)
	}

	var candidates []encoderEntry
	for _, e := range r.encoders {
		if e.format == format {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil, apperrors.New(apperrors.KindCodecNotFound, "registry.encoder_for", nil)
	}

	preferred := func(e encoderEntry) bool {
		switch {
		case enabled.PreferVips:
			return e.vips
		case enabled.PreferWasm:
			return e.wasm
		case enabled.PreferPureGo:
			return e.pureGo
		default:
			return !e.vips && !e.wasm
		}
	}
	for _, e := range candidates {
		if preferred(e) {
			return e.construct, nil
		}
	}
	return candidates[0].construct, nil
}
