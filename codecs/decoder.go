// Package codecs implements the polymorphic Decoder/Encoder contract and
// the codec registry that selects a concrete backend by signature bytes
// and MIME type. PNG is the reference implementation, in the codecs/png
// subpackage; codecs/webp and codecs/vips add further decode and encode
// paths.
package codecs

import (
	"github.com/pixelforge/imgcore/bitmaps"
)

// DecodeContext is the narrow slice of core.Context a Decoder needs: bitmap
// allocation under the job's security policy. Declared here (rather than
// importing core, which would cycle back to this package) and satisfied
// implicitly by *core.Context.
type DecodeContext interface {
	// CreateAndBorrowBitmap allocates a bitmap honoring the job's
	// max_frame_size policy and immediately returns an exclusive Window
	// into it, so the decoder can write pixel rows before releasing the
	// borrow itself.
	CreateAndBorrowBitmap(
		w, h int,
		layout bitmaps.PixelLayout,
		alphaMeaningful, zeroed bool,
		cs bitmaps.ColorSpace,
		compositing bitmaps.Compositing,
	) (bitmaps.Key, *bitmaps.Window, error)
}

// EncodeContext is the narrow slice of core.Context an Encoder needs: read
// access to a previously-decoded bitmap.
type EncodeContext interface {
	BorrowBitmap(key bitmaps.Key) (*bitmaps.Bitmap, error)
}

// Decoder converts a registered I/O proxy's bytes into image metadata and,
// on request, decoded BGRA frames. Implementations live in codecs/png,
// codecs/webp, codecs/vips.
type Decoder interface {
	// Initialize is called exactly once after construction; it may read
	// the first bytes of the stream to confirm signature and parse headers.
	Initialize(ctx DecodeContext) error

	// GetUnscaledImageInfo returns metadata without decoding pixels.
	GetUnscaledImageInfo(ctx DecodeContext) (ImageInfo, error)

	// GetScaledImageInfo returns metadata reflecting any scale-on-decode
	// hint previously supplied via TellDecoder; decoders with no scaled
	// mode return the same value as GetUnscaledImageInfo.
	GetScaledImageInfo(ctx DecodeContext) (ImageInfo, error)

	// GetExifRotationFlag returns the EXIF orientation value 1..=8 if
	// known, or ok=false if absent/unknown.
	GetExifRotationFlag(ctx DecodeContext) (orientation int, ok bool, err error)

	// TellDecoder accepts a decoder-specific command; unknown commands are
	// ignored.
	TellDecoder(ctx DecodeContext, cmd DecoderCommand) error

	// ReadFrame decodes the next frame, allocates a bitmap through ctx,
	// writes BGRA pixels into it, and returns its key.
	ReadFrame(ctx DecodeContext) (bitmaps.Key, error)

	// HasMoreFrames reports whether additional frames remain (for
	// animated formats). Still-image decoders return false.
	HasMoreFrames() (bool, error)
}

// Encoder serializes a decoded bitmap to bytes in a target format, so
// that an output buffer registered for a job round-trips end to end.
type Encoder interface {
	// Encode writes the bitmap identified by key, in the encoder's target
	// format, to w.
	Encode(ctx EncodeContext, key bitmaps.Key, w interface{ Write([]byte) (int, error) }) error
}
