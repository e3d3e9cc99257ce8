package codecs

// PixelFormat enumerates the decode-target pixel format a decoder commits
// to producing from ReadFrame. The core canonical format is 32-bit BGRA.
type PixelFormat int

const (
	PixelFormatBGRA32 PixelFormat = iota
)

// ImageInfo is metadata about an image, obtainable without decoding pixels.
type ImageInfo struct {
	ImageWidth          int32
	ImageHeight         int32
	FrameDecodesInto    PixelFormat
	PreferredMimeType   string
	PreferredExtension  string
}
