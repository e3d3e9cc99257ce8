package codecs

// DecoderCommand is the closed union of commands TellDecoder accepts.
// Unknown commands (any value not in this union, or a value a given
// decoder does not recognize) are no-ops.
type DecoderCommand interface {
	isDecoderCommand()
}

// JpegDownscaleHint asks a JPEG decoder to scale during decode (DCT scaling)
// to approximately Width x Height.
type JpegDownscaleHint struct {
	Width, Height       int
	ScaleLumaSpatially  bool
}

func (JpegDownscaleHint) isDecoderCommand() {}

// WebPDecoderHint asks a WebP decoder to scale during decode to
// approximately Width x Height.
type WebPDecoderHint struct {
	Width, Height int
}

func (WebPDecoderHint) isDecoderCommand() {}
