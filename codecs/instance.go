package codecs

import (
	"github.com/pixelforge/imgcore/ioproxy"

	apperrors "github.com/pixelforge/imgcore/errors"
)

// Instance binds one I/O proxy to one decoder or encoder, identified by
// an I/O id and direction.
type Instance struct {
	IoID      int
	Dir       ioproxy.Direction
	Proxy     ioproxy.Proxy
	decoder   Decoder
	encoder   Encoder
}

// NewDecoderInstance binds an input-direction proxy to a decoder.
func NewDecoderInstance(ioID int, proxy ioproxy.Proxy, d Decoder) *Instance {
	return &Instance{IoID: ioID, Dir: ioproxy.In, Proxy: proxy, decoder: d}
}

// NewEncoderInstance binds an output-direction proxy to an encoder.
func NewEncoderInstance(ioID int, proxy ioproxy.Proxy, e Encoder) *Instance {
	return &Instance{IoID: ioID, Dir: ioproxy.Out, Proxy: proxy, encoder: e}
}

// GetDecoder returns the bound decoder, or an error if this instance is an
// encoder instance.
func (i *Instance) GetDecoder() (Decoder, error) {
	if i.Dir != ioproxy.In || i.decoder == nil {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "codec_instance.get_decoder", nil)
	}
	return i.decoder, nil
}

// GetEncoder returns the bound encoder, or an error if this instance is a
// decoder instance.
func (i *Instance) GetEncoder() (Encoder, error) {
	if i.Dir != ioproxy.Out || i.encoder == nil {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "codec_instance.get_encoder", nil)
	}
	return i.encoder, nil
}

// SetEncoder attaches an encoder to an output-direction instance. Output
// instances are constructed without a format (add_output_buffer takes only
// an io_id); the encoder is bound once a job description names the output
// format for this io_id.
func (i *Instance) SetEncoder(e Encoder) { i.encoder = e }

// Close releases the underlying I/O proxy.
func (i *Instance) Close() error {
	if i.Proxy == nil {
		return nil
	}
	return i.Proxy.Close()
}
