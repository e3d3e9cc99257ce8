package core

import (
	"os"
	"strings"

	"github.com/pixelforge/imgcore/graph"

	apperrors "github.com/pixelforge/imgcore/errors"
)

// Build parses a job description into an internal graph and runs it to
// completion. Build and Execute are the same operation here: SPEC_FULL's
// minimal graph package is the sole engine behind both, so there is no
// separate "parse only" phase to expose.
func (c *Context) Build(desc JobDescription, poll CancelPoll) (JobResult, error) {
	return c.run(desc, poll)
}

// Execute runs a job description's graph, identical to Build.
func (c *Context) Execute(desc JobDescription, poll CancelPoll) (JobResult, error) {
	return c.run(desc, poll)
}

func (c *Context) run(desc JobDescription, poll CancelPoll) (JobResult, error) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return JobResult{}, apperrors.New(apperrors.KindInvalidArgument, "context.run", nil)
	}
	if desc.Builder.GraphRecording != nil {
		mode := *desc.Builder.GraphRecording
		if strings.EqualFold(os.Getenv("CI"), "true") {
			mode = false
		}
		c.graphRecording = mode
	}
	if desc.Builder.Security != nil {
		c.security = c.security.merge(*desc.Builder.Security)
	}
	c.mu.Unlock()

	if err := c.applyBindings(desc.Bindings); err != nil {
		c.outwardErr.report(err)
		return JobResult{}, err
	}

	for _, spec := range desc.Chains {
		if !spec.HasOutput {
			continue
		}
		if err := c.bindEncoder(spec.OutputIoID, spec.OutputFormat); err != nil {
			c.outwardErr.report(err)
			return JobResult{}, err
		}
	}

	chains := make([]graph.Chain, 0, len(desc.Chains))
	for _, spec := range desc.Chains {
		chains = append(chains, graph.Chain{
			InputIoID:  spec.InputIoID,
			OutputIoID: spec.OutputIoID,
			HasOutput:  spec.HasOutput,
			Ops:        translateOps(spec.Ops),
		})
	}
	gdesc := graph.Translate(chains)

	engine := graph.NewEngine()
	res, runErr := engine.Run(c, gdesc, graph.CancelPoll(poll))

	result := JobResult{Canceled: res.Canceled}
	for _, id := range res.Decoded {
		if summary, ok := c.decodeSummary(id); ok {
			result.Decodes = append(result.Decodes, summary)
			result.Perf.FramesDecoded++
		}
	}
	for _, id := range res.Encoded {
		result.Encodes = append(result.Encodes, c.encodeSummary(id))
		result.Perf.FramesEncoded++
	}

	if runErr != nil {
		c.outwardErr.report(runErr)
		return result, runErr
	}
	return result, nil
}

// applyBindings registers every IOBinding a JobDescription declares,
// skipping any io_id already registered (a caller that called AddFile or
// one of its siblings directly before Build/Execute, rather than going
// through the declarative Bindings list).
func (c *Context) applyBindings(bindings []IOBinding) error {
	for _, b := range bindings {
		c.mu.Lock()
		_, exists := c.instances[b.IoID]
		c.mu.Unlock()
		if exists {
			continue
		}

		var err error
		switch b.Kind {
		case IOKindFile:
			err = c.AddFile(b.IoID, b.Direction, b.Path)
		case IOKindBorrowedBuffer:
			err = c.AddInputBuffer(b.IoID, b.Bytes)
		case IOKindCopiedBuffer:
			err = c.AddCopiedInputBuffer(b.IoID, b.Bytes)
		case IOKindOwnedVector:
			err = c.AddInputVector(b.IoID, b.Bytes)
		case IOKindOutputSink:
			err = c.AddOutputBuffer(b.IoID)
		default:
			err = apperrors.New(apperrors.KindInvalidArgument, "context.apply_bindings", nil)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// bindEncoder resolves and attaches the encoder for an output io_id's
// declared format, unless one is already bound (a chain re-run against the
// same output, or a caller that pre-bound it another way).
func (c *Context) bindEncoder(ioID int, format string) error {
	c.mu.Lock()
	inst, ok := c.instances[ioID]
	c.mu.Unlock()
	if !ok || inst == nil {
		return apperrors.New(apperrors.KindIoIdNotFound, "context.bind_encoder", nil)
	}
	if _, err := inst.GetEncoder(); err == nil {
		return nil
	}

	c.mu.Lock()
	ctor, err := c.registry.EncoderFor(format, c.enabledCodecs)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	enc, err := ctor()
	if err != nil {
		return apperrors.Wrap(apperrors.KindImageEncodingError, "context.bind_encoder", err)
	}
	inst.SetEncoder(enc)

	c.mu.Lock()
	c.outputFormats[ioID] = format
	c.mu.Unlock()
	return nil
}

func (c *Context) decodeSummary(ioID int) (DecodeSummary, bool) {
	inst, err := c.GetCodec(ioID)
	if err != nil {
		return DecodeSummary{}, false
	}
	dec, err := inst.GetDecoder()
	if err != nil {
		return DecodeSummary{}, false
	}
	info, err := dec.GetUnscaledImageInfo(c)
	if err != nil {
		return DecodeSummary{}, false
	}
	return DecodeSummary{
		IoID:               ioID,
		PreferredMimeType:  info.PreferredMimeType,
		PreferredExtension: info.PreferredExtension,
		Width:              info.ImageWidth,
		Height:             info.ImageHeight,
	}, true
}

func (c *Context) encodeSummary(ioID int) EncodeSummary {
	n := 0
	if inst, err := c.GetCodec(ioID); err == nil {
		if b, ok := inst.Proxy.OutputBytes(); ok {
			n = len(b)
		}
	}

	c.mu.Lock()
	format := c.outputFormats[ioID]
	dims := c.lastEncodedDims[ioID]
	c.mu.Unlock()

	meta := formatMeta[format]
	return EncodeSummary{
		IoID:               ioID,
		BytesWritten:       n,
		PreferredMimeType:  meta.mime,
		PreferredExtension: meta.ext,
		Width:              dims[0],
		Height:             dims[1],
	}
}

// translateOps maps core's job-description-facing ChainOp values onto
// graph's internal Op vocabulary.
func translateOps(ops []ChainOp) []graph.Op {
	out := make([]graph.Op, 0, len(ops))
	for _, op := range ops {
		switch o := op.(type) {
		case ResizeOp:
			out = append(out, graph.ResizeOp{Width: o.Width, Height: o.Height})
		case CropOp:
			out = append(out, graph.CropOp{X: o.X, Y: o.Y, Width: o.Width, Height: o.Height})
		case GrayscaleOp:
			out = append(out, graph.GrayscaleOp{})
		case WatermarkOp:
			out = append(out, graph.WatermarkOp{
				WatermarkIoID: o.WatermarkIoID,
				OffsetX:       o.OffsetX,
				OffsetY:       o.OffsetY,
			})
		}
	}
	return out
}
