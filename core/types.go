package core

import (
	"github.com/pixelforge/imgcore/bitmaps"
	"github.com/pixelforge/imgcore/codecs"
)

// ImageInfo is metadata about a registered input, obtainable without
// decoding pixels. Reuses codecs.ImageInfo directly so core does not
// duplicate the shape codecs already defines.
type ImageInfo = codecs.ImageInfo

// SecurityPolicy caps decode, intermediate-frame, and encode dimensions.
// Each cap is optional (zero value disables that particular check); only
// the fields set in a ConfigureSecurity call override the prior policy.
type SecurityPolicy struct {
	MaxDecodeSize *FrameCap
	MaxFrameSize  *FrameCap
	MaxEncodeSize *FrameCap
}

// FrameCap bounds width, height, and total megapixels. A zero field means
// that particular axis is uncapped.
type FrameCap struct {
	Width      int
	Height     int
	Megapixels float64
}

func (c *FrameCap) toLimit() bitmaps.FrameSizeLimit {
	if c == nil {
		return bitmaps.FrameSizeLimit{}
	}
	return bitmaps.FrameSizeLimit{Width: c.Width, Height: c.Height, Megapixels: c.Megapixels}
}

// DefaultSecurityPolicy returns the policy new contexts start with: no
// decode/encode caps, and a frame cap of 10000x10000 / 100 megapixels.
func DefaultSecurityPolicy() SecurityPolicy {
	return SecurityPolicy{
		MaxFrameSize: &FrameCap{Width: 10000, Height: 10000, Megapixels: 100},
	}
}

// merge overrides only the fields set (non-nil) in override, leaving the
// rest of the receiver unchanged.
func (p SecurityPolicy) merge(override SecurityPolicy) SecurityPolicy {
	if override.MaxDecodeSize != nil {
		p.MaxDecodeSize = override.MaxDecodeSize
	}
	if override.MaxFrameSize != nil {
		p.MaxFrameSize = override.MaxFrameSize
	}
	if override.MaxEncodeSize != nil {
		p.MaxEncodeSize = override.MaxEncodeSize
	}
	return p
}

// IOBinding names one input or output stream by io_id, direction, and
// source. Kind selects which field is meaningful: Path for IOKindFile,
// Bytes for the buffer kinds, neither for IOKindOutputSink.
type IOBinding struct {
	IoID      int
	Direction ioDirection
	Kind      ioKind
	Path      string // Kind == IOKindFile
	Bytes     []byte // Kind == IOKindBorrowedBuffer, IOKindCopiedBuffer, IOKindOwnedVector
}

type ioDirection int

const (
	DirectionIn ioDirection = iota
	DirectionOut
)

type ioKind int

const (
	IOKindFile ioKind = iota
	IOKindBorrowedBuffer
	IOKindCopiedBuffer
	IOKindOwnedVector
	IOKindOutputSink
)

// BuilderConfig carries the optional overrides a JobDescription's builder
// stage may supply.
type BuilderConfig struct {
	GraphRecording *bool
	Security       *SecurityPolicy
}

// ChainSpec is the declarative per-output description a JobDescription
// carries; Context.Build turns a list of these into a graph.Description.
type ChainSpec struct {
	InputIoID  int
	OutputIoID int
	HasOutput  bool
	// OutputFormat names the encoder ("png", "webp") bound to OutputIoID.
	// add_output_buffer registers the io_id without a format; Build/Execute
	// resolves and attaches the concrete encoder from this field.
	OutputFormat string
	Ops          []ChainOp
}

// ChainOp mirrors graph.Op without importing the graph package from the
// job-description surface, so callers describing a job never need to
// reach into graph internals directly.
type ChainOp interface{ isChainOp() }

// ResizeOp, CropOp, GrayscaleOp, and WatermarkOp mirror their graph
// package counterparts one-for-one; Context.Build translates between them.
type (
	ResizeOp     struct{ Width, Height int }
	CropOp       struct{ X, Y, Width, Height int }
	GrayscaleOp  struct{}
	WatermarkOp  struct {
		WatermarkIoID    int
		OffsetX, OffsetY int
	}
)

func (ResizeOp) isChainOp()    {}
func (CropOp) isChainOp()      {}
func (GrayscaleOp) isChainOp() {}
func (WatermarkOp) isChainOp() {}

// JobDescription is the structured input to Context.Build: I/O bindings,
// per-output processing chains, and optional builder overrides.
type JobDescription struct {
	Bindings []IOBinding
	Chains   []ChainSpec
	Builder  BuilderConfig
}

// DecodeSummary reports one successfully decoded input.
type DecodeSummary struct {
	IoID               int
	PreferredMimeType  string
	PreferredExtension string
	Width, Height      int32
}

// EncodeSummary reports one successfully written output.
type EncodeSummary struct {
	IoID               int
	BytesWritten       int
	PreferredMimeType  string
	PreferredExtension string
	Width, Height      int32
}

// PerfCounters holds coarse performance data for a Build/Execute call.
type PerfCounters struct {
	FramesDecoded int
	FramesEncoded int
}

// JobResult is the structured output of Context.Build / Context.Execute.
type JobResult struct {
	Decodes  []DecodeSummary
	Encodes  []EncodeSummary
	Perf     PerfCounters
	Canceled bool
}

// CancelPoll is invoked by the graph engine before each chain starts; it
// must be safe to call concurrently even though execution itself is
// single-threaded, since a caller may hold it across suspension points
// from a background watchdog goroutine.
type CancelPoll func() bool

// VersionInfo is returned by Context.GetVersionInfo.
type VersionInfo struct {
	Version   string
	GoVersion string
	Modified  bool
}
