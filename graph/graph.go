// Package graph is a deliberately small stand-in for the full graph
// execution engine: node flattening, multi-pass scheduling, and a JSON
// node schema are out of scope here. What this package does implement is
// the Context's one real collaborator — a fixed vocabulary of nodes
// (resize, crop, grayscale, watermark) run as linear per-output chains,
// so Context.Build/Execute have a concrete engine to drive end to end.
package graph

import "github.com/pixelforge/imgcore/bitmaps"

// Op is one pixel-transform node in a chain. The set is closed; add a new
// concrete type and a branch in applyOp to extend it.
type Op interface{ isOp() }

// ResizeOp scales the frame to Width x Height. Either axis may be 0 to
// preserve aspect ratio relative to the other.
type ResizeOp struct{ Width, Height int }

// CropOp extracts a sub-rectangle at (X,Y) sized Width x Height.
type CropOp struct{ X, Y, Width, Height int }

// GrayscaleOp desaturates the frame into a new bitmap (BGR channels set
// equal).
type GrayscaleOp struct{}

// WatermarkOp composites the frame decoded from WatermarkIoID over the
// chain's current frame at (OffsetX, OffsetY).
type WatermarkOp struct {
	WatermarkIoID   int
	OffsetX, OffsetY int
}

func (ResizeOp) isOp()     {}
func (CropOp) isOp()       {}
func (GrayscaleOp) isOp()  {}
func (WatermarkOp) isOp()  {}

// Chain decodes one input, applies Ops in order, and optionally encodes
// the result to one output. OutputIoID is 0 when the chain exists only to
// exercise a decode (no corresponding add_output_buffer binding).
type Chain struct {
	InputIoID  int
	OutputIoID int
	HasOutput  bool
	Ops        []Op
}

// Description is the flattened graph the Engine runs: an ordered set of
// chains built from a job's framewise graph description.
type Description struct {
	Chains []Chain
}

// CancelPoll is invoked at chain boundaries; true aborts the remaining
// run with Cancelled. Must be safe to call from any goroutine.
type CancelPoll func() bool

// EngineContext is the narrow slice of core.Context the Engine needs.
// Declared here instead of imported from core to avoid a cycle; satisfied
// implicitly by *core.Context.
type EngineContext interface {
	DecodeFrame(ioID int) (bitmaps.Key, error)
	EncodeFrame(ioID int, key bitmaps.Key) error
	CreateAndBorrowBitmap(
		w, h int,
		layout bitmaps.PixelLayout,
		alphaMeaningful, zeroed bool,
		cs bitmaps.ColorSpace,
		compositing bitmaps.Compositing,
	) (bitmaps.Key, *bitmaps.Window, error)
	BorrowBitmap(key bitmaps.Key) (*bitmaps.Bitmap, error)
}

// Result summarizes what the Engine actually did, in execution order.
// Context.Execute cross-references these io_ids against its codec
// instances to assemble the full job result (widths, heights, byte
// counts, MIME types).
type Result struct {
	Decoded  []int
	Encoded  []int
	Canceled bool
}

// Translate builds a Description from a job's chain specifications. The
// framewise-graph-to-node-list translation itself (parsing a user facing
// schema) lives outside this package; Translate here accepts the already
// structured chain list a caller assembled from that description.
func Translate(chains []Chain) Description {
	return Description{Chains: chains}
}
