// Package core implements the job context: the single handle through which
// a caller registers I/O, queries image metadata, and runs a job's graph to
// completion. Context owns every mutable resource a job touches — codec
// instances, bitmaps, raw allocations — and mediates access to each of them
// through dynamic borrow checks rather than panicking or blocking.
package core

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/pixelforge/imgcore/alloc"
	"github.com/pixelforge/imgcore/bitmaps"
	"github.com/pixelforge/imgcore/codecs"
	"github.com/pixelforge/imgcore/exif"
	"github.com/pixelforge/imgcore/ioproxy"

	apperrors "github.com/pixelforge/imgcore/errors"
)

// jobIDCounter mints debug_job_id values. A package-level atomic counter,
// not a Context field, per the process-wide-identifier design note: useful
// for correlating logs across jobs without becoming shared mutable state
// anything but an atomic increment touches.
var jobIDCounter uint64

func nextJobID() uint64 { return atomic.AddUint64(&jobIDCounter, 1) }

// Context owns all mutable resources for one job's lifetime: codec
// instances (and the I/O proxies they wrap), bitmaps, and raw allocations.
// Not safe for concurrent use by multiple executors — see package
// graph's EngineContext contract — but individual sub-containers apply
// dynamic borrow checks so a caller holding a Context across a cancellation
// poll closure cannot corrupt state, only receive FailedBorrow.
type Context struct {
	mu sync.Mutex

	debugJobID     uint64
	graphRecording bool
	security       SecurityPolicy
	enabledCodecs  codecs.EnabledCodecs

	registry  *codecs.Registry
	ioIDList  []int
	instances map[int]*codecs.Instance

	// outputFormats and lastEncodedDims are populated as outputs are bound
	// and encoded, so Execute can assemble EncodeSummary without the graph
	// package needing to know about job-description-level concerns.
	outputFormats   map[int]string
	lastEncodedDims map[int][2]int32

	bitmaps          *bitmaps.Container
	bitmapsShared    int
	bitmapsExclusive bool

	allocations *alloc.Container

	outwardErr outwardErrorBuffer

	logger  Logger
	metrics MetricsCollector

	bitmapCapHint int
	codecCapHint  int

	destroyed bool
}

// Create allocates a Context with default security, capacity hints, and
// codec registry, applying any Options supplied. Must never panic: any
// internal panic during construction is recovered and reported as
// OutOfMemory instead of crashing the caller.
func Create(opts ...Option) (ctx *Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			ctx = nil
			err = apperrors.New(apperrors.KindOutOfMemory, "context.create", fmt.Errorf("panic: %v", r))
		}
	}()

	c := &Context{
		debugJobID:    nextJobID(),
		security:      DefaultSecurityPolicy(),
		enabledCodecs: codecs.DefaultEnabledCodecs(),
		registry:      defaultRegistry(),
		logger:        noopLogger{},
		bitmapCapHint: 8,
		codecCapHint:  8,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.instances = make(map[int]*codecs.Instance, c.codecCapHint)
	c.outputFormats = make(map[int]string, 4)
	c.lastEncodedDims = make(map[int][2]int32, 4)
	c.bitmaps = bitmaps.NewContainer(c.bitmapCapHint)
	c.allocations = alloc.New()
	return c, nil
}

// DebugJobID returns the process-wide job identifier assigned at Create.
func (c *Context) DebugJobID() uint64 { return c.debugJobID }

// GetVersionInfo reports build information sourced from the Go toolchain's
// embedded build info rather than linker-injected version variables.
func (c *Context) GetVersionInfo() VersionInfo {
	info := VersionInfo{Version: "dev"}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Version = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// ── I/O registration ────────────────────────────────────────────────────────

// reserveIoID checks the context is live and the io_id is unused, then
// reserves it with a nil placeholder so a concurrent second reservation of
// the same io_id (there should be none, under the single-executor
// contract, but GetCodec must not see a half-registered entry) fails
// DuplicateIoId rather than racing commitInstance.
func (c *Context) reserveIoID(ioID int, op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return apperrors.New(apperrors.KindInvalidArgument, op, nil)
	}
	if _, exists := c.instances[ioID]; exists {
		return apperrors.New(apperrors.KindDuplicateIoId, op, nil)
	}
	c.instances[ioID] = nil
	return nil
}

func (c *Context) commitInstance(ioID int, inst *codecs.Instance) {
	c.mu.Lock()
	c.instances[ioID] = inst
	c.ioIDList = append(c.ioIDList, ioID)
	c.mu.Unlock()
}

func (c *Context) abortReservation(ioID int) {
	c.mu.Lock()
	delete(c.instances, ioID)
	c.mu.Unlock()
}

// decodeProxy peeks the first bytes of proxy to select a decoder
// constructor from the registry, reconstructs a reader that includes the
// peeked bytes, constructs the decoder, and initializes it.
func (c *Context) decodeProxy(proxy ioproxy.Proxy) (codecs.Decoder, error) {
	peek := make([]byte, 16)
	n, _ := io.ReadFull(proxy, peek)
	peek = peek[:n]

	c.mu.Lock()
	ctor, _, err := c.registry.DecoderFor(peek, c.enabledCodecs)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	reader := io.MultiReader(bytes.NewReader(peek), proxy)
	dec, err := ctor(reader)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindImageDecodingError, "context.decode_proxy", err)
	}
	if err := dec.Initialize(c); err != nil {
		return nil, err
	}
	return dec, nil
}

// AddFile registers io_id bound to path, opened for reading (DirectionIn)
// or created/truncated for writing (DirectionOut).
func (c *Context) AddFile(ioID int, dir ioDirection, path string) error {
	if err := c.reserveIoID(ioID, "context.add_file"); err != nil {
		return err
	}

	pdir := ioproxy.In
	if dir == DirectionOut {
		pdir = ioproxy.Out
	}
	proxy, err := ioproxy.OpenFile(ioID, pdir, path)
	if err != nil {
		c.abortReservation(ioID)
		return err
	}

	if dir == DirectionOut {
		c.commitInstance(ioID, codecs.NewEncoderInstance(ioID, proxy, nil))
		return nil
	}

	dec, err := c.decodeProxy(proxy)
	if err != nil {
		proxy.Close()
		c.abortReservation(ioID)
		return err
	}
	c.commitInstance(ioID, codecs.NewDecoderInstance(ioID, proxy, dec))
	return nil
}

// AddInputBuffer registers io_id bound to b, read directly without copying.
// The caller must keep b alive for the job's duration.
func (c *Context) AddInputBuffer(ioID int, b []byte) error {
	if err := c.reserveIoID(ioID, "context.add_input_buffer"); err != nil {
		return err
	}
	proxy := ioproxy.NewBorrowedSliceProxy(ioID, b)
	dec, err := c.decodeProxy(proxy)
	if err != nil {
		c.abortReservation(ioID)
		return err
	}
	c.commitInstance(ioID, codecs.NewDecoderInstance(ioID, proxy, dec))
	return nil
}

// AddCopiedInputBuffer registers io_id bound to a copy of b, so the
// caller's slice can be reused or released immediately after this call.
func (c *Context) AddCopiedInputBuffer(ioID int, b []byte) error {
	if err := c.reserveIoID(ioID, "context.add_copied_input_buffer"); err != nil {
		return err
	}
	proxy := ioproxy.NewCopiedSliceProxy(ioID, b)
	dec, err := c.decodeProxy(proxy)
	if err != nil {
		c.abortReservation(ioID)
		return err
	}
	c.commitInstance(ioID, codecs.NewDecoderInstance(ioID, proxy, dec))
	return nil
}

// AddInputVector registers io_id bound to ownedBytes, taking ownership of
// it without copying (e.g. a buffer already read from a socket).
func (c *Context) AddInputVector(ioID int, ownedBytes []byte) error {
	if err := c.reserveIoID(ioID, "context.add_input_vector"); err != nil {
		return err
	}
	proxy := ioproxy.NewOwnedVectorProxy(ioID, ownedBytes)
	dec, err := c.decodeProxy(proxy)
	if err != nil {
		c.abortReservation(ioID)
		return err
	}
	c.commitInstance(ioID, codecs.NewDecoderInstance(ioID, proxy, dec))
	return nil
}

// AddOutputBuffer registers io_id as a growable in-memory output sink. The
// encoder itself is bound later, once Build/Execute knows the output
// format from the job description's chain spec.
func (c *Context) AddOutputBuffer(ioID int) error {
	if err := c.reserveIoID(ioID, "context.add_output_buffer"); err != nil {
		return err
	}
	proxy := ioproxy.NewOutputBufferProxy(ioID)
	c.commitInstance(ioID, codecs.NewEncoderInstance(ioID, proxy, nil))
	return nil
}

// ── codec / metadata queries ─────────────────────────────────────────────────

// GetCodec returns the codec instance bound to io_id. Codec instances are
// not separately borrow-tracked in this implementation — the Context mutex
// already serializes access to the instance map — so the only failure mode
// realized here is IoIdNotFound; FailedBorrow is reserved for a future
// caller that holds a codec instance across a suspension point.
func (c *Context) GetCodec(ioID int) (*codecs.Instance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inst, ok := c.instances[ioID]
	if !ok || inst == nil {
		return nil, apperrors.New(apperrors.KindIoIdNotFound, "context.get_codec", nil)
	}
	return inst, nil
}

func (c *Context) imageInfo(ioID int, scaled bool) (ImageInfo, error) {
	inst, err := c.GetCodec(ioID)
	if err != nil {
		return ImageInfo{}, err
	}
	dec, err := inst.GetDecoder()
	if err != nil {
		return ImageInfo{}, err
	}
	if scaled {
		return dec.GetScaledImageInfo(c)
	}
	return dec.GetUnscaledImageInfo(c)
}

func (c *Context) rotatedInfo(ioID int, scaled bool) (ImageInfo, error) {
	info, err := c.imageInfo(ioID, scaled)
	if err != nil {
		return ImageInfo{}, err
	}
	inst, err := c.GetCodec(ioID)
	if err != nil {
		return ImageInfo{}, err
	}
	dec, err := inst.GetDecoder()
	if err != nil {
		return ImageInfo{}, err
	}
	orientation, ok, err := dec.GetExifRotationFlag(c)
	if err != nil {
		return ImageInfo{}, err
	}
	if ok && exif.SwapsDimensions(orientation) {
		info.ImageWidth, info.ImageHeight = info.ImageHeight, info.ImageWidth
	}
	return info, nil
}

// GetUnscaledUnrotatedImageInfo returns the decoder's raw metadata, ignoring
// any EXIF rotation.
func (c *Context) GetUnscaledUnrotatedImageInfo(ioID int) (ImageInfo, error) {
	return c.imageInfo(ioID, false)
}

// GetUnscaledRotatedImageInfo swaps width/height when the EXIF orientation
// is 5-8.
func (c *Context) GetUnscaledRotatedImageInfo(ioID int) (ImageInfo, error) {
	return c.rotatedInfo(ioID, false)
}

// GetScaledUnrotatedImageInfo returns metadata reflecting any scale-on-decode
// hint, ignoring EXIF rotation.
func (c *Context) GetScaledUnrotatedImageInfo(ioID int) (ImageInfo, error) {
	return c.imageInfo(ioID, true)
}

// GetScaledRotatedImageInfo combines the scaled query with the EXIF
// rotation swap.
func (c *Context) GetScaledRotatedImageInfo(ioID int) (ImageInfo, error) {
	return c.rotatedInfo(ioID, true)
}

// GetImageDecodes returns metadata for every registered input io_id, sorted
// by io_id. An io_id whose metadata query fails, or that is itself an
// output (not a decoder), is silently omitted.
func (c *Context) GetImageDecodes() []DecodeSummary {
	c.mu.Lock()
	ids := make([]int, len(c.ioIDList))
	copy(ids, c.ioIDList)
	c.mu.Unlock()
	sort.Ints(ids)

	var out []DecodeSummary
	for _, id := range ids {
		inst, err := c.GetCodec(id)
		if err != nil {
			continue
		}
		dec, err := inst.GetDecoder()
		if err != nil {
			continue
		}
		info, err := dec.GetUnscaledImageInfo(c)
		if err != nil {
			continue
		}
		out = append(out, DecodeSummary{
			IoID:               id,
			PreferredMimeType:  info.PreferredMimeType,
			PreferredExtension: info.PreferredExtension,
			Width:              info.ImageWidth,
			Height:             info.ImageHeight,
		})
	}
	return out
}

// TellDecoder forwards cmd to the decoder bound to io_id. Unknown commands
// are the decoder's own no-op, not an error here.
func (c *Context) TellDecoder(ioID int, cmd codecs.DecoderCommand) error {
	inst, err := c.GetCodec(ioID)
	if err != nil {
		return err
	}
	dec, err := inst.GetDecoder()
	if err != nil {
		return err
	}
	return dec.TellDecoder(c, cmd)
}

// GetOutputBufferSlice returns the bytes an output-buffer io_id has
// accumulated so far.
func (c *Context) GetOutputBufferSlice(ioID int) ([]byte, error) {
	inst, err := c.GetCodec(ioID)
	if err != nil {
		return nil, err
	}
	if inst.Dir != ioproxy.Out {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "context.get_output_buffer_slice", nil)
	}
	b, ok := inst.Proxy.OutputBytes()
	if !ok {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "context.get_output_buffer_slice", nil)
	}
	return b, nil
}

// ── configuration ────────────────────────────────────────────────────────────

// ConfigureSecurity overrides only the fields set in policy, leaving the
// rest of the current policy unchanged. Calling it twice with an identical
// policy is idempotent.
func (c *Context) ConfigureSecurity(policy SecurityPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.security = c.security.merge(policy)
}

// ConfigureGraphRecording sets whether the job records its graph for
// debugging. The CI environment variable, compared case-insensitively to
// "true", forces recording off regardless of the requested mode.
func (c *Context) ConfigureGraphRecording(mode bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if strings.EqualFold(os.Getenv("CI"), "true") {
		mode = false
	}
	c.graphRecording = mode
}

// ── bitmap / allocation borrowing ────────────────────────────────────────────

// BorrowBitmaps returns shared access to the bitmaps container, along with
// a release function the caller must call exactly once. Fails with
// FailedBorrow if an exclusive borrow is outstanding.
func (c *Context) BorrowBitmaps() (*bitmaps.Container, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bitmapsExclusive {
		return nil, nil, apperrors.New(apperrors.KindFailedBorrow, "context.borrow_bitmaps", nil)
	}
	c.bitmapsShared++
	return c.bitmaps, func() {
		c.mu.Lock()
		c.bitmapsShared--
		c.mu.Unlock()
	}, nil
}

// BorrowBitmapsMut returns exclusive access to the bitmaps container, along
// with a release function the caller must call exactly once. Fails with
// FailedBorrow if any borrow (shared or exclusive) is already outstanding.
func (c *Context) BorrowBitmapsMut() (*bitmaps.Container, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bitmapsExclusive || c.bitmapsShared > 0 {
		return nil, nil, apperrors.New(apperrors.KindFailedBorrow, "context.borrow_bitmaps_mut", nil)
	}
	c.bitmapsExclusive = true
	return c.bitmaps, func() {
		c.mu.Lock()
		c.bitmapsExclusive = false
		c.mu.Unlock()
	}, nil
}

// MemCalloc returns a zero-initialized, aligned allocation recorded in the
// job's allocation container. originFile/originLine are attached to any
// error so a caller can trace the request site.
func (c *Context) MemCalloc(size, alignment int, originFile string, originLine int) (unsafe.Pointer, error) {
	ptr, err := c.allocations.Allocate(size, alignment)
	if err != nil {
		return nil, apperrors.New(apperrors.KindAllocationFailed,
			fmt.Sprintf("context.mem_calloc[%s:%d]", originFile, originLine), err)
	}
	return ptr, nil
}

// MemFree releases a previously allocated pointer; returns false if the
// pointer is unknown (already freed, or foreign).
func (c *Context) MemFree(ptr unsafe.Pointer) bool {
	return c.allocations.Free(ptr)
}

// ── graph.EngineContext / codecs.DecodeContext / codecs.EncodeContext ───────

// CreateAndBorrowBitmap allocates a bitmap honoring the job's max_frame_size
// policy and immediately returns an exclusive window into it.
func (c *Context) CreateAndBorrowBitmap(
	w, h int,
	layout bitmaps.PixelLayout,
	alphaMeaningful, zeroed bool,
	cs bitmaps.ColorSpace,
	compositing bitmaps.Compositing,
) (bitmaps.Key, *bitmaps.Window, error) {
	c.mu.Lock()
	limit := c.security.MaxFrameSize.toLimit()
	bmps := c.bitmaps
	c.mu.Unlock()

	key, err := bmps.CreateBitmapU8(w, h, layout, alphaMeaningful, zeroed, cs, compositing, limit)
	if err != nil {
		return bitmaps.Key{}, nil, err
	}
	win, err := bmps.TryBorrowMut(key)
	if err != nil {
		return bitmaps.Key{}, nil, err
	}
	return key, win, nil
}

// BorrowBitmap returns the bitmap for key without the exclusive-window
// discipline, for encoders that only need to read pixels.
func (c *Context) BorrowBitmap(key bitmaps.Key) (*bitmaps.Bitmap, error) {
	c.mu.Lock()
	bmps := c.bitmaps
	c.mu.Unlock()
	bmp, ok := bmps.Get(key)
	if !ok {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "context.borrow_bitmap", nil)
	}
	return bmp, nil
}

// DecodeFrame decodes the next frame from io_id's decoder. Rejects with
// SizeLimitExceeded, before any pixel work happens, if the decoder's header
// dimensions exceed the job's max_decode_size policy.
func (c *Context) DecodeFrame(ioID int) (bitmaps.Key, error) {
	inst, err := c.GetCodec(ioID)
	if err != nil {
		return bitmaps.Key{}, err
	}
	dec, err := inst.GetDecoder()
	if err != nil {
		return bitmaps.Key{}, err
	}

	c.mu.Lock()
	maxDecode := c.security.MaxDecodeSize
	c.mu.Unlock()
	if maxDecode != nil {
		info, err := dec.GetUnscaledImageInfo(c)
		if err != nil {
			return bitmaps.Key{}, err
		}
		if maxDecode.toLimit().Exceeds(int(info.ImageWidth), int(info.ImageHeight)) {
			return bitmaps.Key{}, apperrors.New(apperrors.KindSizeLimitExceeded, "context.decode_frame", nil)
		}
	}

	start := time.Now()
	key, err := dec.ReadFrame(c)
	if err != nil {
		c.recordError("decode", err)
		return bitmaps.Key{}, err
	}
	c.recordTiming("decode", time.Since(start))
	if bmp, ok := c.bitmapByKey(key); ok {
		c.recordThroughput(int64(len(bmp.Buf())))
	}
	return key, nil
}

// EncodeFrame writes the bitmap identified by key through io_id's encoder,
// recording its final dimensions for the job result's EncodeSummary.
// Rejects with SizeLimitExceeded, before any bytes are written, if the
// bitmap's dimensions exceed the job's max_encode_size policy.
func (c *Context) EncodeFrame(ioID int, key bitmaps.Key) error {
	inst, err := c.GetCodec(ioID)
	if err != nil {
		return err
	}
	enc, err := inst.GetEncoder()
	if err != nil {
		return err
	}
	bmp, err := c.BorrowBitmap(key)
	if err != nil {
		return err
	}

	c.mu.Lock()
	maxEncode := c.security.MaxEncodeSize
	c.mu.Unlock()
	if maxEncode != nil && maxEncode.toLimit().Exceeds(bmp.Width, bmp.Height) {
		return apperrors.New(apperrors.KindSizeLimitExceeded, "context.encode_frame", nil)
	}

	c.mu.Lock()
	c.lastEncodedDims[ioID] = [2]int32{int32(bmp.Width), int32(bmp.Height)}
	c.mu.Unlock()

	start := time.Now()
	if err := enc.Encode(c, key, inst.Proxy); err != nil {
		c.recordError("encode", err)
		return err
	}
	c.recordTiming("encode", time.Since(start))
	c.recordThroughput(int64(bmp.Stride * bmp.Height))
	return nil
}

// bitmapByKey fetches a bitmap for metrics purposes without the borrow
// discipline BorrowBitmap enforces — the caller here never mutates it.
func (c *Context) bitmapByKey(key bitmaps.Key) (*bitmaps.Bitmap, bool) {
	c.mu.Lock()
	bmps := c.bitmaps
	c.mu.Unlock()
	if bmps == nil {
		return nil, false
	}
	return bmps.Get(key)
}

// recordTiming and recordThroughput forward to the ambient MetricsCollector,
// if one is attached; both are no-ops otherwise.
func (c *Context) recordTiming(op string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordProcessingTime(op, d)
	}
}

func (c *Context) recordThroughput(n int64) {
	if c.metrics != nil && n > 0 {
		c.metrics.RecordThroughput(n)
	}
}

func (c *Context) recordError(op string, err error) {
	if c.metrics != nil {
		c.metrics.RecordError(op, string(apperrors.KindOf(err)))
	}
}

// ── teardown ─────────────────────────────────────────────────────────────────

// Destroy releases codecs (closing their I/O proxies), then bitmaps, then
// allocations, in that order. Idempotent: a second call is a safe no-op.
// Codec-close errors are logged rather than propagated, matching the
// teardown path's local-recovery allowance.
func (c *Context) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil
	}
	c.destroyed = true

	for _, id := range c.ioIDList {
		inst := c.instances[id]
		if inst == nil {
			continue
		}
		if err := inst.Close(); err != nil {
			c.logger.Error("codec close failed", "io_id", id, "err", err)
		}
	}
	c.instances = nil
	c.ioIDList = nil

	if c.bitmaps != nil {
		if err := c.bitmaps.Clear(); err != nil {
			c.logger.Error("bitmap container clear failed", "err", err)
		}
		c.bitmaps = nil
	}

	if c.allocations != nil {
		c.allocations.Close()
		c.allocations = nil
	}

	return nil
}

// LastError returns the first error reported to the outward error buffer
// during this job, or nil if none was reported.
func (c *Context) LastError() error { return c.outwardErr.get() }
