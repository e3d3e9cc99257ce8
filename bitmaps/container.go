package bitmaps

import (
	"sync"

	apperrors "github.com/pixelforge/imgcore/errors"
)

// FrameSizeLimit caps bitmap allocation by width/height and total megapixels,
// mirroring core.SecurityPolicy's max_frame_size field so this package does
// not need to import core (which in turn owns a Container).
type FrameSizeLimit struct {
	Width, Height int
	Megapixels    float64
}

// Exceeds reports whether a w x h allocation violates the limit.
func (l FrameSizeLimit) Exceeds(w, h int) bool {
	if l.Width > 0 && w > l.Width {
		return true
	}
	if l.Height > 0 && h > l.Height {
		return true
	}
	if l.Megapixels > 0 {
		mp := float64(w) * float64(h) / 1_000_000
		if mp > l.Megapixels {
			return true
		}
	}
	return false
}

type entry struct {
	bitmap   *Bitmap
	gen      uint32
	borrowed bool
}

// Container is a keyed store of Bitmap values; hands out scoped mutable
// windows. Keys are minted from a monotonically increasing 32-bit counter;
// no key is reused within a container's lifetime.
type Container struct {
	mu      sync.Mutex
	next    uint32
	entries map[uint32]*entry
}

// NewContainer returns an empty Container with capacity hint cap.
func NewContainer(cap int) *Container {
	return &Container{entries: make(map[uint32]*entry, cap)}
}

// CreateBitmapU8 allocates a bitmap honoring limit; fails with
// SizeLimitExceeded if the width, the height or the total megapixels
// exceeds it (see FrameSizeLimit.Exceeds). No byte-size cap is applied.
func (c *Container) CreateBitmapU8(
	w, h int,
	layout PixelLayout,
	alphaMeaningful bool,
	zeroed bool,
	cs ColorSpace,
	compositing Compositing,
	limit FrameSizeLimit,
) (Key, error) {
	if w <= 0 || h <= 0 {
		return Key{}, apperrors.New(apperrors.KindInvalidArgument, "bitmaps.create_bitmap_u8",
			apperrors.ErrInvalidDimensions)
	}
	if limit.Exceeds(w, h) {
		return Key{}, apperrors.New(apperrors.KindSizeLimitExceeded, "bitmaps.create_bitmap_u8", nil)
	}

	bpp := layout.BytesPerPixel()
	stride := w * bpp
	buf := make([]byte, h*stride) // make() always zero-initializes in Go

	bmp := &Bitmap{
		Width:        w,
		Height:       h,
		Stride:       stride,
		Layout:       layout,
		ColorSpace:   cs,
		Compositing:  compositing,
		AlphaMeaning: alphaMeaningful,
		buf:          buf,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	c.entries[id] = &entry{bitmap: bmp, gen: id}
	return Key{id: id, gen: id}, nil
}

// TryBorrowMut returns a scoped exclusive Window; fails with FailedBorrow if
// another window is outstanding, InvalidKey-shaped InvalidArgument if the
// key is unknown or stale.
func (c *Container) TryBorrowMut(key Key) (*Window, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.id]
	if !ok || e.gen != key.gen {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "bitmaps.try_borrow_mut", nil)
	}
	if e.borrowed {
		return nil, apperrors.New(apperrors.KindFailedBorrow, "bitmaps.try_borrow_mut", nil)
	}
	e.borrowed = true
	return &Window{bitmap: e.bitmap, key: key, c: c}, nil
}

func (c *Container) release(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key.id]; ok && e.gen == key.gen {
		e.borrowed = false
	}
}

// Get returns the Bitmap for key without borrow enforcement, for read-only
// metadata access (e.g. image info queries). Returns false if unknown.
func (c *Container) Get(key Key) (*Bitmap, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.id]
	if !ok || e.gen != key.gen {
		return nil, false
	}
	return e.bitmap, true
}

// Clear releases all bitmaps; fails if any is currently borrowed.
func (c *Container) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.borrowed {
			return apperrors.New(apperrors.KindFailedBorrow, "bitmaps.clear", nil)
		}
	}
	c.entries = make(map[uint32]*entry, 8)
	return nil
}

// Len returns the number of live bitmaps, for tests.
func (c *Container) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
