package alloc_test

import (
	"testing"
	"unsafe"

	"github.com/pixelforge/imgcore/alloc"
	apperrors "github.com/pixelforge/imgcore/errors"
)

func TestAllocateAlignment(t *testing.T) {
	c := alloc.New()
	for _, alignment := range []int{1, 8, 16, 64} {
		ptr, err := c.Allocate(128, alignment)
		if err != nil {
			t.Fatalf("Allocate(128, %d): %v", alignment, err)
		}
		if uintptr(ptr)%uintptr(alignment) != 0 {
			t.Fatalf("pointer %v not aligned to %d", ptr, alignment)
		}
	}
}

func TestAllocateRejectsNonPowerOfTwoAlignment(t *testing.T) {
	c := alloc.New()
	_, err := c.Allocate(16, 3)
	if apperrors.KindOf(err) != apperrors.KindInvalidArgument {
		t.Fatalf("kind = %s, want InvalidArgument", apperrors.KindOf(err))
	}
}

func TestAllocateRejectsZeroSize(t *testing.T) {
	c := alloc.New()
	_, err := c.Allocate(0, 8)
	if apperrors.KindOf(err) != apperrors.KindInvalidArgument {
		t.Fatalf("kind = %s, want InvalidArgument", apperrors.KindOf(err))
	}
}

func TestFreeUnknownPointerReturnsFalse(t *testing.T) {
	c := alloc.New()
	if c.Free(unsafe.Pointer(uintptr(0xdead))) {
		t.Fatal("Free of an untracked pointer returned true")
	}
}

func TestFreeThenDoubleFreeReturnsFalse(t *testing.T) {
	c := alloc.New()
	ptr, err := c.Allocate(32, 8)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if !c.Free(ptr) {
		t.Fatal("first Free returned false")
	}
	if c.Free(ptr) {
		t.Fatal("second Free of the same pointer returned true")
	}
}

func TestLiveCountAndClose(t *testing.T) {
	c := alloc.New()
	for i := 0; i < 3; i++ {
		if _, err := c.Allocate(16, 8); err != nil {
			t.Fatalf("Allocate: %v", err)
		}
	}
	if n := c.LiveCount(); n != 3 {
		t.Fatalf("LiveCount() = %d, want 3", n)
	}
	if freed := c.Close(); freed != 3 {
		t.Fatalf("Close() = %d, want 3", freed)
	}
	if n := c.LiveCount(); n != 0 {
		t.Fatalf("LiveCount() after Close = %d, want 0", n)
	}
}
