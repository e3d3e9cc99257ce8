// Package ioproxy implements the uniform readable/writable byte stream
// abstraction used by every codec instance.
package ioproxy

import (
	"bytes"
	"io"
	"os"

	apperrors "github.com/pixelforge/imgcore/errors"
	"github.com/pixelforge/imgcore/utils"
)

// Direction is In (decode source) or Out (encode sink).
type Direction int

const (
	In Direction = iota
	Out
)

// Proxy wraps one file, borrowed slice, owned buffer, or output sink,
// keyed by an io_id. Seek is not required.
type Proxy interface {
	IoID() int
	Direction() Direction
	io.Reader
	io.Writer
	// OutputBytes returns all bytes written so far, for output-buffer
	// proxies. Returns (nil, false) for every other proxy kind.
	OutputBytes() ([]byte, bool)
	Close() error
}

// roOnly and woOnly embed into proxies that only support one direction
// so Read/Write on the wrong side fail loudly instead of silently no-oping.
type roOnly struct{}

func (roOnly) Write(p []byte) (int, error) {
	return 0, apperrors.New(apperrors.KindIoError, "ioproxy.write", io.ErrClosedPipe)
}

type woOnly struct{}

func (woOnly) Read(p []byte) (int, error) {
	return 0, apperrors.New(apperrors.KindIoError, "ioproxy.read", io.EOF)
}

// ── File proxy ──────────────────────────────────────────────────────────────

// FileProxy wraps an os.File, opened per Direction.
type FileProxy struct {
	ioID int
	dir  Direction
	f    *os.File
}

// OpenFile opens path for reading (In) or creates/truncates it for writing
// (Out). Fails with IoOpenError on failure.
func OpenFile(ioID int, dir Direction, path string) (*FileProxy, error) {
	var (
		f   *os.File
		err error
	)
	if dir == In {
		f, err = os.Open(path)
	} else {
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	}
	if err != nil {
		return nil, apperrors.New(apperrors.KindIoOpenError, "ioproxy.open_file", err)
	}
	return &FileProxy{ioID: ioID, dir: dir, f: f}, nil
}

func (p *FileProxy) IoID() int          { return p.ioID }
func (p *FileProxy) Direction() Direction { return p.dir }
func (p *FileProxy) Read(b []byte) (int, error)  { return p.f.Read(b) }
func (p *FileProxy) Write(b []byte) (int, error) { return p.f.Write(b) }
func (p *FileProxy) OutputBytes() ([]byte, bool) { return nil, false }
func (p *FileProxy) Close() error                { return p.f.Close() }

// ── Borrowed input slice ────────────────────────────────────────────────────

// BorrowedSliceProxy reads directly from a caller-owned byte slice without
// copying. The caller must keep the slice alive for the job's duration.
type BorrowedSliceProxy struct {
	roOnly
	ioID int
	r    *bytes.Reader
}

// NewBorrowedSliceProxy wraps b for direct (uncopied) reading.
func NewBorrowedSliceProxy(ioID int, b []byte) *BorrowedSliceProxy {
	return &BorrowedSliceProxy{ioID: ioID, r: bytes.NewReader(b)}
}

func (p *BorrowedSliceProxy) IoID() int            { return p.ioID }
func (p *BorrowedSliceProxy) Direction() Direction { return In }
func (p *BorrowedSliceProxy) Read(b []byte) (int, error) { return p.r.Read(b) }
func (p *BorrowedSliceProxy) OutputBytes() ([]byte, bool) { return nil, false }
func (p *BorrowedSliceProxy) Close() error                { return nil }

// ── Copied input slice ──────────────────────────────────────────────────────

// CopiedSliceProxy copies b at construction time, so the caller's slice can
// be reused or released immediately after registration.
type CopiedSliceProxy struct {
	roOnly
	ioID int
	r    *bytes.Reader
}

// NewCopiedSliceProxy copies b and wraps the copy for reading.
func NewCopiedSliceProxy(ioID int, b []byte) *CopiedSliceProxy {
	return &CopiedSliceProxy{ioID: ioID, r: bytes.NewReader(utils.CloneBytes(b))}
}

func (p *CopiedSliceProxy) IoID() int            { return p.ioID }
func (p *CopiedSliceProxy) Direction() Direction { return In }
func (p *CopiedSliceProxy) Read(b []byte) (int, error) { return p.r.Read(b) }
func (p *CopiedSliceProxy) OutputBytes() ([]byte, bool) { return nil, false }
func (p *CopiedSliceProxy) Close() error                { return nil }

// ── Owned input vector ──────────────────────────────────────────────────────

// OwnedVectorProxy takes ownership of an already-allocated byte slice
// (e.g. one read from a socket) without copying it.
type OwnedVectorProxy struct {
	roOnly
	ioID int
	r    *bytes.Reader
}

// NewOwnedVectorProxy takes ownership of b for reading.
func NewOwnedVectorProxy(ioID int, b []byte) *OwnedVectorProxy {
	return &OwnedVectorProxy{ioID: ioID, r: bytes.NewReader(b)}
}

func (p *OwnedVectorProxy) IoID() int            { return p.ioID }
func (p *OwnedVectorProxy) Direction() Direction { return In }
func (p *OwnedVectorProxy) Read(b []byte) (int, error) { return p.r.Read(b) }
func (p *OwnedVectorProxy) OutputBytes() ([]byte, bool) { return nil, false }
func (p *OwnedVectorProxy) Close() error                { return nil }

// ── Output buffer sink ──────────────────────────────────────────────────────

// OutputBufferProxy is a growable in-memory output sink. Its OutputBytes
// returns all bytes written to date as a borrowed slice.
type OutputBufferProxy struct {
	woOnly
	ioID int
	buf  bytes.Buffer
}

// NewOutputBufferProxy creates an empty output-buffer proxy.
func NewOutputBufferProxy(ioID int) *OutputBufferProxy {
	return &OutputBufferProxy{ioID: ioID}
}

func (p *OutputBufferProxy) IoID() int            { return p.ioID }
func (p *OutputBufferProxy) Direction() Direction { return Out }
func (p *OutputBufferProxy) Write(b []byte) (int, error) { return p.buf.Write(b) }
func (p *OutputBufferProxy) OutputBytes() ([]byte, bool) { return p.buf.Bytes(), true }
func (p *OutputBufferProxy) Close() error                { return nil }
