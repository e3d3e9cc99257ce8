package bitmaps

// Window is a scoped exclusive view into a bitmap's pixel region, exposing
// row-indexed typed accessors. At most one outstanding Window per bitmap may
// exist at a time (enforced by Container.TryBorrowMut).
type Window struct {
	bitmap *Bitmap
	key    Key
	c      *Container
}

// Row returns the raw bytes of row y (0-indexed), sliced to the bitmap's
// width*bpp (excluding any stride padding).
func (w *Window) Row(y int) []byte {
	bpp := w.bitmap.Layout.BytesPerPixel()
	start := y * w.bitmap.Stride
	return w.bitmap.buf[start : start+w.bitmap.Width*bpp]
}

// RowBGRA returns row y reinterpreted as a slice of BGRA pixels. Panics if
// the bitmap's layout is not LayoutBGRA.
func (w *Window) RowBGRA(y int) []PixelBGRA {
	if w.bitmap.Layout != LayoutBGRA {
		panic("bitmaps: RowBGRA called on non-BGRA bitmap")
	}
	row := w.Row(y)
	out := make([]PixelBGRA, len(row)/4)
	for i := range out {
		out[i] = PixelBGRA{B: row[i*4], G: row[i*4+1], R: row[i*4+2], A: row[i*4+3]}
	}
	return out
}

// SetRowBGRA writes px back into row y as raw BGRA bytes.
func (w *Window) SetRowBGRA(y int, px []PixelBGRA) {
	row := w.Row(y)
	for i, p := range px {
		row[i*4] = p.B
		row[i*4+1] = p.G
		row[i*4+2] = p.R
		row[i*4+3] = p.A
	}
}

// Bitmap returns the underlying Bitmap's metadata (width, height, stride,
// layout, ...). The returned value must not be mutated directly; use the
// Row*/SetRow* accessors.
func (w *Window) Bitmap() *Bitmap { return w.bitmap }

// Close releases the exclusive borrow, allowing future TryBorrowMut calls
// against the same key to succeed.
func (w *Window) Close() {
	if w == nil || w.c == nil {
		return
	}
	w.c.release(w.key)
}

// PixelBGRA is one 32-bit BGRA pixel.
type PixelBGRA struct {
	B, G, R, A uint8
}
