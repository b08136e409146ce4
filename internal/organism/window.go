package organism

// Window is a fixed-length memory of recent moves. Pushing a bit appends it
// on the right and evicts the leftmost bit. A zero-length window ignores
// pushes.
type Window struct {
	bits []bool
}

func NewWindow(initial []bool) *Window {
	return &Window{bits: append([]bool(nil), initial...)}
}

func (w *Window) Len() int {
	return len(w.bits)
}

func (w *Window) Push(bit bool) {
	if len(w.bits) == 0 {
		return
	}
	copy(w.bits, w.bits[1:])
	w.bits[len(w.bits)-1] = bit
}

// Reset overwrites the window contents with initial, resizing if needed.
func (w *Window) Reset(initial []bool) {
	w.bits = append(w.bits[:0], initial...)
}

// Bits exposes the window without copying; callers must not retain it.
func (w *Window) Bits() []bool {
	return w.bits
}

func (w *Window) Snapshot() []bool {
	return append([]bool(nil), w.bits...)
}
