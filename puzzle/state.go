package puzzle

import "bytes"

// State is a fixed-layout snapshot of a puzzle position: the first Size
// bytes are the permutation (which piece currently sits in each slot),
// the next Size bytes are per-slot orientations. States are value
// buffers; they are copied per recursion frame and never shared mutably
// across goroutines.
type State []uint8

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) Equal(o State) bool {
	return bytes.Equal(s, o)
}

// Compare imposes the total order used for canonicalization ties and
// minimal-image selection. It is plain byte order; nothing downstream
// depends on anything but it being total and consistent.
func (s State) Compare(o State) int {
	return bytes.Compare(s, o)
}

// Key returns a map key for seen-sets. The conversion copies, so the
// key stays valid after the state buffer is reused.
func (s State) Key() string {
	return string(s)
}
