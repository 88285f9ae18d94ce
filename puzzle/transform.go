package puzzle

import "fmt"

// Transform permutes slots and adds orientation deltas. Both moves and
// whole-puzzle symmetries are Transforms; a State is structurally the
// same data (a transform from the solved position), which is what makes
// symmetry conjugation a pair of compositions.
type Transform struct {
	Perm []uint8 // Perm[i] = slot whose content moves into slot i
	Ori  []uint8 // orientation increment added to the piece entering slot i
}

// IdentityTransform returns the do-nothing transform for size slots.
func IdentityTransform(size int) Transform {
	t := Transform{
		Perm: make([]uint8, size),
		Ori:  make([]uint8, size),
	}
	for i := range t.Perm {
		t.Perm[i] = uint8(i)
	}
	return t
}

func (t Transform) Clone() Transform {
	c := Transform{
		Perm: make([]uint8, len(t.Perm)),
		Ori:  make([]uint8, len(t.Ori)),
	}
	copy(c.Perm, t.Perm)
	copy(c.Ori, t.Ori)
	return c
}

func (t Transform) IsIdentity() bool {
	for i, p := range t.Perm {
		if int(p) != i || t.Ori[i] != 0 {
			return false
		}
	}
	return true
}

// Key returns a comparable representation, used to index transforms
// when matching symmetry conjugates back to named moves.
func (t Transform) Key() string {
	b := make([]byte, 0, len(t.Perm)*2)
	b = append(b, t.Perm...)
	b = append(b, t.Ori...)
	return string(b)
}

func validatePerm(perm []uint8) error {
	seen := make([]bool, len(perm))
	for _, p := range perm {
		if int(p) >= len(perm) {
			return fmt.Errorf("permutation entry %d out of range", p)
		}
		if seen[p] {
			return fmt.Errorf("permutation entry %d repeated", p)
		}
		seen[p] = true
	}
	return nil
}

// Compose sets dst = a·b ("a then b" in move order): applying a then b
// to a state is the same as applying a·b once. dst must not alias a
// or b.
func Compose(dst *Transform, a, b Transform, oriMod uint8) {
	for i := range dst.Perm {
		dst.Perm[i] = a.Perm[b.Perm[i]]
		dst.Ori[i] = (a.Ori[b.Perm[i]] + b.Ori[i]) % oriMod
	}
}

// Invert sets dst to t's inverse. dst must not alias t.
func Invert(dst *Transform, t Transform, oriMod uint8) {
	for i := range t.Perm {
		dst.Perm[t.Perm[i]] = uint8(i)
	}
	for i := range t.Perm {
		dst.Ori[i] = (oriMod - t.Ori[dst.Perm[i]]) % oriMod
	}
}

func TransformsEqual(a, b Transform) bool {
	for i := range a.Perm {
		if a.Perm[i] != b.Perm[i] || a.Ori[i] != b.Ori[i] {
			return false
		}
	}
	return true
}
