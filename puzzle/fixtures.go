package puzzle

// Built-in puzzle definitions. The cyclic puzzle is the smallest
// nontrivial fixture; the pocket cube (2x2x2 corners, U/R/F grips) is
// the smallest real twisty puzzle. Larger families are declared by
// callers through NewDef with their own tables.

// Cyclic returns an n-element cyclic permutation puzzle with a forward
// and a backward rotation on a single grip.
func Cyclic(n int) *Def {
	perm := make([]uint8, n)
	for i := range perm {
		perm[i] = uint8((i + 1) % n)
	}
	specs := GripTwists("R", "r", perm, nil, 1)
	d, err := NewDef("cyclic", n, 1, specs)
	if err != nil {
		// static tables; only reachable through a bug here
		panic(err)
	}
	return d
}

// CyclicRotation returns the generating rotation of the cyclic puzzle
// as a symmetry transform (it commutes with the move set).
func CyclicRotation(n int) Transform {
	perm := make([]uint8, n)
	for i := range perm {
		perm[i] = uint8((i + 1) % n)
	}
	return Transform{Perm: perm, Ori: make([]uint8, n)}
}

// Pocket cube corner slots.
const (
	urf = iota
	ufl
	ulb
	ubr
	dfr
	dlf
	dbl
	drb
)

// PocketCube returns the 2x2x2 cube restricted to the U, R and F grips
// (the DBL corner is the fixed reference, the standard way to pin the
// pocket cube's free rotation).
func PocketCube() *Def {
	specs := GripTwists("U", "u",
		[]uint8{ubr, urf, ufl, ulb, dfr, dlf, dbl, drb},
		nil, 3)
	specs = append(specs, GripTwists("R", "r",
		[]uint8{dfr, ufl, ulb, urf, drb, dlf, dbl, ubr},
		[]uint8{2, 0, 0, 1, 1, 0, 0, 2}, 3)...)
	specs = append(specs, GripTwists("F", "f",
		[]uint8{ufl, dlf, ulb, ubr, urf, dfr, dbl, drb},
		[]uint8{1, 2, 0, 0, 2, 1, 0, 0}, 3)...)
	d, err := NewDef("pocket", 8, 3, specs)
	if err != nil {
		panic(err)
	}
	return d
}

// PocketCubeRotation returns the 120° whole-cube rotation about the
// URF-DBL diagonal. Conjugating by it maps the U, R and F grips onto
// each other, so it generates an order-3 symmetry group of the move
// set.
func PocketCubeRotation() Transform {
	return Transform{
		Perm: []uint8{urf, dfr, dlf, ufl, ubr, drb, dbl, ulb},
		Ori:  []uint8{1, 2, 1, 2, 2, 1, 2, 1},
	}
}
