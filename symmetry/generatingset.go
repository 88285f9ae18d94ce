// Package symmetry computes the closure of a puzzle's declared
// symmetry transformations and canonicalizes states under the group
// action. One representative per symmetry class is what lets pruning
// tables and work chunks shrink by (almost) the group order.
package symmetry

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/twistsearch/twistsearch/puzzle"
)

// ErrDegenerateGroup means the declared symmetries do not close
// consistently with the move set. This is a setup-time failure; nothing
// should start a search after seeing it.
var ErrDegenerateGroup = errors.New("symmetry generators do not close over the move set")

// maxOrder caps closure growth. Real twisty-puzzle symmetry groups top
// out at 48 elements; anything past this cap is a degenerate
// declaration, not a big group.
const maxOrder = 256

// GeneratingSet is the finite closure of valid symmetries under
// composition. Index 0 is always the identity. Immutable after New and
// shared read-only by every search worker.
type GeneratingSet struct {
	def  *puzzle.Def
	syms []puzzle.Transform
	invs []puzzle.Transform

	// moveImage[g][m] = index of sym_g · m · sym_g⁻¹
	moveImage [][]int
}

// Scratch holds the per-caller buffers canonicalization works in, so
// the hot path never allocates. A Scratch is exclusively owned; give
// each worker its own.
type Scratch struct {
	best puzzle.State
	cand puzzle.State
	tmp  puzzle.State
}

// New validates each declared generator against the move set, discards
// invalid ones with a warning, and closes the survivors under
// composition. An empty or fully-invalid declaration yields the
// order-1 group, which is valid and cheap, not an error.
func New(def *puzzle.Def, generators []puzzle.Transform) (*GeneratingSet, error) {
	gs := &GeneratingSet{def: def}
	id := puzzle.IdentityTransform(def.Size)
	gs.syms = []puzzle.Transform{id}
	gs.invs = []puzzle.Transform{id.Clone()}

	var valid []puzzle.Transform
	for i, g := range generators {
		if len(g.Perm) != def.Size {
			return nil, fmt.Errorf("symmetry generator %d: wrong size %d, want %d: %w",
				i, len(g.Perm), def.Size, ErrDegenerateGroup)
		}
		if !gs.mapsMovesToMoves(g) {
			log.Warn().Str("puzzle", def.Name).Int("generator", i).
				Msg("symmetry does not map the move set to itself; excluding it")
			continue
		}
		valid = append(valid, g.Clone())
	}

	seen := map[string]int{id.Key(): 0}
	for frontier := 0; frontier < len(gs.syms); frontier++ {
		for _, g := range valid {
			next := puzzle.IdentityTransform(def.Size)
			puzzle.Compose(&next, gs.syms[frontier], g, def.OriMod)
			if _, ok := seen[next.Key()]; ok {
				continue
			}
			if len(gs.syms) >= maxOrder {
				return nil, fmt.Errorf("closure exceeded %d elements: %w", maxOrder, ErrDegenerateGroup)
			}
			seen[next.Key()] = len(gs.syms)
			inv := puzzle.IdentityTransform(def.Size)
			puzzle.Invert(&inv, next, def.OriMod)
			gs.syms = append(gs.syms, next)
			gs.invs = append(gs.invs, inv)
		}
	}

	if err := gs.buildMoveImages(); err != nil {
		return nil, err
	}
	log.Debug().Str("puzzle", def.Name).Int("order", len(gs.syms)).
		Int("declared", len(generators)).Int("valid", len(valid)).
		Msg("symmetry closure computed")
	return gs, nil
}

func (gs *GeneratingSet) mapsMovesToMoves(g puzzle.Transform) bool {
	def := gs.def
	gInv := puzzle.IdentityTransform(def.Size)
	puzzle.Invert(&gInv, g, def.OriMod)
	tmp := puzzle.IdentityTransform(def.Size)
	conj := puzzle.IdentityTransform(def.Size)
	for mi := range def.Moves {
		puzzle.Compose(&tmp, g, def.Moves[mi].Trans, def.OriMod)
		puzzle.Compose(&conj, tmp, gInv, def.OriMod)
		if _, ok := def.MoveForTransform(conj); !ok {
			return false
		}
	}
	return true
}

func (gs *GeneratingSet) buildMoveImages() error {
	def := gs.def
	gs.moveImage = make([][]int, len(gs.syms))
	tmp := puzzle.IdentityTransform(def.Size)
	conj := puzzle.IdentityTransform(def.Size)
	for gi := range gs.syms {
		gs.moveImage[gi] = make([]int, len(def.Moves))
		for mi := range def.Moves {
			if gi == 0 {
				gs.moveImage[gi][mi] = mi
				continue
			}
			puzzle.Compose(&tmp, gs.syms[gi], def.Moves[mi].Trans, def.OriMod)
			puzzle.Compose(&conj, tmp, gs.invs[gi], def.OriMod)
			img, ok := def.MoveForTransform(conj)
			if !ok {
				// can only happen if a product of valid generators is
				// itself invalid, which contradicts the group action
				return fmt.Errorf("move %s has no image under symmetry %d: %w",
					def.Moves[mi].Name, gi, ErrDegenerateGroup)
			}
			gs.moveImage[gi][mi] = img
		}
	}
	return nil
}

// Order returns the group size, identity included.
func (gs *GeneratingSet) Order() int {
	return len(gs.syms)
}

// MoveImage returns the move that sym·m·sym⁻¹ names. Solutions found
// from a canonical representative are mapped back through this.
func (gs *GeneratingSet) MoveImage(symIdx, moveIdx int) int {
	return gs.moveImage[symIdx][moveIdx]
}

func (gs *GeneratingSet) NewScratch() *Scratch {
	n := 2 * gs.def.Size
	return &Scratch{
		best: make(puzzle.State, n),
		cand: make(puzzle.State, n),
		tmp:  make(puzzle.State, n),
	}
}

// CanonicalizeInto writes the minimal image of s under every symmetry
// into sc.best and returns it with the index of the symmetry achieving
// it (ties to the lowest index). The returned state aliases sc.best and
// is valid until the next call on the same Scratch.
func (gs *GeneratingSet) CanonicalizeInto(sc *Scratch, s puzzle.State) (puzzle.State, int) {
	copy(sc.best, s)
	if len(gs.syms) == 1 {
		return sc.best, 0
	}
	bestIdx := 0
	for gi := 1; gi < len(gs.syms); gi++ {
		gs.def.Conjugate(sc.cand, sc.tmp, s, gs.syms[gi], gs.invs[gi])
		if sc.cand.Compare(sc.best) < 0 {
			copy(sc.best, sc.cand)
			bestIdx = gi
		}
	}
	return sc.best, bestIdx
}

// Canonicalize is the allocating convenience form of CanonicalizeInto.
func (gs *GeneratingSet) Canonicalize(s puzzle.State) (puzzle.State, int) {
	sc := gs.NewScratch()
	canon, idx := gs.CanonicalizeInto(sc, s)
	return canon.Clone(), idx
}

// Stabilizers returns the indices of symmetries that fix s (the
// position looks the same after relabeling). Used by the symmetry
// listing utility and for fixed-point accounting in chunk planning.
func (gs *GeneratingSet) Stabilizers(s puzzle.State) []int {
	sc := gs.NewScratch()
	var out []int
	for gi := range gs.syms {
		if gi == 0 {
			out = append(out, 0)
			continue
		}
		gs.def.Conjugate(sc.cand, sc.tmp, s, gs.syms[gi], gs.invs[gi])
		if sc.cand.Equal(s) {
			out = append(out, gi)
		}
	}
	return out
}
