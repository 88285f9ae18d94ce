package puzzle

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Move is a named transformation with an inverse. Moves sharing a grip
// (the physical axis they turn) are non-independent: two consecutive
// moves on the same grip always have a shorter or reordered equivalent,
// which is what move-order pruning exploits.
type Move struct {
	Name        string
	Axis        int // grip class index
	Trans       Transform
	InverseIdx  int // index of the inverse move, -1 if not in the move set
	SelfInverse bool
}

// MoveSpec is the caller-facing declaration of a move. Ori may be nil
// for pure permutation moves.
type MoveSpec struct {
	Name string
	Grip string
	Perm []uint8
	Ori  []uint8
}

// Def is a puzzle family definition: the solved state, the move list
// and everything precomputed from it (grip classes, the grip
// commutation matrix, transform-to-move lookup). A Def is immutable
// after construction and safe for concurrent readers.
type Def struct {
	Name   string
	Size   int
	OriMod uint8

	Moves []Move
	Axes  []string

	solved      State
	moveByName  map[string]int
	moveByTrans map[string]int
	commutes    [][]bool
	folds       [][]bool
}

func NewDef(name string, size int, oriMod uint8, specs []MoveSpec) (*Def, error) {
	if size < 1 {
		return nil, fmt.Errorf("puzzle %s: size must be positive", name)
	}
	if oriMod < 1 {
		oriMod = 1
	}
	d := &Def{
		Name:        name,
		Size:        size,
		OriMod:      oriMod,
		moveByName:  make(map[string]int),
		moveByTrans: make(map[string]int),
	}
	d.solved = make(State, 2*size)
	for i := 0; i < size; i++ {
		d.solved[i] = uint8(i)
	}

	axisIdx := make(map[string]int)
	for _, spec := range specs {
		if len(spec.Perm) != size {
			return nil, fmt.Errorf("puzzle %s: move %s has %d permutation entries, want %d",
				name, spec.Name, len(spec.Perm), size)
		}
		if err := validatePerm(spec.Perm); err != nil {
			return nil, fmt.Errorf("puzzle %s: move %s: %w", name, spec.Name, err)
		}
		ori := spec.Ori
		if ori == nil {
			ori = make([]uint8, size)
		}
		if len(ori) != size {
			return nil, fmt.Errorf("puzzle %s: move %s has %d orientation entries, want %d",
				name, spec.Name, len(ori), size)
		}
		for _, o := range ori {
			if o >= oriMod {
				return nil, fmt.Errorf("puzzle %s: move %s orientation %d out of range (mod %d)",
					name, spec.Name, o, oriMod)
			}
		}
		if _, dup := d.moveByName[spec.Name]; dup {
			return nil, fmt.Errorf("puzzle %s: duplicate move name %s", name, spec.Name)
		}
		ax, ok := axisIdx[spec.Grip]
		if !ok {
			ax = len(d.Axes)
			axisIdx[spec.Grip] = ax
			d.Axes = append(d.Axes, spec.Grip)
		}
		t := Transform{Perm: append([]uint8(nil), spec.Perm...), Ori: append([]uint8(nil), ori...)}
		if prev, dup := d.moveByTrans[t.Key()]; dup {
			log.Warn().Str("puzzle", name).Str("move", spec.Name).
				Str("same-as", d.Moves[prev].Name).
				Msg("two moves share a transformation; this is usually redundant")
		} else {
			d.moveByTrans[t.Key()] = len(d.Moves)
		}
		d.moveByName[spec.Name] = len(d.Moves)
		d.Moves = append(d.Moves, Move{
			Name:       spec.Name,
			Axis:       ax,
			Trans:      t,
			InverseIdx: -1,
		})
	}

	// Resolve inverses now that the whole move list exists.
	inv := IdentityTransform(size)
	for i := range d.Moves {
		Invert(&inv, d.Moves[i].Trans, oriMod)
		d.Moves[i].SelfInverse = TransformsEqual(inv, d.Moves[i].Trans)
		if j, ok := d.moveByTrans[inv.Key()]; ok {
			d.Moves[i].InverseIdx = j
		}
	}

	d.buildCommutes()
	d.buildFolds()
	return d, nil
}

// buildCommutes records, per grip pair, whether every move on one grip
// commutes with every move on the other. Since all moves on a grip are
// powers of the same base turn, checking one representative per grip is
// enough.
func (d *Def) buildCommutes() {
	reps := make([]Transform, len(d.Axes))
	for _, m := range d.Moves {
		if reps[m.Axis].Perm == nil {
			reps[m.Axis] = m.Trans
		}
	}
	ab := IdentityTransform(d.Size)
	ba := IdentityTransform(d.Size)
	d.commutes = make([][]bool, len(d.Axes))
	for a := range d.commutes {
		d.commutes[a] = make([]bool, len(d.Axes))
		for b := range d.commutes[a] {
			if a == b {
				d.commutes[a][b] = true
				continue
			}
			if reps[a].Perm == nil || reps[b].Perm == nil {
				continue
			}
			Compose(&ab, reps[a], reps[b], d.OriMod)
			Compose(&ba, reps[b], reps[a], d.OriMod)
			d.commutes[a][b] = TransformsEqual(ab, ba)
		}
	}
}

// buildFolds records, for each same-grip move pair, whether the pair's
// composite is the identity or a single move already in the set. When a
// grip carries every power of its base turn this holds for all of its
// pairs; a restricted grip (say only a quarter turn and its inverse)
// has pairs that genuinely need both moves.
func (d *Def) buildFolds() {
	comp := IdentityTransform(d.Size)
	d.folds = make([][]bool, len(d.Moves))
	for i := range d.Moves {
		d.folds[i] = make([]bool, len(d.Moves))
		for j := range d.Moves {
			if d.Moves[i].Axis != d.Moves[j].Axis {
				continue
			}
			Compose(&comp, d.Moves[i].Trans, d.Moves[j].Trans, d.OriMod)
			if comp.IsIdentity() {
				d.folds[i][j] = true
				continue
			}
			_, d.folds[i][j] = d.moveByTrans[comp.Key()]
		}
	}
}

// PairFolds reports whether playing move i directly followed by move j
// can never appear in a shortest sequence: the composite effect is the
// identity or is carried by a single move in the set.
func (d *Def) PairFolds(i, j int) bool {
	return d.folds[i][j]
}

// Solved returns a fresh copy of the solved state.
func (d *Def) Solved() State {
	return d.solved.Clone()
}

func (d *Def) IsSolved(s State) bool {
	return s.Equal(d.solved)
}

func (d *Def) MoveIndex(name string) (int, bool) {
	i, ok := d.moveByName[name]
	return i, ok
}

// MoveForTransform maps a transformation back to the move carrying it.
// Used when re-expressing symmetry conjugates and merged turns as named
// moves.
func (d *Def) MoveForTransform(t Transform) (int, bool) {
	i, ok := d.moveByTrans[t.Key()]
	return i, ok
}

// AxesCommute reports whether grips a and b are independent. Turns on
// independent grips can be reordered freely, so the search only visits
// one canonical ordering.
func (d *Def) AxesCommute(a, b int) bool {
	return d.commutes[a][b]
}

// stateTransform views a state as a transform from solved. No copy;
// the returned Transform aliases s.
func (d *Def) stateTransform(s State) Transform {
	return Transform{Perm: s[:d.Size], Ori: s[d.Size:]}
}

// Apply sets dst to src with the transform applied. dst must not alias
// src; both must be full-size state buffers.
func (d *Def) Apply(dst, src State, t Transform) {
	tr := d.stateTransform(dst)
	Compose(&tr, d.stateTransform(src), t, d.OriMod)
}

func (d *Def) ApplyMove(dst, src State, moveIdx int) {
	d.Apply(dst, src, d.Moves[moveIdx].Trans)
}

// Conjugate sets dst = gInv·s·g, the image of position s under the
// symmetry g. scratch must be a distinct full-size state buffer.
func (d *Def) Conjugate(dst, scratch, s State, g, gInv Transform) {
	tmp := d.stateTransform(scratch)
	Compose(&tmp, gInv, d.stateTransform(s), d.OriMod)
	out := d.stateTransform(dst)
	Compose(&out, tmp, g, d.OriMod)
}

// ApplySeq plays a move sequence onto a copy of s.
func (d *Def) ApplySeq(s State, seq []int) State {
	cur := s.Clone()
	next := make(State, len(s))
	for _, mi := range seq {
		d.ApplyMove(next, cur, mi)
		cur, next = next, cur
	}
	return cur
}

// MoveNames resolves move indices to names.
func (d *Def) MoveNames(seq []int) []string {
	out := make([]string, len(seq))
	for i, mi := range seq {
		out[i] = d.Moves[mi].Name
	}
	return out
}

// ParseSeq resolves whitespace-separated move names to indices. This is
// name lookup only; there is no alg grammar here.
func (d *Def) ParseSeq(names []string) ([]int, error) {
	seq := make([]int, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		i, ok := d.moveByName[n]
		if !ok {
			return nil, fmt.Errorf("puzzle %s: unknown move %q", d.Name, n)
		}
		seq = append(seq, i)
	}
	return seq, nil
}

// GripTwists expands one base turn into all of its distinct powers,
// named with the usual conventions (R, R2, R'). The base turn's order
// is found by repeated composition, the way move multiples are derived
// from a quantum turn.
func GripTwists(base string, grip string, perm []uint8, ori []uint8, oriMod uint8) []MoveSpec {
	if oriMod < 1 {
		oriMod = 1
	}
	size := len(perm)
	if ori == nil {
		ori = make([]uint8, size)
	}
	baseT := Transform{Perm: append([]uint8(nil), perm...), Ori: append([]uint8(nil), ori...)}
	id := IdentityTransform(size)

	// collect base^1 .. base^(order-1)
	var powers []Transform
	cur := baseT.Clone()
	for !TransformsEqual(cur, id) {
		powers = append(powers, cur.Clone())
		next := IdentityTransform(size)
		Compose(&next, cur, baseT, oriMod)
		cur = next
	}

	order := len(powers) + 1
	offset := (order - 1) / 2
	specs := make([]MoveSpec, 0, len(powers))
	for k, t := range powers {
		amount := ((k+1)+offset)%order - offset
		name := base
		switch {
		case amount == 1:
		case amount == -1:
			name = base + "'"
		case amount > 1:
			name = fmt.Sprintf("%s%d", base, amount)
		default:
			name = fmt.Sprintf("%s%d'", base, -amount)
		}
		specs = append(specs, MoveSpec{Name: name, Grip: grip, Perm: t.Perm, Ori: t.Ori})
	}
	return specs
}
