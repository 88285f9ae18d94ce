// Package seqops manipulates move sequences as algebra, without
// searching: inversion, adjacent-move cancellation, merging, and
// deduplication by effect.
package seqops

import (
	"context"
	"errors"
	"fmt"

	"github.com/cespare/xxhash"

	"github.com/twistsearch/twistsearch/puzzle"
	"github.com/twistsearch/twistsearch/solver"
	"github.com/twistsearch/twistsearch/symmetry"
)

// Invert returns the inverse sequence: reversed order, each move
// replaced by its inverse. Fails if a non-self-inverse move has no
// inverse in the move set.
func Invert(def *puzzle.Def, seq []int) ([]int, error) {
	out := make([]int, len(seq))
	for i, mi := range seq {
		m := def.Moves[mi]
		inv := mi
		if !m.SelfInverse {
			if m.InverseIdx < 0 {
				return nil, fmt.Errorf("move %s has no inverse in the move set", m.Name)
			}
			inv = m.InverseIdx
		}
		out[len(seq)-1-i] = inv
	}
	return out, nil
}

// Cancel collapses adjacent same-grip moves. Each run on one grip is
// composed into a single transform; if the move set contains a move
// with that transform it replaces the run, and an identity drops the
// run entirely. A collapse can bring two more same-grip moves
// together, so the pass repeats to a fixpoint.
func Cancel(def *puzzle.Def, seq []int) []int {
	out := append([]int(nil), seq...)
	for {
		next, changed := cancelOnce(def, out)
		out = next
		if !changed {
			return out
		}
	}
}

func cancelOnce(def *puzzle.Def, seq []int) ([]int, bool) {
	out := make([]int, 0, len(seq))
	changed := false
	for i := 0; i < len(seq); {
		j := i + 1
		axis := def.Moves[seq[i]].Axis
		for j < len(seq) && def.Moves[seq[j]].Axis == axis {
			j++
		}
		if j == i+1 {
			out = append(out, seq[i])
			i = j
			continue
		}
		acc := def.Moves[seq[i]].Trans.Clone()
		tmp := puzzle.IdentityTransform(def.Size)
		for k := i + 1; k < j; k++ {
			puzzle.Compose(&tmp, acc, def.Moves[seq[k]].Trans, def.OriMod)
			acc, tmp = tmp, acc
		}
		if acc.IsIdentity() {
			changed = true
		} else if mi, ok := def.MoveForTransform(acc); ok {
			out = append(out, mi)
			changed = true
		} else {
			// composite falls outside the move set; keep the run
			out = append(out, seq[i:j]...)
		}
		i = j
	}
	return out, changed
}

// Merge concatenates two sequences and cancels across the seam.
func Merge(def *puzzle.Def, a, b []int) []int {
	joined := make([]int, 0, len(a)+len(b))
	joined = append(joined, a...)
	joined = append(joined, b...)
	return Cancel(def, joined)
}

// Shorten reduces a sequence without changing the state it produces.
// It cancels, splices out loops, and, when given a solver, solves the
// end state and keeps whichever spelling is shorter.
func Shorten(ctx context.Context, def *puzzle.Def, sv *solver.Solver, seq []int) ([]int, error) {
	out := spliceLoops(def, Cancel(def, seq))
	if sv == nil || len(out) == 0 {
		return out, nil
	}

	end := def.ApplySeq(def.Solved(), out)
	res, err := sv.Solve(ctx, end)
	if err != nil {
		if errors.Is(err, solver.ErrNoSolution) {
			return out, nil
		}
		return nil, err
	}
	if res.Found && len(res.Moves) < len(out) {
		// the inverse of a solution reaches the same end state
		return Invert(def, res.Moves)
	}
	return out, nil
}

// spliceLoops drops any segment that returns the cumulative transform
// to a state already produced earlier in the sequence.
func spliceLoops(def *puzzle.Def, seq []int) []int {
	for {
		cut := false
		seen := map[string]int{}
		s := def.Solved()
		seen[s.Key()] = 0
		for i, mi := range seq {
			next := make(puzzle.State, len(s))
			def.ApplyMove(next, s, mi)
			s = next
			if at, ok := seen[s.Key()]; ok {
				trimmed := make([]int, 0, len(seq)-(i+1-at))
				trimmed = append(trimmed, seq[:at]...)
				trimmed = append(trimmed, seq[i+1:]...)
				seq = Cancel(def, trimmed)
				cut = true
				break
			}
			seen[s.Key()] = i + 1
		}
		if !cut {
			return seq
		}
	}
}

// UniqContext deduplicates sequences by the state they produce. The
// caller owns the scope: one context per batch, state shared across
// calls within it.
type UniqContext struct {
	def  *puzzle.Def
	seen map[uint64]struct{}
}

func NewUniqContext(def *puzzle.Def) *UniqContext {
	return &UniqContext{def: def, seen: map[uint64]struct{}{}}
}

// Unseen reports whether the sequence's end state is new to this
// context, recording it either way. Distinct states colliding on the
// 64-bit hash are conflated; at batch sizes this tool sees that is
// acceptable.
func (u *UniqContext) Unseen(seq []int) bool {
	s := u.def.ApplySeq(u.def.Solved(), seq)
	h := xxhash.Sum64(s)
	if _, ok := u.seen[h]; ok {
		return false
	}
	u.seen[h] = struct{}{}
	return true
}

// Symmetries returns the indices of the symmetries fixing the state a
// sequence produces from solved.
func Symmetries(def *puzzle.Def, gs *symmetry.GeneratingSet, seq []int) []int {
	s := def.ApplySeq(def.Solved(), seq)
	return gs.Stabilizers(s)
}
