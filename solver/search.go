package solver

import (
	"slices"

	"github.com/twistsearch/twistsearch/chunk"
	"github.com/twistsearch/twistsearch/puzzle"
)

// worker holds one thread's preallocated search stack. Nothing here is
// shared; all cross-thread traffic goes through the solver's atomics
// and the solutions list.
type worker struct {
	s     *Solver
	id    int
	stack []puzzle.State
	path  []int
}

func (s *Solver) newWorker(id int) *worker {
	w := &worker{s: s, id: id}
	w.stack = make([]puzzle.State, s.opts.MaxDepth+2)
	for i := range w.stack {
		w.stack[i] = make(puzzle.State, 2*s.def.Size)
	}
	w.path = make([]int, 0, s.opts.MaxDepth+1)
	return w
}

// runChunk searches one chunk's subtree to the given bound. The chunk
// starts at its recorded depth, so the remaining budget at the root is
// bound-c.Depth.
func (w *worker) runChunk(c chunk.WorkChunk, bound int) {
	if c.Depth > bound {
		return
	}
	copy(w.stack[c.Depth], c.Start)
	w.path = w.path[:0]
	// lastMove=-1: no ordering constraint crosses the chunk boundary.
	// The stored prefix is one discovery path, not necessarily the one
	// a canonical continuation would extend, so carrying its last move
	// into the ordering filter could prune solutions.
	w.search(&c, c.Depth, bound, -1)
}

func (w *worker) search(c *chunk.WorkChunk, depth, bound, lastMove int) {
	if w.s.stopFlag.Load() {
		return
	}
	w.s.nodes.Add(1)

	state := w.stack[depth]
	if depth == bound {
		if depth > c.Depth || c.CheckStart {
			if w.s.def.IsSolved(state) {
				w.s.recordSolution(c, w.path)
			}
		}
		return
	}

	if h := w.s.table.Lookup(state); depth+int(h) > bound {
		return
	}

	moves := w.s.def.Moves
	for mi := range moves {
		if depth == c.Depth && c.FirstMoves != nil && !slices.Contains(c.FirstMoves, mi) {
			continue
		}
		if lastMove >= 0 && w.s.moveOrderPruning && w.pruneMove(lastMove, mi) {
			continue
		}
		w.s.def.ApplyMove(w.stack[depth+1], state, mi)
		w.path = append(w.path, mi)
		w.search(c, depth+1, bound, mi)
		w.path = w.path[:len(w.path)-1]
	}
}

// pruneMove reports whether playing next right after prev is a
// redundant ordering. On the same grip only pairs that fold into a
// single move (or the identity) are skipped; across commuting axes only
// the ascending order is kept.
func (w *worker) pruneMove(prev, next int) bool {
	pa := w.s.def.Moves[prev].Axis
	na := w.s.def.Moves[next].Axis
	if pa == na {
		return w.s.def.PairFolds(prev, next)
	}
	return na < pa && w.s.def.AxesCommute(pa, na)
}
