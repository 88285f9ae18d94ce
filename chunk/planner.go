// Package chunk partitions the search tree for parallel execution.
// A work chunk is a state on the exact-depth frontier below the search
// root, together with the move prefix that discovered it; each chunk is
// an independent subtree one worker can search without overlap.
package chunk

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"lukechampine.com/frand"

	"github.com/twistsearch/twistsearch/puzzle"
	"github.com/twistsearch/twistsearch/symmetry"
)

// ErrNoWork distinguishes "this request produced zero chunks" (depth
// past the reachable diameter, or a move set with no branching) from a
// planner failure. The caller decides whether it means already-solved
// or a misconfiguration.
var ErrNoWork = errors.New("no work chunks at the requested depth")

// WorkChunk is immutable once produced. Start is the subtree root,
// Prefix the moves from the search root to it. When FirstMoves is
// non-nil the chunk owns only those first branches of the subtree, and
// exactly one of the sibling chunks carries CheckStart for the subtree
// root itself.
type WorkChunk struct {
	Start  puzzle.State
	Prefix []int
	Depth  int
	// SymIndex is the symmetry that mapped the discovered frontier
	// state to this canonical start; 0 when reduction is off.
	SymIndex int
	// ClassSize counts the frontier states this chunk stands for
	// (1 without reduction; the symmetry class size with it).
	ClassSize  int
	FirstMoves []int
	CheckStart bool
}

// Options mirror the planner's slice of the configuration surface.
type Options struct {
	SymmetryReduction bool
	// ChunkMultiplier subdivides each chunk into up to this many
	// pieces by splitting its first-move branches, purely for load
	// balancing. 1 or less leaves chunks whole.
	ChunkMultiplier int
	// RandomStart shuffles chunk order without changing the set, to
	// avoid biasing first-found searches toward lexicographically
	// early branches.
	RandomStart bool
}

// Plan enumerates the frontier at exactly depth d below root by breadth
// expansion with a seen-set, so each frontier state appears in exactly
// one chunk. Optimal continuations always pass through this frontier:
// every prefix of a shortest solution is itself a shortest path, hence
// at exact graph distance d after d moves.
func Plan(def *puzzle.Def, gs *symmetry.GeneratingSet, root puzzle.State, depth int, opts Options) ([]WorkChunk, error) {
	if depth < 0 {
		return nil, ErrNoWork
	}
	if depth == 0 {
		return []WorkChunk{{Start: root.Clone(), Depth: 0, ClassSize: 1, CheckStart: true}}, nil
	}
	if len(def.Moves) == 0 {
		return nil, ErrNoWork
	}

	seen := map[string]struct{}{root.Key(): {}}
	layer := []frontierEntry{{state: root.Clone()}}
	buf := make(puzzle.State, 2*def.Size)

	for d := 0; d < depth; d++ {
		var next []frontierEntry
		for _, e := range layer {
			for mi := range def.Moves {
				def.ApplyMove(buf, e.state, mi)
				k := buf.Key()
				if _, ok := seen[k]; ok {
					continue
				}
				seen[k] = struct{}{}
				prefix := make([]int, len(e.prefix)+1)
				copy(prefix, e.prefix)
				prefix[len(e.prefix)] = mi
				next = append(next, frontierEntry{state: buf.Clone(), prefix: prefix})
			}
		}
		if len(next) == 0 {
			return nil, ErrNoWork
		}
		layer = next
	}

	var chunks []WorkChunk
	if opts.SymmetryReduction && gs != nil && gs.Order() > 1 {
		chunks = reduceFrontier(def, gs, layer)
	} else {
		chunks = make([]WorkChunk, len(layer))
		for i, e := range layer {
			chunks[i] = WorkChunk{Start: e.state, Prefix: e.prefix, Depth: depth, ClassSize: 1, CheckStart: true}
		}
	}

	if opts.ChunkMultiplier > 1 {
		chunks = subdivide(def, chunks, opts.ChunkMultiplier)
	}
	if opts.RandomStart {
		frand.Shuffle(len(chunks), func(i, j int) {
			chunks[i], chunks[j] = chunks[j], chunks[i]
		})
	}
	log.Debug().Str("puzzle", def.Name).Int("depth", depth).
		Int("frontier", len(layer)).Int("chunks", len(chunks)).
		Bool("symmetry-reduction", opts.SymmetryReduction).
		Msg("planned work chunks")
	return chunks, nil
}

// frontierEntry pairs a frontier state with the move prefix that first
// discovered it (breadth order, so the lexicographically least shortest
// path).
type frontierEntry struct {
	state  puzzle.State
	prefix []int
}

// reduceFrontier collapses symmetry-equivalent frontier states into one
// chunk per class. The chunk starts at the canonical representative;
// SymIndex remembers how to map a continuation found there back onto
// the discovered state's prefix.
func reduceFrontier(def *puzzle.Def, gs *symmetry.GeneratingSet, layer []frontierEntry) []WorkChunk {
	sc := gs.NewScratch()
	byClass := make(map[string]int, len(layer))
	var chunks []WorkChunk
	for _, e := range layer {
		canon, sym := gs.CanonicalizeInto(sc, e.state)
		k := canon.Key()
		if i, ok := byClass[k]; ok {
			chunks[i].ClassSize++
			continue
		}
		byClass[k] = len(chunks)
		chunks = append(chunks, WorkChunk{
			Start:      canon.Clone(),
			Prefix:     e.prefix,
			Depth:      len(e.prefix),
			SymIndex:   sym,
			ClassSize:  1,
			CheckStart: true,
		})
	}
	return chunks
}

// subdivide splits each chunk's first-move branches into up to
// multiplier pieces. Coverage is unchanged: the pieces' FirstMoves
// partition the whole branch set and the first piece keeps the
// subtree-root goal check.
func subdivide(def *puzzle.Def, chunks []WorkChunk, multiplier int) []WorkChunk {
	out := make([]WorkChunk, 0, len(chunks)*multiplier)
	for _, c := range chunks {
		branches := lo.RangeFrom(0, len(def.Moves))
		per := (len(branches) + multiplier - 1) / multiplier
		parts := lo.Chunk(branches, per)
		if len(parts) <= 1 {
			c.CheckStart = true
			out = append(out, c)
			continue
		}
		for pi, part := range parts {
			sub := c
			sub.FirstMoves = part
			sub.CheckStart = pi == 0
			out = append(out, sub)
		}
	}
	return out
}
