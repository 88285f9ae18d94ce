// Package prune builds and serves the distance heuristic for the
// iterative-deepening search: a packed table of lower bounds on
// moves-to-solved, indexed by a compressed state signature. The table
// is built once by breadth-first layering from the solved state and is
// strictly read-only afterwards, so search workers share it with no
// locking.
package prune

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/twistsearch/twistsearch/puzzle"
	"github.com/twistsearch/twistsearch/symmetry"
)

// BuildOptions tunes table construction. Zero values pick the
// defaults: 4-bit entries and a quarter of physical memory.
type BuildOptions struct {
	// TableBits is the entry width in bits: 2, 4 or 8. The all-ones
	// value is the sentinel "at least this far", so a 4-bit table
	// resolves exact distances 0..14.
	TableBits uint8
	// MemoryBudget is the byte budget for the table plus build-time
	// bookkeeping. 0 means MemoryFraction of physical memory.
	MemoryBudget   uint64
	MemoryFraction float64
	// Workers parallelizes layer expansion. 0 means NumCPU.
	Workers int
}

// Table is the built heuristic. Lookup never overestimates the true
// distance to solved; that admissibility is the one contract the
// search driver leans on.
type Table struct {
	def   *puzzle.Def
	gs    *symmetry.GeneratingSet
	coord puzzle.Coordinate

	bits     uint8
	perByte  uint8
	sentinel uint8
	entries  []uint8

	// complete means every reachable canonical state was enumerated
	// (possibly with depths clamped to the sentinel). When false the
	// build was cut short by the memory budget and unseen signatures
	// yield 0, the weakest admissible bound.
	complete   bool
	builtDepth uint8

	layerCounts []uint64
	lookups     atomic.Uint64

	scratch sync.Pool
}

// estimated per-state cost of the seen map and frontier slices during
// construction, on top of the packed table itself.
func seenOverhead(stateLen int) uint64 {
	return uint64(stateLen) + 48
}

// Build runs the breadth-first layering from the solved state. Layer
// k+1 is every expansion transform applied to every canonical
// representative of layer k; each new state is canonicalized before
// being recorded, so one representative per symmetry class is stored
// and expanded. Running out of bit width clamps to the sentinel;
// running out of memory degrades to the shallower table built so far
// with a warning. Neither is an error.
func Build(def *puzzle.Def, gs *symmetry.GeneratingSet, coord puzzle.Coordinate, opts BuildOptions) (*Table, error) {
	bits := opts.TableBits
	if bits == 0 {
		bits = 4
	}
	if bits != 2 && bits != 4 && bits != 8 {
		bits = 4
	}
	budget := opts.MemoryBudget
	if budget == 0 {
		frac := opts.MemoryFraction
		if frac <= 0 || frac > 1 {
			frac = 0.25
		}
		budget = uint64(frac * float64(memory.TotalMemory()))
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	tableBytes := (coord.Size()*uint64(bits) + 7) / 8
	if tableBytes > budget/2 {
		// The index space itself does not fit. Fall back to hashing
		// full canonical states into the space we do have; collisions
		// weaken entries toward the minimum but stay admissible.
		buckets := (budget / 2) * 8 / uint64(bits)
		if buckets == 0 {
			buckets = 1
		}
		log.Warn().Str("puzzle", def.Name).Str("coordinate", coord.Name()).
			Uint64("coordinate-size", coord.Size()).
			Uint64("budget-bytes", budget).
			Uint64("hash-buckets", buckets).
			Msg("coordinate space exceeds memory budget; degrading to a hashed signature")
		coord = puzzle.NewHashCoordinate(buckets)
		tableBytes = (coord.Size()*uint64(bits) + 7) / 8
	}

	t := &Table{
		def:      def,
		gs:       gs,
		coord:    coord,
		bits:     bits,
		perByte:  8 / bits,
		sentinel: (1 << bits) - 1,
		entries:  make([]uint8, tableBytes),
		complete: true,
	}
	t.scratch.New = func() any { return gs.NewScratch() }
	for i := range t.entries {
		t.entries[i] = 0xff // every packed entry starts at the sentinel
	}

	expansions := expansionTransforms(def)
	if len(expansions) == 0 {
		log.Warn().Str("puzzle", def.Name).Msg("no moves to expand; pruning table is only the solved state")
	}

	sc := gs.NewScratch()
	canonSolved, _ := gs.CanonicalizeInto(sc, def.Solved())
	root := canonSolved.Clone()
	t.set(coord.Encode(root), 0)

	seen := map[string]struct{}{root.Key(): {}}
	frontier := []puzzle.State{root}
	t.layerCounts = []uint64{1}

	for depth := uint8(0); len(frontier) > 0; depth++ {
		if depth+1 >= t.sentinel {
			// deeper layers are indistinguishable from the sentinel;
			// the table is as sharp as its bit width allows
			log.Debug().Str("puzzle", def.Name).Uint8("depth", depth).
				Msg("pruning table reached its bit-width horizon")
			break
		}
		needed := tableBytes + uint64(len(seen)+len(frontier)*len(expansions))*seenOverhead(2*def.Size)
		if needed > budget {
			t.complete = false
			log.Warn().Str("puzzle", def.Name).Uint8("depth", depth).
				Uint64("budget-bytes", budget).Uint64("needed-bytes", needed).
				Msg("memory budget exceeded; degrading to a shallower pruning table")
			break
		}

		next := t.expandLayer(frontier, expansions, seen, depth+1, workers)
		frontier = next
		if len(next) > 0 {
			t.layerCounts = append(t.layerCounts, uint64(len(next)))
			t.builtDepth = depth + 1
		}
	}

	log.Info().Str("puzzle", def.Name).Str("coordinate", coord.Name()).
		Uint8("bits", bits).Uint8("depth", t.builtDepth).
		Bool("complete", t.complete).
		Uint64("table-bytes", tableBytes).
		Msg("pruning table built")
	return t, nil
}

// expansionTransforms returns every move transform, plus explicit
// inverses for moves whose inverse is not itself in the move set, so
// distances are symmetric even for one-directional move lists.
func expansionTransforms(def *puzzle.Def) []puzzle.Transform {
	seen := make(map[string]struct{}, len(def.Moves)*2)
	var out []puzzle.Transform
	for i := range def.Moves {
		tr := def.Moves[i].Trans
		if _, dup := seen[tr.Key()]; !dup {
			seen[tr.Key()] = struct{}{}
			out = append(out, tr)
		}
		if def.Moves[i].InverseIdx == -1 {
			inv := puzzle.IdentityTransform(def.Size)
			puzzle.Invert(&inv, tr, def.OriMod)
			if _, dup := seen[inv.Key()]; !dup {
				seen[inv.Key()] = struct{}{}
				out = append(out, inv)
			}
		}
	}
	return out
}

// expandLayer applies every expansion to every representative of the
// current layer, canonicalizing results. The expansion fan-out runs on
// the worker pool; the seen-set merge stays single-threaded, which is
// what makes concurrent reads of `seen` during the fan-out safe. The
// returned slice is the new layer, deduplicated.
func (t *Table) expandLayer(frontier []puzzle.State, expansions []puzzle.Transform,
	seen map[string]struct{}, depth uint8, workers int) []puzzle.State {

	type shard struct{ states []puzzle.State }
	if workers > len(frontier) {
		workers = len(frontier)
	}
	if workers < 1 {
		workers = 1
	}
	shards := make([]shard, workers)
	per := (len(frontier) + workers - 1) / workers

	g := errgroup.Group{}
	for w := 0; w < workers; w++ {
		w := w
		lo := w * per
		hi := min(lo+per, len(frontier))
		g.Go(func() error {
			sc := t.gs.NewScratch()
			buf := make(puzzle.State, 2*t.def.Size)
			for _, rep := range frontier[lo:hi] {
				for _, tr := range expansions {
					t.def.Apply(buf, rep, tr)
					canon, _ := t.gs.CanonicalizeInto(sc, buf)
					if _, ok := seen[canon.Key()]; ok {
						continue
					}
					shards[w].states = append(shards[w].states, canon.Clone())
				}
			}
			return nil
		})
	}
	// the pool only produces candidate states; errors are impossible
	_ = g.Wait()

	var next []puzzle.State
	for _, sh := range shards {
		for _, st := range sh.states {
			k := st.Key()
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			idx := t.coord.Encode(st)
			if depth < t.get(idx) {
				t.set(idx, depth)
			}
			next = append(next, st)
		}
	}
	return next
}

// Lookup canonicalizes and compresses s the same way construction did
// and returns the stored bound. Unrecorded signatures yield 0 when the
// build was truncated (still admissible; 0 never overestimates) and
// the sentinel when the enumeration completed.
func (t *Table) Lookup(s puzzle.State) uint8 {
	t.lookups.Add(1)
	sc := t.scratch.Get().(*symmetry.Scratch)
	canon, _ := t.gs.CanonicalizeInto(sc, s)
	v := t.get(t.coord.Encode(canon))
	t.scratch.Put(sc)
	if v == t.sentinel && !t.complete {
		return 0
	}
	return v
}

// Sentinel returns the "at least this many moves" value for this
// table's bit width.
func (t *Table) Sentinel() uint8 { return t.sentinel }

// BuiltDepth returns the deepest fully expanded layer.
func (t *Table) BuiltDepth() uint8 { return t.builtDepth }

// Complete reports whether every reachable canonical state was
// enumerated.
func (t *Table) Complete() bool { return t.complete }

func (t *Table) get(idx uint64) uint8 {
	switch t.bits {
	case 8:
		return t.entries[idx]
	case 4:
		b := t.entries[idx/2]
		if idx%2 == 0 {
			return b & 0x0f
		}
		return b >> 4
	default: // 2
		b := t.entries[idx/4]
		shift := (idx % 4) * 2
		return (b >> shift) & 0x03
	}
}

func (t *Table) set(idx uint64, v uint8) {
	switch t.bits {
	case 8:
		t.entries[idx] = v
	case 4:
		if idx%2 == 0 {
			t.entries[idx/2] = t.entries[idx/2]&0xf0 | v
		} else {
			t.entries[idx/2] = t.entries[idx/2]&0x0f | v<<4
		}
	default:
		shift := (idx % 4) * 2
		t.entries[idx/4] = t.entries[idx/4]&^(0x03<<shift) | v<<shift
	}
}
