// Package solver runs the iterative-deepening search. The driver plans
// work chunks per bound, fans them out over a fixed worker pool, and
// only advances the bound once every chunk of the current bound has
// reported back — a barrier, not a race, because optimal mode has to
// see every solution found at the first successful bound before
// choosing among them.
package solver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/twistsearch/twistsearch/chunk"
	"github.com/twistsearch/twistsearch/prune"
	"github.com/twistsearch/twistsearch/puzzle"
	"github.com/twistsearch/twistsearch/symmetry"
)

// ErrNoSolution is returned when the reachable space or the configured
// maximum bound is exhausted without finding a solution.
var ErrNoSolution = errors.New("no solution found within the depth bound")

type Mode int

const (
	// ModeFirst stops the whole pool as soon as any worker finds a
	// solution.
	ModeFirst Mode = iota
	// ModeOptimal finishes the entire first successful bound and
	// reports the best solution found at it.
	ModeOptimal
)

func ParseMode(s string) (Mode, error) {
	switch s {
	case "first":
		return ModeFirst, nil
	case "optimal":
		return ModeOptimal, nil
	}
	return 0, fmt.Errorf("unknown mode %q (want first or optimal)", s)
}

// Options is the solver's slice of the configuration surface.
type Options struct {
	Threads           int
	ChunkMultiplier   int
	MaxDepth          int
	Mode              Mode
	SymmetryReduction bool
	RandomStart       bool
}

// Stats accumulates over a whole Solve call, across bounds.
type Stats struct {
	Nodes           uint64        `yaml:"nodes"`
	ChunksCompleted uint64        `yaml:"chunks_completed"`
	Bound           int           `yaml:"bound"`
	Elapsed         time.Duration `yaml:"elapsed"`
}

// Result is owned by the caller once Solve returns.
type Result struct {
	Found    bool
	Solution []string
	Moves    []int
	Bound    int
	Stats    Stats
}

type Solver struct {
	def   *puzzle.Def
	gs    *symmetry.GeneratingSet
	table *prune.Table
	opts  Options

	// moveOrderPruning skips redundant orderings of non-independent
	// moves. Only ever off for measurements; it never changes which
	// solution lengths are reachable.
	moveOrderPruning bool

	nodes      atomic.Uint64
	chunksDone atomic.Uint64
	stopFlag   atomic.Bool

	mu        sync.Mutex
	solutions [][]int
}

func New(def *puzzle.Def, gs *symmetry.GeneratingSet, table *prune.Table, opts Options) *Solver {
	if opts.Threads < 1 {
		opts.Threads = max(1, runtime.NumCPU()-1)
	}
	if opts.ChunkMultiplier < 1 {
		opts.ChunkMultiplier = 1
	}
	if opts.MaxDepth < 0 {
		opts.MaxDepth = 0
	}
	return &Solver{
		def:              def,
		gs:               gs,
		table:            table,
		opts:             opts,
		moveOrderPruning: true,
	}
}

// Solve searches for a sequence transforming scramble into the solved
// state. Cancellation through ctx is a normal termination path and
// surfaces as context.Canceled.
func (s *Solver) Solve(ctx context.Context, scramble puzzle.State) (*Result, error) {
	tstart := time.Now()
	s.nodes.Store(0)
	s.chunksDone.Store(0)

	startBound := int(s.table.Lookup(scramble))
	log.Info().Str("puzzle", s.def.Name).Int("start-bound", startBound).
		Int("threads", s.opts.Threads).Int("max-depth", s.opts.MaxDepth).
		Msg("starting-search")

	workers := make([]*worker, s.opts.Threads)
	for i := range workers {
		workers[i] = s.newWorker(i)
	}

	done := make(chan struct{})
	tick := errgroup.Group{}
	tick.Go(func() error {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		var lastNodes uint64
		for {
			select {
			case <-done:
				return nil
			case <-ticker.C:
				nodes := s.nodes.Load()
				log.Debug().Uint64("nps", nodes-lastNodes).
					Uint64("chunks-done", s.chunksDone.Load()).
					Msg("nodes-per-second")
				lastNodes = nodes
			}
		}
	})

	res, err := s.deepen(ctx, scramble, startBound, workers)
	close(done)
	_ = tick.Wait()

	res.Stats.Nodes = s.nodes.Load()
	res.Stats.ChunksCompleted = s.chunksDone.Load()
	res.Stats.Elapsed = time.Since(tstart)
	log.Info().Bool("found", res.Found).Int("bound", res.Bound).
		Uint64("nodes", res.Stats.Nodes).
		Float64("time-elapsed-sec", res.Stats.Elapsed.Seconds()).
		Msg("solve-returning")
	return res, err
}

func (s *Solver) deepen(ctx context.Context, scramble puzzle.State, startBound int, workers []*worker) (*Result, error) {
	res := &Result{}
	for bound := startBound; bound <= s.opts.MaxDepth; bound++ {
		res.Bound = bound
		res.Stats.Bound = bound
		s.stopFlag.Store(false)
		s.mu.Lock()
		s.solutions = nil
		s.mu.Unlock()

		chunks, err := s.planChunks(scramble, bound)
		if err != nil {
			if errors.Is(err, chunk.ErrNoWork) {
				// the reachable space below the split depth ran dry;
				// deeper bounds cannot change that
				log.Info().Int("bound", bound).Msg("search space exhausted; no work remains")
				return res, ErrNoSolution
			}
			return res, err
		}
		log.Info().Int("bound", bound).Int("chunks", len(chunks)).Msg("deepening-iteratively")

		if err := s.runBound(ctx, chunks, bound, workers); err != nil {
			return res, err
		}

		s.mu.Lock()
		sols := s.solutions
		s.mu.Unlock()
		if len(sols) > 0 {
			best := sols[0]
			for _, sol := range sols[1:] {
				if len(sol) < len(best) || (len(sol) == len(best) && slices.Compare(sol, best) < 0) {
					best = sol
				}
			}
			res.Found = true
			res.Moves = best
			res.Solution = s.def.MoveNames(best)
			res.Bound = len(best)
			return res, nil
		}
	}
	return res, ErrNoSolution
}

// runBound is the bound-level barrier: it returns only after every
// chunk has been searched or every worker has drained the queue after
// a stop.
func (s *Solver) runBound(ctx context.Context, chunks []chunk.WorkChunk, bound int, workers []*worker) error {
	g := errgroup.Group{}
	jobChan := make(chan chunk.WorkChunk, s.opts.Threads*2)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			for c := range jobChan {
				if ctx.Err() != nil || s.stopFlag.Load() {
					// drain; the barrier still needs the channel empty
					continue
				}
				w.runChunk(c, bound)
				s.chunksDone.Add(1)
			}
			return nil
		})
	}
	for _, c := range chunks {
		jobChan <- c
	}
	close(jobChan)
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// planChunks grows the split depth until there is enough work to keep
// the pool busy. A bound at or below the split depth runs as a single
// sequential chunk; parallelism is pointless there.
func (s *Solver) planChunks(scramble puzzle.State, bound int) ([]chunk.WorkChunk, error) {
	opts := chunk.Options{
		SymmetryReduction: s.opts.SymmetryReduction,
		ChunkMultiplier:   s.opts.ChunkMultiplier,
		RandomStart:       s.opts.RandomStart,
	}
	target := s.opts.Threads * s.opts.ChunkMultiplier * 2
	maxSplit := min(4, bound-1)
	if s.opts.Threads == 1 {
		maxSplit = 0
	}

	best, err := chunk.Plan(s.def, s.gs, scramble, 0, opts)
	if err != nil {
		return nil, err
	}
	for d := 1; d <= maxSplit; d++ {
		chunks, err := chunk.Plan(s.def, s.gs, scramble, d, opts)
		if err != nil {
			// ErrNoWork at depth d>0 means the whole reachable space
			// is shallower than d; report it so the driver can stop.
			return nil, err
		}
		best = chunks
		if len(chunks) >= target {
			break
		}
	}
	return best, nil
}

func (s *Solver) recordSolution(c *chunk.WorkChunk, path []int) {
	seq := make([]int, 0, len(c.Prefix)+len(path))
	seq = append(seq, c.Prefix...)
	for _, mi := range path {
		seq = append(seq, s.gs.MoveImage(c.SymIndex, mi))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.Mode == ModeFirst {
		if len(s.solutions) == 0 {
			s.solutions = append(s.solutions, seq)
			s.stopFlag.Store(true)
		}
		return
	}
	s.solutions = append(s.solutions, seq)
}

// SetMoveOrderPruning toggles redundant-ordering elimination. Exposed
// for measurements; leave it on otherwise.
func (s *Solver) SetMoveOrderPruning(on bool) {
	s.moveOrderPruning = on
}

// Nodes returns the node counter; it is only stable between solves.
func (s *Solver) Nodes() uint64 {
	return s.nodes.Load()
}
