package solver

import (
	"context"
	"os"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/twistsearch/twistsearch/prune"
	"github.com/twistsearch/twistsearch/puzzle"
	"github.com/twistsearch/twistsearch/symmetry"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

func cyclicSetup(t *testing.T, n int) (*puzzle.Def, *symmetry.GeneratingSet, *prune.Table) {
	t.Helper()
	d := puzzle.Cyclic(n)
	gs, err := symmetry.New(d, nil)
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := prune.Build(d, gs, puzzle.NewFullCoordinate(d), prune.BuildOptions{
		TableBits:    8,
		MemoryBudget: 1 << 20,
	})
	if err != nil {
		t.Fatal(err)
	}
	return d, gs, tbl
}

func pocketSetup(t *testing.T, withSyms bool) (*puzzle.Def, *symmetry.GeneratingSet, *prune.Table) {
	t.Helper()
	d := puzzle.PocketCube()
	var gens []puzzle.Transform
	if withSyms {
		gens = []puzzle.Transform{puzzle.PocketCubeRotation()}
	}
	gs, err := symmetry.New(d, gens)
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := prune.Build(d, gs, puzzle.NewFullCoordinate(d), prune.BuildOptions{
		TableBits:    2,
		MemoryBudget: 512 << 20,
	})
	if err != nil {
		t.Fatal(err)
	}
	return d, gs, tbl
}

func mustSolve(t *testing.T, d *puzzle.Def, s *Solver, scramble puzzle.State) *Result {
	t.Helper()
	res, err := s.Solve(context.Background(), scramble)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Found {
		t.Fatal("expected a solution")
	}
	if !d.IsSolved(d.ApplySeq(scramble, res.Moves)) {
		t.Fatalf("reported solution %v does not solve the scramble", res.Solution)
	}
	return res
}

func TestSolveAlreadySolved(t *testing.T) {
	is := is.New(t)
	d, gs, tbl := cyclicSetup(t, 6)
	s := New(d, gs, tbl, Options{Threads: 1, MaxDepth: 5, Mode: ModeOptimal})

	res := mustSolve(t, d, s, d.Solved())
	is.Equal(res.Bound, 0)
	is.Equal(len(res.Solution), 0)
}

func TestSolveCyclic(t *testing.T) {
	is := is.New(t)
	d, gs, tbl := cyclicSetup(t, 6)
	s := New(d, gs, tbl, Options{Threads: 1, MaxDepth: 5, Mode: ModeOptimal})

	r2, ok := d.MoveIndex("R2")
	is.True(ok)
	scramble := d.ApplySeq(d.Solved(), []int{r2})
	res := mustSolve(t, d, s, scramble)
	is.Equal(len(res.Moves), 1) // every rotation is one move from solved
}

func TestTwoGeneratorCyclic(t *testing.T) {
	is := is.New(t)
	// Only a quarter turn and its inverse: a double shift genuinely
	// needs two moves on the same grip.
	d, err := puzzle.NewDef("shift", 5, 1, []puzzle.MoveSpec{
		{Name: "R", Grip: "r", Perm: []uint8{1, 2, 3, 4, 0}},
		{Name: "R'", Grip: "r", Perm: []uint8{4, 0, 1, 2, 3}},
	})
	is.NoErr(err)
	gs, err := symmetry.New(d, nil)
	is.NoErr(err)
	tbl, err := prune.Build(d, gs, puzzle.NewFullCoordinate(d), prune.BuildOptions{
		TableBits:    8,
		MemoryBudget: 1 << 20,
	})
	is.NoErr(err)
	s := New(d, gs, tbl, Options{Threads: 1, MaxDepth: 4, Mode: ModeOptimal})

	res := mustSolve(t, d, s, d.Solved())
	is.Equal(len(res.Moves), 0)

	r, ok := d.MoveIndex("R")
	is.True(ok)
	res = mustSolve(t, d, s, d.ApplySeq(d.Solved(), []int{r}))
	is.Equal(len(res.Moves), 1)

	res = mustSolve(t, d, s, d.ApplySeq(d.Solved(), []int{r, r}))
	is.Equal(len(res.Moves), 2) // R R has no single-move shortcut here
}

func TestUnreachableState(t *testing.T) {
	is := is.New(t)
	d, gs, tbl := cyclicSetup(t, 4)
	s := New(d, gs, tbl, Options{Threads: 1, MaxDepth: 10, Mode: ModeOptimal})

	// a transposition is not a rotation; no move sequence reaches it
	bad := puzzle.State{1, 0, 2, 3, 0, 0, 0, 0}
	res, err := s.Solve(context.Background(), bad)
	is.True(err == ErrNoSolution)
	is.True(!res.Found)
}

func TestPocketOptimal(t *testing.T) {
	is := is.New(t)
	d, gs, tbl := pocketSetup(t, false)
	s := New(d, gs, tbl, Options{Threads: 1, MaxDepth: 11, Mode: ModeOptimal})

	seq, err := d.ParseSeq([]string{"U", "R", "U"})
	is.NoErr(err)
	scramble := d.ApplySeq(d.Solved(), seq)
	res := mustSolve(t, d, s, scramble)
	is.True(len(res.Moves) <= 3) // never longer than the scramble
	is.Equal(res.Bound, len(res.Moves))
}

func TestPocketParallelMatchesSequential(t *testing.T) {
	is := is.New(t)
	d, gs, tbl := pocketSetup(t, false)

	seq, err := d.ParseSeq([]string{"U", "R", "F'", "U2", "R"})
	is.NoErr(err)
	scramble := d.ApplySeq(d.Solved(), seq)

	seqSolver := New(d, gs, tbl, Options{Threads: 1, MaxDepth: 11, Mode: ModeOptimal})
	parSolver := New(d, gs, tbl, Options{Threads: 4, ChunkMultiplier: 2, MaxDepth: 11, Mode: ModeOptimal})

	a := mustSolve(t, d, seqSolver, scramble)
	b := mustSolve(t, d, parSolver, scramble)
	is.Equal(len(a.Moves), len(b.Moves)) // optimal length does not depend on the pool
}

func TestSymmetryReducedSolve(t *testing.T) {
	is := is.New(t)
	d, gs, tbl := pocketSetup(t, true)
	plainD, plainGs, plainTbl := pocketSetup(t, false)

	seq, err := d.ParseSeq([]string{"U", "R", "U'", "F"})
	is.NoErr(err)
	scramble := d.ApplySeq(d.Solved(), seq)

	reduced := New(d, gs, tbl, Options{
		Threads: 2, MaxDepth: 11, Mode: ModeOptimal, SymmetryReduction: true,
	})
	plain := New(plainD, plainGs, plainTbl, Options{Threads: 2, MaxDepth: 11, Mode: ModeOptimal})

	a := mustSolve(t, d, reduced, scramble)
	b := mustSolve(t, plainD, plain, scramble)
	is.Equal(len(a.Moves), len(b.Moves))
}

func TestModeFirstFindsSomething(t *testing.T) {
	is := is.New(t)
	d, gs, tbl := pocketSetup(t, false)
	s := New(d, gs, tbl, Options{
		Threads: 4, ChunkMultiplier: 2, MaxDepth: 11, Mode: ModeFirst, RandomStart: true,
	})

	seq, err := d.ParseSeq([]string{"R", "U2", "F", "R'", "U"})
	is.NoErr(err)
	scramble := d.ApplySeq(d.Solved(), seq)
	res := mustSolve(t, d, s, scramble)
	is.True(len(res.Moves) <= 5)
}

func TestMoveOrderPruningPreservesLengths(t *testing.T) {
	is := is.New(t)
	d, gs, tbl := pocketSetup(t, false)

	seq, err := d.ParseSeq([]string{"F", "U", "R2", "U'"})
	is.NoErr(err)
	scramble := d.ApplySeq(d.Solved(), seq)

	pruned := New(d, gs, tbl, Options{Threads: 1, MaxDepth: 11, Mode: ModeOptimal})
	unpruned := New(d, gs, tbl, Options{Threads: 1, MaxDepth: 11, Mode: ModeOptimal})
	unpruned.SetMoveOrderPruning(false)

	a := mustSolve(t, d, pruned, scramble)
	b := mustSolve(t, d, unpruned, scramble)
	is.Equal(len(a.Moves), len(b.Moves))
	is.True(pruned.Nodes() <= unpruned.Nodes()) // the filter only removes work
}

func TestCancellation(t *testing.T) {
	is := is.New(t)
	d, gs, tbl := pocketSetup(t, false)
	s := New(d, gs, tbl, Options{Threads: 4, MaxDepth: 11, Mode: ModeOptimal})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	seq, err := d.ParseSeq([]string{"U", "R", "F"})
	is.NoErr(err)
	scramble := d.ApplySeq(d.Solved(), seq)
	_, err = s.Solve(ctx, scramble)
	is.True(err == context.Canceled)
}

func TestMaxDepthTooSmall(t *testing.T) {
	is := is.New(t)
	d, gs, tbl := pocketSetup(t, false)
	s := New(d, gs, tbl, Options{Threads: 1, MaxDepth: 1, Mode: ModeOptimal})

	seq, err := d.ParseSeq([]string{"U", "R", "F"})
	is.NoErr(err)
	scramble := d.ApplySeq(d.Solved(), seq)
	res, err := s.Solve(context.Background(), scramble)
	is.True(err == ErrNoSolution)
	is.True(!res.Found)
}

func TestParseMode(t *testing.T) {
	is := is.New(t)
	m, err := ParseMode("first")
	is.NoErr(err)
	is.Equal(m, ModeFirst)
	m, err = ParseMode("optimal")
	is.NoErr(err)
	is.Equal(m, ModeOptimal)
	_, err = ParseMode("fastest")
	is.True(err != nil)
}
