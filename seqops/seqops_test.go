package seqops

import (
	"context"
	"os"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/twistsearch/twistsearch/prune"
	"github.com/twistsearch/twistsearch/puzzle"
	"github.com/twistsearch/twistsearch/solver"
	"github.com/twistsearch/twistsearch/symmetry"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

func parse(t *testing.T, d *puzzle.Def, names ...string) []int {
	t.Helper()
	seq, err := d.ParseSeq(names)
	if err != nil {
		t.Fatal(err)
	}
	return seq
}

func TestInvert(t *testing.T) {
	is := is.New(t)
	d := puzzle.PocketCube()

	seq := parse(t, d, "U", "R2", "F'")
	inv, err := Invert(d, seq)
	is.NoErr(err)
	is.Equal(d.MoveNames(inv), []string{"F", "R2", "U'"})

	// a sequence followed by its inverse is the identity
	s := d.ApplySeq(d.Solved(), append(append([]int{}, seq...), inv...))
	is.True(d.IsSolved(s))
}

func TestInvertEmpty(t *testing.T) {
	is := is.New(t)
	d := puzzle.PocketCube()
	inv, err := Invert(d, nil)
	is.NoErr(err)
	is.Equal(len(inv), 0)
}

func TestCancelMergesRuns(t *testing.T) {
	is := is.New(t)
	d := puzzle.PocketCube()

	// U U -> U2
	out := Cancel(d, parse(t, d, "U", "U"))
	is.Equal(d.MoveNames(out), []string{"U2"})

	// R2 R2 -> identity
	out = Cancel(d, parse(t, d, "R2", "R2"))
	is.Equal(len(out), 0)

	// U U2 U -> identity (whole run composes at once)
	out = Cancel(d, parse(t, d, "U", "U2", "U"))
	is.Equal(len(out), 0)

	// cancellation across a removed segment: U F F' U -> U U -> U2
	out = Cancel(d, parse(t, d, "U", "F", "F'", "U"))
	is.Equal(d.MoveNames(out), []string{"U2"})
}

func TestCancelPreservesEffect(t *testing.T) {
	is := is.New(t)
	d := puzzle.PocketCube()
	seq := parse(t, d, "U", "U", "R", "F2", "F'", "F'", "R'", "U2")
	out := Cancel(d, seq)
	is.True(len(out) < len(seq))
	is.True(d.ApplySeq(d.Solved(), seq).Equal(d.ApplySeq(d.Solved(), out)))
}

func TestMerge(t *testing.T) {
	is := is.New(t)
	d := puzzle.PocketCube()
	a := parse(t, d, "U", "R")
	b := parse(t, d, "R'", "F")
	out := Merge(d, a, b)
	is.Equal(d.MoveNames(out), []string{"U", "F"})
}

func TestShortenSplicesLoops(t *testing.T) {
	is := is.New(t)
	d := puzzle.PocketCube()
	ctx := context.Background()

	// U R R' U' returns to start; the whole thing is a loop
	out, err := Shorten(ctx, d, nil, parse(t, d, "U", "R", "R'", "U'"))
	is.NoErr(err)
	is.Equal(len(out), 0)

	// the inner F F2 F loop vanishes, the flanks merge
	seq := parse(t, d, "R", "F", "F2", "F", "R")
	out, err = Shorten(ctx, d, nil, seq)
	is.NoErr(err)
	is.Equal(d.MoveNames(out), []string{"R2"})

	// six repetitions of R U R' U' return to start; cancellation never
	// fires (no same-grip adjacency) but the loop splice removes it all
	var long []int
	for i := 0; i < 6; i++ {
		long = append(long, parse(t, d, "R", "U", "R'", "U'")...)
	}
	is.True(d.IsSolved(d.ApplySeq(d.Solved(), long)))
	out, err = Shorten(ctx, d, nil, long)
	is.NoErr(err)
	is.Equal(len(out), 0)

	// shortening preserves the end state
	seq = parse(t, d, "U", "R", "U'", "R'", "U", "R")
	out, err = Shorten(ctx, d, nil, seq)
	is.NoErr(err)
	is.True(d.ApplySeq(d.Solved(), seq).Equal(d.ApplySeq(d.Solved(), out)))
}

func TestShortenWithSolver(t *testing.T) {
	is := is.New(t)
	d := puzzle.PocketCube()
	gs, err := symmetry.New(d, nil)
	is.NoErr(err)
	tbl, err := prune.Build(d, gs, puzzle.NewFullCoordinate(d), prune.BuildOptions{
		TableBits:    2,
		MemoryBudget: 512 << 20,
	})
	is.NoErr(err)
	sv := solver.New(d, gs, tbl, solver.Options{
		Threads: 1, MaxDepth: 11, Mode: solver.ModeOptimal,
	})

	ctx := context.Background()
	seq := parse(t, d, "U", "R", "F", "F'")
	out, err := Shorten(ctx, d, sv, seq)
	is.NoErr(err)
	is.True(len(out) <= 2)
	is.True(d.ApplySeq(d.Solved(), seq).Equal(d.ApplySeq(d.Solved(), out)))

	// a cancel-free spelling: the solver result never lengthens it
	seq = parse(t, d, "U", "R", "U", "R", "U", "R")
	out, err = Shorten(ctx, d, sv, seq)
	is.NoErr(err)
	is.True(len(out) <= len(seq))
	is.True(d.ApplySeq(d.Solved(), seq).Equal(d.ApplySeq(d.Solved(), out)))
}

func TestUniqContext(t *testing.T) {
	is := is.New(t)
	d := puzzle.PocketCube()
	u := NewUniqContext(d)

	is.True(u.Unseen(parse(t, d, "U", "R")))
	is.True(!u.Unseen(parse(t, d, "U", "R")))

	// same end state through a different spelling
	is.True(!u.Unseen(parse(t, d, "U", "F", "F'", "R")))

	// a genuinely different state
	is.True(u.Unseen(parse(t, d, "R", "U")))

	// a fresh context forgets
	u = NewUniqContext(d)
	is.True(u.Unseen(parse(t, d, "U", "R")))
}

func TestSymmetries(t *testing.T) {
	is := is.New(t)
	d := puzzle.PocketCube()
	gs, err := symmetry.New(d, []puzzle.Transform{puzzle.PocketCubeRotation()})
	is.NoErr(err)

	// the empty sequence leaves solved, fixed by the whole group
	is.Equal(len(Symmetries(d, gs, nil)), gs.Order())

	// one twist breaks the diagonal symmetry
	is.Equal(Symmetries(d, gs, parse(t, d, "U")), []int{0})
}
