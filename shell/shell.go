// Package shell is the interactive front end: it owns the loaded
// puzzle, its symmetry group, the pruning table and a solver, and maps
// command lines onto them.
package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
	"lukechampine.com/frand"

	"github.com/twistsearch/twistsearch/config"
	"github.com/twistsearch/twistsearch/prune"
	"github.com/twistsearch/twistsearch/puzzle"
	"github.com/twistsearch/twistsearch/seqops"
	"github.com/twistsearch/twistsearch/solver"
	"github.com/twistsearch/twistsearch/symmetry"
)

type Controller struct {
	cfg    config.Config
	def    *puzzle.Def
	gs     *symmetry.GeneratingSet
	table  *prune.Table
	solver *solver.Solver
	uniq   *seqops.UniqContext

	l *readline.Instance
}

func filterInput(r rune) (rune, bool) {
	switch r {
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func NewController(cfg config.Config) (*Controller, error) {
	def, gens, err := loadPuzzle(cfg.Puzzle)
	if err != nil {
		return nil, err
	}
	if !cfg.SymmetryReduction {
		gens = nil
	}
	gs, err := symmetry.New(def, gens)
	if err != nil {
		return nil, err
	}
	log.Info().Str("puzzle", def.Name).Int("moves", len(def.Moves)).
		Int("symmetries", gs.Order()).Msg("loaded-puzzle")

	table, err := prune.Build(def, gs, puzzle.NewFullCoordinate(def), prune.BuildOptions{
		TableBits: uint8(cfg.TableBits),
	})
	if err != nil {
		return nil, err
	}

	mode, err := solver.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	sv := solver.New(def, gs, table, solver.Options{
		Threads:           cfg.Threads,
		ChunkMultiplier:   cfg.ChunkMultiplier,
		MaxDepth:          cfg.MaxDepth,
		Mode:              mode,
		SymmetryReduction: cfg.SymmetryReduction,
		RandomStart:       cfg.RandomStart,
	})

	l, err := readline.NewEx(&readline.Config{
		Prompt:              "twistsearch> ",
		HistoryFile:         "/tmp/twistsearch_readline.tmp",
		EOFPrompt:           "exit",
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return nil, err
	}

	return &Controller{
		cfg:    cfg,
		def:    def,
		gs:     gs,
		table:  table,
		solver: sv,
		uniq:   seqops.NewUniqContext(def),
		l:      l,
	}, nil
}

// loadPuzzle maps a config name onto a built-in definition and its
// symmetry generators. "cyclic-N" builds the N-element cycle.
func loadPuzzle(name string) (*puzzle.Def, []puzzle.Transform, error) {
	if n, ok := strings.CutPrefix(name, "cyclic-"); ok {
		sz, err := strconv.Atoi(n)
		if err != nil || sz < 2 {
			return nil, nil, fmt.Errorf("bad cyclic puzzle size %q", n)
		}
		d := puzzle.Cyclic(sz)
		return d, []puzzle.Transform{puzzle.CyclicRotation(sz)}, nil
	}
	switch name {
	case "pocket":
		return puzzle.PocketCube(), []puzzle.Transform{puzzle.PocketCubeRotation()}, nil
	}
	return nil, nil, fmt.Errorf("unknown puzzle %q", name)
}

// SolveScramble runs one solve non-interactively, for scrambles passed
// on the command line.
func (sc *Controller) SolveScramble(names []string) error {
	return sc.solve(names)
}

func (sc *Controller) showMessage(msg string) {
	fmt.Fprintln(os.Stdout, msg)
}

func (sc *Controller) showError(err error) {
	fmt.Fprintln(os.Stdout, "error:", err)
}

func (sc *Controller) Loop() {
	defer sc.l.Close()
	for {
		line, err := sc.l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if err := sc.dispatch(line); err != nil {
			sc.showError(err)
		}
	}
	log.Debug().Msg("exiting readline loop")
}

func (sc *Controller) dispatch(line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "help":
		sc.showMessage(helpText)
	case "solve":
		return sc.solve(args)
	case "random":
		return sc.random(args)
	case "invert":
		return sc.invert(args)
	case "cancel":
		return sc.cancel(args)
	case "shorten":
		return sc.shorten(args)
	case "uniq":
		return sc.uniqCmd(args)
	case "syms":
		return sc.syms(args)
	case "stats":
		return sc.stats()
	default:
		return fmt.Errorf("unknown command %q; try help", cmd)
	}
	return nil
}

const helpText = `commands:
  solve <moves...>   solve the state the scramble produces
  random <n>         scramble with n random moves, then solve
  invert <moves...>  print the inverse sequence
  cancel <moves...>  collapse adjacent same-grip moves
  shorten <moves...> cancel and splice out loops
  uniq <moves...>    report whether the end state is new this session
  uniq reset         forget seen states
  syms <moves...>    symmetries fixing the end state
  stats              pruning table statistics
  exit`

func (sc *Controller) solve(args []string) error {
	seq, err := sc.def.ParseSeq(args)
	if err != nil {
		return err
	}
	state := sc.def.ApplySeq(sc.def.Solved(), seq)
	return sc.runSolve(state)
}

func (sc *Controller) random(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: random <n>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return fmt.Errorf("bad scramble length %q", args[0])
	}
	seq := make([]int, n)
	for i := range seq {
		seq[i] = frand.Intn(len(sc.def.Moves))
	}
	sc.showMessage("scramble: " + strings.Join(sc.def.MoveNames(seq), " "))
	state := sc.def.ApplySeq(sc.def.Solved(), seq)
	return sc.runSolve(state)
}

func (sc *Controller) runSolve(state puzzle.State) error {
	res, err := sc.solver.Solve(context.Background(), state)
	if err != nil {
		if err == solver.ErrNoSolution {
			sc.showMessage(fmt.Sprintf("no solution within depth %d", sc.cfg.MaxDepth))
			return nil
		}
		return err
	}
	if len(res.Solution) == 0 {
		sc.showMessage("already solved")
		return nil
	}
	sc.showMessage(fmt.Sprintf("solution (%d): %s", res.Bound,
		strings.Join(res.Solution, " ")))
	return nil
}

func (sc *Controller) invert(args []string) error {
	seq, err := sc.def.ParseSeq(args)
	if err != nil {
		return err
	}
	inv, err := seqops.Invert(sc.def, seq)
	if err != nil {
		return err
	}
	sc.showSeq(inv)
	return nil
}

func (sc *Controller) cancel(args []string) error {
	seq, err := sc.def.ParseSeq(args)
	if err != nil {
		return err
	}
	sc.showSeq(seqops.Cancel(sc.def, seq))
	return nil
}

func (sc *Controller) shorten(args []string) error {
	seq, err := sc.def.ParseSeq(args)
	if err != nil {
		return err
	}
	out, err := seqops.Shorten(context.Background(), sc.def, sc.solver, seq)
	if err != nil {
		return err
	}
	sc.showSeq(out)
	return nil
}

func (sc *Controller) showSeq(seq []int) {
	if len(seq) == 0 {
		sc.showMessage("(identity)")
		return
	}
	sc.showMessage(strings.Join(sc.def.MoveNames(seq), " "))
}

func (sc *Controller) uniqCmd(args []string) error {
	if len(args) == 1 && args[0] == "reset" {
		sc.uniq = seqops.NewUniqContext(sc.def)
		sc.showMessage("uniq context reset")
		return nil
	}
	seq, err := sc.def.ParseSeq(args)
	if err != nil {
		return err
	}
	if sc.uniq.Unseen(seq) {
		sc.showMessage("new state")
	} else {
		sc.showMessage("seen before")
	}
	return nil
}

func (sc *Controller) syms(args []string) error {
	seq, err := sc.def.ParseSeq(args)
	if err != nil {
		return err
	}
	stab := seqops.Symmetries(sc.def, sc.gs, seq)
	sc.showMessage(fmt.Sprintf("%d of %d symmetries fix this state: %v",
		len(stab), sc.gs.Order(), stab))
	return nil
}

func (sc *Controller) stats() error {
	st := sc.table.Stats()
	out, err := yaml.Marshal(st)
	if err != nil {
		return err
	}
	sc.showMessage(string(out))
	return st.WriteDistribution(os.Stdout)
}
