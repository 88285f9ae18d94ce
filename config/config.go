// Package config is the single configuration surface consumed by the
// search core. Values come from flags, TWISTSEARCH_* environment
// variables and an optional YAML config file, in that precedence order.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	// Threads is the number of parallel search workers.
	Threads int `mapstructure:"threads"`
	// ChunkMultiplier subdivides work chunks for load balancing.
	ChunkMultiplier int `mapstructure:"chunk-multiplier"`
	// MaxDepth is the largest bound the iterative-deepening loop will
	// try before giving up.
	MaxDepth int `mapstructure:"max-depth"`
	// TableBits is the pruning-table entry width (2, 4 or 8).
	TableBits int `mapstructure:"table-bits"`
	// Mode is "first" or "optimal".
	Mode string `mapstructure:"mode"`
	// SymmetryReduction enables canonicalization-based deduplication
	// in the pruning table and the chunk planner.
	SymmetryReduction bool `mapstructure:"symmetry-reduction"`
	// RandomStart shuffles chunk visitation order.
	RandomStart bool `mapstructure:"random-start"`

	Puzzle string `mapstructure:"puzzle"`
	Debug  bool   `mapstructure:"debug"`

	// Args holds the positional arguments left after flag parsing,
	// typically a scramble to solve in one shot.
	Args []string `mapstructure:"-"`
}

func Default() Config {
	threads := runtime.NumCPU() - 1
	if threads < 1 {
		threads = 1
	}
	return Config{
		Threads:           threads,
		ChunkMultiplier:   1,
		MaxDepth:          20,
		TableBits:         4,
		Mode:              "optimal",
		SymmetryReduction: true,
		RandomStart:       false,
		Puzzle:            "pocket",
	}
}

// Load parses args into the config, layering env vars and an optional
// config file underneath.
func (c *Config) Load(args []string) error {
	defaults := Default()

	fs := pflag.NewFlagSet("twistsearch", pflag.ContinueOnError)
	fs.Int("threads", defaults.Threads, "number of parallel search workers")
	fs.Int("chunk-multiplier", defaults.ChunkMultiplier, "work chunk subdivision factor for load balancing")
	fs.Int("max-depth", defaults.MaxDepth, "give up after exhausting this search bound")
	fs.Int("table-bits", defaults.TableBits, "pruning table entry width in bits (2, 4 or 8)")
	fs.String("mode", defaults.Mode, "termination mode: first or optimal")
	fs.Bool("symmetry-reduction", defaults.SymmetryReduction, "deduplicate symmetric states in tables and chunks")
	fs.Bool("random-start", defaults.RandomStart, "shuffle work chunk visitation order")
	fs.String("puzzle", defaults.Puzzle, "puzzle definition to load")
	fs.Bool("debug", false, "debug logging")
	fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return err
	}
	v.SetEnvPrefix("twistsearch")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile, _ := fs.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(c); err != nil {
		return err
	}
	c.Args = fs.Args()
	return c.validate()
}

func (c *Config) validate() error {
	if c.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", c.Threads)
	}
	if c.ChunkMultiplier < 1 {
		return fmt.Errorf("chunk-multiplier must be at least 1, got %d", c.ChunkMultiplier)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max-depth must not be negative, got %d", c.MaxDepth)
	}
	switch c.TableBits {
	case 2, 4, 8:
	default:
		return fmt.Errorf("table-bits must be 2, 4 or 8, got %d", c.TableBits)
	}
	switch c.Mode {
	case "first", "optimal":
	default:
		return fmt.Errorf("mode must be first or optimal, got %q", c.Mode)
	}
	return nil
}
