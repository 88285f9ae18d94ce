package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/twistsearch/twistsearch/config"
	"github.com/twistsearch/twistsearch/shell"
)

var GitVersion string

const banner = `twistsearch - permutation puzzle search`

func main() {
	fmt.Println(banner)
	if GitVersion != "" {
		fmt.Println(GitVersion)
	}

	cfg := config.Default()
	if err := cfg.Load(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	output.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}
	var logger zerolog.Logger
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		logger = zerolog.New(output).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		logger = zerolog.New(output).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	}
	zerolog.DefaultContextLogger = &logger
	log.Logger = logger
	logger.Debug().Msg("debug logging is on")

	sc, err := shell.NewController(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("initializing")
	}
	if len(cfg.Args) > 0 {
		if err := sc.SolveScramble(cfg.Args); err != nil {
			log.Fatal().Err(err).Msg("solving")
		}
		return
	}
	sc.Loop()
}
