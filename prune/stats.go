package prune

import (
	"fmt"
	"io"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/samber/lo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats describes a built table for reporting. Formatting lives with
// the caller; this is plain data plus one helper printer.
type Stats struct {
	Coordinate  string   `yaml:"coordinate"`
	Bits        uint8    `yaml:"bits"`
	BuiltDepth  uint8    `yaml:"built_depth"`
	Complete    bool     `yaml:"complete"`
	TableBytes  uint64   `yaml:"table_bytes"`
	Lookups     uint64   `yaml:"lookups"`
	LayerCounts []uint64 `yaml:"layer_counts"`
}

func (t *Table) Stats() Stats {
	return Stats{
		Coordinate:  t.coord.Name(),
		Bits:        t.bits,
		BuiltDepth:  t.builtDepth,
		Complete:    t.complete,
		TableBytes:  uint64(len(t.entries)),
		Lookups:     t.lookups.Load(),
		LayerCounts: append([]uint64(nil), t.layerCounts...),
	}
}

// histogramSampleCap keeps the depth-distribution plot from
// materializing one sample per state on big tables.
const histogramSampleCap = 1 << 14

// WriteDistribution prints the per-depth representative counts and a
// depth histogram.
func (s Stats) WriteDistribution(w io.Writer) error {
	p := message.NewPrinter(language.English)
	total := lo.Sum(s.LayerCounts)
	p.Fprintf(w, "depth distribution (%d canonical states, table depth %d, complete=%v):\n",
		total, s.BuiltDepth, s.Complete)
	for d, c := range s.LayerCounts {
		p.Fprintf(w, "%3d: %d\n", d, c)
	}
	if len(s.LayerCounts) < 2 {
		return nil
	}

	scale := total/histogramSampleCap + 1
	var samples []float64
	for d, c := range s.LayerCounts {
		for i := uint64(0); i < c/scale; i++ {
			samples = append(samples, float64(d))
		}
	}
	if len(samples) == 0 {
		return nil
	}
	hist := histogram.Hist(len(s.LayerCounts), samples)
	if err := histogram.Fprint(w, hist, histogram.Linear(40)); err != nil {
		return fmt.Errorf("printing depth histogram: %w", err)
	}
	return nil
}
