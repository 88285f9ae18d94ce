package puzzle

import (
	"math"

	"github.com/cespare/xxhash"
)

// Coordinate compresses a state into a dense signature for pruning
// table indexing. Which pieces contribute is puzzle-specific; a table
// built with one coordinate must be read with the same one. Projection
// coordinates (ones that discard information) are fine: the table
// records the minimum distance over every state sharing a signature,
// which keeps the bound admissible.
type Coordinate interface {
	Name() string
	Size() uint64
	Encode(s State) uint64
}

// PermCoordinate ranks the permutation half of the state in the
// factorial number system. Orientations are discarded.
type PermCoordinate struct {
	n int
}

func NewPermCoordinate(d *Def) PermCoordinate {
	return PermCoordinate{n: d.Size}
}

func (c PermCoordinate) Name() string { return "perm-rank" }

func (c PermCoordinate) Size() uint64 {
	size := uint64(1)
	for i := 2; i <= c.n; i++ {
		size *= uint64(i)
	}
	return size
}

func (c PermCoordinate) Encode(s State) uint64 {
	// Lehmer code without the O(n^2) blowup mattering at these sizes.
	var rank uint64
	for i := 0; i < c.n; i++ {
		smaller := 0
		for j := i + 1; j < c.n; j++ {
			if s[j] < s[i] {
				smaller++
			}
		}
		rank = rank*uint64(c.n-i) + uint64(smaller)
	}
	return rank
}

// OriCoordinate encodes the orientation half as a base-OriMod number.
// The permutation is discarded.
type OriCoordinate struct {
	n   int
	mod uint8
}

func NewOriCoordinate(d *Def) OriCoordinate {
	return OriCoordinate{n: d.Size, mod: d.OriMod}
}

func (c OriCoordinate) Name() string { return "orientation" }

func (c OriCoordinate) Size() uint64 {
	size := uint64(1)
	for i := 0; i < c.n; i++ {
		size *= uint64(c.mod)
	}
	return size
}

func (c OriCoordinate) Encode(s State) uint64 {
	var v uint64
	for i := 0; i < c.n; i++ {
		v = v*uint64(c.mod) + uint64(s[c.n+i])
	}
	return v
}

// FullCoordinate combines permutation rank and orientation value. Only
// usable when the product fits comfortably in memory; the table builder
// enforces that through its budget.
type FullCoordinate struct {
	perm PermCoordinate
	ori  OriCoordinate
}

func NewFullCoordinate(d *Def) FullCoordinate {
	return FullCoordinate{perm: NewPermCoordinate(d), ori: NewOriCoordinate(d)}
}

func (c FullCoordinate) Name() string { return "full" }

func (c FullCoordinate) Size() uint64 {
	ps, os := c.perm.Size(), c.ori.Size()
	if os != 0 && ps > math.MaxUint64/os {
		return math.MaxUint64
	}
	return ps * os
}

func (c FullCoordinate) Encode(s State) uint64 {
	return c.perm.Encode(s)*c.ori.Size() + c.ori.Encode(s)
}

// HashCoordinate buckets full states by hash. Collisions only weaken
// the bound (minimum distance per bucket), never break admissibility,
// so this is the fallback for families with no dense coordinate.
type HashCoordinate struct {
	buckets uint64
}

func NewHashCoordinate(buckets uint64) HashCoordinate {
	if buckets == 0 {
		buckets = 1
	}
	return HashCoordinate{buckets: buckets}
}

func (c HashCoordinate) Name() string { return "hashed" }

func (c HashCoordinate) Size() uint64 { return c.buckets }

func (c HashCoordinate) Encode(s State) uint64 {
	return xxhash.Sum64(s) % c.buckets
}
