// Package posting holds the in-memory n-gram posting index and the
// once-only loader that builds it from shard files.
package posting

import (
	"github.com/RoaringBitmap/roaring"
)

// Partition names one of the three shard families.
type Partition string

const (
	Common           Partition = "common"
	WithSeparator    Partition = "sep"
	WithoutSeparator Partition = "nosep"
)

// Partitions lists every partition in load order.
var Partitions = []Partition{Common, WithSeparator, WithoutSeparator}

// Map is one partition: n-gram token to the IDs of documents containing it.
type Map map[string]*roaring.Bitmap

// Lookup returns the IDs for token, or nil when the token never occurs.
// The bitmap is shared and must not be modified.
func (m Map) Lookup(token string) *roaring.Bitmap {
	return m[token]
}

// MapOf builds a Map from plain ID lists.
func MapOf(postings map[string][]uint32) Map {
	m := make(Map, len(postings))
	for token, ids := range postings {
		m.add(token, ids)
	}
	return m
}

// add merges ids into the list for token.
func (m Map) add(token string, ids []uint32) {
	bm, ok := m[token]
	if !ok {
		bm = roaring.New()
		m[token] = bm
	}
	bm.AddMany(ids)
}

// Mode selects which separator-derived partition a search consults.
type Mode int

const (
	// ModeWithSeparator keeps word and syllable separators in the text.
	ModeWithSeparator Mode = iota
	// ModeWithoutSeparator matches against text with separators stripped.
	ModeWithoutSeparator
)

// ModeFor maps the HTTP ignore_sep flag to a Mode.
func ModeFor(ignoreSep bool) Mode {
	if ignoreSep {
		return ModeWithoutSeparator
	}
	return ModeWithSeparator
}

func (m Mode) String() string {
	if m == ModeWithoutSeparator {
		return "nosep"
	}
	return "sep"
}

// Maps is the loaded index. It is never modified after the loader
// publishes it.
type Maps struct {
	Common           Map
	WithSeparator    Map
	WithoutSeparator Map
}

func newMaps() *Maps {
	return &Maps{
		Common:           make(Map),
		WithSeparator:    make(Map),
		WithoutSeparator: make(Map),
	}
}

// Partition returns the map for p.
func (m *Maps) Partition(p Partition) Map {
	switch p {
	case WithSeparator:
		return m.WithSeparator
	case WithoutSeparator:
		return m.WithoutSeparator
	default:
		return m.Common
	}
}

// ForMode returns the maps consulted by a search in mode: Common plus
// exactly one separator partition.
func (m *Maps) ForMode(mode Mode) []Map {
	if mode == ModeWithoutSeparator {
		return []Map{m.Common, m.WithoutSeparator}
	}
	return []Map{m.Common, m.WithSeparator}
}

// TokenCounts returns the number of distinct tokens per partition.
func (m *Maps) TokenCounts() map[Partition]int {
	counts := make(map[Partition]int, len(Partitions))
	for _, p := range Partitions {
		counts[p] = len(m.Partition(p))
	}
	return counts
}
