// Package strset implements the small string sets tracked per regex
// fragment (exact, prefix and suffix sets) together with the prefix/suffix
// dominance reduction that keeps them minimal.
package strset

import (
	"sort"
	"unicode/utf8"
)

// Set is an unordered set of strings.
type Set map[string]struct{}

// Of returns a Set holding items.
func Of(items ...string) Set {
	s := make(Set, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Add inserts v into s.
func (s Set) Add(v string) {
	s[v] = struct{}{}
}

// Has reports whether v is a member of s.
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Len returns the number of members.
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Clone returns a shallow copy of s. Clone of a nil Set is an empty Set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// Equal reports whether s and o hold the same members.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for v := range s {
		if !o.Has(v) {
			return false
		}
	}
	return true
}

// MaxLen returns the rune length of the longest member, or 0 for an empty set.
func (s Set) MaxLen() int {
	longest := 0
	for v := range s {
		if n := utf8.RuneCountInString(v); n > longest {
			longest = n
		}
	}
	return longest
}

// Union returns a new set holding the members of a and b.
func Union(a, b Set) Set {
	out := make(Set, len(a)+len(b))
	for v := range a {
		out[v] = struct{}{}
	}
	for v := range b {
		out[v] = struct{}{}
	}
	return out
}

// Concat returns the cartesian concatenation {x+y | x in a, y in b}.
func Concat(a, b Set) Set {
	out := make(Set, len(a)*len(b))
	for x := range a {
		for y := range b {
			out[x+y] = struct{}{}
		}
	}
	return out
}
