// Package fragment derives, for every node of a regex tree, what any text
// matched by that node must look like: whether it can be empty, the closed
// set of strings it produces when that set is small, the strings its matches
// can start and end with, and a boolean n-gram formula every match satisfies.
package fragment

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/query/match"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/query/strset"
)

// Fragment is the analysis of one regex node. Fragments are never modified
// after construction; combinators build new ones.
type Fragment struct {
	Emptyable bool
	// Exact is every string the node can match, or nil once that set is
	// unknown or was given up as too large.
	Exact  strset.Set
	Prefix strset.Set
	Suffix strset.Set
	Match  match.Formula
}

// ExactKnown reports whether Exact is tracked.
func (f Fragment) ExactKnown() bool {
	return f.Exact != nil
}

func (f Fragment) String() string {
	exact := "?"
	if f.ExactKnown() {
		exact = renderSet(f.Exact)
	}
	return fmt.Sprintf("{emptyable=%t exact=%s prefix=%s suffix=%s match=%s}",
		f.Emptyable, exact, renderSet(f.Prefix), renderSet(f.Suffix), f.Match)
}

func renderSet(s strset.Set) string {
	return "[" + strings.Join(quoteAll(s.Sorted()), " ") + "]"
}

func quoteAll(items []string) []string {
	for i, v := range items {
		items[i] = fmt.Sprintf("%q", v)
	}
	return items
}

// Literal is the fragment of a single character.
func Literal(r rune) Fragment {
	ch := string(r)
	return Fragment{
		Exact:  strset.Of(ch),
		Prefix: strset.Of(ch),
		Suffix: strset.Of(ch),
		Match:  match.Any,
	}
}

// AnyChar is the fragment of a wildcard character. The {""} boundary sets
// carry no information.
func AnyChar() Fragment {
	return Fragment{
		Prefix: strset.Of(""),
		Suffix: strset.Of(""),
		Match:  match.Any,
	}
}

// Empty is the fragment of the empty pattern.
func Empty() Fragment {
	return Fragment{
		Emptyable: true,
		Exact:     strset.Of(""),
		Prefix:    strset.Of(""),
		Suffix:    strset.Of(""),
		Match:     match.Any,
	}
}

// Concat combines a followed by b.
func Concat(a, b Fragment) Fragment {
	out := Fragment{
		Emptyable: a.Emptyable && b.Emptyable,
		Match:     match.And(a.Match, b.Match),
	}
	if a.ExactKnown() && b.ExactKnown() {
		out.Exact = strset.Concat(a.Exact, b.Exact)
	}

	switch {
	case a.ExactKnown():
		out.Prefix = strset.Concat(a.Exact, b.Prefix)
	case a.Emptyable:
		out.Prefix = strset.Union(a.Prefix, b.Prefix)
	default:
		out.Prefix = a.Prefix
	}

	switch {
	case b.ExactKnown():
		out.Suffix = strset.Concat(a.Suffix, b.Exact)
	case b.Emptyable:
		out.Suffix = strset.Union(b.Suffix, a.Suffix)
	default:
		out.Suffix = b.Suffix
	}
	return out
}

// Alternate combines a or b. Character classes are alternations of their
// members.
func Alternate(a, b Fragment) Fragment {
	out := Fragment{
		Emptyable: a.Emptyable || b.Emptyable,
		Prefix:    strset.Union(a.Prefix, b.Prefix),
		Suffix:    strset.Union(a.Suffix, b.Suffix),
		Match:     match.Or(a.Match, b.Match),
	}
	if a.ExactKnown() && b.ExactKnown() {
		out.Exact = strset.Union(a.Exact, b.Exact)
	}
	return out
}

// Optional is f{0,1}. Only the exact set survives; boundaries and the
// formula become unconstrained.
func Optional(f Fragment) Fragment {
	out := Fragment{
		Emptyable: true,
		Prefix:    strset.Of(""),
		Suffix:    strset.Of(""),
		Match:     match.Any,
	}
	if f.ExactKnown() {
		out.Exact = strset.Union(f.Exact, strset.Of(""))
	}
	return out
}

// Star is f{0,}.
func Star(Fragment) Fragment {
	return Fragment{
		Emptyable: true,
		Prefix:    strset.Of(""),
		Suffix:    strset.Of(""),
		Match:     match.Any,
	}
}

// Plus is f{1,}. One occurrence is guaranteed, so f's boundaries and
// formula still hold.
func Plus(f Fragment) Fragment {
	return Fragment{
		Emptyable: f.Emptyable,
		Prefix:    f.Prefix,
		Suffix:    f.Suffix,
		Match:     f.Match,
	}
}
