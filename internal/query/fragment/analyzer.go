package fragment

import (
	"fmt"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/query/ast"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/query/match"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/query/strset"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/errors"
)

// DefaultMaxSetSize bounds the prefix, suffix and exact sets of a fragment.
const DefaultMaxSetSize = 32

// Analyzer walks a regex tree bottom-up. It holds no per-pattern state and
// is safe for concurrent use.
type Analyzer struct {
	maxSetSize int
}

func NewAnalyzer(maxSetSize int) *Analyzer {
	if maxSetSize <= 0 {
		maxSetSize = DefaultMaxSetSize
	}
	return &Analyzer{maxSetSize: maxSetSize}
}

// MaxSetSize returns the bound applied by Transform.
func (a *Analyzer) MaxSetSize() int {
	return a.maxSetSize
}

// Analyze returns the fragment of node. Every combinator result passes
// through Transform before it reaches its parent. Constructs outside the
// supported dialect fail with ErrUnsupportedConstruct.
func (a *Analyzer) Analyze(node ast.Node) (Fragment, error) {
	switch n := node.(type) {
	case ast.Literal:
		return Literal(n.Rune), nil

	case ast.AnyChar:
		return AnyChar(), nil

	case ast.Concat:
		if len(n.Subs) == 0 {
			return Empty(), nil
		}
		return a.fold(n.Subs, Concat)

	case ast.Alternate:
		if len(n.Subs) == 0 {
			return Fragment{}, fmt.Errorf("%w: empty alternation", apperrors.ErrUnsupportedConstruct)
		}
		return a.fold(n.Subs, Alternate)

	case ast.CharClass:
		if n.Negated {
			return Fragment{}, fmt.Errorf("%w: negated character class", apperrors.ErrUnsupportedConstruct)
		}
		if len(n.Elems) == 0 {
			return Fragment{}, fmt.Errorf("%w: empty character class", apperrors.ErrUnsupportedConstruct)
		}
		result := Literal(n.Elems[0].Rune)
		for _, e := range n.Elems[1:] {
			result = a.Transform(Alternate(result, Literal(e.Rune)))
		}
		return result, nil

	case ast.Repeat:
		return a.repeat(n)

	case ast.Assertion:
		return Fragment{}, fmt.Errorf("%w: assertion %s", apperrors.ErrUnsupportedConstruct, n.Kind)
	}
	return Fragment{}, fmt.Errorf("%w: node %T", apperrors.ErrUnsupportedConstruct, node)
}

func (a *Analyzer) fold(subs []ast.Node, combine func(Fragment, Fragment) Fragment) (Fragment, error) {
	result, err := a.Analyze(subs[0])
	if err != nil {
		return Fragment{}, err
	}
	for _, sub := range subs[1:] {
		cur, err := a.Analyze(sub)
		if err != nil {
			return Fragment{}, err
		}
		result = a.Transform(combine(result, cur))
	}
	return result, nil
}

func (a *Analyzer) repeat(n ast.Repeat) (Fragment, error) {
	child, err := a.Analyze(n.Sub)
	if err != nil {
		return Fragment{}, err
	}
	var result Fragment
	switch {
	case n.Min == 0 && n.Max == 1:
		result = Optional(child)
	case n.Min == 0 && n.Max == ast.Unbounded:
		result = Star(child)
	case n.Min == 1 && n.Max == ast.Unbounded:
		result = Plus(child)
	case n.Min == 1 && n.Max == 1:
		result = child
	default:
		upper := "inf"
		if n.Max != ast.Unbounded {
			upper = strconv.Itoa(n.Max)
		}
		return Fragment{}, fmt.Errorf("%w: quantifier {%d,%s}", apperrors.ErrUnsupportedConstruct, n.Min, upper)
	}
	return a.Transform(result), nil
}

// Transform bounds the sets of f. Anything discarded is first folded into
// the formula as n-gram constraints, so the result still accepts every
// match of f.
func (a *Analyzer) Transform(f Fragment) Fragment {
	out := f
	out.Prefix = strset.NormalizePrefix(f.Prefix)
	out.Suffix = strset.NormalizeSuffix(f.Suffix)

	for out.Prefix.Len() > a.maxSetSize {
		out.Match = match.And(out.Match, match.Ngrams(out.Prefix))
		out.Prefix = strset.NormalizePrefix(truncate(out.Prefix, false))
	}
	for out.Suffix.Len() > a.maxSetSize {
		out.Match = match.And(out.Match, match.Ngrams(out.Suffix))
		out.Suffix = strset.NormalizeSuffix(truncate(out.Suffix, true))
	}

	if out.ExactKnown() && out.Exact.Len() > a.maxSetSize {
		out.Match = match.And(out.Match, match.Ngrams(out.Exact))
		out.Exact = nil
	}

	if match.IsAny(out.Match) {
		out.Match = match.And(out.Match, match.Ngrams(out.Prefix))
		out.Match = match.And(out.Match, match.Ngrams(out.Suffix))
	}
	if out.ExactKnown() {
		out.Match = match.And(out.Match, match.Ngrams(out.Exact))
	}
	return out
}

// truncate shortens the longest members of s by one rune, from the end for
// prefixes and from the front for suffixes.
func truncate(s strset.Set, fromFront bool) strset.Set {
	limit := s.MaxLen() - 1
	out := make(strset.Set, s.Len())
	for v := range s {
		runes := []rune(v)
		if len(runes) > limit {
			if fromFront {
				runes = runes[len(runes)-limit:]
			} else {
				runes = runes[:limit]
			}
		}
		out.Add(string(runes))
	}
	return out
}
