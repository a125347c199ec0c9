package ast

import (
	"fmt"
	"regexp/syntax"
	"unicode"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/errors"
)

// ParseFlags are the regexp/syntax flags patterns are parsed with.
const ParseFlags = syntax.Perl

// Parse parses pattern and converts it with FromSyntax. The tree is not
// simplified, so bounded repeats such as {2,4} reach the analyzer as written.
func Parse(pattern string, maxClassSize int) (Node, error) {
	re, err := syntax.Parse(pattern, ParseFlags)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidPattern, err)
	}
	return FromSyntax(re, maxClassSize)
}

// FromSyntax converts a regexp/syntax tree. Classes with more than
// maxClassSize members and ops with no counterpart fail with
// ErrUnsupportedConstruct.
func FromSyntax(re *syntax.Regexp, maxClassSize int) (Node, error) {
	switch re.Op {
	case syntax.OpLiteral:
		return literalRun(re.Rune, re.Flags&syntax.FoldCase != 0), nil

	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		return AnyChar{}, nil

	case syntax.OpCharClass:
		return charClass(re.Rune, maxClassSize)

	case syntax.OpEmptyMatch:
		return Concat{}, nil

	case syntax.OpCapture:
		return FromSyntax(re.Sub[0], maxClassSize)

	case syntax.OpConcat, syntax.OpAlternate:
		subs := make([]Node, 0, len(re.Sub))
		for _, s := range re.Sub {
			n, err := FromSyntax(s, maxClassSize)
			if err != nil {
				return nil, err
			}
			subs = append(subs, n)
		}
		if re.Op == syntax.OpConcat {
			return Concat{Subs: subs}, nil
		}
		return Alternate{Subs: subs}, nil

	case syntax.OpStar, syntax.OpPlus, syntax.OpQuest, syntax.OpRepeat:
		sub, err := FromSyntax(re.Sub[0], maxClassSize)
		if err != nil {
			return nil, err
		}
		lo, hi := repeatBounds(re)
		return Repeat{Sub: sub, Min: lo, Max: hi}, nil

	case syntax.OpBeginLine:
		return Assertion{Kind: BeginLine}, nil
	case syntax.OpEndLine:
		return Assertion{Kind: EndLine}, nil
	case syntax.OpBeginText:
		return Assertion{Kind: BeginText}, nil
	case syntax.OpEndText:
		return Assertion{Kind: EndText}, nil
	case syntax.OpWordBoundary:
		return Assertion{Kind: WordBoundary}, nil
	case syntax.OpNoWordBoundary:
		return Assertion{Kind: NoWordBoundary}, nil
	}
	return nil, fmt.Errorf("%w: regexp op %v", apperrors.ErrUnsupportedConstruct, re.Op)
}

func repeatBounds(re *syntax.Regexp) (int, int) {
	switch re.Op {
	case syntax.OpStar:
		return 0, Unbounded
	case syntax.OpPlus:
		return 1, Unbounded
	case syntax.OpQuest:
		return 0, 1
	}
	if re.Max < 0 {
		return re.Min, Unbounded
	}
	return re.Min, re.Max
}

func literalRun(runes []rune, fold bool) Node {
	subs := make([]Node, len(runes))
	for i, r := range runes {
		subs[i] = literal(r, fold)
	}
	if len(subs) == 1 {
		return subs[0]
	}
	return Concat{Subs: subs}
}

// literal expands a case-folded rune into an alternation over its orbit.
func literal(r rune, fold bool) Node {
	if !fold {
		return Literal{Rune: r}
	}
	elems := []Node{Literal{Rune: r}}
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		elems = append(elems, Literal{Rune: f})
	}
	if len(elems) == 1 {
		return elems[0]
	}
	return Alternate{Subs: elems}
}

// charClass converts lo-hi range pairs. A class reaching the top of the
// rune space is the parser's rendering of a negation.
func charClass(ranges []rune, maxClassSize int) (Node, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: empty character class", apperrors.ErrUnsupportedConstruct)
	}
	if ranges[len(ranges)-1] == unicode.MaxRune {
		return CharClass{Negated: true}, nil
	}
	size := 0
	for i := 0; i+1 < len(ranges); i += 2 {
		size += int(ranges[i+1]-ranges[i]) + 1
		if size > maxClassSize {
			return nil, fmt.Errorf("%w: character class with more than %d members",
				apperrors.ErrUnsupportedConstruct, maxClassSize)
		}
	}
	elems := make([]Literal, 0, size)
	for i := 0; i+1 < len(ranges); i += 2 {
		for r := ranges[i]; r <= ranges[i+1]; r++ {
			elems = append(elems, Literal{Rune: r})
		}
	}
	return CharClass{Elems: elems}, nil
}
