// Package ast is the regular-expression tree consumed by the fragment
// analyzer. The node set is closed; FromSyntax builds it from a
// regexp/syntax parse tree.
package ast

import (
	"fmt"
	"strings"
)

// Node is one of Literal, AnyChar, Concat, Alternate, CharClass, Repeat or
// Assertion.
type Node interface {
	fmt.Stringer
	isNode()
}

// Unbounded is the Repeat.Max value for an open upper bound.
const Unbounded = -1

// Literal matches exactly one character.
type Literal struct {
	Rune rune
}

// AnyChar matches any single character.
type AnyChar struct{}

// Concat matches its children in sequence. An empty Concat matches the
// empty string.
type Concat struct {
	Subs []Node
}

// Alternate matches any one of its children.
type Alternate struct {
	Subs []Node
}

// CharClass matches one character out of Elems, or any character outside
// Elems when Negated.
type CharClass struct {
	Negated bool
	Elems   []Literal
}

// Repeat matches Sub between Min and Max times. Max is Unbounded for
// open-ended repetition.
type Repeat struct {
	Sub Node
	Min int
	Max int
}

// AssertionKind names a zero-width assertion.
type AssertionKind string

const (
	BeginLine      AssertionKind = "begin_line"
	EndLine        AssertionKind = "end_line"
	BeginText      AssertionKind = "begin_text"
	EndText        AssertionKind = "end_text"
	WordBoundary   AssertionKind = "word_boundary"
	NoWordBoundary AssertionKind = "no_word_boundary"
)

// Assertion is a zero-width assertion such as ^ or \b.
type Assertion struct {
	Kind AssertionKind
}

func (Literal) isNode()   {}
func (AnyChar) isNode()   {}
func (Concat) isNode()    {}
func (Alternate) isNode() {}
func (CharClass) isNode() {}
func (Repeat) isNode()    {}
func (Assertion) isNode() {}

func (l Literal) String() string { return fmt.Sprintf("lit(%q)", l.Rune) }
func (AnyChar) String() string   { return "any" }

func (c Concat) String() string    { return "cat" + renderSubs(c.Subs) }
func (a Alternate) String() string { return "alt" + renderSubs(a.Subs) }

func (c CharClass) String() string {
	subs := make([]Node, len(c.Elems))
	for i, e := range c.Elems {
		subs[i] = e
	}
	if c.Negated {
		return "nclass" + renderSubs(subs)
	}
	return "class" + renderSubs(subs)
}

func (r Repeat) String() string {
	upper := "inf"
	if r.Max != Unbounded {
		upper = fmt.Sprint(r.Max)
	}
	return fmt.Sprintf("rep{%d,%s}(%s)", r.Min, upper, r.Sub)
}

func (a Assertion) String() string { return "assert(" + string(a.Kind) + ")" }

func renderSubs(subs []Node) string {
	parts := make([]string, len(subs))
	for i, s := range subs {
		parts[i] = s.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}
