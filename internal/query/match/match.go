// Package match defines the boolean n-gram formula a document must satisfy
// to possibly match a pattern, and the smart constructors that keep it flat
// and free of duplicate children.
package match

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/index/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/query/strset"
)

// Formula is one of Any, Ngram, *Conjunction or *Disjunction.
type Formula interface {
	// String renders the formula canonically; structurally equal formulas
	// render identically.
	String() string
	isFormula()
}

type anyFormula struct{}

func (anyFormula) String() string { return "*" }
func (anyFormula) isFormula()     {}

// Any places no constraint on a document. It is the identity of And and
// absorbs Or.
var Any Formula = anyFormula{}

// IsAny reports whether f is Any.
func IsAny(f Formula) bool {
	_, ok := f.(anyFormula)
	return ok
}

// Ngram requires the document to contain Token.
type Ngram struct {
	Token string
}

func (n Ngram) String() string { return strconv.Quote(n.Token) }
func (Ngram) isFormula()       {}

// Conjunction requires every child to hold. Children are never
// conjunctions, never Any, have no duplicates and are kept in canonical order.
type Conjunction struct {
	children []Formula
	key      string
}

func (c *Conjunction) String() string { return c.key }
func (*Conjunction) isFormula()       {}

// Children returns the operands. The slice must not be modified.
func (c *Conjunction) Children() []Formula { return c.children }

// Disjunction requires at least one child to hold. Children are never
// disjunctions, never Any, have no duplicates and are kept in canonical order.
type Disjunction struct {
	children []Formula
	key      string
}

func (d *Disjunction) String() string { return d.key }
func (*Disjunction) isFormula()       {}

// Children returns the operands. The slice must not be modified.
func (d *Disjunction) Children() []Formula { return d.children }

// And returns the conjunction of a and b.
func And(a, b Formula) Formula {
	if IsAny(a) {
		return b
	}
	if IsAny(b) {
		return a
	}
	children := combine(a, b, func(f Formula) []Formula {
		if c, ok := f.(*Conjunction); ok {
			return c.children
		}
		return nil
	})
	if len(children) == 1 {
		return children[0]
	}
	return &Conjunction{children: children, key: render("and", children)}
}

// Or returns the disjunction of a and b. If either side is unconstrained the
// disjunction is too.
func Or(a, b Formula) Formula {
	if IsAny(a) || IsAny(b) {
		return Any
	}
	children := combine(a, b, func(f Formula) []Formula {
		if d, ok := f.(*Disjunction); ok {
			return d.children
		}
		return nil
	})
	if len(children) == 1 {
		return children[0]
	}
	return &Disjunction{children: children, key: render("or", children)}
}

// combine flattens a and b one level using flatten, then deduplicates and
// sorts the operands by their canonical rendering.
func combine(a, b Formula, flatten func(Formula) []Formula) []Formula {
	var operands []Formula
	for _, f := range []Formula{a, b} {
		if inner := flatten(f); inner != nil {
			operands = append(operands, inner...)
		} else {
			operands = append(operands, f)
		}
	}
	seen := make(map[string]struct{}, len(operands))
	out := make([]Formula, 0, len(operands))
	for _, f := range operands {
		k := f.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

func render(op string, children []Formula) string {
	var b strings.Builder
	b.WriteString(op)
	b.WriteByte('(')
	for i, c := range children {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(c.String())
	}
	b.WriteByte(')')
	return b.String()
}

// NgramsSingle returns the conjunction of every trigram of text: a document
// can contain text only if it contains all of them. Text shorter than a
// trigram yields Any.
func NgramsSingle(text string) Formula {
	result := Any
	for _, gram := range tokenizer.Trigrams(text) {
		result = And(result, Ngram{Token: gram})
	}
	return result
}

// Ngrams returns the disjunction of NgramsSingle over the members of set.
// An empty set yields Any.
func Ngrams(set strset.Set) Formula {
	members := set.Sorted()
	if len(members) == 0 {
		return Any
	}
	result := NgramsSingle(members[0])
	for _, m := range members[1:] {
		if IsAny(result) {
			return Any
		}
		result = Or(result, NgramsSingle(m))
	}
	return result
}

// Tokens returns the distinct n-gram tokens referenced by f, sorted.
func Tokens(f Formula) []string {
	seen := make(map[string]struct{})
	var walk func(Formula)
	walk = func(f Formula) {
		switch node := f.(type) {
		case Ngram:
			seen[node.Token] = struct{}{}
		case *Conjunction:
			for _, c := range node.children {
				walk(c)
			}
		case *Disjunction:
			for _, c := range node.children {
				walk(c)
			}
		}
	}
	walk(f)
	out := make([]string, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}
