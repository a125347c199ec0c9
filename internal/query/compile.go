// Package query compiles a regular expression into the n-gram formula used
// to select candidate documents from the posting index.
package query

import (
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/query/ast"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/query/fragment"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/query/match"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/errors"
)

const DefaultMaxClassSize = 64

// Query is a compiled pattern.
type Query struct {
	Pattern  string
	Fragment fragment.Fragment
	// Formula is never match.Any.
	Formula match.Formula
	Tokens  []string
}

type Options struct {
	MaxSetSize   int
	MaxClassSize int
}

// Compiler is safe for concurrent use.
type Compiler struct {
	analyzer     *fragment.Analyzer
	maxClassSize int
	logger       *slog.Logger
}

func NewCompiler(opts Options) *Compiler {
	if opts.MaxClassSize <= 0 {
		opts.MaxClassSize = DefaultMaxClassSize
	}
	return &Compiler{
		analyzer:     fragment.NewAnalyzer(opts.MaxSetSize),
		maxClassSize: opts.MaxClassSize,
		logger:       slog.Default().With("component", "query-compiler"),
	}
}

// Compile parses and analyzes pattern. It fails with ErrInvalidPattern for
// malformed input, ErrUnsupportedConstruct for constructs the index cannot
// approximate and ErrPatternTooBroad when no n-gram constraint could be
// derived. The last two are answered by a full scan.
func (c *Compiler) Compile(pattern string) (*Query, error) {
	node, err := ast.Parse(pattern, c.maxClassSize)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", pattern, err)
	}
	frag, err := c.analyzer.Analyze(node)
	if err != nil {
		return nil, fmt.Errorf("analyzing %q: %w", pattern, err)
	}
	if match.IsAny(frag.Match) {
		return nil, fmt.Errorf("compiling %q: %w", pattern, apperrors.ErrPatternTooBroad)
	}

	q := &Query{
		Pattern:  pattern,
		Fragment: frag,
		Formula:  frag.Match,
		Tokens:   match.Tokens(frag.Match),
	}
	c.logger.Debug("pattern compiled",
		"pattern", pattern,
		"prefixes", frag.Prefix.Len(),
		"suffixes", frag.Suffix.Len(),
		"exact_known", frag.ExactKnown(),
		"ngrams", len(q.Tokens),
	)
	return q, nil
}

// Compile compiles pattern with the default set and class bounds.
func Compile(pattern string) (*Query, error) {
	return NewCompiler(Options{}).Compile(pattern)
}
