// Package executor runs a search end to end: compile the pattern, pick
// candidate records from the n-gram index, and verify them against the text
// store. Patterns the index cannot narrow are answered by a full scan.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/index/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/query"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/searcher/resolver"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/textstore"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/tracing"
)

// TextStore evaluates the real pattern over stored records.
type TextStore interface {
	Verify(ctx context.Context, ids []uint32, pattern string, filter textstore.Filter) ([]textstore.Hit, error)
	Scan(ctx context.Context, pattern string, filter textstore.Filter) ([]textstore.Hit, error)
}

// Index hands out the loaded posting maps.
type Index interface {
	Load(ctx context.Context) (*posting.Maps, error)
}

type Request struct {
	Pattern       string
	Mode          posting.Mode
	Document      string
	ExcludeModern bool
	Limit         int
}

func (r Request) filter() textstore.Filter {
	return textstore.Filter{
		Mode:          r.Mode,
		Document:      r.Document,
		ExcludeModern: r.ExcludeModern,
		Limit:         r.Limit,
	}
}

type SearchResult struct {
	Pattern        string          `json:"pattern"`
	Mode           string          `json:"mode"`
	Ngrams         []string        `json:"ngrams,omitempty"`
	Candidates     uint64          `json:"candidates"`
	TotalHits      int             `json:"total_hits"`
	Fallback       bool            `json:"fallback"`
	FallbackReason string          `json:"fallback_reason,omitempty"`
	Results        []textstore.Hit `json:"results"`
}

type Config struct {
	Compiler      *query.Compiler
	VerifyTimeout time.Duration
	// Breaker guards text store calls. Nil builds one that ignores caller
	// errors.
	Breaker *resilience.CircuitBreaker
	Metrics *metrics.Metrics
}

type Executor struct {
	index    Index
	store    TextStore
	compiler *query.Compiler
	resolver *resolver.Resolver
	breaker  *resilience.CircuitBreaker
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(index Index, store TextStore, cfg Config) *Executor {
	if cfg.Compiler == nil {
		cfg.Compiler = query.NewCompiler(query.Options{})
	}
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.NewCircuitBreaker("text-store", resilience.CircuitBreakerConfig{
			IsFailure: IsStoreFailure,
		})
	}
	return &Executor{
		index:    index,
		store:    store,
		compiler: cfg.Compiler,
		resolver: resolver.New(),
		breaker:  cfg.Breaker,
		timeout:  cfg.VerifyTimeout,
		metrics:  cfg.Metrics,
		logger:   slog.Default().With("component", "query-executor"),
	}
}

// IsStoreFailure reports whether err from the text store says something
// about the store's health rather than about the request.
func IsStoreFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, apperrors.ErrInvalidPattern),
		errors.Is(err, apperrors.ErrInvalidInput),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// Search answers req. Malformed patterns fail with ErrInvalidPattern; every
// other pattern gets an answer, from the index when it can narrow the
// search and from a full scan otherwise.
func (e *Executor) Search(ctx context.Context, req Request) (*SearchResult, error) {
	start := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, "search")
	defer span.End()
	span.SetAttr("pattern", req.Pattern)
	span.SetAttr("mode", req.Mode.String())

	result, path, err := e.search(ctx, req)
	if err != nil {
		span.SetError(err)
		e.metrics.ObserveSearch(metrics.ResultError, "", 0)
		return nil, err
	}

	resultType := metrics.ResultHit
	switch {
	case result.Fallback:
		resultType = metrics.ResultFallback
	case result.TotalHits == 0:
		resultType = metrics.ResultZero
	}
	e.metrics.ObserveSearch(resultType, path, time.Since(start))
	span.SetAttr("hits", result.TotalHits)

	logger.FromContext(ctx).Info("search completed",
		"pattern", req.Pattern,
		"mode", req.Mode.String(),
		"candidates", result.Candidates,
		"hits", result.TotalHits,
		"fallback", result.FallbackReason,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (e *Executor) search(ctx context.Context, req Request) (*SearchResult, string, error) {
	result := &SearchResult{
		Pattern: req.Pattern,
		Mode:    req.Mode.String(),
		Results: []textstore.Hit{},
	}
	if req.Pattern == "" {
		return result, "", nil
	}
	q, err := e.compile(ctx, req.Pattern)
	if err != nil {
		if !apperrors.IsFallback(err) {
			return nil, "", err
		}
		return e.fallback(ctx, req, result, err)
	}
	result.Ngrams = q.Tokens

	maps, err := e.index.Load(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("loading n-gram index: %w", err)
	}

	_, rspan := tracing.StartChildSpan(ctx, "resolve")
	candidates, err := e.resolver.FindCandidateIDs(q.Formula, maps.ForMode(req.Mode))
	if err != nil {
		rspan.SetError(err)
		rspan.End()
		return nil, "", err
	}
	result.Candidates = candidates.GetCardinality()
	rspan.SetAttr("candidates", result.Candidates)
	rspan.End()
	e.metrics.ObserveCandidates(result.Candidates)
	if candidates.IsEmpty() {
		return result, metrics.PathIndex, nil
	}

	hits, err := e.callStore(ctx, "verify", func(ctx context.Context) ([]textstore.Hit, error) {
		return e.store.Verify(ctx, candidates.ToArray(), req.Pattern, req.filter())
	})
	if err != nil {
		return nil, "", err
	}
	result.Results = hits
	result.TotalHits = len(hits)
	return result, metrics.PathIndex, nil
}

func (e *Executor) compile(ctx context.Context, pattern string) (*query.Query, error) {
	_, span := tracing.StartChildSpan(ctx, "compile")
	defer span.End()
	q, err := e.compiler.Compile(pattern)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.SetAttr("ngrams", len(q.Tokens))
	return q, nil
}

func (e *Executor) fallback(ctx context.Context, req Request, result *SearchResult, cause error) (*SearchResult, string, error) {
	reason := metrics.ReasonUnsupported
	if errors.Is(cause, apperrors.ErrPatternTooBroad) {
		reason = metrics.ReasonTooBroad
	}
	e.metrics.ObserveFallback(reason)
	logger.FromContext(ctx).Info("falling back to full scan", "pattern", req.Pattern, "reason", reason, "cause", cause)

	hits, err := e.callStore(ctx, "scan", func(ctx context.Context) ([]textstore.Hit, error) {
		return e.store.Scan(ctx, req.Pattern, req.filter())
	})
	if err != nil {
		return nil, "", err
	}
	result.Fallback = true
	result.FallbackReason = reason
	result.Results = hits
	result.TotalHits = len(hits)
	return result, metrics.PathScan, nil
}

// callStore runs one text store call under the circuit breaker and the
// verify timeout.
func (e *Executor) callStore(ctx context.Context, name string, fn func(ctx context.Context) ([]textstore.Hit, error)) ([]textstore.Hit, error) {
	ctx, span := tracing.StartChildSpan(ctx, name)
	defer span.End()

	var hits []textstore.Hit
	err := e.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, e.timeout, name, func(ctx context.Context) error {
			var err error
			hits, err = fn(ctx)
			return err
		})
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		err = fmt.Errorf("%w: %w", apperrors.ErrStoreUnavailable, err)
	}
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("text store %s: %w", name, err)
	}
	span.SetAttr("hits", len(hits))
	return hits, nil
}
