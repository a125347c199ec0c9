package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/index/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/query/match"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/errors"
)

// Resolver turns n-gram formulas into candidate document IDs.
type Resolver struct {
	logger *slog.Logger
}

func New() *Resolver {
	return &Resolver{logger: slog.Default().With("component", "candidate-resolver")}
}

// FindCandidateIDs resolves f with a fresh Resolver.
func FindCandidateIDs(f match.Formula, maps []posting.Map) (*roaring.Bitmap, error) {
	return New().FindCandidateIDs(f, maps)
}

// FindCandidateIDs evaluates f against maps and returns every document that
// can satisfy it. The result is a superset of the true matches and owned by
// the caller. An Any anywhere in f is an ErrEvaluatorInvariant.
func (r *Resolver) FindCandidateIDs(f match.Formula, maps []posting.Map) (*roaring.Bitmap, error) {
	tokens := match.Tokens(f)
	hits := make(map[string]*roaring.Bitmap, len(tokens))
	for _, tok := range tokens {
		lists := make([]*roaring.Bitmap, 0, len(maps))
		for _, m := range maps {
			if bm := m.Lookup(tok); bm != nil {
				lists = append(lists, bm)
			}
		}
		hits[tok] = roaring.FastOr(lists...)
	}
	if r.logger.Enabled(context.Background(), slog.LevelDebug) {
		for _, tok := range tokens {
			r.logger.Debug("ngram postings", "ngram", tok, "ids", hits[tok].GetCardinality())
		}
	}
	return evaluate(f, hits)
}

func evaluate(f match.Formula, hits map[string]*roaring.Bitmap) (*roaring.Bitmap, error) {
	switch node := f.(type) {
	case match.Ngram:
		bm, ok := hits[node.Token]
		if !ok {
			return nil, fmt.Errorf("%w: ngram %q was not collected", apperrors.ErrEvaluatorInvariant, node.Token)
		}
		return bm.Clone(), nil

	case *match.Conjunction:
		return intersectAll(node.Children(), hits)

	case *match.Disjunction:
		return unionAll(node.Children(), hits)
	}
	if match.IsAny(f) {
		return nil, fmt.Errorf("%w: unconstrained formula reached the resolver", apperrors.ErrEvaluatorInvariant)
	}
	return nil, fmt.Errorf("%w: unknown formula %T", apperrors.ErrEvaluatorInvariant, f)
}

// intersectAll evaluates every child, then intersects smallest first and
// stops once the running result is empty.
func intersectAll(children []match.Formula, hits map[string]*roaring.Bitmap) (*roaring.Bitmap, error) {
	sets := make([]*roaring.Bitmap, 0, len(children))
	for _, c := range children {
		bm, err := evaluate(c, hits)
		if err != nil {
			return nil, err
		}
		sets = append(sets, bm)
	}
	sort.Slice(sets, func(i, j int) bool {
		return sets[i].GetCardinality() < sets[j].GetCardinality()
	})
	result := sets[0]
	for _, bm := range sets[1:] {
		if result.IsEmpty() {
			break
		}
		result.And(bm)
	}
	return result, nil
}

func unionAll(children []match.Formula, hits map[string]*roaring.Bitmap) (*roaring.Bitmap, error) {
	result := roaring.New()
	for _, c := range children {
		bm, err := evaluate(c, hits)
		if err != nil {
			return nil, err
		}
		result.Or(bm)
	}
	return result, nil
}
