// Package cache memoizes search results in Redis. Concurrent misses for the
// same request are collapsed into one computation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/redis"
)

const keyPrefix = "search:v1:"

// Backend is the key-value store behind the cache. *pkgredis.Client
// satisfies it; Get reports absent keys with pkgredis.ErrMiss.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// QueryCache is safe for concurrent use. A QueryCache without a backend
// computes every request.
type QueryCache struct {
	backend Backend
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Enabled reports whether results are stored anywhere.
func (c *QueryCache) Enabled() bool {
	return c.backend != nil
}

func (c *QueryCache) Get(ctx context.Context, req executor.Request) (*executor.SearchResult, bool) {
	if c.backend == nil {
		return nil, false
	}
	key := Key(req)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsMiss(err) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "pattern", req.Pattern, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, req executor.Request, result *executor.SearchResult) {
	if c.backend == nil {
		return
	}
	key := Key(req)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for req, or runs compute once for
// all concurrent callers with the same key and stores its result. Errors
// are never cached. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	req executor.Request,
	compute func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if c.backend == nil {
		result, err := compute(ctx)
		return result, false, err
	}
	if result, ok := c.Get(ctx, req); ok {
		return result, true, nil
	}
	// The shared computation outlives any single caller; each caller still
	// stops waiting when its own context ends. Store calls inside compute
	// are bounded by the executor's verify timeout.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(Key(req), func() (any, error) {
		result, err := compute(shared)
		if err != nil {
			return nil, err
		}
		c.Set(shared, req, result)
		return result, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*executor.SearchResult), false, nil
	}
}

// Invalidate drops every cached search result and returns how many keys
// were removed.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	if c.backend == nil {
		return 0, nil
	}
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Key derives the cache key of req. Patterns are case-sensitive and are
// hashed verbatim.
func Key(req executor.Request) string {
	h := sha256.New()
	for _, part := range []string{
		req.Mode.String(),
		req.Pattern,
		strconv.Itoa(req.Limit),
		req.Document,
		strconv.FormatBool(req.ExcludeModern),
	} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{':'})
		h.Write([]byte(part))
	}
	return fmt.Sprintf("%s%x", keyPrefix, h.Sum(nil)[:16])
}
