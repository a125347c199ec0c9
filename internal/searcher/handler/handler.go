// Package handler exposes the search service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/index/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/tracing"
)

type Searcher interface {
	Search(ctx context.Context, req executor.Request) (*executor.SearchResult, error)
}

// IndexInfo reports on the posting index without forcing a load.
type IndexInfo interface {
	Loaded() bool
	Loads() int64
	Load(ctx context.Context) (*posting.Maps, error)
}

// Tracker receives one event per answered request.
type Tracker interface {
	Track(event analytics.SearchEvent)
}

type Config struct {
	DefaultLimit int
	MaxResults   int
	// TraceSpans logs the span tree of every search.
	TraceSpans bool
}

type Handler struct {
	searcher Searcher
	cache    *cache.QueryCache
	index    IndexInfo
	tracker  Tracker
	cfg      Config
	logger   *slog.Logger
}

// New builds the handler. A nil tracker disables analytics.
func New(searcher Searcher, queryCache *cache.QueryCache, index IndexInfo, tracker Tracker, cfg Config) *Handler {
	if queryCache == nil {
		queryCache = cache.New(nil, 0, nil)
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 100
	}
	if cfg.MaxResults < cfg.DefaultLimit {
		cfg.MaxResults = cfg.DefaultLimit
	}
	return &Handler{
		searcher: searcher,
		cache:    queryCache,
		index:    index,
		tracker:  tracker,
		cfg:      cfg,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
}

// Search serves GET /api/v1/search?q=&ignore_sep=&limit=&doc=&exclude_modern=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, err := h.parseRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	ctx, span := tracing.StartSpan(r.Context(), "http.search", middleware.GetRequestID(r.Context()))
	defer func() {
		span.End()
		if h.cfg.TraceSpans {
			span.Log(logger.FromContext(ctx))
		}
	}()

	result, cacheHit, err := h.cache.GetOrCompute(ctx, req, func(ctx context.Context) (*executor.SearchResult, error) {
		return h.searcher.Search(ctx, req)
	})
	span.SetAttr("cache_hit", cacheHit)
	h.track(ctx, req, result, cacheHit, err, time.Since(start))
	if err != nil {
		span.SetError(err)
		logger.FromContext(ctx).Error("search failed", "pattern", req.Pattern, "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) parseRequest(r *http.Request) (executor.Request, error) {
	q := r.URL.Query()
	req := executor.Request{
		Pattern:  q.Get("q"),
		Document: q.Get("doc"),
		Limit:    h.cfg.DefaultLimit,
	}
	if req.Pattern == "" {
		return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required")
	}

	ignoreSep, err := parseBool(q.Get("ignore_sep"))
	if err != nil {
		return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "ignore_sep must be a boolean")
	}
	req.Mode = posting.ModeFor(ignoreSep)

	if req.ExcludeModern, err = parseBool(q.Get("exclude_modern")); err != nil {
		return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "exclude_modern must be a boolean")
	}

	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 {
			return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
		}
		req.Limit = min(limit, h.cfg.MaxResults)
	}
	return req, nil
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func (h *Handler) track(ctx context.Context, req executor.Request, result *executor.SearchResult, cacheHit bool, err error, elapsed time.Duration) {
	if h.tracker == nil {
		return
	}
	event := analytics.SearchEvent{
		Type:      analytics.EventSearch,
		Pattern:   req.Pattern,
		Mode:      req.Mode.String(),
		CacheHit:  cacheHit,
		LatencyMs: elapsed.Milliseconds(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	}
	switch {
	case err != nil:
		event.Type = analytics.EventError
		event.Error = err.Error()
	case result.Fallback:
		event.Type = analytics.EventFallback
		event.FallbackReason = result.FallbackReason
	case result.TotalHits == 0:
		event.Type = analytics.EventZeroResult
	}
	if result != nil {
		event.Ngrams = len(result.Ngrams)
		event.Candidates = result.Candidates
		event.TotalHits = result.TotalHits
	}
	h.tracker.Track(event)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if !h.cache.Enabled() {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if !h.cache.Enabled() {
		h.writeError(w, apperrors.New(apperrors.ErrStoreUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// IndexStats reports load state and per-partition token counts. It never
// triggers a load.
func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"loaded": h.index.Loaded(),
		"loads":  h.index.Loads(),
	}
	if h.index.Loaded() {
		maps, err := h.index.Load(r.Context())
		if err != nil {
			h.writeError(w, err)
			return
		}
		tokens := make(map[string]int, len(posting.Partitions))
		for p, n := range maps.TokenCounts() {
			tokens[string(p)] = n
		}
		stats["tokens"] = tokens
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to its HTTP status. Server-side failures are reported
// without their internal detail.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		message = appErr.Message
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		message = "internal error"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
