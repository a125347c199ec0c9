package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/index/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/textstore"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/middleware"
)

type fakeSearcher struct {
	mu   sync.Mutex
	reqs []executor.Request
	err  error
}

func (s *fakeSearcher) Search(_ context.Context, req executor.Request) (*executor.SearchResult, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &executor.SearchResult{
		Pattern:   req.Pattern,
		Mode:      req.Mode.String(),
		TotalHits: 1,
		Results:   []textstore.Hit{{ID: 4, Text: "abc"}},
	}, nil
}

type fakeIndex struct {
	loaded bool
	maps   *posting.Maps
}

func (f *fakeIndex) Loaded() bool { return f.loaded }
func (f *fakeIndex) Loads() int64 {
	if f.loaded {
		return 1
	}
	return 0
}
func (f *fakeIndex) Load(context.Context) (*posting.Maps, error) { return f.maps, nil }

type recorder struct {
	mu     sync.Mutex
	events []analytics.SearchEvent
}

func (r *recorder) Track(e analytics.SearchEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func serve(h *Handler, method, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	middleware.RequestID(mux).ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestSearchParsesParameters(t *testing.T) {
	s := &fakeSearcher{}
	tr := &recorder{}
	h := New(s, nil, &fakeIndex{}, tr, Config{DefaultLimit: 10, MaxResults: 50})

	rec := serve(h, http.MethodGet, "/api/v1/search?q=ab%2Bc&ignore_sep=true&limit=500&doc=sam&exclude_modern=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	require.Len(t, s.reqs, 1)
	assert.Equal(t, executor.Request{
		Pattern:       "ab+c",
		Mode:          posting.ModeWithoutSeparator,
		Document:      "sam",
		ExcludeModern: true,
		Limit:         50,
	}, s.reqs[0])

	var body executor.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "nosep", body.Mode)
	assert.Equal(t, []textstore.Hit{{ID: 4, Text: "abc"}}, body.Results)

	require.Len(t, tr.events, 1)
	assert.Equal(t, analytics.EventSearch, tr.events[0].Type)
	assert.Equal(t, rec.Header().Get(middleware.RequestIDHeader), tr.events[0].RequestID)
}

func TestSearchDefaults(t *testing.T) {
	s := &fakeSearcher{}
	h := New(s, nil, &fakeIndex{}, nil, Config{DefaultLimit: 10, MaxResults: 50})
	rec := serve(h, http.MethodGet, "/api/v1/search?q=abc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, posting.ModeWithSeparator, s.reqs[0].Mode)
	assert.Equal(t, 10, s.reqs[0].Limit)
}

func TestSearchRejectsBadParameters(t *testing.T) {
	h := New(&fakeSearcher{}, nil, &fakeIndex{}, nil, Config{})
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=abc&limit=0",
		"/api/v1/search?q=abc&limit=x",
		"/api/v1/search?q=abc&ignore_sep=maybe",
		"/api/v1/search?q=abc&exclude_modern=2",
	} {
		rec := serve(h, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestSearchErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("parsing: %w", apperrors.ErrInvalidPattern), http.StatusBadRequest},
		{fmt.Errorf("loading: %w", apperrors.ErrIndexUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("store: %w", apperrors.ErrTimeout), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		tr := &recorder{}
		h := New(&fakeSearcher{err: tt.err}, nil, &fakeIndex{}, tr, Config{})
		rec := serve(h, http.MethodGet, "/api/v1/search?q=abc")
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())
		require.Len(t, tr.events, 1)
		assert.Equal(t, analytics.EventError, tr.events[0].Type)
	}

	h := New(&fakeSearcher{err: errors.New("secret dsn")}, nil, &fakeIndex{}, nil, Config{})
	rec := serve(h, http.MethodGet, "/api/v1/search?q=abc")
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	h := New(&fakeSearcher{}, nil, &fakeIndex{}, nil, Config{})
	rec := serve(h, http.MethodGet, "/api/v1/cache/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"disabled"}`, rec.Body.String())

	rec = serve(h, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(h, http.MethodGet, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestIndexStats(t *testing.T) {
	idx := &fakeIndex{}
	h := New(&fakeSearcher{}, nil, idx, nil, Config{})
	rec := serve(h, http.MethodGet, "/api/v1/index/stats")
	assert.JSONEq(t, `{"loaded":false,"loads":0}`, rec.Body.String())

	idx.loaded = true
	idx.maps = &posting.Maps{
		Common:           posting.MapOf(map[string][]uint32{"abc": {1}, "bcd": {1}}),
		WithSeparator:    posting.MapOf(map[string][]uint32{"a b": {2}}),
		WithoutSeparator: posting.MapOf(nil),
	}
	rec = serve(h, http.MethodGet, "/api/v1/index/stats")
	assert.JSONEq(t, `{"loaded":true,"loads":1,"tokens":{"common":2,"sep":1,"nosep":0}}`, rec.Body.String())
}
