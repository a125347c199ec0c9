// Package textstore holds the full corpus records and evaluates the real
// pattern against them, either restricted to candidate IDs or as a full
// scan.
package textstore

import (
	"context"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/index/posting"
)

// Store is implemented by Memory and Postgres. Hits come back ordered by ID.
type Store interface {
	// Verify evaluates pattern against the records in ids only.
	Verify(ctx context.Context, ids []uint32, pattern string, filter Filter) ([]Hit, error)
	// Scan evaluates pattern against every record.
	Scan(ctx context.Context, pattern string, filter Filter) ([]Hit, error)
	Ping(ctx context.Context) error
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)

// Record is one corpus sentence.
type Record struct {
	ID             uint32 `json:"id"`
	Filename       string `json:"filename,omitempty"`
	Lang           string `json:"lang,omitempty"`
	Text           string `json:"text"`
	TextWithoutSep string `json:"text_without_sep"`
}

// Hit is a verified match.
type Hit struct {
	ID       uint32 `json:"id"`
	Filename string `json:"filename,omitempty"`
	Text     string `json:"text"`
}

// Filter narrows a query beyond the pattern.
type Filter struct {
	Mode posting.Mode
	// Document keeps records whose filename contains it.
	Document string
	// ExcludeModern drops modern translations and phonetic transcriptions.
	ExcludeModern bool
	Limit         int
}

var modernLangs = map[string]struct{}{
	"mod":                {},
	"modern translation": {},
	"pho":                {},
}

// isModern reports whether lang marks a modern rendering. Translation
// languages are written with a trailing 역.
func isModern(lang string) bool {
	if lang == "" {
		return false
	}
	if _, ok := modernLangs[lang]; ok {
		return true
	}
	return strings.HasSuffix(lang, "역")
}

// field returns the text a search in mode is evaluated against.
func (r *Record) field(mode posting.Mode) string {
	if mode == posting.ModeWithoutSeparator {
		return r.TextWithoutSep
	}
	return r.Text
}

func (f Filter) keep(r *Record) bool {
	if f.Document != "" && !strings.Contains(r.Filename, f.Document) {
		return false
	}
	if f.ExcludeModern && isModern(r.Lang) {
		return false
	}
	return true
}
