package textstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"

	"github.com/hack-pad/hackpadfs"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/errors"
)

// Memory is an in-process store for small corpora and tests. Records are
// kept sorted by ID.
type Memory struct {
	records []Record
	byID    map[uint32]int
	logger  *slog.Logger
}

func NewMemory(records []Record) *Memory {
	sorted := append([]Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	byID := make(map[uint32]int, len(sorted))
	for i, r := range sorted {
		byID[r.ID] = i
	}
	return &Memory{
		records: sorted,
		byID:    byID,
		logger:  slog.Default().With("component", "memory-textstore"),
	}
}

// LoadMemory reads a JSON-lines corpus file.
func LoadMemory(fsys hackpadfs.FS, name string) (*Memory, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening corpus file: %w", err)
	}
	defer f.Close()
	records, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("corpus file %s: %w", name, err)
	}
	m := NewMemory(records)
	m.logger.Info("corpus loaded", "file", name, "records", len(records))
	return m, nil
}

// ReadRecords decodes one Record per line. Blank lines are skipped.
func ReadRecords(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	return records, nil
}

func (m *Memory) Len() int {
	return len(m.records)
}

// Verify evaluates pattern against the records in ids.
func (m *Memory) Verify(ctx context.Context, ids []uint32, pattern string, filter Filter) ([]Hit, error) {
	re, err := compile(pattern)
	if err != nil {
		return nil, err
	}
	sorted := append([]uint32(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	hits := make([]Hit, 0)
	for i, id := range sorted {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		idx, ok := m.byID[id]
		if !ok {
			continue
		}
		if hit, ok := m.check(&m.records[idx], re, filter); ok {
			hits = append(hits, hit)
			if filter.Limit > 0 && len(hits) >= filter.Limit {
				break
			}
		}
	}
	return hits, nil
}

// Scan evaluates pattern against every record.
func (m *Memory) Scan(ctx context.Context, pattern string, filter Filter) ([]Hit, error) {
	re, err := compile(pattern)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0)
	for i := range m.records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if hit, ok := m.check(&m.records[i], re, filter); ok {
			hits = append(hits, hit)
			if filter.Limit > 0 && len(hits) >= filter.Limit {
				break
			}
		}
	}
	return hits, nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

func (m *Memory) check(r *Record, re *regexp.Regexp, filter Filter) (Hit, bool) {
	if !filter.keep(r) || !re.MatchString(r.field(filter.Mode)) {
		return Hit{}, false
	}
	return Hit{ID: r.ID, Filename: r.Filename, Text: r.Text}, true
}

func compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidPattern, err)
	}
	return re, nil
}
