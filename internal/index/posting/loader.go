package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hack-pad/hackpadfs"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/index/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/errors"
)

const progressEvery = 100

// LoadStats describes one completed load.
type LoadStats struct {
	Duration time.Duration
	Shards   map[Partition]int
	Tokens   map[Partition]int
}

type LoaderConfig struct {
	Dir string
	// MaxShards caps the shards read per partition; 0 reads all.
	MaxShards int
	// OnLoad, when set, is called after every successful load.
	OnLoad func(LoadStats)
}

// Loader builds the posting index at most once per process. Concurrent
// callers that arrive before the first load finishes wait for it. Failed
// loads are not cached.
type Loader struct {
	fsys   hackpadfs.FS
	cfg    LoaderConfig
	logger *slog.Logger

	mu    sync.Mutex
	maps  atomic.Pointer[Maps]
	loads atomic.Int64
}

func NewLoader(fsys hackpadfs.FS, cfg LoaderConfig) *Loader {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	return &Loader{
		fsys:   fsys,
		cfg:    cfg,
		logger: slog.Default().With("component", "ngram-loader"),
	}
}

// Load returns the shared index, reading it on first use.
func (l *Loader) Load(ctx context.Context) (*Maps, error) {
	if m := l.maps.Load(); m != nil {
		return m, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if m := l.maps.Load(); m != nil {
		return m, nil
	}

	m, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	l.maps.Store(m)
	return m, nil
}

// Loaded reports whether the index has been published.
func (l *Loader) Loaded() bool {
	return l.maps.Load() != nil
}

// Loads returns how many times the shard files have been read.
func (l *Loader) Loads() int64 {
	return l.loads.Load()
}

func (l *Loader) load(ctx context.Context) (*Maps, error) {
	l.loads.Add(1)
	start := time.Now()

	entries, err := hackpadfs.ReadDir(l.fsys, l.cfg.Dir)
	if err != nil {
		if errors.Is(err, hackpadfs.ErrNotExist) {
			return nil, fmt.Errorf("index directory %s: %w", l.cfg.Dir, apperrors.ErrIndexUnavailable)
		}
		return nil, fmt.Errorf("reading index directory: %w", err)
	}
	shards := l.discover(entries)
	for _, p := range Partitions {
		if len(shards[p]) == 0 {
			return nil, fmt.Errorf("no %s shards in %s: %w", p, l.cfg.Dir, apperrors.ErrIndexUnavailable)
		}
	}

	maps := newMaps()
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range Partitions {
		p := p
		g.Go(func() error {
			return l.loadPartition(gctx, p, shards[p], maps.Partition(p))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := LoadStats{
		Duration: time.Since(start),
		Shards:   make(map[Partition]int, len(Partitions)),
		Tokens:   maps.TokenCounts(),
	}
	for _, p := range Partitions {
		stats.Shards[p] = len(shards[p])
	}
	l.logger.Info("ngram index loaded",
		"duration", stats.Duration,
		"common_tokens", stats.Tokens[Common],
		"sep_tokens", stats.Tokens[WithSeparator],
		"nosep_tokens", stats.Tokens[WithoutSeparator],
	)
	if l.cfg.OnLoad != nil {
		l.cfg.OnLoad(stats)
	}
	return maps, nil
}

// discover groups shard files by partition in sequence order, truncated to
// MaxShards.
func (l *Loader) discover(entries []hackpadfs.DirEntry) map[Partition][]string {
	type shard struct {
		name string
		seq  int
	}
	found := make(map[Partition][]shard)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		partition, seq, ok := segment.ParseFileName(entry.Name())
		if !ok {
			continue
		}
		p := Partition(partition)
		switch p {
		case Common, WithSeparator, WithoutSeparator:
			found[p] = append(found[p], shard{name: entry.Name(), seq: seq})
		}
	}

	out := make(map[Partition][]string, len(found))
	for p, list := range found {
		sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })
		if l.cfg.MaxShards > 0 && len(list) > l.cfg.MaxShards {
			list = list[:l.cfg.MaxShards]
		}
		names := make([]string, len(list))
		for i, s := range list {
			names[i] = s.name
		}
		out[p] = names
	}
	return out
}

func (l *Loader) loadPartition(ctx context.Context, p Partition, names []string, into Map) error {
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		seg, err := segment.ReadFile(l.fsys, path.Join(l.cfg.Dir, name))
		if err != nil {
			return fmt.Errorf("loading %s shard: %w", p, err)
		}
		for token, ids := range seg.Postings {
			into.add(token, ids)
		}
		if (i+1)%progressEvery == 0 {
			l.logger.Info("loading shards", "partition", p, "loaded", i+1, "total", len(names))
		}
	}
	for _, bm := range into {
		bm.RunOptimize()
	}
	l.logger.Info("partition loaded", "partition", p, "shards", len(names), "tokens", len(into))
	return nil
}
