package posting

import (
	"context"
	"sync"
	"testing"

	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/index/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/errors"
)

func newFS(t *testing.T) *mem.FS {
	t.Helper()
	fsys, err := mem.NewFS()
	require.NoError(t, err)
	return fsys
}

func writeShard(t *testing.T, fsys hackpadfs.FS, p Partition, seq int, postings map[string][]uint32) {
	t.Helper()
	_, err := segment.WriteFile(fsys, "idx", string(p), seq, postings)
	require.NoError(t, err)
}

func writeIndex(t *testing.T, fsys hackpadfs.FS) {
	writeShard(t, fsys, Common, 1, map[string][]uint32{"abc": {1, 2}})
	writeShard(t, fsys, Common, 2, map[string][]uint32{"abc": {2, 9}, "xyz": {4}})
	writeShard(t, fsys, WithSeparator, 1, map[string][]uint32{"a b": {5}})
	writeShard(t, fsys, WithoutSeparator, 1, map[string][]uint32{"abc": {6}})
}

func TestLoadMergesShards(t *testing.T) {
	fsys := newFS(t)
	writeIndex(t, fsys)

	var stats LoadStats
	l := NewLoader(fsys, LoaderConfig{Dir: "idx", OnLoad: func(s LoadStats) { stats = s }})
	maps, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []uint32{1, 2, 9}, maps.Common.Lookup("abc").ToArray())
	assert.Equal(t, []uint32{4}, maps.Common.Lookup("xyz").ToArray())
	assert.Nil(t, maps.Common.Lookup("zzz"))
	assert.Equal(t, []uint32{5}, maps.WithSeparator.Lookup("a b").ToArray())
	assert.Equal(t, []uint32{6}, maps.WithoutSeparator.Lookup("abc").ToArray())

	assert.Equal(t, 2, stats.Shards[Common])
	assert.Equal(t, map[Partition]int{Common: 2, WithSeparator: 1, WithoutSeparator: 1}, stats.Tokens)
	assert.True(t, l.Loaded())
}

func TestLoadEmptyDirectoryIsUnavailable(t *testing.T) {
	fsys := newFS(t)
	require.NoError(t, hackpadfs.MkdirAll(fsys, "idx", 0o755))

	_, err := NewLoader(fsys, LoaderConfig{Dir: "idx"}).Load(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrIndexUnavailable)
}

func TestLoadMissingDirectoryIsUnavailable(t *testing.T) {
	_, err := NewLoader(newFS(t), LoaderConfig{Dir: "missing"}).Load(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrIndexUnavailable)
}

func TestLoadMissingPartitionIsUnavailable(t *testing.T) {
	fsys := newFS(t)
	writeShard(t, fsys, Common, 1, map[string][]uint32{"abc": {1}})
	writeShard(t, fsys, WithSeparator, 1, map[string][]uint32{"abc": {1}})

	_, err := NewLoader(fsys, LoaderConfig{Dir: "idx"}).Load(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrIndexUnavailable)
}

func TestLoadIgnoresForeignFiles(t *testing.T) {
	fsys := newFS(t)
	writeIndex(t, fsys)
	require.NoError(t, hackpadfs.WriteFullFile(fsys, "idx/README.txt", []byte("hi"), 0o644))
	require.NoError(t, hackpadfs.WriteFullFile(fsys, "idx/other_0001.seg", []byte("junk"), 0o644))

	_, err := NewLoader(fsys, LoaderConfig{Dir: "idx"}).Load(context.Background())
	assert.NoError(t, err)
}

func TestLoadTruncatesShards(t *testing.T) {
	fsys := newFS(t)
	writeIndex(t, fsys)

	maps, err := NewLoader(fsys, LoaderConfig{Dir: "idx", MaxShards: 1}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, maps.Common.Lookup("abc").ToArray())
	assert.Nil(t, maps.Common.Lookup("xyz"))
}

func TestLoadCorruptShardPropagates(t *testing.T) {
	fsys := newFS(t)
	writeIndex(t, fsys)
	require.NoError(t, hackpadfs.WriteFullFile(fsys, "idx/sep_0002.seg", []byte("not a shard at all, really not"), 0o644))

	l := NewLoader(fsys, LoaderConfig{Dir: "idx"})
	_, err := l.Load(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrCorruptShard)
	assert.False(t, l.Loaded())
}

func TestFailedLoadIsRetried(t *testing.T) {
	fsys := newFS(t)
	l := NewLoader(fsys, LoaderConfig{Dir: "idx"})

	_, err := l.Load(context.Background())
	require.ErrorIs(t, err, apperrors.ErrIndexUnavailable)

	writeIndex(t, fsys)
	_, err = l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), l.Loads())
}

func TestConcurrentFirstUseLoadsOnce(t *testing.T) {
	fsys := newFS(t)
	writeIndex(t, fsys)
	l := NewLoader(fsys, LoaderConfig{Dir: "idx"})

	const callers = 32
	results := make([]*Maps, callers)
	errs := make([]error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = l.Load(context.Background())
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), l.Loads())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestForMode(t *testing.T) {
	maps := &Maps{
		Common:           MapOf(map[string][]uint32{"abc": {1}}),
		WithSeparator:    MapOf(map[string][]uint32{"abc": {2}}),
		WithoutSeparator: MapOf(map[string][]uint32{"abc": {3}}),
	}
	sep := maps.ForMode(ModeWithSeparator)
	require.Len(t, sep, 2)
	assert.Equal(t, []uint32{2}, sep[1].Lookup("abc").ToArray())

	nosep := maps.ForMode(ModeFor(true))
	require.Len(t, nosep, 2)
	assert.Equal(t, []uint32{1}, nosep[0].Lookup("abc").ToArray())
	assert.Equal(t, []uint32{3}, nosep[1].Lookup("abc").ToArray())
	assert.Equal(t, "nosep", ModeFor(true).String())
	assert.Equal(t, "sep", ModeFor(false).String())
}
