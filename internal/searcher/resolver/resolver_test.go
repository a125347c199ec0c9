package resolver

import (
	"errors"
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/index/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/index/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/query"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/query/match"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/errors"
)

// indexCorpus builds a posting map from id -> text.
func indexCorpus(docs map[uint32]string) posting.Map {
	postings := make(map[string][]uint32)
	for id, text := range docs {
		for _, gram := range tokenizer.Trigrams(text) {
			postings[gram] = append(postings[gram], id)
		}
	}
	return posting.MapOf(postings)
}

func resolve(t *testing.T, pattern string, maps ...posting.Map) []uint32 {
	t.Helper()
	q, err := query.Compile(pattern)
	require.NoError(t, err)
	ids, err := FindCandidateIDs(q.Formula, maps)
	require.NoError(t, err)
	return ids.ToArray()
}

func TestLiteralSelectsSingleDocument(t *testing.T) {
	m := indexCorpus(map[uint32]string{
		1: "zzzz",
		7: "xxabcxx",
		9: "abxbc",
	})
	assert.Equal(t, []uint32{7}, resolve(t, "abc", m))
}

func TestAlternationThenSuffix(t *testing.T) {
	m := indexCorpus(map[uint32]string{
		1: "abef",
		2: "cdef",
		3: "xyef",
	})
	assert.Equal(t, []uint32{1, 2}, resolve(t, "(ab|cd)ef", m))
}

func TestUnknownTokenYieldsEmpty(t *testing.T) {
	m := indexCorpus(map[uint32]string{1: "abc"})
	ids := resolve(t, "qqq", m)
	assert.Empty(t, ids)
}

func TestEveryModeMapIsConsulted(t *testing.T) {
	common := indexCorpus(map[uint32]string{1: "hello"})
	sep := indexCorpus(map[uint32]string{2: "hello"})
	assert.Equal(t, []uint32{1, 2}, resolve(t, "ell", common, sep))
}

func TestConjunctionIntersects(t *testing.T) {
	m := indexCorpus(map[uint32]string{
		1: "abc xyz",
		2: "abc",
		3: "xyz",
	})
	assert.Equal(t, []uint32{1}, resolve(t, "abc.*xyz", m))
}

func TestResultIsOwnedByCaller(t *testing.T) {
	m := indexCorpus(map[uint32]string{1: "abc", 2: "abc"})
	ids, err := FindCandidateIDs(match.Ngram{Token: "abc"}, []posting.Map{m})
	require.NoError(t, err)
	ids.Remove(1)
	assert.Equal(t, []uint32{1, 2}, m.Lookup("abc").ToArray())
}

func TestAnyIsAnInvariantViolation(t *testing.T) {
	m := indexCorpus(map[uint32]string{1: "abc"})
	_, err := FindCandidateIDs(match.Any, []posting.Map{m})
	assert.ErrorIs(t, err, apperrors.ErrEvaluatorInvariant)
}

// randomPattern draws from the supported dialect over a small alphabet.
func randomPattern(rng *rand.Rand, depth int) string {
	atoms := []string{"a", "b", "c", "ab", "abc", "bca", "cab", "."}
	if depth == 0 {
		return atoms[rng.Intn(len(atoms))]
	}
	switch rng.Intn(6) {
	case 0:
		return "(" + randomPattern(rng, depth-1) + "|" + randomPattern(rng, depth-1) + ")"
	case 1:
		return "[ab]"
	case 2:
		q := []string{"?", "*", "+"}[rng.Intn(3)]
		return "(" + randomPattern(rng, depth-1) + ")" + q
	default:
		n := 2 + rng.Intn(3)
		parts := make([]string, n)
		for i := range parts {
			parts[i] = randomPattern(rng, depth-1)
		}
		return strings.Join(parts, "")
	}
}

func TestSoundnessAgainstBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	docs := make(map[uint32]string)
	for id := uint32(0); id < 300; id++ {
		n := rng.Intn(16)
		b := make([]byte, n)
		for i := range b {
			b[i] = "abcd"[rng.Intn(4)]
		}
		docs[id] = string(b)
	}
	m := indexCorpus(docs)

	checked := 0
	for i := 0; i < 500; i++ {
		pattern := randomPattern(rng, 3)
		q, err := query.Compile(pattern)
		if apperrors.IsFallback(err) {
			continue
		}
		require.NoError(t, err, pattern)

		ids, err := FindCandidateIDs(q.Formula, []posting.Map{m})
		require.NoError(t, err, pattern)

		re := regexp.MustCompile(pattern)
		for id, text := range docs {
			if re.MatchString(text) {
				require.True(t, ids.Contains(id), "pattern %q matches doc %d %q but it is not a candidate", pattern, id, text)
			}
		}
		checked++
	}
	assert.Greater(t, checked, 20)
}

func TestFallbackPatternsNeverReachTheResolver(t *testing.T) {
	for _, p := range []string{"a.c", "ab", "a?b?c?", "a{2,4}", ".*"} {
		_, err := query.Compile(p)
		require.Error(t, err, p)
		assert.True(t, apperrors.IsFallback(err), p)
		assert.False(t, errors.Is(err, apperrors.ErrEvaluatorInvariant))
	}
}

func BenchmarkFindCandidateIDs(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	docs := make(map[uint32]string)
	for id := uint32(0); id < 20000; id++ {
		buf := make([]byte, 64)
		for i := range buf {
			buf[i] = byte('a' + rng.Intn(8))
		}
		docs[id] = string(buf)
	}
	m := indexCorpus(docs)
	q, err := query.Compile("(abc|bcd|cde)(def|efg)+h")
	if err != nil {
		b.Fatal(err)
	}
	maps := []posting.Map{m}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := FindCandidateIDs(q.Formula, maps); err != nil {
			b.Fatal(err)
		}
	}
}
