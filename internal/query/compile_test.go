package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/errors"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		pattern string
		formula string
	}{
		{"abc", `"abc"`},
		{"abcd", `and("abc" "bcd")`},
		{"(ab|cd)ef", `or(and("abe" "bef") and("cde" "def"))`},
		{"xabc+", `"xab"`},
		{"ab[cd]", `or("abc" "abd")`},
		{"(abc)", `"abc"`},
		{"abc.*xyz", `and("abc" "xyz")`},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			q, err := Compile(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.pattern, q.Pattern)
			assert.Equal(t, tt.formula, q.Formula.String())
		})
	}
}

func TestCompileTokens(t *testing.T) {
	q, err := Compile("(ab|cd)ef")
	require.NoError(t, err)
	assert.Equal(t, []string{"abe", "bef", "cde", "def"}, q.Tokens)
}

func TestCompileFailures(t *testing.T) {
	tests := []struct {
		pattern  string
		want     error
		fallback bool
	}{
		{"a{2,4}", apperrors.ErrUnsupportedConstruct, true},
		{"a[^b]c", apperrors.ErrUnsupportedConstruct, true},
		{"^abc", apperrors.ErrUnsupportedConstruct, true},
		{`abc\b`, apperrors.ErrUnsupportedConstruct, true},
		{"a.c", apperrors.ErrPatternTooBroad, true},
		{"ab", apperrors.ErrPatternTooBroad, true},
		{"(abc)?", apperrors.ErrPatternTooBroad, true},
		{"abc(", apperrors.ErrInvalidPattern, false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			_, err := Compile(tt.pattern)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.fallback, apperrors.IsFallback(err))
		})
	}
}

func TestCompilerClassBound(t *testing.T) {
	c := NewCompiler(Options{MaxClassSize: 3})
	_, err := c.Compile("ab[a-z]")
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedConstruct)

	q, err := c.Compile("ab[xyz]")
	require.NoError(t, err)
	assert.Equal(t, `or("abx" "aby" "abz")`, q.Formula.String())
}
