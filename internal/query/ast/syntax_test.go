package ast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/errors"
)

const testClassSize = 64

func TestParse(t *testing.T) {
	tests := []struct {
		pattern string
		want    Node
	}{
		{"abc", Concat{Subs: []Node{Literal{'a'}, Literal{'b'}, Literal{'c'}}}},
		{"x", Literal{'x'}},
		{".", AnyChar{}},
		{"(ab)", Concat{Subs: []Node{Literal{'a'}, Literal{'b'}}}},
		{"()", Concat{}},
		{"a*", Repeat{Sub: Literal{'a'}, Min: 0, Max: Unbounded}},
		{"a+", Repeat{Sub: Literal{'a'}, Min: 1, Max: Unbounded}},
		{"a?", Repeat{Sub: Literal{'a'}, Min: 0, Max: 1}},
		{"a{2,4}", Repeat{Sub: Literal{'a'}, Min: 2, Max: 4}},
		{"a{3,}", Repeat{Sub: Literal{'a'}, Min: 3, Max: Unbounded}},
		{"[abc]", CharClass{Elems: []Literal{{'a'}, {'b'}, {'c'}}}},
		{"[^a]", CharClass{Negated: true}},
		{`\Aa`, Concat{Subs: []Node{Assertion{Kind: BeginText}, Literal{'a'}}}},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := Parse(tt.pattern, testClassSize)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAlternationOfSingleRunesIsAClass(t *testing.T) {
	got, err := Parse("a|b", testClassSize)
	require.NoError(t, err)
	assert.Equal(t, CharClass{Elems: []Literal{{'a'}, {'b'}}}, got)
}

func TestParseAlternation(t *testing.T) {
	got, err := Parse("abx|cdy", testClassSize)
	require.NoError(t, err)
	alt, ok := got.(Alternate)
	require.True(t, ok, "got %s", got)
	assert.Len(t, alt.Subs, 2)
}

func TestParseFoldCase(t *testing.T) {
	got, err := Parse("(?i)ab", testClassSize)
	require.NoError(t, err)

	cat, ok := got.(Concat)
	require.True(t, ok, "got %s", got)
	require.Len(t, cat.Subs, 2)

	wantOrbits := [][]Node{
		{Literal{'a'}, Literal{'A'}},
		{Literal{'b'}, Literal{'B'}},
	}
	for i, sub := range cat.Subs {
		alt, ok := sub.(Alternate)
		require.True(t, ok, "sub %d is %s", i, sub)
		assert.ElementsMatch(t, wantOrbits[i], alt.Subs)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    error
	}{
		{"syntax error", "(ab", apperrors.ErrInvalidPattern},
		{"bad repeat", "a{5,2}", apperrors.ErrInvalidPattern},
		{"class too large", `[\x{4e00}-\x{9fff}]`, apperrors.ErrUnsupportedConstruct},
		{"unicode category", `\pL`, apperrors.ErrUnsupportedConstruct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.pattern, testClassSize)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestClassSizeLimitIsInclusive(t *testing.T) {
	_, err := Parse("[a-z]", 26)
	assert.NoError(t, err)
	_, err = Parse("[a-z]", 25)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedConstruct)
}

func TestNodeString(t *testing.T) {
	n := Concat{Subs: []Node{
		Repeat{Sub: Literal{'a'}, Min: 1, Max: Unbounded},
		Alternate{Subs: []Node{AnyChar{}, CharClass{Negated: true}}},
	}}
	assert.Equal(t, "cat(rep{1,inf}(lit('a')) alt(any nclass()))", n.String())
}
