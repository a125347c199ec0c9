package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeNgrams(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want []string
	}{
		{name: "shorter than window", text: "ab", n: 3, want: nil},
		{name: "exact window", text: "abc", n: 3, want: []string{"abc"}},
		{name: "two windows", text: "abcd", n: 3, want: []string{"abc", "bcd"}},
		{name: "duplicates removed", text: "aaaaa", n: 3, want: []string{"aaa"}},
		{name: "runes not bytes", text: "한국어다", n: 3, want: []string{"한국어", "국어다"}},
		{name: "empty", text: "", n: 3, want: nil},
		{name: "non-positive width", text: "abc", n: 0, want: nil},
		{name: "bigrams", text: "abab", n: 2, want: []string{"ab", "ba"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MakeNgrams(tt.text, tt.n))
		})
	}
}

func TestTrigramsUsesIndexWidth(t *testing.T) {
	assert.Equal(t, MakeNgrams("xxabcxx", NgramSize), Trigrams("xxabcxx"))
	assert.Contains(t, Trigrams("xxabcxx"), "abc")
}

func BenchmarkTrigrams(b *testing.B) {
	text := strings.Repeat("nal.ko.nan ssa.ley.ngi.la ", 40)
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = Trigrams(text)
	}
}
