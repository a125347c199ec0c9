// Package tokenizer provides the n-gram tokenisation shared by the index
// and the query compiler. Text is split into overlapping fixed-width rune
// windows; every distinct window is a posting-list key.
package tokenizer

// NgramSize is the window width used by the posting index.
const NgramSize = 3

// MakeNgrams returns the distinct length-n rune windows of text in order of
// first occurrence. Text shorter than n yields no n-grams.
func MakeNgrams(text string, n int) []string {
	if n <= 0 {
		return nil
	}
	runes := []rune(text)
	if len(runes) < n {
		return nil
	}
	seen := make(map[string]struct{}, len(runes)-n+1)
	ngrams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		gram := string(runes[i : i+n])
		if _, dup := seen[gram]; dup {
			continue
		}
		seen[gram] = struct{}{}
		ngrams = append(ngrams, gram)
	}
	return ngrams
}

// Trigrams returns MakeNgrams(text, NgramSize).
func Trigrams(text string) []string {
	return MakeNgrams(text, NgramSize)
}
