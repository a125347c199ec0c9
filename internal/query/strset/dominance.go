package strset

// trieNode is one rune step of a prefix tree. terminal marks the end of a
// member string.
type trieNode struct {
	children map[rune]*trieNode
	terminal bool
}

type prefixTree struct {
	root *trieNode
}

func newPrefixTree() *prefixTree {
	return &prefixTree{root: &trieNode{children: make(map[rune]*trieNode)}}
}

func (t *prefixTree) insert(word []rune) {
	node := t.root
	for _, r := range word {
		next, ok := node.children[r]
		if !ok {
			next = &trieNode{children: make(map[rune]*trieNode)}
			node.children[r] = next
		}
		node = next
	}
	node.terminal = true
}

// hasProperPrefix reports whether some inserted word other than word itself
// is a proper prefix of word. word must already be in the tree.
func (t *prefixTree) hasProperPrefix(word []rune) bool {
	node := t.root
	for _, r := range word {
		if node.terminal {
			return true
		}
		node = node.children[r]
		if node == nil {
			return false
		}
	}
	return false
}

// NormalizePrefix drops every member that has another member as a proper
// prefix. The result is a new set; NormalizePrefix is idempotent.
func NormalizePrefix(s Set) Set {
	return dominate(s, false)
}

// NormalizeSuffix drops every member that has another member as a proper
// suffix. The result is a new set; NormalizeSuffix is idempotent.
func NormalizeSuffix(s Set) Set {
	return dominate(s, true)
}

func dominate(s Set, reversed bool) Set {
	words := make(map[string][]rune, len(s))
	tree := newPrefixTree()
	for v := range s {
		runes := []rune(v)
		if reversed {
			reverse(runes)
		}
		words[v] = runes
		tree.insert(runes)
	}
	out := make(Set, len(s))
	for v, runes := range words {
		if !tree.hasProperPrefix(runes) {
			out[v] = struct{}{}
		}
	}
	return out
}

func reverse(runes []rune) {
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
}
