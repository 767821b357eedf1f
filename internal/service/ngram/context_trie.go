package ngram

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bloom/v3"
)

// contextNode is a trie node. Nodes at depth n-1 carry the counts of the tokens
// that followed the context spelled by the path from the root.
type contextNode struct {
	children map[uint32]*contextNode
	next     map[uint32]int64 // token id -> count
	total    int64            // sum of next
}

func newContextNode() *contextNode {
	return &contextNode{children: make(map[uint32]*contextNode)}
}

// ContextTrie maps (n-1)-token contexts to next-token counts. Counts only grow.
//
// A bloom filter over observed context keys lets unseen contexts be rejected
// without walking the trie. A false positive only costs the walk.
type ContextTrie struct {
	contextLen  int
	root        *contextNode
	contexts    int   // contexts with at least one observation
	ngramTypes  int   // distinct (context, token) pairs
	totalNGrams int64 // sum of all counts
	bloomFilter *bloom.BloomFilter
}

// NewContextTrie creates a trie for contexts of contextLen token ids
func NewContextTrie(contextLen int, expectedContexts uint, falsePositiveRate float64) *ContextTrie {
	if expectedContexts == 0 {
		expectedContexts = 100000
	}
	return &ContextTrie{
		contextLen:  contextLen,
		root:        newContextNode(),
		bloomFilter: bloom.NewWithEstimates(expectedContexts, falsePositiveRate),
	}
}

// contextKey encodes a context for the bloom filter
func contextKey(context []uint32) []byte {
	key := make([]byte, 0, 4*len(context))
	for _, id := range context {
		key = binary.BigEndian.AppendUint32(key, id)
	}
	return key
}

// Add increments count(context -> token) by delta
func (t *ContextTrie) Add(context []uint32, token uint32, delta int64) {
	if delta <= 0 {
		return
	}

	current := t.root
	for _, id := range context {
		child, exists := current.children[id]
		if !exists {
			child = newContextNode()
			current.children[id] = child
		}
		current = child
	}

	if current.next == nil {
		current.next = make(map[uint32]int64)
		t.contexts++
		t.bloomFilter.Add(contextKey(context))
	}
	if _, seen := current.next[token]; !seen {
		t.ngramTypes++
	}
	current.next[token] += delta
	current.total += delta
	t.totalNGrams += delta
}

// find returns the node holding the counts of context, or nil if it was never observed
func (t *ContextTrie) find(context []uint32) *contextNode {
	if len(context) > 0 && !t.bloomFilter.Test(contextKey(context)) {
		return nil
	}
	current := t.root
	for _, id := range context {
		child, exists := current.children[id]
		if !exists {
			return nil
		}
		current = child
	}
	if current.next == nil {
		return nil
	}
	return current
}

// Counts returns count(context -> token), the context total and whether the
// context has been observed at all.
func (t *ContextTrie) Counts(context []uint32, token uint32) (count, total int64, seen bool) {
	node := t.find(context)
	if node == nil {
		return 0, 0, false
	}
	return node.next[token], node.total, true
}

// Contexts is the number of observed contexts
func (t *ContextTrie) Contexts() int {
	return t.contexts
}

// NGramTypes is the number of distinct (context, token) pairs
func (t *ContextTrie) NGramTypes() int {
	return t.ngramTypes
}

// TotalNGrams is the number of counted token positions
func (t *ContextTrie) TotalNGrams() int64 {
	return t.totalNGrams
}

// Walk calls fn for every observed (context, token, count). The context slice is
// reused between calls and must be copied if retained.
func (t *ContextTrie) Walk(fn func(context []uint32, token uint32, count int64)) {
	path := make([]uint32, 0, t.contextLen)
	t.walkNode(t.root, path, fn)
}

func (t *ContextTrie) walkNode(node *contextNode, path []uint32, fn func([]uint32, uint32, int64)) {
	for token, count := range node.next {
		fn(path, token, count)
	}
	for id, child := range node.children {
		t.walkNode(child, append(path, id), fn)
	}
}
