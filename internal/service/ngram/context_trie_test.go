package ngram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextTrie_AddAndCounts(t *testing.T) {
	trie := NewContextTrie(2, 1000, 0.01)

	trie.Add([]uint32{0, 1}, 2, 1)
	trie.Add([]uint32{0, 1}, 2, 2)
	trie.Add([]uint32{0, 1}, 3, 1)
	trie.Add([]uint32{1, 2}, 3, 1)
	trie.Add([]uint32{1, 2}, 4, 0)

	count, total, seen := trie.Counts([]uint32{0, 1}, 2)
	assert.True(t, seen)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, int64(4), total)

	count, total, seen = trie.Counts([]uint32{0, 1}, 9)
	assert.True(t, seen)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, int64(4), total)

	_, _, seen = trie.Counts([]uint32{2, 1}, 3)
	assert.False(t, seen)

	// A prefix of an observed context is not itself observed.
	_, _, seen = trie.Counts([]uint32{0}, 1)
	assert.False(t, seen)

	_, _, seen = trie.Counts([]uint32{0, oovID}, 1)
	assert.False(t, seen)

	assert.Equal(t, 2, trie.Contexts())
	assert.Equal(t, 3, trie.NGramTypes())
	assert.Equal(t, int64(5), trie.TotalNGrams())
}

func TestContextTrie_EmptyContext(t *testing.T) {
	trie := NewContextTrie(0, 0, 0.01)

	_, _, seen := trie.Counts(nil, 1)
	assert.False(t, seen)

	trie.Add(nil, 1, 1)
	trie.Add(nil, 2, 1)

	count, total, seen := trie.Counts(nil, 1)
	assert.True(t, seen)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, 1, trie.Contexts())
}

func TestContextTrie_Walk(t *testing.T) {
	trie := NewContextTrie(1, 100, 0.01)
	trie.Add([]uint32{0}, 1, 1)
	trie.Add([]uint32{1}, 2, 2)
	trie.Add([]uint32{2}, 1, 1)

	got := make(map[[2]uint32]int64)
	trie.Walk(func(context []uint32, token uint32, count int64) {
		assert.Len(t, context, 1)
		got[[2]uint32{context[0], token}] = count
	})

	assert.Equal(t, map[[2]uint32]int64{
		{0, 1}: 1,
		{1, 2}: 2,
		{2, 1}: 1,
	}, got)
}

func TestVocabulary_Interning(t *testing.T) {
	v := NewVocabulary()
	assert.Equal(t, 0, v.Size())

	a := v.intern("a")
	b := v.intern("b")
	assert.Equal(t, a, v.intern("a"))
	assert.NotEqual(t, boundaryID, a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, v.Size())
	assert.Equal(t, []string{"a", "b"}, v.Tokens())

	assert.Equal(t, oovID, v.lookup("zzz"))
	assert.Equal(t, BoundaryToken, v.Token(boundaryID))
	assert.Equal(t, "", v.Token(99))

	// A literal "<s>" in training text is an ordinary token, distinct from padding.
	s := v.intern(BoundaryToken)
	assert.NotEqual(t, boundaryID, s)
	assert.Equal(t, 3, v.Size())
}
