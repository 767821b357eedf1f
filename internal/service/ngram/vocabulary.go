package ngram

import "math"

const (
	// BoundaryToken is the sentence-begin marker used to left-pad every text.
	// It is not a vocabulary entry and is never predicted.
	BoundaryToken = "<s>"

	boundaryID uint32 = 0
	oovID      uint32 = math.MaxUint32
)

// Vocabulary interns tokens into dense ids. Id 0 is reserved for the boundary marker.
type Vocabulary struct {
	tokenToID map[string]uint32
	idToToken []string
}

// NewVocabulary creates an empty vocabulary
func NewVocabulary() *Vocabulary {
	return &Vocabulary{
		tokenToID: make(map[string]uint32),
		idToToken: []string{BoundaryToken},
	}
}

// intern returns the id of token, assigning the next free id on first sight
func (v *Vocabulary) intern(token string) uint32 {
	if id, exists := v.tokenToID[token]; exists {
		return id
	}
	id := uint32(len(v.idToToken))
	v.tokenToID[token] = id
	v.idToToken = append(v.idToToken, token)
	return id
}

// lookup returns the id of token, or oovID if it was never trained on
func (v *Vocabulary) lookup(token string) uint32 {
	if id, exists := v.tokenToID[token]; exists {
		return id
	}
	return oovID
}

// Token returns the string for an id. Unknown ids map to "".
func (v *Vocabulary) Token(id uint32) string {
	if int(id) < len(v.idToToken) {
		return v.idToToken[id]
	}
	return ""
}

// Contains reports whether token has been observed during training.
func (v *Vocabulary) Contains(token string) bool {
	_, ok := v.tokenToID[token]
	return ok
}

// Size is the number of distinct trained tokens, excluding the boundary marker.
func (v *Vocabulary) Size() int {
	return len(v.idToToken) - 1
}

// Tokens returns the trained tokens in id order.
func (v *Vocabulary) Tokens() []string {
	tokens := make([]string, len(v.idToToken)-1)
	copy(tokens, v.idToToken[1:])
	return tokens
}
