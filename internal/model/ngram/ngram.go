package ngram

import "strings"

// NGram is a context followed by the token it predicts
type NGram []string

// String returns the n-gram as a space-separated string
func (ng NGram) String() string {
	return strings.Join(ng, " ")
}

// Context returns the context (all tokens except the last one)
func (ng NGram) Context() NGram {
	if len(ng) <= 1 {
		return NGram{}
	}
	return ng[:len(ng)-1]
}

// LastToken returns the last token in the n-gram
func (ng NGram) LastToken() string {
	if len(ng) == 0 {
		return ""
	}
	return ng[len(ng)-1]
}

// NGramWithCount is an observed n-gram and its training count
type NGramWithCount struct {
	NGram NGram `json:"ngram"`
	Count int64 `json:"count"`
}

// ScoreDetail describes how a single token of a text was scored
type ScoreDetail struct {
	Context     NGram   `json:"context"`
	Token       string  `json:"token"`
	OOV         bool    `json:"oov"`
	SeenContext bool    `json:"seen_context"`
	Probability float64 `json:"probability"`
	LogProb     float64 `json:"log_prob"`
}
