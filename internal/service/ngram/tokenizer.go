package ngram

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Tokenizer splits a text into the tokens the model counts and scores.
type Tokenizer interface {
	Tokenize(text string) []string
	Name() string
}

// WhitespaceTokenizer is the fixed tokenization policy of the model: the text is
// normalised to NFC, then split on runs of Unicode white space. Tokens are
// case-sensitive and never empty.
type WhitespaceTokenizer struct{}

// NewWhitespaceTokenizer creates the default tokenizer
func NewWhitespaceTokenizer() *WhitespaceTokenizer {
	return &WhitespaceTokenizer{}
}

func (t *WhitespaceTokenizer) Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	if !norm.NFC.IsNormalString(text) {
		text = norm.NFC.String(text)
	}
	return strings.FieldsFunc(text, unicode.IsSpace)
}

func (t *WhitespaceTokenizer) Name() string {
	return "whitespace-nfc"
}
