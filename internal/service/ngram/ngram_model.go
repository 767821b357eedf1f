package ngram

import (
	"fmt"
	"math"
	"sort"
	"sync"

	model "ngm-go/internal/model/ngram"
)

// OOVToken labels the out-of-vocabulary slot in distributions
const OOVToken = "<unk>"

// Params are the fixed hyperparameters of a model
type Params struct {
	N               int     `json:"n" yaml:"n"`
	Alpha           float64 `json:"alpha" yaml:"alpha"`
	UnseenAlpha     float64 `json:"unseen_alpha" yaml:"unseen_alpha"`
	NormaliseLength bool    `json:"normalise_length" yaml:"normalise_length"`
}

// DefaultParams returns trigram Laplace smoothing with length normalisation
func DefaultParams() Params {
	return Params{
		N:               3,
		Alpha:           1.0,
		UnseenAlpha:     1.0,
		NormaliseLength: true,
	}
}

// Validate checks the hyperparameters
func (p Params) Validate() error {
	if p.N < 1 {
		return fmt.Errorf("%w: n must be >= 1, got %d", ErrInvalidParameter, p.N)
	}
	if !isPositive(p.Alpha) {
		return fmt.Errorf("%w: alpha must be > 0, got %v", ErrInvalidParameter, p.Alpha)
	}
	if !isPositive(p.UnseenAlpha) {
		return fmt.Errorf("%w: unseen_alpha must be > 0, got %v", ErrInvalidParameter, p.UnseenAlpha)
	}
	return nil
}

func isPositive(x float64) bool {
	return x > 0 && !math.IsInf(x, 1)
}

// NgramModel collects n-gram counts over whitespace-tokenized texts and scores
// texts with additive smoothing.
//
// Update takes the write lock; Lpmf and the other readers take the read lock, so
// any number of scoring calls may run concurrently on a trained model.
type NgramModel struct {
	params      Params
	tokenizer   Tokenizer
	vocabulary  *Vocabulary
	contexts    *ContextTrie
	smoother    Smoother
	totalTokens int64
	textCount   int64
	mu          sync.RWMutex
}

// NewNgramModel creates an empty model with the default tokenizer
func NewNgramModel(params Params) (*NgramModel, error) {
	return NewNgramModelWithTokenizer(params, nil)
}

// NewNgramModelWithTokenizer creates an empty model. A nil tokenizer selects the
// whitespace tokenizer.
func NewNgramModelWithTokenizer(params Params, tokenizer Tokenizer) (*NgramModel, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if tokenizer == nil {
		tokenizer = NewWhitespaceTokenizer()
	}

	return &NgramModel{
		params:     params,
		tokenizer:  tokenizer,
		vocabulary: NewVocabulary(),
		contexts:   NewContextTrie(params.N-1, 100000, 0.01),
		smoother:   NewAdditiveSmoother(params.Alpha, params.UnseenAlpha),
	}, nil
}

// Params returns the model hyperparameters
func (m *NgramModel) Params() Params {
	return m.params
}

// Update tokenizes each text, pads it with n-1 boundary markers and counts every
// (context, token) pair. Counts accumulate across calls.
func (m *NgramModel) Update(texts []string) {
	if len(texts) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	history := make([]uint32, m.params.N-1)
	for _, text := range texts {
		tokens := m.tokenizer.Tokenize(text)
		resetHistory(history)
		for _, token := range tokens {
			id := m.vocabulary.intern(token)
			m.contexts.Add(history, id, 1)
			shiftHistory(history, id)
		}
		m.totalTokens += int64(len(tokens))
		m.textCount++
	}
}

func resetHistory(history []uint32) {
	for i := range history {
		history[i] = boundaryID
	}
}

func shiftHistory(history []uint32, id uint32) {
	if len(history) == 0 {
		return
	}
	copy(history, history[1:])
	history[len(history)-1] = id
}

// probability is P(token | context) on ids. Caller holds the read lock.
func (m *NgramModel) probability(context []uint32, token uint32) (float64, bool) {
	count, total, seen := m.contexts.Counts(context, token)
	return m.smoother.Smooth(count, total, m.vocabulary.Size(), seen), seen
}

// scoreText returns the (optionally length-normalised) log-probability of a text.
// Caller holds the read lock. The history buffer belongs to the calling worker.
func (m *NgramModel) scoreText(text string, history []uint32) (float64, error) {
	tokens := m.tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return 0, nil
	}

	resetHistory(history)
	sum := 0.0
	for _, token := range tokens {
		id := m.vocabulary.lookup(token)
		p, _ := m.probability(history, id)
		if !(p > 0 && p <= 1) {
			return 0, fmt.Errorf("probability %v out of range for token %q", p, token)
		}
		sum += math.Log(p)
		shiftHistory(history, id)
	}

	if m.params.NormaliseLength {
		sum /= float64(len(tokens))
	}
	return sum, nil
}

// contextIDs maps context strings to ids, left-padding with boundary markers or
// keeping only the last n-1 tokens. BoundaryToken maps to the boundary id.
func (m *NgramModel) contextIDs(context []string) []uint32 {
	ids := make([]uint32, m.params.N-1)
	resetHistory(ids)
	if len(context) > len(ids) {
		context = context[len(context)-len(ids):]
	}
	offset := len(ids) - len(context)
	for i, token := range context {
		if token == BoundaryToken {
			ids[offset+i] = boundaryID
			continue
		}
		ids[offset+i] = m.vocabulary.lookup(token)
	}
	return ids
}

// Probability returns the smoothed P(token | context). Short contexts are
// left-padded with BoundaryToken.
func (m *NgramModel) Probability(token string, context []string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, _ := m.probability(m.contextIDs(context), m.vocabulary.lookup(token))
	return p
}

// Count returns the training count of token after context
func (m *NgramModel) Count(context []string, token string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count, _, _ := m.contexts.Counts(m.contextIDs(context), m.vocabulary.lookup(token))
	return count
}

// ContextTotal returns the number of training positions that followed context
func (m *NgramModel) ContextTotal(context []string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, total, _ := m.contexts.Counts(m.contextIDs(context), boundaryID)
	return total
}

// Distribution returns P(. | context) over every vocabulary token plus OOVToken
func (m *NgramModel) Distribution(context []string) map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.contextIDs(context)
	dist := make(map[string]float64, m.vocabulary.Size()+1)
	for id := uint32(1); int(id) <= m.vocabulary.Size(); id++ {
		p, _ := m.probability(ids, id)
		dist[m.vocabulary.Token(id)] = p
	}
	p, _ := m.probability(ids, oovID)
	dist[OOVToken] = p
	return dist
}

// Lpmf scores every text independently and returns one value per text in input
// order. Texts are split into nThreads contiguous ranges scored in parallel; the
// call returns after every worker has finished.
func (m *NgramModel) Lpmf(texts []string, nThreads int) ([]float64, error) {
	if nThreads < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidThreadCount, nThreads)
	}
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return newScorer(m, nThreads).run(texts)
}

func (m *NgramModel) tokenLabel(id uint32) string {
	if id == oovID {
		return OOVToken
	}
	return m.vocabulary.Token(id)
}

// ScoreDetails returns the per-token breakdown of a text's score
func (m *NgramModel) ScoreDetails(text string) []model.ScoreDetail {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tokens := m.tokenizer.Tokenize(text)
	details := make([]model.ScoreDetail, 0, len(tokens))
	history := make([]uint32, m.params.N-1)
	resetHistory(history)

	for _, token := range tokens {
		id := m.vocabulary.lookup(token)
		p, seen := m.probability(history, id)

		context := make(model.NGram, len(history))
		for i, cid := range history {
			context[i] = m.tokenLabel(cid)
		}

		details = append(details, model.ScoreDetail{
			Context:     context,
			Token:       token,
			OOV:         id == oovID,
			SeenContext: seen,
			Probability: p,
			LogProb:     math.Log(p),
		})
		shiftHistory(history, id)
	}
	return details
}

// Perplexity returns exp of the mean negative log-probability per token.
// An empty text has perplexity 1.
func (m *NgramModel) Perplexity(text string) float64 {
	details := m.ScoreDetails(text)
	if len(details) == 0 {
		return 1
	}
	sum := 0.0
	for _, d := range details {
		sum += d.LogProb
	}
	return math.Exp(-sum / float64(len(details)))
}

// NGrams returns every counted n-gram with its count, sorted by descending count
// then lexically.
func (m *NgramModel) NGrams() []model.NGramWithCount {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []model.NGramWithCount
	m.contexts.Walk(func(context []uint32, token uint32, count int64) {
		ng := make(model.NGram, 0, len(context)+1)
		for _, id := range context {
			ng = append(ng, m.vocabulary.Token(id))
		}
		ng = append(ng, m.vocabulary.Token(token))
		result = append(result, model.NGramWithCount{NGram: ng, Count: count})
	})

	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].NGram.String() < result[j].NGram.String()
	})
	return result
}

// Vocabulary returns the trained tokens in first-seen order
func (m *NgramModel) Vocabulary() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vocabulary.Tokens()
}

// Stats returns statistics about the model
func (m *NgramModel) Stats() ModelStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return ModelStats{
		N:               m.params.N,
		Alpha:           m.params.Alpha,
		UnseenAlpha:     m.params.UnseenAlpha,
		NormaliseLength: m.params.NormaliseLength,
		VocabularySize:  m.vocabulary.Size(),
		ContextCount:    m.contexts.Contexts(),
		NGramCount:      m.contexts.NGramTypes(),
		TotalTokens:     m.totalTokens,
		TextCount:       m.textCount,
		SmootherName:    m.smoother.Name(),
		TokenizerName:   m.tokenizer.Name(),
	}
}

// ModelStats contains statistics about an n-gram model
type ModelStats struct {
	N               int     `json:"n"`
	Alpha           float64 `json:"alpha"`
	UnseenAlpha     float64 `json:"unseen_alpha"`
	NormaliseLength bool    `json:"normalise_length"`
	VocabularySize  int     `json:"vocabulary_size"`
	ContextCount    int     `json:"context_count"`
	NGramCount      int     `json:"ngram_count"`
	TotalTokens     int64   `json:"total_tokens"`
	TextCount       int64   `json:"text_count"`
	SmootherName    string  `json:"smoother_name"`
	TokenizerName   string  `json:"tokenizer_name"`
}
