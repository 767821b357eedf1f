package ngram

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"ngm-go/internal/config"
	model "ngm-go/internal/model/ngram"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ModelEntry is a model registered with the service
type ModelEntry struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Model     *NgramModel
}

// ModelInfo describes a registered model
type ModelInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	Stats     ModelStats `json:"stats"`
}

// ScoreSummary is the result of scoring a batch, with summary statistics
type ScoreSummary struct {
	Scores []float64 `json:"scores"`
	Mean   float64   `json:"mean"`
	StdDev float64   `json:"std_dev"`
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
	Count  int       `json:"count"`
}

// TextDetails is the per-token breakdown of a single text
type TextDetails struct {
	Text       string              `json:"text"`
	Tokens     []model.ScoreDetail `json:"tokens"`
	LogProb    float64             `json:"log_prob"`
	Perplexity float64             `json:"perplexity"`
}

// ContextDistribution is the smoothed next-token distribution after a context
type ContextDistribution struct {
	Context      []string           `json:"context"`
	ContextTotal int64              `json:"context_total"`
	Distribution map[string]float64 `json:"distribution"`
}

// NGramService keeps named models in memory and forwards update and scoring calls
type NGramService struct {
	models      map[string]*ModelEntry // model id -> entry
	defaults    config.ModelConfig
	persistence *NGramPersistence
	logger      *zap.Logger
	mu          sync.RWMutex
}

// NewNGramService creates a service using the model defaults and snapshot directory in cfg
func NewNGramService(cfg *config.Config, logger *zap.Logger) (*NGramService, error) {
	persistence, err := NewNGramPersistence(cfg.ModelDir(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create persistence: %w", err)
	}

	return &NGramService{
		models:      make(map[string]*ModelEntry),
		defaults:    cfg.Model,
		persistence: persistence,
		logger:      logger,
	}, nil
}

// DefaultParams returns the hyperparameters configured for new models
func (ns *NGramService) DefaultParams() Params {
	return Params{
		N:               ns.defaults.N,
		Alpha:           ns.defaults.Alpha,
		UnseenAlpha:     ns.defaults.UnseenAlpha,
		NormaliseLength: ns.defaults.Normalise(),
	}
}

// DefaultThreads is the worker count used when a caller passes 0
func (ns *NGramService) DefaultThreads() int {
	return ns.defaults.Threads
}

// checkOrder rejects orders above the configured maximum
func (ns *NGramService) checkOrder(n int) error {
	if n > ns.defaults.MaxOrder {
		return fmt.Errorf("%w: n must be <= %d, got %d", ErrInvalidParameter, ns.defaults.MaxOrder, n)
	}
	return nil
}

// CreateModel builds an empty model and registers it under a new id. The name
// doubles as the snapshot name and must be a valid file name.
func (ns *NGramService) CreateModel(ctx context.Context, name string, params Params) (*ModelInfo, error) {
	if err := validSnapshotName(name); err != nil {
		return nil, err
	}
	if err := ns.checkOrder(params.N); err != nil {
		return nil, err
	}

	m, err := NewNgramModel(params)
	if err != nil {
		return nil, err
	}

	entry := ns.register(name, m)

	ns.logger.Info("Created n-gram model",
		zap.String("id", entry.ID),
		zap.String("name", name),
		zap.Int("n", params.N),
		zap.Float64("alpha", params.Alpha),
		zap.Float64("unseen_alpha", params.UnseenAlpha),
		zap.Bool("normalise_length", params.NormaliseLength))

	return entryInfo(entry), nil
}

func (ns *NGramService) register(name string, m *NgramModel) *ModelEntry {
	entry := &ModelEntry{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
		Model:     m,
	}

	ns.mu.Lock()
	ns.models[entry.ID] = entry
	ns.mu.Unlock()

	return entry
}

func entryInfo(entry *ModelEntry) *ModelInfo {
	return &ModelInfo{
		ID:        entry.ID,
		Name:      entry.Name,
		CreatedAt: entry.CreatedAt,
		Stats:     entry.Model.Stats(),
	}
}

// GetModel returns the entry registered under id
func (ns *NGramService) GetModel(id string) (*ModelEntry, error) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	entry, exists := ns.models[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	return entry, nil
}

// GetModelInfo returns the description of a registered model
func (ns *NGramService) GetModelInfo(id string) (*ModelInfo, error) {
	entry, err := ns.GetModel(id)
	if err != nil {
		return nil, err
	}
	return entryInfo(entry), nil
}

// ListModels returns every registered model ordered by creation time
func (ns *NGramService) ListModels() []ModelInfo {
	ns.mu.RLock()
	entries := make([]*ModelEntry, 0, len(ns.models))
	for _, entry := range ns.models {
		entries = append(entries, entry)
	}
	ns.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})

	infos := make([]ModelInfo, 0, len(entries))
	for _, entry := range entries {
		infos = append(infos, *entryInfo(entry))
	}
	return infos
}

// DeleteModel unregisters a model. Saved snapshots are kept.
func (ns *NGramService) DeleteModel(ctx context.Context, id string) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if _, exists := ns.models[id]; !exists {
		return fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	delete(ns.models, id)

	ns.logger.Info("Deleted n-gram model", zap.String("id", id))
	return nil
}

// Update trains the model registered under id on texts
func (ns *NGramService) Update(ctx context.Context, id string, texts []string) (*ModelStats, error) {
	entry, err := ns.GetModel(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	entry.Model.Update(texts)
	stats := entry.Model.Stats()

	ns.logger.Debug("Updated n-gram model",
		zap.String("id", id),
		zap.Int("texts", len(texts)),
		zap.Int("vocabulary_size", stats.VocabularySize),
		zap.Int64("total_tokens", stats.TotalTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &stats, nil
}

// Lpmf scores texts with the model registered under id. nThreads 0 selects the
// configured default.
func (ns *NGramService) Lpmf(ctx context.Context, id string, texts []string, nThreads int) ([]float64, error) {
	entry, err := ns.GetModel(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if nThreads == 0 {
		nThreads = ns.defaults.Threads
	}

	start := time.Now()
	scores, err := entry.Model.Lpmf(texts, nThreads)
	if err != nil {
		ns.logger.Warn("Failed to score texts",
			zap.String("id", id),
			zap.Int("texts", len(texts)),
			zap.Int("threads", nThreads),
			zap.Error(err))
		return nil, err
	}

	ns.logger.Debug("Scored texts",
		zap.String("id", id),
		zap.Int("texts", len(texts)),
		zap.Int("threads", nThreads),
		zap.Duration("elapsed", time.Since(start)))

	return scores, nil
}

// Score runs Lpmf and summarises the batch
func (ns *NGramService) Score(ctx context.Context, id string, texts []string, nThreads int) (*ScoreSummary, error) {
	scores, err := ns.Lpmf(ctx, id, texts, nThreads)
	if err != nil {
		return nil, err
	}
	return Summarize(scores), nil
}

// Summarize computes mean, sample standard deviation, min and max of scores.
// A single score has a standard deviation of 0.
func Summarize(scores []float64) *ScoreSummary {
	summary := &ScoreSummary{Scores: scores, Count: len(scores)}
	if len(scores) == 0 {
		return summary
	}

	summary.Min = floats.Min(scores)
	summary.Max = floats.Max(scores)
	if len(scores) == 1 {
		summary.Mean = scores[0]
		return summary
	}

	mean, std := stat.MeanStdDev(scores, nil)
	summary.Mean = mean
	if !math.IsNaN(std) {
		summary.StdDev = std
	}
	return summary
}

// Details returns the per-token breakdown and perplexity of text
func (ns *NGramService) Details(ctx context.Context, id string, text string) (*TextDetails, error) {
	entry, err := ns.GetModel(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := entry.Model.ScoreDetails(text)
	details := &TextDetails{
		Text:       text,
		Tokens:     tokens,
		Perplexity: entry.Model.Perplexity(text),
	}
	for _, d := range tokens {
		details.LogProb += d.LogProb
	}
	return details, nil
}

// NGrams returns the most frequent counted n-grams. limit <= 0 returns all.
func (ns *NGramService) NGrams(ctx context.Context, id string, limit int) ([]model.NGramWithCount, error) {
	entry, err := ns.GetModel(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ngrams := entry.Model.NGrams()
	if limit > 0 && len(ngrams) > limit {
		ngrams = ngrams[:limit]
	}
	return ngrams, nil
}

// Distribution returns P(. | context) over the vocabulary and the OOV slot
func (ns *NGramService) Distribution(ctx context.Context, id string, contextTokens []string) (*ContextDistribution, error) {
	entry, err := ns.GetModel(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &ContextDistribution{
		Context:      contextTokens,
		ContextTotal: entry.Model.ContextTotal(contextTokens),
		Distribution: entry.Model.Distribution(contextTokens),
	}, nil
}

// SaveModel writes a snapshot of the model under its registered name
func (ns *NGramService) SaveModel(ctx context.Context, id string) error {
	entry, err := ns.GetModel(id)
	if err != nil {
		return err
	}
	return ns.persistence.SaveModel(entry.Model, entry.Name)
}

// LoadModel restores a snapshot and registers it under a new id. Snapshots
// above the configured maximum order are rejected before any model is built.
func (ns *NGramService) LoadModel(ctx context.Context, name string) (*ModelInfo, error) {
	snapshot, err := ns.persistence.LoadSnapshot(name)
	if err != nil {
		return nil, err
	}
	if err := ns.checkOrder(snapshot.Params.N); err != nil {
		return nil, err
	}

	m, err := ns.persistence.Restore(snapshot)
	if err != nil {
		return nil, err
	}

	entry := ns.register(name, m)
	ns.logger.Info("Registered n-gram model from snapshot",
		zap.String("id", entry.ID),
		zap.String("name", name))

	return entryInfo(entry), nil
}

// SnapshotExists reports whether a snapshot is saved under name
func (ns *NGramService) SnapshotExists(name string) bool {
	return ns.persistence.ModelExists(name)
}
