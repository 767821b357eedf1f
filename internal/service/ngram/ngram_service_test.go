package ngram

import (
	"context"
	"math"
	"testing"

	"ngm-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *NGramService {
	t.Helper()
	cfg := config.Default()
	cfg.Persistence.ModelDir = t.TempDir()
	cfg.Model.Threads = 2

	ns, err := NewNGramService(cfg, zap.NewNop())
	require.NoError(t, err)
	return ns
}

func TestNGramService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	ns := newTestService(t)

	info, err := ns.CreateModel(ctx, "bigram", Params{N: 2, Alpha: 1, UnseenAlpha: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "bigram", info.Name)

	stats, err := ns.Update(ctx, info.ID, []string{"a b a b"})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.VocabularySize)

	scores, err := ns.Lpmf(ctx, info.ID, []string{"a b"}, 0)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(0.5)+math.Log(0.6), scores[0], tolerance)

	list := ns.ListModels()
	require.Len(t, list, 1)
	assert.Equal(t, info.ID, list[0].ID)

	require.NoError(t, ns.DeleteModel(ctx, info.ID))
	assert.Empty(t, ns.ListModels())

	_, err = ns.Lpmf(ctx, info.ID, []string{"a b"}, 1)
	assert.ErrorIs(t, err, ErrModelNotFound)
	assert.ErrorIs(t, ns.DeleteModel(ctx, info.ID), ErrModelNotFound)
}

func TestNGramService_Errors(t *testing.T) {
	ctx := context.Background()
	ns := newTestService(t)

	_, err := ns.CreateModel(ctx, "bad", Params{N: 0, Alpha: 1, UnseenAlpha: 1})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	info, err := ns.CreateModel(ctx, "ok", ns.DefaultParams())
	require.NoError(t, err)

	_, err = ns.Lpmf(ctx, info.ID, nil, 1)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = ns.Lpmf(ctx, info.ID, []string{"x"}, -3)
	assert.ErrorIs(t, err, ErrInvalidThreadCount)

	_, err = ns.Update(ctx, "missing", []string{"x"})
	assert.ErrorIs(t, err, ErrModelNotFound)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = ns.Update(cancelled, info.ID, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNGramService_Score(t *testing.T) {
	ctx := context.Background()
	ns := newTestService(t)

	info, err := ns.CreateModel(ctx, "summary", Params{N: 2, Alpha: 1, UnseenAlpha: 1, NormaliseLength: true})
	require.NoError(t, err)
	_, err = ns.Update(ctx, info.ID, []string{"a b c", "a c b"})
	require.NoError(t, err)

	texts := []string{"a b", "c c c", "b a"}
	summary, err := ns.Score(ctx, info.ID, texts, 3)
	require.NoError(t, err)

	scores, err := ns.Lpmf(ctx, info.ID, texts, 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, scores, summary.Scores, tolerance)
	assert.Equal(t, 3, summary.Count)

	mean := (scores[0] + scores[1] + scores[2]) / 3
	assert.InDelta(t, mean, summary.Mean, 1e-12)
	assert.LessOrEqual(t, summary.Min, summary.Mean)
	assert.GreaterOrEqual(t, summary.Max, summary.Mean)
	assert.Greater(t, summary.StdDev, 0.0)
}

func TestSummarize_SingleScore(t *testing.T) {
	summary := Summarize([]float64{-1.5})
	assert.Equal(t, -1.5, summary.Mean)
	assert.Equal(t, 0.0, summary.StdDev)
	assert.Equal(t, -1.5, summary.Min)
	assert.Equal(t, -1.5, summary.Max)
}

func TestNGramService_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	ns := newTestService(t)

	info, err := ns.CreateModel(ctx, "persisted", Params{N: 3, Alpha: 0.5, UnseenAlpha: 1, NormaliseLength: true})
	require.NoError(t, err)
	_, err = ns.Update(ctx, info.ID, []string{"one two three", "two three four"})
	require.NoError(t, err)

	require.NoError(t, ns.SaveModel(ctx, info.ID))
	assert.True(t, ns.SnapshotExists("persisted"))

	loaded, err := ns.LoadModel(ctx, "persisted")
	require.NoError(t, err)
	assert.NotEqual(t, info.ID, loaded.ID)
	assert.Equal(t, "persisted", loaded.Name)

	texts := []string{"one two four", "three"}
	want, err := ns.Lpmf(ctx, info.ID, texts, 1)
	require.NoError(t, err)
	got, err := ns.Lpmf(ctx, loaded.ID, texts, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, tolerance)

	_, err = ns.LoadModel(ctx, "never-saved")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestNGramService_RejectsOrderAboveMax(t *testing.T) {
	ctx := context.Background()
	ns := newTestService(t)

	_, err := ns.CreateModel(ctx, "huge", Params{N: 1 << 40, Alpha: 1, UnseenAlpha: 1})
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = ns.CreateModel(ctx, "above", Params{N: 17, Alpha: 1, UnseenAlpha: 1})
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Empty(t, ns.ListModels())

	info, err := ns.CreateModel(ctx, "at-limit", Params{N: 16, Alpha: 1, UnseenAlpha: 1})
	require.NoError(t, err)
	_, err = ns.Update(ctx, info.ID, []string{"a b c"})
	require.NoError(t, err)
}

func TestNGramService_LoadRejectsOrderAboveMax(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Persistence.ModelDir = t.TempDir()

	// Written by a server with a larger limit.
	permissive := *cfg
	permissive.Model.MaxOrder = 8
	writer, err := NewNGramService(&permissive, zap.NewNop())
	require.NoError(t, err)
	info, err := writer.CreateModel(ctx, "wide", Params{N: 6, Alpha: 1, UnseenAlpha: 1})
	require.NoError(t, err)
	_, err = writer.Update(ctx, info.ID, []string{"a b c d e f g"})
	require.NoError(t, err)
	require.NoError(t, writer.SaveModel(ctx, info.ID))

	strict := *cfg
	strict.Model.MaxOrder = 4
	reader, err := NewNGramService(&strict, zap.NewNop())
	require.NoError(t, err)
	_, err = reader.LoadModel(ctx, "wide")
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Empty(t, reader.ListModels())

	_, err = writer.LoadModel(ctx, "wide")
	require.NoError(t, err)
}

func TestNGramService_RejectsInvalidName(t *testing.T) {
	ctx := context.Background()
	ns := newTestService(t)

	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		_, err := ns.CreateModel(ctx, name, ns.DefaultParams())
		assert.ErrorIs(t, err, ErrInvalidParameter, "name %q", name)
	}
	assert.Empty(t, ns.ListModels())
}

func TestNGramService_DetailsNGramsDistribution(t *testing.T) {
	ctx := context.Background()
	ns := newTestService(t)

	info, err := ns.CreateModel(ctx, "inspect", Params{N: 2, Alpha: 1, UnseenAlpha: 1})
	require.NoError(t, err)
	_, err = ns.Update(ctx, info.ID, []string{"a b a b"})
	require.NoError(t, err)

	details, err := ns.Details(ctx, info.ID, "a b z")
	require.NoError(t, err)
	require.Len(t, details.Tokens, 3)
	assert.True(t, details.Tokens[2].OOV)
	// z is out of vocabulary: p(z | b) = 1/(1+3)
	want := math.Log(0.5) + math.Log(0.6) + math.Log(0.25)
	assert.InDelta(t, want, details.LogProb, tolerance)
	assert.InDelta(t, math.Exp(-want/3), details.Perplexity, 1e-9)

	ngrams, err := ns.NGrams(ctx, info.ID, 1)
	require.NoError(t, err)
	require.Len(t, ngrams, 1)
	assert.Equal(t, "a b", ngrams[0].NGram.String())
	assert.Equal(t, int64(2), ngrams[0].Count)

	all, err := ns.NGrams(ctx, info.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	dist, err := ns.Distribution(ctx, info.ID, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), dist.ContextTotal)
	assert.InDelta(t, 0.6, dist.Distribution["b"], tolerance)
	assert.InDelta(t, 0.2, dist.Distribution[OOVToken], tolerance)

	_, err = ns.Details(ctx, "missing", "a")
	assert.ErrorIs(t, err, ErrModelNotFound)
}
