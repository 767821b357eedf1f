package ngram

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// scorer runs lpmf over a batch with a fixed number of workers. Each worker owns
// a contiguous range of the batch and writes only its own output slots.
type scorer struct {
	model    *NgramModel
	nThreads int
}

func newScorer(model *NgramModel, nThreads int) *scorer {
	return &scorer{model: model, nThreads: nThreads}
}

// run scores texts. The model read lock must be held by the caller.
func (s *scorer) run(texts []string) ([]float64, error) {
	scores := make([]float64, len(texts))

	workers := s.nThreads
	if workers > len(texts) {
		workers = len(texts)
	}

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * len(texts) / workers
		end := (w + 1) * len(texts) / workers
		g.Go(func() error {
			return s.scoreRange(texts, scores, start, end)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func (s *scorer) scoreRange(texts []string, scores []float64, start, end int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: worker for texts [%d, %d) panicked: %v", ErrScoringFailed, start, end, r)
		}
	}()

	history := make([]uint32, s.model.params.N-1)
	for i := start; i < end; i++ {
		score, err := s.model.scoreText(texts[i], history)
		if err != nil {
			return fmt.Errorf("%w: text %d: %w", ErrScoringFailed, i, err)
		}
		scores[i] = score
	}
	return nil
}
