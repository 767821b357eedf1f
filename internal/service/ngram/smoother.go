package ngram

// Smoother turns raw counts into a conditional probability
type Smoother interface {
	// Smooth computes P(token | context).
	// ngramCount: count of (context, token)
	// contextCount: total count of the context
	// vocabularySize: trained vocabulary size, excluding the OOV slot
	// seenContext: whether the context has any observation
	Smooth(ngramCount, contextCount int64, vocabularySize int, seenContext bool) float64

	// Name returns the name of the smoothing algorithm
	Name() string
}

// AdditiveSmoother implements Lidstone smoothing over the vocabulary plus one OOV slot.
// Observed contexts use alpha; unseen contexts fall back to a uniform distribution
// weighted by unseenAlpha.
type AdditiveSmoother struct {
	alpha       float64
	unseenAlpha float64
}

// NewAdditiveSmoother creates an additive smoother. Callers validate the pseudo-counts.
func NewAdditiveSmoother(alpha, unseenAlpha float64) *AdditiveSmoother {
	return &AdditiveSmoother{alpha: alpha, unseenAlpha: unseenAlpha}
}

func (s *AdditiveSmoother) Smooth(ngramCount, contextCount int64, vocabularySize int, seenContext bool) float64 {
	slots := float64(vocabularySize + 1)
	if !seenContext {
		return s.unseenAlpha / (s.unseenAlpha * slots)
	}
	return (float64(ngramCount) + s.alpha) / (float64(contextCount) + s.alpha*slots)
}

func (s *AdditiveSmoother) Name() string {
	return "Additive"
}
