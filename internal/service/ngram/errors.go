package ngram

import "errors"

var (
	// ErrInvalidParameter is returned when model hyperparameters are out of range.
	ErrInvalidParameter = errors.New("ngram: invalid model parameter")

	// ErrInvalidThreadCount is returned when lpmf is asked for fewer than one worker.
	ErrInvalidThreadCount = errors.New("ngram: thread count must be at least 1")

	// ErrEmptyInput is returned when lpmf receives no texts.
	ErrEmptyInput = errors.New("ngram: no texts to score")

	// ErrScoringFailed wraps a failure raised inside an lpmf worker.
	ErrScoringFailed = errors.New("ngram: scoring failed")

	// ErrModelNotFound is returned by the service for an unknown model id or snapshot.
	ErrModelNotFound = errors.New("ngram: model not found")
)
