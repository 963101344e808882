// Package classify wraps the black-box utterance scorer behind a small
// adapter that applies the probability threshold and ranking the dialogue
// core expects.
package classify

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the underlying scorer cannot produce a
// distribution. Callers treat it as "no confident match", never as a fatal
// condition.
var ErrUnavailable = errors.New("classification unavailable")

// Scorer produces a per-tag score in [0,1] for an utterance. Tags absent
// from the result are treated as zero.
type Scorer interface {
	Score(ctx context.Context, utterance string) (map[string]float64, error)
}

// Candidate is a ranked (tag, probability) pair produced for a single turn.
type Candidate struct {
	Tag         string
	Probability float64
}
