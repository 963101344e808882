// Package dialog implements intent resolution and the session-context
// dialogue engine.
package dialog

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"fixmantra-backend/internal/catalog"
	"fixmantra-backend/internal/classify"
	fmlog "fixmantra-backend/internal/log"
	"fixmantra-backend/internal/metrics"
	"fixmantra-backend/internal/session"
)

// Ranker is the classifier adapter boundary.
type Ranker interface {
	Rank(ctx context.Context, utterance string) ([]classify.Candidate, error)
}

// Resolver decides which intents apply to a turn. A session that is mid-form
// (context set) is resolved purely by context_filter and the classifier is
// never consulted; only unconstrained turns use the classifier.
type Resolver struct {
	cat      *catalog.Catalog
	ranker   Ranker
	sessions *session.Store
	log      zerolog.Logger
}

func NewResolver(cat *catalog.Catalog, ranker Ranker, sessions *session.Store) *Resolver {
	return &Resolver{
		cat:      cat,
		ranker:   ranker,
		sessions: sessions,
		log:      fmlog.WithComponent("resolver"),
	}
}

// Resolve returns the ordered candidate intents for the utterance. It never
// mutates session state. Callers who must keep resolution consistent with a
// subsequent mutation should let Engine.Turn resolve inside the turn's
// critical section instead; see resolveCurrent.
func (r *Resolver) Resolve(ctx context.Context, sessionID, utterance string) []classify.Candidate {
	return r.resolveCurrent(ctx, r.sessions.Context(sessionID), utterance)
}

// resolveCurrent resolves against an explicit context value rather than
// reading the store, so it can run while the caller already holds the
// session's turn lock. It touches no session state; a scorer failure
// degrades to "no candidates".
func (r *Resolver) resolveCurrent(ctx context.Context, current, utterance string) []classify.Candidate {
	if current != "" {
		intents := r.cat.ByContextFilter(current)
		out := make([]classify.Candidate, 0, len(intents))
		for _, it := range intents {
			out = append(out, classify.Candidate{Tag: it.Tag, Probability: 1.0})
		}
		return out
	}

	cands, err := r.ranker.Rank(ctx, utterance)
	if err != nil {
		if errors.Is(err, classify.ErrUnavailable) {
			metrics.RecordClassifierError()
			r.log.Warn().Err(err).Msg("classifier unavailable, treating as no match")
			return nil
		}
		metrics.RecordClassifierError()
		r.log.Error().Err(err).Msg("classifier failed")
		return nil
	}
	return cands
}
