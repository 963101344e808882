package classify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"fixmantra-backend/internal/catalog"
	"fixmantra-backend/internal/metrics"
)

const (
	cacheTTL     = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
)

// Adapter turns raw scorer output into ranked candidates: probabilities
// strictly above the threshold, sorted descending, ties broken by catalog
// class order. Ranked results are cached per normalized utterance since the
// scorer may call out to a remote model.
type Adapter struct {
	scorer    Scorer
	threshold float64
	order     func(tag string) int
	cache     *gocache.Cache
}

func NewAdapter(scorer Scorer, cat *catalog.Catalog, threshold float64) *Adapter {
	return &Adapter{
		scorer:    scorer,
		threshold: threshold,
		order:     cat.ClassIndex,
		cache:     gocache.New(cacheTTL, cacheCleanup),
	}
}

// Rank scores the utterance and returns the thresholded, ordered candidates.
// An empty slice is a valid result. Scorer failures are reported as
// ErrUnavailable.
func (a *Adapter) Rank(ctx context.Context, utterance string) ([]Candidate, error) {
	key := strings.ToLower(strings.TrimSpace(utterance))
	if v, ok := a.cache.Get(key); ok {
		metrics.RecordScoreCacheHit()
		cached := v.([]Candidate)
		return append([]Candidate(nil), cached...), nil
	}

	scores, err := a.scorer.Score(ctx, utterance)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	cands := make([]Candidate, 0, len(scores))
	for tag, p := range scores {
		if p > a.threshold {
			cands = append(cands, Candidate{Tag: tag, Probability: p})
		}
	}
	// Seed catalog order first so the stable sort keeps it for equal
	// probabilities.
	sort.Slice(cands, func(i, j int) bool {
		return a.order(cands[i].Tag) < a.order(cands[j].Tag)
	})
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Probability > cands[j].Probability
	})

	a.cache.Set(key, append([]Candidate(nil), cands...), gocache.DefaultExpiration)
	return cands, nil
}
