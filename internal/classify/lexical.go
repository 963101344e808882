package classify

import (
	"context"
	"strings"
	"unicode"

	"fixmantra-backend/internal/catalog"
)

// LexicalScorer is the built-in scoring backend: token overlap between the
// utterance and each intent's training patterns. It needs no external model
// and is fully deterministic, which also makes it the backend of choice in
// tests. Intents without patterns (the context-driven capture intents) never
// score.
type LexicalScorer struct {
	vocab map[string]map[string]struct{} // tag -> pattern token set
}

func NewLexicalScorer(cat *catalog.Catalog) *LexicalScorer {
	vocab := make(map[string]map[string]struct{})
	for _, it := range cat.Intents() {
		if len(it.Patterns) == 0 {
			continue
		}
		set := make(map[string]struct{})
		for _, p := range it.Patterns {
			for _, tok := range tokenize(p) {
				set[tok] = struct{}{}
			}
		}
		if len(set) > 0 {
			vocab[it.Tag] = set
		}
	}
	return &LexicalScorer{vocab: vocab}
}

func (s *LexicalScorer) Score(_ context.Context, utterance string) (map[string]float64, error) {
	toks := tokenize(utterance)
	scores := make(map[string]float64, len(s.vocab))
	if len(toks) == 0 {
		return scores, nil
	}
	for tag, set := range s.vocab {
		hits := 0
		for _, t := range toks {
			if _, ok := set[t]; ok {
				hits++
			}
		}
		if hits > 0 {
			scores[tag] = float64(hits) / float64(len(toks))
		}
	}
	return scores, nil
}

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
