package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixmantra-backend/internal/catalog"
)

func TestLexicalScorerOverlap(t *testing.T) {
	cat, err := catalog.New([]catalog.Intent{
		{Tag: "greeting", Patterns: []string{"Hi", "Hello there"}, Responses: []string{"Hello!"}},
		{Tag: "book_service", Patterns: []string{"Book a service", "I need a repair"}, Responses: []string{"Name?"}},
		{Tag: "capture_name", ContextFilter: "awaiting_name", Responses: []string{"Thanks {name}!"}},
	})
	require.NoError(t, err)
	s := NewLexicalScorer(cat)

	scores, err := s.Score(context.Background(), "I need a repair")
	require.NoError(t, err)
	assert.Equal(t, 1.0, scores["book_service"])
	assert.Zero(t, scores["greeting"])

	// Pattern-less capture intents never score.
	_, ok := scores["capture_name"]
	assert.False(t, ok)
}

func TestLexicalScorerNoMatch(t *testing.T) {
	cat, err := catalog.New([]catalog.Intent{
		{Tag: "greeting", Patterns: []string{"hi"}, Responses: []string{"Hello!"}},
	})
	require.NoError(t, err)
	s := NewLexicalScorer(cat)

	scores, err := s.Score(context.Background(), "xylophone quantum")
	require.NoError(t, err)
	assert.Empty(t, scores)

	scores, err = s.Score(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"book", "a", "service"}, tokenize("Book a service!"))
	assert.Equal(t, []string{"my", "phone", "s", "broken"}, tokenize("My phone's broken?"))
	assert.Empty(t, tokenize("  ?! "))
}
