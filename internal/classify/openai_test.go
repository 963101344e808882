package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScores(t *testing.T) {
	scores, err := parseScores(`{"greeting": 0.9, "goodbye": 0.1}`)
	require.NoError(t, err)
	assert.Equal(t, 0.9, scores["greeting"])
}

func TestParseScoresTrimsProse(t *testing.T) {
	scores, err := parseScores("Sure! Here you go:\n```json\n{\"greeting\": 0.7}\n```")
	require.NoError(t, err)
	assert.Equal(t, 0.7, scores["greeting"])
}

func TestParseScoresRejectsGarbage(t *testing.T) {
	_, err := parseScores("no json here")
	assert.Error(t, err)

	_, err = parseScores("{not valid}")
	assert.Error(t, err)
}
