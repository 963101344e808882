package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"fixmantra-backend/internal/catalog"
)

// OpenAIScorer asks a chat model for a probability distribution over the
// catalog tags. It is an optional backend (SCORER=openai); the dialogue core
// only ever sees the Scorer interface.
type OpenAIScorer struct {
	client *openai.Client
	model  string
	tags   []string
	system string
}

func NewOpenAIScorer(client *openai.Client, model string, cat *catalog.Catalog) *OpenAIScorer {
	return &OpenAIScorer{
		client: client,
		model:  model,
		tags:   cat.Tags(),
		system: buildSystemPrompt(cat),
	}
}

func buildSystemPrompt(cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("You classify a user message for a device-repair chatbot. ")
	b.WriteString("Score how well the message matches each intent tag.\n\nIntents:\n")
	for _, it := range cat.Intents() {
		if len(it.Patterns) == 0 {
			// Context-driven capture intents are never selected by the model.
			continue
		}
		fmt.Fprintf(&b, "- %s (examples: %s)\n", it.Tag, strings.Join(it.Patterns, "; "))
	}
	b.WriteString("\nRespond with ONLY a JSON object mapping each intent tag to a probability between 0 and 1.")
	return b.String()
}

func (s *OpenAIScorer) Score(ctx context.Context, utterance string) (map[string]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0,
		MaxTokens:   300,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: s.system},
			{Role: openai.ChatMessageRoleUser, Content: utterance},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai completion: no choices")
	}
	scores, err := parseScores(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	// Drop tags the catalog does not know and clamp to [0,1].
	known := make(map[string]struct{}, len(s.tags))
	for _, t := range s.tags {
		known[t] = struct{}{}
	}
	out := make(map[string]float64, len(scores))
	for tag, p := range scores {
		if _, ok := known[tag]; !ok {
			continue
		}
		if p < 0 {
			p = 0
		}
		if p > 1 {
			p = 1
		}
		out[tag] = p
	}
	return out, nil
}

// parseScores unmarshals the model output, trimming to the outermost braces
// when the model wraps the JSON in prose.
func parseScores(raw string) (map[string]float64, error) {
	var scores map[string]float64
	if err := json.Unmarshal([]byte(raw), &scores); err == nil {
		return scores, nil
	}
	first := strings.IndexByte(raw, '{')
	last := strings.LastIndexByte(raw, '}')
	if first < 0 || last <= first {
		return nil, fmt.Errorf("openai completion: no JSON object in response")
	}
	if err := json.Unmarshal([]byte(raw[first:last+1]), &scores); err != nil {
		return nil, fmt.Errorf("parse scores: %w", err)
	}
	return scores, nil
}
