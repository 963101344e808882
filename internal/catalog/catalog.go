// Package catalog holds the static intent definitions the dialogue engine
// selects replies from. The catalog is loaded once at startup; there is no
// mid-process reload.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Intent is one catalog entry. Patterns are consumed by the classifier
// backend only; resolution and response selection key off the remaining
// fields.
type Intent struct {
	Tag           string   `json:"tag" yaml:"tag"`
	Patterns      []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	ContextFilter string   `json:"context_filter,omitempty" yaml:"context_filter,omitempty"`
	ContextSet    string   `json:"context_set,omitempty" yaml:"context_set,omitempty"`
	Responses     []string `json:"responses" yaml:"responses"`
}

type Catalog struct {
	intents []Intent
	byTag   map[string]int
}

type document struct {
	Intents []Intent `json:"intents" yaml:"intents"`
}

// Load reads a catalog definition from disk. Files ending in .yaml or .yml
// are parsed as YAML, everything else as JSON.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read intents file: %w", err)
	}
	var doc document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("parse intents yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("parse intents json: %w", err)
		}
	}
	return New(doc.Intents)
}

// New validates the given intents and builds lookup indexes. Tags must be
// unique and non-empty, and every intent needs at least one response.
func New(intents []Intent) (*Catalog, error) {
	if len(intents) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	byTag := make(map[string]int, len(intents))
	for i, it := range intents {
		if strings.TrimSpace(it.Tag) == "" {
			return nil, fmt.Errorf("intent %d has an empty tag", i)
		}
		if _, dup := byTag[it.Tag]; dup {
			return nil, fmt.Errorf("duplicate intent tag %q", it.Tag)
		}
		if len(it.Responses) == 0 {
			return nil, fmt.Errorf("intent %q has no responses", it.Tag)
		}
		byTag[it.Tag] = i
	}
	return &Catalog{intents: append([]Intent(nil), intents...), byTag: byTag}, nil
}

// ByTag returns the intent with the given tag.
func (c *Catalog) ByTag(tag string) (Intent, bool) {
	i, ok := c.byTag[tag]
	if !ok {
		return Intent{}, false
	}
	return c.intents[i], true
}

// ByContextFilter returns every intent whose context_filter equals the given
// context, in catalog order.
func (c *Catalog) ByContextFilter(context string) []Intent {
	var out []Intent
	for _, it := range c.intents {
		if it.ContextFilter == context {
			out = append(out, it)
		}
	}
	return out
}

// ClassIndex returns the catalog position of a tag, used for stable
// tie-breaking when probabilities are equal. Unknown tags sort last.
func (c *Catalog) ClassIndex(tag string) int {
	if i, ok := c.byTag[tag]; ok {
		return i
	}
	return len(c.intents)
}

// Intents returns all intents in catalog order.
func (c *Catalog) Intents() []Intent {
	return append([]Intent(nil), c.intents...)
}

// Tags returns all tags in catalog order.
func (c *Catalog) Tags() []string {
	tags := make([]string, len(c.intents))
	for i, it := range c.intents {
		tags[i] = it.Tag
	}
	return tags
}
