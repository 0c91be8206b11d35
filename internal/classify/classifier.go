// Package classify is the fallback normalization stage: when the alias
// table yields no category for a line, an external model picks one from
// the canonical list. Results are cached by exact input so repeated runs
// over the same history never repeat a call.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/punchlabs/punchlog/internal/anthropic"
	"github.com/punchlabs/punchlog/internal/tags"
)

// Result is a sanitized classification: primary is always a canonical
// key, secondary never repeats it, confidence is within [0, 1].
type Result struct {
	Primary    string   `json:"primary"`
	Secondary  []string `json:"secondary,omitempty"`
	Confidence float64  `json:"confidence"`
}

// llmPayload mirrors the strict-JSON response contract. Confidence is
// decoded loosely so a malformed value degrades to zero instead of
// rejecting an otherwise usable response.
type llmPayload struct {
	Primary             string              `json:"primary"`
	Secondary           []string            `json:"secondary"`
	Confidence          any                 `json:"confidence"`
	NewAliasSuggestions map[string][]string `json:"new_alias_suggestions"`
}

type Classifier struct {
	llm    *anthropic.Client
	index  *tags.Index
	cache  *Cache
	ledger *Ledger
	logger *slog.Logger
}

func New(llm *anthropic.Client, index *tags.Index, cache *Cache, ledger *Ledger, logger *slog.Logger) *Classifier {
	return &Classifier{
		llm:    llm,
		index:  index,
		cache:  cache,
		ledger: ledger,
		logger: logger,
	}
}

// Classify resolves one (raw tags, note) pair to a category. The cache
// is consulted first; on a miss exactly one external call is made, the
// response sanitized, the cache and suggestion ledger persisted.
func (c *Classifier) Classify(ctx context.Context, rawTags []string, note string) (*Result, error) {
	key := cacheKey(rawTags, note)
	if r, ok := c.cache.Get(key); ok {
		c.logger.Debug("classification cache hit", "tags", rawTags)
		return &r, nil
	}

	prompt := fmt.Sprintf(userPromptFormat,
		strings.Join(c.index.Keys(), ", "),
		strings.Join(rawTags, " "),
		note,
	)

	raw, err := c.llm.Complete(ctx, systemPrompt, []anthropic.Message{
		{Role: "user", Content: prompt},
	}, 1024)
	if err != nil {
		return nil, fmt.Errorf("classification call: %w", err)
	}

	var payload llmPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		c.logger.Error("classifier returned non-JSON payload", "raw", raw)
		return nil, fmt.Errorf("parse classification: %w", err)
	}

	result, err := c.sanitize(payload)
	if err != nil {
		return nil, err
	}

	c.cache.Put(key, *result)
	if err := c.cache.Save(); err != nil {
		c.logger.Warn("failed to persist classification cache", "error", err)
	}

	c.harvest(payload.NewAliasSuggestions)

	c.logger.Info("line classified",
		"tags", rawTags,
		"primary", result.Primary,
		"confidence", result.Confidence,
	)
	return result, nil
}

// sanitize enforces the response contract: an unknown primary rejects
// the whole result, unknown or duplicate secondary keys are dropped, a
// malformed or out-of-range confidence becomes zero.
func (c *Classifier) sanitize(p llmPayload) (*Result, error) {
	if !c.index.Has(p.Primary) {
		return nil, fmt.Errorf("unrecognized primary category %q", p.Primary)
	}

	var secondary []string
	seen := map[string]bool{p.Primary: true}
	for _, s := range p.Secondary {
		if !c.index.Has(s) || seen[s] {
			continue
		}
		seen[s] = true
		secondary = append(secondary, s)
	}

	confidence := 0.0
	if f, ok := p.Confidence.(float64); ok && f >= 0 && f <= 1 {
		confidence = f
	}

	return &Result{Primary: p.Primary, Secondary: secondary, Confidence: confidence}, nil
}

// harvest merges alias suggestions for canonical keys into the ledger.
// Suggestions for unknown keys are dropped.
func (c *Classifier) harvest(suggestions map[string][]string) {
	if len(suggestions) == 0 {
		return
	}

	known := make(map[string][]string, len(suggestions))
	for key, aliases := range suggestions {
		if c.index.Has(key) {
			known[key] = aliases
		}
	}

	added := c.ledger.Merge(known)
	if added == 0 {
		return
	}
	if err := c.ledger.Save(); err != nil {
		c.logger.Warn("failed to persist alias suggestions", "error", err)
		return
	}
	c.logger.Info("alias suggestions harvested", "added", added)
}
