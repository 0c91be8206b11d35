// Package tags loads the canonical category list and resolves raw tag
// tokens against it.
package tags

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Uncategorized is the sentinel primary category for entries no stage
// could resolve.
const Uncategorized = "uncategorized"

type fileFormat struct {
	Timezone string              `yaml:"timezone"`
	Tags     map[string]tagEntry `yaml:"tags"`
}

type tagEntry struct {
	Aliases []string `yaml:"aliases"`
}

// Index is the immutable tag configuration for one run: the canonical
// category keys, a lookup table built from keys and declared aliases,
// and the timezone dates are resolved in.
type Index struct {
	keys   []string
	lookup map[string]string
	loc    *time.Location
}

// Load reads the tag configuration document once and builds the index.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tags file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tags file: %w", err)
	}

	aliases := make(map[string][]string, len(f.Tags))
	for key, entry := range f.Tags {
		aliases[key] = entry.Aliases
	}

	return NewIndex(f.Timezone, aliases)
}

// NewIndex builds an index from a timezone identifier and a map of
// canonical key to declared aliases.
func NewIndex(timezone string, aliases map[string][]string) (*Index, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	keys := make([]string, 0, len(aliases))
	for key := range aliases {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// Canonical keys are inserted before aliases so a key that collides
	// with another key's alias resolves to itself.
	lookup := make(map[string]string, len(aliases)*2)
	for _, key := range keys {
		nk := NormalizeToken(key)
		if nk == "" {
			continue
		}
		if _, ok := lookup[nk]; !ok {
			lookup[nk] = key
		}
	}
	for _, key := range keys {
		for _, alias := range aliases[key] {
			na := NormalizeToken(alias)
			if na == "" {
				continue
			}
			if _, ok := lookup[na]; !ok {
				lookup[na] = key
			}
		}
	}

	return &Index{keys: keys, lookup: lookup, loc: loc}, nil
}

// Keys returns the canonical category keys in sorted order.
func (x *Index) Keys() []string {
	out := make([]string, len(x.keys))
	copy(out, x.keys)
	return out
}

// Has reports whether key is a canonical category key.
func (x *Index) Has(key string) bool {
	for _, k := range x.keys {
		if k == key {
			return true
		}
	}
	return false
}

// Location returns the configured timezone.
func (x *Index) Location() *time.Location {
	return x.loc
}

// Resolve maps one raw token to its canonical key.
func (x *Index) Resolve(raw string) (string, bool) {
	key, ok := x.lookup[NormalizeToken(raw)]
	return key, ok
}

// Match maps a raw tag list to canonical keys, dropping unmatched tokens
// and deduplicating while preserving first-occurrence order. An empty
// result means the line is a candidate for the classifier fallback.
func (x *Index) Match(rawTags []string) []string {
	var out []string
	seen := make(map[string]bool, len(rawTags))
	for _, raw := range rawTags {
		key, ok := x.Resolve(raw)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

// NormalizeToken reduces a raw token to its lookup key: trimmed,
// leading '#' stripped, lowercased, non-alphanumeric runes removed.
func NormalizeToken(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "#")
	s = strings.ToLower(s)

	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
