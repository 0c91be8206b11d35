package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Cache persists sanitized classifier results keyed by the exact
// (raw tags, note) pair. A hit must never trigger an external call, so
// re-running over overlapping commit ranges costs nothing.
type Cache struct {
	path    string
	entries map[string]Result
}

func LoadCache(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string]Result)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("read cache: %w", err)
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("parse cache: %w", err)
	}
	return c, nil
}

// cacheKey serializes the exact input pair. Identical raw tags and note
// always produce the same key.
func cacheKey(rawTags []string, note string) string {
	b, _ := json.Marshal(struct {
		Tags []string `json:"tags"`
		Note string   `json:"note"`
	}{Tags: rawTags, Note: note})
	return string(b)
}

func (c *Cache) Get(key string) (Result, bool) {
	r, ok := c.entries[key]
	return r, ok
}

func (c *Cache) Put(key string, r Result) {
	c.entries[key] = r
}

func (c *Cache) Len() int {
	return len(c.entries)
}

func (c *Cache) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	return os.WriteFile(c.path, data, 0o644)
}
