package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Ledger accumulates alias suggestions harvested from classifier
// responses, a deduplicated set per canonical key. It grows
// monotonically and never feeds back into the tag index; merging a
// suggestion into the alias table is a manual review step.
type Ledger struct {
	path    string
	entries map[string][]string
}

func LoadLedger(path string) (*Ledger, error) {
	l := &Ledger{path: path, entries: make(map[string][]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("read suggestions: %w", err)
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}
	return l, nil
}

// Merge unions suggestions into the ledger and returns how many new
// aliases were recorded.
func (l *Ledger) Merge(suggestions map[string][]string) int {
	added := 0
	for key, aliases := range suggestions {
		existing := make(map[string]bool, len(l.entries[key]))
		for _, a := range l.entries[key] {
			existing[a] = true
		}
		for _, a := range aliases {
			if a == "" || existing[a] {
				continue
			}
			existing[a] = true
			l.entries[key] = append(l.entries[key], a)
			added++
		}
		sort.Strings(l.entries[key])
	}
	return added
}

func (l *Ledger) Suggestions(key string) []string {
	out := make([]string, len(l.entries[key]))
	copy(out, l.entries[key])
	return out
}

func (l *Ledger) Save() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}
	return os.WriteFile(l.path, data, 0o644)
}
