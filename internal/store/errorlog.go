package store

import (
	"errors"
	"os"
)

// ErrorEntry records one line that failed date or duration parsing, or
// whose classifier call failed. Never auto-resolved.
type ErrorEntry struct {
	ID     string `json:"id"`
	Commit string `json:"commit"`
	Line   string `json:"line"`
	Reason string `json:"reason"`
}

// ErrorLog is the append-only error document. Loaded at the start of a
// run, appended in memory, written back at the end.
type ErrorLog struct {
	path    string
	entries []ErrorEntry
}

func LoadErrorLog(path string) (*ErrorLog, error) {
	l := &ErrorLog{path: path}
	err := readJSON(path, &l.entries)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return l, nil
}

// Append records an error. A line that errors the same way on every run
// over an overlapping commit range is recorded once, not once per run.
func (l *ErrorLog) Append(e ErrorEntry) {
	for _, existing := range l.entries {
		if existing.ID == e.ID && existing.Reason == e.Reason {
			return
		}
	}
	l.entries = append(l.entries, e)
}

func (l *ErrorLog) Entries() []ErrorEntry {
	out := make([]ErrorEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *ErrorLog) Save() error {
	return writeJSON(l.path, l.entries)
}
