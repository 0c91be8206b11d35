package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DayFile is one calendar day's document: the date, the timezone it was
// resolved in, and the entries in append order.
type DayFile struct {
	Date     string      `json:"date"`
	Timezone string      `json:"timezone"`
	Entries  []TimeEntry `json:"entries"`
}

// DayStore keeps one JSON document per calendar date under dir. Loaded
// days are memoized for the duration of a run so a line always sees the
// writes of the lines before it.
type DayStore struct {
	dir      string
	timezone string
	loaded   map[string]*DayFile
}

func NewDayStore(dir, timezone string) *DayStore {
	return &DayStore{
		dir:      dir,
		timezone: timezone,
		loaded:   make(map[string]*DayFile),
	}
}

func (s *DayStore) path(date string) string {
	return filepath.Join(s.dir, date+".json")
}

func (s *DayStore) day(date string) (*DayFile, error) {
	if d, ok := s.loaded[date]; ok {
		return d, nil
	}

	d := &DayFile{Date: date, Timezone: s.timezone}
	err := readJSON(s.path(date), d)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	s.loaded[date] = d
	return d, nil
}

// Has reports whether an entry with id is already recorded for date.
func (s *DayStore) Has(date, id string) (bool, error) {
	d, err := s.day(date)
	if err != nil {
		return false, err
	}
	for _, e := range d.Entries {
		if e.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// Append writes e to the day's document. The caller is expected to have
// checked Has first; appending an existing id is an error, never a
// silent overwrite.
func (s *DayStore) Append(date string, e TimeEntry) error {
	d, err := s.day(date)
	if err != nil {
		return err
	}
	for _, existing := range d.Entries {
		if existing.ID == e.ID {
			return fmt.Errorf("entry %s already recorded for %s", e.ID, date)
		}
	}
	d.Entries = append(d.Entries, e)
	return writeJSON(s.path(date), d)
}

// Load returns the document for date, which may be empty.
func (s *DayStore) Load(date string) (*DayFile, error) {
	return s.day(date)
}

// Dates lists the dates that have a document on disk, sorted ascending.
func (s *DayStore) Dates() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read day dir: %w", err)
	}

	var dates []string
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		dates = append(dates, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(dates)
	return dates, nil
}
