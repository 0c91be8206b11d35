package store

import (
	"errors"
	"os"
	"time"
)

// Watermark marks how far ingestion has progressed. LastProcessed bounds
// the next incremental scan; RecentCommits is the bounded window that is
// always re-examined so amended or partially-written commits get
// re-absorbed.
type Watermark struct {
	LastProcessed string    `json:"last_processed"`
	RecentCommits []string  `json:"recent_commits"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LoadWatermark reads the watermark document. The second return is false
// when no watermark has been recorded yet (bootstrap).
func LoadWatermark(path string) (*Watermark, bool, error) {
	var w Watermark
	err := readJSON(path, &w)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &w, true, nil
}

// SaveWatermark overwrites the watermark document.
func SaveWatermark(path string, w *Watermark) error {
	w.UpdatedAt = time.Now().UTC()
	return writeJSON(path, w)
}
