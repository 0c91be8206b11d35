package store

// RawLine preserves the verbatim tokens captured from the commit
// message, so an entry can be audited or reprocessed without the
// original commit.
type RawLine struct {
	Date     string              `json:"date"`
	Duration string              `json:"duration"`
	Tags     []string            `json:"tags,omitempty"`
	TagMeta  map[string][]string `json:"tag_meta,omitempty"`
	Note     string              `json:"note,omitempty"`
}

// Normalized is the category assignment for one entry. Method records
// which stage supplied it: "alias", "llm" or "fallback".
type Normalized struct {
	Primary    string   `json:"primary"`
	Secondary  []string `json:"secondary,omitempty"`
	Confidence float64  `json:"confidence"`
	Method     string   `json:"method"`
}

// Source identifies where an entry came from.
type Source struct {
	Repo   string `json:"repo"`
	Commit string `json:"commit"`
}

// TimeEntry is the persisted unit. ID is derived from the commit hash
// and the zero-based index of the time line within that commit's
// message; it is the sole identity key and stays stable across runs.
// Entries are never mutated once written.
type TimeEntry struct {
	ID         string     `json:"id"`
	At         string     `json:"at"`
	Hours      float64    `json:"hours"`
	Raw        RawLine    `json:"raw"`
	Normalized Normalized `json:"normalized"`
	Source     Source     `json:"source"`
}
