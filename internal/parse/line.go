// Package parse extracts structured time records from raw commit
// message lines.
package parse

import (
	"errors"
	"strings"
)

// marker opens a time line, case-insensitive, after optional leading
// whitespace.
const marker = "time:"

// ErrLineShape is reported for a time line with fewer than the two
// mandatory tokens (date and duration).
var ErrLineShape = errors.New("missing date or duration")

// Line is one parsed time line. Tokens are kept verbatim so the stored
// record can be audited or reprocessed later.
type Line struct {
	DateToken     string
	DurationToken string
	Tags          []string
	TagMeta       map[string][]string
	Note          string
}

// ParseLine parses one raw line. It returns (nil, nil) when the line is
// not a time line at all, and (nil, ErrLineShape) when the line carries
// the marker but fewer than two tokens. Callers count both outcomes
// that carry the marker when assigning entry identities.
func ParseLine(raw string) (*Line, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) < len(marker) || !strings.EqualFold(trimmed[:len(marker)], marker) {
		return nil, nil
	}

	tokens := strings.Fields(trimmed[len(marker):])
	if len(tokens) < 2 {
		return nil, ErrLineShape
	}

	line := &Line{
		DateToken:     strings.ToLower(tokens[0]),
		DurationToken: tokens[1],
		TagMeta:       make(map[string][]string),
	}

	// Scan remaining tokens left to right. A '#' token opens a tag;
	// non-'#' tokens attach to the open tag's metadata, or to the note
	// when no tag is open.
	current := ""
	var note []string
	for _, tok := range tokens[2:] {
		if strings.HasPrefix(tok, "#") {
			name, meta, _ := strings.Cut(tok[1:], ":")
			if name == "" {
				// A bare '#' closes the open tag without opening one.
				current = ""
				continue
			}
			line.Tags = append(line.Tags, name)
			current = name
			if meta != "" {
				line.TagMeta[name] = append(line.TagMeta[name], meta)
			}
			continue
		}
		if current != "" {
			line.TagMeta[current] = append(line.TagMeta[current], tok)
		} else {
			note = append(note, tok)
		}
	}
	line.Note = strings.Join(note, " ")

	return line, nil
}
