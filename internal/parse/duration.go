package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var durationPattern = regexp.MustCompile(`(?i)^([0-9]*\.?[0-9]+)(hours?|hr|h|minutes?|mins?|m)$`)

// ParseDuration converts a duration token like "2h", "90m" or "1.5hours"
// to fractional hours. The second return is false for any token that
// does not match the grammar or does not yield a finite value.
func ParseDuration(token string) (float64, bool) {
	m := durationPattern.FindStringSubmatch(token)
	if m == nil {
		return 0, false
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil || math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, false
	}

	if strings.HasPrefix(strings.ToLower(m[2]), "m") {
		value /= 60
	}
	return value, true
}
