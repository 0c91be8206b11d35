package parse

import (
	"regexp"
	"time"
)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ResolveDate converts a date token into a YYYY-MM-DD calendar date.
// "today" and "yesterday" are resolved against the commit timestamp
// projected into loc. An explicit token is accepted on shape alone;
// day-of-month bounds are deliberately not checked so stored dates stay
// byte-identical to what the author wrote.
func ResolveDate(token string, at time.Time, loc *time.Location) (string, bool) {
	switch token {
	case "today":
		return at.In(loc).Format("2006-01-02"), true
	case "yesterday":
		return at.In(loc).AddDate(0, 0, -1).Format("2006-01-02"), true
	}
	if isoDatePattern.MatchString(token) {
		return token, true
	}
	return "", false
}
