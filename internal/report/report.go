// Package report aggregates stored time entries into per-category
// summaries for a date range.
package report

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/punchlabs/punchlog/internal/store"
	"github.com/punchlabs/punchlog/internal/tags"
)

var (
	monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Period is an inclusive date range. Dates are YYYY-MM-DD strings;
// lexical order is chronological order, so range checks are string
// comparisons. An empty bound is open.
type Period struct {
	From string
	To   string
}

// MonthPeriod builds the period covering one calendar month given as
// YYYY-MM.
func MonthPeriod(month string) (Period, error) {
	if !monthPattern.MatchString(month) {
		return Period{}, fmt.Errorf("invalid month %q, want YYYY-MM", month)
	}
	return Period{From: month + "-01", To: month + "-31"}, nil
}

// RangePeriod builds a period from explicit bounds, either of which may
// be empty.
func RangePeriod(from, to string) (Period, error) {
	if from != "" && !datePattern.MatchString(from) {
		return Period{}, fmt.Errorf("invalid from date %q, want YYYY-MM-DD", from)
	}
	if to != "" && !datePattern.MatchString(to) {
		return Period{}, fmt.Errorf("invalid to date %q, want YYYY-MM-DD", to)
	}
	if from != "" && to != "" && from > to {
		return Period{}, fmt.Errorf("from date %s is after to date %s", from, to)
	}
	return Period{From: from, To: to}, nil
}

func (p Period) contains(date string) bool {
	if p.From != "" && date < p.From {
		return false
	}
	if p.To != "" && date > p.To {
		return false
	}
	return true
}

// CategoryTotal is the aggregate for one primary category.
type CategoryTotal struct {
	Category string
	Hours    float64
	Entries  int
}

// Report is the aggregate over a period: per-category totals sorted by
// hours descending, ties broken by name.
type Report struct {
	Period     Period
	Days       int
	Totals     []CategoryTotal
	TotalHours float64
}

// Build scans the day store for dates inside the period and sums hours
// by normalized primary category. Entries that never resolved to a
// canonical category land in the uncategorized bucket.
func Build(days *store.DayStore, period Period) (*Report, error) {
	dates, err := days.Dates()
	if err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}

	rep := &Report{Period: period}
	byCategory := make(map[string]*CategoryTotal)

	for _, date := range dates {
		if !period.contains(date) {
			continue
		}
		day, err := days.Load(date)
		if err != nil {
			return nil, fmt.Errorf("load day %s: %w", date, err)
		}
		if len(day.Entries) == 0 {
			continue
		}
		rep.Days++
		for _, e := range day.Entries {
			key := e.Normalized.Primary
			if key == "" {
				key = tags.Uncategorized
			}
			t, ok := byCategory[key]
			if !ok {
				t = &CategoryTotal{Category: key}
				byCategory[key] = t
			}
			t.Hours += e.Hours
			t.Entries++
			rep.TotalHours += e.Hours
		}
	}

	for _, t := range byCategory {
		rep.Totals = append(rep.Totals, *t)
	}
	sort.Slice(rep.Totals, func(i, j int) bool {
		if rep.Totals[i].Hours != rep.Totals[j].Hours {
			return rep.Totals[i].Hours > rep.Totals[j].Hours
		}
		return rep.Totals[i].Category < rep.Totals[j].Category
	})
	return rep, nil
}

// Render writes the report as a colorized table.
func (r *Report) Render(w io.Writer) {
	bold := color.New(color.Bold)
	dim := color.New(color.Faint)
	warn := color.New(color.FgYellow)

	label := "all time"
	switch {
	case r.Period.From != "" && r.Period.To != "":
		label = r.Period.From + " .. " + r.Period.To
	case r.Period.From != "":
		label = "since " + r.Period.From
	case r.Period.To != "":
		label = "until " + r.Period.To
	}
	bold.Fprintf(w, "Time report (%s)\n", label)

	if len(r.Totals) == 0 {
		dim.Fprintln(w, "no entries in this period")
		return
	}

	width := 0
	for _, t := range r.Totals {
		if len(t.Category) > width {
			width = len(t.Category)
		}
	}
	for _, t := range r.Totals {
		line := fmt.Sprintf("  %-*s  %7.2fh  (%d %s)\n",
			width, t.Category, t.Hours, t.Entries, plural(t.Entries, "entry", "entries"))
		if t.Category == tags.Uncategorized {
			warn.Fprint(w, line)
		} else {
			fmt.Fprint(w, line)
		}
	}

	fmt.Fprintf(w, "  %s\n", strings.Repeat("-", width+11))
	bold.Fprintf(w, "  %-*s  %7.2fh  across %d %s\n",
		width, "total", r.TotalHours, r.Days, plural(r.Days, "day", "days"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
