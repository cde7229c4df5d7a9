package claims

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Date is a calendar reference found in text. Zero fields are unspecified.
type Date struct {
	Raw        string
	Start, End int

	Year    int
	Quarter int
	Month   int
	Day     int
}

// Key is a canonical identity such as "2026-01-15", "2026-01", "--01-15", "2026-Q1" or "2026"
func (d Date) Key() string {
	var b strings.Builder
	if d.Year != 0 {
		b.WriteString(strconv.Itoa(d.Year))
	} else {
		b.WriteString("-")
	}
	switch {
	case d.Month != 0:
		fmt.Fprintf(&b, "-%02d", d.Month)
		if d.Day != 0 {
			fmt.Fprintf(&b, "-%02d", d.Day)
		}
	case d.Quarter != 0:
		fmt.Fprintf(&b, "-Q%d", d.Quarter)
	}
	return b.String()
}

// quarter derives the quarter from the month when not stated
func (d Date) quarter() int {
	if d.Quarter != 0 {
		return d.Quarter
	}
	if d.Month != 0 {
		return (d.Month-1)/3 + 1
	}
	return 0
}

// Within reports whether every field d states is stated identically by o,
// i.e. d is the same or a coarser reference to the date o names.
func (d Date) Within(o Date) bool {
	if d.Year != 0 && d.Year != o.Year {
		return false
	}
	if d.Month != 0 && d.Month != o.Month {
		return false
	}
	if d.Day != 0 && d.Day != o.Day {
		return false
	}
	if d.Quarter != 0 && d.Quarter != o.quarter() {
		return false
	}
	return true
}

var months = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "jun": 6, "jul": 7,
	"aug": 8, "sep": 9, "sept": 9, "oct": 10, "nov": 11, "dec": 12,
}

// MonthName reports whether w is a month name or abbreviation
func MonthName(w string) bool {
	_, ok := months[strings.ToLower(strings.TrimSuffix(w, "."))]
	return ok
}

const monthPattern = `(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec)\.?`

var quarterWords = map[string]int{"first": 1, "second": 2, "third": 3, "fourth": 4}

type datePattern struct {
	re    *regexp.Regexp
	build func(groups []string) Date
}

// Patterns run most specific first; later ones never claim text an earlier one took.
var datePatterns = []datePattern{
	{
		re: regexp.MustCompile(`\b` + monthPattern + `\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`),
		build: func(g []string) Date {
			return Date{Month: months[strings.ToLower(g[1])], Day: atoi(g[2]), Year: atoi(g[3])}
		},
	},
	{
		re: regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+` + monthPattern + `,?\s+(\d{4})\b`),
		build: func(g []string) Date {
			return Date{Day: atoi(g[1]), Month: months[strings.ToLower(g[2])], Year: atoi(g[3])}
		},
	},
	{
		re: regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`),
		build: func(g []string) Date {
			return Date{Year: atoi(g[1]), Month: atoi(g[2]), Day: atoi(g[3])}
		},
	},
	{
		re: regexp.MustCompile(`\b` + monthPattern + `,?\s+(?:of\s+)?(\d{4})\b`),
		build: func(g []string) Date {
			return Date{Month: months[strings.ToLower(g[1])], Year: atoi(g[2])}
		},
	},
	{
		re: regexp.MustCompile(`\b` + monthPattern + `\s+(\d{1,2})(?:st|nd|rd|th)?\b`),
		build: func(g []string) Date {
			return Date{Month: months[strings.ToLower(g[1])], Day: atoi(g[2])}
		},
	},
	{
		re: regexp.MustCompile(`\bQ([1-4])(?:\s+(?:of\s+)?'?(\d{4}))?\b`),
		build: func(g []string) Date {
			return Date{Quarter: atoi(g[1]), Year: atoi(g[2])}
		},
	},
	{
		re: regexp.MustCompile(`(?i)\b(first|second|third|fourth)\s+quarter(?:\s+(?:of\s+)?(\d{4}))?\b`),
		build: func(g []string) Date {
			return Date{Quarter: quarterWords[strings.ToLower(g[1])], Year: atoi(g[2])}
		},
	},
	{
		re: regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`),
		build: func(g []string) Date {
			return Date{Year: atoi(g[1])}
		},
	},
}

// Dates returns the calendar references in text in order of appearance
func Dates(text string) []Date {
	taken := make([]bool, len(text))
	var out []Date

	for _, p := range datePatterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			if overlaps(taken, loc[0], loc[1]) {
				continue
			}
			groups := make([]string, len(loc)/2)
			for i := range groups {
				if loc[2*i] >= 0 {
					groups[i] = text[loc[2*i]:loc[2*i+1]]
				}
			}
			d := p.build(groups)
			if d.Month > 12 || d.Day > 31 {
				continue
			}
			d.Raw, d.Start, d.End = text[loc[0]:loc[1]], loc[0], loc[1]
			for i := loc[0]; i < loc[1]; i++ {
				taken[i] = true
			}
			out = append(out, d)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func overlaps(taken []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if taken[i] {
			return true
		}
	}
	return false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
