package claims

import (
	"regexp"
	"strings"
)

var quoteRe = regexp.MustCompile(`"([^"\n]+)"|“([^”\n]+)”`)

// Quotations returns the text inside double quotes
func Quotations(text string) []string {
	var out []string
	for _, m := range quoteRe.FindAllStringSubmatch(text, -1) {
		q := m[1]
		if q == "" {
			q = m[2]
		}
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// AttributionPhrases are vague sourcing phrases that stand in for a real citation
var AttributionPhrases = []string{
	"according to",
	"reports indicate",
	"reportedly",
	"sources say",
	"it is reported",
	"as reported by",
	"reports suggest",
}

var attributionRe = regexp.MustCompile(`(?i)\b(` + strings.Join(AttributionPhrases, "|") + `)\b`)

// Attributions returns each vague attribution phrase in text, as written
func Attributions(text string) []string {
	return attributionRe.FindAllString(text, -1)
}

// Set is every checkable token of a text
type Set struct {
	Numbers  []Number
	Dates    []Date
	Entities []Entity
}

// Analyze collects numbers, dates and entities from text
func Analyze(text string) Set {
	return Set{
		Numbers:  Numbers(text),
		Dates:    Dates(text),
		Entities: Entities(text),
	}
}

// HasNumber reports whether any number in the set states the same figure as n
func (s Set) HasNumber(n Number) bool {
	for _, x := range s.Numbers {
		if n.Matches(x) {
			return true
		}
	}
	return false
}

// HasDate reports whether d refers to a date the set names
func (s Set) HasDate(d Date) bool {
	for _, x := range s.Dates {
		if d.Within(x) {
			return true
		}
	}
	return false
}

// HasEntity reports whether the set names e. A shorter or longer form of the
// same name counts ("Longroad Energy" and "Longroad Energy Holdings").
func (s Set) HasEntity(e Entity) bool {
	for _, x := range s.Entities {
		if x.Norm == e.Norm ||
			strings.Contains(" "+x.Norm+" ", " "+e.Norm+" ") ||
			strings.Contains(" "+e.Norm+" ", " "+x.Norm+" ") {
			return true
		}
	}
	return false
}
