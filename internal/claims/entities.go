package claims

import (
	"regexp"
	"strings"
	"unicode"
)

// Entity is a multi-word capitalized name
type Entity struct {
	Text string
	Norm string
}

var leadingStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true, "at": true, "by": true,
	"this": true, "that": true, "these": true, "those": true, "our": true, "we": true,
	"it": true, "its": true, "but": true, "and": true, "or": true, "so": true, "as": true,
	"if": true, "when": true, "while": true, "with": true, "for": true, "from": true,
	"meanwhile": true, "however": true, "according": true, "after": true, "before": true,
	"today": true, "now": true, "here": true, "why": true, "how": true, "what": true,
	"yet": true, "also": true, "then": true, "every": true, "each": true, "all": true,
	"i": true, "you": true, "they": true, "their": true, "your": true, "my": true,
}

// Words that never belong to a name even when capitalized
var breakers = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true, "i": true,
}

var connectors = map[string]bool{"of": true, "de": true, "du": true, "van": true, "von": true, "&": true, "the": true}

var headingRe = regexp.MustCompile(`^\s{0,3}#{1,6}\s`)

// Entities returns the multi-word capitalized names in text, skipping
// markdown heading lines whose Title Case would read as names.
func Entities(text string) []Entity {
	var out []Entity
	seen := map[string]bool{}

	for _, line := range strings.Split(text, "\n") {
		if headingRe.MatchString(line) {
			continue
		}
		for _, run := range capitalizedRuns(line) {
			norm := Normalize(run)
			if norm == "" || seen[norm] {
				continue
			}
			seen[norm] = true
			out = append(out, Entity{Text: run, Norm: norm})
		}
	}
	return out
}

func capitalizedRuns(line string) []string {
	var runs []string
	var current []string

	emit := func() {
		// Connectors cannot end a name
		for len(current) > 0 && connectors[strings.ToLower(current[len(current)-1])] {
			current = current[:len(current)-1]
		}
		// Sentence-initial words are capitalized by position only
		for len(current) > 0 && leadingStopwords[strings.ToLower(current[0])] {
			current = current[1:]
		}
		if countCapitalized(current) >= 2 {
			runs = append(runs, strings.Join(current, " "))
		}
		current = nil
	}

	for _, field := range strings.Fields(line) {
		word := strings.TrimLeft(field, `"'“‘([*_`)
		if word != field {
			// An opening quote or bracket starts a new run
			emit()
		}
		core := strings.TrimRight(word, `"'”’)]*_,.;:!?`)
		closing := core != word

		// Possessive: "Longroad's" is part of the name "Longroad"
		core = strings.TrimSuffix(strings.TrimSuffix(core, "'s"), "’s")

		switch {
		case core == "":
			emit()
		case isCapitalized(core) && !breakers[strings.ToLower(core)] && !MonthName(core):
			current = append(current, core)
		case len(current) > 0 && connectors[strings.ToLower(core)]:
			current = append(current, core)
		default:
			emit()
		}
		if closing {
			emit()
		}
	}
	emit()
	return runs
}

func isCapitalized(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}

func countCapitalized(words []string) int {
	n := 0
	for _, w := range words {
		if isCapitalized(w) {
			n++
		}
	}
	return n
}
