// Package claims finds checkable claim tokens in prose: numbers, dates,
// multi-word names, quotations and attribution phrases.
package claims

import (
	"strings"
	"unicode"
)

var replacer = strings.NewReplacer(
	"‘", "'", "’", "'", "“", `"`, "”", `"`,
	"–", "-", "—", "-", " ", " ",
)

// Normalize lower-cases s, turns every non-alphanumeric rune into a space and
// collapses whitespace. Two spans match when their normalized forms do.
func Normalize(s string) string {
	s = replacer.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			space = false
		case r == '\'':
			// apostrophes join: "company's" -> "companys"
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// ContainsNormalized reports whether needle occurs in haystack on word
// boundaries after normalization. An empty needle never matches.
func ContainsNormalized(haystack, needle string) bool {
	n := Normalize(needle)
	if n == "" {
		return false
	}
	return strings.Contains(" "+Normalize(haystack)+" ", " "+n+" ")
}

// Index pre-normalizes a text for repeated lookups
type Index struct {
	norm string
}

// NewIndex normalizes text once
func NewIndex(text string) *Index {
	return &Index{norm: " " + Normalize(text) + " "}
}

// Contains is ContainsNormalized against the indexed text
func (x *Index) Contains(needle string) bool {
	n := Normalize(needle)
	if n == "" {
		return false
	}
	return strings.Contains(x.norm, " "+n+" ")
}

var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true, "st": true,
	"inc": true, "corp": true, "co": true, "ltd": true, "jr": true, "sr": true,
	"vs": true, "u.s": true, "u.k": true, "e.g": true, "i.e": true, "no": true,
	"jan": true, "feb": true, "mar": true, "apr": true, "jun": true, "jul": true,
	"aug": true, "sep": true, "sept": true, "oct": true, "nov": true, "dec": true,
}

// SplitSentences splits text into sentences (simple heuristic). Blank lines
// always end a sentence; '.', '!' and '?' end one when followed by whitespace
// and not closing a known abbreviation.
func SplitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var sentences []string
	flush := func(s string) {
		s = strings.Join(strings.Fields(s), " ")
		if s != "" {
			sentences = append(sentences, s)
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		runes := []rune(para)
		begin := 0
		for i := 0; i < len(runes); i++ {
			r := runes[i]
			if r != '.' && r != '!' && r != '?' {
				continue
			}
			// Closing quotes and brackets stay with the sentence
			j := i + 1
			for j < len(runes) && strings.ContainsRune(`"')]”’`, runes[j]) {
				j++
			}
			if j < len(runes) && !unicode.IsSpace(runes[j]) {
				continue
			}
			if r == '.' && isAbbreviation(string(runes[begin:i+1])) {
				continue
			}
			flush(string(runes[begin:j]))
			begin = j
			i = j - 1
		}
		flush(string(runes[begin:]))
	}

	return sentences
}

func isAbbreviation(s string) bool {
	s = strings.TrimSuffix(s, ".")
	idx := strings.LastIndexFunc(s, unicode.IsSpace)
	word := strings.ToLower(strings.TrimLeft(s[idx+1:], `"'(`))
	if abbreviations[word] {
		return true
	}
	// Single initials such as "J." in "J. Smith"
	return len([]rune(word)) == 1 && unicode.IsLetter([]rune(word)[0])
}

// SentenceOf returns the index of the first sentence containing quote, or -1
func SentenceOf(sentences []string, quote string) int {
	for i, s := range sentences {
		if ContainsNormalized(s, quote) {
			return i
		}
	}
	return -1
}

// WordCount counts whitespace-separated words
func WordCount(s string) int {
	return len(strings.Fields(s))
}
