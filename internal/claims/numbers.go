package claims

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Number is a quantity found in text, normalized for comparison
type Number struct {
	// Raw is the matched text, e.g. "$450 million"
	Raw string

	// Amount is the figure as written, e.g. 450
	Amount float64

	// Value is Amount with scale words and unit prefixes applied, e.g. 4.5e8
	Value float64

	// Unit is the canonical unit: "%", "w", "wh" or empty
	Unit string

	Currency bool
	Decimal  bool
	Scaled   bool
}

// Key is a canonical identity; currency symbols do not take part
func (n Number) Key() string {
	return strconv.FormatFloat(n.Value, 'g', -1, 64) + n.Unit
}

// Material reports whether the number is the kind of figure that carries a claim
func (n Number) Material() bool {
	return n.Unit != "" || n.Currency || n.Decimal || n.Scaled || n.Amount >= 100
}

// Matches reports whether two mentions state the same figure. A bare figure
// such as "500" also matches "500 MW" in either direction.
func (n Number) Matches(o Number) bool {
	if n.Unit == o.Unit && approxEqual(n.Value, o.Value) {
		return true
	}
	bare := func(x Number) bool { return x.Unit == "" && !x.Scaled }
	if (bare(n) || bare(o)) && approxEqual(n.Amount, o.Amount) {
		return true
	}
	return false
}

func approxEqual(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}

var numberRe = regexp.MustCompile(`(?i)(\$|€|£|\busd ?)?(\d{1,3}(?:,\d{3})+|\d+)(\.\d+)?(?:\s?(%|percent\b|per cent\b|(?:giga|mega|kilo)watt-?hours?\b|(?:giga|mega|kilo)watts?\b|trillion\b|billion\b|million\b|thousand\b|bn\b|tn\b|mn\b|gwh\b|mwh\b|kwh\b|gw\b|mw\b|kw\b)|([mbk])\b)?`)

// threadMarkerRe matches segment numbering such as "3/7"
var threadMarkerRe = regexp.MustCompile(`\b\d{1,2}/\d{1,2}\b`)

type scaleUnit struct {
	factor float64
	unit   string
	scaled bool
}

var suffixes = map[string]scaleUnit{
	"%":        {1, "%", false},
	"percent":  {1, "%", false},
	"per cent": {1, "%", false},
	"trillion": {1e12, "", true},
	"tn":       {1e12, "", true},
	"billion":  {1e9, "", true},
	"bn":       {1e9, "", true},
	"b":        {1e9, "", true},
	"million":  {1e6, "", true},
	"mn":       {1e6, "", true},
	"m":        {1e6, "", true},
	"thousand": {1e3, "", true},
	"k":        {1e3, "", true},
	"gw":       {1e9, "w", false},
	"mw":       {1e6, "w", false},
	"kw":       {1e3, "w", false},
	"gwh":      {1e9, "wh", false},
	"mwh":      {1e6, "wh", false},
	"kwh":      {1e3, "wh", false},
}

// Numbers returns the numbers mentioned in text. Dates and thread
// numbering are masked first so years and "2/7" markers are not figures.
func Numbers(text string) []Number {
	masked := []byte(text)
	for _, d := range Dates(text) {
		blank(masked, d.Start, d.End)
	}
	for _, loc := range threadMarkerRe.FindAllStringIndex(text, -1) {
		blank(masked, loc[0], loc[1])
	}
	scan := string(masked)

	var out []Number
	for _, m := range numberRe.FindAllStringSubmatchIndex(scan, -1) {
		digitsStart := m[4]
		if digitsStart > 0 {
			// Skip identifiers such as "Q3", "F12" or "COVID-19"
			prev, _ := utf8.DecodeLastRuneInString(scan[:digitsStart])
			if m[2] < 0 && (unicode.IsLetter(prev) || unicode.IsDigit(prev) || prev == '_' || hyphenated(scan[:digitsStart])) {
				continue
			}
		}
		end := m[1]
		if end < len(scan) && m[8] < 0 && m[10] < 0 {
			// Ordinals and codes such as "3rd" or "4x4"
			next, _ := utf8.DecodeRuneInString(scan[end:])
			if unicode.IsLetter(next) {
				continue
			}
		}

		n := Number{Raw: strings.TrimSpace(text[m[0]:m[1]])}
		n.Currency = m[2] >= 0
		digits := strings.ReplaceAll(scan[m[4]:m[5]], ",", "")
		if m[6] >= 0 {
			digits += scan[m[6]:m[7]]
			n.Decimal = true
		}
		amount, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			continue
		}
		n.Amount = amount
		n.Value = amount

		suffix := ""
		switch {
		case m[8] >= 0:
			suffix = strings.ToLower(scan[m[8]:m[9]])
		case m[10] >= 0:
			suffix = strings.ToLower(scan[m[10]:m[11]])
			// A bare trailing letter is a scale only on money: "$450M", "20k"
			if !n.Currency && suffix != "k" {
				suffix = ""
			}
		}
		if s, ok := suffixes[canonicalSuffix(suffix)]; ok {
			n.Value = amount * s.factor
			n.Unit = s.unit
			n.Scaled = s.scaled
		}
		out = append(out, n)
	}
	return out
}

// hyphenated reports whether the text before a figure ends in "letter-"
func hyphenated(before string) bool {
	if !strings.HasSuffix(before, "-") {
		return false
	}
	prev, _ := utf8.DecodeLastRuneInString(strings.TrimSuffix(before, "-"))
	return unicode.IsLetter(prev)
}

// canonicalSuffix folds spelled-out units onto their symbols
func canonicalSuffix(s string) string {
	s = strings.ReplaceAll(s, "-", "")
	prefix := map[string]string{"giga": "g", "mega": "m", "kilo": "k"}
	for word, sym := range prefix {
		if !strings.HasPrefix(s, word+"watt") {
			continue
		}
		if strings.Contains(s, "hour") {
			return sym + "wh"
		}
		return sym + "w"
	}
	return s
}

func blank(b []byte, start, end int) {
	for i := start; i < end && i < len(b); i++ {
		b[i] = ' '
	}
}
