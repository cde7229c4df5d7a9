package generate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	truncateSuffix = "..."

	// maxMarkerTotal is the largest N accepted in an "i/N" marker
	maxMarkerTotal = 10
)

var (
	// "1/7", "1/", "1.", "1)", "Tweet 1:" or "Post 1:" followed by a space
	numberingRe = regexp.MustCompile(`(?i)^(?:(\d{1,2})\s*/\s*(\d{1,2})?|\d{1,2}[.)]|(?:tweet|post)\s+\d+)(?:\s*:)?(?:\s+|$)`)
)

// markerLen returns the length of the numbering marker line starts with, or
// 0. Figures such as "50/50" or "2026/27" are not markers.
func markerLen(line string) int {
	m := numberingRe.FindStringSubmatchIndex(line)
	if m == nil {
		return 0
	}
	if m[2] >= 0 && m[4] >= 0 {
		i, _ := strconv.Atoi(line[m[2]:m[3]])
		n, _ := strconv.Atoi(line[m[4]:m[5]])
		if i < 1 || n < i || n > maxMarkerTotal {
			return 0
		}
	}
	return m[1]
}

// SplitSegments breaks a thread into posts. Blank lines and lines that start
// with a numbering marker both begin a new post.
func SplitSegments(text string) []string {
	var segments []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			segments = append(segments, strings.Join(current, " "))
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case markerLen(line) > 0:
			flush()
			current = append(current, line)
		default:
			current = append(current, line)
		}
	}
	flush()
	return segments
}

// FormatThread renumbers every post "i/N" and truncates posts longer than
// maxChars runes to maxChars-3 runes plus "...".
func FormatThread(text string, maxChars int) string {
	segments := SplitSegments(text)
	total := len(segments)

	out := make([]string, 0, total)
	for i, seg := range segments {
		seg = strings.TrimSpace(seg[markerLen(seg):])
		seg = fmt.Sprintf("%d/%d %s", i+1, total, seg)
		if maxChars > len(truncateSuffix) && utf8.RuneCountInString(seg) > maxChars {
			runes := []rune(seg)
			seg = strings.TrimRight(string(runes[:maxChars-len(truncateSuffix)]), " ") + truncateSuffix
		}
		out = append(out, seg)
	}
	return strings.Join(out, "\n\n")
}
