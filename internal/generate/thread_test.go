package generate

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSegments(t *testing.T) {
	text := "1. Hook line\ncontinues here\n2) Second\nTweet 3: Third\n\nFourth without number\n3.5 GW is not a marker"
	got := SplitSegments(text)
	assert.Equal(t, []string{
		"1. Hook line continues here",
		"2) Second",
		"Tweet 3: Third",
		"Fourth without number 3.5 GW is not a marker",
	}, got)
}

func TestFormatThread_Renumbers(t *testing.T) {
	got := FormatThread("1/9 First\n\n5/9: Second\n\nThird", 280)
	assert.Equal(t, "1/3 First\n\n2/3 Second\n\n3/3 Third", got)
}

func TestFormatThread_Truncates(t *testing.T) {
	long := strings.Repeat("word ", 80)
	got := FormatThread(long+"\n\nshort", 280)

	segments := strings.Split(got, "\n\n")
	require.Len(t, segments, 2)
	assert.LessOrEqual(t, utf8.RuneCountInString(segments[0]), 280)
	assert.True(t, strings.HasSuffix(segments[0], "..."))
	assert.True(t, strings.HasPrefix(segments[0], "1/2 word"))
	assert.Equal(t, "2/2 short", segments[1])
}

func TestFormatThread_ExactLimitKept(t *testing.T) {
	body := strings.Repeat("a", 276) // "1/1 " + 276 = 280
	got := FormatThread(body, 280)
	assert.Equal(t, "1/1 "+body, got)
}

func TestFormatThread_KeepsLeadingFigures(t *testing.T) {
	got := FormatThread("1/3 Big news today.\n\n2026/27 budgets will shift toward solar.\n\n50/50 splits are rare.", 280)
	assert.Equal(t, "1/3 Big news today.\n\n2/3 2026/27 budgets will shift toward solar.\n\n3/3 50/50 splits are rare.", got)
}

func TestSplitSegments_FiguresDoNotStartPosts(t *testing.T) {
	got := SplitSegments("1/2 Budgets for\n2026/27 will shift.\n2/2 Capacity rose\n3/4 of the way to 12/12 goals")
	assert.Equal(t, []string{
		"1/2 Budgets for 2026/27 will shift.",
		"2/2 Capacity rose",
		"3/4 of the way to 12/12 goals",
	}, got)
}

func TestMarkerLen(t *testing.T) {
	cases := map[string]int{
		"1/7 text":     4,
		"1/ text":      3,
		"5/9: text":    5,
		"2) text":      3,
		"10. text":     4,
		"Tweet 3: hi":  9,
		"post 2 hi":    7,
		"50/50 text":   0,
		"2026/27 text": 0,
		"3/2 text":     0,
		"1/12 text":    0,
		"0/5 text":     0,
		"3.5 GW":       0,
		"no marker":    0,
	}
	for line, want := range cases {
		assert.Equal(t, want, markerLen(line), "line %q", line)
	}
}
