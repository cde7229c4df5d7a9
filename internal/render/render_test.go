package render

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/factline/internal/model"
)

func sampleResult() *model.PipelineResult {
	return &model.PipelineResult{
		RunID:    "6f1c1a52-8d7e-4a9b-9c55-0b1d2e3f4a5b",
		OriginID: "Longroad Solar / March 2025",
		Draft: model.ContentDraft{
			Text:      "Longroad Energy is building a 500 MW solar project.\n",
			Format:    model.FormatShortPost,
			Iteration: 1,
		},
		Verification: model.NewVerificationResult([]model.Issue{{
			ID: "L1", Severity: model.SeverityWarning, ClaimText: "Maricopa County",
			MatchedSourceText: "The site covers 3,000 acres in Maricopa County.",
			Explanation:       "name appears in the source but not in the facts", Check: model.CheckEntity,
		}}),
		ConfidenceScore: 85,
		Recommendation:  model.RecommendReview,
		Facts:           model.FactSet{Facts: []model.Fact{{ID: "F1"}, {ID: "F2"}}},
		Iterations:      1,
		States:          []model.State{model.StateExtracting, model.StateTerminal},
		CompletedAt:     time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "longroad-solar-march-2025", Slug("Longroad Solar / March 2025"))
	assert.Equal(t, "source", Slug("///"))
	long := Slug(strings.Repeat("word ", 20))
	assert.LessOrEqual(t, len(long), 50)
	assert.False(t, strings.HasSuffix(long, "-"))
}

func TestBaseName(t *testing.T) {
	res := sampleResult()
	assert.Equal(t, "longroad-solar-march-2025-post", BaseName(res))
	res.Draft.Format = model.FormatMicroThread
	assert.Equal(t, "longroad-solar-march-2025-thread", BaseName(res))
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sampleResult()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(85), decoded["confidence_score"])
	assert.Equal(t, "review", decoded["recommendation"])
	assert.Contains(t, decoded, "verification")
	assert.Contains(t, decoded, "facts")
}

func TestMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Markdown(&buf, sampleResult()))
	out := buf.String()

	require.True(t, strings.HasPrefix(out, "---\n"))
	parts := strings.SplitN(out[4:], "\n---\n\n", 2)
	require.Len(t, parts, 2)

	var fm map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(parts[0]), &fm))
	assert.Equal(t, "Longroad Solar / March 2025", fm["origin_id"])
	assert.Equal(t, "shortPost", fm["format"])
	assert.Equal(t, true, fm["verified"])
	assert.Equal(t, 85, fm["confidence_score"])
	assert.Equal(t, "2026-02-01T12:00:00Z", fm["completed_at"])
	assert.Len(t, fm["issues"], 1)
	assert.NotContains(t, fm, "unfixable")

	assert.Equal(t, "Longroad Energy is building a 500 MW solar project.\n", parts[1])
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := Write(dir, sampleResult())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "longroad-solar-march-2025-post.json"), paths.JSON)
	assert.Equal(t, filepath.Join(dir, "longroad-solar-march-2025-post.md"), paths.Markdown)

	for _, p := range []string{paths.JSON, paths.Markdown} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestSummary(t *testing.T) {
	res := sampleResult()
	res.Verification.Issues = append(res.Verification.Issues, model.Issue{ID: "L2", Severity: model.SeverityInfo, ClaimText: "9 words"})

	var buf bytes.Buffer
	Summary(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "verified after 1 repair(s)")
	assert.Contains(t, out, "confidence: 85/100 (review)")
	assert.Contains(t, out, "0 critical, 1 warning, 1 info")
	assert.Contains(t, out, `[L1] warning: "Maricopa County"`)
	assert.NotContains(t, out, "9 words")
	assert.NotContains(t, out, "manual review")
}
