package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/factline/internal/llm"
	"github.com/ppiankov/factline/internal/model"
)

func TestObserver(t *testing.T) {
	m := New(prometheus.NewRegistry())
	observe := m.Observer()
	require.NotNil(t, observe)

	observe("generation", time.Second, &llm.Response{Text: "ok", TokensUsed: 120}, nil)
	observe("generation", time.Second, nil, &llm.UnavailableError{Stage: "generation", Attempts: 3, Err: errors.New("503")})
	observe("verification", time.Second, nil, errors.New("bad request"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("generation", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("generation", "unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("verification", "error")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.llmTokens.WithLabelValues("generation")))
}

func TestObserveRun(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRun(&model.PipelineResult{
		Draft:           model.ContentDraft{Format: model.FormatShortPost},
		Verification:    model.NewVerificationResult(nil),
		ConfidenceScore: 100,
	})
	m.ObserveRun(&model.PipelineResult{
		Draft: model.ContentDraft{Format: model.FormatShortPost},
		Verification: model.NewVerificationResult([]model.Issue{
			{Severity: model.SeverityCritical, Check: model.CheckNumeric},
			{Severity: model.SeverityWarning, Check: model.CheckEntity},
		}),
		Iterations:        3,
		NeedsManualReview: true,
	})
	m.RunFailed(model.FormatLongForm)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("shortPost", OutcomeVerified)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("shortPost", OutcomeManualReview)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("longForm", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.issues.WithLabelValues("critical", "numeric")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.issues.WithLabelValues("warning", "entity")))
}

func TestCacheLookup(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.CacheLookup(false)
	m.CacheLookup(true)
	m.CacheLookup(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.factCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.factCache.WithLabelValues("miss")))
}

func TestRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.CacheLookup(true)
	m.FactsExtracted(model.FactSet{Facts: []model.Fact{{ID: "F1"}}})

	count, err := testutil.GatherAndCount(reg, "factline_extract_cache_lookups_total", "factline_extract_facts")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// A second set of collectors needs its own registry
	assert.Panics(t, func() { New(reg) })
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.Nil(t, m.Observer())
	assert.NotPanics(t, func() {
		m.ObserveRun(&model.PipelineResult{})
		m.RunFailed(model.FormatShortPost)
		m.CacheLookup(true)
		m.FactsExtracted(model.FactSet{})
	})
}
