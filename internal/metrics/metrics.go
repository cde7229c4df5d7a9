// Package metrics exposes pipeline and text-service counters to Prometheus.
// Every method is safe on a nil *Metrics, which records nothing.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ppiankov/factline/internal/llm"
	"github.com/ppiankov/factline/internal/model"
)

const namespace = "factline"

// Outcome labels of a pipeline run
const (
	OutcomeVerified     = "verified"
	OutcomeManualReview = "manual_review"
	OutcomeError        = "error"
)

// Metrics holds the collectors of one registry
type Metrics struct {
	llmCalls    *prometheus.CounterVec
	llmDuration *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec

	runs       *prometheus.CounterVec
	iterations prometheus.Histogram
	confidence prometheus.Histogram
	issues     *prometheus.CounterVec
	factCache  *prometheus.CounterVec
	factsFound prometheus.Histogram
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		llmCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Text-service calls by stage and outcome",
		}, []string{"stage", "status"}),
		llmDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Text-service call latency in seconds, retries included",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 180},
		}, []string{"stage"}),
		llmTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens reported by the text service",
		}, []string{"stage"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by format and outcome",
		}, []string{"format", "outcome"}),
		iterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "repair_iterations",
			Help:      "Repair iterations per run",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
		confidence: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "confidence_score",
			Help:      "Confidence score of finished runs",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		issues: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verify",
			Name:      "issues_total",
			Help:      "Issues in final verification results by severity and check",
		}, []string{"severity", "check"}),
		factCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "cache_lookups_total",
			Help:      "Fact set cache lookups by result",
		}, []string{"result"}),
		factsFound: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "facts",
			Help:      "Facts kept per extraction",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 40},
		}),
	}
}

// Observer returns an llm.Observer feeding the text-service collectors
func (m *Metrics) Observer() llm.Observer {
	if m == nil {
		return nil
	}
	return func(stage string, elapsed time.Duration, resp *llm.Response, err error) {
		m.llmCalls.WithLabelValues(stage, callStatus(err)).Inc()
		m.llmDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
		if resp != nil && resp.TokensUsed > 0 {
			m.llmTokens.WithLabelValues(stage).Add(float64(resp.TokensUsed))
		}
	}
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, llm.ErrServiceUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// ObserveRun records a finished pipeline run
func (m *Metrics) ObserveRun(result *model.PipelineResult) {
	if m == nil || result == nil {
		return
	}
	outcome := OutcomeVerified
	if !result.Verification.Verified {
		outcome = OutcomeManualReview
	}
	m.runs.WithLabelValues(string(result.Draft.Format), outcome).Inc()
	m.iterations.Observe(float64(result.Iterations))
	m.confidence.Observe(float64(result.ConfidenceScore))
	for _, is := range result.Verification.Issues {
		m.issues.WithLabelValues(string(is.Severity), string(is.Check)).Inc()
	}
}

// RunFailed records a run that ended in an error
func (m *Metrics) RunFailed(format model.FormatKind) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(format), OutcomeError).Inc()
}

// CacheLookup records a fact set cache hit or miss
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.factCache.WithLabelValues(result).Inc()
}

// FactsExtracted records the size of a fresh fact set
func (m *Metrics) FactsExtracted(set model.FactSet) {
	if m == nil {
		return
	}
	m.factsFound.Observe(float64(set.Len()))
}
