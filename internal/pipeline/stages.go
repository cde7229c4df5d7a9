package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ppiankov/factline/internal/cache"
	"github.com/ppiankov/factline/internal/llm"
	"github.com/ppiankov/factline/internal/metrics"
	"github.com/ppiankov/factline/internal/model"
)

// Stage names used in logs, metrics and UnavailableError
const (
	StageExtraction   = "extraction"
	StageGeneration   = "generation"
	StageVerification = "verification"
)

// Stages holds one provider per stage, each carrying its own call policy
type Stages struct {
	Extraction   llm.Provider
	Generation   llm.Provider
	Verification llm.Provider // nil when verification is local only
}

// NewStages wraps base once per stage. The chains share one in-flight cap
// and one rate limit so the service sees a single client.
func NewStages(base llm.Provider, cfg *model.Config, logger *slog.Logger, m *metrics.Metrics) Stages {
	inflight := llm.NewInFlight(cfg.LLM.MaxInFlight)
	limit := llm.RateLimit(cfg.LLM.RequestsPerSecond, cfg.LLM.Burst)

	chain := func(stage string, sc model.StageConfig) llm.Provider {
		return llm.Wrap(base,
			llm.WithLogging(logger, stage),
			llm.Observe(stage, m.Observer()),
			llm.Retry(stage, sc.Attempts, sc.BackoffDuration()),
			llm.Timeout(sc.TimeoutDuration()),
			inflight.Middleware(),
			limit,
		)
	}

	stages := Stages{
		Extraction: chain(StageExtraction, cfg.Stages.Extraction),
		Generation: chain(StageGeneration, cfg.Stages.Generation),
	}
	if !cfg.Verify.LocalOnly {
		stages.Verification = chain(StageVerification, cfg.Stages.Verification)
	}
	return stages
}

// NewFromConfig builds the configured provider, cache and pipeline
func NewFromConfig(ctx context.Context, cfg *model.Config, logger *slog.Logger, m *metrics.Metrics) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// The per-stage Timeout middleware bounds each attempt; the HTTP client
	// timeout only needs to cover the longest stage.
	longest := max(cfg.Stages.Extraction.Timeout, cfg.Stages.Generation.Timeout, cfg.Stages.Verification.Timeout)
	base, err := llm.NewProvider(ctx, llm.ConfigFromModel(cfg.LLM, longest))
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	opts := []Option{WithLogger(logger), WithMetrics(m)}
	if c := cache.FromConfig(cfg.Cache); c != nil {
		opts = append(opts, WithFactCache(cache.NewFactStore(c, 0)))
	}
	return New(NewStages(base, cfg, logger, m), cfg, opts...), nil
}
