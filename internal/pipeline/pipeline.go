// Package pipeline drives one source document through extraction,
// generation, verification and repair to a scored result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/factline/internal/cache"
	"github.com/ppiankov/factline/internal/extract"
	"github.com/ppiankov/factline/internal/generate"
	"github.com/ppiankov/factline/internal/logging"
	"github.com/ppiankov/factline/internal/metrics"
	"github.com/ppiankov/factline/internal/model"
	"github.com/ppiankov/factline/internal/repair"
	"github.com/ppiankov/factline/internal/score"
	"github.com/ppiankov/factline/internal/verify"
)

// Pipeline orchestrates grounded generation runs. It keeps no state
// between runs apart from the optional fact set cache.
type Pipeline struct {
	extractor *extract.Extractor
	generator *generate.Generator
	verifier  *verify.Verifier
	repairer  *repair.Engine
	scorer    *score.Scorer

	facts   *cache.FactStore
	flight  singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	maxIterations int
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics records run outcomes on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithFactCache reuses fact sets across runs of the same document
func WithFactCache(store *cache.FactStore) Option {
	return func(p *Pipeline) { p.facts = store }
}

// WithClock replaces time.Now for CompletedAt
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New wires a pipeline from per-stage providers
func New(stages Stages, cfg *model.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		maxIterations: cfg.Pipeline.MaxIterations,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrDefault(p.logger).With("component", "pipeline")

	p.extractor = extract.New(stages.Extraction, p.logger)
	p.generator = generate.New(stages.Generation, cfg.Formats, p.logger)
	p.verifier = verify.New(stages.Verification, verify.OptionsFromConfig(cfg), p.logger)
	p.repairer = repair.New(p.generator, p.logger)
	p.scorer = score.New(cfg.Scoring)
	return p
}

// Extract returns the fact set of src, from the cache when possible.
// Concurrent requests for the same document share one extraction.
func (p *Pipeline) Extract(ctx context.Context, src model.SourceDocument) (model.FactSet, error) {
	if p.facts != nil {
		set, ok := p.facts.Get(src)
		p.metrics.CacheLookup(ok)
		if ok {
			p.logger.Debug("fact set cache hit", "origin_id", src.OriginID, "facts", set.Len())
			return set, nil
		}
	}

	v, err, shared := p.flight.Do(cache.FactKey(src), func() (any, error) {
		set, err := p.extractor.Extract(ctx, src)
		if err != nil {
			return nil, err
		}
		p.metrics.FactsExtracted(set)
		if p.facts != nil {
			if err := p.facts.Put(src, set); err != nil {
				p.logger.Warn("could not cache fact set", "origin_id", src.OriginID, "error", err)
			}
		}
		return set, nil
	})
	if err != nil {
		return model.FactSet{}, err
	}
	if shared {
		p.logger.Debug("shared in-flight extraction", "origin_id", src.OriginID)
	}

	set, ok := v.(model.FactSet)
	if !ok {
		return model.FactSet{}, fmt.Errorf("unexpected extraction result %T", v)
	}
	return set, nil
}

// GenerateVerified runs the full loop for one format. A result is returned
// for every run that reaches a terminal state, verified or not; an error
// means the text service stayed unavailable or ctx was cancelled.
func (p *Pipeline) GenerateVerified(ctx context.Context, src model.SourceDocument, format model.FormatKind) (*model.PipelineResult, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	facts, err := p.Extract(ctx, src)
	if err != nil {
		p.metrics.RunFailed(format)
		return nil, fmt.Errorf("extraction: %w", err)
	}
	return p.run(ctx, src, facts, format)
}

// GenerateAll runs every format concurrently over one shared fact set.
// Results follow the order of formats. The first failure cancels the rest.
func (p *Pipeline) GenerateAll(ctx context.Context, src model.SourceDocument, formats []model.FormatKind) ([]*model.PipelineResult, error) {
	if len(formats) == 0 {
		formats = model.AllFormats()
	}
	for _, f := range formats {
		if err := checkFormat(f); err != nil {
			return nil, err
		}
	}

	facts, err := p.Extract(ctx, src)
	if err != nil {
		for _, f := range formats {
			p.metrics.RunFailed(f)
		}
		return nil, fmt.Errorf("extraction: %w", err)
	}

	results := make([]*model.PipelineResult, len(formats))
	g, gctx := errgroup.WithContext(ctx)
	for i, format := range formats {
		g.Go(func() error {
			res, err := p.run(gctx, src, facts, format)
			if err != nil {
				return fmt.Errorf("%s: %w", format, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// run drives the controller from Generating to Terminal
func (p *Pipeline) run(ctx context.Context, src model.SourceDocument, facts model.FactSet, format model.FormatKind) (*model.PipelineResult, error) {
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID, "origin_id", src.OriginID, "format", format)

	c := &controller{ctx: ctx, logger: logger, states: []model.State{model.StateExtracting}}
	if facts.IsEmpty() {
		logger.Warn("no facts available, generating in general terms", "degraded", facts.Degraded)
	}

	var (
		draft        model.ContentDraft
		verification model.VerificationResult
		err          error
		iteration    int
		manual       bool
	)

	for {
		if err := c.enter(model.StateGenerating); err != nil {
			return p.fail(format, err)
		}
		if iteration == 0 {
			draft, err = p.generator.Generate(ctx, generate.Request{Source: src, Facts: facts, Format: format})
		} else {
			draft, err = p.repairer.Repair(ctx, draft, verification.Issues, src, facts)
		}
		if err != nil {
			return p.fail(format, fmt.Errorf("generation: %w", err))
		}

		if err := c.enter(model.StateVerifying); err != nil {
			return p.fail(format, err)
		}
		verification, err = p.verifier.Verify(ctx, draft, src, facts)
		if err != nil {
			return p.fail(format, fmt.Errorf("verification: %w", err))
		}

		if verification.Verified {
			if err := c.enter(model.StateVerified); err != nil {
				return p.fail(format, err)
			}
			break
		}
		if iteration >= p.maxIterations {
			manual = true
			logger.Warn("draft still unverified after final repair, needs manual review",
				"iterations", iteration, "critical", verification.Count(model.SeverityCritical))
			break
		}

		if err := c.enter(model.StateRepairing); err != nil {
			return p.fail(format, err)
		}
		iteration++
		logger.Info("repairing draft", "iteration", iteration, "critical", verification.Count(model.SeverityCritical),
			"issues", len(verification.Issues))
	}

	c.states = append(c.states, model.StateTerminal)
	confidence := p.scorer.Score(verification)

	result := &model.PipelineResult{
		RunID:             runID,
		OriginID:          src.OriginID,
		Draft:             draft,
		Verification:      verification,
		ConfidenceScore:   confidence.Score,
		Recommendation:    confidence.Recommendation,
		NeedsManualReview: manual,
		Facts:             facts,
		Iterations:        iteration,
		States:            c.states,
		CompletedAt:       p.now().UTC(),
	}
	p.metrics.ObserveRun(result)

	logger.Info("run complete",
		"verified", verification.Verified,
		"iterations", iteration,
		"score", confidence.Score,
		"recommendation", confidence.Recommendation,
		"manual_review", manual)
	return result, nil
}

func (p *Pipeline) fail(format model.FormatKind, err error) (*model.PipelineResult, error) {
	p.metrics.RunFailed(format)
	return nil, err
}

// controller records state transitions, checking ctx at each boundary
type controller struct {
	ctx    context.Context
	logger *slog.Logger
	states []model.State
}

func (c *controller) enter(s model.State) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	c.logger.Debug("state transition", "from", c.states[len(c.states)-1], "to", s)
	c.states = append(c.states, s)
	return nil
}

// ErrUnknownFormat is returned for a format outside model.AllFormats
var ErrUnknownFormat = errors.New("unknown format")

func checkFormat(f model.FormatKind) error {
	if !slices.Contains(model.AllFormats(), f) {
		names := make([]string, 0, 3)
		for _, k := range model.AllFormats() {
			names = append(names, string(k))
		}
		return fmt.Errorf("%w: %q (supported: %s)", ErrUnknownFormat, f, strings.Join(names, ", "))
	}
	return nil
}
