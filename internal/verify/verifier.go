// Package verify checks a draft against its source and fact set, first with
// deterministic local rules and then with a generative review.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/factline/internal/claims"
	"github.com/ppiankov/factline/internal/llm"
	"github.com/ppiankov/factline/internal/logging"
	"github.com/ppiankov/factline/internal/model"
	"github.com/ppiankov/factline/internal/reply"
)

// Options configures the verifier
type Options struct {
	// LocalOnly skips the generative review pass. Names found in neither the
	// source nor the facts are then critical, since no review judges them.
	LocalOnly bool

	// AllowedTerms are names that never need a backing fact
	AllowedTerms []string

	// QuoteMinWords is the length at which quotations must match the source
	QuoteMinWords int

	// Formats holds the shape bounds per format
	Formats model.FormatsConfig
}

// OptionsFromConfig maps the configuration onto verifier options
func OptionsFromConfig(cfg *model.Config) Options {
	return Options{
		LocalOnly:     cfg.Verify.LocalOnly,
		AllowedTerms:  cfg.Verify.AllowedTerms,
		QuoteMinWords: cfg.Verify.QuoteMinWords,
		Formats:       cfg.Formats,
	}
}

func (o Options) withDefaults() Options {
	if o.QuoteMinWords <= 0 {
		o.QuoteMinWords = 6
	}
	return o
}

// Verifier checks drafts
type Verifier struct {
	provider llm.Provider
	opts     Options
	logger   *slog.Logger
}

// New creates a verifier. A nil provider implies opts.LocalOnly.
func New(provider llm.Provider, opts Options, logger *slog.Logger) *Verifier {
	if provider == nil {
		opts.LocalOnly = true
	}
	return &Verifier{
		provider: provider,
		opts:     opts.withDefaults(),
		logger:   logging.OrDefault(logger).With("component", "verify"),
	}
}

// Verify checks draft against source and facts. Verified is true exactly
// when no critical issue was found.
func (v *Verifier) Verify(ctx context.Context, draft model.ContentDraft, source model.SourceDocument, facts model.FactSet) (model.VerificationResult, error) {
	logger := v.logger.With("origin_id", source.OriginID, "format", draft.Format, "iteration", draft.Iteration)

	issues := LocalCheck(draft, source, facts, v.opts)
	critical := model.CountSeverity(issues, model.SeverityCritical)
	logger.Debug("local checks complete", "issues", len(issues), "critical", critical)

	if critical > 0 || v.opts.LocalOnly || v.provider == nil {
		return model.NewVerificationResult(issues), nil
	}

	review, err := v.review(ctx, draft, source, facts)
	if err != nil {
		return model.VerificationResult{}, fmt.Errorf("verify %s: %w", draft.Format, err)
	}

	local := make(map[string]bool, len(issues))
	for _, is := range issues {
		local[claims.Normalize(is.ClaimText)] = true
	}
	n := 0
	for _, is := range review {
		if local[claims.Normalize(is.ClaimText)] {
			continue
		}
		n++
		is.ID = fmt.Sprintf("R%d", n)
		issues = append(issues, is)
	}

	result := model.NewVerificationResult(issues)
	logger.Info("verification complete", "verified", result.Verified, "issues", len(result.Issues),
		"critical", result.Count(model.SeverityCritical))
	return result, nil
}

// review runs the generative pass
func (v *Verifier) review(ctx context.Context, draft model.ContentDraft, source model.SourceDocument, facts model.FactSet) ([]model.Issue, error) {
	prompt, err := buildReviewPrompt(reviewData{
		Criteria: ReviewCriteria,
		Facts:    facts.Facts,
		Source:   source.Text,
		Format:   draft.Format,
		Draft:    draft.Text,
	})
	if err != nil {
		return nil, err
	}

	parsed, err := reply.Exchange(ctx, v.provider, llm.Request{System: systemPrompt, Prompt: prompt}, issueSchema)
	if err != nil {
		return nil, err
	}
	if parsed.Skipped > 0 {
		v.logger.Warn("skipped incomplete review issues", "count", parsed.Skipped)
	}

	issues := make([]model.Issue, 0, len(parsed.Blocks))
	for _, b := range parsed.Blocks {
		severity := model.Severity(strings.ToLower(b.Get("severity")))
		if !severity.Valid() {
			severity = model.SeverityWarning
		}
		matched := b.Get("source")
		if matched == "" || strings.EqualFold(matched, model.NotFound) {
			matched = model.NotFound
		}
		issues = append(issues, model.Issue{
			Severity:          severity,
			ClaimText:         b.Get("claim"),
			MatchedSourceText: matched,
			Explanation:       b.Get("explanation"),
			SuggestedFix:      b.Get("fix"),
			Check:             model.CheckReview,
		})
	}
	return issues, nil
}
