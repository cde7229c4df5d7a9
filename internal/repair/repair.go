// Package repair corrects drafts that failed verification without letting
// the correction introduce claims of its own.
package repair

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/factline/internal/claims"
	"github.com/ppiankov/factline/internal/generate"
	"github.com/ppiankov/factline/internal/logging"
	"github.com/ppiankov/factline/internal/model"
)

// ErrNothingToRepair is returned when Repair is called without issues
var ErrNothingToRepair = errors.New("no issues to repair")

// DraftGenerator is the part of the generator the engine needs
type DraftGenerator interface {
	Generate(ctx context.Context, req generate.Request) (model.ContentDraft, error)
}

// Engine drives minimal-diff corrections
type Engine struct {
	gen    DraftGenerator
	logger *slog.Logger
}

// New creates a repair engine
func New(gen DraftGenerator, logger *slog.Logger) *Engine {
	return &Engine{
		gen:    gen,
		logger: logging.OrDefault(logger).With("component", "repair"),
	}
}

// Repair asks for a correction of every issue. A correction that introduces
// numbers, dates or names found in neither the draft nor the facts is retried
// once with those tokens named; if it still does, the prior text is returned
// unchanged as the next iteration's draft.
func (e *Engine) Repair(ctx context.Context, draft model.ContentDraft, issues []model.Issue, source model.SourceDocument, facts model.FactSet) (model.ContentDraft, error) {
	if len(issues) == 0 {
		return model.ContentDraft{}, ErrNothingToRepair
	}
	logger := e.logger.With("origin_id", source.OriginID, "format", draft.Format, "iteration", draft.Iteration)

	prior := draft
	req := generate.Request{
		Source: source,
		Facts:  facts,
		Format: draft.Format,
		Prior:  &prior,
		Issues: issues,
	}

	repaired, err := e.gen.Generate(ctx, req)
	if err != nil {
		return model.ContentDraft{}, fmt.Errorf("repair: %w", err)
	}

	added := NewClaims(repaired.Text, draft.Text, facts)
	if len(added) == 0 {
		e.logUnfixable(logger, repaired)
		return repaired, nil
	}

	logger.Warn("repair introduced new claims, retrying", "claims", added)
	req.Forbidden = added
	repaired, err = e.gen.Generate(ctx, req)
	if err != nil {
		return model.ContentDraft{}, fmt.Errorf("repair: %w", err)
	}

	added = NewClaims(repaired.Text, draft.Text, facts)
	if len(added) == 0 {
		e.logUnfixable(logger, repaired)
		return repaired, nil
	}

	logger.Warn("repair still introduces new claims, keeping prior draft", "claims", added)
	ids := make([]string, len(issues))
	for i, is := range issues {
		ids[i] = is.ID
	}
	return model.ContentDraft{
		Text:      draft.Text,
		Format:    draft.Format,
		Iteration: draft.Iteration + 1,
		Unfixable: ids,
	}, nil
}

func (e *Engine) logUnfixable(logger *slog.Logger, draft model.ContentDraft) {
	if len(draft.Unfixable) > 0 {
		logger.Info("repair declared issues unfixable", "ids", strings.Join(draft.Unfixable, ","))
	}
}

// NewClaims returns the numbers, dates and names in candidate that appear in
// neither prior nor the fact set, as written in candidate.
func NewClaims(candidate, prior string, facts model.FactSet) []string {
	var factText strings.Builder
	for _, f := range facts.Facts {
		factText.WriteString(f.Content)
		factText.WriteString(". ")
		factText.WriteString(f.SourceQuote)
		factText.WriteString(".\n")
	}

	known := claims.Analyze(prior + "\n" + factText.String())
	knownIndex := claims.NewIndex(prior + "\n" + factText.String())
	found := claims.Analyze(candidate)

	var added []string
	seen := map[string]bool{}
	add := func(raw string) {
		if key := claims.Normalize(raw); !seen[key] {
			seen[key] = true
			added = append(added, raw)
		}
	}

	for _, n := range found.Numbers {
		if !known.HasNumber(n) {
			add(n.Raw)
		}
	}
	for _, d := range found.Dates {
		if !known.HasDate(d) {
			add(d.Raw)
		}
	}
	for _, ent := range found.Entities {
		if !knownIndex.Contains(ent.Text) && !known.HasEntity(ent) {
			add(ent.Text)
		}
	}
	return added
}
