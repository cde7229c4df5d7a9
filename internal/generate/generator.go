// Package generate produces drafts constrained to a fact set, and corrects
// them in place when verification flags claims.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ppiankov/factline/internal/llm"
	"github.com/ppiankov/factline/internal/logging"
	"github.com/ppiankov/factline/internal/model"
	"github.com/ppiankov/factline/internal/reply"
)

// Request describes one generation or repair
type Request struct {
	Source model.SourceDocument
	Facts  model.FactSet
	Format model.FormatKind

	// Prior and Issues switch the generator into repair mode
	Prior  *model.ContentDraft
	Issues []model.Issue

	// Forbidden names claim tokens a previous repair attempt introduced
	Forbidden []string
}

// IsRepair reports whether the request corrects an existing draft
func (r Request) IsRepair() bool {
	return r.Prior != nil && len(r.Issues) > 0
}

// Generator writes drafts through the text-generation service
type Generator struct {
	provider llm.Provider
	formats  model.FormatsConfig
	logger   *slog.Logger
}

// New creates a generator. The provider should already carry the generation
// stage's retry and timeout policy.
func New(provider llm.Provider, formats model.FormatsConfig, logger *slog.Logger) *Generator {
	return &Generator{
		provider: provider,
		formats:  formats,
		logger:   logging.OrDefault(logger).With("component", "generate"),
	}
}

var unfixableSchema = reply.Schema{
	Block:    "UNFIXABLE",
	Fields:   []reply.Field{{Name: "ids", Description: "comma separated issue ids"}},
	Required: []string{"ids"},
	Optional: true,
}

const emptyReminder = "Your previous reply was empty. Reply with the complete text now, and nothing else."

// Generate produces a new draft, or a corrected one in repair mode
func (g *Generator) Generate(ctx context.Context, req Request) (model.ContentDraft, error) {
	prompt, err := g.buildPrompt(req)
	if err != nil {
		return model.ContentDraft{}, err
	}

	logger := g.logger.With("origin_id", req.Source.OriginID, "format", req.Format, "repair", req.IsRepair())

	text, err := g.complete(ctx, prompt)
	if err != nil {
		return model.ContentDraft{}, fmt.Errorf("generate %s: %w", req.Format, err)
	}

	draft := model.ContentDraft{Format: req.Format}
	if req.IsRepair() {
		draft.Iteration = req.Prior.Iteration + 1
		parsed := reply.Scan(text, unfixableSchema)
		text = parsed.Prose
		draft.Unfixable = unfixableIDs(parsed.Blocks, req.Issues)
		if strings.TrimSpace(text) == "" {
			// Only a trailer came back: keep the prior text
			logger.Warn("repair reply carried no draft text, keeping prior draft")
			text = req.Prior.Text
		}
	}

	if req.Format == model.FormatMicroThread {
		text = FormatThread(text, g.formats.MicroThread.MaxSegmentChars)
	}
	draft.Text = strings.TrimSpace(text)

	logger.Debug("draft generated", "iteration", draft.Iteration, "chars", len(draft.Text), "unfixable", len(draft.Unfixable))
	return draft, nil
}

// complete calls the service, asking once more if the reply is empty
func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.provider.Complete(ctx, llm.Request{System: systemPrompt, Prompt: prompt})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) != "" {
		return resp.Text, nil
	}

	g.logger.Warn("empty generation reply, re-prompting")
	resp, err = g.provider.Complete(ctx, llm.Request{System: systemPrompt, Prompt: prompt + "\n\n" + emptyReminder})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", &reply.ParseError{Block: "DRAFT", Reason: "empty reply", Persistent: true}
	}
	return resp.Text, nil
}

func (g *Generator) buildPrompt(req Request) (string, error) {
	guide, err := renderGuide(req.Format, g.formats.For(req.Format))
	if err != nil {
		return "", err
	}

	data := promptData{
		Guide:      guide,
		FormatName: formatNames[req.Format],
		Facts:      req.Facts.Facts,
		Source:     req.Source.Text,
		Issues:     req.Issues,
		Forbidden:  req.Forbidden,
	}
	if req.IsRepair() {
		data.Draft = req.Prior.Text
		return renderPrompt(repairTmpl, data)
	}
	return renderPrompt(draftTmpl, data)
}

var idRe = regexp.MustCompile(`[A-Za-z]+\d+`)

// unfixableIDs keeps only ids that name one of the issues
func unfixableIDs(blocks []reply.Block, issues []model.Issue) []string {
	known := make(map[string]bool, len(issues))
	for _, is := range issues {
		known[is.ID] = true
	}

	var ids []string
	seen := map[string]bool{}
	for _, b := range blocks {
		for _, id := range idRe.FindAllString(b.Get("ids"), -1) {
			id = strings.ToUpper(id)
			if known[id] && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
