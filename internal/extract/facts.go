// Package extract turns a source document into the closed set of facts that
// every later stage must stay within.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/factline/internal/claims"
	"github.com/ppiankov/factline/internal/llm"
	"github.com/ppiankov/factline/internal/logging"
	"github.com/ppiankov/factline/internal/model"
	"github.com/ppiankov/factline/internal/reply"
)

// ErrEmptySource is returned for a source document without text
var ErrEmptySource = errors.New("source document has no text")

// Extractor extracts facts via the text-generation service
type Extractor struct {
	provider llm.Provider
	logger   *slog.Logger
}

// New creates an extractor. The provider should already carry the
// extraction stage's retry and timeout policy.
func New(provider llm.Provider, logger *slog.Logger) *Extractor {
	return &Extractor{
		provider: provider,
		logger:   logging.OrDefault(logger).With("component", "extract"),
	}
}

// Extract returns the facts stated in src. Facts whose quote cannot be found
// in the source are dropped. When the service stays unavailable the result is
// an empty, Degraded set and a nil error.
func (e *Extractor) Extract(ctx context.Context, src model.SourceDocument) (model.FactSet, error) {
	if strings.TrimSpace(src.Text) == "" {
		return model.FactSet{}, ErrEmptySource
	}

	logger := e.logger.With("origin_id", src.OriginID)
	sentences := claims.SplitSentences(src.Text)

	data := promptData{OriginID: src.OriginID, Sentences: sentences}
	if src.PublishedAt != nil {
		data.PublishedAt = src.PublishedAt.Format(time.DateOnly)
	}
	prompt, err := buildPrompt(data)
	if err != nil {
		return model.FactSet{}, err
	}

	parsed, err := reply.Exchange(ctx, e.provider, llm.Request{System: systemPrompt, Prompt: prompt}, factSchema)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.FactSet{}, ctxErr
		}
		if errors.Is(err, llm.ErrServiceUnavailable) {
			logger.Error("fact extraction failed, continuing with empty fact set", "error", err)
			return model.FactSet{OriginID: src.OriginID, Facts: []model.Fact{}, Degraded: true}, nil
		}
		return model.FactSet{}, fmt.Errorf("extract facts: %w", err)
	}
	if parsed.Reprompted {
		logger.Warn("extraction reply needed a stricter re-prompt")
	}
	if parsed.Skipped > 0 {
		logger.Warn("skipped incomplete fact blocks", "count", parsed.Skipped)
	}

	set := buildFactSet(src, sentences, parsed.Blocks, logger)
	logger.Info("facts extracted", "facts", set.Len(), "dropped", set.Dropped)
	return set, nil
}

// sentenceMarkerRe matches the "[i]" numbering the prompt puts before each sentence
var sentenceMarkerRe = regexp.MustCompile(`^\s*\[\d+\]\s*`)

func cleanQuote(raw string) string {
	const quoteChars = `"“”' `
	quote := strings.Trim(raw, quoteChars)
	quote = sentenceMarkerRe.ReplaceAllString(quote, "")
	return strings.Trim(quote, quoteChars)
}

// buildFactSet validates blocks against the source and assigns ids
func buildFactSet(src model.SourceDocument, sentences []string, blocks []reply.Block, logger *slog.Logger) model.FactSet {
	set := model.FactSet{OriginID: src.OriginID, Facts: []model.Fact{}}
	index := claims.NewIndex(src.Text)
	seen := map[string]bool{}

	for _, b := range blocks {
		quote := cleanQuote(b.Get("quote"))
		content := b.Get("content")

		if !index.Contains(quote) {
			set.Dropped++
			logger.Warn("dropped fact with quote not found in source", "content", content, "quote", quote)
			continue
		}

		key := claims.Normalize(content)
		if seen[key] {
			continue
		}
		seen[key] = true

		kind := model.FactKind(strings.ToLower(b.Get("kind")))
		if !kind.Valid() {
			logger.Debug("coerced unknown fact kind", "kind", kind)
			kind = model.FactKindEntity
		}
		confidence := model.FactConfidence(strings.ToLower(b.Get("confidence")))
		if !confidence.Valid() {
			logger.Debug("coerced unknown fact confidence", "confidence", confidence)
			confidence = model.ConfidenceMedium
		}

		set.Facts = append(set.Facts, model.Fact{
			ID:          "F" + strconv.Itoa(len(set.Facts)+1),
			Kind:        kind,
			Content:     content,
			SourceQuote: quote,
			Confidence:  confidence,
			Sentence:    claims.SentenceOf(sentences, quote),
		})
	}
	return set
}
