package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/factline/internal/claims"
	"github.com/ppiankov/factline/internal/llm"
	"github.com/ppiankov/factline/internal/llm/llmtest"
	"github.com/ppiankov/factline/internal/logging"
	"github.com/ppiankov/factline/internal/model"
)

const solarArticle = `The 500 MW solar project, developed by Longroad Energy, will cost $450 million. ` +
	`Construction is expected to finish in January 2026. ` +
	`"This is the largest project we have ever built," said CEO Paul Gaynor.`

const solarReply = `=== FACT ===
kind: numeric
content: The solar project has a capacity of 500 MW
quote: The 500 MW solar project
confidence: high
=== END ===

=== FACT ===
kind: numeric
content: The project will cost $450 million
quote: will cost $450 million
confidence: high
=== END ===

=== FACT ===
kind: entity
content: Longroad Energy is developing the project
quote: developed by Longroad Energy
confidence: high
=== END ===

=== FACT ===
kind: event
content: Construction is expected to finish in January 2026
quote: Construction is expected to finish in January 2026
confidence: medium
=== END ===

=== FACT ===
kind: numeric
content: The project will power 100,000 homes
quote: will power 100,000 homes
confidence: high
=== END ===`

func TestExtract_SolarScenario(t *testing.T) {
	fake := llmtest.NewScripted(solarReply)
	ex := New(fake, logging.Discard())

	set, err := ex.Extract(context.Background(), model.SourceDocument{Text: solarArticle, OriginID: "solar-1"})
	require.NoError(t, err)

	assert.Equal(t, "solar-1", set.OriginID)
	assert.False(t, set.Degraded)
	require.Len(t, set.Facts, 4)
	assert.Equal(t, 1, set.Dropped, "the invented 100,000 homes fact is dropped")

	for i, f := range set.Facts {
		assert.Equal(t, "F"+string(rune('1'+i)), f.ID)
	}
	assert.Equal(t, model.FactKindNumeric, set.Facts[0].Kind)
	assert.Equal(t, 0, set.Facts[0].Sentence)
	assert.Equal(t, 1, set.Facts[3].Sentence)
	assert.Equal(t, model.ConfidenceMedium, set.Facts[3].Confidence)

	prompt := fake.Requests()[0].Prompt
	assert.Contains(t, prompt, "[0] The 500 MW solar project")
	assert.Contains(t, prompt, "[1] Construction is expected")
	assert.Contains(t, prompt, "Article id: solar-1")
	assert.Contains(t, prompt, "=== FACT ===")
}

// Every kept fact's quote must occur in the source, whatever the service returns
func TestExtract_ProvenanceInvariant(t *testing.T) {
	replies := []string{
		solarReply,
		"=== FACT ===\ncontent: x\nquote: THE 500   mw SOLAR project\n=== END ===",
		"=== FACT ===\ncontent: x\nquote: a quote that is nowhere\n=== END ===",
		"=== FACT ===\ncontent: x\nquote: \"said CEO Paul Gaynor\"\n=== END ===\n=== FACT ===\ncontent: y\nquote: 600 MW\n=== END ===",
		"NO_FACTS",
	}

	for _, r := range replies {
		ex := New(llmtest.NewScripted(r), logging.Discard())
		set, err := ex.Extract(context.Background(), model.SourceDocument{Text: solarArticle})
		require.NoError(t, err)
		for _, f := range set.Facts {
			assert.True(t, claims.ContainsNormalized(solarArticle, f.SourceQuote), "quote %q not in source", f.SourceQuote)
		}
	}
}

func TestExtract_QuoteWithSentenceMarker(t *testing.T) {
	fake := llmtest.NewScripted(`=== FACT ===
kind: numeric
content: The solar project has a capacity of 500 MW
quote: [0] The 500 MW solar project
confidence: high
=== END ===

=== FACT ===
kind: event
content: Construction is expected to finish in January 2026
quote: "[1]  Construction is expected to finish in January 2026"
confidence: medium
=== END ===`)
	ex := New(fake, logging.Discard())

	set, err := ex.Extract(context.Background(), model.SourceDocument{Text: solarArticle, OriginID: "solar-1"})
	require.NoError(t, err)

	assert.Equal(t, 0, set.Dropped)
	require.Len(t, set.Facts, 2)
	assert.Equal(t, "The 500 MW solar project", set.Facts[0].SourceQuote)
	assert.Equal(t, 0, set.Facts[0].Sentence)
	assert.Equal(t, "Construction is expected to finish in January 2026", set.Facts[1].SourceQuote)
	assert.Equal(t, 1, set.Facts[1].Sentence)
}

func TestCleanQuote(t *testing.T) {
	assert.Equal(t, "The 500 MW solar project", cleanQuote("[0] The 500 MW solar project"))
	assert.Equal(t, "will cost $450 million", cleanQuote(`"[12] will cost $450 million"`))
	assert.Equal(t, "[a] stays", cleanQuote("[a] stays"))
	assert.Equal(t, "plain", cleanQuote("“plain”"))
}

func TestExtract_CoercesUnknownEnumerations(t *testing.T) {
	fake := llmtest.NewScripted("=== FACT ===\nkind: Statistic\ncontent: cost\nquote: will cost $450 million\nconfidence: certain\n=== END ===")
	set, err := New(fake, logging.Discard()).Extract(context.Background(), model.SourceDocument{Text: solarArticle})
	require.NoError(t, err)
	require.Len(t, set.Facts, 1)
	assert.Equal(t, model.FactKindEntity, set.Facts[0].Kind)
	assert.Equal(t, model.ConfidenceMedium, set.Facts[0].Confidence)
}

func TestExtract_ZeroFactsIsValid(t *testing.T) {
	set, err := New(llmtest.NewScripted("NO_FACTS"), logging.Discard()).
		Extract(context.Background(), model.SourceDocument{Text: "Nothing of note happened."})
	require.NoError(t, err)
	assert.True(t, set.IsEmpty())
	assert.False(t, set.Degraded)
	assert.NotNil(t, set.Facts)
}

func TestExtract_EmptySource(t *testing.T) {
	fake := llmtest.NewScripted()
	_, err := New(fake, logging.Discard()).Extract(context.Background(), model.SourceDocument{Text: "  \n "})
	assert.ErrorIs(t, err, ErrEmptySource)
	assert.Zero(t, fake.Calls())
}

func TestExtract_UnavailableDegrades(t *testing.T) {
	unavailable := &llm.UnavailableError{Stage: "extraction", Attempts: 3, Err: errors.New("connection refused")}
	fake := (&llmtest.Scripted{}).Push(llmtest.Reply{Err: unavailable})

	set, err := New(fake, logging.Discard()).Extract(context.Background(), model.SourceDocument{Text: solarArticle, OriginID: "x"})
	require.NoError(t, err)
	assert.True(t, set.Degraded)
	assert.True(t, set.IsEmpty())
	assert.Equal(t, "x", set.OriginID)
}

func TestExtract_PersistentGarbageDegrades(t *testing.T) {
	fake := llmtest.NewScripted("I cannot help with that.", "Still no.")
	set, err := New(fake, logging.Discard()).Extract(context.Background(), model.SourceDocument{Text: solarArticle})
	require.NoError(t, err)
	assert.True(t, set.Degraded)
	assert.Equal(t, 2, fake.Calls())
}

func TestExtract_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(llmtest.NewScripted(solarReply), logging.Discard()).Extract(ctx, model.SourceDocument{Text: solarArticle})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildPrompt_PublishedAt(t *testing.T) {
	published := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	fake := llmtest.NewScripted("NO_FACTS")
	_, err := New(fake, logging.Discard()).Extract(context.Background(), model.SourceDocument{Text: solarArticle, PublishedAt: &published})
	require.NoError(t, err)
	assert.True(t, strings.Contains(fake.Requests()[0].Prompt, "Published: 2025-11-03"))
}
