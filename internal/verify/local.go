package verify

import (
	"fmt"
	"strings"

	"github.com/ppiankov/factline/internal/claims"
	"github.com/ppiankov/factline/internal/model"
)

// localPass holds the pre-analyzed source and facts for one verification
type localPass struct {
	opts Options

	sourceSentences []string
	sourceIndex     *claims.Index
	sourceClaims    claims.Set

	factIndex  *claims.Index
	factClaims claims.Set

	allowed []string

	issues []model.Issue
}

func newLocalPass(source model.SourceDocument, facts model.FactSet, opts Options) *localPass {
	var factText strings.Builder
	for _, f := range facts.Facts {
		factText.WriteString(f.Content)
		factText.WriteString(". ")
		factText.WriteString(f.SourceQuote)
		factText.WriteString(".\n")
	}

	p := &localPass{
		opts:            opts,
		sourceSentences: claims.SplitSentences(source.Text),
		sourceIndex:     claims.NewIndex(source.Text),
		sourceClaims:    claims.Analyze(source.Text),
		factIndex:       claims.NewIndex(factText.String()),
		factClaims:      claims.Analyze(factText.String()),
	}
	for _, term := range opts.AllowedTerms {
		if n := claims.Normalize(term); n != "" {
			p.allowed = append(p.allowed, n)
		}
	}
	return p
}

// LocalCheck runs the deterministic checks only. It needs no network and
// returns the same issues for the same inputs.
func LocalCheck(draft model.ContentDraft, source model.SourceDocument, facts model.FactSet, opts Options) []model.Issue {
	p := newLocalPass(source, facts, opts.withDefaults())
	p.checkNumbers(draft.Text)
	p.checkDates(draft.Text)
	p.checkEntities(draft.Text)
	p.checkQuotations(draft.Text)
	p.checkAttributions(draft.Text)
	p.checkFormat(draft)

	for i := range p.issues {
		p.issues[i].ID = fmt.Sprintf("L%d", i+1)
	}
	if p.issues == nil {
		return []model.Issue{}
	}
	return p.issues
}

func (p *localPass) add(issue model.Issue) {
	p.issues = append(p.issues, issue)
}

// sourceSentence returns the first source sentence containing span
func (p *localPass) sourceSentence(span string) string {
	if i := claims.SentenceOf(p.sourceSentences, span); i >= 0 {
		return p.sourceSentences[i]
	}
	return model.NotFound
}

func (p *localPass) checkNumbers(text string) {
	seen := map[string]bool{}
	for _, n := range claims.Numbers(text) {
		key := claims.Normalize(n.Raw)
		if seen[key] {
			continue
		}
		seen[key] = true

		if p.factClaims.HasNumber(n) {
			continue
		}
		if match, ok := findNumber(p.sourceClaims.Numbers, n); ok {
			p.add(model.Issue{
				Severity:          model.SeverityWarning,
				ClaimText:         n.Raw,
				MatchedSourceText: p.sourceSentence(match.Raw),
				Explanation:       "figure appears in the source but is not one of the extracted facts",
				SuggestedFix:      "confirm the figure against the source or remove it",
				Check:             model.CheckNumeric,
			})
			continue
		}

		severity := model.SeverityInfo
		if n.Material() {
			severity = model.SeverityCritical
		}
		p.add(model.Issue{
			Severity:          severity,
			ClaimText:         n.Raw,
			MatchedSourceText: model.NotFound,
			Explanation:       "figure does not appear in the facts or the source",
			SuggestedFix:      p.numberFix(n),
			Check:             model.CheckNumeric,
		})
	}
}

func findNumber(numbers []claims.Number, n claims.Number) (claims.Number, bool) {
	for _, x := range numbers {
		if n.Matches(x) {
			return x, true
		}
	}
	return claims.Number{}, false
}

// numberFix proposes fact figures of the same unit as replacements
func (p *localPass) numberFix(n claims.Number) string {
	var candidates []string
	for _, x := range p.factClaims.Numbers {
		if x.Unit == n.Unit && x.Scaled == n.Scaled && x.Currency == n.Currency {
			candidates = append(candidates, x.Raw)
		}
	}
	if len(candidates) == 0 {
		return "remove the figure"
	}
	return "replace with the stated figure (" + strings.Join(candidates, ", ") + ") or remove it"
}

func (p *localPass) checkDates(text string) {
	seen := map[string]bool{}
	for _, d := range claims.Dates(text) {
		if seen[d.Key()] {
			continue
		}
		seen[d.Key()] = true

		if p.factClaims.HasDate(d) {
			continue
		}
		if match, ok := findDate(p.sourceClaims.Dates, d); ok {
			p.add(model.Issue{
				Severity:          model.SeverityWarning,
				ClaimText:         d.Raw,
				MatchedSourceText: p.sourceSentence(match.Raw),
				Explanation:       "date appears in the source but is not one of the extracted facts",
				SuggestedFix:      "confirm the date against the source or remove it",
				Check:             model.CheckDate,
			})
			continue
		}
		p.add(model.Issue{
			Severity:          model.SeverityCritical,
			ClaimText:         d.Raw,
			MatchedSourceText: model.NotFound,
			Explanation:       "date does not appear in the facts or the source",
			SuggestedFix:      "remove the date or use one from the facts",
			Check:             model.CheckDate,
		})
	}
}

func findDate(dates []claims.Date, d claims.Date) (claims.Date, bool) {
	for _, x := range dates {
		if d.Within(x) {
			return x, true
		}
	}
	return claims.Date{}, false
}

func (p *localPass) checkEntities(text string) {
	for _, e := range claims.Entities(text) {
		if p.isAllowed(e) {
			continue
		}
		if p.factIndex.Contains(e.Text) || p.factClaims.HasEntity(e) {
			continue
		}

		issue := model.Issue{
			Severity:    model.SeverityWarning,
			ClaimText:   e.Text,
			Check:       model.CheckEntity,
			Explanation: "name does not appear in the source",
		}
		if p.sourceIndex.Contains(e.Text) || p.sourceClaims.HasEntity(e) {
			issue.MatchedSourceText = p.sourceSentence(e.Text)
			issue.Explanation = "name appears in the source but is not one of the extracted facts"
			issue.SuggestedFix = "keep only if the source supports how it is used"
		} else {
			issue.MatchedSourceText = model.NotFound
			issue.SuggestedFix = "remove the name unless it is common knowledge"
			if p.opts.LocalOnly {
				issue.Severity = model.SeverityCritical
			}
		}
		p.add(issue)
	}
}

func (p *localPass) isAllowed(e claims.Entity) bool {
	padded := " " + e.Norm + " "
	for _, a := range p.allowed {
		if a == e.Norm || strings.Contains(padded, " "+a+" ") {
			return true
		}
	}
	return false
}

func (p *localPass) checkQuotations(text string) {
	for _, q := range claims.Quotations(text) {
		if claims.WordCount(q) < p.opts.QuoteMinWords {
			continue
		}
		if p.sourceIndex.Contains(q) {
			continue
		}
		p.add(model.Issue{
			Severity:          model.SeverityCritical,
			ClaimText:         q,
			MatchedSourceText: model.NotFound,
			Explanation:       "quotation does not appear verbatim in the source",
			SuggestedFix:      "quote the source exactly or paraphrase without quotation marks",
			Check:             model.CheckQuotation,
		})
	}
}

func (p *localPass) checkAttributions(text string) {
	for _, phrase := range claims.Attributions(text) {
		p.add(model.Issue{
			Severity:          model.SeverityWarning,
			ClaimText:         phrase,
			MatchedSourceText: model.NotFound,
			Explanation:       "vague attribution stands in for a named source",
			SuggestedFix:      "name the source or state the fact directly",
			Check:             model.CheckAttribution,
		})
	}
}

func (p *localPass) checkFormat(draft model.ContentDraft) {
	bounds := p.opts.Formats.For(draft.Format)

	shape := func(claim, explanation string) {
		p.add(model.Issue{
			Severity:          model.SeverityInfo,
			ClaimText:         claim,
			MatchedSourceText: model.NotFound,
			Explanation:       explanation,
			Check:             model.CheckFormat,
		})
	}

	if draft.Format == model.FormatMicroThread {
		segments := threadSegments(draft.Text)
		count := len(segments)
		if bounds.MinSegments > 0 && count < bounds.MinSegments {
			shape(fmt.Sprintf("%d posts", count), fmt.Sprintf("thread has %d posts, fewer than %d", count, bounds.MinSegments))
		}
		if bounds.MaxSegments > 0 && count > bounds.MaxSegments {
			shape(fmt.Sprintf("%d posts", count), fmt.Sprintf("thread has %d posts, more than %d", count, bounds.MaxSegments))
		}
		if bounds.MaxSegmentChars > 0 {
			for i, seg := range segments {
				if n := len([]rune(seg)); n > bounds.MaxSegmentChars {
					shape(fmt.Sprintf("post %d", i+1), fmt.Sprintf("post %d has %d characters, more than %d", i+1, n, bounds.MaxSegmentChars))
				}
			}
		}
		return
	}

	words := claims.WordCount(draft.Text)
	if bounds.MinWords > 0 && words < bounds.MinWords {
		shape(fmt.Sprintf("%d words", words), fmt.Sprintf("draft has %d words, fewer than %d", words, bounds.MinWords))
	}
	if bounds.MaxWords > 0 && words > bounds.MaxWords {
		shape(fmt.Sprintf("%d words", words), fmt.Sprintf("draft has %d words, more than %d", words, bounds.MaxWords))
	}
}

func threadSegments(text string) []string {
	var segments []string
	for _, seg := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if seg = strings.TrimSpace(seg); seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
