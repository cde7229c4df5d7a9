// Package render writes pipeline results as JSON and as Markdown with a
// YAML front-matter header.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/factline/internal/model"
)

var fileSuffix = map[model.FormatKind]string{
	model.FormatLongForm:    "article",
	model.FormatShortPost:   "post",
	model.FormatMicroThread: "thread",
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and joins its alphanumeric runs with hyphens,
// keeping at most 50 characters
func Slug(s string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(slug) > 50 {
		slug = slug[:50]
		if i := strings.LastIndex(slug, "-"); i > 0 {
			slug = slug[:i]
		}
	}
	if slug == "" {
		return "source"
	}
	return slug
}

// BaseName is the file name shared by both renderings, without extension
func BaseName(res *model.PipelineResult) string {
	suffix, ok := fileSuffix[res.Draft.Format]
	if !ok {
		suffix = Slug(string(res.Draft.Format))
	}
	return Slug(res.OriginID) + "-" + suffix
}

// JSON writes the full result, facts and issues included
func JSON(w io.Writer, res *model.PipelineResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

type issueSummary struct {
	ID       string `yaml:"id"`
	Severity string `yaml:"severity"`
	Check    string `yaml:"check"`
	Claim    string `yaml:"claim"`
}

type frontMatter struct {
	RunID             string         `yaml:"run_id"`
	OriginID          string         `yaml:"origin_id"`
	Format            string         `yaml:"format"`
	Verified          bool           `yaml:"verified"`
	ConfidenceScore   int            `yaml:"confidence_score"`
	Recommendation    string         `yaml:"recommendation"`
	NeedsManualReview bool           `yaml:"needs_manual_review"`
	Iterations        int            `yaml:"iterations"`
	Facts             int            `yaml:"facts"`
	Degraded          bool           `yaml:"degraded,omitempty"`
	Unfixable         []string       `yaml:"unfixable,omitempty"`
	Issues            []issueSummary `yaml:"issues,omitempty"`
	CompletedAt       string         `yaml:"completed_at"`
}

// Markdown writes the draft under a front-matter header describing the run
func Markdown(w io.Writer, res *model.PipelineResult) error {
	fm := frontMatter{
		RunID:             res.RunID,
		OriginID:          res.OriginID,
		Format:            string(res.Draft.Format),
		Verified:          res.Verification.Verified,
		ConfidenceScore:   res.ConfidenceScore,
		Recommendation:    string(res.Recommendation),
		NeedsManualReview: res.NeedsManualReview,
		Iterations:        res.Iterations,
		Facts:             res.Facts.Len(),
		Degraded:          res.Facts.Degraded,
		Unfixable:         res.Draft.Unfixable,
		CompletedAt:       res.CompletedAt.UTC().Format(time.RFC3339),
	}
	for _, is := range res.Verification.Issues {
		fm.Issues = append(fm.Issues, issueSummary{
			ID:       is.ID,
			Severity: string(is.Severity),
			Check:    string(is.Check),
			Claim:    is.ClaimText,
		})
	}

	header, err := yaml.Marshal(fm)
	if err != nil {
		return fmt.Errorf("encode front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(header)
	buf.WriteString("---\n\n")
	buf.WriteString(strings.TrimSpace(res.Draft.Text))
	buf.WriteString("\n")

	_, err = w.Write(buf.Bytes())
	return err
}

// Paths are the files written for one result
type Paths struct {
	JSON     string
	Markdown string
}

// Write renders res into dir as <base>.json and <base>.md
func Write(dir string, res *model.PipelineResult) (Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create output dir: %w", err)
	}

	base := filepath.Join(dir, BaseName(res))
	paths := Paths{JSON: base + ".json", Markdown: base + ".md"}

	if err := writeFile(paths.JSON, res, JSON); err != nil {
		return Paths{}, fmt.Errorf("render JSON: %w", err)
	}
	if err := writeFile(paths.Markdown, res, Markdown); err != nil {
		return Paths{}, fmt.Errorf("render markdown: %w", err)
	}
	return paths, nil
}

func writeFile(path string, res *model.PipelineResult, render func(io.Writer, *model.PipelineResult) error) error {
	var buf bytes.Buffer
	if err := render(&buf, res); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Summary prints a short human-readable account of the run
func Summary(w io.Writer, res *model.PipelineResult) {
	status := "verified"
	if !res.Verification.Verified {
		status = "NOT verified"
	}
	fmt.Fprintf(w, "%s [%s] %s after %d repair(s)\n", res.OriginID, res.Draft.Format, status, res.Iterations)
	fmt.Fprintf(w, "  confidence: %d/100 (%s)\n", res.ConfidenceScore, res.Recommendation)
	fmt.Fprintf(w, "  facts: %d", res.Facts.Len())
	if res.Facts.Degraded {
		fmt.Fprint(w, " (extraction failed)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  issues: %d critical, %d warning, %d info\n",
		res.Verification.Count(model.SeverityCritical),
		res.Verification.Count(model.SeverityWarning),
		res.Verification.Count(model.SeverityInfo))
	for _, is := range res.Verification.Issues {
		if is.Severity == model.SeverityInfo {
			continue
		}
		fmt.Fprintf(w, "    [%s] %s: %q %s\n", is.ID, is.Severity, is.ClaimText, is.Explanation)
	}
	if res.NeedsManualReview {
		fmt.Fprintln(w, "  needs manual review")
	}
}
