// Package source loads source documents from files: plain text, HTML, or
// Markdown with a YAML front-matter header.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/factline/internal/model"
)

// MaxBytes caps how much of a source file is read
const MaxBytes = 10 << 20

// ErrEmpty is returned when a source carries no text after parsing
var ErrEmpty = errors.New("source has no text")

// Kind is the markup of a source file
type Kind string

const (
	KindText     Kind = "text"
	KindHTML     Kind = "html"
	KindMarkdown Kind = "markdown"
)

// KindOf guesses the markup from a file name
func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return KindHTML
	case ".md", ".markdown":
		return KindMarkdown
	default:
		return KindText
	}
}

// Load reads a source file. "-" reads standard input as text.
// The origin id defaults to the file name without its extension.
func Load(path string) (model.SourceDocument, error) {
	if path == "-" {
		return Read(os.Stdin, KindText, "stdin")
	}

	f, err := os.Open(path)
	if err != nil {
		return model.SourceDocument{}, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	base := filepath.Base(path)
	return Read(f, KindOf(path), strings.TrimSuffix(base, filepath.Ext(base)))
}

// Read parses a source of the given kind. Any kind may open with a front
// matter header; its origin_id and published_at override defaultID and
// the dates found in HTML metadata.
func Read(r io.Reader, kind Kind, defaultID string) (model.SourceDocument, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxBytes))
	if err != nil {
		return model.SourceDocument{}, fmt.Errorf("read source: %w", err)
	}

	header, body, err := splitFrontMatter(data)
	if err != nil {
		return model.SourceDocument{}, err
	}

	doc := model.SourceDocument{OriginID: defaultID}
	switch kind {
	case KindHTML:
		page, err := parseHTML(bytes.NewReader(body))
		if err != nil {
			return model.SourceDocument{}, err
		}
		doc.Text = page.text
		doc.PublishedAt = page.published
	default:
		doc.Text = normalizeText(string(body))
	}

	if header.OriginID != "" {
		doc.OriginID = header.OriginID
	}
	if header.PublishedAt != "" {
		t, err := parseTime(header.PublishedAt)
		if err != nil {
			return model.SourceDocument{}, fmt.Errorf("front matter published_at: %w", err)
		}
		doc.PublishedAt = &t
	}

	if strings.TrimSpace(doc.Text) == "" {
		return model.SourceDocument{}, ErrEmpty
	}
	return doc, nil
}

// FrontMatter is the optional YAML header of a source file
type FrontMatter struct {
	OriginID    string `yaml:"origin_id"`
	PublishedAt string `yaml:"published_at"`
	Title       string `yaml:"title,omitempty"`
}

const fence = "---"

// splitFrontMatter separates a leading "---" delimited YAML header
func splitFrontMatter(data []byte) (FrontMatter, []byte, error) {
	var fm FrontMatter
	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	if !strings.HasPrefix(text, fence+"\n") {
		return fm, []byte(text), nil
	}
	rest := text[len(fence)+1:]
	end := strings.Index(rest, "\n"+fence)
	if end < 0 {
		return fm, []byte(text), nil
	}
	header := rest[:end]
	body := strings.TrimPrefix(rest[end+1+len(fence):], "\n")

	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return fm, nil, fmt.Errorf("parse front matter: %w", err)
	}
	return fm, []byte(body), nil
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", time.DateOnly}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// normalizeText trims trailing space and collapses runs of blank lines
func normalizeText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
