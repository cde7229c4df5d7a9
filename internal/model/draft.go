package model

import "fmt"

// FormatKind selects the output format of a draft
type FormatKind string

const (
	FormatLongForm    FormatKind = "longForm"
	FormatShortPost   FormatKind = "shortPost"
	FormatMicroThread FormatKind = "microThread"
)

// AllFormats lists every supported format in generation order
func AllFormats() []FormatKind {
	return []FormatKind{FormatLongForm, FormatShortPost, FormatMicroThread}
}

// ParseFormat accepts the canonical names plus the short CLI aliases
func ParseFormat(s string) (FormatKind, error) {
	switch s {
	case "longForm", "long", "long-form", "article":
		return FormatLongForm, nil
	case "shortPost", "short", "short-post", "post":
		return FormatShortPost, nil
	case "microThread", "thread", "micro-thread":
		return FormatMicroThread, nil
	default:
		return "", fmt.Errorf("unknown format: %s (supported: long, short, thread)", s)
	}
}

// ContentDraft is one generated version of the content.
// Each repair cycle produces a new draft rather than mutating the previous one.
type ContentDraft struct {
	Text      string     `json:"text"`
	Format    FormatKind `json:"format"`
	Iteration int        `json:"iteration"`

	// Unfixable lists issue ids the repairer declared it could not address
	Unfixable []string `json:"unfixable,omitempty"`
}
