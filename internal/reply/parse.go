package reply

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/factline/internal/llm"
)

// ErrUnparsable marks a reply that does not follow the block grammar
var ErrUnparsable = errors.New("unparsable reply")

// ParseError describes why a reply was rejected
type ParseError struct {
	Block   string
	Reason  string
	Excerpt string

	// Persistent is set once the stricter re-prompt failed as well
	Persistent bool
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: %s blocks: %s", ErrUnparsable, e.Block, e.Reason)
	if e.Persistent {
		msg += " (after re-prompt)"
	}
	if e.Excerpt != "" {
		msg += fmt.Sprintf(" [reply starts %q]", e.Excerpt)
	}
	return msg
}

// Unwrap matches ErrUnparsable, and llm.ErrServiceUnavailable once persistent
func (e *ParseError) Unwrap() []error {
	if e.Persistent {
		return []error{ErrUnparsable, llm.ErrServiceUnavailable}
	}
	return []error{ErrUnparsable}
}

// Block is one parsed block
type Block struct {
	Name   string
	Fields map[string]string
}

// Get returns a trimmed field value
func (b Block) Get(key string) string {
	return strings.TrimSpace(b.Fields[key])
}

// Reply is the parsed form of a service reply
type Reply struct {
	// Blocks that carry every required field
	Blocks []Block

	// Skipped counts blocks dropped for missing required fields
	Skipped int

	// Empty is set when the reply carried the sentinel and no blocks
	Empty bool

	// Prose is the text outside any block
	Prose string

	// Reprompted is set when the stricter re-prompt was needed
	Reprompted bool
}

var (
	openRe  = regexp.MustCompile(`^=+\s*([A-Za-z_]+)\s*=+$`)
	fieldRe = regexp.MustCompile(`^([A-Za-z_]+)\s*:\s?(.*)$`)
)

// Scan walks the reply and collects every block of the schema's kind.
// It never fails; Parse applies the acceptance rules on top.
func Scan(text string, schema Schema) *Reply {
	out := &Reply{}
	var prose []string

	var current *Block
	lastKey := ""

	finish := func() {
		if current == nil {
			return
		}
		if current.Name == schema.Block {
			if hasRequired(*current, schema.Required) {
				out.Blocks = append(out.Blocks, *current)
			} else {
				out.Skipped++
			}
		}
		current = nil
		lastKey = ""
	}

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "```") {
			continue
		}

		if m := openRe.FindStringSubmatch(line); m != nil {
			name := strings.ToUpper(m[1])
			finish()
			if name != "END" {
				current = &Block{Name: name, Fields: map[string]string{}}
			}
			continue
		}

		if current == nil {
			prose = append(prose, raw)
			continue
		}

		if m := fieldRe.FindStringSubmatch(line); m != nil && schema.known(strings.ToLower(m[1])) {
			lastKey = strings.ToLower(m[1])
			current.Fields[lastKey] = strings.TrimSpace(m[2])
			continue
		}

		if lastKey != "" && line != "" {
			if v := current.Fields[lastKey]; v != "" {
				current.Fields[lastKey] = v + "\n" + line
			} else {
				current.Fields[lastKey] = line
			}
		}
	}
	// A trailing unterminated block is accepted
	finish()

	out.Prose = strings.TrimSpace(strings.Join(prose, "\n"))
	return out
}

// Parse scans the reply and rejects it when it carries neither a usable block
// nor the schema's sentinel.
func Parse(text string, schema Schema) (*Reply, error) {
	r := Scan(text, schema)
	if len(r.Blocks) > 0 {
		return r, nil
	}

	if schema.Sentinel != "" && containsSentinel(text, schema.Sentinel) {
		r.Empty = true
		return r, nil
	}
	if schema.Optional && r.Skipped == 0 {
		r.Empty = true
		return r, nil
	}

	reason := "no blocks found"
	if r.Skipped > 0 {
		reason = fmt.Sprintf("all %d block(s) missing required fields", r.Skipped)
	}
	return nil, &ParseError{Block: schema.Block, Reason: reason, Excerpt: excerpt(text)}
}

func hasRequired(b Block, required []string) bool {
	for _, key := range required {
		if b.Get(key) == "" {
			return false
		}
	}
	return true
}

func containsSentinel(text, sentinel string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "*_`.")
		if strings.EqualFold(line, sentinel) {
			return true
		}
	}
	return false
}

func excerpt(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > 60 {
		return text[:60]
	}
	return text
}
