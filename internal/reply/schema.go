// Package reply implements the line-oriented block grammar shared by every
// stage that needs structured output from the text-generation service.
package reply

import (
	"bytes"
	"strings"
	"text/template"
)

// Field is one key of a block
type Field struct {
	Name        string
	Description string
}

// Schema describes the blocks a prompt asks for
type Schema struct {
	// Block is the upper-case block name, e.g. FACT
	Block string

	// Fields in the order they should be written
	Fields []Field

	// Required names the fields a block must carry to be kept
	Required []string

	// Sentinel is the line that stands for "nothing to report"
	Sentinel string

	// Optional allows a reply without any block and without the sentinel
	Optional bool
}

func (s Schema) known(key string) bool {
	for _, f := range s.Fields {
		if f.Name == key {
			return true
		}
	}
	return false
}

var instructionsTmpl = template.Must(template.New("instructions").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(`OUTPUT FORMAT
Write one block per item, exactly like this:

=== {{.Block}} ===
{{range .Fields}}{{.Name}}: <{{.Description}}>
{{end}}=== END ===

Rules:
- Start each key at the beginning of a line, followed by a colon.
- Required keys: {{join .Required ", "}}.
- Do not use JSON, tables or code fences.
{{- if .Sentinel}}
- If there is nothing to report, reply with the single line {{.Sentinel}}
{{- end}}
`))

var reminderTmpl = template.Must(template.New("reminder").Parse(`Your previous reply could not be read.
Reply again using ONLY "=== {{.Block}} ===" blocks closed by "=== END ===".
No introduction, no commentary, no markdown.
{{- if .Sentinel}} If there is nothing to report, reply with exactly {{.Sentinel}} and nothing else.{{end}}
`))

// Instructions renders the format section appended to a prompt
func (s Schema) Instructions() string {
	return render(instructionsTmpl, s)
}

// Reminder renders the stricter text used when a reply had to be re-requested
func (s Schema) Reminder() string {
	return render(reminderTmpl, s) + "\n" + s.Instructions()
}

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		// Templates are static and data is a plain struct
		panic(err)
	}
	return buf.String()
}
