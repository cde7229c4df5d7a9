package generate

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/ppiankov/factline/internal/model"
)

const systemPrompt = "You are a senior content strategist. You turn news into clear, persuasive copy for industry decision makers, and you only state facts you were given."

// formatGuides describe the shape of each format
var formatGuides = map[model.FormatKind]string{
	model.FormatLongForm: `FORMAT: research article, {{.Bounds.MinWords}}-{{.Bounds.MaxWords}} words.
Structure it in sections with headings:
1. Title
2. Context: what happened and why it matters now
3. Analysis: two or three sections that unpack the development
4. Synthesis: what it means for the sector
5. Call to action`,

	model.FormatShortPost: `FORMAT: professional social post, {{.Bounds.MinWords}}-{{.Bounds.MaxWords}} words, four short paragraphs of two or three sentences:
1. Hook: an attention-grabbing opening
2. Problem: the challenge the sector faces
3. Stance: how we look at it
4. Call to action: an open question to the reader
No hard sell. End with three to five relevant hashtags.`,

	model.FormatMicroThread: `FORMAT: thread of {{.Bounds.MinSegments}}-{{.Bounds.MaxSegments}} posts, each under {{.Bounds.MaxSegmentChars}} characters.
Separate posts with a blank line and start each with its number, like "1/7".
Every post must make sense on its own. Open with a hook, close with a call to action and hashtags.`,
}

var draftTmpl = template.Must(template.New("draft").Parse(`{{.Guide}}

{{if .Facts -}}
PERMITTED FACTS
These are the only facts you may state. Any figure, amount, date, organization or person
you mention must come from this list, worded so it stays true to it.
{{range .Facts}}- [{{.ID}}] {{.Content}}
{{end}}
Commentary, opinion and implications are yours to write, as long as they do not
introduce new figures, names or dates.
{{- else -}}
NO FACTS AVAILABLE
Write in general terms only. Do not mention any figure, amount, percentage, date,
company, organization or person. Discuss the theme and its implications.
{{- end}}

SOURCE ARTICLE (context only)
{{.Source}}

Write the {{.FormatName}} now. Reply with the text only.
`))

var repairTmpl = template.Must(template.New("repair").Parse(`You are correcting a {{.FormatName}} draft. Change as little as possible.

Rules:
- Edit only the sentences that contain the flagged claims below.
- Do not add any new figure, amount, date, organization or person.
- Leave every other sentence exactly as it is.
- Keep the same structure and length.
{{- if .Forbidden}}
- Your previous correction introduced claims that appear in neither the draft nor the facts: {{range $i, $t := .Forbidden}}{{if $i}}, {{end}}"{{$t}}"{{end}}. Remove them.
{{- end}}

FLAGGED CLAIMS
{{range .Issues}}[{{.ID}}] {{.Severity}}: "{{.ClaimText}}"
    problem: {{.Explanation}}
{{- if .SuggestedFix}}
    fix: {{.SuggestedFix}}
{{- end}}
{{end}}
{{if .Facts -}}
PERMITTED FACTS
{{range .Facts}}- [{{.ID}}] {{.Content}}
{{end}}
{{- else -}}
NO FACTS AVAILABLE: remove specific figures, names and dates instead of correcting them.
{{- end}}

DRAFT
{{.Draft}}

Reply with the full corrected draft. If a flagged claim cannot be corrected, leave it
and list its id after the draft in this block:

=== UNFIXABLE ===
ids: <comma separated ids>
=== END ===
`))

type promptData struct {
	Guide      string
	FormatName string
	Facts      []model.Fact
	Source     string
	Draft      string
	Issues     []model.Issue
	Forbidden  []string
}

var formatNames = map[model.FormatKind]string{
	model.FormatLongForm:    "article",
	model.FormatShortPost:   "post",
	model.FormatMicroThread: "thread",
}

func renderGuide(format model.FormatKind, bounds model.FormatBounds) (string, error) {
	guide, ok := formatGuides[format]
	if !ok {
		return "", fmt.Errorf("unknown format: %s", format)
	}
	t, err := template.New("guide").Parse(guide)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, struct{ Bounds model.FormatBounds }{bounds}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderPrompt(t *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}
