package extract

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/ppiankov/factline/internal/reply"
)

const systemPrompt = "You extract facts from news articles for a fact-checking desk. You never add information that is not written in the article."

var factSchema = reply.Schema{
	Block: "FACT",
	Fields: []reply.Field{
		{Name: "kind", Description: "numeric | entity | event | attribution"},
		{Name: "content", Description: "the fact as one self-contained sentence"},
		{Name: "quote", Description: "the exact words from the article that state it, copied verbatim"},
		{Name: "confidence", Description: "high | medium | low"},
	},
	Required: []string{"content", "quote"},
	Sentinel: "NO_FACTS",
}

var extractTmpl = template.Must(template.New("extract").Parse(`Read the article below and list its atomic facts.

Constraints:
1. Only facts the article states explicitly. No inference, estimates or background knowledge.
2. Each fact comes from a single sentence. Never combine figures or names from different sentences.
3. The quote must be copied character for character from one sentence of the article.
4. Include every figure, amount, date, organization, person and event the article reports.
5. Use kind "attribution" for who said or reported something.

{{- if .OriginID}}

Article id: {{.OriginID}}
{{- end}}
{{- if .PublishedAt}}
Published: {{.PublishedAt}}
{{- end}}

ARTICLE (numbered sentences):
{{range $i, $s := .Sentences}}[{{$i}}] {{$s}}
{{end}}`))

type promptData struct {
	OriginID    string
	PublishedAt string
	Sentences   []string
}

func buildPrompt(data promptData) (string, error) {
	var buf bytes.Buffer
	if err := extractTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render extraction prompt: %w", err)
	}
	return buf.String(), nil
}
