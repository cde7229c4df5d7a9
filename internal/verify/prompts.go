package verify

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/ppiankov/factline/internal/model"
	"github.com/ppiankov/factline/internal/reply"
)

const systemPrompt = "You are a fact-checking editor. You compare a draft against its source material and report every claim the material does not support."

// ReviewCriteria is the checklist the review pass applies. It is phrased for
// the reviewer only and never shown to the generator.
var ReviewCriteria = []string{
	"Flag any quantity, price, capacity, percentage or count whose value differs from the reference material.",
	"Flag any person, company, agency or place the reference material does not mention in that role.",
	"Flag any timeline, deadline or calendar reference that the reference material does not give.",
	"Flag cause-and-effect links or comparisons that the reference material does not draw.",
	"Flag wording that turns a plan, forecast or estimate into an accomplished fact.",
	"Flag quotations attributed to anyone unless the exact words occur in the reference material.",
}

var issueSchema = reply.Schema{
	Block: "ISSUE",
	Fields: []reply.Field{
		{Name: "severity", Description: "critical (false or unsupported fact) | warning (misleading or unclear) | info (style)"},
		{Name: "claim", Description: "the exact words from the draft"},
		{Name: "source", Description: "the supporting or contradicting words from the source, or NOT_FOUND"},
		{Name: "explanation", Description: "what is wrong"},
		{Name: "fix", Description: "the smallest change that would correct it"},
	},
	Required: []string{"claim", "explanation"},
	Sentinel: "NO_ISSUES",
}

var reviewTmpl = template.Must(template.New("review").Parse(`Audit the DRAFT below line by line.

CHECKLIST
{{range .Criteria}}- {{.}}
{{end}}
Judgement, tone and opinion are acceptable as long as no factual statement depends on them.
Only report problems you can point to in the draft text.

REFERENCE FACTS
{{range .Facts}}- [{{.ID}}] {{.Content}} (source: "{{.SourceQuote}}")
{{else}}(none: the draft should state no specific facts)
{{end}}
SOURCE ARTICLE
{{.Source}}

DRAFT ({{.Format}})
{{.Draft}}
`))

type reviewData struct {
	Criteria []string
	Facts    []model.Fact
	Source   string
	Format   model.FormatKind
	Draft    string
}

func buildReviewPrompt(data reviewData) (string, error) {
	var buf bytes.Buffer
	if err := reviewTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render review prompt: %w", err)
	}
	return buf.String(), nil
}
