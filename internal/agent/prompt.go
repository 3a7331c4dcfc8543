// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"bytes"
	"fmt"
	"text/template"
)

// reportingTmpl is appended to every iteration prompt. It tells the model how
// to report findings so ParseFindings can ingest them.
var reportingTmpl = template.Must(template.New("reporting").Parse(`{{.Prompt}}
### Reporting Findings
Report every new finding from this iteration in a single fenced JSON block:

` + "```json" + `
{"findings": [{"content": "...", "source_url": "https://...", "source_title": "...", "confidence": 0.8, "source_type": "web", "recency": 0.5, "relevance": 0.7, "verified_by": []}]}
` + "```" + `

- source_type: one of web, arxiv, github, docs, local
- confidence, recency, relevance: floats between 0.0 and 1.0
- verified_by: URLs of other sources that confirm the finding
Do not repeat findings reported in earlier iterations.
`))

// WithReportingInstructions appends the findings reporting format to an
// iteration prompt.
func WithReportingInstructions(prompt string) (string, error) {
	var buf bytes.Buffer
	if err := reportingTmpl.Execute(&buf, struct{ Prompt string }{Prompt: prompt}); err != nil {
		return "", fmt.Errorf("rendering reporting instructions: %w", err)
	}
	return buf.String(), nil
}
