// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ralph

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"
)

// iterationPromptTmpl is the prompt handed to the agent at the start of every
// iteration. It is also stored below the state frontmatter so a resumed loop
// can show the prompt it was about to run.
var iterationPromptTmpl = template.Must(template.New("iteration").Parse(`## Research Iteration {{.Iteration}}/{{.MaxLabel}}

### Original Query
{{.Query}}

### Previous Work
Check ` + "`{{.Workspace}}/`" + ` for previous findings.
Read TODO.md for tracked progress.

### Instructions
1. Review existing findings
2. Identify knowledge gaps
3. Conduct targeted searches using: {{.Sources}}
4. Update research files with new findings
5. Update TODO.md with progress
{{if .Guidance}}
{{.Guidance}}{{end}}
### Completion Criteria
Output ` + "`{{.PromiseTag}}`" + ` ONLY when:
- Coverage score >= {{.Threshold}} (current: {{printf "%.2f" .Coverage}})
- All major aspects addressed
- Findings cross-validated with 2+ sources
- DO NOT lie to exit

### Current Stats
- Iteration: {{.Iteration}}
- Findings: {{.Findings}}
- Coverage: {{printf "%.2f" .CoveragePercent}}%
`))

// promptData carries the values substituted into iterationPromptTmpl.
type promptData struct {
	Iteration       int
	MaxLabel        string
	Query           string
	Workspace       string
	Sources         string
	Guidance        string
	PromiseTag      string
	Threshold       string
	Coverage        float64
	CoveragePercent float64
	Findings        int
}

// maxLabel renders an iteration cap, using the infinity sign for an
// unbounded loop.
func maxLabel(max int) string {
	if max <= 0 {
		return "∞"
	}
	return strconv.Itoa(max)
}

func renderPrompt(l *Loop) (string, error) {
	data := promptData{
		Iteration:       l.state.Iteration,
		MaxLabel:        maxLabel(l.maxIterations),
		Query:           l.query,
		Workspace:       l.workspace,
		Sources:         strings.Join(l.SourceNames(), ", "),
		Guidance:        l.guidance,
		PromiseTag:      PromiseTag(l.state.CompletionPromise),
		Threshold:       strconv.FormatFloat(l.threshold, 'g', -1, 64),
		Coverage:        l.state.CoverageScore,
		CoveragePercent: l.state.CoverageScore * 100,
		Findings:        l.state.FindingsCount,
	}
	var buf bytes.Buffer
	if err := iterationPromptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering iteration prompt: %w", err)
	}
	return buf.String(), nil
}
