// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ralph

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Workspace document names inside a session directory.
const (
	TodoFile     = "TODO.md"
	FindingsFile = "FINDINGS.md"
	SummaryFile  = "SUMMARY.md"
)

var docFuncs = template.FuncMap{
	"percent": func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) },
	"join":    strings.Join,
	"add1":    func(i int) int { return i + 1 },
}

var todoTmpl = template.Must(template.New("todo").Parse(`# Research TODO

## Query
{{.Query}}

## Progress
- [ ] Initial exploration (iteration 1)
- [ ] Deep dive into key topics
- [ ] Cross-validation of findings
- [ ] Final synthesis

## Findings
(Updated during research)
`))

var findingsSkeletonTmpl = template.Must(template.New("findings-skeleton").Parse(`# Research Findings

## Query: {{.Query}}

## Sources
(Updated during research)

## Key Findings
(Updated during research)
`))

// findingsTmpl regenerates FINDINGS.md from the full finding list.
var findingsTmpl = template.Must(template.New("findings").Funcs(docFuncs).Parse(`# Research Findings

## Query: {{.Query}}

## Sources ({{len .Findings}})
{{range $i, $f := .Findings}}
### Source {{add1 $i}}: {{$f.SourceTitle}}
- URL: {{$f.SourceURL}}
- Confidence: {{percent $f.Confidence}}
{{- if $f.VerifiedBy}}
- Verified by: {{join $f.VerifiedBy ", "}}
{{- end}}
{{- with $f.Quality}}
- Quality Score: {{printf "%.2f" .OverallScore}}
- Source Type: {{.SourceType}}
{{- end}}

{{$f.Content}}
{{end}}`))

var summaryTmpl = template.Must(template.New("summary").Parse(`# Research Summary

## Query
{{.Query}}

## Statistics
- Total Iterations: {{.Iterations}}
- Total Findings: {{.Findings}}
- Final Coverage: {{printf "%.2f" .CoveragePercent}}%

## Session
- ID: {{.SessionID}}
- Started: {{.Started}}
- Completed: {{.Completed}}

## Output Files
- TODO.md: Progress tracking
- FINDINGS.md: Detailed findings
- SUMMARY.md: This file
`))

type findingsData struct {
	Query    string
	Findings []types.Finding
}

type summaryData struct {
	Query           string
	Iterations      int
	Findings        int
	CoveragePercent float64
	SessionID       string
	Started         string
	Completed       string
}

// writeDocument renders tmpl with data into dir/name.
func writeDocument(dir, name string, tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return path, nil
}
