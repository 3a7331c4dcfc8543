package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pdiddy/deep-research/internal/ralph"
	"github.com/pdiddy/deep-research/internal/runner"
)

// Panel colors.
const (
	colorPrimary = "86"  // cyan: session start, status
	colorSuccess = "42"  // green: completed runs
	colorWarning = "208" // orange: interrupted or failed runs
	colorMuted   = "241" // gray: labels
)

// renderPanel draws a rounded box with a bold title and aligned label/value
// rows.
func renderPanel(title string, rows [][2]string, color string) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(color)).
		Padding(0, 1)

	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-*s", width+1, r[0]+":")))
		b.WriteString(" ")
		b.WriteString(r[1])
	}
	return boxStyle.Render(b.String())
}

// renderSummary draws the end-of-run panel. Runs that ended on their own
// terms are green; cancelled, failed or capped runs are orange.
func renderSummary(sum runner.Summary) string {
	color := colorSuccess
	switch sum.StopReason {
	case ralph.StopCancelled, ralph.StopAgentError, ralph.StopSafetyLimit:
		color = colorWarning
	}
	rows := [][2]string{
		{"Session", sum.SessionID},
		{"Stopped", string(sum.StopReason)},
		{"Iterations", fmt.Sprintf("%d", sum.Iterations)},
		{"Findings", fmt.Sprintf("%d", sum.Findings)},
		{"Coverage", fmt.Sprintf("%.2f%%", sum.Coverage*100)},
		{"Duration", sum.Duration.Round(time.Millisecond).String()},
	}
	if sum.Trajectory.Total > 0 {
		rows = append(rows, [2]string{"Trajectory", fmt.Sprintf("%d spans, %d failed", sum.Trajectory.Total, sum.Trajectory.Failed)})
	}
	if sum.SummaryPath != "" {
		rows = append(rows, [2]string{"Output", sum.SummaryPath})
	}
	return renderPanel("Research Complete", rows, color)
}
