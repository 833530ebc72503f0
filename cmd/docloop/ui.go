package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/docloop/internal/loop"
)

const previewLines = 20

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	acceptedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	rejectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type resultSummary struct {
	Output      string
	MetadataOut string
	HTMLOut     string
	Meta        loop.RunMetadata
	Threshold   int
}

func renderResult(r resultSummary) string {
	status := rejectedStyle.Render("not accepted")
	if r.Meta.Accepted {
		status = acceptedStyle.Render("accepted")
	}

	rows := []string{
		titleStyle.Render("Documentation generated"),
		"",
		row("Score", fmt.Sprintf("%d / threshold %d", r.Meta.Score, r.Threshold)),
		row("Status", status),
		row("Iterations", fmt.Sprintf("%d", r.Meta.IterationCount)),
		row("References", fmt.Sprintf("%d", len(r.Meta.ReferencesUsed))),
		row("Output", r.Output),
	}
	if r.MetadataOut != "" {
		rows = append(rows, row("Metadata", r.MetadataOut))
	}
	if r.HTMLOut != "" {
		rows = append(rows, row("HTML", r.HTMLOut))
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

// renderPreview shows the first n lines of the document.
func renderPreview(doc string, n int) string {
	lines := strings.Split(doc, "\n")
	more := len(lines) - n
	if more > 0 {
		lines = lines[:n]
	}
	body := strings.Join(lines, "\n")
	if more > 0 {
		body += "\n" + dimStyle.Render(fmt.Sprintf("... (%d more lines)", more))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Preview"),
		panelStyle.Render(body),
	)
}
