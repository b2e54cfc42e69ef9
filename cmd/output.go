package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/conneroisu/plasmo-layout/internal/types"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderBuildSummary(p *project, summary *types.BuildSummary) string {
	lines := []string{
		titleStyle.Render("Build summary"),
		fmt.Sprintf("Scanned:       %d", summary.TotalScanned),
		fmt.Sprintf("With layouts:  %d", summary.ComponentsWithLayouts),
		successStyle.Render(fmt.Sprintf("Generated:     %d", summary.SuccessCount)),
	}
	if summary.FailureCount > 0 {
		lines = append(lines, errorStyle.Render(fmt.Sprintf("Failed:        %d", summary.FailureCount)))
	}
	lines = append(lines, mutedStyle.Render(fmt.Sprintf("Took %dms", summary.DurationMs())))

	for _, r := range summary.Failures() {
		lines = append(lines, errorStyle.Render(fmt.Sprintf("✗ %s: %s", relative(p, r.Component.SourcePath), r.Error)))
	}

	return boxStyle.Render(strings.Join(lines, "\n"))
}

func renderCleanResult(p *project, result *types.CleanResult, dryRun bool) string {
	title := "Clean"
	verb := "Deleted"
	files := result.DeletedFiles
	if dryRun {
		title = "Clean (dry run)"
		verb = "Would delete"
	}

	lines := []string{
		titleStyle.Render(title),
		fmt.Sprintf("Found:    %d", result.FilesFound),
	}
	if !dryRun {
		lines = append(lines, fmt.Sprintf("Deleted:  %d", result.FilesDeleted))
	}
	for _, f := range files {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("%s %s", verb, relative(p, f))))
	}
	if len(files) == 0 {
		lines = append(lines, mutedStyle.Render("Nothing to clean"))
	}

	return boxStyle.Render(strings.Join(lines, "\n"))
}
