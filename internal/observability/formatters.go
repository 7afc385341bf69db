// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/ladybugml/ladybug-bot/internal/db"
	"github.com/ladybugml/ladybug-bot/internal/pipeline"
	"github.com/ladybugml/ladybug-bot/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintTraceSummary outputs the headline facts of a decoded trace.
func (p *Printer) PrintTraceSummary(summary types.TraceSummary) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("App:      %s %s\n", summary.PackageName, summary.AppVersion))
	sb.WriteString(fmt.Sprintf("Device:   %s (Android %s)\n", summary.DeviceName, summary.AndroidVersion))
	sb.WriteString(fmt.Sprintf("Steps:    %d (%d with screenshots)\n", summary.StepCount, summary.Screenshots))
	sb.WriteString(fmt.Sprintf("Crash:    %t", summary.Crash))

	p.printBox("TRACE SUMMARY", sb.String())
}

// PrintResult outputs the outcome of a pipeline run: the link, the failure
// reason, or the violations found.
func (p *Printer) PrintResult(result pipeline.Result) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Outcome:  %s\n", result.Outcome))
	if result.Link != "" {
		sb.WriteString(fmt.Sprintf("Link:     %s\n", result.Link))
	}

	switch result.Outcome {
	case pipeline.OutcomeFetchFailed:
		sb.WriteString(fmt.Sprintf("Reason:   %s\n", result.Reason))
		if result.Detail != "" {
			sb.WriteString(fmt.Sprintf("Detail:   %s\n", result.Detail))
		}
	case pipeline.OutcomeInvalid:
		messages := result.Messages()
		sb.WriteString(fmt.Sprintf("\nFound %d violations:\n", len(messages)))
		for _, msg := range messages {
			sb.WriteString(fmt.Sprintf("⚠ %s\n", msg))
		}
	case pipeline.OutcomeValid:
		sb.WriteString(fmt.Sprintf("Size:     %d bytes\n", len(result.Document)))
	}

	p.printBox("ATTACHMENT PIPELINE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRanking outputs the top ranked files.
func (p *Printer) PrintRanking(ranking *types.Ranking) {
	if ranking == nil || len(ranking.RankedFiles) == 0 {
		p.printBox("FILE RANKING", "No files ranked")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total files ranked: %d\n\n", len(ranking.RankedFiles)))

	count := min(len(ranking.RankedFiles), maxItemsToShow)
	for i := 0; i < count; i++ {
		file := ranking.RankedFiles[i]
		sb.WriteString(fmt.Sprintf("#%d  %.4f  %s\n", i+1, file.Score, file.Path))
	}
	if len(ranking.RankedFiles) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more files", len(ranking.RankedFiles)-maxItemsToShow))
	}

	p.printBox("FILE RANKING", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintTriageRuns outputs audited triage runs, newest first.
func (p *Printer) PrintTriageRuns(title string, runs []db.TriageRun) {
	if len(runs) == 0 {
		p.printBox(title, "No triage runs recorded")
		return
	}

	var sb strings.Builder
	for _, run := range runs {
		sb.WriteString(fmt.Sprintf("%s  %-13s %s\n", run.CreatedAt.UTC().Format("2006-01-02 15:04"), run.Outcome, run.Event))
		if run.Reason != "" {
			sb.WriteString(fmt.Sprintf("  reason: %s\n", run.Reason))
		}
		for _, v := range run.Violations {
			sb.WriteString(fmt.Sprintf("  ⚠ %s\n", v))
		}
		if run.RankedFiles > 0 {
			sb.WriteString(fmt.Sprintf("  ranked %d files\n", run.RankedFiles))
		}
		if run.Error != "" {
			sb.WriteString(fmt.Sprintf("  error: %s\n", run.Error))
		}
	}

	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// truncate shortens s to at most width runes.
func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}
