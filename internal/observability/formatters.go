// Package observability renders runs, review payloads and artifact history
// as boxed text for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/qa-orchestrator/internal/approval"
	"github.com/jonathan/qa-orchestrator/internal/state"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// maxContentLines caps how much artifact content a box shows
	maxContentLines = 20
)

// Printer handles formatted output for the CLI
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

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintSnapshot outputs the status, gates and artifact versions of a run.
func (p *Printer) PrintSnapshot(snap *state.RunSnapshot) {
	if snap == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Session:  %s\n", snap.SessionKey))
	sb.WriteString(fmt.Sprintf("Run:      %s\n", snap.RunID))
	sb.WriteString(fmt.Sprintf("Team:     %s\n", snap.TeamID))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", snap.Status))
	sb.WriteString(fmt.Sprintf("Stage:    %s\n", snap.Stage))
	sb.WriteString(fmt.Sprintf("Cost:     $%.4f\n", snap.AccumulatedCost))
	if snap.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf("Error:    %s\n", snap.ErrorMessage))
	}
	sb.WriteString("\n")

	sb.WriteString("Artifacts:\n")
	for _, a := range snap.Artifacts {
		gate := snap.Gate(a.Kind)
		line := fmt.Sprintf("  %-11s v%-3d gate=%-8s iter=%d", a.Kind, a.Version, gate.Status, snap.Iterations[a.Kind])
		if ev, ok := snap.Evaluations[a.Kind]; ok {
			line += fmt.Sprintf(" %s (%.0f)", ev.Verdict, ev.Score)
		}
		sb.WriteString(line + "\n")
	}

	if len(snap.HumanFeedback) > 0 {
		sb.WriteString("\nPending reviewer feedback:\n")
		for _, k := range types.Kinds {
			if fb, ok := snap.HumanFeedback[k]; ok {
				sb.WriteString(fmt.Sprintf("  %s: %s\n", k, fb))
			}
		}
	}

	p.printBox("RUN "+string(snap.Status), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPayload outputs what a reviewer needs to decide at a gate.
func (p *Printer) PrintPayload(payload *approval.SuspendPayload) {
	if payload == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Session:  %s\n", payload.SessionKey))
	sb.WriteString(fmt.Sprintf("Version:  %d (iteration %d)\n", payload.Version, payload.Iteration))
	if payload.Score != nil {
		sb.WriteString(fmt.Sprintf("Verdict:  %s (score %.0f)\n", payload.Verdict, *payload.Score))
	}
	sb.WriteString(fmt.Sprintf("Cost:     $%.4f\n", payload.AccumulatedCost))
	sb.WriteString("\n")

	sb.WriteString("Feedback:\n")
	for _, line := range strings.Split(payload.Feedback, "\n") {
		sb.WriteString("  " + line + "\n")
	}

	if len(payload.Issues) > 0 {
		sb.WriteString("\nIssues:\n")
		count := min(len(payload.Issues), maxItemsToShow)
		for i := 0; i < count; i++ {
			issue := payload.Issues[i]
			sb.WriteString(fmt.Sprintf("  ⚠ %s: %s\n", issue.Type, issue.Description))
		}
		if len(payload.Issues) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(payload.Issues)-maxItemsToShow))
		}
	}

	if len(payload.Recommendations) > 0 {
		sb.WriteString("\nRecommendations:\n")
		count := min(len(payload.Recommendations), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", payload.Recommendations[i]))
		}
		if len(payload.Recommendations) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(payload.Recommendations)-maxItemsToShow))
		}
	}

	sb.WriteString("\nContent:\n")
	sb.WriteString(excerpt(payload.Content))

	title := fmt.Sprintf("REVIEW %s (%s)", strings.ToUpper(string(payload.Kind)), payload.Stage)
	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintHistory outputs every version of one artifact kind, oldest first.
func (p *Printer) PrintHistory(kind types.Kind, history []types.ArtifactVersion) {
	title := fmt.Sprintf("%s HISTORY", strings.ToUpper(string(kind)))
	if len(history) == 0 {
		p.printBox(title, "No versions yet.")
		return
	}

	var sb strings.Builder
	for i, v := range history {
		sb.WriteString(fmt.Sprintf("v%d  by %s at %s\n", v.Version, v.CreatedBy, v.CreatedAt.Format("2006-01-02 15:04:05")))
		first, _, _ := strings.Cut(strings.TrimSpace(v.Content), "\n")
		sb.WriteString("    " + first + "\n")
		if i < len(history)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSummaries outputs one line per run.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintSummaries(summaries []state.Summary) {
	if len(summaries) == 0 {
		fmt.Fprintln(p.out, "No runs found.")
		return
	}
	for _, s := range summaries {
		fmt.Fprintf(p.out, "%-36s  %-16s  %-20s  $%.4f\n", s.SessionKey, s.Status, s.Stage, s.AccumulatedCost)
	}
}

// PrintEvaluation outputs a verdict and its issues.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintEvaluation(result *types.EvaluationResult) {
	if result == nil {
		return
	}
	if len(result.Issues) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, fmt.Sprintf("%s %s (%.0f): NO ISSUES FOUND", result.Kind, result.Verdict, result.Score))
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Verdict: %s (score %.0f)\n", result.Verdict, result.Score))
	sb.WriteString(fmt.Sprintf("Found %d issues:\n\n", len(result.Issues)))
	for i, issue := range result.Issues {
		sb.WriteString(fmt.Sprintf("⚠ %s\n", issue.Type))
		sb.WriteString(fmt.Sprintf("  %s\n", issue.Description))
		if i < len(result.Issues)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox(strings.ToUpper(string(result.Kind))+" EVALUATION", strings.TrimSuffix(sb.String(), "\n"))
}

func excerpt(content string) string {
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	var sb strings.Builder
	count := min(len(lines), maxContentLines)
	for i := 0; i < count; i++ {
		sb.WriteString("  " + lines[i] + "\n")
	}
	if len(lines) > maxContentLines {
		sb.WriteString(fmt.Sprintf("  ... %d more lines\n", len(lines)-maxContentLines))
	}
	return sb.String()
}
