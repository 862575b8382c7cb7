package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/felixgeelhaar/vpsctl/internal/domain/config"
	"github.com/felixgeelhaar/vpsctl/internal/domain/execution"
	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
)

var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "#40a02b", Dark: "#a6e3a1"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#df8e1d", Dark: "#f9e2af"}
	colorError   = lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6c6f85", Dark: "#6c7086"}
	colorPrimary = lipgloss.AdaptiveColor{Light: "#1e66f5", Dark: "#89b4fa"}

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)

	outcomeStyles = map[execution.Outcome]lipgloss.Style{
		execution.OutcomeSkipped:   mutedStyle,
		execution.OutcomeSucceeded: lipgloss.NewStyle().Foreground(colorSuccess),
		execution.OutcomeWarned:    lipgloss.NewStyle().Foreground(colorWarning),
		execution.OutcomeFailed:    lipgloss.NewStyle().Bold(true).Foreground(colorError),
	}

	statusStyles = map[step.Status]lipgloss.Style{
		step.StatusSatisfied:  mutedStyle,
		step.StatusNeedsApply: lipgloss.NewStyle().Foreground(colorWarning),
		step.StatusUnknown:    lipgloss.NewStyle().Foreground(colorError),
	}

	titleCase = cases.Title(language.English)
)

const labelWidth = 12

func label(style lipgloss.Style, text string) string {
	return style.Width(labelWidth).Render(text)
}

// printReport prints one line per result, the warnings and a summary.
func printReport(w io.Writer, kind config.RunKind, report *execution.Report) {
	_, _ = fmt.Fprintln(w, titleStyle.Render(titleCase.String(string(kind)+" playbook")))

	for _, res := range report.Results {
		_, _ = fmt.Fprintf(w, "  %s %s %s\n",
			label(outcomeStyles[res.Outcome()], res.Outcome().String()),
			res.StepID(),
			mutedStyle.Render(res.Duration().Round(time.Millisecond).String()))
	}

	if warnings := report.Warnings(); len(warnings) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, outcomeStyles[execution.OutcomeWarned].Render("Warnings:"))
		for _, res := range warnings {
			_, _ = fmt.Fprintf(w, "  - %s: %s\n", res.StepID(), res.ErrorDetail())
		}
	}

	s := report.Summary()
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "%s in %s: %d succeeded, %d skipped, %d warned, %d failed\n",
		titleCase.String(string(report.State)),
		report.Duration().Round(time.Millisecond),
		s.Succeeded, s.Skipped, s.Warned, s.Failed)
}

// printPlan prints every step with the status its Check reported.
func printPlan(w io.Writer, kind config.RunKind, plan *execution.Plan, verboseOutput bool) {
	_, _ = fmt.Fprintln(w, titleStyle.Render(titleCase.String(string(kind)+" plan")))

	explain := step.NewExplainContext().WithVerbose(verboseOutput)
	for _, entry := range plan.Entries() {
		status := entry.Status()
		exp := entry.Step().Explain(explain)
		_, _ = fmt.Fprintf(w, "  %s %s  %s\n",
			label(statusStyles[status], status.String()),
			entry.Step().ID(),
			mutedStyle.Render(exp.Summary()))
		if verboseOutput && exp.Detail() != "" {
			_, _ = fmt.Fprintf(w, "  %s %s\n", strings.Repeat(" ", labelWidth), exp.Detail())
		}
		if err := entry.Error(); err != nil {
			_, _ = fmt.Fprintf(w, "  %s %s\n", strings.Repeat(" ", labelWidth),
				outcomeStyles[execution.OutcomeFailed].Render(err.Error()))
		}
	}

	s := plan.Summary()
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "%d steps: %d to apply, %d satisfied, %d unknown\n",
		s.Total, s.NeedsApply, s.Satisfied, s.Unknown)
}
