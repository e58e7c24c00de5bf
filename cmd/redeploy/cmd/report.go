package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/ruffel/redeploy/internal/deploy"
)

var statusIcons = map[deploy.Status]string{
	deploy.StatusOK:      "✓",
	deploy.StatusIgnored: "!",
	deploy.StatusFailed:  "✗",
	deploy.StatusSkipped: "-",
}

// printPlan lists the steps without running them.
func printPlan(w io.Writer, steps []deploy.Step) {
	for i, s := range steps {
		_, _ = fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf("%d. %-18s %s", i+1, s.Name, s.Policy)))
	}
}

// printReport renders one line per step and a closing verdict.
func printReport(w io.Writer, report *deploy.Report, err error) {
	for _, s := range report.Steps {
		line := fmt.Sprintf("%s %-18s %-8s %s", statusIcons[s.Status], s.Name, s.Status, s.Duration.Round(time.Millisecond))
		if s.Err != nil {
			line += "  " + s.Err.Error()
		}

		_, _ = fmt.Fprintln(w, styleFor(s.Status).Render(line))
	}

	if err != nil {
		_, _ = fmt.Fprintln(w, errorStyle.Render("DEPLOYMENT FAILED: "+err.Error()))

		return
	}

	_, _ = fmt.Fprintln(w, checkStyle.Render(fmt.Sprintf("DEPLOYMENT SUCCESSFUL (took %s)", report.Duration.Round(time.Millisecond))))
}

func styleFor(s deploy.Status) lipgloss.Style {
	switch s {
	case deploy.StatusOK:
		return infoStyle
	case deploy.StatusIgnored:
		return warnStyle
	case deploy.StatusFailed:
		return errorStyle.MarginTop(0).MarginLeft(2)
	case deploy.StatusSkipped:
		return mutedStyle
	default:
		return mutedStyle
	}
}
