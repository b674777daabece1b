package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shinji-kodama/vercel-deploy/internal/gitmeta"
	"github.com/shinji-kodama/vercel-deploy/internal/model"
)

// reportJSON is the JSON output of a run. Duration is rendered as a
// string ("12.3s") rather than nanoseconds.
type reportJSON struct {
	*model.Report
	Duration string `json:"duration"`
}

// writeReportJSON prints the report as indented JSON.
func writeReportJSON(w io.Writer, r *model.Report) error {
	data, err := json.MarshalIndent(reportJSON{
		Report:   r,
		Duration: r.Duration.Round(time.Millisecond).String(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// writeReportText prints a short run summary.
func writeReportText(w io.Writer, r *model.Report) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run:      %s\n", r.RunID)
	fmt.Fprintf(w, "Project:  %s (%s)\n", r.ProjectName, r.ProjectDir)
	if r.Git != nil {
		fmt.Fprintf(w, "Git:      %s @ %s\n", r.Git.Branch, gitmeta.ShortCommit(r.Git.Commit))
	}
	if r.ToolVersion != "" {
		version := r.ToolVersion
		if r.Installed {
			version += " (installed)"
		}
		fmt.Fprintf(w, "Tool:     %s\n", version)
	}
	for i, a := range r.Attempts {
		label := "Attempts:"
		if i > 0 {
			label = ""
		}
		fmt.Fprintf(w, "%-9s %s\n", label, formatAttempt(a))
	}

	outcome := "ok"
	if !r.Succeeded() {
		outcome = fmt.Sprintf("exit %d", r.ExitCode)
	}
	fmt.Fprintf(w, "Result:   %s in %s\n", outcome, r.Duration.Round(100*time.Millisecond))
}

// formatAttempt renders one attempt as "[kind] command args → status".
func formatAttempt(a model.Attempt) string {
	cmd := a.Command
	if len(a.Args) > 0 {
		cmd += " " + strings.Join(a.Args, " ")
	}
	status := fmt.Sprintf("exit %d", a.ExitCode)
	if a.Error != "" {
		status = a.Error
	}
	return fmt.Sprintf("[%s] %s → %s", a.Kind, cmd, status)
}
