package cli

import (
	"fmt"
	"io"
	"sbt/internal/apperrors"
	"sbt/internal/pipeline"

	"github.com/fatih/color"
)

var (
	okColor      = color.New(color.FgGreen)
	failColor    = color.New(color.FgRed, color.Bold)
	headingColor = color.New(color.FgHiWhite, color.Bold)
)

// printReport writes a per-job summary of the run. Colors are disabled
// automatically when w is not a terminal.
func printReport(w io.Writer, report *pipeline.Report) {
	headingColor.Fprintf(w, "%s: %d job script(s) in %s\n", report.Config.Name, len(report.Artifacts), report.Config.Logdir)

	if report.Summary == nil {
		for _, a := range report.Artifacts {
			fmt.Fprintf(w, "  %-9s %s\n", "written", a.JobName)
		}
	} else {
		for _, r := range report.Summary.Results {
			if r.OK() {
				id := r.Submission.JobID
				if id == "" {
					id = "-"
				}
				okColor.Fprintf(w, "  %-9s", "submitted")
				fmt.Fprintf(w, " %s (%s)\n", r.Artifact.JobName, id)
				continue
			}
			failColor.Fprintf(w, "  %-9s", "failed")
			fmt.Fprintf(w, " %s [%s]: %v\n", r.Artifact.JobName, apperrors.FormatValues(r.Artifact.Values), r.Err)
		}
		s := report.Summary
		if s.Failed > 0 {
			failColor.Fprintf(w, "%d of %d submissions failed\n", s.Failed, s.Total)
		} else {
			okColor.Fprintf(w, "%d of %d submitted\n", s.Submitted, s.Total)
		}
	}

	if report.Manifest != "" {
		fmt.Fprintf(w, "manifest: %s\n", report.Manifest)
	}
}
