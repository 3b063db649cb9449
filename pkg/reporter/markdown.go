package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/opsaudit/k8s-deploy-auditor/pkg/models"
)

type markdownReporter struct{}

func (r *markdownReporter) Render(w io.Writer, run *models.AnalysisRun) error {
	var b strings.Builder

	b.WriteString("# Deployment Analysis Report\n\n")
	fmt.Fprintf(&b, "- **Deployment:** %s\n", run.DeploymentID)
	fmt.Fprintf(&b, "- **Status:** %s\n", run.Status)
	fmt.Fprintf(&b, "- **Objectives:** %s\n", strings.Join(run.ObjectivesAnalyzed, ", "))
	fmt.Fprintf(&b, "- **API calls used:** %d\n", run.APICallsUsed)
	fmt.Fprintf(&b, "- **Duration:** %.1fs\n", run.DurationSeconds)
	fmt.Fprintf(&b, "- **Generated:** %s\n\n", run.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))

	if run.PartialCompletion {
		b.WriteString("> Some objectives failed; this report is partial.\n\n")
	}

	b.WriteString("## Findings\n\n")
	if len(run.Findings) == 0 {
		b.WriteString("No findings.\n\n")
	} else {
		// severity-major ordering, stable within a severity
		findings := make([]models.Finding, len(run.Findings))
		copy(findings, run.Findings)
		sort.SliceStable(findings, func(i, j int) bool {
			return findings[i].Severity.Rank() < findings[j].Severity.Rank()
		})

		b.WriteString("| Severity | Category | Title | Confidence |\n")
		b.WriteString("|----------|----------|-------|------------|\n")
		for _, f := range findings {
			fmt.Fprintf(&b, "| %s | %s | %s | %.0f%% |\n",
				strings.ToUpper(string(f.Severity)), f.Category, f.Title, f.ConfidenceLevel*100)
		}
		b.WriteString("\n")

		for _, f := range findings {
			fmt.Fprintf(&b, "### %s\n\n%s\n\n", f.Title, f.Description)
			if len(f.AffectedComponents) > 0 {
				fmt.Fprintf(&b, "**Affected:** %s\n\n", strings.Join(f.AffectedComponents, ", "))
			}
			for _, step := range f.RemediationSteps {
				fmt.Fprintf(&b, "- %s\n", step)
			}
			if len(f.RemediationSteps) > 0 {
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("## Recommendations\n\n")
	if len(run.Recommendations) == 0 {
		b.WriteString("No recommendations.\n")
	} else {
		for _, rec := range run.Recommendations {
			fmt.Fprintf(&b, "### [%s] %s\n\n", strings.ToUpper(string(rec.Priority)), rec.Title)
			fmt.Fprintf(&b, "%s\n\n", rec.Description)
			if rec.Rationale != "" {
				fmt.Fprintf(&b, "*Why:* %s\n\n", rec.Rationale)
			}
			for _, step := range rec.ImplementationSteps {
				fmt.Fprintf(&b, "1. %s\n", step)
			}
			if rec.ImpactEstimate != "" {
				fmt.Fprintf(&b, "\n**Estimated impact:** %s\n", rec.ImpactEstimate)
			}
			fmt.Fprintf(&b, "\n**Effort:** %s\n\n", rec.ImplementationEffort)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
