package analyzer

import (
	"context"

	"github.com/google/uuid"

	"github.com/opsaudit/k8s-deploy-auditor/pkg/client"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/models"
)

// Analyzer is the contract every analysis objective implements. All
// analyzers are read-only: they fetch deployment state through the
// shared client and derive findings from it, never mutating anything.
type Analyzer interface {
	// Name returns the stable objective identifier ("health", "config", ...).
	Name() string

	// EstimatedCalls returns the expected number of remote calls one
	// Analyze invocation makes. Advisory, used for planning only.
	EstimatedCalls() int

	// RequiredPermissions lists the RBAC verbs/resources the analyzer
	// needs. Advisory, surfaced to callers before a run.
	RequiredPermissions() []string

	// Preflight is a cheap readiness probe. A non-nil error means the
	// objective cannot run; Analyze is never called for it.
	Preflight(ctx context.Context, c client.Client) error

	// Analyze runs the analysis. It is the only operation allowed to
	// consume meaningful call budget. Errors are converted into failed
	// results by the caller, never propagated.
	Analyze(ctx context.Context, c client.Client) (*models.AnalyzerResult, error)

	// Cleanup releases any per-run state. Best effort; errors are
	// logged by the caller and never surfaced.
	Cleanup() error
}

// newFinding fills in the identity fields common to all analyzers.
func newFinding(category string, severity models.Severity, title string) models.Finding {
	return models.Finding{
		ID:       uuid.New().String(),
		Category: category,
		Severity: severity,
		Title:    title,
	}
}

// newRecommendation creates a recommendation linked to the findings
// that motivated it.
func newRecommendation(recType string, priority models.Priority, title string, findings ...models.Finding) models.Recommendation {
	rec := models.Recommendation{
		ID:       uuid.New().String(),
		Type:     recType,
		Priority: priority,
		Title:    title,
	}
	for _, f := range findings {
		rec.RelatedFindings = append(rec.RelatedFindings, f.ID)
	}
	return rec
}
