package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"github.com/opsaudit/k8s-deploy-auditor/pkg/models"
)

// BuildAnalysisRun folds per-objective results into one aggregate run
// record with a derived status. Findings and recommendations keep each
// result's internal order, iterated in attempt order, so building the
// same result set twice yields identical ordering.
func BuildAnalysisRun(results *ResultSet, deploymentID string, duration time.Duration, callsUsed int) *models.AnalysisRun {
	run := &models.AnalysisRun{
		ID:                 uuid.New().String(),
		DeploymentID:       deploymentID,
		ObjectivesAnalyzed: results.Objectives(),
		APICallsUsed:       callsUsed,
		DurationSeconds:    duration.Seconds(),
		// non-nil so a clean run serializes them as [] rather than null
		Findings:        []models.Finding{},
		Recommendations: []models.Recommendation{},
		GeneratedAt:     time.Now().UTC(),
	}

	for _, r := range results.Results() {
		run.Findings = append(run.Findings, r.Findings...)
		run.Recommendations = append(run.Recommendations, r.Recommendations...)
	}

	run.Status = deriveStatus(results)
	run.PartialCompletion = run.Status == models.RunPartial

	return run
}

// deriveStatus maps failure counts to a run status. A run with no
// results at all counts as failed: nothing was analyzed.
func deriveStatus(results *ResultSet) models.RunStatus {
	failed := results.FailedCount()
	switch {
	case results.Len() == 0:
		return models.RunFailed
	case failed == 0:
		return models.RunCompleted
	case failed < results.Len():
		return models.RunPartial
	default:
		return models.RunFailed
	}
}
