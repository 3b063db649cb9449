package models

import "time"

// RunStatus represents the aggregate outcome of an analysis run
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// AnalysisRun is the aggregate report of one orchestrated run against a
// deployment. It is built once at the end of a run and never mutated.
type AnalysisRun struct {
	ID                 string           `json:"id"`
	DeploymentID       string           `json:"deployment_id"`
	Status             RunStatus        `json:"status"`
	ObjectivesAnalyzed []string         `json:"objectives_analyzed"`
	APICallsUsed       int              `json:"api_calls_used"`
	DurationSeconds    float64          `json:"duration_seconds"`
	Findings           []Finding        `json:"findings"`
	Recommendations    []Recommendation `json:"recommendations"`
	PartialCompletion  bool             `json:"partial_completion"`
	GeneratedAt        time.Time        `json:"generated_at"`
}
