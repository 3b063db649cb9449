package models

// Priority represents how urgently a recommendation should be acted on
type Priority string

const (
	PriorityP0 Priority = "p0"
	PriorityP1 Priority = "p1"
	PriorityP2 Priority = "p2"
	PriorityP3 Priority = "p3"
)

// Effort represents the estimated implementation effort
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// Recommendation represents an actionable improvement derived from
// one or more findings. Owned by the AnalyzerResult that produced it.
type Recommendation struct {
	ID                   string   `json:"id"`
	Type                 string   `json:"type"`
	Priority             Priority `json:"priority"`
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	Rationale            string   `json:"rationale"`
	ImplementationSteps  []string `json:"implementation_steps,omitempty"`
	ImplementationEffort Effort   `json:"implementation_effort"`
	ImpactEstimate       string   `json:"impact_estimate,omitempty"`
	RelatedFindings      []string `json:"related_findings,omitempty"`
}
