package models

// Severity classifies how serious a finding is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank is used for sorting findings in reports (critical first)
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
}

// Rank returns the sort rank of the severity, lower is more severe.
// Unknown severities sort last.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// Finding represents a single issue discovered by an analyzer.
// Findings are immutable once created and owned by the AnalyzerResult
// that produced them.
type Finding struct {
	ID                 string                 `json:"id"`
	Category           string                 `json:"category"`
	Severity           Severity               `json:"severity"`
	Title              string                 `json:"title"`
	Description        string                 `json:"description"`
	AffectedComponents []string               `json:"affected_components,omitempty"`
	RemediationSteps   []string               `json:"remediation_steps,omitempty"`
	ConfidenceLevel    float64                `json:"confidence_level"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
}
