package models

// AnalyzerResult is the outcome of running a single analyzer against a
// deployment. A fresh result is created per invocation and is only
// mutated by the analyzer that owns it during its own execution.
type AnalyzerResult struct {
	Objective       string                 `json:"objective"`
	Success         bool                   `json:"success"`
	Error           string                 `json:"error,omitempty"`
	Findings        []Finding              `json:"findings"`
	Recommendations []Recommendation       `json:"recommendations"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// NewAnalyzerResult creates an empty successful result for an objective.
// Analyzers populate it during Analyze.
func NewAnalyzerResult(objective string) *AnalyzerResult {
	return &AnalyzerResult{
		Objective: objective,
		Success:   true,
		Metadata:  make(map[string]interface{}),
	}
}

// NewFailedResult creates a failed result carrying an error message.
func NewFailedResult(objective, errMsg string) *AnalyzerResult {
	return &AnalyzerResult{
		Objective: objective,
		Success:   false,
		Error:     errMsg,
	}
}

// AddFinding appends a finding to the result.
func (r *AnalyzerResult) AddFinding(f Finding) {
	r.Findings = append(r.Findings, f)
}

// AddRecommendation appends a recommendation to the result.
func (r *AnalyzerResult) AddRecommendation(rec Recommendation) {
	r.Recommendations = append(r.Recommendations, rec)
}
