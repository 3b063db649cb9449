package orchestrator

import "github.com/opsaudit/k8s-deploy-auditor/pkg/models"

// ResultSet holds per-objective results in attempt order. Go maps do
// not preserve insertion order, so the order and the lookup table live
// together in one value.
type ResultSet struct {
	order   []string
	results map[string]*models.AnalyzerResult
}

// NewResultSet creates an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{results: make(map[string]*models.AnalyzerResult)}
}

// Add records a result under its objective. Adding the same objective
// twice replaces the result but keeps its original position.
func (rs *ResultSet) Add(result *models.AnalyzerResult) {
	if _, exists := rs.results[result.Objective]; !exists {
		rs.order = append(rs.order, result.Objective)
	}
	rs.results[result.Objective] = result
}

// Get returns the result for an objective, if it was attempted.
func (rs *ResultSet) Get(objective string) (*models.AnalyzerResult, bool) {
	r, ok := rs.results[objective]
	return r, ok
}

// Objectives returns the attempted objective names in attempt order.
func (rs *ResultSet) Objectives() []string {
	out := make([]string, len(rs.order))
	copy(out, rs.order)
	return out
}

// Results returns all results in attempt order.
func (rs *ResultSet) Results() []*models.AnalyzerResult {
	out := make([]*models.AnalyzerResult, 0, len(rs.order))
	for _, name := range rs.order {
		out = append(out, rs.results[name])
	}
	return out
}

// Len returns the number of attempted objectives.
func (rs *ResultSet) Len() int {
	return len(rs.order)
}

// FailedCount returns the number of unsuccessful results.
func (rs *ResultSet) FailedCount() int {
	n := 0
	for _, r := range rs.results {
		if !r.Success {
			n++
		}
	}
	return n
}
