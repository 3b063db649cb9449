package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/opsaudit/k8s-deploy-auditor/pkg/client"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/models"
)

const (
	defaultLookback = 7 * 24 * time.Hour
	defaultStep     = 5 * time.Minute
)

// PerformanceAnalyzer studies CPU and memory behavior over a
// Prometheus lookback window: distribution percentiles, usage pattern
// and growth trend.
type PerformanceAnalyzer struct {
	Lookback time.Duration
	Step     time.Duration
}

func NewPerformanceAnalyzer() *PerformanceAnalyzer {
	return &PerformanceAnalyzer{Lookback: defaultLookback, Step: defaultStep}
}

func (a *PerformanceAnalyzer) Name() string        { return "performance" }
func (a *PerformanceAnalyzer) EstimatedCalls() int { return 3 }

func (a *PerformanceAnalyzer) RequiredPermissions() []string {
	return []string{"query prometheus"}
}

func (a *PerformanceAnalyzer) Preflight(ctx context.Context, c client.Client) error {
	if !c.PrometheusAvailable(ctx) {
		return fmt.Errorf("prometheus endpoint is not available")
	}
	return nil
}

func (a *PerformanceAnalyzer) Cleanup() error { return nil }

func (a *PerformanceAnalyzer) Analyze(ctx context.Context, c client.Client) (*models.AnalyzerResult, error) {
	result := models.NewAnalyzerResult(a.Name())
	target := c.Target()

	cpuQuery := fmt.Sprintf(`sum(rate(container_cpu_usage_seconds_total{namespace=%q,pod=~"%s-.*"}[5m]))`, target.Namespace, target.Name)
	cpuSamples, err := c.QueryRange(ctx, cpuQuery, a.Lookback, a.Step)
	if err != nil {
		return nil, fmt.Errorf("CPU query failed: %w", err)
	}

	memQuery := fmt.Sprintf(`sum(container_memory_working_set_bytes{namespace=%q,pod=~"%s-.*"})`, target.Namespace, target.Name)
	memSamples, err := c.QueryRange(ctx, memQuery, a.Lookback, a.Step)
	if err != nil {
		return nil, fmt.Errorf("memory query failed: %w", err)
	}

	cpuStats, err := calculatePercentiles(cpuSamples)
	if err != nil {
		return nil, fmt.Errorf("CPU percentiles: %w", err)
	}
	memStats, err := calculatePercentiles(memSamples)
	if err != nil {
		return nil, fmt.Errorf("memory percentiles: %w", err)
	}

	result.Metadata["cpu_p95_cores"] = cpuStats.P95
	result.Metadata["cpu_peak_cores"] = cpuStats.Peak
	result.Metadata["memory_p95_bytes"] = memStats.P95
	result.Metadata["memory_peak_bytes"] = memStats.Peak
	result.Metadata["sample_count"] = len(cpuSamples)

	pattern := classifyUsagePattern(cpuSamples)
	result.Metadata["cpu_pattern"] = pattern.Type

	if pattern.Type == "spiky" || pattern.Type == "highly-variable" {
		f := newFinding("performance", models.SeverityInfo, "CPU usage is spiky")
		f.Description = fmt.Sprintf("CPU varies strongly over the window (coefficient of variation %.2f)", pattern.Variation)
		f.ConfidenceLevel = pattern.Confidence
		result.AddFinding(f)
	}

	// memory trend matters more than CPU: a growing working set usually
	// means a leak or unbounded cache
	trend, err := calculateGrowthTrend(memSamples)
	if err == nil {
		result.Metadata["memory_growth_pct_per_month"] = trend.RatePerMonth

		if trend.IsGrowing && trend.Confidence > 0.5 {
			f := newFinding("performance", models.SeverityMedium, "Memory usage is trending upward")
			f.Description = fmt.Sprintf("working set grows ~%.1f%% per month (fit confidence %.2f)", trend.RatePerMonth, trend.Confidence)
			f.RemediationSteps = []string{"Profile the process for leaks or unbounded caches"}
			f.ConfidenceLevel = trend.Confidence
			result.AddFinding(f)

			rec := newRecommendation("capacity-planning", models.PriorityP2, "Investigate memory growth", f)
			rec.Description = "Memory use climbs steadily across the lookback window."
			rec.Rationale = "Sustained growth ends in OOM kills once requests are exhausted."
			rec.ImplementationEffort = models.EffortMedium
			result.AddRecommendation(rec)
		}
	}

	if cpuStats.Peak > 0 && cpuStats.Average > 0 && cpuStats.Peak > cpuStats.Average*10 {
		f := newFinding("performance", models.SeverityLow, "Large gap between average and peak CPU")
		f.Description = fmt.Sprintf("peak %.2f cores vs average %.2f cores; bursts may be throttled", cpuStats.Peak, cpuStats.Average)
		f.ConfidenceLevel = 0.7
		result.AddFinding(f)
	}

	return result, nil
}
