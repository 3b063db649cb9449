package analyzer

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"

	"github.com/opsaudit/k8s-deploy-auditor/pkg/client"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/models"
)

const (
	lowUtilizationPct  = 20.0
	highUtilizationPct = 90.0
)

// CapacityAnalyzer compares requested resources against live usage
// from the metrics API and checks autoscaling coverage.
type CapacityAnalyzer struct{}

func NewCapacityAnalyzer() *CapacityAnalyzer { return &CapacityAnalyzer{} }

func (a *CapacityAnalyzer) Name() string        { return "capacity" }
func (a *CapacityAnalyzer) EstimatedCalls() int { return 4 }

func (a *CapacityAnalyzer) RequiredPermissions() []string {
	return []string{"get deployments", "list pods", "list horizontalpodautoscalers", "get pods.metrics.k8s.io"}
}

// Preflight fails when the metrics API is unreachable; without it the
// analyzer has nothing to compare requests against.
func (a *CapacityAnalyzer) Preflight(ctx context.Context, c client.Client) error {
	if !c.MetricsAvailable(ctx) {
		return fmt.Errorf("metrics API is not available")
	}
	return nil
}

func (a *CapacityAnalyzer) Cleanup() error { return nil }

func (a *CapacityAnalyzer) Analyze(ctx context.Context, c client.Client) (*models.AnalyzerResult, error) {
	result := models.NewAnalyzerResult(a.Name())

	pods, err := c.ListPods(ctx)
	if err != nil {
		return nil, err
	}

	podMetrics, err := c.PodMetrics(ctx)
	if err != nil {
		return nil, err
	}

	// usage lookup: pod -> container -> (cpu millicores, memory bytes)
	usage := make(map[string]map[string][2]int64)
	for _, pm := range podMetrics {
		usage[pm.Name] = make(map[string][2]int64)
		for _, container := range pm.Containers {
			cpu := container.Usage[corev1.ResourceCPU]
			mem := container.Usage[corev1.ResourceMemory]
			usage[pm.Name][container.Name] = [2]int64{cpu.MilliValue(), mem.Value()}
		}
	}

	var requestedCPU, actualCPU, requestedMem, actualMem int64
	for _, pod := range pods {
		for _, container := range pod.Spec.Containers {
			if cpu, ok := container.Resources.Requests[corev1.ResourceCPU]; ok {
				requestedCPU += cpu.MilliValue()
			}
			if mem, ok := container.Resources.Requests[corev1.ResourceMemory]; ok {
				requestedMem += mem.Value()
			}
			if pm, ok := usage[pod.Name]; ok {
				if u, ok := pm[container.Name]; ok {
					actualCPU += u[0]
					actualMem += u[1]
				}
			}
		}
	}

	cpuUtil := utilizationPct(actualCPU, requestedCPU)
	memUtil := utilizationPct(actualMem, requestedMem)
	result.Metadata["cpu_utilization_pct"] = cpuUtil
	result.Metadata["memory_utilization_pct"] = memUtil
	result.Metadata["requested_cpu_millicores"] = requestedCPU
	result.Metadata["requested_memory_bytes"] = requestedMem

	if requestedCPU > 0 && cpuUtil < lowUtilizationPct {
		f := newFinding("capacity", models.SeverityMedium, "CPU requests are heavily overprovisioned")
		f.Description = fmt.Sprintf("pods use %.1f%% of the %dm CPU they request", cpuUtil, requestedCPU)
		f.ConfidenceLevel = 0.7 // instant reading, not a window
		result.AddFinding(f)

		rec := newRecommendation("right-sizing", models.PriorityP2, "Lower CPU requests toward observed usage", f)
		rec.Description = "Reclaim unused CPU reservations."
		rec.Rationale = "Overprovisioned requests block cluster capacity other workloads could use."
		rec.ImplementationEffort = models.EffortLow
		rec.ImpactEstimate = fmt.Sprintf("frees up to %dm reserved CPU", requestedCPU-actualCPU)
		result.AddRecommendation(rec)
	}

	if requestedMem > 0 && memUtil > highUtilizationPct {
		f := newFinding("capacity", models.SeverityHigh, "Memory usage is close to requests")
		f.Description = fmt.Sprintf("pods use %.1f%% of requested memory; OOM risk under load", memUtil)
		f.RemediationSteps = []string{"Raise memory requests/limits or reduce per-pod footprint"}
		f.ConfidenceLevel = 0.8
		result.AddFinding(f)
	}

	hpa, err := c.FindHPA(ctx)
	if err != nil {
		return nil, err
	}
	result.Metadata["has_hpa"] = hpa != nil

	if hpa == nil && len(pods) > 1 {
		f := newFinding("capacity", models.SeverityInfo, "Deployment has no HorizontalPodAutoscaler")
		f.Description = fmt.Sprintf("deployment runs %d replicas with a fixed count", len(pods))
		f.ConfidenceLevel = 1.0
		result.AddFinding(f)

		rec := newRecommendation("autoscaling", models.PriorityP3, "Consider adding an HPA", f)
		rec.Description = "Scale replicas with demand instead of a fixed count."
		rec.Rationale = "Multi-replica deployments without autoscaling overpay at night and underserve at peak."
		rec.ImplementationEffort = models.EffortLow
		result.AddRecommendation(rec)
	}

	return result, nil
}

func utilizationPct(actual, requested int64) float64 {
	if requested <= 0 {
		return 0
	}
	return float64(actual) / float64(requested) * 100.0
}
