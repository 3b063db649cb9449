package analyzer

import (
	"context"
	"fmt"
	"sort"

	corev1 "k8s.io/api/core/v1"

	"github.com/opsaudit/k8s-deploy-auditor/pkg/client"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/models"
)

const restartThreshold = 5

// HealthAnalyzer checks replica readiness, container restart behavior
// and recent warning events for the deployment.
type HealthAnalyzer struct{}

func NewHealthAnalyzer() *HealthAnalyzer { return &HealthAnalyzer{} }

func (a *HealthAnalyzer) Name() string        { return "health" }
func (a *HealthAnalyzer) EstimatedCalls() int { return 3 }

func (a *HealthAnalyzer) RequiredPermissions() []string {
	return []string{"get deployments", "list pods", "list events"}
}

func (a *HealthAnalyzer) Preflight(ctx context.Context, c client.Client) error {
	return c.Ping(ctx)
}

func (a *HealthAnalyzer) Cleanup() error { return nil }

func (a *HealthAnalyzer) Analyze(ctx context.Context, c client.Client) (*models.AnalyzerResult, error) {
	result := models.NewAnalyzerResult(a.Name())

	deploy, err := c.GetDeployment(ctx)
	if err != nil {
		return nil, err
	}

	desired := int32(1)
	if deploy.Spec.Replicas != nil {
		desired = *deploy.Spec.Replicas
	}
	ready := deploy.Status.ReadyReplicas

	result.Metadata["desired_replicas"] = desired
	result.Metadata["ready_replicas"] = ready

	if ready < desired {
		severity := models.SeverityHigh
		if ready == 0 {
			severity = models.SeverityCritical
		}
		f := newFinding("availability", severity, "Deployment is not fully available")
		f.Description = fmt.Sprintf("%d of %d replicas are ready", ready, desired)
		f.AffectedComponents = []string{deploy.Name}
		f.RemediationSteps = []string{
			"Inspect pod status and events for the unavailable replicas",
			"Check recent rollouts with kubectl rollout history",
		}
		f.ConfidenceLevel = 1.0
		result.AddFinding(f)
	}

	pods, err := c.ListPods(ctx)
	if err != nil {
		return nil, err
	}

	var crashFindings []models.Finding
	for _, pod := range pods {
		for _, cs := range pod.Status.ContainerStatuses {
			if waiting := cs.State.Waiting; waiting != nil && waiting.Reason == "CrashLoopBackOff" {
				f := newFinding("stability", models.SeverityCritical, "Container is crash looping")
				f.Description = fmt.Sprintf("container %q in pod %q is in CrashLoopBackOff", cs.Name, pod.Name)
				f.AffectedComponents = []string{pod.Name + "/" + cs.Name}
				f.RemediationSteps = []string{"Check container logs with kubectl logs --previous"}
				f.ConfidenceLevel = 1.0
				result.AddFinding(f)
				crashFindings = append(crashFindings, f)
				continue
			}
			if cs.RestartCount > restartThreshold {
				f := newFinding("stability", models.SeverityMedium, "Container restarts frequently")
				f.Description = fmt.Sprintf("container %q in pod %q restarted %d times", cs.Name, pod.Name, cs.RestartCount)
				f.AffectedComponents = []string{pod.Name + "/" + cs.Name}
				f.ConfidenceLevel = 0.9
				result.AddFinding(f)
			}
		}
	}

	if len(crashFindings) > 0 {
		rec := newRecommendation("stability", models.PriorityP0, "Stabilize crash-looping containers", crashFindings...)
		rec.Description = "One or more containers repeatedly fail to start."
		rec.Rationale = "A crash-looping container makes the deployment unreliable regardless of replica count."
		rec.ImplementationSteps = []string{
			"Review container logs from the last failed start",
			"Verify configuration and secrets mounted into the container",
			"Check liveness probe thresholds for overly aggressive settings",
		}
		rec.ImplementationEffort = models.EffortMedium
		result.AddRecommendation(rec)
	}

	events, err := c.ListWarningEvents(ctx)
	if err != nil {
		return nil, err
	}

	byReason := make(map[string]int)
	for _, ev := range events {
		if involvesDeployment(ev, deploy.Name) {
			byReason[ev.Reason]++
		}
	}
	result.Metadata["warning_events"] = byReason

	reasons := make([]string, 0, len(byReason))
	for reason := range byReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	for _, reason := range reasons {
		count := byReason[reason]
		if count < 3 {
			continue
		}
		f := newFinding("events", models.SeverityLow, "Recurring warning events")
		f.Description = fmt.Sprintf("%d warning events with reason %q target this deployment", count, reason)
		f.ConfidenceLevel = 0.7
		result.AddFinding(f)
	}

	return result, nil
}

// involvesDeployment matches events against the deployment or pods
// derived from it (pod names carry the deployment name as a prefix).
func involvesDeployment(ev corev1.Event, name string) bool {
	obj := ev.InvolvedObject
	if obj.Kind == "Deployment" && obj.Name == name {
		return true
	}
	return len(obj.Name) > len(name) && obj.Name[:len(name)] == name
}
