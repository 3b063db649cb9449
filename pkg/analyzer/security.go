package analyzer

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"

	"github.com/opsaudit/k8s-deploy-auditor/pkg/client"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/models"
)

// SecurityAnalyzer inspects pod and container security contexts for
// risky settings. It only reads the pod spec, never secret contents.
type SecurityAnalyzer struct{}

func NewSecurityAnalyzer() *SecurityAnalyzer { return &SecurityAnalyzer{} }

func (a *SecurityAnalyzer) Name() string        { return "security" }
func (a *SecurityAnalyzer) EstimatedCalls() int { return 1 }

func (a *SecurityAnalyzer) RequiredPermissions() []string {
	return []string{"list pods"}
}

func (a *SecurityAnalyzer) Preflight(ctx context.Context, c client.Client) error { return nil }
func (a *SecurityAnalyzer) Cleanup() error                                       { return nil }

func (a *SecurityAnalyzer) Analyze(ctx context.Context, c client.Client) (*models.AnalyzerResult, error) {
	result := models.NewAnalyzerResult(a.Name())

	pods, err := c.ListPods(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var hardeningFindings []models.Finding

	for _, pod := range pods {
		if pod.Spec.HostNetwork || pod.Spec.HostPID {
			key := "host-namespaces/" + pod.Spec.NodeName
			if !seen[key] {
				seen[key] = true
				f := newFinding("security", models.SeverityHigh, "Pod shares host namespaces")
				f.Description = fmt.Sprintf("pod %q runs with hostNetwork=%t hostPID=%t", pod.Name, pod.Spec.HostNetwork, pod.Spec.HostPID)
				f.AffectedComponents = []string{pod.Name}
				f.RemediationSteps = []string{"Remove hostNetwork/hostPID unless the workload genuinely needs node access"}
				f.ConfidenceLevel = 1.0
				result.AddFinding(f)
			}
		}

		for _, container := range pod.Spec.Containers {
			if seen[container.Name] {
				continue
			}
			seen[container.Name] = true

			sc := container.SecurityContext

			if sc != nil && sc.Privileged != nil && *sc.Privileged {
				f := newFinding("security", models.SeverityCritical, "Container runs privileged")
				f.Description = fmt.Sprintf("container %q has privileged: true", container.Name)
				f.AffectedComponents = []string{container.Name}
				f.RemediationSteps = []string{"Drop privileged mode and grant specific capabilities instead"}
				f.ConfidenceLevel = 1.0
				result.AddFinding(f)
				hardeningFindings = append(hardeningFindings, f)
			}

			if !runsAsNonRoot(pod.Spec.SecurityContext, sc) {
				f := newFinding("security", models.SeverityMedium, "Container may run as root")
				f.Description = fmt.Sprintf("container %q does not enforce runAsNonRoot", container.Name)
				f.AffectedComponents = []string{container.Name}
				f.RemediationSteps = []string{"Set securityContext.runAsNonRoot: true and a numeric runAsUser"}
				f.ConfidenceLevel = 0.8
				result.AddFinding(f)
				hardeningFindings = append(hardeningFindings, f)
			}

			if sc == nil || sc.ReadOnlyRootFilesystem == nil || !*sc.ReadOnlyRootFilesystem {
				f := newFinding("security", models.SeverityLow, "Container root filesystem is writable")
				f.Description = fmt.Sprintf("container %q does not set readOnlyRootFilesystem", container.Name)
				f.AffectedComponents = []string{container.Name}
				f.ConfidenceLevel = 0.9
				result.AddFinding(f)
			}
		}
	}

	if len(hardeningFindings) > 0 {
		rec := newRecommendation("hardening", models.PriorityP1, "Harden container security contexts", hardeningFindings...)
		rec.Description = "Several containers run with broader privileges than a typical workload needs."
		rec.Rationale = "Least-privilege containers limit the blast radius of a compromised process."
		rec.ImplementationSteps = []string{
			"Add a restrictive securityContext to the pod template",
			"Test the workload under the tightened settings in staging",
		}
		rec.ImplementationEffort = models.EffortMedium
		result.AddRecommendation(rec)
	}

	result.Metadata["containers_checked"] = len(seen)
	return result, nil
}

// runsAsNonRoot reports whether either the pod or container security
// context enforces a non-root user.
func runsAsNonRoot(pod *corev1.PodSecurityContext, container *corev1.SecurityContext) bool {
	if container != nil {
		if container.RunAsNonRoot != nil && *container.RunAsNonRoot {
			return true
		}
		if container.RunAsUser != nil && *container.RunAsUser > 0 {
			return true
		}
	}
	if pod != nil {
		if pod.RunAsNonRoot != nil && *pod.RunAsNonRoot {
			return true
		}
		if pod.RunAsUser != nil && *pod.RunAsUser > 0 {
			return true
		}
	}
	return false
}
