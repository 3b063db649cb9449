package analyzer

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/opsaudit/k8s-deploy-auditor/pkg/client"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/models"
)

// ConfigAnalyzer checks pod specs for common misconfigurations:
// missing probes, missing resource requests/limits, mutable image tags
// and references to configmaps that do not exist.
type ConfigAnalyzer struct{}

func NewConfigAnalyzer() *ConfigAnalyzer { return &ConfigAnalyzer{} }

func (a *ConfigAnalyzer) Name() string        { return "config" }
func (a *ConfigAnalyzer) EstimatedCalls() int { return 3 }

func (a *ConfigAnalyzer) RequiredPermissions() []string {
	return []string{"get deployments", "list pods", "list configmaps"}
}

func (a *ConfigAnalyzer) Preflight(ctx context.Context, c client.Client) error { return nil }
func (a *ConfigAnalyzer) Cleanup() error                                       { return nil }

func (a *ConfigAnalyzer) Analyze(ctx context.Context, c client.Client) (*models.AnalyzerResult, error) {
	result := models.NewAnalyzerResult(a.Name())

	pods, err := c.ListPods(ctx)
	if err != nil {
		return nil, err
	}

	var probeFindings, resourceFindings []models.Finding
	seen := make(map[string]bool) // container specs repeat across replicas

	for _, pod := range pods {
		for _, container := range pod.Spec.Containers {
			if seen[container.Name] {
				continue
			}
			seen[container.Name] = true

			if container.LivenessProbe == nil || container.ReadinessProbe == nil {
				f := newFinding("configuration", models.SeverityMedium, "Container is missing health probes")
				f.Description = fmt.Sprintf("container %q lacks %s", container.Name, missingProbes(container))
				f.AffectedComponents = []string{container.Name}
				f.RemediationSteps = []string{"Define liveness and readiness probes in the pod template"}
				f.ConfidenceLevel = 1.0
				result.AddFinding(f)
				probeFindings = append(probeFindings, f)
			}

			if container.Resources.Requests.Cpu().IsZero() || container.Resources.Requests.Memory().IsZero() {
				f := newFinding("configuration", models.SeverityMedium, "Container has no resource requests")
				f.Description = fmt.Sprintf("container %q does not request CPU and/or memory", container.Name)
				f.AffectedComponents = []string{container.Name}
				f.RemediationSteps = []string{"Set resources.requests based on observed usage"}
				f.ConfidenceLevel = 1.0
				result.AddFinding(f)
				resourceFindings = append(resourceFindings, f)
			}

			if tag := imageTag(container.Image); tag == "" || tag == "latest" {
				f := newFinding("configuration", models.SeverityLow, "Container uses a mutable image tag")
				f.Description = fmt.Sprintf("container %q runs image %q", container.Name, container.Image)
				f.AffectedComponents = []string{container.Name}
				f.RemediationSteps = []string{"Pin the image to an immutable tag or digest"}
				f.ConfidenceLevel = 0.9
				result.AddFinding(f)
			}
		}
	}

	cms, err := c.ListConfigMaps(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(cms))
	for _, cm := range cms {
		known[cm.Name] = true
	}

	for _, name := range referencedConfigMaps(pods) {
		if known[name] {
			continue
		}
		f := newFinding("configuration", models.SeverityHigh, "Referenced ConfigMap does not exist")
		f.Description = fmt.Sprintf("pod template references configmap %q which was not found in the namespace", name)
		f.AffectedComponents = []string{name}
		f.RemediationSteps = []string{"Create the configmap or remove the stale reference"}
		f.ConfidenceLevel = 1.0
		result.AddFinding(f)
	}

	if len(probeFindings) > 0 {
		rec := newRecommendation("reliability", models.PriorityP1, "Add health probes to all containers", probeFindings...)
		rec.Description = "Containers without probes are restarted and routed to blindly."
		rec.Rationale = "Kubernetes cannot detect a hung process or gate traffic without probes."
		rec.ImplementationEffort = models.EffortLow
		result.AddRecommendation(rec)
	}
	if len(resourceFindings) > 0 {
		rec := newRecommendation("scheduling", models.PriorityP2, "Set resource requests on all containers", resourceFindings...)
		rec.Description = "Requests drive scheduling decisions and eviction ordering."
		rec.Rationale = "Without requests the scheduler places pods blind and they are first in line for eviction."
		rec.ImplementationEffort = models.EffortLow
		result.AddRecommendation(rec)
	}

	result.Metadata["containers_checked"] = len(seen)
	return result, nil
}

func missingProbes(c corev1.Container) string {
	switch {
	case c.LivenessProbe == nil && c.ReadinessProbe == nil:
		return "liveness and readiness probes"
	case c.LivenessProbe == nil:
		return "a liveness probe"
	default:
		return "a readiness probe"
	}
}

// imageTag extracts the tag portion of an image reference, ignoring
// registry ports and digests.
func imageTag(image string) string {
	if strings.Contains(image, "@") {
		return "digest"
	}
	slash := strings.LastIndex(image, "/")
	colon := strings.LastIndex(image, ":")
	if colon > slash {
		return image[colon+1:]
	}
	return ""
}

// referencedConfigMaps collects configmap names used via envFrom, env
// valueFrom and volumes, deduplicated in first-seen order.
func referencedConfigMaps(pods []corev1.Pod) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, pod := range pods {
		for _, container := range pod.Spec.Containers {
			for _, ef := range container.EnvFrom {
				if ef.ConfigMapRef != nil {
					add(ef.ConfigMapRef.Name)
				}
			}
			for _, env := range container.Env {
				if env.ValueFrom != nil && env.ValueFrom.ConfigMapKeyRef != nil {
					add(env.ValueFrom.ConfigMapKeyRef.Name)
				}
			}
		}
		for _, vol := range pod.Spec.Volumes {
			if vol.ConfigMap != nil {
				add(vol.ConfigMap.Name)
			}
		}
	}
	return names
}
