package client

import (
	"context"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
)

// Target identifies the single deployment a run is analyzing.
type Target struct {
	Namespace string
	Name      string
}

// DeploymentID returns the canonical identifier used in reports.
func (t Target) DeploymentID() string {
	return fmt.Sprintf("%s/%s", t.Namespace, t.Name)
}

// Sample is a single metric data point from a range query.
type Sample struct {
	Timestamp time.Time
	Value     float64
}

// Client is the read-only view of a deployment that analyzers consume.
// Every fetch method increments the call counter once per remote round
// trip it makes; CallsUsed is the sole source of truth for budget
// accounting during a run.
type Client interface {
	// CallsUsed returns the number of remote calls made so far.
	// The counter is monotonically non-decreasing.
	CallsUsed() int

	// Target returns the deployment under analysis.
	Target() Target

	// Ping verifies connectivity to the cluster API.
	Ping(ctx context.Context) error

	GetDeployment(ctx context.Context) (*appsv1.Deployment, error)
	ListPods(ctx context.Context) ([]corev1.Pod, error)
	ListWarningEvents(ctx context.Context) ([]corev1.Event, error)
	ListConfigMaps(ctx context.Context) ([]corev1.ConfigMap, error)

	// FindHPA returns the HorizontalPodAutoscaler targeting the
	// deployment, or nil if none exists.
	FindHPA(ctx context.Context) (*autoscalingv2.HorizontalPodAutoscaler, error)

	// PodMetrics returns instant resource usage from the metrics API.
	PodMetrics(ctx context.Context) ([]metricsv1beta1.PodMetrics, error)

	// QueryRange runs a PromQL range query over the given lookback window.
	QueryRange(ctx context.Context, query string, lookback, step time.Duration) ([]Sample, error)

	// MetricsAvailable reports whether the metrics API can be reached.
	MetricsAvailable(ctx context.Context) bool

	// PrometheusAvailable reports whether the Prometheus endpoint can be
	// reached.
	PrometheusAvailable(ctx context.Context) bool
}
