// Package clienttest provides a fake deployment client for tests.
package clienttest

import (
	"context"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"

	"github.com/opsaudit/k8s-deploy-auditor/pkg/client"
)

// Fake implements client.Client against in-memory data. Every fetch
// increments the call counter the way the real client does, so budget
// behavior can be exercised without a cluster.
type Fake struct {
	Deployment *appsv1.Deployment
	Pods       []corev1.Pod
	Events     []corev1.Event
	ConfigMaps []corev1.ConfigMap
	HPA        *autoscalingv2.HorizontalPodAutoscaler
	Metrics    []metricsv1beta1.PodMetrics
	Samples    []client.Sample

	// Err, when set, is returned by every fetch.
	Err error

	// HasMetrics and HasPrometheus control the availability probes.
	HasMetrics    bool
	HasPrometheus bool

	// Calls is the running call count. Tests may pre-set it to simulate
	// an already-consumed budget.
	Calls int

	DeployTarget client.Target
}

var _ client.Client = (*Fake)(nil)

// New returns a fake with availability probes enabled.
func New() *Fake {
	return &Fake{
		HasMetrics:    true,
		HasPrometheus: true,
		DeployTarget:  client.Target{Namespace: "default", Name: "app"},
	}
}

func (f *Fake) count() { f.Calls++ }

func (f *Fake) CallsUsed() int        { return f.Calls }
func (f *Fake) Target() client.Target { return f.DeployTarget }

func (f *Fake) Ping(ctx context.Context) error {
	f.count()
	return f.Err
}

func (f *Fake) GetDeployment(ctx context.Context) (*appsv1.Deployment, error) {
	f.count()
	return f.Deployment, f.Err
}

func (f *Fake) ListPods(ctx context.Context) ([]corev1.Pod, error) {
	f.count()
	return f.Pods, f.Err
}

func (f *Fake) ListWarningEvents(ctx context.Context) ([]corev1.Event, error) {
	f.count()
	return f.Events, f.Err
}

func (f *Fake) ListConfigMaps(ctx context.Context) ([]corev1.ConfigMap, error) {
	f.count()
	return f.ConfigMaps, f.Err
}

func (f *Fake) FindHPA(ctx context.Context) (*autoscalingv2.HorizontalPodAutoscaler, error) {
	f.count()
	return f.HPA, f.Err
}

func (f *Fake) PodMetrics(ctx context.Context) ([]metricsv1beta1.PodMetrics, error) {
	f.count()
	return f.Metrics, f.Err
}

func (f *Fake) QueryRange(ctx context.Context, query string, lookback, step time.Duration) ([]client.Sample, error) {
	f.count()
	return f.Samples, f.Err
}

func (f *Fake) MetricsAvailable(ctx context.Context) bool {
	f.count()
	return f.HasMetrics
}

func (f *Fake) PrometheusAvailable(ctx context.Context) bool {
	f.count()
	return f.HasPrometheus
}
