package client

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	prommodel "github.com/prometheus/common/model"
	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
)

const (
	defaultCallTimeout = 30 * time.Second
	callAttempts       = 3
)

// Config holds the settings needed to reach a deployment's cluster and
// its Prometheus endpoint.
type Config struct {
	Kubeconfig    string
	PrometheusURL string
	Target        Target
	CallTimeout   time.Duration
}

// KubeClient implements Client against a live cluster. All fetches go
// through call(), which owns the per-call timeout, bounded retry, and
// the call counter. Retries within one fetch are not double-counted.
type KubeClient struct {
	clientset kubernetes.Interface
	metrics   metricsclient.Interface
	prom      promv1.API
	target    Target
	timeout   time.Duration
	calls     atomic.Int64
	log       *zap.SugaredLogger

	// label selector of the target deployment, cached after first fetch
	selector string
}

// New builds a KubeClient from kubeconfig (falling back to in-cluster
// config) and an optional Prometheus URL.
func New(cfg Config, log *zap.SugaredLogger) (*KubeClient, error) {
	restCfg, err := rest.InClusterConfig()
	if err != nil {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.Kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to build kube config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	metricsClient, err := metricsclient.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics client: %w", err)
	}

	var prom promv1.API
	if cfg.PrometheusURL != "" {
		promClient, err := promapi.NewClient(promapi.Config{Address: cfg.PrometheusURL})
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
		}
		prom = promv1.NewAPI(promClient)
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	return &KubeClient{
		clientset: clientset,
		metrics:   metricsClient,
		prom:      prom,
		target:    cfg.Target,
		timeout:   timeout,
		log:       log,
	}, nil
}

func (c *KubeClient) CallsUsed() int {
	return int(c.calls.Load())
}

func (c *KubeClient) Target() Target {
	return c.target
}

// call wraps one outbound remote call: it increments the counter,
// applies the per-call timeout, and retries transient failures.
func (c *KubeClient) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	c.calls.Add(1)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return retry.Do(
		func() error { return fn(ctx) },
		retry.Attempts(callAttempts),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// not-found and permission errors will not resolve on retry
			return !apierrors.IsNotFound(err) && !apierrors.IsForbidden(err)
		}),
		retry.OnRetry(func(attempt uint, err error) {
			c.log.Debugw("retrying remote call", "op", op, "attempt", attempt+1, "error", err)
		}),
	)
}

func (c *KubeClient) Ping(ctx context.Context) error {
	return c.call(ctx, "ping", func(ctx context.Context) error {
		_, err := c.clientset.Discovery().ServerVersion()
		return err
	})
}

func (c *KubeClient) GetDeployment(ctx context.Context) (*appsv1.Deployment, error) {
	var deploy *appsv1.Deployment
	err := c.call(ctx, "get-deployment", func(ctx context.Context) error {
		d, err := c.clientset.AppsV1().Deployments(c.target.Namespace).Get(ctx, c.target.Name, metav1.GetOptions{})
		if err != nil {
			return err
		}
		deploy = d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment %s: %w", c.target.DeploymentID(), err)
	}
	if deploy.Spec.Selector != nil {
		c.selector = metav1.FormatLabelSelector(deploy.Spec.Selector)
	}
	return deploy, nil
}

// podSelector returns the label selector for the target's pods, fetching
// the deployment first if it has not been seen yet.
func (c *KubeClient) podSelector(ctx context.Context) (string, error) {
	if c.selector != "" {
		return c.selector, nil
	}
	if _, err := c.GetDeployment(ctx); err != nil {
		return "", err
	}
	if c.selector == "" {
		return "", fmt.Errorf("deployment %s has no label selector", c.target.DeploymentID())
	}
	return c.selector, nil
}

func (c *KubeClient) ListPods(ctx context.Context) ([]corev1.Pod, error) {
	selector, err := c.podSelector(ctx)
	if err != nil {
		return nil, err
	}

	var pods []corev1.Pod
	err = c.call(ctx, "list-pods", func(ctx context.Context) error {
		list, err := c.clientset.CoreV1().Pods(c.target.Namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
		if err != nil {
			return err
		}
		pods = list.Items
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}
	return pods, nil
}

func (c *KubeClient) ListWarningEvents(ctx context.Context) ([]corev1.Event, error) {
	var events []corev1.Event
	err := c.call(ctx, "list-events", func(ctx context.Context) error {
		list, err := c.clientset.CoreV1().Events(c.target.Namespace).List(ctx, metav1.ListOptions{
			FieldSelector: "type=" + corev1.EventTypeWarning,
		})
		if err != nil {
			return err
		}
		events = list.Items
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

func (c *KubeClient) ListConfigMaps(ctx context.Context) ([]corev1.ConfigMap, error) {
	var cms []corev1.ConfigMap
	err := c.call(ctx, "list-configmaps", func(ctx context.Context) error {
		list, err := c.clientset.CoreV1().ConfigMaps(c.target.Namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			return err
		}
		cms = list.Items
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list configmaps: %w", err)
	}
	return cms, nil
}

func (c *KubeClient) FindHPA(ctx context.Context) (*autoscalingv2.HorizontalPodAutoscaler, error) {
	var hpas []autoscalingv2.HorizontalPodAutoscaler
	err := c.call(ctx, "list-hpas", func(ctx context.Context) error {
		list, err := c.clientset.AutoscalingV2().HorizontalPodAutoscalers(c.target.Namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			return err
		}
		hpas = list.Items
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list HPAs: %w", err)
	}

	for i := range hpas {
		ref := hpas[i].Spec.ScaleTargetRef
		if ref.Kind == "Deployment" && ref.Name == c.target.Name {
			return &hpas[i], nil
		}
	}
	return nil, nil
}

func (c *KubeClient) PodMetrics(ctx context.Context) ([]metricsv1beta1.PodMetrics, error) {
	selector, err := c.podSelector(ctx)
	if err != nil {
		return nil, err
	}

	var items []metricsv1beta1.PodMetrics
	err = c.call(ctx, "pod-metrics", func(ctx context.Context) error {
		list, err := c.metrics.MetricsV1beta1().PodMetricses(c.target.Namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
		if err != nil {
			return err
		}
		items = list.Items
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pod metrics: %w", err)
	}
	return items, nil
}

func (c *KubeClient) QueryRange(ctx context.Context, query string, lookback, step time.Duration) ([]Sample, error) {
	if c.prom == nil {
		return nil, fmt.Errorf("prometheus is not configured")
	}

	now := time.Now()
	var result prommodel.Value
	err := c.call(ctx, "prom-query-range", func(ctx context.Context) error {
		value, warnings, err := c.prom.QueryRange(ctx, query, promv1.Range{
			Start: now.Add(-lookback),
			End:   now,
			Step:  step,
		})
		if err != nil {
			return err
		}
		if len(warnings) > 0 {
			c.log.Warnw("prometheus warnings", "query", query, "warnings", warnings)
		}
		result = value
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("range query failed: %w", err)
	}

	matrix, ok := result.(prommodel.Matrix)
	if !ok || len(matrix) == 0 {
		return nil, fmt.Errorf("no data for query: %s", query)
	}

	// Sum series per timestamp so multi-container pods report one value
	// per sample point.
	byTime := make(map[prommodel.Time]float64)
	for _, series := range matrix {
		for _, pair := range series.Values {
			byTime[pair.Timestamp] += float64(pair.Value)
		}
	}

	samples := make([]Sample, 0, len(byTime))
	for ts, v := range byTime {
		samples = append(samples, Sample{Timestamp: ts.Time(), Value: v})
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Timestamp.Before(samples[j].Timestamp) })

	return samples, nil
}

func (c *KubeClient) MetricsAvailable(ctx context.Context) bool {
	err := c.call(ctx, "metrics-probe", func(ctx context.Context) error {
		_, err := c.metrics.MetricsV1beta1().PodMetricses(c.target.Namespace).List(ctx, metav1.ListOptions{Limit: 1})
		return err
	})
	if err != nil {
		c.log.Debugw("metrics API unavailable", "error", err)
		return false
	}
	return true
}

func (c *KubeClient) PrometheusAvailable(ctx context.Context) bool {
	if c.prom == nil {
		return false
	}
	err := c.call(ctx, "prom-probe", func(ctx context.Context) error {
		_, _, err := c.prom.Query(ctx, "up", time.Now())
		return err
	})
	if err != nil {
		c.log.Debugw("prometheus unavailable", "error", err)
		return false
	}
	return true
}
