package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/opsaudit/k8s-deploy-auditor/pkg/client/clienttest"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/models"
)

func boolPtr(b bool) *bool    { return &b }
func int64Ptr(n int64) *int64 { return &n }

func hardenedContainer(name string) corev1.Container {
	return corev1.Container{
		Name: name,
		SecurityContext: &corev1.SecurityContext{
			RunAsNonRoot:           boolPtr(true),
			ReadOnlyRootFilesystem: boolPtr(true),
		},
	}
}

func TestSecurityAnalyzer_HardenedPod(t *testing.T) {
	fake := clienttest.New()
	fake.Pods = []corev1.Pod{podWithContainers("app-1", hardenedContainer("web"))}

	result, err := NewSecurityAnalyzer().Analyze(context.Background(), fake)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Empty(t, result.Findings)
}

func TestSecurityAnalyzer_PrivilegedContainer(t *testing.T) {
	c := hardenedContainer("web")
	c.SecurityContext.Privileged = boolPtr(true)

	fake := clienttest.New()
	fake.Pods = []corev1.Pod{podWithContainers("app-1", c)}

	result, err := NewSecurityAnalyzer().Analyze(context.Background(), fake)
	require.NoError(t, err)

	require.NotEmpty(t, result.Findings)
	assert.Equal(t, models.SeverityCritical, result.Findings[0].Severity)
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, models.PriorityP1, result.Recommendations[0].Priority)
}

func TestSecurityAnalyzer_RootUser(t *testing.T) {
	tests := []struct {
		name string
		pod  corev1.Pod
		want bool
	}{
		{
			name: "no security context at all",
			pod:  podWithContainers("app-1", corev1.Container{Name: "web", SecurityContext: &corev1.SecurityContext{ReadOnlyRootFilesystem: boolPtr(true)}}),
			want: true,
		},
		{
			name: "pod-level runAsNonRoot",
			pod: corev1.Pod{
				ObjectMeta: metav1.ObjectMeta{Name: "app-1"},
				Spec: corev1.PodSpec{
					SecurityContext: &corev1.PodSecurityContext{RunAsNonRoot: boolPtr(true)},
					Containers:      []corev1.Container{{Name: "web", SecurityContext: &corev1.SecurityContext{ReadOnlyRootFilesystem: boolPtr(true)}}},
				},
			},
			want: false,
		},
		{
			name: "numeric non-root user",
			pod: podWithContainers("app-1", corev1.Container{
				Name: "web",
				SecurityContext: &corev1.SecurityContext{
					RunAsUser:              int64Ptr(1000),
					ReadOnlyRootFilesystem: boolPtr(true),
				},
			}),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := clienttest.New()
			fake.Pods = []corev1.Pod{tt.pod}

			result, err := NewSecurityAnalyzer().Analyze(context.Background(), fake)
			require.NoError(t, err)

			found := false
			for _, f := range result.Findings {
				if f.Title == "Container may run as root" {
					found = true
				}
			}
			assert.Equal(t, tt.want, found)
		})
	}
}

func TestSecurityAnalyzer_HostNamespaces(t *testing.T) {
	pod := podWithContainers("app-1", hardenedContainer("web"))
	pod.Spec.HostNetwork = true

	fake := clienttest.New()
	fake.Pods = []corev1.Pod{pod}

	result, err := NewSecurityAnalyzer().Analyze(context.Background(), fake)
	require.NoError(t, err)

	require.NotEmpty(t, result.Findings)
	assert.Equal(t, models.SeverityHigh, result.Findings[0].Severity)
	assert.Contains(t, result.Findings[0].Description, "hostNetwork=true")
}
