package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsaudit/k8s-deploy-auditor/pkg/client"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/models"
)

type namedAnalyzer struct {
	name string
}

func (n *namedAnalyzer) Name() string                  { return n.name }
func (n *namedAnalyzer) EstimatedCalls() int           { return 1 }
func (n *namedAnalyzer) RequiredPermissions() []string { return nil }
func (n *namedAnalyzer) Cleanup() error                { return nil }

func (n *namedAnalyzer) Preflight(ctx context.Context, c client.Client) error { return nil }

func (n *namedAnalyzer) Analyze(ctx context.Context, c client.Client) (*models.AnalyzerResult, error) {
	return models.NewAnalyzerResult(n.name), nil
}

func ctor(name string) Constructor {
	return func() Analyzer { return &namedAnalyzer{name: name} }
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(ctor("health")))
	assert.True(t, r.Has("health"))
	assert.False(t, r.Has("config"))
}

func TestRegistry_RejectsDuplicateNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(ctor("health")))

	err := r.Register(ctor("health"))
	require.ErrorIs(t, err, ErrDuplicateObjective)
	assert.ErrorContains(t, err, "health")
}

func TestRegistry_RejectsInvalidAnalyzers(t *testing.T) {
	r := NewRegistry()

	assert.ErrorIs(t, r.Register(nil), ErrInvalidAnalyzer)
	assert.ErrorIs(t, r.Register(func() Analyzer { return nil }), ErrInvalidAnalyzer)
	assert.ErrorIs(t, r.Register(ctor("")), ErrInvalidAnalyzer)
}

func TestRegistry_GetReturnsFreshInstances(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(ctor("health")))

	first, err := r.Get("health")
	require.NoError(t, err)
	second, err := r.Get("health")
	require.NoError(t, err)

	assert.NotSame(t, first, second, "each run gets its own analyzer instance")
}

func TestRegistry_GetUnknownName(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_ListNamesIsSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(ctor(name)))
	}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.ListNames())
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(0)

	assert.Equal(t, []string{"capacity", "config", "health", "performance", "security"}, r.ListNames())

	for _, name := range r.ListNames() {
		a, err := r.Get(name)
		require.NoError(t, err)
		assert.Equal(t, name, a.Name())
		assert.Positive(t, a.EstimatedCalls())
	}
}

func TestDefaultRegistry_LookbackConfiguresPerformanceAnalyzer(t *testing.T) {
	r := DefaultRegistry(48 * time.Hour)

	a, err := r.Get("performance")
	require.NoError(t, err)
	perf, ok := a.(*PerformanceAnalyzer)
	require.True(t, ok)
	assert.Equal(t, 48*time.Hour, perf.Lookback)

	a, err = DefaultRegistry(0).Get("performance")
	require.NoError(t, err)
	assert.Equal(t, defaultLookback, a.(*PerformanceAnalyzer).Lookback)
}
