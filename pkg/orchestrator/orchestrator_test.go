package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opsaudit/k8s-deploy-auditor/pkg/analyzer"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/client"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/client/clienttest"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/models"
)

// stubAnalyzer is a scriptable analyzer for orchestrator tests.
type stubAnalyzer struct {
	name         string
	preflightErr error
	analyzeFn    func(ctx context.Context, c client.Client) (*models.AnalyzerResult, error)
	cleanupErr   error

	analyzed  bool
	cleanedUp bool
}

func (s *stubAnalyzer) Name() string                  { return s.name }
func (s *stubAnalyzer) EstimatedCalls() int           { return 1 }
func (s *stubAnalyzer) RequiredPermissions() []string { return nil }

func (s *stubAnalyzer) Preflight(ctx context.Context, c client.Client) error {
	return s.preflightErr
}

func (s *stubAnalyzer) Analyze(ctx context.Context, c client.Client) (*models.AnalyzerResult, error) {
	s.analyzed = true
	if s.analyzeFn != nil {
		return s.analyzeFn(ctx, c)
	}
	return models.NewAnalyzerResult(s.name), nil
}

func (s *stubAnalyzer) Cleanup() error {
	s.cleanedUp = true
	return s.cleanupErr
}

// succeedWithFindings returns an analyze function producing n findings.
func succeedWithFindings(name string, n int) func(context.Context, client.Client) (*models.AnalyzerResult, error) {
	return func(ctx context.Context, c client.Client) (*models.AnalyzerResult, error) {
		result := models.NewAnalyzerResult(name)
		for i := 0; i < n; i++ {
			result.AddFinding(models.Finding{
				ID:       fmt.Sprintf("%s-%d", name, i),
				Category: "test",
				Severity: models.SeverityLow,
				Title:    fmt.Sprintf("finding %d", i),
			})
		}
		return result, nil
	}
}

func newTestRegistry(t *testing.T, stubs ...*stubAnalyzer) *analyzer.Registry {
	t.Helper()
	registry := analyzer.NewRegistry()
	for _, stub := range stubs {
		stub := stub
		require.NoError(t, registry.Register(func() analyzer.Analyzer { return stub }))
	}
	return registry
}

func newTestOrchestrator(registry *analyzer.Registry, fake *clienttest.Fake, cfg Config) *Orchestrator {
	return New(registry, fake, cfg, zap.NewNop().Sugar())
}

func TestRun_AllObjectivesSucceed(t *testing.T) {
	health := &stubAnalyzer{name: "health", analyzeFn: succeedWithFindings("health", 0)}
	configStub := &stubAnalyzer{name: "config", analyzeFn: succeedWithFindings("config", 2)}
	registry := newTestRegistry(t, health, configStub)

	orch := newTestOrchestrator(registry, clienttest.New(), Config{MaxCalls: 50, ContinueOnError: true})
	results, err := orch.Run(context.Background(), []string{"health", "config"}, nil)
	require.NoError(t, err)

	require.Equal(t, []string{"health", "config"}, results.Objectives())
	for _, r := range results.Results() {
		assert.True(t, r.Success)
		assert.Empty(t, r.Error)
	}
	assert.True(t, health.cleanedUp)
	assert.True(t, configStub.cleanedUp)

	run := BuildAnalysisRun(results, "default/app", 0, 0)
	assert.Equal(t, models.RunCompleted, run.Status)
	assert.Len(t, run.Findings, 2)
	assert.Equal(t, []string{"health", "config"}, run.ObjectivesAnalyzed)
}

func TestRun_UnknownObjectiveFailsBeforeAnyWork(t *testing.T) {
	health := &stubAnalyzer{name: "health"}
	registry := newTestRegistry(t, health)

	orch := newTestOrchestrator(registry, clienttest.New(), Config{MaxCalls: 50})
	results, err := orch.Run(context.Background(), []string{"health", "nope"}, nil)

	require.ErrorIs(t, err, ErrUnknownObjective)
	assert.ErrorContains(t, err, "nope")
	assert.Nil(t, results)
	assert.False(t, health.analyzed, "no analyzer may run when validation fails")
}

func TestRun_ExplicitEmptyListIsNoOp(t *testing.T) {
	registry := newTestRegistry(t, &stubAnalyzer{name: "health"})

	orch := newTestOrchestrator(registry, clienttest.New(), Config{MaxCalls: 50})
	results, err := orch.Run(context.Background(), []string{}, nil)

	require.NoError(t, err)
	assert.Equal(t, 0, results.Len())
}

func TestRun_NilObjectivesDefaultsToAllRegistered(t *testing.T) {
	a := &stubAnalyzer{name: "alpha"}
	b := &stubAnalyzer{name: "beta"}
	registry := newTestRegistry(t, b, a)

	orch := newTestOrchestrator(registry, clienttest.New(), Config{MaxCalls: 50, ContinueOnError: true})
	results, err := orch.Run(context.Background(), nil, nil)

	require.NoError(t, err)
	// registry enumeration order is lexicographic
	assert.Equal(t, []string{"alpha", "beta"}, results.Objectives())
}

func TestRun_BudgetGatesNewObjectives(t *testing.T) {
	fake := clienttest.New()

	first := &stubAnalyzer{name: "first", analyzeFn: func(ctx context.Context, c client.Client) (*models.AnalyzerResult, error) {
		fake.Calls = 10 // the analyzer consumed the whole budget
		return models.NewAnalyzerResult("first"), nil
	}}
	second := &stubAnalyzer{name: "second"}
	registry := newTestRegistry(t, first, second)

	orch := newTestOrchestrator(registry, fake, Config{MaxCalls: 10, ContinueOnError: true})
	results, err := orch.Run(context.Background(), []string{"first", "second"}, nil)
	require.NoError(t, err)

	r1, ok := results.Get("first")
	require.True(t, ok)
	assert.True(t, r1.Success)

	r2, ok := results.Get("second")
	require.True(t, ok)
	assert.False(t, r2.Success)
	assert.Contains(t, r2.Error, "budget")
	assert.False(t, second.analyzed, "budget-skipped analyzer must not be invoked")
}

func TestRun_BudgetExhaustionStopsRunWithoutContinueOnError(t *testing.T) {
	fake := clienttest.New()
	fake.Calls = 100 // budget already gone before the run starts

	a := &stubAnalyzer{name: "a"}
	b := &stubAnalyzer{name: "b"}
	c := &stubAnalyzer{name: "c"}
	registry := newTestRegistry(t, a, b, c)

	orch := newTestOrchestrator(registry, fake, Config{MaxCalls: 10, ContinueOnError: false})
	results, err := orch.Run(context.Background(), []string{"a", "b", "c"}, nil)
	require.NoError(t, err)

	require.Equal(t, []string{"a"}, results.Objectives(), "objectives after the stop point must be absent")
	r, _ := results.Get("a")
	assert.False(t, r.Success)
}

func TestRun_AnalyzerErrorStopsRunWithoutContinueOnError(t *testing.T) {
	first := &stubAnalyzer{name: "first", analyzeFn: func(ctx context.Context, c client.Client) (*models.AnalyzerResult, error) {
		return nil, errors.New("boom")
	}}
	second := &stubAnalyzer{name: "second"}
	registry := newTestRegistry(t, first, second)

	orch := newTestOrchestrator(registry, clienttest.New(), Config{MaxCalls: 50, ContinueOnError: false})
	results, err := orch.Run(context.Background(), []string{"first", "second"}, nil)
	require.NoError(t, err, "per-objective failures are data, not errors")

	require.Equal(t, 1, results.Len())
	r, _ := results.Get("first")
	assert.False(t, r.Success)
	assert.Equal(t, "boom", r.Error)
	assert.False(t, second.analyzed)
	assert.True(t, first.cleanedUp, "cleanup runs even when analyze fails")
}

func TestRun_AnalyzerErrorContinuesWithContinueOnError(t *testing.T) {
	first := &stubAnalyzer{name: "first", analyzeFn: func(ctx context.Context, c client.Client) (*models.AnalyzerResult, error) {
		return nil, errors.New("boom")
	}}
	second := &stubAnalyzer{name: "second", analyzeFn: succeedWithFindings("second", 1)}
	registry := newTestRegistry(t, first, second)

	orch := newTestOrchestrator(registry, clienttest.New(), Config{MaxCalls: 50, ContinueOnError: true})
	results, err := orch.Run(context.Background(), []string{"first", "second"}, nil)
	require.NoError(t, err)

	require.Equal(t, []string{"first", "second"}, results.Objectives())

	run := BuildAnalysisRun(results, "default/app", 0, 0)
	assert.Equal(t, models.RunPartial, run.Status)
	assert.True(t, run.PartialCompletion)
}

func TestRun_PreflightFailureSkipsAnalyze(t *testing.T) {
	stub := &stubAnalyzer{name: "perf", preflightErr: errors.New("prometheus endpoint is not available")}
	registry := newTestRegistry(t, stub)

	orch := newTestOrchestrator(registry, clienttest.New(), Config{MaxCalls: 50, ContinueOnError: true})
	results, err := orch.Run(context.Background(), []string{"perf"}, nil)
	require.NoError(t, err)

	r, ok := results.Get("perf")
	require.True(t, ok)
	assert.False(t, r.Success)
	assert.Contains(t, r.Error, "Pre-flight check failed")
	assert.False(t, stub.analyzed)
}

func TestRun_PreflightFailureDoesNotStopRun(t *testing.T) {
	failing := &stubAnalyzer{name: "first", preflightErr: errors.New("not ready")}
	second := &stubAnalyzer{name: "second"}
	registry := newTestRegistry(t, failing, second)

	// even with ContinueOnError=false a failed pre-flight only skips
	// its own objective
	orch := newTestOrchestrator(registry, clienttest.New(), Config{MaxCalls: 50, ContinueOnError: false})
	results, err := orch.Run(context.Background(), []string{"first", "second"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, results.Objectives())
	assert.True(t, second.analyzed)
}

func TestRun_AnalyzerPanicBecomesFailedResult(t *testing.T) {
	stub := &stubAnalyzer{name: "panicky", analyzeFn: func(ctx context.Context, c client.Client) (*models.AnalyzerResult, error) {
		panic("unexpected nil")
	}}
	registry := newTestRegistry(t, stub)

	orch := newTestOrchestrator(registry, clienttest.New(), Config{MaxCalls: 50, ContinueOnError: true})
	results, err := orch.Run(context.Background(), []string{"panicky"}, nil)
	require.NoError(t, err)

	r, _ := results.Get("panicky")
	assert.False(t, r.Success)
	assert.Contains(t, r.Error, "panicked")
	assert.True(t, stub.cleanedUp)
}

func TestRun_CleanupErrorIsSwallowed(t *testing.T) {
	stub := &stubAnalyzer{name: "leaky", cleanupErr: errors.New("cleanup failed")}
	registry := newTestRegistry(t, stub)

	orch := newTestOrchestrator(registry, clienttest.New(), Config{MaxCalls: 50})
	results, err := orch.Run(context.Background(), []string{"leaky"}, nil)
	require.NoError(t, err)

	r, _ := results.Get("leaky")
	assert.True(t, r.Success, "cleanup failures never surface in the result")
}

func TestRun_CallbackPanicDoesNotAbortRun(t *testing.T) {
	a := &stubAnalyzer{name: "a"}
	b := &stubAnalyzer{name: "b"}
	registry := newTestRegistry(t, a, b)

	orch := newTestOrchestrator(registry, clienttest.New(), Config{MaxCalls: 50, ContinueOnError: true})
	results, err := orch.Run(context.Background(), []string{"a", "b"}, func(p Progress) {
		panic("bad callback")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, results.Len())
	assert.True(t, b.analyzed)
}

func TestRun_ProgressIsMonotonicAndFiresOncePerObjective(t *testing.T) {
	stubs := []*stubAnalyzer{{name: "a"}, {name: "b"}, {name: "c"}}
	registry := newTestRegistry(t, stubs...)

	var snapshots []Progress
	orch := newTestOrchestrator(registry, clienttest.New(), Config{MaxCalls: 50, ContinueOnError: true})
	results, err := orch.Run(context.Background(), []string{"a", "b", "c"}, func(p Progress) {
		snapshots = append(snapshots, p)
	})
	require.NoError(t, err)
	require.Equal(t, 3, results.Len())

	require.Len(t, snapshots, 3, "exactly one callback per attempted objective")
	for i, p := range snapshots {
		assert.Equal(t, i+1, p.CompletedObjectives)
		assert.Equal(t, 3, p.TotalObjectives)
		assert.Empty(t, p.CurrentObjective, "callback fires after the objective is finalized")
		assert.LessOrEqual(t, p.CompletedObjectives, p.TotalObjectives)
	}
}

func TestRun_ResultKeysAreAPrefixOfTheRequest(t *testing.T) {
	failing := &stubAnalyzer{name: "b", analyzeFn: func(ctx context.Context, c client.Client) (*models.AnalyzerResult, error) {
		return nil, errors.New("boom")
	}}
	registry := newTestRegistry(t, &stubAnalyzer{name: "a"}, failing, &stubAnalyzer{name: "c"})

	orch := newTestOrchestrator(registry, clienttest.New(), Config{MaxCalls: 50, ContinueOnError: false})
	results, err := orch.Run(context.Background(), []string{"a", "b", "c"}, nil)
	require.NoError(t, err)

	requested := []string{"a", "b", "c"}
	attempted := results.Objectives()
	require.LessOrEqual(t, len(attempted), len(requested))
	assert.Equal(t, requested[:len(attempted)], attempted)
}
