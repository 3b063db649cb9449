package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/opsaudit/k8s-deploy-auditor/pkg/analyzer"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/client"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/models"
)

// ErrUnknownObjective is returned by Run when a requested objective is
// not in the registry. It is a precondition failure: no analyzer runs.
var ErrUnknownObjective = errors.New("unknown objective")

// budgetExceededMsg is the error recorded on objectives skipped because
// the call budget ran out.
const budgetExceededMsg = "API call budget exceeded"

// Progress is a snapshot of run state passed to the progress callback
// after each attempted objective.
type Progress struct {
	TotalObjectives     int
	CompletedObjectives int
	CurrentObjective    string
	APICallsUsed        int
	APICallsRemaining   int
}

// ProgressFunc receives progress snapshots during a run. Panics in the
// callback are recovered and logged, never allowed to abort the run.
type ProgressFunc func(Progress)

// Config holds the orchestrator's run policy.
type Config struct {
	// MaxCalls is the remote-call budget for the whole run. The budget
	// gates whether a new objective may begin; an analyzer that has
	// started is always allowed to finish.
	MaxCalls int

	// ContinueOnError keeps the run going past failed objectives. When
	// false the run stops at the first analyzer error and later
	// objectives are never attempted.
	ContinueOnError bool
}

// Orchestrator runs analyzers sequentially against one deployment,
// enforcing the call budget between objectives.
type Orchestrator struct {
	registry *analyzer.Registry
	client   client.Client
	cfg      Config
	log      *zap.SugaredLogger
}

// New creates an orchestrator. The registry and client are shared,
// caller-owned values.
func New(registry *analyzer.Registry, c client.Client, cfg Config, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		client:   c,
		cfg:      cfg,
		log:      log,
	}
}

// Run executes the requested objectives in order and returns their
// results in attempt order. A nil objective list means "run every
// registered analyzer"; an explicitly empty list is a no-op. Per-objective
// failures (budget exhaustion, failed pre-flight, analyzer errors) become
// failed results, never errors; the only error Run itself returns is
// ErrUnknownObjective, raised before any work starts.
func (o *Orchestrator) Run(ctx context.Context, objectives []string, onProgress ProgressFunc) (*ResultSet, error) {
	if objectives == nil {
		objectives = o.registry.ListNames()
	}
	results := NewResultSet()
	if len(objectives) == 0 {
		return results, nil
	}

	for _, name := range objectives {
		if !o.registry.Has(name) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownObjective, name)
		}
	}

	progress := Progress{
		TotalObjectives:   len(objectives),
		APICallsRemaining: o.cfg.MaxCalls,
	}

	o.log.Infow("starting analysis run",
		"deployment", o.client.Target().DeploymentID(),
		"objectives", objectives,
		"budget", o.cfg.MaxCalls)

	for _, name := range objectives {
		used := o.client.CallsUsed()
		remaining := o.cfg.MaxCalls - used

		if remaining <= 0 {
			o.log.Warnw("budget exhausted, skipping objective", "objective", name, "calls_used", used)
			results.Add(models.NewFailedResult(name, budgetExceededMsg))
			o.finishObjective(&progress, onProgress)
			if o.cfg.ContinueOnError {
				continue
			}
			break
		}

		progress.CurrentObjective = name
		progress.APICallsUsed = used
		progress.APICallsRemaining = remaining

		a, err := o.registry.Get(name)
		if err != nil {
			// unreachable: names were validated above
			results.Add(models.NewFailedResult(name, err.Error()))
			o.finishObjective(&progress, onProgress)
			continue
		}

		if err := o.preflight(ctx, a); err != nil {
			o.log.Warnw("pre-flight check failed", "objective", name, "error", err)
			results.Add(models.NewFailedResult(name, fmt.Sprintf("Pre-flight check failed: %v", err)))
			o.finishObjective(&progress, onProgress)
			continue
		}

		result, analyzeErr := o.analyze(ctx, a)

		if err := a.Cleanup(); err != nil {
			o.log.Warnw("analyzer cleanup failed", "objective", name, "error", err)
		}

		switch {
		case analyzeErr != nil:
			o.log.Errorw("analyzer failed", "objective", name, "error", analyzeErr)
			result = models.NewFailedResult(name, analyzeErr.Error())
		case result == nil:
			result = models.NewAnalyzerResult(name)
		default:
			result.Objective = name
		}
		results.Add(result)

		o.finishObjective(&progress, onProgress)

		if analyzeErr != nil && !o.cfg.ContinueOnError {
			break
		}
	}

	o.log.Infow("analysis run finished",
		"attempted", results.Len(),
		"calls_used", o.client.CallsUsed())

	return results, nil
}

// preflight runs the analyzer's readiness probe, converting panics
// into errors.
func (o *Orchestrator) preflight(ctx context.Context, a analyzer.Analyzer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pre-flight panicked: %v", r)
		}
	}()
	return a.Preflight(ctx, o.client)
}

// analyze invokes the analyzer, converting panics into errors so a
// misbehaving analyzer never takes down the run.
func (o *Orchestrator) analyze(ctx context.Context, a analyzer.Analyzer) (result *models.AnalyzerResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("analyzer panicked: %v", r)
		}
	}()
	return a.Analyze(ctx, o.client)
}

// finishObjective marks the current objective complete, refreshes the
// budget counters and fires the progress callback.
func (o *Orchestrator) finishObjective(progress *Progress, onProgress ProgressFunc) {
	progress.CompletedObjectives++
	progress.CurrentObjective = ""
	progress.APICallsUsed = o.client.CallsUsed()
	remaining := o.cfg.MaxCalls - progress.APICallsUsed
	if remaining < 0 {
		remaining = 0
	}
	progress.APICallsRemaining = remaining

	o.notify(onProgress, *progress)
}

func (o *Orchestrator) notify(onProgress ProgressFunc, snapshot Progress) {
	if onProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.log.Warnw("progress callback panicked", "panic", r)
		}
	}()
	onProgress(snapshot)
}
