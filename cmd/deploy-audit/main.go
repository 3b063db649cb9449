package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/opsaudit/k8s-deploy-auditor/pkg/analyzer"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/client"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/config"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/models"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/orchestrator"
	"github.com/opsaudit/k8s-deploy-auditor/pkg/reporter"
)

var (
	namespace     string
	deployment    string
	objectives    []string
	budget        int
	continueOnErr bool
	outputFormat  string
	reportFile    string
	configFile    string
	prometheusURL string
	kubeconfig    string
	verbose       bool

	cfg *config.Config
)

func main() {
	cfg = config.New()

	rootCmd := &cobra.Command{
		Use:   "deploy-audit",
		Short: "Read-only analyzer for Kubernetes deployments",
		Long: `Run a set of read-only analyzers (health, config, security, capacity,
performance) against a single deployment under a shared remote-call budget
and aggregate their output into one report.`,
		RunE: runAudit,
	}

	rootCmd.Flags().StringVarP(&namespace, "namespace", "n", "default", "Namespace of the deployment")
	rootCmd.Flags().StringVarP(&deployment, "deployment", "d", "", "Deployment to analyze (required)")
	rootCmd.Flags().StringSliceVar(&objectives, "objectives", nil, "Objectives to run (default: all registered)")
	rootCmd.Flags().IntVar(&budget, "budget", 0, "Remote-call budget for the run (default from MAX_API_CALLS)")
	rootCmd.Flags().BoolVar(&continueOnErr, "continue-on-error", true, "Keep running past failed objectives")
	rootCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, markdown")
	rootCmd.Flags().StringVar(&reportFile, "report-file", "", "Write the report to a file instead of stdout")
	rootCmd.Flags().StringVar(&configFile, "config", "", "Path to a YAML config file")
	rootCmd.Flags().StringVar(&prometheusURL, "prometheus-url", "", "Prometheus base URL for the performance analyzer")
	rootCmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	_ = rootCmd.MarkFlagRequired("deployment")

	rootCmd.AddCommand(newObjectivesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newObjectivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "objectives",
		Short: "List available analyzers with their estimated call cost and required permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := analyzer.DefaultRegistry(0)
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "OBJECTIVE\tEST. CALLS\tREQUIRED PERMISSIONS")
			for _, name := range registry.ListNames() {
				a, err := registry.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", a.Name(), a.EstimatedCalls(), strings.Join(a.RequiredPermissions(), ", "))
			}
			return tw.Flush()
		},
	}
}

func newLogger() *zap.SugaredLogger {
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger.Sugar()
}

func applyFlags() {
	if kubeconfig != "" {
		cfg.Kubeconfig = kubeconfig
	}
	if prometheusURL != "" {
		cfg.PrometheusURL = prometheusURL
	}
	if budget > 0 {
		cfg.MaxAPICalls = budget
	}
	cfg.ContinueOnError = continueOnErr
	cfg.OutputFormat = outputFormat
	cfg.Verbose = verbose
}

func runAudit(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return err
		}
	}
	applyFlags()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := newLogger()
	defer log.Sync() //nolint:errcheck

	registry := analyzer.DefaultRegistry(cfg.MetricsLookback)
	for _, name := range objectives {
		if !registry.Has(name) {
			return fmt.Errorf("unknown objective %q (available: %s)", name, strings.Join(registry.ListNames(), ", "))
		}
	}

	cli, err := client.New(client.Config{
		Kubeconfig:    cfg.Kubeconfig,
		PrometheusURL: cfg.PrometheusURL,
		Target:        client.Target{Namespace: namespace, Name: deployment},
		CallTimeout:   cfg.CallTimeout,
	}, log)
	if err != nil {
		return err
	}

	orch := orchestrator.New(registry, cli, orchestrator.Config{
		MaxCalls:        cfg.MaxAPICalls,
		ContinueOnError: cfg.ContinueOnError,
	}, log)

	showSpinner := outputFormat == "text" && reportFile == ""
	var spin *spinner.Spinner
	if showSpinner {
		spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		spin.Suffix = " analyzing " + cli.Target().DeploymentID()
		spin.Start()
	}

	onProgress := func(p orchestrator.Progress) {
		if spin != nil {
			spin.Suffix = fmt.Sprintf(" %d/%d objectives done, %d/%d calls used",
				p.CompletedObjectives, p.TotalObjectives, p.APICallsUsed, cfg.MaxAPICalls)
		}
	}

	start := time.Now()
	results, err := orch.Run(context.Background(), objectives, onProgress)
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return err
	}

	run := orchestrator.BuildAnalysisRun(results, cli.Target().DeploymentID(), time.Since(start), cli.CallsUsed())

	return writeOutput(run, results)
}

func writeOutput(run *models.AnalysisRun, results *orchestrator.ResultSet) error {
	out := os.Stdout
	if reportFile != "" {
		f, err := os.Create(reportFile)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch cfg.OutputFormat {
	case "json":
		rep, err := reporter.New(reporter.FormatJSON)
		if err != nil {
			return err
		}
		return rep.Render(out, run)
	case "markdown":
		rep, err := reporter.New(reporter.FormatMarkdown)
		if err != nil {
			return err
		}
		return rep.Render(out, run)
	default:
		printSummary(run, results)
		return nil
	}
}

func printSummary(run *models.AnalysisRun, results *orchestrator.ResultSet) {
	header := color.New(color.FgCyan, color.Bold)
	header.Printf("\nAnalysis of %s\n\n", run.DeploymentID)

	fmt.Printf("Status:     %s\n", colorStatus(run.Status))
	fmt.Printf("Objectives: %s\n", strings.Join(run.ObjectivesAnalyzed, ", "))
	fmt.Printf("API calls:  %d\n", run.APICallsUsed)
	fmt.Printf("Duration:   %.1fs\n\n", run.DurationSeconds)

	for _, r := range results.Results() {
		if r.Success {
			color.Green("✔ %s: %d findings, %d recommendations", r.Objective, len(r.Findings), len(r.Recommendations))
		} else {
			color.Red("✘ %s: %s", r.Objective, r.Error)
		}
	}

	if len(run.Findings) > 0 {
		fmt.Println()
		header.Println("Findings")
		for _, f := range run.Findings {
			fmt.Printf("  [%s] %s: %s\n", colorSeverity(f.Severity), f.Title, f.Description)
		}
	}

	if len(run.Recommendations) > 0 {
		fmt.Println()
		header.Println("Recommendations")
		for _, rec := range run.Recommendations {
			fmt.Printf("  [%s] %s: %s\n", strings.ToUpper(string(rec.Priority)), rec.Title, rec.Description)
		}
	}
}

func colorStatus(status models.RunStatus) string {
	switch status {
	case models.RunCompleted:
		return color.GreenString(string(status))
	case models.RunPartial:
		return color.YellowString(string(status))
	default:
		return color.RedString(string(status))
	}
}

func colorSeverity(s models.Severity) string {
	switch s {
	case models.SeverityCritical, models.SeverityHigh:
		return color.RedString(strings.ToUpper(string(s)))
	case models.SeverityMedium:
		return color.YellowString(strings.ToUpper(string(s)))
	default:
		return color.CyanString(strings.ToUpper(string(s)))
	}
}
