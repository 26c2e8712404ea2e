package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/internal/browser"
	"github.com/xkilldash9x/uiprobe/internal/config"
	"github.com/xkilldash9x/uiprobe/internal/harness"
	"github.com/xkilldash9x/uiprobe/internal/observability"
	"github.com/xkilldash9x/uiprobe/internal/reporting"
	"github.com/xkilldash9x/uiprobe/internal/scenario"
)

// newDriver is swapped in tests to run against mock engines.
var newDriver = browser.NewDriver

// flagBindings maps run flags onto configuration keys.
var flagBindings = map[string]string{
	"headless":       "browser.headless",
	"engine":         "browser.engine",
	"step-timeout":   "harness.step_timeout",
	"nav-timeout":    "harness.navigation_timeout",
	"screenshot-dir": "harness.screenshot_dir",
	"report":         "report.output",
	"report-format":  "report.format",
	"trace":          "tracing.enabled",
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	var target string

	runCmd := &cobra.Command{
		Use:   "run <scenario-file|builtin:name>",
		Short: "Run a scenario in a browser and report the outcome",
		Long: `Run executes every step of a scenario against the target application.
The first failing step aborts the run; browser resources are always released.

Exit codes: 0 passed, 1 assertion or other failure, 2 step failure,
3 navigation failure, 4 engine start failure, 130 interrupted.`,
		Example: `  uiprobe run builtin:internal-messaging
  uiprobe run scenarios/login.yaml --target http://staging:3000 --report junit.xml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			// An explicit --step-timeout wins over the scenario default.
			if cmd.Flags().Changed("step-timeout") {
				sc.StepTimeout = cfg.Harness.StepTimeout
			}
			return runScenario(cmd.Context(), cmd.OutOrStdout(), cfg, sc, target)
		},
	}

	flags := runCmd.Flags()
	flags.StringVar(&target, "target", "", "target URL (overrides the scenario and harness.target_url)")
	flags.Bool("headless", true, "run the browser without a window")
	flags.String("engine", config.EngineChromedp, "automation engine: chromedp or playwright")
	flags.Duration("step-timeout", 5*time.Second, "default timeout of element steps")
	flags.Duration("nav-timeout", 10*time.Second, "timeout of the initial navigation")
	flags.String("report", "", "write a report to this file (\"stdout\" for standard output)")
	flags.String("report-format", "junit", "report format: junit or json")
	flags.String("screenshot-dir", "", "save a screenshot of the page here when a step fails")
	flags.Bool("trace", false, "export OpenTelemetry spans for the run")

	for flag, key := range flagBindings {
		// Bound flags only override configuration when set explicitly.
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	return runCmd
}

func runScenario(ctx context.Context, out io.Writer, cfg *config.Config, sc *scenario.Scenario, targetFlag string) error {
	logger := observability.GetLogger().Named("run")

	target := harness.ResolveTarget(targetFlag, sc, cfg.Harness.TargetURL)
	if err := config.ValidateTargetURL(target); err != nil {
		return err
	}
	harnessCfg := cfg.Harness
	harnessCfg.TargetURL = target

	tp, err := observability.NewTracerProvider(cfg.Tracing, cfg.Logger.ServiceName, Version)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(browser.Detach(ctx), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces.", zap.Error(err))
		}
	}()

	var reporter reporting.Reporter
	if cfg.Report.Output != "" {
		if reporter, err = reporting.New(cfg.Report.Format, cfg.Report.Output); err != nil {
			return err
		}
		defer func() {
			if err := reporter.Close(); err != nil {
				logger.Warn("Failed to close report.", zap.Error(err))
			}
		}()
	}

	driver, err := newDriver(cfg.Browser, logger)
	if err != nil {
		return err
	}
	h := harness.New(driver, browser.LaunchOptionsFromConfig(cfg.Browser), harnessCfg, logger)

	res, runErr := h.Run(ctx, sc)

	if reporter != nil {
		if err := reporter.Write(res); err != nil {
			logger.Error("Failed to write report.", zap.Error(err))
		}
	}
	printSummary(out, res)

	if runErr != nil {
		return &reportedError{err: runErr}
	}
	return nil
}

// printSummary writes the one line verdict, followed by failure details.
func printSummary(w io.Writer, res *harness.Result) {
	passed := 0
	for _, s := range res.Steps {
		if s.Outcome == harness.OutcomePassed {
			passed++
		}
	}
	elapsed := res.Duration.Round(time.Millisecond)

	if res.Passed() {
		fmt.Fprintf(w, "%s %s: %d/%d steps passed in %s (run %s)\n",
			color.New(color.FgGreen, color.Bold).Sprint("PASS"), res.Scenario, passed, len(res.Steps), elapsed, res.RunID)
		return
	}

	fmt.Fprintf(w, "%s %s: %s\n", color.New(color.FgRed, color.Bold).Sprint("FAIL"), res.Scenario, res.FailureMessage)
	for _, s := range res.Steps {
		if s.Outcome == harness.OutcomeFailed {
			fmt.Fprintf(w, "  at step %d/%d: %s\n", s.Index+1, len(res.Steps), s.Name)
		}
	}
	faint := color.New(color.Faint)
	fmt.Fprintf(w, "  %s\n", faint.Sprintf("%s after %s, %d/%d steps passed (run %s)", res.FailureKind, elapsed, passed, len(res.Steps), res.RunID))
	if res.Screenshot != "" {
		fmt.Fprintf(w, "  screenshot: %s\n", res.Screenshot)
	}
	for _, e := range res.ReleaseErrors {
		fmt.Fprintf(w, "  %s %s\n", color.YellowString("release:"), e)
	}
}
