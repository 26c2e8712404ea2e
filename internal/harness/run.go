package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/internal/browser"
	"github.com/xkilldash9x/uiprobe/internal/observability"
	"github.com/xkilldash9x/uiprobe/internal/scenario"
)

// Outcome is the result of a run or a step.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// StepResult records one step of a run.
type StepResult struct {
	Index    int
	Name     string
	Action   scenario.Action
	Locator  string
	Outcome  Outcome
	Duration time.Duration
	Error    string
	Kind     string
}

// Result records a whole run.
type Result struct {
	RunID     string
	Scenario  string
	Target    string
	Engine    string
	StartedAt time.Time
	Duration  time.Duration
	Outcome   Outcome
	// FailureKind and FailureMessage are empty for passed runs.
	FailureKind    string
	FailureMessage string
	// Screenshot is the path of the failure screenshot, if one was taken.
	Screenshot    string
	Steps         []StepResult
	ReleaseErrors []string
}

// Passed reports whether the run succeeded.
func (r *Result) Passed() bool { return r.Outcome == OutcomePassed }

// ResolveTarget applies target precedence: the explicit override, then the
// scenario target, then the configured default.
func ResolveTarget(override string, sc *scenario.Scenario, fallback string) string {
	switch {
	case override != "":
		return override
	case sc != nil && sc.Target != "":
		return sc.Target
	default:
		return fallback
	}
}

func newResult(sc *scenario.Scenario, target, engine string, started time.Time) *Result {
	res := &Result{
		RunID:     uuid.NewString(),
		Scenario:  sc.Name,
		Target:    target,
		Engine:    engine,
		StartedAt: started,
		Steps:     make([]StepResult, len(sc.Steps)),
	}
	for i, step := range sc.Steps {
		sr := StepResult{Index: i, Name: step.Describe(), Action: step.Action(), Outcome: OutcomeSkipped}
		if loc := step.Locator(); !loc.IsZero() {
			sr.Locator = loc.String()
		}
		res.Steps[i] = sr
	}
	return res
}

// Run executes sc against the configured target. Steps run in order and the
// first failure skips the rest. Release always runs, on a context detached
// from ctx so that an interrupted run still cleans up. The returned Result is
// never nil; the error is nil only when every step passed.
func (h *Harness) Run(ctx context.Context, sc *scenario.Scenario) (res *Result, err error) {
	target := h.cfg.TargetURL
	started := time.Now()
	res = newResult(sc, target, h.driver.Name(), started)

	if sc.StepTimeout > 0 {
		h.stepTimeout = sc.StepTimeout
	}
	if sc.SettleDelay != nil {
		h.settleDelay = *sc.SettleDelay
	}

	logger := h.logger.With(zap.String("run_id", res.RunID), zap.String("scenario", sc.Name))
	h.logger = logger

	ctx, span := observability.StartSpan(ctx, "uiprobe.run", trace.WithAttributes(
		observability.AttrRunID.String(res.RunID),
		observability.AttrScenario.String(sc.Name),
		observability.AttrTargetURL.String(target),
		observability.AttrEngine.String(h.driver.Name()),
	))

	defer func() {
		releaseCtx, cancel := context.WithTimeout(browser.Detach(ctx), h.cfg.ReleaseTimeout)
		defer cancel()
		if relErr := h.Release(releaseCtx); relErr != nil {
			res.ReleaseErrors = flatten(relErr)
		}

		res.Duration = time.Since(started)
		if err != nil {
			res.Outcome = OutcomeFailed
			res.FailureKind = FailureKind(err)
			res.FailureMessage = failureMessage(err)
			span.SetAttributes(observability.AttrFailureKind.String(res.FailureKind))
			span.RecordError(err)
			span.SetStatus(codes.Error, res.FailureMessage)
			logger.Error("Run failed.", zap.String("kind", res.FailureKind), zap.Error(err))
		} else {
			res.Outcome = OutcomePassed
			span.SetStatus(codes.Ok, "")
			logger.Info("Run passed.", zap.Duration("duration", res.Duration))
		}
		span.End()
	}()

	logger.Info("Starting run.", zap.String("target", target), zap.Int("steps", len(sc.Steps)))

	if err := h.Acquire(ctx); err != nil {
		return res, err
	}

	openCtx, openSpan := observability.StartSpan(ctx, "uiprobe.open", trace.WithAttributes(observability.AttrTargetURL.String(target)))
	err = h.Open(openCtx, target)
	endSpan(openSpan, err)
	if err != nil {
		return res, err
	}

	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := h.runTracedStep(ctx, res, i, step); err != nil {
			h.captureFailure(ctx, res, i)
			return res, &StepError{Index: i, Name: step.Describe(), Action: step.Action(), Err: err}
		}
	}

	linger := sc.Linger
	if linger == 0 {
		linger = h.cfg.Linger
	}
	if linger > 0 {
		logger.Info("Lingering before release.", zap.Duration("linger", linger))
		if err := h.sleep(ctx, linger); err != nil {
			logger.Debug("Linger interrupted.", zap.Error(err))
		}
	}
	return res, nil
}

func (h *Harness) runTracedStep(ctx context.Context, res *Result, i int, step scenario.Step) error {
	attrs := []attribute.KeyValue{
		observability.AttrStepIndex.Int(i + 1),
		observability.AttrStepName.String(step.Describe()),
		observability.AttrStepAction.String(string(step.Action())),
	}
	if loc := step.Locator(); !loc.IsZero() {
		attrs = append(attrs, observability.AttrLocator.String(loc.String()))
	}
	stepCtx, span := observability.StartSpan(ctx, "uiprobe.step", trace.WithAttributes(attrs...))

	start := time.Now()
	err := h.RunStep(stepCtx, step)
	sr := &res.Steps[i]
	sr.Duration = time.Since(start)
	if err != nil {
		sr.Outcome = OutcomeFailed
		sr.Kind = FailureKind(err)
		sr.Error = err.Error()
		span.SetAttributes(observability.AttrFailureKind.String(sr.Kind))
	} else {
		sr.Outcome = OutcomePassed
	}
	endSpan(span, err)

	h.logger.Info("Step finished.",
		zap.Int("index", i+1),
		zap.String("step", sr.Name),
		zap.String("outcome", string(sr.Outcome)),
		zap.Duration("duration", sr.Duration),
	)
	return err
}

// captureFailure saves a screenshot of the active page when a screenshot
// directory is configured. Failures are logged and otherwise ignored.
func (h *Harness) captureFailure(ctx context.Context, res *Result, index int) {
	dir := h.cfg.ScreenshotDir
	if dir == "" {
		return
	}
	page, err := h.activePage()
	if err != nil {
		return
	}

	shotCtx, cancel := context.WithTimeout(browser.Detach(ctx), h.cfg.LoadStateTimeout)
	defer cancel()
	data, err := page.Screenshot(shotCtx)
	if err != nil {
		h.logger.Warn("Failed to capture failure screenshot.", zap.Error(err))
		return
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-step%02d.png", res.RunID, index+1))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		h.logger.Warn("Failed to create screenshot directory.", zap.String("dir", dir), zap.Error(err))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		h.logger.Warn("Failed to write failure screenshot.", zap.String("path", path), zap.Error(err))
		return
	}
	res.Screenshot = path
	h.logger.Info("Saved failure screenshot.", zap.String("path", path))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// failureMessage is the innermost step failure; for assertions that is the
// business expectation.
func failureMessage(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Err.Error()
	}
	return err.Error()
}

func flatten(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
