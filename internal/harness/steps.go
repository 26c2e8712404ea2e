package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/internal/browser"
	"github.com/xkilldash9x/uiprobe/internal/locator"
	"github.com/xkilldash9x/uiprobe/internal/scenario"
)

// RunStep executes one step on the active page.
func (h *Harness) RunStep(ctx context.Context, step scenario.Step) error {
	timeout := h.timeoutFor(step)
	logger := h.logger.With(zap.String("step", step.Describe()), zap.String("action", string(step.Action())))
	logger.Debug("Running step.", zap.Duration("timeout", timeout))

	switch {
	case step.Fill != nil:
		fill := step.Fill
		return h.act(ctx, scenario.ActionFill, fill.Locator, timeout, func(ctx context.Context, page browser.Page) error {
			return page.Fill(ctx, fill.Locator, fill.Value)
		})
	case step.Click != nil:
		click := step.Click
		return h.act(ctx, scenario.ActionClick, click.Locator, timeout, func(ctx context.Context, page browser.Page) error {
			return page.Click(ctx, click.Locator)
		})
	case step.AssertVisible != nil:
		return h.AssertVisible(ctx, step.AssertVisible.Locator, step.AssertVisible.Expectation, timeout)
	case step.AssertURL != nil:
		return h.assertURL(ctx, step.AssertURL, timeout)
	case step.Navigate != nil:
		page, err := h.activePage()
		if err != nil {
			return &ActionError{Action: scenario.ActionNavigate, Err: err}
		}
		url, err := scenario.ResolveURL(h.target, step.Navigate.URL)
		if err != nil {
			return &ActionError{Action: scenario.ActionNavigate, Err: err}
		}
		return h.navigate(ctx, page, url, timeout)
	default:
		return &ActionError{Action: step.Action(), Err: errors.New("step has no action")}
	}
}

// timeoutFor picks the bound for a step: its own timeout, then the
// assertion or navigation timeout for those kinds, then the step timeout.
func (h *Harness) timeoutFor(step scenario.Step) time.Duration {
	switch {
	case step.Timeout > 0:
		return step.Timeout
	case step.IsAssertion():
		return h.cfg.AssertionTimeout
	case step.Navigate != nil:
		return h.cfg.NavigationTimeout
	default:
		return h.stepTimeout
	}
}

// act waits for the located element to become actionable and then runs do,
// all within timeout. The optional settle delay precedes the wait. A transient
// failure of do, such as the document being replaced, restarts the wait.
func (h *Harness) act(ctx context.Context, action scenario.Action, loc locator.Locator, timeout time.Duration, do func(context.Context, browser.Page) error) error {
	page, err := h.activePage()
	if err != nil {
		return &ActionError{Action: action, Locator: loc, Err: err}
	}
	if err := h.sleep(ctx, h.settleDelay); err != nil {
		return err
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// seen keeps the last attached state across retries so a timeout after a
	// retry is not reported as a missing element.
	var seen browser.ElementState
	for {
		state, err := h.waitActionable(stepCtx, page, loc)
		if state.Attached || !seen.Attached {
			seen = state
		}
		if err != nil {
			return h.classify(ctx, action, loc, timeout, seen, err)
		}
		err = do(stepCtx, page)
		if err == nil {
			return nil
		}
		if !browser.IsTransient(err) {
			return h.classify(ctx, action, loc, timeout, seen, err)
		}
		if stepCtx.Err() != nil {
			return h.classify(ctx, action, loc, timeout, seen, fmt.Errorf("%w: %w", stepCtx.Err(), err))
		}
		h.logger.Debug("Element changed under the action, waiting again.", zap.Stringer("locator", loc), zap.Error(err))
	}
}

// waitActionable polls until the element is attached, visible, enabled and
// has the same bounding box on two consecutive probes. It returns the last
// observed state.
func (h *Harness) waitActionable(ctx context.Context, page browser.Page, loc locator.Locator) (browser.ElementState, error) {
	var (
		last    browser.ElementState
		prevBox *browser.Rect
	)
	err := browser.Poll(ctx, h.pollInterval, func(ctx context.Context) (bool, error) {
		state, err := page.Probe(ctx, loc)
		if err != nil {
			if browser.IsTransient(err) {
				prevBox = nil
				return false, nil
			}
			return false, err
		}
		last = state
		if !state.Actionable() {
			prevBox = nil
			return false, nil
		}
		if prevBox != nil && *prevBox == state.Box {
			return true, nil
		}
		box := state.Box
		prevBox = &box
		return false, nil
	})
	return last, err
}

// classify turns an engine error into the harness taxonomy. parent is the
// caller's context, used to tell interruption from step expiry.
func (h *Harness) classify(parent context.Context, action scenario.Action, loc locator.Locator, timeout time.Duration, last browser.ElementState, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if isTimeout(err) {
		if !last.Attached {
			return &ElementNotFoundError{Locator: loc, Timeout: timeout}
		}
		return &ActionTimeoutError{Action: action, Locator: loc, Timeout: timeout, Reason: describeState(last), Err: err}
	}
	return &ActionError{Action: action, Locator: loc, Err: err}
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, browser.ErrTimeout)
}

func describeState(s browser.ElementState) string {
	var missing []string
	if !s.Visible {
		missing = append(missing, "not visible")
	}
	if !s.Enabled {
		missing = append(missing, "not enabled")
	}
	if s.Visible && s.Box.Empty() {
		missing = append(missing, "has no size")
	}
	if len(missing) == 0 {
		return "element did not settle"
	}
	return "element is " + strings.Join(missing, " and ")
}

// AssertVisible polls until an element matching loc is visible. On failure the
// error is an *AssertionFailure carrying expectation.
func (h *Harness) AssertVisible(ctx context.Context, loc locator.Locator, expectation string, timeout time.Duration) error {
	page, err := h.activePage()
	if err != nil {
		return &AssertionFailure{Expectation: expectation, Err: err}
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var last browser.ElementState
	err = browser.Poll(stepCtx, h.pollInterval, func(ctx context.Context) (bool, error) {
		state, err := page.Probe(ctx, loc)
		if err != nil {
			if browser.IsTransient(err) {
				return false, nil
			}
			return false, err
		}
		last = state
		return state.Attached && state.Visible, nil
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if isTimeout(err) {
		err = fmt.Errorf("%s not visible within %s (%d matching): %w", loc, timeout, last.Count, err)
	}
	h.logger.Debug("Visibility assertion failed.", zap.Stringer("locator", loc), zap.Error(err))
	return &AssertionFailure{Expectation: expectation, Err: err}
}

func (h *Harness) assertURL(ctx context.Context, a *scenario.AssertURLAction, timeout time.Duration) error {
	page, err := h.activePage()
	if err != nil {
		return &AssertionFailure{Expectation: a.Expectation, Err: err}
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var current string
	err = browser.Poll(stepCtx, h.pollInterval, func(ctx context.Context) (bool, error) {
		u, err := page.URL(ctx)
		if err != nil {
			if browser.IsTransient(err) {
				return false, nil
			}
			return false, err
		}
		current = u
		return a.URL.Matches(u, h.target), nil
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if isTimeout(err) {
		err = fmt.Errorf("page url %q does not match %s: %w", current, a.URL, err)
	}
	return &AssertionFailure{Expectation: a.Expectation, Err: err}
}
