package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/uiprobe/internal/locator"
	"github.com/xkilldash9x/uiprobe/internal/scenario"
)

// Typed errors let callers classify failures with errors.As instead of
// matching on message text.

// EngineStartError means the automation engine could not be initialized.
type EngineStartError struct {
	Engine string
	Err    error
}

func (e *EngineStartError) Error() string {
	return fmt.Sprintf("failed to start %s engine: %v", e.Engine, e.Err)
}

func (e *EngineStartError) Unwrap() error { return e.Err }

// Navigation stages reported by NavigationError.
const (
	StageLaunch   = "launch"
	StageContext  = "context"
	StagePage     = "page"
	StageNavigate = "navigate"
)

// NavigationError is a failure to launch, open or navigate the page.
type NavigationError struct {
	URL   string
	Stage string
	Err   error
}

func (e *NavigationError) Error() string {
	if e.Stage == StageNavigate {
		return fmt.Sprintf("failed to navigate to %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("failed to open %s (%s): %v", e.URL, e.Stage, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ElementNotFoundError means no element matched the locator before the timeout.
type ElementNotFoundError struct {
	Locator locator.Locator
	Timeout time.Duration
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("no element matching %s within %s", e.Locator, e.Timeout)
}

func (e *ElementNotFoundError) Unwrap() error { return context.DeadlineExceeded }

// ActionTimeoutError means the element was found but never became actionable,
// or the action itself exceeded its bound.
type ActionTimeoutError struct {
	Action  scenario.Action
	Locator locator.Locator
	Timeout time.Duration
	// Reason describes the last observed element state.
	Reason string
	Err    error
}

func (e *ActionTimeoutError) Error() string {
	msg := fmt.Sprintf("%s on %s timed out after %s", e.Action, e.Locator, e.Timeout)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *ActionTimeoutError) Unwrap() error { return e.Err }

// ActionError is any other failure while acting on an element.
type ActionError struct {
	Action  scenario.Action
	Locator locator.Locator
	Err     error
}

func (e *ActionError) Error() string {
	if e.Locator.IsZero() {
		return fmt.Sprintf("%s failed: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("%s on %s failed: %v", e.Action, e.Locator, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// AssertionFailure reports a business expectation that did not hold. The
// message is the expectation; the lookup error is kept as the cause.
type AssertionFailure struct {
	Expectation string
	Err         error
}

func (e *AssertionFailure) Error() string { return e.Expectation }

func (e *AssertionFailure) Unwrap() error { return e.Err }

// StepError wraps the failure of the step at Index (zero based).
type StepError struct {
	Index  int
	Name   string
	Action scenario.Action
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Index+1, e.Name, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Failure kinds recorded on results and spans.
const (
	KindEngineStart     = "engine_start"
	KindNavigation      = "navigation"
	KindElementNotFound = "element_not_found"
	KindActionTimeout   = "action_timeout"
	KindAction          = "action"
	KindAssertion       = "assertion"
	KindInterrupted     = "interrupted"
	KindError           = "error"
)

// FailureKind classifies err. It returns "" for nil.
func FailureKind(err error) string {
	var (
		engineErr   *EngineStartError
		navErr      *NavigationError
		notFoundErr *ElementNotFoundError
		timeoutErr  *ActionTimeoutError
		actionErr   *ActionError
		assertErr   *AssertionFailure
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return KindInterrupted
	case errors.As(err, &engineErr):
		return KindEngineStart
	case errors.As(err, &navErr):
		return KindNavigation
	case errors.As(err, &notFoundErr):
		return KindElementNotFound
	case errors.As(err, &timeoutErr):
		return KindActionTimeout
	case errors.As(err, &actionErr):
		return KindAction
	case errors.As(err, &assertErr):
		return KindAssertion
	default:
		return KindError
	}
}

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitStepFailure = 2
	ExitNavigation  = 3
	ExitEngineStart = 4
	ExitInterrupted = 130
)

// ExitCode maps a run error to the process exit code.
func ExitCode(err error) int {
	switch FailureKind(err) {
	case "":
		return ExitOK
	case KindInterrupted:
		return ExitInterrupted
	case KindEngineStart:
		return ExitEngineStart
	case KindNavigation:
		return ExitNavigation
	case KindElementNotFound, KindActionTimeout, KindAction:
		return ExitStepFailure
	default:
		return ExitFailure
	}
}
