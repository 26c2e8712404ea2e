// Package scenario defines the declarative step model run by the harness and
// loads scenarios from YAML or JSON files and from the built-in set.
package scenario

import (
	"fmt"
	"time"

	"github.com/xkilldash9x/uiprobe/internal/locator"
)

// Action names a step variant.
type Action string

const (
	ActionFill          Action = "fill"
	ActionClick         Action = "click"
	ActionAssertVisible Action = "assert_visible"
	ActionAssertURL     Action = "assert_url"
	ActionNavigate      Action = "navigate"
)

// Scenario is an ordered list of steps run against one target.
type Scenario struct {
	Name        string
	Description string
	// Target overrides the configured target URL when set.
	Target string
	// StepTimeout is the default bound for element steps. Zero defers to configuration.
	StepTimeout time.Duration
	// SettleDelay, when set, overrides the configured pause before element lookups.
	SettleDelay *time.Duration
	// Linger keeps the session open after a successful run.
	Linger time.Duration
	Steps  []Step
}

// Step is one tagged variant. Exactly one of the action pointers is set.
type Step struct {
	Name string
	// Timeout bounds this step. Zero defers to the scenario and then configuration.
	Timeout time.Duration

	Fill          *FillAction
	Click         *ClickAction
	AssertVisible *AssertVisibleAction
	AssertURL     *AssertURLAction
	Navigate      *NavigateAction
}

// FillAction replaces the value of the selected element.
type FillAction struct {
	Locator locator.Locator
	Value   string
}

// ClickAction clicks the selected element.
type ClickAction struct {
	Locator locator.Locator
}

// AssertVisibleAction passes once the selected element is visible.
type AssertVisibleAction struct {
	Locator locator.Locator
	// Expectation is the business statement reported when the assertion fails.
	Expectation string
}

// AssertURLAction passes once the active page URL matches.
type AssertURLAction struct {
	URL         URLMatcher
	Expectation string
}

// NavigateAction loads a URL in the active page. Relative URLs resolve against the target.
type NavigateAction struct {
	URL string
}

// Action reports which variant the step holds.
func (s Step) Action() Action {
	switch {
	case s.Fill != nil:
		return ActionFill
	case s.Click != nil:
		return ActionClick
	case s.AssertVisible != nil:
		return ActionAssertVisible
	case s.AssertURL != nil:
		return ActionAssertURL
	case s.Navigate != nil:
		return ActionNavigate
	}
	return ""
}

// Locator returns the element locator of element steps and the zero Locator otherwise.
func (s Step) Locator() locator.Locator {
	switch {
	case s.Fill != nil:
		return s.Fill.Locator
	case s.Click != nil:
		return s.Click.Locator
	case s.AssertVisible != nil:
		return s.AssertVisible.Locator
	}
	return locator.Locator{}
}

// IsAssertion reports whether the step checks state rather than acting.
func (s Step) IsAssertion() bool {
	return s.AssertVisible != nil || s.AssertURL != nil
}

// Describe is the step name, or a summary of the action when unnamed.
func (s Step) Describe() string {
	if s.Name != "" {
		return s.Name
	}
	switch {
	case s.Fill != nil:
		return fmt.Sprintf("fill %s", s.Fill.Locator)
	case s.Click != nil:
		return fmt.Sprintf("click %s", s.Click.Locator)
	case s.AssertVisible != nil:
		return fmt.Sprintf("expect %s to be visible", s.AssertVisible.Locator)
	case s.AssertURL != nil:
		return fmt.Sprintf("expect url %s", s.AssertURL.URL)
	case s.Navigate != nil:
		return fmt.Sprintf("navigate to %s", s.Navigate.URL)
	}
	return "empty step"
}
