package harness_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/xkilldash9x/uiprobe/internal/browser"
	"github.com/xkilldash9x/uiprobe/internal/harness"
	"github.com/xkilldash9x/uiprobe/internal/locator"
	"github.com/xkilldash9x/uiprobe/internal/scenario"
)

// acquisition stages, in order. A run failing at a stage holds every handle
// acquired before it.
var stages = []string{"start", "launch", "context", "page", "goto", "none"}

func stageIndex(s string) int {
	for i, v := range stages {
		if v == s {
			return i
		}
	}
	return -1
}

func TestRun_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(rt, "steps")
		failAt := rapid.IntRange(-1, n-1).Draw(rt, "failAt")
		stage := rapid.SampledFrom(stages).Draw(rt, "failStage")
		at := stageIndex(stage)
		boom := errors.New("boom")

		f := newFixture()
		f.cfg.PollInterval = time.Millisecond
		errAt := func(s string) error {
			if stageIndex(s) == at {
				return boom
			}
			return nil
		}

		f.driver.On("Start", mock.Anything).Return(errAt("start"))
		if at > stageIndex("start") {
			if at == stageIndex("launch") {
				f.driver.On("Launch", mock.Anything, mock.Anything).Return(nil, boom)
			} else {
				f.driver.On("Launch", mock.Anything, mock.Anything).Return(f.browser, nil)
			}
			f.browser.On("Version").Return("mock")
			f.browser.On("Close", mock.Anything).Return(nil)
			f.driver.On("Stop", mock.Anything).Return(nil)
		}
		if at > stageIndex("launch") {
			if at == stageIndex("context") {
				f.browser.On("NewContext", mock.Anything, mock.Anything).Return(nil, boom)
			} else {
				f.browser.On("NewContext", mock.Anything, mock.Anything).Return(f.bctx, nil)
			}
			f.bctx.On("Close", mock.Anything).Return(nil)
		}
		if at > stageIndex("context") {
			if at == stageIndex("page") {
				f.bctx.On("NewPage", mock.Anything).Return(nil, boom)
			} else {
				f.bctx.On("NewPage", mock.Anything).Return(f.page, nil)
			}
		}
		if at > stageIndex("page") {
			f.page.On("Goto", mock.Anything, target).Return(errAt("goto"))
			f.page.On("WaitForLoadState", mock.Anything).Return(nil)
			f.page.On("Frames", mock.Anything).Return([]browser.Frame(nil), nil)
			f.page.On("Probe", mock.Anything, mock.Anything).Return(visible, nil)
		}

		sc := &scenario.Scenario{Name: "generated"}
		for i := 0; i < n; i++ {
			loc := locator.MustParse(fmt.Sprintf("#b%d", i))
			var clickErr error
			if i == failAt {
				clickErr = boom
			}
			f.page.On("Click", mock.Anything, loc).Return(clickErr)
			sc.Steps = append(sc.Steps, scenario.Step{Click: &scenario.ClickAction{Locator: loc}})
		}

		h := f.build(zap.NewNop())
		res, err := h.Run(context.Background(), sc)

		opened := stage == "none"
		wantPass := opened && failAt == -1
		if wantPass {
			assert.NoError(rt, err)
			assert.True(rt, res.Passed())
		} else {
			assert.Error(rt, err)
			assert.False(rt, res.Passed())
		}

		// Steps after a failure never run.
		wantClicks := 0
		if opened {
			wantClicks = n
			if failAt >= 0 {
				wantClicks = failAt + 1
			}
		}
		f.page.AssertNumberOfCalls(rt, "Click", wantClicks)
		for i, sr := range res.Steps {
			switch {
			case i < wantClicks-1 || (i == wantClicks-1 && failAt == -1):
				assert.Equal(rt, harness.OutcomePassed, sr.Outcome, "step %d", i)
			case i == failAt && opened:
				assert.Equal(rt, harness.OutcomeFailed, sr.Outcome, "step %d", i)
			default:
				assert.Equal(rt, harness.OutcomeSkipped, sr.Outcome, "step %d", i)
			}
		}

		// Release touches exactly what was acquired, once.
		wantContextClose, wantBrowserClose, wantStop := 0, 0, 0
		if at > stageIndex("context") {
			wantContextClose = 1
		}
		if at > stageIndex("launch") {
			wantBrowserClose = 1
		}
		if at > stageIndex("start") {
			wantStop = 1
		}
		f.bctx.AssertNumberOfCalls(rt, "Close", wantContextClose)
		f.browser.AssertNumberOfCalls(rt, "Close", wantBrowserClose)
		f.driver.AssertNumberOfCalls(rt, "Stop", wantStop)

		assert.NoError(rt, h.Release(context.Background()))
		f.driver.AssertNumberOfCalls(rt, "Stop", wantStop)
	})
}

func TestExitCode(t *testing.T) {
	loc := locator.MustParse("#send")
	tests := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"success", nil, harness.ExitOK, ""},
		{"generic", errors.New("unexpected"), harness.ExitFailure, harness.KindError},
		{"assertion", &harness.StepError{Err: &harness.AssertionFailure{Expectation: "x"}}, harness.ExitFailure, harness.KindAssertion},
		{"not found", &harness.StepError{Err: &harness.ElementNotFoundError{Locator: loc}}, harness.ExitStepFailure, harness.KindElementNotFound},
		{"action timeout", &harness.StepError{Err: &harness.ActionTimeoutError{Locator: loc}}, harness.ExitStepFailure, harness.KindActionTimeout},
		{"action", &harness.ActionError{Locator: loc, Err: errors.New("detached")}, harness.ExitStepFailure, harness.KindAction},
		{"navigation", &harness.NavigationError{Err: browser.ErrNavigation}, harness.ExitNavigation, harness.KindNavigation},
		{"engine", &harness.EngineStartError{Err: browser.ErrEngineUnavailable}, harness.ExitEngineStart, harness.KindEngineStart},
		{"interrupted", &harness.StepError{Err: context.Canceled}, harness.ExitInterrupted, harness.KindInterrupted},
		{"interrupted wrapped", fmt.Errorf("run: %w", context.Canceled), harness.ExitInterrupted, harness.KindInterrupted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, harness.ExitCode(tt.err))
			assert.Equal(t, tt.kind, harness.FailureKind(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	loc := locator.MustParse("xpath=html/body/div[5]/button")
	assert.Equal(t,
		"no element matching xpath=html/body/div[5]/button within 5s",
		(&harness.ElementNotFoundError{Locator: loc, Timeout: 5 * time.Second}).Error())
	assert.Equal(t,
		"click on xpath=html/body/div[5]/button timed out after 5s: element is not enabled",
		(&harness.ActionTimeoutError{Action: scenario.ActionClick, Locator: loc, Timeout: 5 * time.Second, Reason: "element is not enabled"}).Error())
	assert.Equal(t,
		"step 3 (Click 'Gönder') failed: boom",
		(&harness.StepError{Index: 2, Name: "Click 'Gönder'", Err: errors.New("boom")}).Error())
	assert.Equal(t,
		"failed to open http://x (context): boom",
		(&harness.NavigationError{URL: "http://x", Stage: harness.StageContext, Err: errors.New("boom")}).Error())
}
