package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/runtime"
	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
)

func TestEvalError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"protocol error while navigating", &cdproto.Error{Code: -32000, Message: "Execution context was destroyed."}, true},
		{"wrapped protocol error", fmt.Errorf("evaluate: %w", &cdproto.Error{Code: -32000, Message: "Cannot find default execution context"}), true},
		{"marker without protocol type", errors.New("Cannot find context with specified id"), true},
		{"script exception", &runtime.ExceptionDetails{Text: "Uncaught TypeError: el.focus is not a function"}, false},
		{"deadline", context.DeadlineExceeded, false},
		{"canceled", fmt.Errorf("run: %w", context.Canceled), false},
		{"unrelated failure", errors.New("websocket closed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evalError(tt.err)
			assert.Equal(t, tt.transient, errors.Is(got, ErrDocumentReplaced))
			assert.Equal(t, tt.transient, IsTransient(got))
			assert.Contains(t, got.Error(), tt.err.Error())
		})
	}

	assert.NoError(t, evalError(nil))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("frame 0: %w", ErrElementDetached)))
	assert.True(t, IsTransient(ErrDocumentReplaced))
	assert.False(t, IsTransient(ErrInvalidLocator))
	assert.False(t, IsTransient(nil))
}

func TestMapPlaywrightErr(t *testing.T) {
	assert.NoError(t, mapPlaywrightErr(nil))
	assert.ErrorIs(t, mapPlaywrightErr(fmt.Errorf("locator.click: %w", playwright.ErrTimeout)), ErrTimeout)

	navigating := mapPlaywrightErr(errors.New("locator.fill: Execution context was destroyed, most likely because of a navigation"))
	assert.ErrorIs(t, navigating, ErrDocumentReplaced)
	assert.True(t, IsTransient(navigating))

	other := errors.New("locator.click: element is outside of the viewport")
	assert.Equal(t, other, mapPlaywrightErr(other))
}
