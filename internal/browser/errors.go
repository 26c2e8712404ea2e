package browser

import (
	"errors"
	"strings"
)

var (
	// ErrEngineUnavailable means the engine runtime or its browser binary is missing.
	ErrEngineUnavailable = errors.New("automation engine unavailable")
	// ErrCrossOriginFrame means a frame's document cannot be inspected from the page.
	ErrCrossOriginFrame = errors.New("cross-origin frame")
	// ErrUnsupportedLocator means the engine cannot evaluate the locator strategy.
	ErrUnsupportedLocator = errors.New("unsupported locator strategy")
	// ErrInvalidLocator means the page rejected the query (bad XPath or CSS syntax).
	ErrInvalidLocator = errors.New("invalid locator")
	// ErrElementDetached means the element disappeared between lookup and action.
	ErrElementDetached = errors.New("element is not attached to the document")
	// ErrNotEditable means a fill targeted an element that does not accept text.
	ErrNotEditable = errors.New("element is not editable")
	// ErrTimeout marks an engine side timeout that did not surface as a context error.
	ErrTimeout = errors.New("engine operation timed out")
	// ErrNavigation is returned when the browser reports a failed navigation.
	ErrNavigation = errors.New("navigation failed")
	// ErrDocumentReplaced means a script lost its document to a navigation in
	// flight. The next attempt runs against the new document.
	ErrDocumentReplaced = errors.New("document was replaced during evaluation")
)

// IsTransient reports whether err describes page state that can change on a
// later attempt, so callers polling within a deadline should try again.
func IsTransient(err error) bool {
	return errors.Is(err, ErrElementDetached) || errors.Is(err, ErrDocumentReplaced)
}

// documentLostMarkers are protocol messages the browser answers with while a
// navigation swaps out the execution context a script was bound to.
var documentLostMarkers = []string{
	"Execution context was destroyed",
	"execution context destroyed",
	"Cannot find default execution context",
	"Cannot find context with specified id",
	"Inspected target navigated or closed",
}

// documentLost reports whether err carries one of documentLostMarkers.
func documentLost(err error) bool {
	msg := err.Error()
	for _, marker := range documentLostMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
