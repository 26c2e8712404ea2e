// File: internal/browser/interface.go
//
// Package browser abstracts the automation engine behind a small handle
// hierarchy: Driver (engine runtime) -> Browser -> BrowserContext -> Page -> Frame.
// Two engines are provided, one on chromedp and one on playwright-go.
// Every blocking method takes a context; its deadline bounds the engine call.
package browser

import (
	"context"
	"time"

	"github.com/xkilldash9x/uiprobe/internal/locator"
)

// Driver is an automation engine runtime.
type Driver interface {
	// Name identifies the engine ("chromedp" or "playwright").
	Name() string
	// Start initializes the runtime. It fails with ErrEngineUnavailable when
	// the engine or its browser binary cannot be found.
	Start(ctx context.Context) error
	// Launch starts a browser process.
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
	// Stop shuts the runtime down. It is safe to call after a failed Start.
	Stop(ctx context.Context) error
}

// Browser is a launched browser process.
type Browser interface {
	Version() string
	// NewContext opens an isolated browsing context with its own cookies and storage.
	NewContext(ctx context.Context, opts ContextOptions) (BrowserContext, error)
	Close(ctx context.Context) error
}

// BrowserContext owns a set of pages.
type BrowserContext interface {
	NewPage(ctx context.Context) (Page, error)
	// Pages lists open pages in creation order.
	Pages() []Page
	Close(ctx context.Context) error
}

// Page is a single top level document.
type Page interface {
	URL(ctx context.Context) (string, error)
	// Goto navigates and returns once the navigation has committed.
	Goto(ctx context.Context, url string) error
	// WaitForLoadState waits for DOMContentLoaded of the current document.
	WaitForLoadState(ctx context.Context) error
	// Frames lists the child frames of the page, excluding the main frame.
	Frames(ctx context.Context) ([]Frame, error)
	// Probe inspects the element selected by loc without acting on it.
	Probe(ctx context.Context, loc locator.Locator) (ElementState, error)
	Fill(ctx context.Context, loc locator.Locator, value string) error
	Click(ctx context.Context, loc locator.Locator) error
	Screenshot(ctx context.Context) ([]byte, error)
}

// Frame is a child browsing context of a page.
type Frame interface {
	Name() string
	URL() string
	WaitForLoadState(ctx context.Context) error
}

// Viewport is a window size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// LaunchOptions configures a browser process.
type LaunchOptions struct {
	Headless        bool
	ExecPath        string
	Args            []string
	IgnoreTLSErrors bool
	NoSandbox       bool
	Viewport        Viewport
	Timeout         time.Duration
}

// ContextOptions configures a browsing context.
type ContextOptions struct {
	Viewport        Viewport
	IgnoreTLSErrors bool
	// DefaultTimeout bounds engine calls made without a context deadline.
	DefaultTimeout time.Duration
}

// Rect is an element bounding box in viewport coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the middle point of the box.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Empty reports whether the box has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// ElementState is a snapshot of the element selected by a locator.
type ElementState struct {
	// Count is the number of elements matching the locator, ignoring its nth index.
	Count    int  `json:"count"`
	Attached bool `json:"attached"`
	Visible  bool `json:"visible"`
	Enabled  bool `json:"enabled"`
	Box      Rect `json:"box"`
}

// Actionable reports whether the element can receive input right now.
func (s ElementState) Actionable() bool {
	return s.Attached && s.Visible && s.Enabled && !s.Box.Empty()
}
