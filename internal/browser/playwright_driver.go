package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/internal/config"
	"github.com/xkilldash9x/uiprobe/internal/locator"
)

const defaultInstallTimeout = 5 * time.Minute

// PlaywrightOptions tunes the playwright engine runtime.
type PlaywrightOptions struct {
	// Install downloads the Chromium build before starting.
	Install        bool
	InstallTimeout time.Duration
}

// PlaywrightDriver drives Chromium through the playwright-go driver process.
type PlaywrightDriver struct {
	logger *zap.Logger
	opts   PlaywrightOptions

	mu sync.Mutex
	pw *playwright.Playwright
}

// NewPlaywrightDriver returns an unstarted playwright engine.
func NewPlaywrightDriver(logger *zap.Logger, opts PlaywrightOptions) *PlaywrightDriver {
	return &PlaywrightDriver{logger: logger.Named("playwright"), opts: opts}
}

func (d *PlaywrightDriver) Name() string { return config.EnginePlaywright }

// Start optionally installs the browsers and then starts the driver process.
func (d *PlaywrightDriver) Start(ctx context.Context) error {
	if d.opts.Install {
		if err := d.ensureInstallation(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
	}

	pw, err := runBlocking(ctx, func() (*playwright.Playwright, error) { return playwright.Run() })
	if err != nil {
		return fmt.Errorf("%w: failed to start playwright driver: %v", ErrEngineUnavailable, err)
	}

	d.mu.Lock()
	d.pw = pw
	d.mu.Unlock()
	d.logger.Debug("Playwright driver started.")
	return nil
}

func (d *PlaywrightDriver) ensureInstallation(ctx context.Context) error {
	timeout := d.opts.InstallTimeout
	if timeout <= 0 {
		timeout = defaultInstallTimeout
	}
	installCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d.logger.Info("Installing playwright browsers.", zap.Duration("timeout", timeout))
	_, err := runBlocking(installCtx, func() (struct{}, error) {
		return struct{}{}, playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
	})
	if err != nil {
		return fmt.Errorf("failed to install playwright browsers: %w", err)
	}
	return nil
}

// runBlocking runs fn, which cannot be cancelled, and stops waiting for it
// when ctx is done.
func runBlocking[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (d *PlaywrightDriver) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	d.mu.Lock()
	pw := d.pw
	d.mu.Unlock()
	if pw == nil {
		return nil, fmt.Errorf("%w: driver not started", ErrEngineUnavailable)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultLaunchTimeout
	}
	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.Args,
		Timeout:  playwright.Float(float64(timeoutFrom(ctx, timeout).Milliseconds())),
	}
	if opts.ExecPath != "" {
		launchOpts.ExecutablePath = playwright.String(opts.ExecPath)
	}
	if opts.NoSandbox {
		launchOpts.ChromiumSandbox = playwright.Bool(false)
	}

	b, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser instance: %w", mapPlaywrightErr(err))
	}
	d.logger.Info("Browser launched.", zap.String("version", b.Version()), zap.Bool("headless", opts.Headless))
	return &pwBrowser{browser: b}, nil
}

// Stop terminates the driver process, which also kills any browser it launched.
func (d *PlaywrightDriver) Stop(ctx context.Context) error {
	d.mu.Lock()
	pw := d.pw
	d.pw = nil
	d.mu.Unlock()
	if pw == nil {
		return nil
	}
	_, err := runBlocking(ctx, func() (struct{}, error) { return struct{}{}, pw.Stop() })
	if err != nil {
		return fmt.Errorf("failed to stop playwright driver: %w", err)
	}
	return nil
}

// mapPlaywrightErr marks playwright timeouts with ErrTimeout and evaluations
// cut short by a navigation with ErrDocumentReplaced.
func mapPlaywrightErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if documentLost(err) {
		return fmt.Errorf("%w: %v", ErrDocumentReplaced, err)
	}
	return err
}

func msFrom(ctx context.Context, fallback time.Duration) *float64 {
	return playwright.Float(float64(timeoutFrom(ctx, fallback).Milliseconds()))
}

// -- pwBrowser --

type pwBrowser struct {
	browser playwright.Browser
}

func (b *pwBrowser) Version() string { return b.browser.Version() }

func (b *pwBrowser) NewContext(ctx context.Context, opts ContextOptions) (BrowserContext, error) {
	ctxOpts := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(opts.IgnoreTLSErrors),
	}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		ctxOpts.Viewport = &playwright.Size{Width: opts.Viewport.Width, Height: opts.Viewport.Height}
	}
	bctx, err := b.browser.NewContext(ctxOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", mapPlaywrightErr(err))
	}
	fallback := opts.DefaultTimeout
	if fallback <= 0 {
		fallback = 30 * time.Second
	}
	bctx.SetDefaultTimeout(float64(fallback.Milliseconds()))
	return &pwContext{ctx: bctx, fallback: fallback}, nil
}

func (b *pwBrowser) Close(ctx context.Context) error {
	_, err := runBlocking(ctx, func() (struct{}, error) { return struct{}{}, b.browser.Close() })
	return err
}

// -- pwContext --

type pwContext struct {
	ctx      playwright.BrowserContext
	fallback time.Duration
}

func (c *pwContext) NewPage(ctx context.Context) (Page, error) {
	p, err := c.ctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", mapPlaywrightErr(err))
	}
	return &pwPage{page: p, fallback: c.fallback}, nil
}

// Pages includes pages the application opened itself, such as popups.
func (c *pwContext) Pages() []Page {
	pages := c.ctx.Pages()
	out := make([]Page, 0, len(pages))
	for _, p := range pages {
		out = append(out, &pwPage{page: p, fallback: c.fallback})
	}
	return out
}

func (c *pwContext) Close(ctx context.Context) error {
	_, err := runBlocking(ctx, func() (struct{}, error) { return struct{}{}, c.ctx.Close() })
	return err
}

// -- pwPage --

type pwPage struct {
	page     playwright.Page
	fallback time.Duration
}

func (p *pwPage) URL(ctx context.Context) (string, error) {
	return p.page.URL(), nil
}

func (p *pwPage) Goto(ctx context.Context, url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateCommit,
		Timeout:   msFrom(ctx, p.fallback),
	})
	return mapPlaywrightErr(err)
}

func (p *pwPage) WaitForLoadState(ctx context.Context) error {
	return mapPlaywrightErr(p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: msFrom(ctx, p.fallback),
	}))
}

func (p *pwPage) Frames(ctx context.Context) ([]Frame, error) {
	var frames []Frame
	main := p.page.MainFrame()
	for _, f := range p.page.Frames() {
		if f == main {
			continue
		}
		frames = append(frames, &pwFrame{frame: f, fallback: p.fallback})
	}
	return frames, nil
}

// locate returns the locator for all matches and the one selected by loc.Nth.
func (p *pwPage) locate(loc locator.Locator) (playwright.Locator, playwright.Locator, error) {
	switch loc.Strategy {
	case locator.XPath, locator.CSS, locator.Text:
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedLocator, loc.Strategy)
	}
	all := p.page.Locator(locator.Locator{Strategy: loc.Strategy, Query: loc.Query}.String())
	return all, all.Nth(loc.Nth), nil
}

func (p *pwPage) Probe(ctx context.Context, loc locator.Locator) (ElementState, error) {
	all, el, err := p.locate(loc)
	if err != nil {
		return ElementState{}, err
	}
	count, err := all.Count()
	if err != nil {
		if documentLost(err) {
			return ElementState{}, fmt.Errorf("%w: %v", ErrDocumentReplaced, err)
		}
		return ElementState{}, fmt.Errorf("%w: %s: %v", ErrInvalidLocator, loc, err)
	}
	state := ElementState{Count: count}
	if count <= loc.Nth {
		return state, nil
	}
	state.Attached = true

	// The element can detach between the calls below; treat that as not yet visible.
	if state.Visible, err = el.IsVisible(); err != nil {
		return state, nil
	}
	if !state.Visible {
		return state, nil
	}
	if state.Enabled, err = el.IsEnabled(playwright.LocatorIsEnabledOptions{Timeout: msFrom(ctx, p.fallback)}); err != nil {
		return state, nil
	}
	box, err := el.BoundingBox(playwright.LocatorBoundingBoxOptions{Timeout: msFrom(ctx, p.fallback)})
	if err == nil && box != nil {
		state.Box = Rect{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}
	}
	return state, nil
}

func (p *pwPage) Fill(ctx context.Context, loc locator.Locator, value string) error {
	_, el, err := p.locate(loc)
	if err != nil {
		return err
	}
	return mapPlaywrightErr(el.Fill(value, playwright.LocatorFillOptions{Timeout: msFrom(ctx, p.fallback)}))
}

func (p *pwPage) Click(ctx context.Context, loc locator.Locator) error {
	_, el, err := p.locate(loc)
	if err != nil {
		return err
	}
	return mapPlaywrightErr(el.Click(playwright.LocatorClickOptions{Timeout: msFrom(ctx, p.fallback)}))
}

func (p *pwPage) Screenshot(ctx context.Context) ([]byte, error) {
	buf, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Timeout:  msFrom(ctx, p.fallback),
	})
	return buf, mapPlaywrightErr(err)
}

// -- pwFrame --

type pwFrame struct {
	frame    playwright.Frame
	fallback time.Duration
}

func (f *pwFrame) Name() string { return f.frame.Name() }
func (f *pwFrame) URL() string  { return f.frame.URL() }

func (f *pwFrame) WaitForLoadState(ctx context.Context) error {
	return mapPlaywrightErr(f.frame.WaitForLoadState(playwright.FrameWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: msFrom(ctx, f.fallback),
	}))
}
