// Package harness drives one scenario run: it acquires the automation engine,
// opens the target, executes steps with bounded actionability polling and
// releases every acquired handle exactly once.
package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/uiprobe/internal/browser"
	"github.com/xkilldash9x/uiprobe/internal/config"
)

// Harness owns the session, context and pages of a single run. It is not safe
// for concurrent use; one action runs at a time.
type Harness struct {
	driver browser.Driver
	launch browser.LaunchOptions
	cfg    config.HarnessConfig
	logger *zap.Logger

	stepTimeout  time.Duration
	settleDelay  time.Duration
	pollInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) error

	engineStarted bool
	browser       browser.Browser
	browserCtx    browser.BrowserContext
	target        string

	releaseOnce sync.Once
	releaseErr  error
}

// Option customizes a Harness.
type Option func(*Harness)

// WithSleep replaces the pause used for settle delays and lingering.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(h *Harness) { h.sleep = sleep }
}

// New creates a harness for driver. Nothing is started until Acquire.
func New(driver browser.Driver, launch browser.LaunchOptions, cfg config.HarnessConfig, logger *zap.Logger, opts ...Option) *Harness {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Harness{
		driver:       driver,
		launch:       launch,
		cfg:          cfg,
		logger:       logger.Named("harness").With(zap.String("engine", driver.Name())),
		stepTimeout:  cfg.StepTimeout,
		settleDelay:  cfg.SettleDelay,
		pollInterval: cfg.PollInterval,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Acquire starts the automation engine.
func (h *Harness) Acquire(ctx context.Context) error {
	h.logger.Debug("Starting automation engine.")
	if err := h.driver.Start(ctx); err != nil {
		return &EngineStartError{Engine: h.driver.Name(), Err: err}
	}
	h.engineStarted = true
	return nil
}

// Open launches the browser, opens a context and a page and navigates to
// targetURL with commit semantics. Load state waits afterwards are best effort.
func (h *Harness) Open(ctx context.Context, targetURL string) error {
	if !h.engineStarted {
		return &NavigationError{URL: targetURL, Stage: StageLaunch, Err: errors.New("engine not started")}
	}
	h.target = targetURL

	b, err := h.driver.Launch(ctx, h.launch)
	if err != nil {
		return &NavigationError{URL: targetURL, Stage: StageLaunch, Err: err}
	}
	h.browser = b
	h.logger.Info("Browser launched.", zap.String("version", b.Version()))

	bctx, err := b.NewContext(ctx, browser.ContextOptions{
		Viewport:        h.launch.Viewport,
		IgnoreTLSErrors: h.launch.IgnoreTLSErrors,
		DefaultTimeout:  h.stepTimeout,
	})
	if err != nil {
		return &NavigationError{URL: targetURL, Stage: StageContext, Err: err}
	}
	h.browserCtx = bctx

	page, err := bctx.NewPage(ctx)
	if err != nil {
		return &NavigationError{URL: targetURL, Stage: StagePage, Err: err}
	}

	return h.navigate(ctx, page, targetURL, h.cfg.NavigationTimeout)
}

func (h *Harness) navigate(ctx context.Context, page browser.Page, url string, timeout time.Duration) error {
	h.logger.Info("Navigating.", zap.String("url", url), zap.Duration("timeout", timeout))
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	err := page.Goto(navCtx, url)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &NavigationError{URL: url, Stage: StageNavigate, Err: err}
	}

	if rep := h.settle(ctx, page); rep.err() != nil {
		h.logger.Debug("Load state wait did not complete; continuing.", zap.Error(rep.err()))
	}
	return nil
}

// settleReport carries the outcome of the best-effort load state waits.
// Callers log it and move on.
type settleReport struct {
	main   error
	frames []error
}

func (r settleReport) err() error {
	return errors.Join(append([]error{r.main}, r.frames...)...)
}

// settle waits for DOMContentLoaded on the page and then, concurrently and
// with independent timeouts, on each of its frames.
func (h *Harness) settle(ctx context.Context, page browser.Page) settleReport {
	var rep settleReport
	timeout := h.cfg.LoadStateTimeout

	mainCtx, cancel := context.WithTimeout(ctx, timeout)
	rep.main = page.WaitForLoadState(mainCtx)
	cancel()

	listCtx, cancel := context.WithTimeout(ctx, timeout)
	frames, err := page.Frames(listCtx)
	cancel()
	if err != nil {
		rep.frames = append(rep.frames, fmt.Errorf("list frames: %w", err))
		return rep
	}

	errs := make([]error, len(frames))
	var g errgroup.Group
	for i, f := range frames {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := f.WaitForLoadState(fctx); err != nil {
				errs[i] = fmt.Errorf("frame %q (%s): %w", f.Name(), f.URL(), err)
			}
			return nil
		})
	}
	_ = g.Wait()
	rep.frames = append(rep.frames, errs...)
	return rep
}

// activePage is the most recently opened page of the context.
func (h *Harness) activePage() (browser.Page, error) {
	if h.browserCtx == nil {
		return nil, errors.New("no page is open")
	}
	pages := h.browserCtx.Pages()
	if len(pages) == 0 {
		return nil, errors.New("no page is open")
	}
	return pages[len(pages)-1], nil
}

// Release closes the context, closes the browser and stops the engine, in
// that order and only for what was acquired. It runs once; later calls
// return the first result.
func (h *Harness) Release(ctx context.Context) error {
	h.releaseOnce.Do(func() {
		var errs []error
		if h.browserCtx != nil {
			errs = append(errs, h.guard("close context", func() error { return h.browserCtx.Close(ctx) }))
		}
		if h.browser != nil {
			errs = append(errs, h.guard("close browser", func() error { return h.browser.Close(ctx) }))
		}
		if h.engineStarted {
			errs = append(errs, h.guard("stop engine", func() error { return h.driver.Stop(ctx) }))
		}
		h.releaseErr = errors.Join(errs...)
		if h.releaseErr != nil {
			h.logger.Warn("Release completed with errors.", zap.Error(h.releaseErr))
		} else {
			h.logger.Debug("Released all resources.")
		}
	})
	return h.releaseErr
}

func (h *Harness) guard(what string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", what, r)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
