package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/internal/config"
)

const defaultLaunchTimeout = 60 * time.Second

// chromeCandidates are tried in order when no executable is configured.
var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"headless-shell",
	"headless_shell",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// ChromeDriver drives Chrome or Chromium over the DevTools protocol with chromedp.
type ChromeDriver struct {
	logger   *zap.Logger
	execPath string

	mu       sync.Mutex
	resolved string
	browsers []*chromeBrowser
}

// NewChromeDriver returns an unstarted chromedp engine. An empty execPath
// means the binary is searched on PATH.
func NewChromeDriver(logger *zap.Logger, execPath string) *ChromeDriver {
	return &ChromeDriver{
		logger:   logger.Named("chromedp"),
		execPath: execPath,
	}
}

func (d *ChromeDriver) Name() string { return config.EngineChromedp }

// Start locates the browser binary.
func (d *ChromeDriver) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := resolveChrome(d.execPath)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.resolved = path
	d.mu.Unlock()
	d.logger.Debug("Resolved browser executable.", zap.String("path", path))
	return nil
}

func resolveChrome(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("%w: browser executable '%s': %v", ErrEngineUnavailable, configured, err)
		}
		return configured, nil
	}
	for _, candidate := range chromeCandidates {
		if filepath.IsAbs(candidate) {
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			continue
		}
		if p, err := lookPath(candidate); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no Chrome or Chromium executable found (set browser.exec_path)", ErrEngineUnavailable)
}

// Launch starts a browser process and waits until it answers, bounded by opts.Timeout.
func (d *ChromeDriver) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	d.mu.Lock()
	resolved := d.resolved
	d.mu.Unlock()
	if resolved == "" {
		return nil, fmt.Errorf("%w: driver not started", ErrEngineUnavailable)
	}
	if opts.ExecPath == "" {
		opts.ExecPath = resolved
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultLaunchTimeout
	}

	// The allocator outlives the launch call, so it must not inherit its cancellation.
	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), buildAllocatorOptions(opts)...)
	sugar := d.logger.Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)
	cancel := func() {
		browserCancel()
		allocCancel()
	}

	launchCtx, launchCancel := context.WithTimeout(ctx, timeout)
	defer launchCancel()

	if err := allocate(launchCtx, browserCtx, cancel); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("browser did not start within %v: %w", timeout, err)
		}
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	var product string
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		_, product, _, _, _, err = cdpbrowser.GetVersion().Do(ctx)
		return err
	}))
	if err != nil {
		d.logger.Debug("Could not read browser version.", zap.Error(err))
	}

	b := &chromeBrowser{
		logger:      d.logger,
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		version:     product,
	}
	d.mu.Lock()
	d.browsers = append(d.browsers, b)
	d.mu.Unlock()

	d.logger.Info("Browser launched.", zap.String("version", product), zap.Bool("headless", opts.Headless))
	return b, nil
}

// Stop closes any browser that is still running.
func (d *ChromeDriver) Stop(ctx context.Context) error {
	d.mu.Lock()
	browsers := d.browsers
	d.browsers = nil
	d.mu.Unlock()

	var errs []error
	for _, b := range browsers {
		if b.closed.Load() {
			continue
		}
		errs = append(errs, b.Close(ctx))
	}
	return errors.Join(errs...)
}

// chromeFlag is a command line switch passed to the browser process.
type chromeFlag struct {
	Name  string
	Value interface{}
}

// chromeFlags lists the switches for a launch, in the order they are applied.
// Later entries override earlier ones with the same name.
func chromeFlags(opts LaunchOptions) []chromeFlag {
	flags := []chromeFlag{
		// A false boolean removes the switch; the automation infobar shifts the viewport.
		{"enable-automation", false},
		{"headless", opts.Headless},
		{"disable-gpu", opts.Headless},
		{"ignore-certificate-errors", opts.IgnoreTLSErrors},
	}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		flags = append(flags, chromeFlag{"window-size", fmt.Sprintf("%d,%d", opts.Viewport.Width, opts.Viewport.Height)})
	}

	for _, arg := range opts.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags = append(flags, chromeFlag{name, parts[1]})
		} else {
			flags = append(flags, chromeFlag{name, true})
		}
	}

	if opts.NoSandbox && goruntime.GOOS == "linux" {
		flags = append(flags,
			chromeFlag{"no-sandbox", true},
			chromeFlag{"disable-dev-shm-usage", true},
			chromeFlag{"disable-setuid-sandbox", true},
		)
	}
	return flags
}

// buildAllocatorOptions turns a launch into exec allocator options on top of
// chromedp's defaults.
func buildAllocatorOptions(opts LaunchOptions) []chromedp.ExecAllocatorOption {
	allocOpts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	for _, f := range chromeFlags(opts) {
		allocOpts = append(allocOpts, chromedp.Flag(f.Name, f.Value))
	}
	return allocOpts
}

// allocate performs the first Run on a chromedp context, which creates the
// browser or tab. That Run must not carry a deadline (it would tear the
// target down on expiry), so ctx is enforced from outside and cancel is
// called on failure.
func allocate(ctx, cdpCtx context.Context, cancel context.CancelFunc, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(cdpCtx, actions...) }()

	select {
	case err := <-done:
		if err != nil {
			cancel()
		}
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// cancelWithin closes a chromedp target and waits for it, giving up when ctx is done.
func cancelWithin(ctx, cdpCtx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(cdpCtx) }()

	select {
	case err := <-done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("timed out closing browser target: %w", ctx.Err())
	}
}

// -- chromeBrowser --

type chromeBrowser struct {
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	version     string

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

func (b *chromeBrowser) Version() string { return b.version }

func (b *chromeBrowser) NewContext(ctx context.Context, opts ContextOptions) (BrowserContext, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, fmt.Errorf("browser is closed: %w", err)
	}
	return &chromeContext{browser: b, opts: opts, logger: b.logger}, nil
}

// Close asks the browser to exit and then tears down the process.
func (b *chromeBrowser) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		b.closeErr = cancelWithin(ctx, b.ctx)
		b.cancel()
		b.allocCancel()
	})
	return b.closeErr
}

// -- chromeContext --

// defaultAttachTimeout bounds attaching to a page the application opened when
// the context has no default timeout.
const defaultAttachTimeout = 10 * time.Second

// chromeContext is a DevTools browser context. It is created together with its
// first page; later pages are opened as siblings in the same browser context.
// Pages the application opens itself (window.open, target=_blank) are seen by
// a target listener on their opener and attached on the next Pages call.
type chromeContext struct {
	browser *chromeBrowser
	opts    ContextOptions
	logger  *zap.Logger

	mu     sync.Mutex
	pages  []*chromePage
	closed bool

	// Written from target listeners, which must never block.
	eventsMu  sync.Mutex
	opened    []target.ID
	destroyed map[target.ID]bool
}

func (c *chromeContext) NewPage(ctx context.Context) (Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("browser context is closed")
	}

	var (
		tabCtx    context.Context
		tabCancel context.CancelFunc
	)
	if len(c.pages) == 0 {
		tabCtx, tabCancel = chromedp.NewContext(c.browser.ctx, chromedp.WithNewBrowserContext())
	} else {
		tabCtx, tabCancel = chromedp.NewContext(c.pages[0].ctx)
	}

	if err := allocate(ctx, tabCtx, tabCancel, c.pageActions()...); err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return c.track(tabCtx, tabCancel), nil
}

func (c *chromeContext) pageActions() []chromedp.Action {
	var actions []chromedp.Action
	if w, h := c.opts.Viewport.Width, c.opts.Viewport.Height; w > 0 && h > 0 {
		actions = append(actions, chromedp.EmulateViewport(int64(w), int64(h)))
	}
	return actions
}

// track registers an attached tab as a page of this context. Callers hold c.mu.
func (c *chromeContext) track(tabCtx context.Context, tabCancel context.CancelFunc) *chromePage {
	p := &chromePage{
		ctx:            tabCtx,
		cancel:         tabCancel,
		logger:         c.logger,
		pollInterval:   50 * time.Millisecond,
		defaultTimeout: c.opts.DefaultTimeout,
	}
	if t := chromedp.FromContext(tabCtx).Target; t != nil {
		p.targetID = t.TargetID
	}
	c.pages = append(c.pages, p)
	c.watch(p)
	return p
}

// watch records pages opened by p and targets that went away.
func (c *chromeContext) watch(p *chromePage) {
	chromedp.ListenTarget(p.ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *target.EventTargetCreated:
			info := ev.TargetInfo
			if info == nil || info.Type != "page" || info.OpenerID != p.targetID {
				return
			}
			c.eventsMu.Lock()
			c.opened = append(c.opened, info.TargetID)
			c.eventsMu.Unlock()
		case *target.EventTargetDestroyed:
			c.eventsMu.Lock()
			if c.destroyed == nil {
				c.destroyed = make(map[target.ID]bool)
			}
			c.destroyed[ev.TargetID] = true
			c.eventsMu.Unlock()
		}
	})
}

// drainEvents returns the pages opened since the last call and a copy of the
// destroyed target set.
func (c *chromeContext) drainEvents() ([]target.ID, map[target.ID]bool) {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	opened := c.opened
	c.opened = nil
	gone := make(map[target.ID]bool, len(c.destroyed))
	for id := range c.destroyed {
		gone[id] = true
	}
	return opened, gone
}

// adopt drops pages whose targets are gone and attaches to pages the
// application opened. The first page is never dropped: it owns the browser
// context. Callers hold c.mu.
func (c *chromeContext) adopt() {
	if c.closed || len(c.pages) == 0 {
		return
	}
	opened, gone := c.drainEvents()

	kept := c.pages[:1]
	for _, p := range c.pages[1:] {
		if gone[p.targetID] {
			p.cancel()
			continue
		}
		kept = append(kept, p)
	}
	c.pages = kept

	timeout := c.opts.DefaultTimeout
	if timeout <= 0 {
		timeout = defaultAttachTimeout
	}
	for _, id := range opened {
		if gone[id] {
			continue
		}
		tabCtx, tabCancel := chromedp.NewContext(c.pages[0].ctx, chromedp.WithTargetID(id))
		attachCtx, cancel := context.WithTimeout(context.Background(), timeout)
		err := allocate(attachCtx, tabCtx, tabCancel, c.pageActions()...)
		cancel()
		if err != nil {
			c.logger.Debug("Failed to attach to a page opened by the application.", zap.String("target_id", string(id)), zap.Error(err))
			continue
		}
		c.logger.Debug("Attached to a page opened by the application.", zap.String("target_id", string(id)))
		c.track(tabCtx, tabCancel)
	}
}

// Pages lists the open pages in the order they were opened, including pages
// the application opened since the last call.
func (c *chromeContext) Pages() []Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adopt()
	out := make([]Page, 0, len(c.pages))
	for _, p := range c.pages {
		out = append(out, p)
	}
	return out
}

// Close closes secondary pages first and the first page last; cancelling the
// first page disposes the browser context. Pages whose targets are already
// gone are only released locally.
func (c *chromeContext) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_, gone := c.drainEvents()

	var errs []error
	for i := len(c.pages) - 1; i >= 0; i-- {
		p := c.pages[i]
		if i > 0 && gone[p.targetID] {
			p.cancel()
			continue
		}
		errs = append(errs, cancelWithin(ctx, p.ctx))
		p.cancel()
	}
	return errors.Join(errs...)
}
