package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/internal/locator"
)

// chromePage is one tab. Every call runs on the tab context combined with the
// caller's context, so caller deadlines bound the call without closing the tab.
type chromePage struct {
	ctx            context.Context
	cancel         context.CancelFunc
	targetID       target.ID
	logger         *zap.Logger
	pollInterval   time.Duration
	defaultTimeout time.Duration
}

func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if _, ok := ctx.Deadline(); !ok && p.defaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.defaultTimeout)
		defer cancel()
	}
	combined, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(combined, actions...)
}

// evalError marks protocol failures of an evaluation as ErrDocumentReplaced.
// Context errors and exceptions thrown by the script itself pass through.
func evalError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var protoErr *cdproto.Error
	if errors.As(err, &protoErr) || documentLost(err) {
		return fmt.Errorf("%w: %v", ErrDocumentReplaced, err)
	}
	return err
}

// evalJSON evaluates expr and decodes its JSON value into out.
func (p *chromePage) evalJSON(ctx context.Context, expr string, out interface{}) error {
	var raw []byte
	if err := p.run(ctx, chromedp.Evaluate(expr, &raw)); err != nil {
		return evalError(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode script result: %w (payload: %s)", err, string(raw))
	}
	return nil
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var u string
	if err := p.run(ctx, chromedp.Location(&u)); err != nil {
		return "", evalError(err)
	}
	return u, nil
}

// Goto issues Page.navigate directly. It returns when the browser has
// committed to the new document, without waiting for any load event.
func (p *chromePage) Goto(ctx context.Context, url string) error {
	var res page.NavigateReturns
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res)
	}))
	if err != nil {
		return err
	}
	if res.ErrorText != "" {
		return fmt.Errorf("%w: %s", ErrNavigation, res.ErrorText)
	}
	return nil
}

func (p *chromePage) WaitForLoadState(ctx context.Context) error {
	return Poll(ctx, p.pollInterval, func(ctx context.Context) (bool, error) {
		var state string
		if err := p.evalJSON(ctx, readyStateJS, &state); err != nil {
			// Evaluation fails while the old document is torn down.
			p.logger.Debug("readyState probe failed.", zap.Error(err))
			return false, nil
		}
		return state == "interactive" || state == "complete", nil
	})
}

type frameInfo struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	SameOrigin bool   `json:"sameOrigin"`
}

func (p *chromePage) Frames(ctx context.Context) ([]Frame, error) {
	var infos []frameInfo
	if err := p.evalJSON(ctx, listFramesJS, &infos); err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}
	frames := make([]Frame, 0, len(infos))
	for _, info := range infos {
		frames = append(frames, &chromeFrame{page: p, info: info})
	}
	return frames, nil
}

type probeResult struct {
	Error    string `json:"error"`
	Count    int    `json:"count"`
	Attached bool   `json:"attached"`
	Visible  bool   `json:"visible"`
	Enabled  bool   `json:"enabled"`
	Box      Rect   `json:"box"`
}

func (p *chromePage) Probe(ctx context.Context, loc locator.Locator) (ElementState, error) {
	script, err := elementScript(loc, probeOpJS)
	if err != nil {
		return ElementState{}, err
	}
	var res probeResult
	if err := p.evalJSON(ctx, script, &res); err != nil {
		return ElementState{}, err
	}
	if res.Error != "" {
		return ElementState{}, fmt.Errorf("%w: %s: %s", ErrInvalidLocator, loc, res.Error)
	}
	return ElementState{
		Count:    res.Count,
		Attached: res.Attached,
		Visible:  res.Visible,
		Enabled:  res.Enabled,
		Box:      res.Box,
	}, nil
}

type clickPoint struct {
	Error    string  `json:"error"`
	Attached bool    `json:"attached"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Receives bool    `json:"receives"`
}

// Click scrolls the element into view, waits until it is the hit target at its
// center point and clicks there.
func (p *chromePage) Click(ctx context.Context, loc locator.Locator) error {
	script, err := elementScript(loc, clickPointOpJS)
	if err != nil {
		return err
	}

	var pt clickPoint
	err = Poll(ctx, p.pollInterval, func(ctx context.Context) (bool, error) {
		if err := p.evalJSON(ctx, script, &pt); err != nil {
			if errors.Is(err, ErrDocumentReplaced) {
				return false, nil
			}
			return false, err
		}
		if pt.Error != "" {
			return false, fmt.Errorf("%w: %s: %s", ErrInvalidLocator, loc, pt.Error)
		}
		if !pt.Attached {
			return false, ErrElementDetached
		}
		return pt.Receives, nil
	})
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.MouseClickXY(pt.X, pt.Y))
}

type fillResult struct {
	Error    string `json:"error"`
	Attached bool   `json:"attached"`
	Editable bool   `json:"editable"`
}

// Fill focuses and clears the element and types value into it.
func (p *chromePage) Fill(ctx context.Context, loc locator.Locator, value string) error {
	script, err := elementScript(loc, fillPrepareOpJS)
	if err != nil {
		return err
	}

	var res fillResult
	if err := p.evalJSON(ctx, script, &res); err != nil {
		return err
	}
	switch {
	case res.Error != "":
		return fmt.Errorf("%w: %s: %s", ErrInvalidLocator, loc, res.Error)
	case !res.Attached:
		return ErrElementDetached
	case !res.Editable:
		return fmt.Errorf("%w: %s", ErrNotEditable, loc)
	}

	if value != "" {
		if err := p.run(ctx, chromedp.KeyEvent(value)); err != nil {
			return fmt.Errorf("failed to type into %s: %w", loc, err)
		}
	}
	var ok bool
	return p.evalJSON(ctx, fillCommitJS, &ok)
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// -- chromeFrame --

// chromeFrame is a frame element of the top document. Only same-origin frames
// can be inspected.
type chromeFrame struct {
	page *chromePage
	info frameInfo
}

func (f *chromeFrame) Name() string { return f.info.Name }
func (f *chromeFrame) URL() string  { return f.info.URL }

func (f *chromeFrame) WaitForLoadState(ctx context.Context) error {
	if !f.info.SameOrigin {
		return fmt.Errorf("%w: %s", ErrCrossOriginFrame, f.info.URL)
	}
	script := frameReadyStateScript(f.info.Index)
	return Poll(ctx, f.page.pollInterval, func(ctx context.Context) (bool, error) {
		var state string
		if err := f.page.evalJSON(ctx, script, &state); err != nil {
			return false, nil
		}
		switch state {
		case "cross-origin":
			return false, fmt.Errorf("%w: %s", ErrCrossOriginFrame, f.info.URL)
		case "detached":
			return false, fmt.Errorf("frame %d: %w", f.info.Index, ErrElementDetached)
		}
		return state == "interactive" || state == "complete", nil
	})
}
