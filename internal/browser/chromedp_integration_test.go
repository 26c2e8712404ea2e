package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/uiprobe/internal/locator"
)

const composePage = `<!doctype html>
<html><body>
  <button id="open" type="button" onclick="window.open('/popup')">Aç</button>
  <button id="compose" type="button" onclick="document.getElementById('form').style.display='block'">Yeni Mesaj</button>
  <form id="form" style="display:none" onsubmit="event.preventDefault(); send();">
    <input name="subject" type="text">
    <textarea name="body"></textarea>
    <button id="send" type="submit">Gönder</button>
    <button type="button" disabled>Taslak</button>
  </form>
  <p id="status"></p>
  <iframe name="inner" srcdoc="<p>inner</p><iframe name='nested' srcdoc='nested'></iframe>"></iframe>
  <script>
    function send() {
      const s = document.querySelector('input[name=subject]').value;
      document.getElementById('status').textContent = s ? 'Message sent successfully!' : 'Lütfen en az bir alıcı seçin';
    }
  </script>
</body></html>`

const popupPage = `<!doctype html>
<html><body><h1>Yeni pencere</h1></body></html>`

// startChrome launches a headless browser page against a test server, or skips.
func startChrome(t *testing.T) (Page, BrowserContext, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser integration test in short mode")
	}
	if _, err := resolveChrome(""); err != nil {
		t.Skipf("no browser available: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Path == "/popup" {
			fmt.Fprint(w, popupPage)
			return
		}
		fmt.Fprint(w, composePage)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)

	driver := NewChromeDriver(zaptest.NewLogger(t), "")
	require.NoError(t, driver.Start(ctx))
	t.Cleanup(func() { _ = driver.Stop(context.Background()) })

	b, err := driver.Launch(ctx, LaunchOptions{Headless: true, NoSandbox: true, Viewport: Viewport{Width: 1280, Height: 720}})
	require.NoError(t, err)

	bctx, err := b.NewContext(ctx, ContextOptions{Viewport: Viewport{Width: 1280, Height: 720}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bctx.Close(context.Background()) })

	page, err := bctx.NewPage(ctx)
	require.NoError(t, err)
	return page, bctx, srv.URL
}

func TestChromePageIntegration(t *testing.T) {
	page, _, target := startChrome(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, page.Goto(ctx, target))
	require.NoError(t, page.WaitForLoadState(ctx))

	u, err := page.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, target+"/", u)

	// The nested frame appears once the outer frame's document has loaded.
	var frames []Frame
	err = Poll(ctx, 50*time.Millisecond, func(ctx context.Context) (bool, error) {
		var err error
		frames, err = page.Frames(ctx)
		return len(frames) == 2, err
	})
	require.NoError(t, err)
	assert.Equal(t, "inner", frames[0].Name())
	assert.Equal(t, "nested", frames[1].Name())
	for _, f := range frames {
		assert.NoError(t, f.WaitForLoadState(ctx), f.Name())
	}

	state, err := page.Probe(ctx, locator.MustParse("css=#send"))
	require.NoError(t, err)
	assert.True(t, state.Attached)
	assert.False(t, state.Visible, "the form starts hidden")

	require.NoError(t, page.Click(ctx, locator.MustParse("xpath=//button[@id='compose']")))

	state, err = page.Probe(ctx, locator.MustParse("text=gönder"))
	require.NoError(t, err)
	assert.True(t, state.Actionable())

	disabled, err := page.Probe(ctx, locator.MustParse(`text="Taslak"`))
	require.NoError(t, err)
	assert.True(t, disabled.Visible)
	assert.False(t, disabled.Enabled)

	missing, err := page.Probe(ctx, locator.MustParse("css=#nope"))
	require.NoError(t, err)
	assert.False(t, missing.Attached)
	assert.Zero(t, missing.Count)

	require.NoError(t, page.Fill(ctx, locator.MustParse("input[name=subject]"), "Merhaba"))
	require.NoError(t, page.Click(ctx, locator.MustParse("#send")))

	err = Poll(ctx, 50*time.Millisecond, func(ctx context.Context) (bool, error) {
		s, err := page.Probe(ctx, locator.ForText("Message sent successfully!"))
		return s.Visible, err
	})
	assert.NoError(t, err)

	_, err = page.Probe(ctx, locator.Locator{Strategy: locator.XPath, Query: "//*[@"})
	assert.ErrorIs(t, err, ErrInvalidLocator)

	err = page.Fill(ctx, locator.MustParse("#send"), "x")
	assert.ErrorIs(t, err, ErrNotEditable)

	shot, err := page.Screenshot(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, shot)
}

func TestChromeNavigationFailure(t *testing.T) {
	page, _, _ := startChrome(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Port 1 is never listening.
	err := page.Goto(ctx, "http://127.0.0.1:1/")
	assert.ErrorIs(t, err, ErrNavigation)
}

func TestChromeContextAdoptsOpenedPages(t *testing.T) {
	page, bctx, target := startChrome(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, page.Goto(ctx, target))
	require.NoError(t, page.WaitForLoadState(ctx))
	require.Len(t, bctx.Pages(), 1)

	require.NoError(t, page.Click(ctx, locator.MustParse("#open")))

	var pages []Page
	err := Poll(ctx, 50*time.Millisecond, func(context.Context) (bool, error) {
		pages = bctx.Pages()
		return len(pages) == 2, nil
	})
	require.NoError(t, err, "the window.open page was never tracked")
	assert.Same(t, page, pages[0])

	popup := pages[1]
	err = Poll(ctx, 50*time.Millisecond, func(ctx context.Context) (bool, error) {
		u, err := popup.URL(ctx)
		if err != nil && !IsTransient(err) {
			return false, err
		}
		return u == target+"/popup", nil
	})
	require.NoError(t, err)
	require.NoError(t, popup.WaitForLoadState(ctx))

	state, err := popup.Probe(ctx, locator.ForText("Yeni pencere"))
	require.NoError(t, err)
	assert.True(t, state.Visible)
}
