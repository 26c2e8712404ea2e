package browser

import (
	goruntime "runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

// flagValue returns the effective value of a switch, honoring later overrides.
func flagValue(flags []chromeFlag, name string) (interface{}, bool) {
	var (
		v     interface{}
		found bool
	)
	for _, f := range flags {
		if f.Name == name {
			v, found = f.Value, true
		}
	}
	return v, found
}

func TestChromeFlags(t *testing.T) {
	t.Run("headless launch", func(t *testing.T) {
		flags := chromeFlags(LaunchOptions{Headless: true, Viewport: Viewport{Width: 1280, Height: 720}})

		v, ok := flagValue(flags, "headless")
		assert.True(t, ok)
		assert.Equal(t, true, v)

		v, _ = flagValue(flags, "window-size")
		assert.Equal(t, "1280,720", v)

		v, _ = flagValue(flags, "enable-automation")
		assert.Equal(t, false, v, "the automation switch is always removed")
	})

	t.Run("headed launch keeps the gpu", func(t *testing.T) {
		flags := chromeFlags(LaunchOptions{Headless: false})

		v, _ := flagValue(flags, "headless")
		assert.Equal(t, false, v)
		v, _ = flagValue(flags, "disable-gpu")
		assert.Equal(t, false, v)
		_, ok := flagValue(flags, "window-size")
		assert.False(t, ok, "no viewport means no window-size switch")
	})

	t.Run("user args are parsed and override defaults", func(t *testing.T) {
		flags := chromeFlags(LaunchOptions{
			Viewport: Viewport{Width: 1280, Height: 720},
			Args:     []string{"--window-size=800,600", "--single-process", "--", "lang=tr-TR"},
		})

		v, _ := flagValue(flags, "window-size")
		assert.Equal(t, "800,600", v)
		v, _ = flagValue(flags, "single-process")
		assert.Equal(t, true, v)
		v, _ = flagValue(flags, "lang")
		assert.Equal(t, "tr-TR", v)
		_, ok := flagValue(flags, "")
		assert.False(t, ok)
	})

	t.Run("ignore tls errors", func(t *testing.T) {
		v, _ := flagValue(chromeFlags(LaunchOptions{IgnoreTLSErrors: true}), "ignore-certificate-errors")
		assert.Equal(t, true, v)
	})

	t.Run("container sandbox flags", func(t *testing.T) {
		flags := chromeFlags(LaunchOptions{NoSandbox: true})
		_, ok := flagValue(flags, "no-sandbox")
		assert.Equal(t, goruntime.GOOS == "linux", ok)

		_, ok = flagValue(chromeFlags(LaunchOptions{NoSandbox: false}), "no-sandbox")
		assert.False(t, ok)
	})
}

func TestBuildAllocatorOptions(t *testing.T) {
	base := buildAllocatorOptions(LaunchOptions{})
	withExec := buildAllocatorOptions(LaunchOptions{ExecPath: "/usr/bin/chromium"})
	assert.Len(t, withExec, len(base)+1)
	assert.Greater(t, len(base), len(chromeFlags(LaunchOptions{})), "chromedp defaults are kept")
}
