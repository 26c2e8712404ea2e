package browser

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/internal/config"
)

// NewDriver returns the engine selected by cfg.Engine. The engine is not
// started; call Start before Launch.
func NewDriver(cfg config.BrowserConfig, logger *zap.Logger) (Driver, error) {
	switch strings.ToLower(cfg.Engine) {
	case config.EngineChromedp, "":
		return NewChromeDriver(logger, cfg.ExecPath), nil
	case config.EnginePlaywright:
		return NewPlaywrightDriver(logger, PlaywrightOptions{
			Install:        cfg.InstallBrowsers,
			InstallTimeout: cfg.InstallTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown browser engine '%s'", cfg.Engine)
	}
}

// LaunchOptionsFromConfig maps browser configuration onto LaunchOptions.
func LaunchOptionsFromConfig(cfg config.BrowserConfig) LaunchOptions {
	return LaunchOptions{
		Headless:        cfg.Headless,
		ExecPath:        cfg.ExecPath,
		Args:            append([]string(nil), cfg.Args...),
		IgnoreTLSErrors: cfg.IgnoreTLSErrors,
		NoSandbox:       cfg.NoSandbox,
		Viewport:        Viewport{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight},
		Timeout:         cfg.LaunchTimeout,
	}
}
