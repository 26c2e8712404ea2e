// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Supported browser engines.
const (
	EngineChromedp   = "chromedp"
	EnginePlaywright = "playwright"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Harness HarnessConfig `mapstructure:"harness" yaml:"harness"`
	Report  ReportConfig  `mapstructure:"report" yaml:"report"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls how the automation engine launches the browser.
type BrowserConfig struct {
	Engine          string   `mapstructure:"engine" yaml:"engine"`
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	NoSandbox       bool     `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	Args            []string `mapstructure:"args" yaml:"args"`
	ViewportWidth   int      `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight  int      `mapstructure:"viewport_height" yaml:"viewport_height"`
	// InstallBrowsers asks the playwright engine to download its browsers before starting.
	InstallBrowsers bool          `mapstructure:"install_browsers" yaml:"install_browsers"`
	LaunchTimeout   time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	InstallTimeout  time.Duration `mapstructure:"install_timeout" yaml:"install_timeout"`
}

// HarnessConfig bounds every wait the session harness performs.
type HarnessConfig struct {
	TargetURL         string        `mapstructure:"target_url" yaml:"target_url"`
	StepTimeout       time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	LoadStateTimeout  time.Duration `mapstructure:"load_state_timeout" yaml:"load_state_timeout"`
	AssertionTimeout  time.Duration `mapstructure:"assertion_timeout" yaml:"assertion_timeout"`
	// SettleDelay is a fixed pause before each element lookup. Zero disables it;
	// actionability polling already waits for the element.
	SettleDelay    time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ReleaseTimeout time.Duration `mapstructure:"release_timeout" yaml:"release_timeout"`
	// Linger keeps the session open for a while after a successful run.
	Linger        time.Duration `mapstructure:"linger" yaml:"linger"`
	ScreenshotDir string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

// ReportConfig selects the optional run report.
type ReportConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// TracingConfig enables OpenTelemetry spans for runs and steps.
type TracingConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Output  string `mapstructure:"output" yaml:"output"`
	Pretty  bool   `mapstructure:"pretty" yaml:"pretty"`
}

// NewDefaultConfig returns a configuration populated only with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "uiprobe")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.engine", EngineChromedp)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.args", []string{"--disable-dev-shm-usage"})
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.install_browsers", false)
	v.SetDefault("browser.launch_timeout", "60s")
	v.SetDefault("browser.install_timeout", "5m")

	// -- Harness --
	v.SetDefault("harness.target_url", "http://localhost:3000")
	v.SetDefault("harness.step_timeout", "5s")
	v.SetDefault("harness.navigation_timeout", "10s")
	v.SetDefault("harness.load_state_timeout", "3s")
	v.SetDefault("harness.assertion_timeout", "1s")
	v.SetDefault("harness.settle_delay", "0s")
	v.SetDefault("harness.poll_interval", "100ms")
	v.SetDefault("harness.release_timeout", "15s")
	v.SetDefault("harness.linger", "0s")
	v.SetDefault("harness.screenshot_dir", "")

	// -- Report --
	v.SetDefault("report.format", "junit")
	v.SetDefault("report.output", "")

	// -- Tracing --
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.output", "")
	v.SetDefault("tracing.pretty", false)
}

// NewConfigFromViper unmarshals, normalizes and validates the configuration.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading "~" in every configured file path.
func (c *Config) expandPaths() error {
	paths := []*string{
		&c.Logger.LogFile,
		&c.Browser.ExecPath,
		&c.Harness.ScreenshotDir,
		&c.Report.Output,
		&c.Tracing.Output,
	}
	for _, p := range paths {
		if *p == "" || *p == "stdout" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("could not expand path '%s': %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if err := c.Harness.Validate(); err != nil {
		return fmt.Errorf("harness configuration invalid: %w", err)
	}
	if err := c.Report.Validate(); err != nil {
		return fmt.Errorf("report configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the browser settings.
func (b *BrowserConfig) Validate() error {
	switch strings.ToLower(b.Engine) {
	case EngineChromedp, EnginePlaywright:
	default:
		return fmt.Errorf("engine must be one of '%s' or '%s', got '%s'", EngineChromedp, EnginePlaywright, b.Engine)
	}
	if b.ViewportWidth <= 0 || b.ViewportHeight <= 0 {
		return fmt.Errorf("viewport_width and viewport_height must be positive integers")
	}
	if b.LaunchTimeout <= 0 {
		return fmt.Errorf("launch_timeout must be a positive duration")
	}
	return nil
}

// Validate checks that every harness wait is bounded.
func (h *HarnessConfig) Validate() error {
	if h.TargetURL != "" {
		if err := ValidateTargetURL(h.TargetURL); err != nil {
			return err
		}
	}
	bounded := map[string]time.Duration{
		"step_timeout":       h.StepTimeout,
		"navigation_timeout": h.NavigationTimeout,
		"load_state_timeout": h.LoadStateTimeout,
		"assertion_timeout":  h.AssertionTimeout,
		"poll_interval":      h.PollInterval,
		"release_timeout":    h.ReleaseTimeout,
	}
	for _, name := range []string{"step_timeout", "navigation_timeout", "load_state_timeout", "assertion_timeout", "poll_interval", "release_timeout"} {
		if bounded[name] <= 0 {
			return fmt.Errorf("%s must be a positive duration", name)
		}
	}
	if h.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must not be negative")
	}
	if h.SettleDelay >= h.StepTimeout {
		return fmt.Errorf("settle_delay must be shorter than step_timeout")
	}
	if h.Linger < 0 {
		return fmt.Errorf("linger must not be negative")
	}
	return nil
}

// Validate checks the report format.
func (r *ReportConfig) Validate() error {
	switch r.Format {
	case "junit", "json":
		return nil
	default:
		return fmt.Errorf("format must be 'junit' or 'json', got '%s'", r.Format)
	}
}

// ValidateTargetURL ensures the target is an absolute http(s) URL.
func ValidateTargetURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("target_url '%s' is not a valid URL: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target_url '%s' must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("target_url '%s' has no host", raw)
	}
	return nil
}
