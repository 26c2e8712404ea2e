package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/uiprobe/internal/locator"
)

// Format is the serialization of a scenario file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// BuiltinPrefix marks a scenario reference that names an embedded scenario.
const BuiltinPrefix = "builtin:"

var strictJSON = jsoniter.Config{
	EscapeHTML:            true,
	SortMapKeys:           true,
	DisallowUnknownFields: true,
}.Froze()

type rawScenario struct {
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	Target      string    `yaml:"target" json:"target"`
	StepTimeout string    `yaml:"step_timeout" json:"step_timeout"`
	SettleDelay *string   `yaml:"settle_delay" json:"settle_delay"`
	Linger      string    `yaml:"linger" json:"linger"`
	Steps       []rawStep `yaml:"steps" json:"steps"`
}

type rawStep struct {
	Name          string            `yaml:"name" json:"name"`
	Timeout       string            `yaml:"timeout" json:"timeout"`
	Fill          *rawFill          `yaml:"fill" json:"fill"`
	Click         *rawClick         `yaml:"click" json:"click"`
	AssertVisible *rawAssertVisible `yaml:"assert_visible" json:"assert_visible"`
	AssertURL     *rawAssertURL     `yaml:"assert_url" json:"assert_url"`
	Navigate      *rawNavigate      `yaml:"navigate" json:"navigate"`
}

type rawFill struct {
	Locator string `yaml:"locator" json:"locator"`
	Value   string `yaml:"value" json:"value"`
}

type rawClick struct {
	Locator string `yaml:"locator" json:"locator"`
}

type rawAssertVisible struct {
	Locator     string `yaml:"locator" json:"locator"`
	Text        string `yaml:"text" json:"text"`
	Expectation string `yaml:"expectation" json:"expectation"`
}

type rawAssertURL struct {
	URL         string `yaml:"url" json:"url"`
	Expectation string `yaml:"expectation" json:"expectation"`
}

type rawNavigate struct {
	URL string `yaml:"url" json:"url"`
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported scenario file extension %q (expected .yaml, .yml or .json)", filepath.Ext(path))
	}
}

// Load reads a scenario from a file path or a "builtin:<name>" reference.
func Load(ref string) (*Scenario, error) {
	if name, ok := strings.CutPrefix(ref, BuiltinPrefix); ok {
		return Builtin(name)
	}

	path, err := homedir.Expand(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to expand scenario path %q: %w", ref, err)
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a scenario document.
func Parse(data []byte, format Format) (*Scenario, error) {
	var raw rawScenario
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("scenario document is empty")
			}
			return nil, fmt.Errorf("failed to decode yaml scenario: %w", err)
		}
	case FormatJSON:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, fmt.Errorf("scenario document is empty")
		}
		if err := strictJSON.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode json scenario: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported scenario format %q", format)
	}
	return raw.build()
}

func (r rawScenario) build() (*Scenario, error) {
	var errs []error
	sc := &Scenario{
		Name:        strings.TrimSpace(r.Name),
		Description: strings.TrimSpace(r.Description),
		Target:      strings.TrimSpace(r.Target),
	}
	if sc.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}

	var err error
	if sc.StepTimeout, err = parsePositive("step_timeout", r.StepTimeout); err != nil {
		errs = append(errs, err)
	}
	if sc.Linger, err = parseNonNegative("linger", r.Linger); err != nil {
		errs = append(errs, err)
	}
	if r.SettleDelay != nil {
		d, err := parseNonNegative("settle_delay", *r.SettleDelay)
		if err != nil {
			errs = append(errs, err)
		} else {
			sc.SettleDelay = &d
		}
	}

	if len(r.Steps) == 0 {
		errs = append(errs, errors.New("at least one step is required"))
	}
	sc.Steps = make([]Step, 0, len(r.Steps))
	for i, rs := range r.Steps {
		step, err := rs.build()
		if err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, err))
			continue
		}
		sc.Steps = append(sc.Steps, step)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return sc, nil
}

func (r rawStep) build() (Step, error) {
	step := Step{Name: strings.TrimSpace(r.Name)}
	var err error
	if step.Timeout, err = parsePositive("timeout", r.Timeout); err != nil {
		return Step{}, err
	}

	variants := 0
	for _, set := range []bool{r.Fill != nil, r.Click != nil, r.AssertVisible != nil, r.AssertURL != nil, r.Navigate != nil} {
		if set {
			variants++
		}
	}
	if variants != 1 {
		return Step{}, fmt.Errorf("exactly one of fill, click, assert_visible, assert_url or navigate is required, found %d", variants)
	}

	switch {
	case r.Fill != nil:
		loc, err := parseLocator(r.Fill.Locator)
		if err != nil {
			return Step{}, fmt.Errorf("fill: %w", err)
		}
		step.Fill = &FillAction{Locator: loc, Value: r.Fill.Value}
	case r.Click != nil:
		loc, err := parseLocator(r.Click.Locator)
		if err != nil {
			return Step{}, fmt.Errorf("click: %w", err)
		}
		step.Click = &ClickAction{Locator: loc}
	case r.AssertVisible != nil:
		av, err := r.AssertVisible.build()
		if err != nil {
			return Step{}, fmt.Errorf("assert_visible: %w", err)
		}
		step.AssertVisible = av
	case r.AssertURL != nil:
		m, err := ParseURLMatcher(r.AssertURL.URL)
		if err != nil {
			return Step{}, fmt.Errorf("assert_url: %w", err)
		}
		exp := strings.TrimSpace(r.AssertURL.Expectation)
		if exp == "" {
			exp = fmt.Sprintf("expected the page url to match %s", m)
		}
		step.AssertURL = &AssertURLAction{URL: m, Expectation: exp}
	case r.Navigate != nil:
		u := strings.TrimSpace(r.Navigate.URL)
		if u == "" {
			return Step{}, errors.New("navigate: url is empty")
		}
		if _, err := ResolveURL("http://localhost/", u); err != nil {
			return Step{}, fmt.Errorf("navigate: %w", err)
		}
		step.Navigate = &NavigateAction{URL: u}
	}
	return step, nil
}

func (r rawAssertVisible) build() (*AssertVisibleAction, error) {
	hasLoc, hasText := strings.TrimSpace(r.Locator) != "", strings.TrimSpace(r.Text) != ""
	if hasLoc == hasText {
		return nil, errors.New("exactly one of locator or text is required")
	}
	raw := r.Locator
	if hasText {
		raw = "text=" + strings.TrimSpace(r.Text)
	}
	loc, err := parseLocator(raw)
	if err != nil {
		return nil, err
	}
	exp := strings.TrimSpace(r.Expectation)
	if exp == "" {
		exp = fmt.Sprintf("expected %s to be visible", loc)
	}
	return &AssertVisibleAction{Locator: loc, Expectation: exp}, nil
}

func parseLocator(raw string) (locator.Locator, error) {
	loc, err := locator.Parse(raw)
	if err != nil {
		return locator.Locator{}, err
	}
	if loc.Strategy == locator.Text {
		m, err := locator.ParseTextMatcher(loc.Query)
		if err != nil {
			return locator.Locator{}, err
		}
		if _, err := m.Compile(); err != nil {
			return locator.Locator{}, err
		}
	}
	return loc, nil
}

func parsePositive(field, raw string) (time.Duration, error) {
	d, err := parseNonNegative(field, raw)
	if err != nil {
		return 0, err
	}
	if raw != "" && d == 0 {
		return 0, fmt.Errorf("%s must be a positive duration", field)
	}
	return d, nil
}

func parseNonNegative(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}
