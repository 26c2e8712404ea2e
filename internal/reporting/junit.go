package reporting

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/uiprobe/internal/harness"
)

// JUnitReporter renders a run as a JUnit XML document: one testsuite per
// run and one testcase per step.
type JUnitReporter struct {
	writer io.WriteCloser
}

// NewJUnitReporter takes ownership of writer.
func NewJUnitReporter(writer io.WriteCloser) *JUnitReporter {
	return &JUnitReporter{writer: writer}
}

func (r *JUnitReporter) Write(res *harness.Result) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	var failures, skipped int
	for _, s := range res.Steps {
		switch s.Outcome {
		case harness.OutcomeFailed:
			failures++
		case harness.OutcomeSkipped:
			skipped++
		}
	}
	sessionFailed := !res.Passed() && failures == 0
	tests := len(res.Steps)
	if sessionFailed {
		tests++
		failures++
	}

	suites := doc.CreateElement("testsuites")
	suites.CreateAttr("name", "uiprobe")
	suites.CreateAttr("tests", strconv.Itoa(tests))
	suites.CreateAttr("failures", strconv.Itoa(failures))
	suites.CreateAttr("skipped", strconv.Itoa(skipped))
	suites.CreateAttr("time", seconds(res.Duration))

	suite := suites.CreateElement("testsuite")
	suite.CreateAttr("name", res.Scenario)
	suite.CreateAttr("id", res.RunID)
	suite.CreateAttr("tests", strconv.Itoa(tests))
	suite.CreateAttr("failures", strconv.Itoa(failures))
	suite.CreateAttr("errors", "0")
	suite.CreateAttr("skipped", strconv.Itoa(skipped))
	suite.CreateAttr("time", seconds(res.Duration))
	suite.CreateAttr("timestamp", res.StartedAt.UTC().Format(time.RFC3339))

	props := suite.CreateElement("properties")
	for _, kv := range [][2]string{
		{"run_id", res.RunID},
		{"target", res.Target},
		{"engine", res.Engine},
		{"outcome", string(res.Outcome)},
	} {
		p := props.CreateElement("property")
		p.CreateAttr("name", kv[0])
		p.CreateAttr("value", kv[1])
	}

	if sessionFailed {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", "open "+res.Target)
		tc.CreateAttr("classname", res.Scenario)
		tc.CreateAttr("time", "0.000")
		failure := tc.CreateElement("failure")
		failure.CreateAttr("type", res.FailureKind)
		failure.CreateAttr("message", res.FailureMessage)
		failure.SetText(res.FailureMessage)
	}

	for _, s := range res.Steps {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", fmt.Sprintf("%02d %s", s.Index+1, s.Name))
		tc.CreateAttr("classname", res.Scenario)
		tc.CreateAttr("time", seconds(s.Duration))
		switch s.Outcome {
		case harness.OutcomeFailed:
			failure := tc.CreateElement("failure")
			failure.CreateAttr("type", s.Kind)
			failure.CreateAttr("message", s.Error)
			text := s.Error
			if s.Locator != "" {
				text += "\nlocator: " + s.Locator
			}
			failure.SetText(text)
		case harness.OutcomeSkipped:
			tc.CreateElement("skipped")
		}
	}

	if res.Screenshot != "" {
		suite.CreateElement("system-out").SetText("[[ATTACHMENT|" + res.Screenshot + "]]")
	}
	if len(res.ReleaseErrors) > 0 {
		suite.CreateElement("system-err").SetText("release: " + strings.Join(res.ReleaseErrors, "\nrelease: "))
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(r.writer); err != nil {
		return fmt.Errorf("failed to write junit report: %w", err)
	}
	return nil
}

func (r *JUnitReporter) Close() error {
	return r.writer.Close()
}
