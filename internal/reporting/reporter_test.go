// internal/reporting/reporter_test.go
package reporting_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beevik/etree"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/uiprobe/internal/harness"
	"github.com/xkilldash9x/uiprobe/internal/reporting"
	"github.com/xkilldash9x/uiprobe/internal/scenario"
)

// bufferCloser collects output and records Close.
type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func failedResult() *harness.Result {
	return &harness.Result{
		RunID:          "3f1c2a9e-0000-4000-8000-000000000001",
		Scenario:       "internal-messaging",
		Target:         "http://localhost:3000",
		Engine:         "chromedp",
		StartedAt:      time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Duration:       2500 * time.Millisecond,
		Outcome:        harness.OutcomeFailed,
		FailureKind:    harness.KindAssertion,
		FailureMessage: "The expected confirmation message 'Message sent successfully!' was not found on the page.",
		Screenshot:     "/tmp/shots/run-step03.png",
		Steps: []harness.StepResult{
			{Index: 0, Name: "Input username", Action: scenario.ActionFill, Locator: "xpath=html/body/div[2]/div/div[2]/form/div/input", Outcome: harness.OutcomePassed, Duration: 120 * time.Millisecond},
			{Index: 1, Name: "Click login button", Action: scenario.ActionClick, Outcome: harness.OutcomePassed, Duration: 80 * time.Millisecond},
			{Index: 2, Name: "Confirmation is visible", Action: scenario.ActionAssertVisible, Locator: "text=Message sent successfully!", Outcome: harness.OutcomeFailed, Duration: time.Second, Kind: harness.KindAssertion, Error: "The expected confirmation message 'Message sent successfully!' was not found on the page."},
			{Index: 3, Name: "Never reached", Action: scenario.ActionClick, Outcome: harness.OutcomeSkipped},
		},
		ReleaseErrors: []string{"close browser: websocket closed"},
	}
}

func TestNew_Stdout(t *testing.T) {
	for _, format := range []string{"junit", "json", "JSON"} {
		for _, out := range []string{"", "stdout"} {
			r, err := reporting.New(format, out)
			require.NoError(t, err)
			assert.NotNil(t, r)
			// Close is a no-op for the stdout wrapper.
			assert.NoError(t, r.Close())
		}
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xml")

	r, err := reporting.New("junit", path)
	require.NoError(t, err)
	require.NoError(t, r.Write(failedResult()))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<testsuites")
}

func TestNew_Failures(t *testing.T) {
	r, err := reporting.New("sarif", "stdout")
	assert.Nil(t, r)
	assert.EqualError(t, err, "unsupported report format: sarif")

	// An unsupported format must not leave a file behind.
	path := filepath.Join(t.TempDir(), "report.txt")
	_, err = reporting.New("text", path)
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	_, err = reporting.New("json", filepath.Join(t.TempDir(), "missing", "dir", "r.json"))
	assert.ErrorContains(t, err, "failed to create output file")
}

func TestJUnitReporter(t *testing.T) {
	buf := &bufferCloser{}
	r := reporting.NewJUnitReporter(buf)
	require.NoError(t, r.Write(failedResult()))
	require.NoError(t, r.Close())
	assert.True(t, buf.closed)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))

	suites := doc.SelectElement("testsuites")
	require.NotNil(t, suites)
	assert.Equal(t, "4", suites.SelectAttrValue("tests", ""))
	assert.Equal(t, "1", suites.SelectAttrValue("failures", ""))
	assert.Equal(t, "1", suites.SelectAttrValue("skipped", ""))

	suite := suites.SelectElement("testsuite")
	require.NotNil(t, suite)
	assert.Equal(t, "internal-messaging", suite.SelectAttrValue("name", ""))
	assert.Equal(t, "2.500", suite.SelectAttrValue("time", ""))
	assert.Equal(t, "2025-03-01T10:00:00Z", suite.SelectAttrValue("timestamp", ""))

	prop := suite.FindElement("properties/property[@name='engine']")
	require.NotNil(t, prop)
	assert.Equal(t, "chromedp", prop.SelectAttrValue("value", ""))

	cases := suite.SelectElements("testcase")
	require.Len(t, cases, 4)
	assert.Equal(t, "01 Input username", cases[0].SelectAttrValue("name", ""))
	assert.Equal(t, "0.120", cases[0].SelectAttrValue("time", ""))
	assert.Nil(t, cases[0].SelectElement("failure"))

	failure := cases[2].SelectElement("failure")
	require.NotNil(t, failure)
	assert.Equal(t, harness.KindAssertion, failure.SelectAttrValue("type", ""))
	assert.Contains(t, failure.SelectAttrValue("message", ""), "'Message sent successfully!' was not found")
	assert.Contains(t, failure.Text(), "locator: text=Message sent successfully!")
	assert.NotNil(t, cases[3].SelectElement("skipped"))

	assert.Equal(t, "[[ATTACHMENT|/tmp/shots/run-step03.png]]", suite.SelectElement("system-out").Text())
	assert.Equal(t, "release: close browser: websocket closed", suite.SelectElement("system-err").Text())
}

func TestJUnitReporter_SessionFailure(t *testing.T) {
	res := &harness.Result{
		RunID:          "run",
		Scenario:       "login",
		Target:         "http://localhost:3000",
		Outcome:        harness.OutcomeFailed,
		FailureKind:    harness.KindNavigation,
		FailureMessage: "failed to navigate to http://localhost:3000: navigation failed",
		Steps:          []harness.StepResult{{Index: 0, Name: "fill", Outcome: harness.OutcomeSkipped}},
	}

	buf := &bufferCloser{}
	require.NoError(t, reporting.NewJUnitReporter(buf).Write(res))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))
	suite := doc.FindElement("testsuites/testsuite")
	require.NotNil(t, suite)
	assert.Equal(t, "2", suite.SelectAttrValue("tests", ""))
	assert.Equal(t, "1", suite.SelectAttrValue("failures", ""))

	cases := suite.SelectElements("testcase")
	require.Len(t, cases, 2)
	assert.Equal(t, "open http://localhost:3000", cases[0].SelectAttrValue("name", ""))
	assert.Equal(t, harness.KindNavigation, cases[0].SelectElement("failure").SelectAttrValue("type", ""))
}

func TestJSONReporter(t *testing.T) {
	buf := &bufferCloser{}
	r := reporting.NewJSONReporter(buf)
	require.NoError(t, r.Write(failedResult()))
	require.NoError(t, r.Close())
	assert.True(t, buf.closed)

	var got map[string]any
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, "internal-messaging", got["scenario"])
	assert.Equal(t, "failed", got["outcome"])
	assert.Equal(t, harness.KindAssertion, got["failure_kind"])
	assert.Equal(t, 2.5, got["duration_seconds"])
	assert.Equal(t, "2025-03-01T10:00:00Z", got["started_at"])
	assert.Equal(t, []any{"close browser: websocket closed"}, got["release_errors"])

	steps, ok := got["steps"].([]any)
	require.True(t, ok)
	require.Len(t, steps, 4)
	first := steps[0].(map[string]any)
	assert.Equal(t, float64(1), first["index"])
	assert.Equal(t, "fill", first["action"])
	assert.NotContains(t, first, "error")
	last := steps[3].(map[string]any)
	assert.Equal(t, "skipped", last["outcome"])
}
