package reporting

import (
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/uiprobe/internal/harness"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonStep struct {
	Index           int     `json:"index"`
	Name            string  `json:"name"`
	Action          string  `json:"action"`
	Locator         string  `json:"locator,omitempty"`
	Outcome         string  `json:"outcome"`
	DurationSeconds float64 `json:"duration_seconds"`
	FailureKind     string  `json:"failure_kind,omitempty"`
	Error           string  `json:"error,omitempty"`
}

type jsonReport struct {
	RunID           string     `json:"run_id"`
	Scenario        string     `json:"scenario"`
	Target          string     `json:"target"`
	Engine          string     `json:"engine"`
	StartedAt       time.Time  `json:"started_at"`
	DurationSeconds float64    `json:"duration_seconds"`
	Outcome         string     `json:"outcome"`
	FailureKind     string     `json:"failure_kind,omitempty"`
	FailureMessage  string     `json:"failure_message,omitempty"`
	Screenshot      string     `json:"screenshot,omitempty"`
	Steps           []jsonStep `json:"steps"`
	ReleaseErrors   []string   `json:"release_errors,omitempty"`
}

// JSONReporter renders a run as an indented JSON document.
type JSONReporter struct {
	writer io.WriteCloser
}

// NewJSONReporter takes ownership of writer.
func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	return &JSONReporter{writer: writer}
}

func (r *JSONReporter) Write(res *harness.Result) error {
	report := jsonReport{
		RunID:           res.RunID,
		Scenario:        res.Scenario,
		Target:          res.Target,
		Engine:          res.Engine,
		StartedAt:       res.StartedAt.UTC(),
		DurationSeconds: res.Duration.Seconds(),
		Outcome:         string(res.Outcome),
		FailureKind:     res.FailureKind,
		FailureMessage:  res.FailureMessage,
		Screenshot:      res.Screenshot,
		Steps:           make([]jsonStep, 0, len(res.Steps)),
		ReleaseErrors:   res.ReleaseErrors,
	}
	for _, s := range res.Steps {
		report.Steps = append(report.Steps, jsonStep{
			Index:           s.Index + 1,
			Name:            s.Name,
			Action:          string(s.Action),
			Locator:         s.Locator,
			Outcome:         string(s.Outcome),
			DurationSeconds: s.Duration.Seconds(),
			FailureKind:     s.Kind,
			Error:           s.Error,
		})
	}

	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write json report: %w", err)
	}
	return nil
}

func (r *JSONReporter) Close() error {
	return r.writer.Close()
}
