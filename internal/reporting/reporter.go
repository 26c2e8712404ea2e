// Package reporting writes run results as JUnit XML or JSON.
package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/uiprobe/internal/harness"
)

// Report formats.
const (
	FormatJUnit = "junit"
	FormatJSON  = "json"
)

// Reporter writes run results to an output.
type Reporter interface {
	// Write renders one run result.
	Write(result *harness.Result) error
	// Close flushes and closes the underlying output.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format writing to outputPath. An empty path or
// "stdout" writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	var newReporter func(io.WriteCloser) Reporter
	switch strings.ToLower(format) {
	case FormatJUnit:
		newReporter = func(w io.WriteCloser) Reporter { return NewJUnitReporter(w) }
	case FormatJSON:
		newReporter = func(w io.WriteCloser) Reporter { return NewJSONReporter(w) }
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}

	if outputPath == "" || outputPath == "stdout" {
		// Wrap Stdout so Close() is a no-op.
		return newReporter(&nopWriteCloser{os.Stdout}), nil
	}

	path, err := homedir.Expand(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to expand report path %s: %w", outputPath, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	return newReporter(f), nil
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
