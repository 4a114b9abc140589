// -- internal/reporting/reporter.go --
package reporting

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/results"
)

// Output formats understood by New.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatSARIF = "sarif"
)

// ErrUnsupportedFormat is returned by New for an unknown format name.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Reporter defines the interface for writing scan results to an output.
type Reporter interface {
	// Write renders a finished run.
	Write(report *results.Report) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// Options carries the run metadata some formats embed.
type Options struct {
	ToolVersion string
	// Kinds are every declared finding kind, reported as rules even when no
	// finding of the kind was emitted.
	Kinds []schemas.FindingKind
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format. An empty outputPath or "stdout" writes
// to stdout, which is never closed.
func New(format, outputPath string, stdout io.Writer, logger *zap.Logger, opts Options) (Reporter, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	switch format {
	case FormatText, FormatJSON, FormatSARIF:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		writer = &nopWriteCloser{stdout}
	} else {
		path, err := homedir.Expand(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to expand output path %s: %w", outputPath, err)
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
		}
		writer = f
	}

	switch format {
	case FormatSARIF:
		return NewSARIFReporter(writer, logger, opts), nil
	case FormatJSON:
		return &streamReporter{writer: writer, write: (*results.Report).WriteJSON}, nil
	default:
		return &streamReporter{writer: writer, write: (*results.Report).WriteText}, nil
	}
}

// streamReporter renders the text and JSON formats of results.Report.
type streamReporter struct {
	writer io.WriteCloser
	write  func(*results.Report, io.Writer) error
}

func (s *streamReporter) Write(report *results.Report) error {
	return s.write(report, s.writer)
}

func (s *streamReporter) Close() error {
	return s.writer.Close()
}
