// Package stderr provides a sink that prints bug reports in a human-readable
// form. Useful during development and from the CLI.
package stderr

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

// StderrSinkOption configures the stderr sink.
type StderrSinkOption func(*stderrSinkConfig)

type stderrSinkConfig struct {
	verbose bool
	out     io.Writer
}

// WithVerbose adds reproduction steps and recommendations to the output.
func WithVerbose() StderrSinkOption {
	return func(c *stderrSinkConfig) {
		c.verbose = true
	}
}

// WithWriter redirects output away from os.Stderr.
func WithWriter(w io.Writer) StderrSinkOption {
	return func(c *stderrSinkConfig) {
		if w != nil {
			c.out = w
		}
	}
}

type stderrSink struct {
	mu      sync.Mutex
	verbose bool
	out     io.Writer
}

// NewStderrSink creates a sink that writes to stderr.
func NewStderrSink(opts ...StderrSinkOption) bytehot.Sink {
	cfg := &stderrSinkConfig{out: os.Stderr}
	for _, opt := range opts {
		opt(cfg)
	}
	return &stderrSink{
		verbose: cfg.verbose,
		out:     cfg.out,
	}
}

// Write formats the report. Format of the first line:
// [BYTEHOT] <timestamp> <SEVERITY> <CATEGORY> report <id>
func (s *stderrSink) Write(_ context.Context, report *bytehot.BugReport) error {
	if report == nil {
		return nil
	}
	var b strings.Builder

	timestamp := report.GeneratedAt.Format("2006-01-02T15:04:05Z07:00")
	fmt.Fprintf(&b, "[BYTEHOT] %s %s %s report %s\n", timestamp, report.Severity, report.Category, report.ReportID)

	if report.ExceptionMessage != "" {
		fmt.Fprintf(&b, "        Message: %s\n", report.ExceptionMessage)
	}
	if report.Fingerprint != "" {
		fmt.Fprintf(&b, "        Fingerprint: %s\n", report.Fingerprint)
	}
	if report.SnapshotID != "" {
		fmt.Fprintf(&b, "        Snapshot: %s (%d events)\n", report.SnapshotID, report.EventCount)
	}
	fmt.Fprintf(&b, "        Reproducibility: %.1f%%\n", report.ReproducibilityScore*100)

	if s.verbose {
		if len(report.ReproductionSteps) > 0 {
			b.WriteString("        Reproduction steps:\n")
			for i, step := range report.ReproductionSteps {
				fmt.Fprintf(&b, "          %d. %s\n", i+1, step)
			}
		}
		if len(report.Recommendations) > 0 {
			b.WriteString("        Recommendations:\n")
			for _, rec := range report.Recommendations {
				fmt.Fprintf(&b, "          - %s\n", rec)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.out, b.String())
	return err
}

func (s *stderrSink) Flush(context.Context) error {
	return nil
}

func (s *stderrSink) Close() error {
	return nil
}
