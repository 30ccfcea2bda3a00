// Package noop provides a sink that discards every bug report.
// Useful for tests and for running the reporter with delivery disabled.
package noop

import (
	"context"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

type noopSink struct{}

// NewNoopSink creates a sink that discards all reports.
func NewNoopSink() bytehot.Sink {
	return &noopSink{}
}

func (s *noopSink) Write(context.Context, *bytehot.BugReport) error {
	return nil
}

func (s *noopSink) Flush(context.Context) error {
	return nil
}

func (s *noopSink) Close() error {
	return nil
}
