// Package multi provides a sink that fans bug reports out to several sinks.
package multi

import (
	"context"
	"errors"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

type multiSink struct {
	sinks []bytehot.Sink
}

// NewMultiSink creates a sink that writes every report to every sink. Nil
// sinks are ignored. Errors are aggregated with errors.Join.
func NewMultiSink(sinks ...bytehot.Sink) bytehot.Sink {
	s := &multiSink{}
	for _, sink := range sinks {
		if sink != nil {
			s.sinks = append(s.sinks, sink)
		}
	}
	return s
}

// Write calls every sink even when some fail.
func (s *multiSink) Write(ctx context.Context, report *bytehot.BugReport) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *multiSink) Flush(ctx context.Context) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *multiSink) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
