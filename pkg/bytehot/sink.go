// sink.go defines the Sink interface for bug report destinations.

package bytehot

import "context"

// Sink is the destination for bug reports.
// Implementations must be safe for concurrent use.
type Sink interface {
	// Write persists a bug report. Called after scrubbing.
	Write(ctx context.Context, report *BugReport) error

	// Flush ensures any buffered reports are persisted.
	// For synchronous sinks, this may be a no-op.
	Flush(ctx context.Context) error

	// Close releases resources held by the sink.
	// After Close is called, Write and Flush should return errors.
	Close() error
}

// noopSinkInternal is an internal noop sink to avoid import cycles.
type noopSinkInternal struct{}

func (noopSinkInternal) Write(context.Context, *BugReport) error { return nil }

func (noopSinkInternal) Flush(context.Context) error { return nil }

func (noopSinkInternal) Close() error { return nil }
