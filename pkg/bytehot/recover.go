// recover.go provides the Recover helper for panics in monitored code.

package bytehot

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Recover captures a panic, reports it, and returns the recovered value.
// It does NOT re-panic after reporting.
//
// Use in defer:
//
//	func handler(ctx context.Context) {
//	    defer bytehot.Recover(ctx, reporter)
//	    // code that might panic
//	}
func Recover(ctx context.Context, reporter *Reporter) any {
	r := recover()
	if r == nil {
		return nil
	}
	_ = reporter.Report(ctx, PanicError(r))
	return r
}

// PanicError converts a recovered value into an error with a stack trace.
func PanicError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return errors.WithStack(err)
	}
	return errors.Newf("panic: %v", recovered)
}
