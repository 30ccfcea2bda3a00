// Package bytehot provides event-driven error diagnostics for the ByteHot
// hot-swap agent.
//
// When an operation fails, bytehot freezes the recent event history together
// with the runtime state of the process, infers a causal chain pointing at a
// likely root cause, and turns the result into a bug report and reproduction
// test cases.
//
// # Core Components
//
//   - Event: the versioned domain event supplied by the agent's event store
//   - ErrorContext: immutable capture of goroutine, memory, property and stack state
//   - CausalChain: linear cause→effect model with a clamped confidence score
//   - SnapshotGenerator: builds a bounded EventSnapshot and never fails
//   - SnapshotError: the error value carrying the snapshot to the caller
//   - BugReportGenerator: severity, category, recommendations and JSON/Markdown output
//   - Reporter: glues capture, report generation, scrubbing and a Sink together
//
// # Quick Start
//
//	gen := bytehot.NewSnapshotGenerator(store)
//	reporter := bytehot.NewReporter(
//	    bytehot.WithGenerator(gen),
//	    bytehot.WithSink(stderr.NewStderrSink()),
//	    bytehot.WithDefaultScrubbing(),
//	)
//	if err := redefine(ctx, class); err != nil {
//	    return reporter.Report(ctx, err)
//	}
//
// # Design Principles
//
//   - The diagnostic pipeline never fails its caller: internal errors degrade to fallbacks
//   - Fail-closed scrubbing: sensitive keys are redacted before any sink sees them
//   - Ports, not singletons: event store, user resolver and clock are injected
package bytehot
