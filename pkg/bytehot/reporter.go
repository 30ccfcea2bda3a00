// reporter.go glues snapshot capture, bug report generation and sinks.

package bytehot

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// ReporterOption configures a Reporter.
type ReporterOption func(*reporterConfig)

type reporterConfig struct {
	sink      Sink
	generator *SnapshotGenerator
	reports   *BugReportGenerator
	scrubber  *Scrubber
	logger    *zap.Logger
}

// WithSink sets the sink reports are written to.
func WithSink(sink Sink) ReporterOption {
	return func(c *reporterConfig) {
		c.sink = sink
	}
}

// WithGenerator sets the snapshot generator used to capture failures.
func WithGenerator(g *SnapshotGenerator) ReporterOption {
	return func(c *reporterConfig) {
		c.generator = g
	}
}

// WithBugReportGenerator sets the generator that analyses failures.
func WithBugReportGenerator(g *BugReportGenerator) ReporterOption {
	return func(c *reporterConfig) {
		c.reports = g
	}
}

// WithScrubber configures the reporter with a custom scrubber configuration.
func WithScrubber(cfg ScrubberConfig) ReporterOption {
	return func(c *reporterConfig) {
		c.scrubber = NewScrubber(cfg)
	}
}

// WithDefaultScrubbing enables scrubbing with production-safe defaults.
func WithDefaultScrubbing() ReporterOption {
	return func(c *reporterConfig) {
		c.scrubber = NewScrubber(DefaultScrubberConfig())
	}
}

// WithReporterLogger sets the logger for sink failures.
func WithReporterLogger(logger *zap.Logger) ReporterOption {
	return func(c *reporterConfig) {
		c.logger = logger
	}
}

// Reporter captures failures of monitored code and writes their bug reports
// to a sink. It is safe for concurrent use.
type Reporter struct {
	sink      Sink
	generator *SnapshotGenerator
	reports   *BugReportGenerator
	scrubber  *Scrubber
	logger    *zap.Logger
}

// NewReporter creates a Reporter with the given options.
func NewReporter(opts ...ReporterOption) *Reporter {
	cfg := &reporterConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.sink == nil {
		cfg.sink = noopSinkInternal{}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.generator == nil {
		cfg.generator = NewSnapshotGenerator(nil, WithLogger(cfg.logger))
	}
	if cfg.reports == nil {
		cfg.reports = NewBugReportGenerator()
	}

	return &Reporter{
		sink:      cfg.sink,
		generator: cfg.generator,
		reports:   cfg.reports,
		scrubber:  cfg.scrubber,
		logger:    cfg.logger,
	}
}

// Report captures err and writes its bug report. The returned SnapshotError
// is what the caller should propagate; sink failures are logged, not
// returned. A nil err yields nil.
func (r *Reporter) Report(ctx context.Context, err error) *SnapshotError {
	if err == nil {
		return nil
	}

	var se *SnapshotError
	if !errors.As(err, &se) {
		se = r.generator.CaptureSnapshotError(ctx, err, "")
	}

	if _, werr := r.ReportSnapshotError(ctx, se); werr != nil {
		r.logger.Warn("bug report not written",
			zap.String("snapshot_id", se.Snapshot.SnapshotID),
			zap.Error(werr))
	}
	return se
}

// ReportSnapshotError generates, scrubs and writes the bug report for se.
func (r *Reporter) ReportSnapshotError(ctx context.Context, se *SnapshotError) (*BugReport, error) {
	report := r.reports.Generate(ctx, se)
	if r.scrubber != nil {
		report = r.scrubber.ScrubReport(report)
	}
	if err := r.sink.Write(ctx, report); err != nil {
		return report, errors.Wrapf(err, "write report %s", report.ReportID)
	}
	return report, nil
}

// Flush delegates to the sink.
func (r *Reporter) Flush(ctx context.Context) error {
	return r.sink.Flush(ctx)
}

// Close delegates to the sink.
func (r *Reporter) Close() error {
	return r.sink.Close()
}
