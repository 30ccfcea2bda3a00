// report.go implements the report command.

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	cxdbclient "github.com/strongdm/ai-cxdb/clients/go"
	"go.uber.org/zap"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
	"github.com/rydnr/bytehot-observe/pkg/bytehot/metrics"
	"github.com/rydnr/bytehot-observe/pkg/bytehot/sinks/async"
	"github.com/rydnr/bytehot-observe/pkg/bytehot/sinks/cxdb"
	"github.com/rydnr/bytehot-observe/pkg/bytehot/sinks/file"
	"github.com/rydnr/bytehot-observe/pkg/bytehot/sinks/multi"
	"github.com/rydnr/bytehot-observe/pkg/bytehot/sinks/noop"
	"github.com/rydnr/bytehot-observe/pkg/bytehot/sinks/stderr"
)

type failureFlags struct {
	exception string
	message   string
}

func (f *failureFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.exception, "exception", "java.lang.RuntimeException", "Exception class of the failure")
	cmd.Flags().StringVarP(&f.message, "message", "m", "", "Exception message")
}

func (f *failureFlags) failure() error {
	return bytehot.NewFailure(f.exception, f.message)
}

type reportOptions struct {
	failureFlags
	format     string
	toStderr   bool
	metricsOut string
}

func newReportCommand(a *app) *cobra.Command {
	opts := &reportOptions{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a bug report for a failure at the end of the event log",
		Long: `Captures a snapshot of the events preceding the failure, runs causal
analysis, and renders the bug report to stdout. The report is also delivered to
the configured sinks: report.dir, cxdb.addr and --stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runReport(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.format, "format", "f", "markdown", "Output format: markdown or json")
	cmd.Flags().BoolVar(&opts.toStderr, "stderr", false, "Also print a summary to stderr")
	cmd.Flags().StringVar(&opts.metricsOut, "metrics-out", "", "Write Prometheus metrics in text format to this file")
	return cmd
}

func (a *app) runReport(ctx context.Context, opts *reportOptions, out io.Writer) error {
	if opts.format != "markdown" && opts.format != "json" {
		return errors.Newf("unknown format %q", opts.format)
	}

	src, err := a.openSource(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	sink, closeSinks, err := a.buildSink(ctx, m, opts.toStderr)
	if err != nil {
		return err
	}
	defer closeSinks()

	gen := a.snapshotGenerator(src)
	reporterOpts := []bytehot.ReporterOption{
		bytehot.WithSink(sink),
		bytehot.WithGenerator(gen),
		bytehot.WithBugReportGenerator(bytehot.NewBugReportGenerator(bytehot.WithReportClock(src.clock))),
		bytehot.WithReporterLogger(a.logger),
	}
	if a.cfg.Report.Scrub {
		reporterOpts = append(reporterOpts, bytehot.WithDefaultScrubbing())
	}
	reporter := bytehot.NewReporter(reporterOpts...)

	se := gen.CaptureSnapshotError(ctx, opts.failure(), "")
	report, err := reporter.ReportSnapshotError(ctx, se)
	if err != nil {
		a.logger.Warn("bug report not delivered", zap.Error(err))
	}
	if err := reporter.Flush(ctx); err != nil {
		a.logger.Warn("flush sinks", zap.Error(err))
	}

	if opts.format == "json" {
		fmt.Fprintln(out, report.ToJSON())
	} else {
		fmt.Fprint(out, report.ToMarkdown())
	}

	if opts.metricsOut != "" {
		if err := prometheus.WriteToTextfile(opts.metricsOut, reg); err != nil {
			return errors.Wrap(err, "write metrics")
		}
	}
	return nil
}

func (a *app) snapshotGenerator(src *eventSource) *bytehot.SnapshotGenerator {
	return bytehot.NewSnapshotGenerator(src.store,
		bytehot.WithSnapshotConfig(a.cfg.SnapshotConfig()),
		bytehot.WithLogger(a.logger),
		bytehot.WithClock(src.clock),
	)
}

// buildSink assembles the configured destinations, each instrumented, behind
// an optional async queue.
func (a *app) buildSink(_ context.Context, m *metrics.Metrics, toStderr bool) (bytehot.Sink, func(), error) {
	var sinks []bytehot.Sink
	var closers []func() error

	if toStderr {
		opts := []stderr.StderrSinkOption{}
		if a.cfg.Report.Verbose {
			opts = append(opts, stderr.WithVerbose())
		}
		sinks = append(sinks, m.InstrumentSink("stderr", stderr.NewStderrSink(opts...)))
	}

	if a.cfg.Report.Dir != "" {
		formats := make([]file.Format, 0, len(a.cfg.Report.Formats))
		for _, f := range a.cfg.Report.Formats {
			formats = append(formats, file.Format(f))
		}
		fileOpts := []file.FileSinkOption{file.WithFormats(formats...)}
		if a.cfg.Report.TestCases {
			fileOpts = append(fileOpts, file.WithTestCases())
		}
		fs, err := file.NewFileSink(a.cfg.Report.Dir, fileOpts...)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, m.InstrumentSink("file", fs))
	}

	if a.cfg.CXDB.Addr != "" {
		client, err := cxdbclient.Dial(a.cfg.CXDB.Addr, cxdbclient.WithClientTag(a.cfg.CXDB.ClientTag))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "connect to cxdb at %s", a.cfg.CXDB.Addr)
		}
		closers = append(closers, client.Close)
		sinks = append(sinks, m.InstrumentSink("cxdb", cxdb.NewCXDBSink(client,
			cxdb.WithClientTag(a.cfg.CXDB.ClientTag),
			cxdb.WithLabels(a.cfg.CXDB.Labels),
		)))
	}

	var sink bytehot.Sink
	switch len(sinks) {
	case 0:
		sink = noop.NewNoopSink()
	case 1:
		sink = sinks[0]
	default:
		sink = multi.NewMultiSink(sinks...)
	}
	if a.cfg.Report.Async {
		sink = async.NewAsyncSink(sink,
			async.WithQueueSize(a.cfg.Report.QueueSize),
			async.WithOnDropped(m.OnDropped()),
			async.WithLogger(a.logger),
		)
	}

	closeAll := func() {
		if err := sink.Close(); err != nil {
			a.logger.Warn("close sinks", zap.Error(err))
		}
		for _, c := range closers {
			_ = c()
		}
	}
	return sink, closeAll, nil
}
