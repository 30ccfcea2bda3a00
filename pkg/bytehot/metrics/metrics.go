// Package metrics exposes Prometheus instrumentation for the bug report
// pipeline and the documentation provider.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

const namespace = "bytehot"

// Metrics holds the report pipeline collectors.
type Metrics struct {
	ReportsTotal  *prometheus.CounterVec
	SinkErrors    *prometheus.CounterVec
	WriteDuration *prometheus.HistogramVec
	Dropped       prometheus.Counter
	EventCount    prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reports",
			Name:      "total",
			Help:      "Bug reports written, by severity and category.",
		}, []string{"sink", "severity", "category"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "errors_total",
			Help:      "Sink operations that returned an error.",
		}, []string{"sink", "operation"}),
		WriteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "write_duration_seconds",
			Help:      "Time spent writing a bug report to a sink.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"sink"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "dropped_total",
			Help:      "Bug reports dropped by the async sink on overflow.",
		}),
		EventCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reports",
			Name:      "snapshot_events",
			Help:      "Events captured in the snapshot behind each report.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ReportsTotal, m.SinkErrors, m.WriteDuration, m.Dropped, m.EventCount)
	}
	return m
}

// OnDropped returns a callback for async.WithOnDropped.
func (m *Metrics) OnDropped() func(count int) {
	return func(count int) {
		m.Dropped.Add(float64(count))
	}
}

// InstrumentSink wraps sink so every operation is counted under name.
func (m *Metrics) InstrumentSink(name string, sink bytehot.Sink) bytehot.Sink {
	return &instrumentedSink{name: name, inner: sink, m: m}
}

type instrumentedSink struct {
	name  string
	inner bytehot.Sink
	m     *Metrics
}

func (s *instrumentedSink) Write(ctx context.Context, report *bytehot.BugReport) error {
	start := time.Now()
	err := s.inner.Write(ctx, report)
	s.m.WriteDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
	if err != nil {
		s.m.SinkErrors.WithLabelValues(s.name, "write").Inc()
		return err
	}
	if report != nil {
		s.m.ReportsTotal.WithLabelValues(s.name, string(report.Severity), string(report.Category)).Inc()
		s.m.EventCount.Observe(float64(report.EventCount))
	}
	return nil
}

func (s *instrumentedSink) Flush(ctx context.Context) error {
	err := s.inner.Flush(ctx)
	if err != nil {
		s.m.SinkErrors.WithLabelValues(s.name, "flush").Inc()
	}
	return err
}

func (s *instrumentedSink) Close() error {
	err := s.inner.Close()
	if err != nil {
		s.m.SinkErrors.WithLabelValues(s.name, "close").Inc()
	}
	return err
}
