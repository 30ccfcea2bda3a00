// Package async provides a sink wrapper with a bounded queue. Reports are
// handed to the inner sink by a background goroutine; when the queue is full
// the oldest queued report is dropped.
package async

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("async sink is closed")

// AsyncSinkOption configures the async sink.
type AsyncSinkOption func(*asyncSinkConfig)

type asyncSinkConfig struct {
	queueSize    int
	pollInterval time.Duration
	onDropped    func(count int)
	logger       *zap.Logger
}

// WithQueueSize sets the maximum number of queued reports (default: 256).
func WithQueueSize(size int) AsyncSinkOption {
	return func(c *asyncSinkConfig) {
		if size > 0 {
			c.queueSize = size
		}
	}
}

// WithPollInterval sets how often Flush checks for a drained queue (default: 10ms).
func WithPollInterval(d time.Duration) AsyncSinkOption {
	return func(c *asyncSinkConfig) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithOnDropped sets a callback invoked when reports are dropped on overflow.
func WithOnDropped(fn func(count int)) AsyncSinkOption {
	return func(c *asyncSinkConfig) {
		c.onDropped = fn
	}
}

// WithLogger sets the logger for inner sink failures, which are otherwise
// invisible to the writer.
func WithLogger(logger *zap.Logger) AsyncSinkOption {
	return func(c *asyncSinkConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type asyncSink struct {
	inner        bytehot.Sink
	queue        chan *bytehot.BugReport
	done         chan struct{}
	pollInterval time.Duration
	onDropped    func(count int)
	logger       *zap.Logger

	// pending counts reports accepted but not yet handed to the inner sink.
	pending atomic.Int64

	closeOnce sync.Once
	closeMu   sync.RWMutex
	closed    bool
	closeErr  error
	wg        sync.WaitGroup
}

// NewAsyncSink wraps inner with a bounded queue. Write returns without waiting
// for the inner sink.
func NewAsyncSink(inner bytehot.Sink, opts ...AsyncSinkOption) bytehot.Sink {
	cfg := &asyncSinkConfig{
		queueSize:    256,
		pollInterval: 10 * time.Millisecond,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &asyncSink{
		inner:        inner,
		queue:        make(chan *bytehot.BugReport, cfg.queueSize),
		done:         make(chan struct{}),
		pollInterval: cfg.pollInterval,
		onDropped:    cfg.onDropped,
		logger:       cfg.logger,
	}

	s.wg.Add(1)
	go s.processLoop()

	return s
}

func (s *asyncSink) processLoop() {
	defer s.wg.Done()
	for {
		select {
		case report := <-s.queue:
			s.deliver(report)
		case <-s.done:
			for {
				select {
				case report := <-s.queue:
					s.deliver(report)
				default:
					return
				}
			}
		}
	}
}

func (s *asyncSink) deliver(report *bytehot.BugReport) {
	defer s.pending.Add(-1)
	if err := s.inner.Write(context.Background(), report); err != nil {
		s.logger.Warn("async sink delivery failed", zap.String("report_id", report.ReportID), zap.Error(err))
	}
}

// Write enqueues report. When the queue is full the oldest report is dropped.
func (s *asyncSink) Write(_ context.Context, report *bytehot.BugReport) error {
	if report == nil {
		return nil
	}
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	s.pending.Add(1)
	select {
	case s.queue <- report:
		return nil
	default:
		s.dropOldestAndEnqueue(report)
		return nil
	}
}

func (s *asyncSink) dropOldestAndEnqueue(report *bytehot.BugReport) {
	select {
	case <-s.queue:
		s.dropped(1)
	default:
		// drained by the processor in the meantime
	}

	select {
	case s.queue <- report:
	default:
		s.dropped(1)
	}
}

func (s *asyncSink) dropped(n int) {
	s.pending.Add(int64(-n))
	if s.onDropped != nil {
		s.onDropped(n)
	}
}

// Flush blocks until every accepted report reached the inner sink, then
// flushes the inner sink.
func (s *asyncSink) Flush(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for s.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return s.inner.Flush(ctx)
}

// Close drains the queue and closes the inner sink.
func (s *asyncSink) Close() error {
	s.closeOnce.Do(func() {
		s.closeMu.Lock()
		s.closed = true
		s.closeMu.Unlock()

		close(s.done)
		s.wg.Wait()
		s.closeErr = s.inner.Close()
	})
	return s.closeErr
}
