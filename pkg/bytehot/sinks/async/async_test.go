package async

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

// slowSink records reports, optionally sleeping on each write.
type slowSink struct {
	mu       sync.Mutex
	reports  []string
	delay    time.Duration
	writeErr error
	closeErr error
	closed   bool
	closes   int
}

func (s *slowSink) Write(_ context.Context, report *bytehot.BugReport) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report.ReportID)
	return s.writeErr
}

func (s *slowSink) Flush(context.Context) error { return nil }

func (s *slowSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.closes++
	return s.closeErr
}

func (s *slowSink) got() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.reports...)
}

func report(i int) *bytehot.BugReport {
	return &bytehot.BugReport{ReportID: "r-" + strconv.Itoa(i)}
}

func TestAsyncSink_Write_ReturnsImmediately(t *testing.T) {
	inner := &slowSink{delay: 100 * time.Millisecond}
	sink := NewAsyncSink(inner, WithQueueSize(10))
	defer sink.Close()

	start := time.Now()
	if err := sink.Write(context.Background(), report(1)); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("Write took %v, should not wait for the inner sink", elapsed)
	}
}

func TestAsyncSink_DropsOldest_WhenQueueFull(t *testing.T) {
	inner := &slowSink{delay: 50 * time.Millisecond}
	var droppedCount atomic.Int32
	sink := NewAsyncSink(inner,
		WithQueueSize(2),
		WithOnDropped(func(count int) { droppedCount.Add(int32(count)) }),
	)

	for i := 0; i < 10; i++ {
		_ = sink.Write(context.Background(), report(i))
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	got := inner.got()
	if droppedCount.Load() == 0 {
		t.Fatal("expected reports to be dropped when the queue is full")
	}
	if int(droppedCount.Load())+len(got) != 10 {
		t.Errorf("dropped %d + delivered %d, want 10", droppedCount.Load(), len(got))
	}
	if got[len(got)-1] != "r-9" {
		t.Errorf("newest report should survive, delivered %v", got)
	}
}

func TestAsyncSink_Flush_DrainsQueue(t *testing.T) {
	inner := &slowSink{delay: time.Millisecond}
	sink := NewAsyncSink(inner, WithQueueSize(100))
	defer sink.Close()

	for i := 0; i < 10; i++ {
		_ = sink.Write(context.Background(), report(i))
	}
	if err := sink.Flush(context.Background()); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if n := len(inner.got()); n != 10 {
		t.Errorf("delivered %d reports after Flush, want 10", n)
	}
}

func TestAsyncSink_Flush_HonoursContext(t *testing.T) {
	inner := &slowSink{delay: 200 * time.Millisecond}
	sink := NewAsyncSink(inner)
	defer sink.Close()

	_ = sink.Write(context.Background(), report(1))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := sink.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Flush error = %v, want deadline exceeded", err)
	}
}

func TestAsyncSink_Close_DrainsAndClosesInner(t *testing.T) {
	inner := &slowSink{}
	sink := NewAsyncSink(inner, WithQueueSize(100))

	for i := 0; i < 5; i++ {
		_ = sink.Write(context.Background(), report(i))
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if n := len(inner.got()); n != 5 {
		t.Errorf("delivered %d reports after Close, want 5", n)
	}
	if !inner.closed {
		t.Error("inner sink should be closed")
	}
}

func TestAsyncSink_Close_ClosesInnerOnce(t *testing.T) {
	closeErr := errors.New("close failed")
	inner := &slowSink{closeErr: closeErr}
	sink := NewAsyncSink(inner)

	for i := 0; i < 3; i++ {
		if err := sink.Close(); !errors.Is(err, closeErr) {
			t.Errorf("Close #%d = %v, want %v", i+1, err, closeErr)
		}
	}
	if inner.closes != 1 {
		t.Errorf("inner Close called %d times, want 1", inner.closes)
	}
}

func TestAsyncSink_WriteAfterClose(t *testing.T) {
	sink := NewAsyncSink(&slowSink{})
	_ = sink.Close()

	if err := sink.Write(context.Background(), report(1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close = %v, want ErrClosed", err)
	}
}

func TestAsyncSink_LogsInnerFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	inner := &slowSink{writeErr: errors.New("disk full")}
	sink := NewAsyncSink(inner, WithLogger(zap.New(core)))

	_ = sink.Write(context.Background(), report(7))
	_ = sink.Close()

	entries := logs.FilterMessage("async sink delivery failed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d warnings, want 1", len(entries))
	}
	if entries[0].ContextMap()["report_id"] != "r-7" {
		t.Errorf("report_id = %v, want r-7", entries[0].ContextMap()["report_id"])
	}
}
