// Package file provides a sink that writes each bug report into a directory
// as <reportId>.md and/or <reportId>.json.
package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

// Format selects a rendering written per report.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("file sink is closed")

// FileSinkOption configures the file sink.
type FileSinkOption func(*fileSink)

// WithFormats selects which files are written per report (default: both).
func WithFormats(formats ...Format) FileSinkOption {
	return func(s *fileSink) {
		if len(formats) > 0 {
			s.formats = formats
		}
	}
}

// WithTestCases also writes the reproduction test source as
// <reportId>Test.java when a report carries one.
func WithTestCases() FileSinkOption {
	return func(s *fileSink) {
		s.testCases = true
	}
}

type fileSink struct {
	dir       string
	formats   []Format
	testCases bool

	mu     sync.Mutex
	closed bool
}

// NewFileSink creates dir if needed and returns a sink writing into it.
func NewFileSink(dir string, opts ...FileSinkOption) (bytehot.Sink, error) {
	if dir == "" {
		return nil, errors.New("file sink needs a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create report directory %s", dir)
	}
	s := &fileSink{
		dir:     dir,
		formats: []Format{FormatMarkdown, FormatJSON},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *fileSink) Write(_ context.Context, report *bytehot.BugReport) error {
	if report == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	base := safeName(report.ReportID)
	for _, f := range s.formats {
		var content string
		switch f {
		case FormatMarkdown:
			content = report.ToMarkdown()
		case FormatJSON:
			content = report.ToJSON()
		default:
			return errors.Newf("unknown report format %q", f)
		}
		if err := writeAtomic(filepath.Join(s.dir, base+"."+string(f)), content); err != nil {
			return err
		}
	}
	if s.testCases && report.HasTestCase() {
		if err := writeAtomic(filepath.Join(s.dir, base+"Test.java"), report.ReproductionTestCase); err != nil {
			return err
		}
	}
	return nil
}

// writeAtomic writes through a temp file so readers never see a partial report.
func writeAtomic(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*")
	if err != nil {
		return errors.Wrap(err, "create temp report")
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "rename %s", path)
	}
	return nil
}

// safeName keeps report ids from escaping the directory.
func safeName(id string) string {
	id = strings.TrimLeft(id, ".")
	if id == "" {
		return "report"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, id)
}

func (s *fileSink) Flush(context.Context) error {
	return nil
}

func (s *fileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
