// errorcontext.go captures the immutable runtime context of a failure.

package bytehot

import (
	"context"
	"fmt"
	"maps"
	"os"
	"strings"
	"time"
)

// ErrorContext is the runtime state captured at the moment of a failure.
// It is never mutated after capture; WithCustomContext returns a copy.
type ErrorContext struct {
	CapturedAt time.Time

	// User is nil when no user context was available.
	User *UserID

	ThreadName  string
	ThreadID    int64
	ThreadState string

	SystemProperties     map[string]string
	EnvironmentVariables map[string]string

	Memory MemoryInfo

	// ClassLoaderInfo describes the code unit that was running.
	ClassLoaderInfo string

	StackTrace []StackFrame

	ByteHotContext map[string]any
	CustomContext  map[string]any
}

// CaptureOption configures CaptureErrorContext.
type CaptureOption func(*captureConfig)

type captureConfig struct {
	users      UserResolver
	properties PropertySource
	environ    EnvironSource
	clock      func() time.Time
	skip       int
}

// WithUserResolver sets the resolver consulted for the current user.
func WithUserResolver(r UserResolver) CaptureOption {
	return func(c *captureConfig) {
		if r != nil {
			c.users = r
		}
	}
}

// WithPropertySource sets the source of system properties.
func WithPropertySource(src PropertySource) CaptureOption {
	return func(c *captureConfig) {
		if src != nil {
			c.properties = src
		}
	}
}

// WithEnvironSource sets the source of environment variables.
func WithEnvironSource(src EnvironSource) CaptureOption {
	return func(c *captureConfig) {
		if src != nil {
			c.environ = src
		}
	}
}

// WithCaptureClock overrides the capture timestamp source.
func WithCaptureClock(clock func() time.Time) CaptureOption {
	return func(c *captureConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithCallerSkip skips additional stack frames so the capture location points
// at the failing code rather than a helper.
func WithCallerSkip(skip int) CaptureOption {
	return func(c *captureConfig) {
		if skip > 0 {
			c.skip = skip
		}
	}
}

func newCaptureConfig(opts []CaptureOption) *captureConfig {
	cfg := &captureConfig{
		users:      ContextUserResolver{},
		properties: DefaultProperties,
		environ:    os.Environ,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// CaptureErrorContext reads the current goroutine, heap counters, filtered
// properties and environment, the current user and the call stack.
// It never panics.
func CaptureErrorContext(ctx context.Context, opts ...CaptureOption) *ErrorContext {
	return newCaptureConfig(opts).capture(ctx, 1)
}

func (c *captureConfig) capture(ctx context.Context, skip int) (ec *ErrorContext) {
	gid, state := goroutineInfo()
	named, _ := ThreadNameFromContext(ctx)

	ec = &ErrorContext{
		CapturedAt:           c.clock(),
		ThreadName:           threadName(named, gid),
		ThreadID:             gid,
		ThreadState:          state,
		SystemProperties:     map[string]string{},
		EnvironmentVariables: map[string]string{},
		Memory:               readMemoryInfo(),
		ClassLoaderInfo:      "unknown",
		ByteHotContext:       map[string]any{},
		CustomContext:        map[string]any{},
	}

	// Each reader below is optional; a panicking source leaves its field empty.
	safely(func() {
		if user, ok := c.users.CurrentUser(ctx); ok {
			ec.User = &user
		}
		ec.ByteHotContext["userContext"] = c.users.HasUserContext(ctx)
		ec.ByteHotContext["contextDescription"] = c.users.ContextDescription(ctx)
	})
	safely(func() { ec.SystemProperties = filterProperties(c.properties()) })
	safely(func() { ec.EnvironmentVariables = filterEnviron(c.environ()) })
	safely(func() { ec.ClassLoaderInfo = moduleInfo() })
	// closure, safely and capture sit between captureStack and the skip frames.
	safely(func() { ec.StackTrace = captureStack(skip + c.skip + 3) })

	return ec
}

func safely(fn func()) {
	defer func() {
		_ = recover()
	}()
	fn()
}

// MemoryUsagePercentage returns used/total heap in [0,1], or 0 when the total
// is unknown.
func (ec *ErrorContext) MemoryUsagePercentage() float64 {
	if ec.Memory.TotalHeap <= 0 || ec.Memory.UsedHeap < 0 {
		return 0
	}
	usage := float64(ec.Memory.UsedHeap) / float64(ec.Memory.TotalHeap)
	return min(max(usage, 0), 1)
}

// IsHighMemoryUsage reports whether heap usage exceeds 80%.
func (ec *ErrorContext) IsHighMemoryUsage() bool {
	return ec.MemoryUsagePercentage() > 0.8
}

// ContextSummary returns a one-line description of the context.
func (ec *ErrorContext) ContextSummary() string {
	user := "anonymous"
	if ec.User != nil {
		user = ec.User.Name()
	}
	return fmt.Sprintf("ErrorContext[thread=%s, user=%s, memory=%.1f%%, time=%s]",
		ec.ThreadName, user, ec.MemoryUsagePercentage()*100, formatInstant(ec.CapturedAt))
}

// WithCustomContext returns a copy of the context with one more custom entry.
func (ec *ErrorContext) WithCustomContext(key string, value any) *ErrorContext {
	clone := *ec
	clone.CustomContext = maps.Clone(ec.CustomContext)
	if clone.CustomContext == nil {
		clone.CustomContext = map[string]any{}
	}
	clone.CustomContext[key] = value
	return &clone
}

// StackDepth returns the number of captured frames.
func (ec *ErrorContext) StackDepth() int {
	return len(ec.StackTrace)
}

// CaptureLocation returns the innermost captured frame, or "unknown".
func (ec *ErrorContext) CaptureLocation() string {
	if len(ec.StackTrace) == 0 {
		return "unknown"
	}
	return ec.StackTrace[0].String()
}

// StackTraceString renders the captured stack one frame per line.
func (ec *ErrorContext) StackTraceString() string {
	var b strings.Builder
	for _, f := range ec.StackTrace {
		b.WriteString("\tat ")
		b.WriteString(f.String())
		b.WriteString("\n")
	}
	return b.String()
}

// fallbackErrorContext is used when a caller hands over no context at all.
func fallbackErrorContext(now time.Time) *ErrorContext {
	gid, state := goroutineInfo()
	return &ErrorContext{
		CapturedAt:           now,
		ThreadName:           threadName("", gid),
		ThreadID:             gid,
		ThreadState:          state,
		SystemProperties:     map[string]string{},
		EnvironmentVariables: map[string]string{},
		Memory:               MemoryInfo{TotalHeap: -1, UsedHeap: -1, MaxHeap: -1, FreeHeap: -1, GCCount: -1, GCTimeMs: -1},
		ClassLoaderInfo:      "unknown",
		ByteHotContext:       map[string]any{},
		CustomContext:        map[string]any{},
	}
}
