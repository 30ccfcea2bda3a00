package bytehot

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureErrorContext_UsesInjectedSources(t *testing.T) {
	ctx := WithUser(context.Background(), UserID{Value: "u-1", DisplayName: "Ada"})
	ctx = WithThreadName(ctx, "hotswap-worker")

	ec := CaptureErrorContext(ctx,
		WithCaptureClock(fixedClock),
		WithPropertySource(func() map[string]string {
			return map[string]string{
				"java.version":          "21",
				"os.name":               "Linux",
				"user.home":             "/home/ada",
				"bytehot.watch.paths":   "/classes",
				"jvm.memory.max":        "2g",
				"sun.boot.library.path": "/lib",
			}
		}),
		WithEnvironSource(func() []string {
			return []string{
				"JAVA_HOME=/opt/jdk",
				"PATH=/usr/bin",
				"BYTEHOT_SECRET_KEY=hunter2",
				"CLASSPATH_PASSWORD=nope",
				"HOME=/home/ada",
				"malformed",
			}
		}),
	)

	assert.Equal(t, testNow, ec.CapturedAt)
	assert.Equal(t, "hotswap-worker", ec.ThreadName)
	require.NotNil(t, ec.User)
	assert.Equal(t, "Ada", ec.User.Name())
	assert.Equal(t, true, ec.ByteHotContext["userContext"])
	assert.Equal(t, "User: Ada", ec.ByteHotContext["contextDescription"])

	assert.Equal(t, map[string]string{
		"java.version":        "21",
		"os.name":             "Linux",
		"user.home":           "/home/ada",
		"bytehot.watch.paths": "/classes",
		"jvm.memory.max":      "2g",
	}, ec.SystemProperties)

	assert.Equal(t, map[string]string{
		"JAVA_HOME": "/opt/jdk",
		"PATH":      "/usr/bin",
	}, ec.EnvironmentVariables)
}

func TestCaptureErrorContext_StackPointsAtCaller(t *testing.T) {
	ec := CaptureErrorContext(context.Background())

	require.NotEmpty(t, ec.StackTrace)
	assert.Contains(t, ec.CaptureLocation(), "TestCaptureErrorContext_StackPointsAtCaller")
	assert.Equal(t, len(ec.StackTrace), ec.StackDepth())
	assert.True(t, strings.HasPrefix(ec.StackTraceString(), "\tat "))
}

func TestCaptureErrorContext_AnonymousWithoutUser(t *testing.T) {
	ec := CaptureErrorContext(context.Background())

	assert.Nil(t, ec.User)
	assert.Equal(t, false, ec.ByteHotContext["userContext"])
	assert.Equal(t, "No user context", ec.ByteHotContext["contextDescription"])
	assert.True(t, strings.HasPrefix(ec.ThreadName, "goroutine"))
}

func TestCaptureErrorContext_PanickingSourceIsIgnored(t *testing.T) {
	ec := CaptureErrorContext(context.Background(),
		WithPropertySource(func() map[string]string { panic("boom") }),
	)

	require.NotNil(t, ec)
	assert.Empty(t, ec.SystemProperties)
}

func TestErrorContext_MemoryUsagePercentage(t *testing.T) {
	tests := []struct {
		name string
		mem  MemoryInfo
		want float64
		high bool
	}{
		{"half", MemoryInfo{TotalHeap: 100, UsedHeap: 50}, 0.5, false},
		{"high", MemoryInfo{TotalHeap: 100, UsedHeap: 81}, 0.81, true},
		{"exactly threshold", MemoryInfo{TotalHeap: 100, UsedHeap: 80}, 0.8, false},
		{"zero total", MemoryInfo{TotalHeap: 0, UsedHeap: 50}, 0, false},
		{"unknown", MemoryInfo{TotalHeap: -1, UsedHeap: -1}, 0, false},
		{"used above total", MemoryInfo{TotalHeap: 100, UsedHeap: 150}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := &ErrorContext{Memory: tt.mem}
			got := ec.MemoryUsagePercentage()
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
			assert.Equal(t, tt.high, ec.IsHighMemoryUsage())
		})
	}
}

func TestErrorContext_WithCustomContextDoesNotMutate(t *testing.T) {
	ec := testErrorContext()
	updated := ec.WithCustomContext("request", "r-1")

	assert.Empty(t, ec.CustomContext)
	assert.Equal(t, "r-1", updated.CustomContext["request"])
	assert.Equal(t, ec.ThreadName, updated.ThreadName)
}

func TestErrorContext_ContextSummary(t *testing.T) {
	ec := testErrorContext()

	assert.Equal(t, "ErrorContext[thread=main, user=anonymous, memory=50.0%, time=2025-06-01T12:00:00Z]", ec.ContextSummary())
}

func TestErrorContext_CaptureLocationUnknown(t *testing.T) {
	assert.Equal(t, "unknown", (&ErrorContext{}).CaptureLocation())
}

func TestSplitFunction(t *testing.T) {
	tests := []struct {
		fn                 string
		pkg, typ, method string
	}{
		{"github.com/a/b.(*T).M", "github.com/a/b", "T", "M"},
		{"github.com/a/b.T.M", "github.com/a/b", "T", "M"},
		{"github.com/a/b.Func", "github.com/a/b", "b", "Func"},
		{"main.main", "main", "main", "main"},
	}
	for _, tt := range tests {
		pkg, typ, method := splitFunction(tt.fn)
		assert.Equal(t, tt.pkg, pkg, tt.fn)
		assert.Equal(t, tt.typ, typ, tt.fn)
		assert.Equal(t, tt.method, method, tt.fn)
	}
}

func TestCaptureStack(t *testing.T) {
	frames := CaptureStack(0)
	require.NotEmpty(t, frames)
	assert.Contains(t, frames[0].Function, "TestCaptureStack")

	assert.Nil(t, CaptureStack(1<<20), "skipping past the top of the stack yields no frames")
}
