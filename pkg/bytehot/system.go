// system.go reads live runtime state: heap counters, goroutine identity,
// process properties and the current call stack.

package bytehot

import (
	"bytes"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"time"
)

var processStart = time.Now()

// MemoryInfo holds heap and GC counters at capture time.
// A counter that could not be read is -1.
type MemoryInfo struct {
	TotalHeap int64
	UsedHeap  int64
	MaxHeap   int64
	FreeHeap  int64
	GCCount   int64
	GCTimeMs  int64
}

// readMemoryInfo never panics; unreadable counters are reported as -1.
func readMemoryInfo() (info MemoryInfo) {
	info = MemoryInfo{TotalHeap: -1, UsedHeap: -1, MaxHeap: -1, FreeHeap: -1, GCCount: -1, GCTimeMs: -1}
	defer func() {
		_ = recover()
	}()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	info.TotalHeap = int64(ms.HeapSys)
	info.UsedHeap = int64(ms.HeapAlloc)
	info.FreeHeap = info.TotalHeap - info.UsedHeap
	info.MaxHeap = debug.SetMemoryLimit(-1)
	info.GCCount = int64(ms.NumGC)
	info.GCTimeMs = int64(time.Duration(ms.PauseTotalNs) / time.Millisecond)
	return info
}

// goroutineInfo parses the "goroutine N [state]:" header of the current stack.
func goroutineInfo() (id int64, state string) {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))

	fields := bytes.Fields(buf)
	if len(fields) < 2 {
		return -1, "unknown"
	}
	id, err := strconv.ParseInt(string(fields[0]), 10, 64)
	if err != nil {
		id = -1
	}
	state = strings.Trim(string(fields[1]), "[]:,")
	if state == "" {
		state = "unknown"
	}
	return id, state
}

// threadName resolves the logical thread name for ctx-less callers.
func threadName(named string, id int64) string {
	if named != "" {
		return named
	}
	if id < 0 {
		return "goroutine"
	}
	return "goroutine-" + strconv.FormatInt(id, 10)
}

// PropertySource supplies the process properties an error context filters.
// The agent injects the JVM's system properties here; the default reports the
// Go process under the same key conventions.
type PropertySource func() map[string]string

// DefaultProperties describes the current process using JVM-style keys.
func DefaultProperties() map[string]string {
	props := map[string]string{
		"os.name":         runtime.GOOS,
		"os.arch":         runtime.GOARCH,
		"go.version":      runtime.Version(),
		"go.maxprocs":     strconv.Itoa(runtime.GOMAXPROCS(0)),
		"go.gc.percent":   os.Getenv("GOGC"),
		"user.timezone":   time.Local.String(),
		"bytehot.process": strconv.Itoa(os.Getpid()),
	}
	if dir, err := os.Getwd(); err == nil {
		props["user.dir"] = dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		props["user.home"] = home
	}
	if props["go.gc.percent"] == "" {
		props["go.gc.percent"] = "100"
	}
	return props
}

// EnvironSource supplies environment variables as KEY=VALUE pairs.
type EnvironSource func() []string

// isRelevantProperty keeps runtime, OS and user properties plus anything
// mentioning bytehot, memory or gc.
func isRelevantProperty(key string) bool {
	return strings.HasPrefix(key, "java.") ||
		strings.HasPrefix(key, "os.") ||
		strings.HasPrefix(key, "user.") ||
		strings.HasPrefix(key, "go.") ||
		strings.Contains(key, "bytehot") ||
		strings.Contains(key, "memory") ||
		strings.Contains(key, "gc")
}

// isRelevantEnvVar keeps java/path/bytehot variables and drops anything that
// looks like a credential.
func isRelevantEnvVar(key string) bool {
	lower := strings.ToLower(key)
	return (strings.Contains(lower, "java") ||
		strings.Contains(lower, "path") ||
		strings.Contains(lower, "bytehot")) &&
		!strings.Contains(lower, "password") &&
		!strings.Contains(lower, "secret") &&
		!strings.Contains(lower, "key")
}

func filterProperties(props map[string]string) map[string]string {
	result := make(map[string]string)
	for k, v := range props {
		if isRelevantProperty(k) {
			result[k] = v
		}
	}
	return result
}

func filterEnviron(environ []string) map[string]string {
	result := make(map[string]string)
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		if isRelevantEnvVar(k) {
			result[k] = v
		}
	}
	return result
}

// StackFrame is one frame of a captured call stack.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Package returns the import path portion of the frame's function.
func (f StackFrame) Package() string {
	pkg, _, _ := splitFunction(f.Function)
	return pkg
}

// TypeName returns the receiver type, or the package name for plain functions.
func (f StackFrame) TypeName() string {
	_, typ, _ := splitFunction(f.Function)
	return typ
}

// Method returns the function or method name.
func (f StackFrame) Method() string {
	_, _, method := splitFunction(f.Function)
	return method
}

func (f StackFrame) String() string {
	file := f.File
	if idx := strings.LastIndex(file, "/"); idx >= 0 {
		file = file[idx+1:]
	}
	return f.Function + "(" + file + ":" + strconv.Itoa(f.Line) + ")"
}

// splitFunction splits "github.com/a/b.(*T).M" into ("github.com/a/b", "T", "M").
func splitFunction(fn string) (pkg, typ, method string) {
	slash := strings.LastIndex(fn, "/")
	dot := strings.Index(fn[slash+1:], ".")
	if dot < 0 {
		return "", fn, fn
	}
	dot += slash + 1
	pkg = fn[:dot]
	rest := fn[dot+1:]

	pkgName := pkg
	if slash >= 0 {
		pkgName = pkg[slash+1:]
	}

	if idx := strings.LastIndex(rest, "."); idx >= 0 {
		typ = strings.Trim(rest[:idx], "(*)")
		method = rest[idx+1:]
		return pkg, typ, method
	}
	return pkg, pkgName, rest
}

// CaptureStack returns the calling goroutine's stack, skipping skip frames
// above the caller.
func CaptureStack(skip int) []StackFrame {
	return captureStack(skip + 1)
}

// captureStack returns the stack of the caller, skipping skip frames above it.
func captureStack(skip int) []StackFrame {
	pcs := make([]uintptr, 128)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])

	var result []StackFrame
	for {
		frame, more := frames.Next()
		result = append(result, StackFrame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more {
			break
		}
	}
	return result
}

// moduleInfo describes the main module, the Go analogue of a class loader.
func moduleInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	if info.Main.Version == "" {
		return info.Main.Path
	}
	return info.Main.Path + "@" + info.Main.Version
}

// performanceMetrics captures heap, processor and clock readings.
func performanceMetrics(now time.Time) map[string]any {
	mem := readMemoryInfo()
	return map[string]any{
		"freeMemory":          mem.FreeHeap,
		"totalMemory":         mem.TotalHeap,
		"maxMemory":           mem.MaxHeap,
		"free_memory":         mem.FreeHeap,
		"total_memory":        mem.TotalHeap,
		"availableProcessors": runtime.NumCPU(),
		"goroutines":          runtime.NumGoroutine(),
		"currentTimeMillis":   now.UnixMilli(),
		"nanoTime":            time.Since(processStart).Nanoseconds(),
	}
}
