// snapshot_error.go defines SnapshotError, the error that carries the full
// diagnostic payload of a failure.

package bytehot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// SnapshotError is returned to callers of monitored operations. It wraps the
// original failure, when there is one, with the event snapshot and error
// context captured when it happened. Snapshot and Context are never nil.
type SnapshotError struct {
	ID      string
	Message string

	// Cause is nil when the error is self-caused.
	Cause error

	Snapshot *EventSnapshot
	Context  *ErrorContext

	Classification ErrorClassification
	DebugMetadata  map[string]any
	CapturedAt     time.Time
}

// NewSnapshotError creates a SnapshotError with an explicit message. A nil
// snapshot or context is replaced by a fallback.
func NewSnapshotError(msg string, snapshot *EventSnapshot, errCtx *ErrorContext, cause error) *SnapshotError {
	now := time.Now()
	if errCtx == nil {
		errCtx = fallbackErrorContext(now)
	}
	if snapshot == nil {
		snapshot = &EventSnapshot{
			SnapshotID:         uuid.NewString(),
			CapturedAt:         errCtx.CapturedAt,
			Events:             []Event{},
			EnvironmentContext: map[string]string{"fallback": "true", "error": "no snapshot captured"},
			ThreadName:         errCtx.ThreadName,
			SystemProperties:   map[string]string{},
			PerformanceMetrics: map[string]any{},
		}
	}

	e := &SnapshotError{
		ID:         uuid.NewString(),
		Message:    msg,
		Cause:      cause,
		Snapshot:   snapshot,
		Context:    errCtx,
		CapturedAt: errCtx.CapturedAt,
	}
	e.Classification = classifyReproduction(cause, snapshot)
	e.DebugMetadata = enrichMetadata(cause, errCtx)
	return e
}

// WrapSnapshotError wraps cause, deriving the message from it.
func WrapSnapshotError(cause error, snapshot *EventSnapshot, errCtx *ErrorContext) *SnapshotError {
	msg := "Event-driven error: "
	if cause != nil {
		msg += errorMessage(cause)
	} else {
		msg += "null"
	}
	return NewSnapshotError(msg, snapshot, errCtx, cause)
}

// CaptureSnapshotError generates a snapshot with gen and wraps cause into a
// SnapshotError. A nil gen uses a generator without an event store.
func CaptureSnapshotError(ctx context.Context, gen *SnapshotGenerator, cause error, msg string) *SnapshotError {
	if gen == nil {
		gen = NewSnapshotGenerator(nil)
	}
	return gen.CaptureSnapshotError(ctx, cause, msg)
}

func (e *SnapshotError) Error() string {
	return e.Message
}

func (e *SnapshotError) Unwrap() error {
	return e.Cause
}

// Kind delegates to the cause; a self-caused error is generic.
func (e *SnapshotError) Kind() FailureKind {
	if e.Cause == nil {
		return KindGeneric
	}
	return KindOf(e.Cause)
}

// CausalChain returns the snapshot's causal chain, or nil.
func (e *SnapshotError) CausalChain() *CausalChain {
	return e.Snapshot.CausalChain
}

// OriginalTypeName returns the simple type name of the cause, or
// EventSnapshotException when the error is self-caused.
func (e *SnapshotError) OriginalTypeName() string {
	if e.Cause == nil {
		return exceptionTypeName
	}
	return SimpleTypeName(e.Cause)
}

// OriginalMessage returns the cause's message. It is false when there is no
// cause or the cause carries no message.
func (e *SnapshotError) OriginalMessage() (string, bool) {
	if e.Cause == nil {
		return "", false
	}
	msg := errorMessage(e.Cause)
	return msg, msg != ""
}

// DebuggingReport renders the plain-text debugging report.
func (e *SnapshotError) DebuggingReport() string {
	var b strings.Builder

	b.WriteString("=== ByteHot Event-Driven Error Report ===\n\n")

	b.WriteString("ERROR: " + e.Message + "\n")
	if e.Cause != nil {
		b.WriteString("ORIGINAL: " + SimpleTypeName(e.Cause) + ": " + errorMessage(e.Cause) + "\n")
	}
	b.WriteString("TIME: " + formatInstant(e.Context.CapturedAt) + "\n\n")

	b.WriteString("CONTEXT SUMMARY:\n")
	b.WriteString("- " + e.Context.ContextSummary() + "\n")
	b.WriteString("- " + e.Snapshot.Summary() + "\n\n")

	fmt.Fprintf(&b, "EVENT HISTORY (%d events):\n", e.Snapshot.EventCount())
	for _, ev := range e.Snapshot.Events {
		fmt.Fprintf(&b, "  • %s - %s (v%d)\n", formatInstant(ev.Timestamp), ev.EventType, ev.AggregateVersion)
	}
	b.WriteString("\n")

	if chain := e.CausalChain(); chain != nil {
		b.WriteString("CAUSAL ANALYSIS:\n")
		b.WriteString("- " + chain.Description() + "\n")
		if len(chain.ContributingFactors) > 0 {
			b.WriteString("- Contributing factors: [" + strings.Join(chain.ContributingFactors, ", ") + "]\n")
		}
		for _, s := range chain.DebuggingSuggestions() {
			b.WriteString("- Suggestion: " + s + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("SYSTEM STATE:\n")
	fmt.Fprintf(&b, "- Memory usage: %.1f%%\n", e.Context.MemoryUsagePercentage()*100)
	if mem := e.Context.Memory; mem.TotalHeap > 0 && mem.UsedHeap >= 0 {
		fmt.Fprintf(&b, "- Heap: %s used of %s\n", humanize.IBytes(uint64(mem.UsedHeap)), humanize.IBytes(uint64(mem.TotalHeap)))
	}
	b.WriteString("- Thread: " + e.Context.ThreadName + " (" + e.Context.ThreadState + ")\n")
	if e.Context.IsHighMemoryUsage() {
		b.WriteString("- WARNING: High memory usage detected\n")
	}
	b.WriteString("\n")

	b.WriteString("REPRODUCTION INFO:\n")
	b.WriteString("- Snapshot ID: " + e.Snapshot.SnapshotID + "\n")
	b.WriteString("- Event span: " + formatSpan(e.Snapshot.TimeSpan()) + "\n")
	b.WriteString("- Capture location: " + e.Context.CaptureLocation() + "\n\n")

	if e.Cause != nil {
		b.WriteString("ORIGINAL STACK TRACE:\n")
		b.WriteString(stackTraceText(e.Cause))
		b.WriteString("\n")
	}

	b.WriteString("=== End Report ===")
	return b.String()
}

// stackTraceText renders the failure and its causes, one frame per line.
func stackTraceText(err error) string {
	var f *Failure
	if !errors.As(err, &f) {
		return fmt.Sprintf("%+v\n", err)
	}

	var b strings.Builder
	prefix := ""
	for f != nil {
		b.WriteString(prefix + f.Error() + "\n")
		for _, frame := range f.Frames {
			b.WriteString("\tat " + frame + "\n")
		}
		prefix = "Caused by: "
		next, ok := f.Cause.(*Failure)
		if !ok {
			if f.Cause != nil {
				b.WriteString(prefix + f.Cause.Error() + "\n")
			}
			break
		}
		f = next
	}
	return b.String()
}

// ErrorSummary returns a one-line description suitable for logs.
func (e *SnapshotError) ErrorSummary() string {
	user := "anonymous"
	if e.Context.User != nil {
		user = e.Context.User.Name()
	}
	summary := fmt.Sprintf("EventSnapshotException[events=%d, user=%s, memory=%.1f%%, snapshot=%s...]",
		e.Snapshot.EventCount(), user, e.Context.MemoryUsagePercentage()*100, shortID(e.Snapshot.SnapshotID))
	if e.Cause != nil {
		summary += " <- " + SimpleTypeName(e.Cause)
	}
	return summary
}

// IsLikelyReproducible reports whether events were captured and any causal
// chain is confident enough to replay.
func (e *SnapshotError) IsLikelyReproducible() bool {
	chain := e.CausalChain()
	return e.Snapshot.EventCount() > 0 && (chain == nil || chain.Confidence > 0.5)
}

// DebuggingSuggestions returns recommended debugging actions.
func (e *SnapshotError) DebuggingSuggestions() []string {
	var suggestions []string

	if e.Context.IsHighMemoryUsage() {
		suggestions = append(suggestions, fmt.Sprintf("Check for memory leaks - current usage is %.1f%%",
			e.Context.MemoryUsagePercentage()*100))
	}
	if e.Snapshot.EventCount() > 100 {
		suggestions = append(suggestions, "Large event history detected - consider event filtering or archiving")
	}
	if chain := e.CausalChain(); chain != nil {
		suggestions = append(suggestions, chain.DebuggingSuggestions()...)
	}

	suggestions = append(suggestions, "Use snapshot ID "+shortID(e.Snapshot.SnapshotID)+"... to reproduce this exact scenario")
	if last, ok := e.Snapshot.LastEvent(); ok {
		suggestions = append(suggestions, "Examine the last event: "+last.EventType)
	}
	return suggestions
}

// ToJSON returns a compact JSON summary of the error.
func (e *SnapshotError) ToJSON() string {
	var b strings.Builder
	b.WriteString("{\n")
	b.WriteString(`  "type": "EventSnapshotException",` + "\n")
	b.WriteString(`  "message": "` + jsonEscape(e.Message) + `",` + "\n")
	b.WriteString(`  "snapshotId": "` + jsonEscape(e.Snapshot.SnapshotID) + `",` + "\n")
	fmt.Fprintf(&b, `  "eventCount": %d,`+"\n", e.Snapshot.EventCount())
	b.WriteString(`  "capturedAt": "` + formatInstant(e.Context.CapturedAt) + `",` + "\n")
	fmt.Fprintf(&b, `  "reproducible": %t,`+"\n", e.IsLikelyReproducible())
	b.WriteString(`  "summary": "` + jsonEscape(e.ErrorSummary()) + `"` + "\n")
	b.WriteString("}")
	return b.String()
}

// Priority returns the triage priority for this error's classification.
func (e *SnapshotError) Priority() BugPriority {
	return DeterminePriority(e.Classification)
}

// Labels returns issue-tracker labels for this error.
func (e *SnapshotError) Labels() []string {
	return []string{"bug", "auto-generated", e.Classification.Label(), "has-reproduction"}
}

// classifyReproduction decides how a failure should be reproduced.
func classifyReproduction(cause error, snapshot *EventSnapshot) ErrorClassification {
	if cause != nil {
		if strings.Contains(strings.ToLower(cause.Error()), "hot-swap") || KindOf(cause) == KindHotSwap {
			return ClassificationHotSwapFailure
		}
		switch KindOf(cause) {
		case KindClassCast:
			return ClassificationTypeMismatch
		case KindNullReference:
			return ClassificationNullReference
		case KindIllegalState:
			return ClassificationInvalidState
		}
	}
	for _, ev := range snapshot.Events {
		if strings.Contains(ev.EventType, "FileChanged") {
			return ClassificationFileMonitoringError
		}
	}
	return ClassificationUnknown
}

func enrichMetadata(cause error, errCtx *ErrorContext) map[string]any {
	meta := map[string]any{
		"thread_name":       errCtx.ThreadName,
		"timestamp":         formatInstant(errCtx.CapturedAt),
		"memory_usage_high": errCtx.IsHighMemoryUsage(),
	}
	if cause != nil {
		msg := errorMessage(cause)
		if msg == "" {
			msg = "No message"
		}
		meta["error_class"] = ClassName(cause)
		meta["error_message"] = msg
	}
	return meta
}
