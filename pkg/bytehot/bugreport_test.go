package bytehot

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReportGenerator(opts ...ReportOption) *BugReportGenerator {
	opts = append([]ReportOption{
		WithReportClock(fixedClock),
		WithReportIDs(func() string { return "abcdef12-0000-4000-8000-000000000000" }),
	}, opts...)
	return NewBugReportGenerator(opts...)
}

func TestBugReport_OutOfMemoryScenario(t *testing.T) {
	gen := newTestReportGenerator()
	oom := NewFailure("java.lang.OutOfMemoryError", "Java heap space")

	withProps := testSnapshotError(oom, makeEvents(5), map[string]string{"java.version": "21"})
	withoutProps := testSnapshotError(oom, makeEvents(5), map[string]string{})

	assert.Equal(t, BugSeverityCritical, gen.AnalyzeSeverity(withProps))
	assert.Equal(t, BugCategoryMemoryLeak, gen.AnalyzeCategory(withProps))
	assert.InDelta(t, 0.7, gen.ReproducibilityScore(withProps), 1e-9)
	assert.InDelta(t, 0.5, gen.ReproducibilityScore(withoutProps), 1e-9)
}

func TestBugReport_Severity(t *testing.T) {
	gen := newTestReportGenerator()

	tests := []struct {
		name     string
		cause    error
		highHeap bool
		want     BugSeverity
	}{
		{"stack overflow", NewFailure("java.lang.StackOverflowError", ""), false, BugSeverityCritical},
		{"high memory", ErrIllegalArgument, true, BugSeverityHigh},
		{"security", ErrSecurity, false, BugSeverityHigh},
		{"validation", ErrIllegalState, false, BugSeverityMedium},
		{"generic", NewFailure("java.io.IOException", "x"), false, BugSeverityMedium},
		{"no cause", nil, false, BugSeverityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := testErrorContext()
			if tt.highHeap {
				ec.Memory.UsedHeap = 990
			}
			e := NewSnapshotError("x", testSnapshot(nil, nil), ec, tt.cause)
			assert.Equal(t, tt.want, gen.AnalyzeSeverity(e))
		})
	}
}

func TestBugReport_Category(t *testing.T) {
	gen := newTestReportGenerator()

	tests := []struct {
		cause error
		want  BugCategory
	}{
		{NewFailure("java.lang.RuntimeException", "Metaspace memory exhausted"), BugCategoryMemoryLeak},
		{ErrSecurity, BugCategorySecurityVulnerability},
		{ErrIllegalArgument, BugCategoryValidationError},
		{NewFailure("java.lang.RuntimeException", "Deadlock on class LOCK"), BugCategoryConcurrentAccess},
		{NewFailure("java.lang.RuntimeException", "missing property bytehot.watch"), BugCategoryConfigurationError},
		{NewFailure("java.lang.RuntimeException", "Connection reset"), BugCategoryNetworkError},
		{NewFailure("java.lang.RuntimeException", "Timeout waiting for redefinition"), BugCategoryPerformanceIssue},
		{NewFailure("java.lang.RuntimeException", "something odd"), BugCategoryUnknown},
		{nil, BugCategoryUnknown},
	}
	for _, tt := range tests {
		e := NewSnapshotError("x", testSnapshot(nil, nil), testErrorContext(), tt.cause)
		assert.Equal(t, tt.want, gen.AnalyzeCategory(e), "%v", tt.cause)
	}
}

func TestBugReport_ReproducibilityWithChain(t *testing.T) {
	gen := newTestReportGenerator()
	e := testSnapshotError(ErrIllegalArgument, makeEvents(3), map[string]string{"java.version": "21"})
	chain := CausalChainFromRootCause(e.Snapshot.Events[0], 0.5)
	e.Snapshot.CausalChain = &chain

	// 0.4 events + 0.1 chain + 0.2 properties + 0.2 deterministic
	assert.InDelta(t, 0.9, gen.ReproducibilityScore(e), 1e-9)
}

func TestBugReport_GenerateIsDeterministic(t *testing.T) {
	gen := NewBugReportGenerator()
	e := testSnapshotError(ErrIllegalState, makeEvents(4), map[string]string{"java.version": "21"})

	a := gen.Generate(context.Background(), e)
	b := gen.Generate(context.Background(), e)

	assert.NotEqual(t, a.ReportID, b.ReportID)
	assert.Equal(t, a.Severity, b.Severity)
	assert.Equal(t, a.Category, b.Category)
	assert.Equal(t, a.ReproducibilityScore, b.ReproducibilityScore)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
}

func TestBugReport_Contents(t *testing.T) {
	gen := newTestReportGenerator()
	events := makeEvents(2, "ClassFileChanged", "HotSwapFailed")
	snapshot := testSnapshot(events, map[string]string{"java.version": "21"})
	snapshot.PerformanceMetrics = map[string]any{"total_memory": int64(1000), "free_memory": int64(250)}
	chain := CausalChainFromRootCause(events[1], 0.82)
	snapshot.CausalChain = &chain

	e := WrapSnapshotError(NewFailure("java.lang.NullPointerException", "target was null"), snapshot, testErrorContext())
	report := gen.Generate(context.Background(), e)

	assert.Equal(t, "This error occurred in the context of main thread with 2 related events. "+
		"Causal analysis indicates: Root cause identified: HotSwapFailed "+
		"Memory usage at error time: 75.0%. "+
		"This error appears to be reproducible based on the event context captured.", report.Analysis)

	assert.Equal(t, []string{
		"Set up environment matching the reproduction requirements (see Environment section)",
		"Load the EventSnapshot with ID: 0123456789abcdef-snapshot",
		"Replay the 2 events leading to the error",
		"Pay special attention to: Root cause identified: HotSwapFailed",
		"Monitor memory usage - error occurred at 75.0% memory usage",
		"Execute the failing operation in thread: main",
		"Verify that the same exception type is thrown: NullPointerException",
	}, report.ReproductionSteps)

	assert.Equal(t, []string{
		"Review the error context and event history for patterns",
		"Add comprehensive logging around the failure point",
		"Add null checks before accessing object methods or fields",
		"Consider using Optional<T> for nullable values",
	}, report.Recommendations)

	env := report.ReproductionEnvironment
	assert.Equal(t, "21", env["java.version"])
	assert.Equal(t, "main", env["thread.name"])
	assert.Equal(t, "75.0%", env["memory.required"])
	assert.Equal(t, "java.lang.NullPointerException", env["error_class"])
	assert.Equal(t, "false", env["memory_usage_high"])

	require.Len(t, report.RelatedIssues, 4)
	assert.Equal(t, "Search for similar NullPointerException exceptions in bug tracking system", report.RelatedIssues[0])
	assert.Equal(t, "Look for issues related to: Root cause identified: HotSwapFailed", report.RelatedIssues[1])
	assert.Equal(t, "Check for similar patterns in event snapshot ID: 01234567*", report.RelatedIssues[2])
	assert.Equal(t, "Group with reports sharing fingerprint: "+report.Fingerprint, report.RelatedIssues[3])

	assert.True(t, report.HasTestCase())
	assert.Contains(t, report.ReproductionTestCase, "void shouldReproduceBug_01234567() {\n")
	assert.Contains(t, report.ReproductionTestCase, "assertThrows(NullPointerException.class, () -> {\n")
}

func TestBugReport_CriticalRecommendations(t *testing.T) {
	gen := newTestReportGenerator()
	e := testSnapshotError(NewFailure("java.lang.OutOfMemoryError", "Java heap space"), makeEvents(1), nil)

	report := gen.Generate(context.Background(), e)

	assert.Equal(t, []string{
		"Review memory allocation patterns and ensure proper cleanup",
		"Use memory profiling tools to identify leak sources",
		"Consider implementing memory monitoring and alerts",
		"URGENT: This is a critical issue that requires immediate attention",
		"Consider implementing circuit breaker patterns to prevent cascading failures",
		"Review the captured event sequence for patterns",
		"Use the reproduction test case to debug locally",
	}, report.Recommendations)
}

func TestBugReport_ToJSON(t *testing.T) {
	gen := newTestReportGenerator()
	cause := NewFailure("java.lang.IllegalStateException", "line1\nline2\t\"quoted\" back\\slash\r")
	e := testSnapshotError(cause, makeEvents(2), map[string]string{"java.version": "21", "os.name": "Linux"})

	report := gen.Generate(context.Background(), e)
	out := gen.ToJSON(report)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded), out)

	assert.Equal(t, report.ReportID, decoded["reportId"])
	assert.Contains(t, out, `"reportId": "abcdef12-0000-4000-8000-000000000000"`)
	assert.Equal(t, "2025-06-01T12:00:00Z", decoded["generatedAt"])
	assert.Equal(t, "MEDIUM", decoded["severity"])
	assert.Equal(t, "VALIDATION_ERROR", decoded["category"])
	assert.Equal(t, report.ReproducibilityScore, decoded["reproducibilityScore"])
	assert.Equal(t, report.Analysis, decoded["analysis"])
	assert.Equal(t, report.ReproductionTestCase, decoded["reproductionTestCase"])

	details := decoded["exceptionDetails"].(map[string]any)
	assert.Equal(t, "EventSnapshotException", details["type"])
	assert.Equal(t, "Event-driven error: line1\nline2\t\"quoted\" back\\slash\r", details["message"])
	assert.Equal(t, "0123456789abcdef-snapshot", details["snapshotId"])
	assert.Equal(t, float64(2), details["eventCount"])

	assertInOrder(t, out,
		`"reportId"`, `"generatedAt"`, `"severity"`, `"category"`, `"reproducibilityScore"`,
		`"analysis"`, `"recommendations"`, `"reproductionSteps"`, `"reproductionEnvironment"`,
		`"reproductionTestCase"`, `"exceptionDetails"`,
	)
	assertInOrder(t, out, `"java.version": "21"`, `"os.name": "Linux"`, `"thread.name": "main"`)
}

func TestBugReport_ToJSONOmitsMissingTestCase(t *testing.T) {
	gen := newTestReportGenerator(WithoutTestCase())
	report := gen.Generate(context.Background(), testSnapshotError(ErrIllegalState, nil, nil))

	out := report.ToJSON()
	assert.NotContains(t, out, "reproductionTestCase")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
}

func TestBugReport_ToMarkdown(t *testing.T) {
	gen := newTestReportGenerator()
	e := testSnapshotError(ErrIllegalArgument, makeEvents(2), map[string]string{"java.version": "21"})
	report := gen.Generate(context.Background(), e)

	md := gen.ToMarkdown(report)

	assertInOrder(t, md,
		"# Bug Report: abcdef12\n\n",
		"**Generated:** 2025-06-01T12:00:00Z  \n",
		"**Severity:** MEDIUM - Medium - Partial functionality affected  \n",
		"**Category:** VALIDATION_ERROR - Validation - Input or state validation failure  \n",
		"**Reproducibility:** 80.0%  \n\n",
		"## Analysis\n\n",
		"## Exception Details\n\n- **Type:** EventSnapshotException\n",
		"- **Snapshot ID:** `0123456789abcdef-snapshot`\n",
		"- **Event Count:** 2\n\n",
		"## Reproduction Steps\n\n1. Set up environment",
		"## Environment Requirements\n\n```\n",
		"java.version=21\n",
		"## Recommendations\n\n- Improve input validation and error handling\n",
		"## Reproduction Test Case\n\n```java\n@Test\n",
		"## Debugging Information\n\n",
		"see the attached EventSnapshot with ID `0123456789abcdef-snapshot`.\n\n",
		"```\n=== ByteHot Event-Driven Error Report ===",
		"=== End Report ===\n```\n",
	)
}

func TestBugReport_ToMarkdownWithoutTestCase(t *testing.T) {
	gen := newTestReportGenerator(WithoutTestCase())
	md := gen.Generate(context.Background(), testSnapshotError(ErrIllegalState, nil, nil)).ToMarkdown()

	assert.NotContains(t, md, "## Reproduction Test Case")
	assert.Contains(t, md, "## Debugging Information")
}

func TestBugReport_CloneIsDeep(t *testing.T) {
	gen := newTestReportGenerator()
	original := gen.Generate(context.Background(), testSnapshotError(ErrIllegalState, makeEvents(1), nil))
	clone := original.Clone()

	clone.Recommendations[0] = "changed"
	clone.ReproductionEnvironment["thread.name"] = "changed"

	assert.NotEqual(t, "changed", original.Recommendations[0])
	assert.Equal(t, "main", original.ReproductionEnvironment["thread.name"])
}

func TestJSONHelpers(t *testing.T) {
	assert.Equal(t, `a\\b\"c\nd\re\tf`, jsonEscape("a\\b\"c\nd\re\tf"))
	assert.Equal(t, `bell\u0007`, jsonEscape("bell\a"))
	assert.Equal(t, "0.5", formatJSONFloat(0.5))
	assert.Equal(t, "1.0", formatJSONFloat(1))
	assert.Equal(t, "0.0", formatJSONFloat(0))
	assert.True(t, strings.HasPrefix(formatJSONFloat(0.7000000000000001), "0.7"))
}
