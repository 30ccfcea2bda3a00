// bugreport.go turns a SnapshotError into a structured bug report.

package bytehot

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// exceptionTypeName is the type reported in exception details.
const exceptionTypeName = "EventSnapshotException"

// BugReport is the analysed, reproducible description of one failure.
// Reports are not mutated after generation; use Clone to derive variants.
type BugReport struct {
	ReportID    string
	GeneratedAt time.Time

	// Source is the error the report was generated from. It is not serialized.
	Source *SnapshotError

	Severity          BugSeverity
	Category          BugCategory
	Analysis          string
	Recommendations   []string
	ReproductionSteps []string

	// ReproductionTestCase is empty when no test case was generated.
	ReproductionTestCase string

	ReproductionEnvironment map[string]string
	ReproducibilityScore    float64
	RelatedIssues           []string

	// Fingerprint groups reports of the same failure.
	Fingerprint string

	ExceptionMessage string
	SnapshotID       string
	EventCount       int

	// DebuggingReport is the plain-text report embedded in Markdown output.
	DebuggingReport string
}

// HasTestCase reports whether a reproduction test case was generated.
func (r *BugReport) HasTestCase() bool {
	return r.ReproductionTestCase != ""
}

// Clone returns a deep copy of the report.
func (r *BugReport) Clone() *BugReport {
	clone := *r
	clone.Recommendations = slices.Clone(r.Recommendations)
	clone.ReproductionSteps = slices.Clone(r.ReproductionSteps)
	clone.ReproductionEnvironment = maps.Clone(r.ReproductionEnvironment)
	clone.RelatedIssues = slices.Clone(r.RelatedIssues)
	return &clone
}

// ReportOption configures a BugReportGenerator.
type ReportOption func(*BugReportGenerator)

// WithReportClock overrides the source of generation timestamps.
func WithReportClock(clock func() time.Time) ReportOption {
	return func(g *BugReportGenerator) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithReportIDs overrides the report id generator.
func WithReportIDs(next func() string) ReportOption {
	return func(g *BugReportGenerator) {
		if next != nil {
			g.nextID = next
		}
	}
}

// WithoutTestCase disables the embedded reproduction test case.
func WithoutTestCase() ReportOption {
	return func(g *BugReportGenerator) {
		g.includeTestCase = false
	}
}

// WithReportTracer sets the tracer that wraps report generation.
func WithReportTracer(tracer trace.Tracer) ReportOption {
	return func(g *BugReportGenerator) {
		if tracer != nil {
			g.tracer = tracer
		}
	}
}

// BugReportGenerator derives bug reports from snapshot errors. It holds no
// mutable state and is safe for concurrent use.
type BugReportGenerator struct {
	clock           func() time.Time
	nextID          func() string
	includeTestCase bool
	tracer          trace.Tracer
}

// NewBugReportGenerator creates a generator with the given options.
func NewBugReportGenerator(opts ...ReportOption) *BugReportGenerator {
	g := &BugReportGenerator{
		clock:           time.Now,
		nextID:          uuid.NewString,
		includeTestCase: true,
		tracer:          otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds the report for e. Apart from the report id and timestamp
// the result depends only on e.
func (g *BugReportGenerator) Generate(ctx context.Context, e *SnapshotError) *BugReport {
	_, span := g.tracer.Start(ctx, "bytehot.bugreport.generate")
	defer span.End()

	severity := g.AnalyzeSeverity(e)
	category := g.AnalyzeCategory(e)

	report := &BugReport{
		ReportID:                g.nextID(),
		GeneratedAt:             g.clock(),
		Source:                  e,
		Severity:                severity,
		Category:                category,
		Analysis:                g.analysis(e),
		Recommendations:         g.recommendations(e, category, severity),
		ReproductionSteps:       g.reproductionSteps(e),
		ReproductionEnvironment: g.reproductionEnvironment(e),
		ReproducibilityScore:    g.ReproducibilityScore(e),
		RelatedIssues:           g.relatedIssues(e),
		Fingerprint:             Fingerprint(e),
		ExceptionMessage:        e.Message,
		SnapshotID:              e.Snapshot.SnapshotID,
		EventCount:              e.Snapshot.EventCount(),
		DebuggingReport:         e.DebuggingReport(),
	}
	if g.includeTestCase {
		report.ReproductionTestCase = g.reproductionTestCase(e)
	}

	span.SetAttributes(
		attribute.String("bytehot.report.id", report.ReportID),
		attribute.String("bytehot.report.severity", string(severity)),
		attribute.String("bytehot.report.category", string(category)),
	)
	return report
}

// AnalyzeSeverity ranks e, defaulting to MEDIUM.
func (g *BugReportGenerator) AnalyzeSeverity(e *SnapshotError) BugSeverity {
	kind := KindOf(e.Cause)
	if e.Cause != nil && (kind == KindOutOfMemory || kind == KindStackOverflow) {
		return BugSeverityCritical
	}
	if high, ok := e.DebugMetadata["memory_usage_high"].(bool); ok && high {
		return BugSeverityHigh
	}
	if e.Cause != nil && kind == KindSecurity {
		return BugSeverityHigh
	}
	return BugSeverityMedium
}

// AnalyzeCategory groups e by kind and message keywords, defaulting to UNKNOWN.
func (g *BugReportGenerator) AnalyzeCategory(e *SnapshotError) BugCategory {
	if e.Cause == nil {
		return BugCategoryUnknown
	}
	kind := KindOf(e.Cause)
	msg := strings.ToLower(errorMessage(e.Cause))

	switch {
	case kind == KindOutOfMemory || strings.Contains(msg, "memory"):
		return BugCategoryMemoryLeak
	case kind == KindSecurity:
		return BugCategorySecurityVulnerability
	case kind == KindIllegalArgument || kind == KindIllegalState:
		return BugCategoryValidationError
	case containsAny(msg, "concurrent", "thread", "lock"):
		return BugCategoryConcurrentAccess
	case containsAny(msg, "config", "property"):
		return BugCategoryConfigurationError
	case containsAny(msg, "network", "connection"):
		return BugCategoryNetworkError
	case containsAny(msg, "performance", "timeout"):
		return BugCategoryPerformanceIssue
	}
	return BugCategoryUnknown
}

// ReproducibilityScore weighs captured events, causal confidence, system
// properties and error determinism into [0,1].
func (g *BugReportGenerator) ReproducibilityScore(e *SnapshotError) float64 {
	score := 0.0
	if e.Snapshot.EventCount() > 0 {
		score += 0.4
	}
	if chain := e.CausalChain(); chain != nil {
		score += 0.2 * chain.Confidence
	}
	if len(e.Snapshot.SystemProperties) > 0 {
		score += 0.2
	}
	if e.Cause != nil {
		switch KindOf(e.Cause) {
		case KindIllegalArgument, KindIllegalState:
			score += 0.2
		case KindOutOfMemory:
			score += 0.1
		}
	}
	return min(1.0, score)
}

func (g *BugReportGenerator) analysis(e *SnapshotError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This error occurred in the context of %s thread with %d related events. ",
		e.Snapshot.ThreadName, e.Snapshot.EventCount())

	if chain := e.CausalChain(); chain != nil {
		b.WriteString("Causal analysis indicates: " + chain.Description() + " ")
	}
	if usage, ok := metricsMemoryUsage(e.Snapshot.PerformanceMetrics); ok {
		fmt.Fprintf(&b, "Memory usage at error time: %.1f%%. ", usage)
	}

	if e.Snapshot.EventCount() > 0 && e.Classification != ClassificationUnknown {
		b.WriteString("This error appears to be reproducible based on the event context captured.")
	} else {
		b.WriteString("This error may be difficult to reproduce due to limited event context or timing-dependent conditions.")
	}
	return b.String()
}

func (g *BugReportGenerator) recommendations(e *SnapshotError, category BugCategory, severity BugSeverity) []string {
	var recs []string

	switch category {
	case BugCategoryMemoryLeak:
		recs = append(recs,
			"Review memory allocation patterns and ensure proper cleanup",
			"Use memory profiling tools to identify leak sources",
			"Consider implementing memory monitoring and alerts")
	case BugCategoryConcurrentAccess:
		recs = append(recs,
			"Review thread synchronization and locking mechanisms",
			"Consider using concurrent data structures",
			"Add thread-safety tests to prevent regression")
	case BugCategoryValidationError:
		recs = append(recs,
			"Improve input validation and error handling",
			"Add comprehensive unit tests for edge cases",
			"Consider using defensive programming techniques")
	case BugCategoryConfigurationError:
		recs = append(recs,
			"Validate configuration values at startup",
			"Provide clear error messages for configuration issues",
			"Document required configuration parameters")
	default:
		recs = append(recs,
			"Review the error context and event history for patterns",
			"Add comprehensive logging around the failure point")
	}

	if severity == BugSeverityCritical {
		recs = append(recs,
			"URGENT: This is a critical issue that requires immediate attention",
			"Consider implementing circuit breaker patterns to prevent cascading failures")
	}

	switch e.Classification {
	case ClassificationHotSwapFailure:
		recs = append(recs,
			"Verify that the JVM supports the requested hot-swap operation",
			"Check for structural changes that may not be supported")
	case ClassificationNullReference:
		recs = append(recs,
			"Add null checks before accessing object methods or fields",
			"Consider using Optional<T> for nullable values")
	case ClassificationTypeMismatch:
		recs = append(recs,
			"Verify type compatibility in the hot-swap operation",
			"Check generic type parameters and inheritance hierarchy")
	default:
		recs = append(recs,
			"Review the captured event sequence for patterns",
			"Use the reproduction test case to debug locally")
	}
	return recs
}

func (g *BugReportGenerator) reproductionSteps(e *SnapshotError) []string {
	steps := []string{
		"Set up environment matching the reproduction requirements (see Environment section)",
		"Load the EventSnapshot with ID: " + e.Snapshot.SnapshotID,
		fmt.Sprintf("Replay the %d events leading to the error", e.Snapshot.EventCount()),
	}
	if chain := e.CausalChain(); chain != nil {
		steps = append(steps, "Pay special attention to: "+chain.Description())
	}
	if usage, ok := metricsMemoryUsage(e.Snapshot.PerformanceMetrics); ok {
		steps = append(steps, fmt.Sprintf("Monitor memory usage - error occurred at %.1f%% memory usage", usage))
	}
	steps = append(steps,
		"Execute the failing operation in thread: "+e.Snapshot.ThreadName,
		"Verify that the same exception type is thrown: "+e.OriginalTypeName())
	return steps
}

func (g *BugReportGenerator) reproductionTestCase(e *SnapshotError) string {
	id := e.Snapshot.SnapshotID
	simple := e.OriginalTypeName()

	var b strings.Builder
	b.WriteString("@Test\n")
	b.WriteString("void shouldReproduceBug_" + shortID(id) + "() {\n")
	b.WriteString("    // Reproduction test for bug report: " + id + "\n")
	b.WriteString("    // Original error: " + simple + "\n")
	b.WriteString("    \n")
	b.WriteString("    // Load event snapshot\n")
	b.WriteString("    EventSnapshot snapshot = loadEventSnapshot(\"" + id + "\");\n")
	b.WriteString("    \n")
	b.WriteString("    // Replay events leading to error\n")
	b.WriteString("    for (VersionedDomainEvent event : snapshot.getEventHistory()) {\n")
	b.WriteString("        // Replay event: event.getEventType()\n")
	b.WriteString("        replayEvent(event);\n")
	b.WriteString("    }\n")
	b.WriteString("    \n")
	b.WriteString("    // Execute the operation that caused the error\n")
	b.WriteString("    assertThrows(" + simple + ".class, () -> {\n")
	b.WriteString("        // Add the specific operation that triggered the error\n")
	b.WriteString("        executeFailingOperation();\n")
	b.WriteString("    });\n")
	b.WriteString("}\n")
	return b.String()
}

func (g *BugReportGenerator) reproductionEnvironment(e *SnapshotError) map[string]string {
	env := make(map[string]string)
	maps.Copy(env, e.Snapshot.SystemProperties)
	maps.Copy(env, e.Snapshot.EnvironmentContext)
	for k, v := range e.DebugMetadata {
		env[k] = fmt.Sprint(v)
	}
	env["thread.name"] = e.Snapshot.ThreadName
	if usage, ok := metricsMemoryUsage(e.Snapshot.PerformanceMetrics); ok {
		env["memory.required"] = fmt.Sprintf("%.1f%%", usage)
	}
	return env
}

func (g *BugReportGenerator) relatedIssues(e *SnapshotError) []string {
	issues := []string{"Search for similar " + e.OriginalTypeName() + " exceptions in bug tracking system"}
	if chain := e.CausalChain(); chain != nil {
		issues = append(issues, "Look for issues related to: "+chain.Description())
	}
	issues = append(issues,
		"Check for similar patterns in event snapshot ID: "+shortID(e.Snapshot.SnapshotID)+"*",
		"Group with reports sharing fingerprint: "+Fingerprint(e))
	return issues
}

// metricsMemoryUsage returns heap usage in percent from performance metrics.
func metricsMemoryUsage(metrics map[string]any) (float64, bool) {
	total, ok := toFloat(metrics["total_memory"])
	if !ok || total <= 0 {
		return 0, false
	}
	free, ok := toFloat(metrics["free_memory"])
	if !ok || free < 0 {
		return 0, false
	}
	return (1.0 - free/total) * 100, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
