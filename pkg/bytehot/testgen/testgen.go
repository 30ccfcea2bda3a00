// Package testgen turns a captured failure into Java test sources that
// reproduce it.
//
// Three target styles are supported: JUnit 5, TestNG and the ByteHot
// event-driven harness, which replays the captured event history before
// triggering the failure. The generated text is a stable format; tooling
// downstream parses class and method names out of it.
package testgen

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

// Framework selects the template used for generated sources.
type Framework string

const (
	FrameworkJUnit5      Framework = "JUNIT5"
	FrameworkTestNG      Framework = "TESTNG"
	FrameworkEventDriven Framework = "BYTEHOT_EVENT_DRIVEN"
)

// DisplayName returns the human-readable framework name.
func (f Framework) DisplayName() string {
	switch f {
	case FrameworkJUnit5:
		return "JUnit 5"
	case FrameworkTestNG:
		return "TestNG"
	case FrameworkEventDriven:
		return "ByteHot Event-Driven"
	}
	return string(f)
}

// ParseFramework resolves a framework name, case-insensitively.
func ParseFramework(name string) (Framework, error) {
	f := Framework(strings.ToUpper(strings.TrimSpace(name)))
	switch f {
	case FrameworkJUnit5, FrameworkTestNG, FrameworkEventDriven:
		return f, nil
	}
	return "", errors.Newf("unknown test framework %q", name)
}

// Config controls test generation.
type Config struct {
	Framework   Framework
	PackageName string

	// IncludeFullEventHistory emits the givenEvents block in event-driven tests.
	IncludeFullEventHistory bool

	IncludeSystemStateAssertions bool

	// MaxEventsInTest bounds the replayed events.
	MaxEventsInTest int
}

// DefaultConfig returns the event-driven configuration.
func DefaultConfig() Config {
	return Config{
		Framework:                    FrameworkEventDriven,
		PackageName:                  "org.acmsl.bytehot.generated.tests",
		IncludeFullEventHistory:      true,
		IncludeSystemStateAssertions: true,
		MaxEventsInTest:              50,
	}
}

// TestCase is one generated test.
type TestCase struct {
	ClassName   string
	MethodName  string
	Source      string
	Description string
	Imports     []string
	Config      Config
}

// Generator produces reproduction tests. It is stateless and safe for
// concurrent use.
type Generator struct {
	cfg Config
}

// New creates a Generator. An empty framework or package name falls back
// to the defaults.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.Framework == "" {
		cfg.Framework = def.Framework
	}
	if cfg.PackageName == "" {
		cfg.PackageName = def.PackageName
	}
	if cfg.MaxEventsInTest < 0 {
		cfg.MaxEventsInTest = 0
	}
	return &Generator{cfg: cfg}
}

// Config returns the configuration in use.
func (g *Generator) Config() Config {
	return g.cfg
}

// GenerateTestCase builds the full reproduction test for e.
func (g *Generator) GenerateTestCase(e *bytehot.SnapshotError) TestCase {
	className := ClassName(e)
	methodName := MethodName(e)

	var source string
	switch g.cfg.Framework {
	case FrameworkJUnit5:
		source = g.junit5Source(e, className, methodName)
	case FrameworkTestNG:
		source = g.testNGSource(e, className, methodName)
	default:
		source = g.eventDrivenSource(e, className, methodName)
	}

	return TestCase{
		ClassName:   className,
		MethodName:  methodName,
		Source:      source,
		Description: description(e),
		Imports:     g.imports(),
		Config:      g.cfg,
	}
}

// GenerateMultipleTestCases returns the full, minimal and system-state
// variants, in that order.
func (g *Generator) GenerateMultipleTestCases(e *bytehot.SnapshotError) []TestCase {
	return []TestCase{
		g.GenerateTestCase(e),
		g.minimalTestCase(e),
		g.systemStateTestCase(e),
	}
}

// ClassName returns Bug<first 8 hex of the error id><cause>ReproductionTest.
func ClassName(e *bytehot.SnapshotError) string {
	id := strings.ReplaceAll(e.ID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return "Bug" + id + e.OriginalTypeName() + "ReproductionTest"
}

// MethodName returns reproduceBug_<classification>.
func MethodName(e *bytehot.SnapshotError) string {
	return "reproduceBug_" + strings.ToLower(string(e.Classification))
}

func (g *Generator) minimalTestCase(e *bytehot.SnapshotError) TestCase {
	simple := e.OriginalTypeName()

	var b strings.Builder
	b.WriteString("// Minimal reproduction test\n")
	b.WriteString("@Test\n")
	b.WriteString("void reproduceMinimalBug() {\n")
	b.WriteString("    assertThrows(" + simple + ".class, () -> {\n")
	b.WriteString("        throw new " + simple + "(\"" + originalMessage(e) + "\");\n")
	b.WriteString("    });\n")
	b.WriteString("}\n")

	return TestCase{
		ClassName:   ClassName(e) + "Minimal",
		MethodName:  "reproduceMinimalBug",
		Source:      b.String(),
		Description: "Minimal reproduction test with essential elements only",
		Imports:     g.imports(),
		Config:      g.cfg,
	}
}

func (g *Generator) systemStateTestCase(e *bytehot.SnapshotError) TestCase {
	var b strings.Builder
	b.WriteString("@Test\n")
	b.WriteString("void verifySystemState() {\n")
	b.WriteString("    // Verify system state conditions\n")
	if g.cfg.IncludeSystemStateAssertions {
		props := e.Snapshot.SystemProperties
		for _, k := range sortedKeys(props) {
			if strings.HasPrefix(k, "java.") {
				b.WriteString("    assertEquals(\"" + safeString(props[k]) + "\", System.getProperty(\"" + k + "\"));\n")
			}
		}
	}
	b.WriteString("}\n")

	return TestCase{
		ClassName:   ClassName(e) + "SystemState",
		MethodName:  "verifySystemState",
		Source:      b.String(),
		Description: "Verifies system state conditions that led to the bug",
		Imports:     g.imports(),
		Config:      g.cfg,
	}
}

func (g *Generator) eventDrivenSource(e *bytehot.SnapshotError, className, methodName string) string {
	display := e.Classification.DisplayName()
	simple := e.OriginalTypeName()
	msg := originalMessage(e)

	var b strings.Builder
	b.WriteString("package " + g.cfg.PackageName + ";\n\n")
	for _, imp := range g.imports() {
		b.WriteString("import " + imp + ";\n")
	}
	b.WriteString("\n")

	b.WriteString("/**\n")
	b.WriteString(" * Auto-generated test case for bug reproduction.\n")
	b.WriteString(" * \n")
	b.WriteString(" * Error ID: " + e.ID + "\n")
	b.WriteString(" * Classification: " + display + "\n")
	b.WriteString(" * Captured At: " + instant(e.CapturedAt) + "\n")
	b.WriteString(" * \n")
	b.WriteString(" * This test reproduces the exact error conditions from production.\n")
	b.WriteString(" */\n")
	b.WriteString("class " + className + " extends EventDrivenTestSupport {\n\n")

	b.WriteString("    @Test\n")
	b.WriteString("    @DisplayName(\"🐛 Reproduce bug: " + display + "\")\n")
	b.WriteString("    void " + methodName + "() {\n")

	b.WriteString("        // Given: Recreate the exact system state from production\n")
	if g.cfg.IncludeFullEventHistory && e.Snapshot.EventCount() > 0 {
		events := e.Snapshot.Events[:min(len(e.Snapshot.Events), g.cfg.MaxEventsInTest)]
		b.WriteString("        givenEvents(\n")
		for i, ev := range events {
			b.WriteString("            " + formatEvent(ev))
			if i < len(events)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString("        );\n\n")
	}

	b.WriteString("        // And: System environment matches production\n")
	env := e.Snapshot.EnvironmentContext
	for _, k := range sortedKeys(env) {
		if k == "fallback" || k == "error" {
			continue
		}
		b.WriteString("        assertEnvironmentProperty(\"" + safeString(k) + "\", \"" + safeString(env[k]) + "\");\n")
	}
	b.WriteString("\n")

	b.WriteString("        // When: The same operation is performed\n")
	b.WriteString("        assertThrows(" + simple + ".class, () -> {\n")
	b.WriteString("            // Trigger the exact same operation that caused the error\n")
	b.WriteString("            reproduceErrorCondition();\n")
	b.WriteString("        });\n\n")

	b.WriteString("        // Then: Verify the error matches the production bug\n")
	b.WriteString("        // Error classification: " + display + "\n")
	b.WriteString("        // Original message: " + msg + "\n")
	b.WriteString("    }\n\n")

	b.WriteString("    private void reproduceErrorCondition() {\n")
	b.WriteString("        // TODO: Implement the specific operation that triggered the error\n")
	b.WriteString("        // Based on the event history and error context\n")
	b.WriteString("        throw new " + simple + "(\"" + msg + "\");\n")
	b.WriteString("    }\n")
	b.WriteString("}\n")
	return b.String()
}

func (g *Generator) junit5Source(e *bytehot.SnapshotError, className, methodName string) string {
	simple := e.OriginalTypeName()

	var b strings.Builder
	b.WriteString("package " + g.cfg.PackageName + ";\n\n")
	b.WriteString("import org.junit.jupiter.api.Test;\n")
	b.WriteString("import org.junit.jupiter.api.DisplayName;\n")
	b.WriteString("import static org.junit.jupiter.api.Assertions.*;\n\n")
	b.WriteString("/**\n")
	b.WriteString(" * Auto-generated JUnit 5 test for bug reproduction.\n")
	b.WriteString(" * Error ID: " + e.ID + "\n")
	b.WriteString(" */\n")
	b.WriteString("class " + className + " {\n\n")
	b.WriteString("    @Test\n")
	b.WriteString("    @DisplayName(\"Reproduce bug: " + e.Classification.DisplayName() + "\")\n")
	b.WriteString("    void " + methodName + "() {\n")
	b.WriteString("        // Given: Bug reproduction context\n")
	b.WriteString("        String errorId = \"" + e.ID + "\";\n")
	b.WriteString("        String errorMessage = \"" + originalMessage(e) + "\";\n")
	b.WriteString("        \n")
	b.WriteString("        // When & Then: Reproduce the error\n")
	b.WriteString("        assertThrows(" + simple + ".class, () -> {\n")
	b.WriteString("            // TODO: Implement reproduction logic\n")
	b.WriteString("            throw new " + simple + "(errorMessage);\n")
	b.WriteString("        });\n")
	b.WriteString("    }\n")
	b.WriteString("}\n")
	return b.String()
}

func (g *Generator) testNGSource(e *bytehot.SnapshotError, className, methodName string) string {
	simple := e.OriginalTypeName()

	var b strings.Builder
	b.WriteString("package " + g.cfg.PackageName + ";\n\n")
	b.WriteString("import org.testng.annotations.Test;\n")
	b.WriteString("import static org.testng.Assert.*;\n\n")
	b.WriteString("/**\n")
	b.WriteString(" * Auto-generated TestNG test for bug reproduction.\n")
	b.WriteString(" * Error ID: " + e.ID + "\n")
	b.WriteString(" */\n")
	b.WriteString("public class " + className + " {\n\n")
	b.WriteString("    @Test(description = \"Reproduce bug: " + e.Classification.DisplayName() + "\")\n")
	b.WriteString("    public void " + methodName + "() {\n")
	b.WriteString("        // Given: Bug reproduction context\n")
	b.WriteString("        String errorId = \"" + e.ID + "\";\n")
	b.WriteString("        \n")
	b.WriteString("        // When & Then: Reproduce the error\n")
	b.WriteString("        expectThrows(" + simple + ".class, () -> {\n")
	b.WriteString("            // TODO: Implement reproduction logic\n")
	b.WriteString("            throw new " + simple + "(\"" + originalMessage(e) + "\");\n")
	b.WriteString("        });\n")
	b.WriteString("    }\n")
	b.WriteString("}\n")
	return b.String()
}

func (g *Generator) imports() []string {
	switch g.cfg.Framework {
	case FrameworkJUnit5:
		return []string{
			"org.junit.jupiter.api.Test",
			"org.junit.jupiter.api.DisplayName",
			"static org.junit.jupiter.api.Assertions.*",
		}
	case FrameworkTestNG:
		return []string{
			"org.testng.annotations.Test",
			"static org.testng.Assert.*",
		}
	default:
		return []string{
			"org.acmsl.bytehot.testing.EventDrivenTestSupport",
			"org.junit.jupiter.api.Test",
			"org.junit.jupiter.api.DisplayName",
			"static org.junit.jupiter.api.Assertions.*",
		}
	}
}

func description(e *bytehot.SnapshotError) string {
	return fmt.Sprintf("Auto-generated test case reproducing %s (Error ID: %s)\n"+
		"Original error: %s\n"+
		"Captured at: %s\n"+
		"Event count: %d",
		e.Classification.DisplayName(), e.ID, e.OriginalTypeName(), instant(e.CapturedAt), e.Snapshot.EventCount())
}

func formatEvent(ev bytehot.Event) string {
	return "// Event: " + ev.EventType + " at " + instant(ev.Timestamp)
}

func originalMessage(e *bytehot.SnapshotError) string {
	msg, ok := e.OriginalMessage()
	if !ok {
		return "No message"
	}
	return safeString(msg)
}

var javaEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// safeString escapes text for a Java string literal.
func safeString(s string) string {
	return javaEscaper.Replace(s)
}

func instant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
