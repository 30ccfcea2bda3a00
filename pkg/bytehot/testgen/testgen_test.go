package testgen

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

var capturedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newSnapshotError(t *testing.T, cause error, eventCount int) *bytehot.SnapshotError {
	t.Helper()

	events := make([]bytehot.Event, eventCount)
	for i := range events {
		events[i] = bytehot.Event{
			EventID:          "evt",
			EventType:        "ClassFileChanged",
			AggregateVersion: int64(i + 1),
			Timestamp:        capturedAt.Add(-time.Duration(eventCount-i) * time.Second),
		}
	}
	snapshot := &bytehot.EventSnapshot{
		SnapshotID: "snap-1",
		CapturedAt: capturedAt,
		Events:     events,
		EnvironmentContext: map[string]string{
			"osName":   "Linux",
			"fallback": "true",
			"error":    "ignored",
			"quoted":   `say "hi"`,
		},
		ThreadName:         "main",
		SystemProperties:   map[string]string{"java.version": "21", "os.name": "Linux", "java.vendor": "Acme"},
		PerformanceMetrics: map[string]any{},
	}

	e := bytehot.WrapSnapshotError(cause, snapshot, nil)
	e.ID = "0a1b2c3d-4e5f-6789-abcd-ef0123456789"
	e.CapturedAt = capturedAt
	return e
}

func TestClassAndMethodNames(t *testing.T) {
	e := newSnapshotError(t, bytehot.NewFailure("java.lang.IllegalStateException", "bad"), 0)

	assert.Equal(t, "Bug0a1b2c3dIllegalStateExceptionReproductionTest", ClassName(e))
	assert.Equal(t, "reproduceBug_invalid_state", MethodName(e))

	selfCaused := bytehot.NewSnapshotError("x", nil, nil, nil)
	selfCaused.ID = "ffffffff-0000"
	assert.Equal(t, "BugffffffffEventSnapshotExceptionReproductionTest", ClassName(selfCaused))
	assert.Equal(t, "reproduceBug_unknown", MethodName(selfCaused))
}

func TestGenerateTestCase_EventDriven(t *testing.T) {
	g := New(DefaultConfig())
	e := newSnapshotError(t, bytehot.NewFailure("java.lang.NullPointerException", `field "x" was null`), 3)

	tc := g.GenerateTestCase(e)

	assert.Equal(t, FrameworkEventDriven, tc.Config.Framework)
	assert.Equal(t, []string{
		"org.acmsl.bytehot.testing.EventDrivenTestSupport",
		"org.junit.jupiter.api.Test",
		"org.junit.jupiter.api.DisplayName",
		"static org.junit.jupiter.api.Assertions.*",
	}, tc.Imports)

	src := tc.Source
	assert.True(t, strings.HasPrefix(src, "package org.acmsl.bytehot.generated.tests;\n\nimport org.acmsl.bytehot.testing.EventDrivenTestSupport;\n"))
	assert.Contains(t, src, " * Error ID: 0a1b2c3d-4e5f-6789-abcd-ef0123456789\n")
	assert.Contains(t, src, " * Classification: Null Reference\n")
	assert.Contains(t, src, " * Captured At: 2025-06-01T12:00:00Z\n")
	assert.Contains(t, src, "class Bug0a1b2c3dNullPointerExceptionReproductionTest extends EventDrivenTestSupport {\n")
	assert.Contains(t, src, "    @DisplayName(\"🐛 Reproduce bug: Null Reference\")\n")
	assert.Contains(t, src, "    void reproduceBug_null_reference() {\n")
	assert.Contains(t, src, "        givenEvents(\n"+
		"            // Event: ClassFileChanged at 2025-06-01T11:59:57Z,\n"+
		"            // Event: ClassFileChanged at 2025-06-01T11:59:58Z,\n"+
		"            // Event: ClassFileChanged at 2025-06-01T11:59:59Z\n"+
		"        );\n")
	assert.Contains(t, src, "        assertEnvironmentProperty(\"osName\", \"Linux\");\n")
	assert.Contains(t, src, `        assertEnvironmentProperty("quoted", "say \"hi\"");`)
	assert.NotContains(t, src, `assertEnvironmentProperty("fallback"`)
	assert.NotContains(t, src, `assertEnvironmentProperty("error"`)
	assert.Contains(t, src, "        assertThrows(NullPointerException.class, () -> {\n")
	assert.Contains(t, src, `        // Original message: field \"x\" was null`)
	assert.Contains(t, src, `        throw new NullPointerException("field \"x\" was null");`)
	assert.True(t, strings.HasSuffix(src, "    }\n}\n"))

	assert.Equal(t, "Auto-generated test case reproducing Null Reference (Error ID: 0a1b2c3d-4e5f-6789-abcd-ef0123456789)\n"+
		"Original error: NullPointerException\n"+
		"Captured at: 2025-06-01T12:00:00Z\n"+
		"Event count: 3", tc.Description)
}

func TestGenerateTestCase_EventDrivenLimitsEvents(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEventsInTest = 2
	e := newSnapshotError(t, bytehot.ErrIllegalState, 5)

	src := New(cfg).GenerateTestCase(e).Source

	assert.Equal(t, 2, strings.Count(src, "// Event: "))
	assert.Contains(t, src, "11:59:55Z,\n            // Event: ClassFileChanged at 2025-06-01T11:59:56Z\n        );")
}

func TestGenerateTestCase_EventDrivenWithoutHistory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IncludeFullEventHistory = false

	src := New(cfg).GenerateTestCase(newSnapshotError(t, bytehot.ErrIllegalState, 3)).Source
	assert.NotContains(t, src, "givenEvents(")

	empty := New(DefaultConfig()).GenerateTestCase(newSnapshotError(t, bytehot.ErrIllegalState, 0)).Source
	assert.NotContains(t, empty, "givenEvents(")
}

func TestGenerateTestCase_JUnit5(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Framework = FrameworkJUnit5
	cfg.PackageName = "com.example.bugs"
	e := newSnapshotError(t, bytehot.NewFailure("java.lang.ClassCastException", "A cannot be cast to B"), 1)

	tc := New(cfg).GenerateTestCase(e)

	assert.Len(t, tc.Imports, 3)
	assert.Equal(t, "package com.example.bugs;\n\n"+
		"import org.junit.jupiter.api.Test;\n"+
		"import org.junit.jupiter.api.DisplayName;\n"+
		"import static org.junit.jupiter.api.Assertions.*;\n\n"+
		"/**\n"+
		" * Auto-generated JUnit 5 test for bug reproduction.\n"+
		" * Error ID: 0a1b2c3d-4e5f-6789-abcd-ef0123456789\n"+
		" */\n"+
		"class Bug0a1b2c3dClassCastExceptionReproductionTest {\n\n"+
		"    @Test\n"+
		"    @DisplayName(\"Reproduce bug: Type Mismatch\")\n"+
		"    void reproduceBug_type_mismatch() {\n"+
		"        // Given: Bug reproduction context\n"+
		"        String errorId = \"0a1b2c3d-4e5f-6789-abcd-ef0123456789\";\n"+
		"        String errorMessage = \"A cannot be cast to B\";\n"+
		"        \n"+
		"        // When & Then: Reproduce the error\n"+
		"        assertThrows(ClassCastException.class, () -> {\n"+
		"            // TODO: Implement reproduction logic\n"+
		"            throw new ClassCastException(errorMessage);\n"+
		"        });\n"+
		"    }\n"+
		"}\n", tc.Source)
}

func TestGenerateTestCase_TestNG(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Framework = FrameworkTestNG
	e := newSnapshotError(t, bytehot.NewFailure("java.lang.IllegalStateException", ""), 1)

	tc := New(cfg).GenerateTestCase(e)

	assert.Equal(t, []string{"org.testng.annotations.Test", "static org.testng.Assert.*"}, tc.Imports)
	assert.Contains(t, tc.Source, "public class Bug0a1b2c3dIllegalStateExceptionReproductionTest {\n")
	assert.Contains(t, tc.Source, "    @Test(description = \"Reproduce bug: Invalid State\")\n")
	assert.Contains(t, tc.Source, "    public void reproduceBug_invalid_state() {\n")
	assert.Contains(t, tc.Source, "        expectThrows(IllegalStateException.class, () -> {\n")
	assert.Contains(t, tc.Source, `throw new IllegalStateException("No message");`)
}

func TestGenerateMultipleTestCases(t *testing.T) {
	g := New(DefaultConfig())
	e := newSnapshotError(t, bytehot.NewFailure("java.lang.IllegalArgumentException", "line1\nline2"), 2)

	cases := g.GenerateMultipleTestCases(e)
	require.Len(t, cases, 3)

	base := "Bug0a1b2c3dIllegalArgumentExceptionReproductionTest"
	assert.Equal(t, base, cases[0].ClassName)

	minimal := cases[1]
	assert.Equal(t, base+"Minimal", minimal.ClassName)
	assert.Equal(t, "reproduceMinimalBug", minimal.MethodName)
	assert.Equal(t, "Minimal reproduction test with essential elements only", minimal.Description)
	assert.Equal(t, "// Minimal reproduction test\n"+
		"@Test\n"+
		"void reproduceMinimalBug() {\n"+
		"    assertThrows(IllegalArgumentException.class, () -> {\n"+
		"        throw new IllegalArgumentException(\"line1\\nline2\");\n"+
		"    });\n"+
		"}\n", minimal.Source)

	state := cases[2]
	assert.Equal(t, base+"SystemState", state.ClassName)
	assert.Equal(t, "verifySystemState", state.MethodName)
	assert.Equal(t, "Verifies system state conditions that led to the bug", state.Description)
	assert.Equal(t, "@Test\n"+
		"void verifySystemState() {\n"+
		"    // Verify system state conditions\n"+
		"    assertEquals(\"Acme\", System.getProperty(\"java.vendor\"));\n"+
		"    assertEquals(\"21\", System.getProperty(\"java.version\"));\n"+
		"}\n", state.Source)
}

func TestNew_AppliesDefaults(t *testing.T) {
	g := New(Config{MaxEventsInTest: -3})

	assert.Equal(t, FrameworkEventDriven, g.Config().Framework)
	assert.Equal(t, "org.acmsl.bytehot.generated.tests", g.Config().PackageName)
	assert.Equal(t, 0, g.Config().MaxEventsInTest)
}

func TestParseFramework(t *testing.T) {
	f, err := ParseFramework(" junit5 ")
	require.NoError(t, err)
	assert.Equal(t, FrameworkJUnit5, f)
	assert.Equal(t, "JUnit 5", f.DisplayName())

	_, err = ParseFramework("spock")
	assert.Error(t, err)
}

func TestSafeString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, `plain`},
		{`C:\tmp\x`, `C:\\tmp\\x`},
		{`say "hi"`, `say \"hi\"`},
		{"a\nb\rc\td", `a\nb\rc\td`},
		{`\"`, `\\\"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeString(tt.in), "input %q", tt.in)
	}
}
