// bugreport_format.go renders bug reports as JSON and Markdown.
//
// Both formats are written by hand: field order, indentation and escaping are
// what downstream parsers are built against.

package bytehot

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hako/durafmt"
)

// ToJSON serializes report.
func (g *BugReportGenerator) ToJSON(report *BugReport) string {
	return report.ToJSON()
}

// ToMarkdown renders report for an issue tracker.
func (g *BugReportGenerator) ToMarkdown(report *BugReport) string {
	return report.ToMarkdown()
}

// ToJSON serializes the report. The reproductionTestCase field is omitted when
// no test case was generated; environment keys are sorted.
func (r *BugReport) ToJSON() string {
	var b strings.Builder
	b.WriteString("{\n")
	b.WriteString(`  "reportId": "` + jsonEscape(r.ReportID) + `",` + "\n")
	b.WriteString(`  "generatedAt": "` + formatInstant(r.GeneratedAt) + `",` + "\n")
	b.WriteString(`  "severity": "` + string(r.Severity) + `",` + "\n")
	b.WriteString(`  "category": "` + string(r.Category) + `",` + "\n")
	b.WriteString(`  "reproducibilityScore": ` + formatJSONFloat(r.ReproducibilityScore) + ",\n")
	b.WriteString(`  "analysis": "` + jsonEscape(r.Analysis) + `",` + "\n")

	writeJSONArray(&b, "recommendations", r.Recommendations)
	writeJSONArray(&b, "reproductionSteps", r.ReproductionSteps)

	b.WriteString(`  "reproductionEnvironment": {` + "\n")
	keys := sortedKeys(r.ReproductionEnvironment)
	for i, k := range keys {
		b.WriteString(`    "` + jsonEscape(k) + `": "` + jsonEscape(r.ReproductionEnvironment[k]) + `"`)
		if i < len(keys)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("  },\n")

	if r.HasTestCase() {
		b.WriteString(`  "reproductionTestCase": "` + jsonEscape(r.ReproductionTestCase) + `",` + "\n")
	}

	b.WriteString(`  "exceptionDetails": {` + "\n")
	b.WriteString(`    "type": "` + exceptionTypeName + `",` + "\n")
	b.WriteString(`    "message": "` + jsonEscape(r.ExceptionMessage) + `",` + "\n")
	b.WriteString(`    "snapshotId": "` + jsonEscape(r.SnapshotID) + `",` + "\n")
	b.WriteString(`    "eventCount": ` + strconv.Itoa(r.EventCount) + "\n")
	b.WriteString("  }\n")

	b.WriteString("}")
	return b.String()
}

func writeJSONArray(b *strings.Builder, name string, items []string) {
	b.WriteString(`  "` + name + `": [` + "\n")
	for i, item := range items {
		b.WriteString(`    "` + jsonEscape(item) + `"`)
		if i < len(items)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("  ],\n")
}

// ToMarkdown renders the report with a fixed section order.
func (r *BugReport) ToMarkdown() string {
	var b strings.Builder

	b.WriteString("# Bug Report: " + shortID(r.ReportID) + "\n\n")
	b.WriteString("**Generated:** " + formatInstant(r.GeneratedAt) + "  \n")
	b.WriteString("**Severity:** " + string(r.Severity) + " - " + r.Severity.Description() + "  \n")
	b.WriteString("**Category:** " + string(r.Category) + " - " + r.Category.Description() + "  \n")
	fmt.Fprintf(&b, "**Reproducibility:** %.1f%%  \n\n", r.ReproducibilityScore*100)

	b.WriteString("## Analysis\n\n")
	b.WriteString(r.Analysis + "\n\n")

	b.WriteString("## Exception Details\n\n")
	b.WriteString("- **Type:** " + exceptionTypeName + "\n")
	b.WriteString("- **Message:** " + r.ExceptionMessage + "\n")
	b.WriteString("- **Snapshot ID:** `" + r.SnapshotID + "`\n")
	b.WriteString("- **Event Count:** " + strconv.Itoa(r.EventCount) + "\n\n")

	b.WriteString("## Reproduction Steps\n\n")
	for i, step := range r.ReproductionSteps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString("\n")

	b.WriteString("## Environment Requirements\n\n")
	b.WriteString("```\n")
	for _, k := range sortedKeys(r.ReproductionEnvironment) {
		b.WriteString(k + "=" + r.ReproductionEnvironment[k] + "\n")
	}
	b.WriteString("```\n\n")

	b.WriteString("## Recommendations\n\n")
	for _, rec := range r.Recommendations {
		b.WriteString("- " + rec + "\n")
	}
	b.WriteString("\n")

	if r.HasTestCase() {
		b.WriteString("## Reproduction Test Case\n\n")
		b.WriteString("```java\n")
		b.WriteString(r.ReproductionTestCase)
		b.WriteString("\n```\n\n")
	}

	b.WriteString("## Debugging Information\n\n")
	b.WriteString("For complete debugging context, see the attached EventSnapshot with ID `" + r.SnapshotID + "`.\n\n")
	b.WriteString("Use the following debugging information for detailed analysis:\n\n")
	b.WriteString("```\n")
	b.WriteString(r.DebuggingReport)
	b.WriteString("\n```\n")

	return b.String()
}

var jsonEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// jsonEscape escapes backslash, quote, newline, carriage return and tab.
// Other control characters are written as \u escapes so output always parses.
func jsonEscape(s string) string {
	s = jsonEscaper.Replace(s)
	if !strings.ContainsFunc(s, func(r rune) bool { return r < 0x20 }) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r < 0x20 {
			fmt.Fprintf(&b, `\u%04x`, r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// formatJSONFloat writes the shortest representation, always with a decimal
// point, e.g. 0.5, 1.0.
func formatJSONFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// formatSpan renders a duration for humans, e.g. "2 minutes 5 seconds".
func formatSpan(d time.Duration) string {
	if d <= 0 {
		return "0 seconds"
	}
	if d < time.Millisecond {
		return d.String()
	}
	return durafmt.Parse(d).LimitFirstN(2).String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
