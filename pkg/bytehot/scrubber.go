// scrubber.go redacts sensitive data from bug reports before they leave the
// process.

package bytehot

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// ScrubberConfig controls scrubbing behavior.
type ScrubberConfig struct {
	// SensitivePatterns are additional case-insensitive substrings that mark
	// an environment key as sensitive.
	SensitivePatterns []string

	// MaxMessageSize is the maximum length for messages and analysis (default: 4096).
	MaxMessageSize int

	// MaxReportSize is the maximum length for the debugging report (default: 32768).
	MaxReportSize int

	// MaxEnvValueSize is the maximum length per environment value (default: 1024).
	MaxEnvValueSize int

	// ScrubMessages enables pattern scrubbing of free text (default: true).
	ScrubMessages bool
}

// DefaultScrubberConfig returns production-safe defaults.
func DefaultScrubberConfig() ScrubberConfig {
	return ScrubberConfig{
		MaxMessageSize:  4096,
		MaxReportSize:   32768,
		MaxEnvValueSize: 1024,
		ScrubMessages:   true,
	}
}

var messageScrubPatterns = []*regexp.Regexp{
	// API keys and tokens
	regexp.MustCompile(`(?i)(api[_-]?key|token)[=:\s]+['"]?[\w\-\.]+['"]?`),
	regexp.MustCompile(`(?i)(authorization|bearer)[=:\s]+['"]?[\w\-\.]+['"]?[\s]+['"]?[\w\-\.]+['"]?`),
	regexp.MustCompile(`(?i)ghp_[a-zA-Z0-9]{36}`),
	regexp.MustCompile(`(?i)github_pat_[a-zA-Z0-9_]{22,}`),
	regexp.MustCompile(`(?i)eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), // JWT

	// Credentials, including JDBC URLs and -D flags passed to the JVM
	regexp.MustCompile(`(?i)password[=:\s]+['"]?[^\s'"",;&]+['"]?`),
	regexp.MustCompile(`(?i)secret[=:\s]+['"]?[^\s'"",;&]+['"]?`),
	regexp.MustCompile(`(?i)passwd[=:\s]+['"]?[^\s'"",;&]+['"]?`),
	regexp.MustCompile(`(?i)credential[=:\s]+['"]?[^\s'"",;&]+['"]?`),
	regexp.MustCompile(`(?i)://[^/\s:@]+:[^/\s@]+@`),

	// PII
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
}

var sensitiveKeyPatterns = []string{
	"token",
	"key",
	"secret",
	"password",
	"credential",
	"auth",
	"passwd",
}

// Home and temp directories in stack traces and paths.
var pathNormalizationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/home/[^/\s]+/`),
	regexp.MustCompile(`/Users/[^/\s]+/`),
	regexp.MustCompile(`C:\\Users\\[^\\\s]+\\`),
	regexp.MustCompile(`/tmp/[^/\s]+/`),
}

var stackAddrPattern = regexp.MustCompile(`0x[0-9a-fA-F]+`)

// Scrubber redacts sensitive data from bug reports.
type Scrubber struct {
	cfg ScrubberConfig
}

// NewScrubber creates a new scrubber with the given configuration.
func NewScrubber(cfg ScrubberConfig) *Scrubber {
	return &Scrubber{cfg: cfg}
}

// ScrubMessage scrubs sensitive patterns from free text.
func (s *Scrubber) ScrubMessage(msg string) string {
	if !s.cfg.ScrubMessages {
		return msg
	}
	if s.cfg.MaxMessageSize > 0 && len(msg) > s.cfg.MaxMessageSize {
		msg = truncateWithMarker(msg, s.cfg.MaxMessageSize)
	}
	for _, pattern := range messageScrubPatterns {
		msg = pattern.ReplaceAllString(msg, "[REDACTED]")
	}
	return msg
}

// ScrubEnvironment redacts values of sensitive keys, normalizes paths and
// scrubs the remaining values like messages.
func (s *Scrubber) ScrubEnvironment(env map[string]string) map[string]string {
	if env == nil {
		return nil
	}
	result := make(map[string]string, len(env))
	for key, value := range env {
		if s.isSensitiveKey(key) {
			result[key] = "[REDACTED]"
			continue
		}
		value = normalizePaths(value)
		if s.cfg.ScrubMessages {
			for _, pattern := range messageScrubPatterns {
				value = pattern.ReplaceAllString(value, "[REDACTED]")
			}
		}
		if s.cfg.MaxEnvValueSize > 0 && len(value) > s.cfg.MaxEnvValueSize {
			value = truncateWithMarker(value, s.cfg.MaxEnvValueSize)
		}
		result[key] = value
	}
	return result
}

// ScrubStackTrace normalizes paths, hides addresses and limits size.
func (s *Scrubber) ScrubStackTrace(trace string) string {
	if trace == "" {
		return trace
	}
	result := normalizePaths(trace)
	result = stackAddrPattern.ReplaceAllString(result, "0x...")
	if s.cfg.MaxReportSize > 0 && len(result) > s.cfg.MaxReportSize {
		result = truncateWithMarker(result, s.cfg.MaxReportSize)
	}
	return result
}

// ScrubReport returns a scrubbed copy of report.
func (s *Scrubber) ScrubReport(report *BugReport) *BugReport {
	out := report.Clone()
	out.Analysis = s.ScrubMessage(out.Analysis)
	out.ExceptionMessage = s.ScrubMessage(out.ExceptionMessage)
	for i, step := range out.ReproductionSteps {
		out.ReproductionSteps[i] = s.ScrubMessage(step)
	}
	out.ReproductionEnvironment = s.ScrubEnvironment(out.ReproductionEnvironment)
	out.DebuggingReport = s.ScrubStackTrace(s.scrubLines(out.DebuggingReport))
	return out
}

// scrubLines applies message scrubbing line by line so the report keeps its
// shape even when the message limit would truncate it.
func (s *Scrubber) scrubLines(text string) string {
	if !s.cfg.ScrubMessages {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		for _, pattern := range messageScrubPatterns {
			line = pattern.ReplaceAllString(line, "[REDACTED]")
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func (s *Scrubber) isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	for _, pattern := range s.cfg.SensitivePatterns {
		if pattern != "" && strings.Contains(keyLower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

func normalizePaths(s string) string {
	for _, pattern := range pathNormalizationPatterns {
		s = pattern.ReplaceAllString(s, "/[PATH]/")
	}
	return s
}

// truncateWithMarker truncates a string and adds a truncation marker.
func truncateWithMarker(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	marker := "...[TRUNCATED]"
	if maxLen <= len(marker) {
		return marker[:maxLen]
	}
	cut := maxLen - len(marker)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + marker
}
