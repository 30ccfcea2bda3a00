// fingerprint.go generates stable hashes for grouping similar failures.

package bytehot

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// Fingerprint hashes the stable parts of a failure so reports of the same
// bug group together. It is based on:
//   - the failure class and reproduction classification
//   - the first 3 stack frames (function names only, normalized)
//
// Messages, ids, timestamps, line numbers and addresses are ignored.
func Fingerprint(e *SnapshotError) string {
	parts := []string{ClassName(e.Cause), string(e.Classification)}
	parts = append(parts, normalizeFrames(fingerprintFrames(e))...)

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))

	// First 16 bytes, 32 hex chars.
	return hex.EncodeToString(hash[:16])
}

// fingerprintFrames prefers agent-reported frames and falls back to the
// stack captured with the error context.
func fingerprintFrames(e *SnapshotError) []string {
	var f *Failure
	if errors.As(e.Cause, &f) && len(f.Frames) > 0 {
		return f.Frames
	}
	frames := make([]string, 0, len(e.Context.StackTrace))
	for _, sf := range e.Context.StackTrace {
		frames = append(frames, sf.String())
	}
	return frames
}

var (
	// Function names like "org.acme.Foo.bar" or "github.com/a/b.(*T).M".
	funcNamePattern = regexp.MustCompile(`^[\w./\-$<>()*]+$`)

	memAddrPattern = regexp.MustCompile(`\+?0x[0-9a-fA-F]+`)
)

// normalizeFrames extracts the first 3 function names, stripping line
// numbers, memory addresses and argument lists.
func normalizeFrames(lines []string) []string {
	var frames []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "at ")
		if line == "" || strings.HasPrefix(line, "goroutine ") || strings.HasPrefix(line, "/") {
			continue
		}

		line = memAddrPattern.ReplaceAllString(line, "")
		if idx := strings.LastIndex(line, "("); idx > 0 && strings.HasSuffix(line, ")") {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)

		if !strings.Contains(line, ".") || !funcNamePattern.MatchString(line) {
			continue
		}
		frames = append(frames, line)
		if len(frames) >= 3 {
			break
		}
	}
	return frames
}
