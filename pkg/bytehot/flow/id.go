// id.go defines flow identifiers.

package flow

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// ID identifies a Flow.
type ID string

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// RandomID returns a new random flow id.
func RandomID() ID {
	return ID(uuid.NewString())
}

// IDOf returns value as an id after trimming surrounding whitespace.
func IDOf(value string) (ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("flow id cannot be empty")
	}
	return ID(value), nil
}

// IDFromName derives an id from a human readable flow name: lowercased, runs
// of non-alphanumerics collapsed to one hyphen, and prefixed with "flow-".
// "Hot Swap!! Flow" becomes "flow-hot-swap-flow".
func IDFromName(name string) (ID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("flow name cannot be empty")
	}
	normalized := nonAlphanumeric.ReplaceAllString(strings.ToLower(name), "-")
	return ID("flow-" + strings.Trim(normalized, "-")), nil
}

// mustIDFromName is IDFromName for compile-time constant names.
func mustIDFromName(name string) ID {
	id, err := IDFromName(name)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) String() string {
	return string(id)
}
