// Package flow detects which operational flow the ByteHot agent is currently
// executing and derives contextual documentation links from it.
//
// A Flow is a named, ordered pattern of event types. The Detector matches the
// known patterns against an event sequence; the DocProvider combines it with
// a rolling buffer of recent events and call-stack heuristics.
package flow

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

// Flow is an operational context recognised from a sequence of events.
// Flows are values; WithConfidence returns a modified copy.
type Flow struct {
	ID          ID     `json:"flowId"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// EventSequence lists the event type names that make up the pattern.
	EventSequence     []string      `json:"eventSequence"`
	MinimumEventCount int           `json:"minimumEventCount"`
	MaximumTimeWindow time.Duration `json:"maximumTimeWindow"`
	Confidence        float64       `json:"confidence"`

	// Condition is an optional extra predicate over the matched events.
	Condition *Condition `json:"-"`
}

// IsValid reports whether the flow is internally consistent.
func (f Flow) IsValid() bool {
	return f.ID != "" &&
		strings.TrimSpace(f.Name) != "" &&
		strings.TrimSpace(f.Description) != "" &&
		len(f.EventSequence) > 0 &&
		f.MinimumEventCount > 0 &&
		f.MinimumEventCount <= len(f.EventSequence) &&
		f.MaximumTimeWindow >= 0 &&
		f.Confidence >= 0 && f.Confidence <= 1
}

// Matches reports whether events contain the flow's sequence contiguously.
func (f Flow) Matches(events []bytehot.Event) bool {
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.EventType
	}
	return f.MatchesByName(types)
}

// MatchesByName is Matches over event type names.
func (f Flow) MatchesByName(eventTypes []string) bool {
	if len(eventTypes) < f.MinimumEventCount {
		return false
	}
	return containsSequence(eventTypes, f.EventSequence)
}

// StartingEventTypes returns the first type of the sequence, if any.
func (f Flow) StartingEventTypes() []string {
	if len(f.EventSequence) == 0 {
		return nil
	}
	return []string{f.EventSequence[0]}
}

// EndingEventTypes returns the last type of the sequence, if any.
func (f Flow) EndingEventTypes() []string {
	if len(f.EventSequence) == 0 {
		return nil
	}
	return []string{f.EventSequence[len(f.EventSequence)-1]}
}

// WithConfidence returns a copy of f with a new confidence in [0,1].
func (f Flow) WithConfidence(confidence float64) (Flow, error) {
	if confidence < 0 || confidence > 1 {
		return Flow{}, errors.Newf("confidence must be between 0.0 and 1.0, got %v", confidence)
	}
	f.Confidence = confidence
	return f, nil
}

func containsSequence(events, pattern []string) bool {
	if len(pattern) == 0 {
		return true
	}
	for i := 0; i+len(pattern) <= len(events); i++ {
		match := true
		for j := range pattern {
			if events[i+j] != pattern[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Condition is a named predicate over a sequence of events.
type Condition struct {
	Name        string
	Description string
	test        func([]bytehot.Event) bool
}

// NewCondition creates a condition from a predicate.
func NewCondition(name, description string, test func([]bytehot.Event) bool) *Condition {
	return &Condition{Name: name, Description: description, test: test}
}

// Evaluate applies the condition. A nil condition or predicate always holds.
func (c *Condition) Evaluate(events []bytehot.Event) bool {
	if c == nil || c.test == nil {
		return true
	}
	return c.test(events)
}

// SameUser holds when every event belongs to userID.
func SameUser(userID string) *Condition {
	return NewCondition("Same User", "All events must belong to user: "+userID, func(events []bytehot.Event) bool {
		for _, ev := range events {
			if ev.UserID != userID {
				return false
			}
		}
		return true
	})
}

// WithinTimeWindow holds when the first and last events are at most limit apart.
func WithinTimeWindow(limit time.Duration) *Condition {
	desc := "Events must occur within " + strconv.FormatInt(limit.Milliseconds(), 10) + "ms"
	return NewCondition("Time Window", desc, func(events []bytehot.Event) bool {
		if len(events) < 2 {
			return true
		}
		return events[len(events)-1].Timestamp.Sub(events[0].Timestamp) <= limit
	})
}

// SequentialOrder holds when events are in chronological order.
func SequentialOrder() *Condition {
	return NewCondition("Sequential Order", "Events must be in chronological order", func(events []bytehot.Event) bool {
		for i := 1; i < len(events); i++ {
			if events[i].Timestamp.Before(events[i-1].Timestamp) {
				return false
			}
		}
		return true
	})
}

// AllOf holds when every condition holds.
func AllOf(conditions ...*Condition) *Condition {
	return NewCondition("All Of", "All conditions must be met", func(events []bytehot.Event) bool {
		for _, c := range conditions {
			if !c.Evaluate(events) {
				return false
			}
		}
		return true
	})
}
