// snapshot.go defines EventSnapshot, the frozen event history of a failure.

package bytehot

import (
	"fmt"
	"slices"
	"time"
)

// EventSnapshot is the bounded, time-ordered event history captured for a
// failure together with the environment it happened in.
type EventSnapshot struct {
	SnapshotID string
	CapturedAt time.Time

	// Events holds at most the configured maximum, most recent kept.
	Events []Event

	// User is nil when no user context was available.
	User *UserID

	EnvironmentContext map[string]string
	ThreadName         string
	SystemProperties   map[string]string

	// CausalChain is nil when causal analysis was skipped.
	CausalChain *CausalChain

	PerformanceMetrics map[string]any
}

// EventCount returns the number of captured events.
func (s *EventSnapshot) EventCount() int {
	return len(s.Events)
}

// EventsInTimeWindow returns the events with from <= timestamp <= to.
func (s *EventSnapshot) EventsInTimeWindow(from, to time.Time) []Event {
	var result []Event
	for _, e := range s.Events {
		if !e.Timestamp.Before(from) && !e.Timestamp.After(to) {
			result = append(result, e)
		}
	}
	return result
}

// EventsOfType returns the events whose type equals eventType.
func (s *EventSnapshot) EventsOfType(eventType string) []Event {
	var result []Event
	for _, e := range s.Events {
		if e.EventType == eventType {
			result = append(result, e)
		}
	}
	return result
}

// ContainsEventType reports whether any captured event has the given type.
func (s *EventSnapshot) ContainsEventType(eventType string) bool {
	return slices.ContainsFunc(s.Events, func(e Event) bool { return e.EventType == eventType })
}

// FirstEvent returns the oldest captured event.
func (s *EventSnapshot) FirstEvent() (Event, bool) {
	if len(s.Events) == 0 {
		return Event{}, false
	}
	return s.Events[0], true
}

// LastEvent returns the most recent captured event.
func (s *EventSnapshot) LastEvent() (Event, bool) {
	if len(s.Events) == 0 {
		return Event{}, false
	}
	return s.Events[len(s.Events)-1], true
}

// TimeSpan returns the time between the first and last event.
func (s *EventSnapshot) TimeSpan() time.Duration {
	first, ok := s.FirstEvent()
	if !ok {
		return 0
	}
	last, _ := s.LastEvent()
	return last.Timestamp.Sub(first.Timestamp)
}

// Summary returns a one-line description of the snapshot.
func (s *EventSnapshot) Summary() string {
	user := "anonymous"
	if s.User != nil {
		user = s.User.Name()
	}
	return fmt.Sprintf("EventSnapshot[id=%s..., events=%d, user=%s, thread=%s, captured=%s]",
		shortID(s.SnapshotID), len(s.Events), user, s.ThreadName, formatInstant(s.CapturedAt))
}

// LimitToRecentEvents returns a snapshot keeping only the last maxEvents events.
func (s *EventSnapshot) LimitToRecentEvents(maxEvents int) *EventSnapshot {
	if maxEvents >= len(s.Events) {
		return s
	}
	clone := *s
	clone.Events = limitEvents(s.Events, maxEvents)
	return &clone
}

// IsFallback reports whether the snapshot was produced by the fallback path.
func (s *EventSnapshot) IsFallback() bool {
	return s.EnvironmentContext["fallback"] == "true"
}

// limitEvents keeps the last max events in their original order.
func limitEvents(events []Event, limit int) []Event {
	if limit < 0 {
		limit = 0
	}
	if len(events) <= limit {
		return events
	}
	return slices.Clone(events[len(events)-limit:])
}

// shortID returns the first 8 characters of an id.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
