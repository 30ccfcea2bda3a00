// event.go defines the versioned domain event consumed by the diagnostics pipeline.

package bytehot

import (
	"time"
)

// Event is a versioned domain event as recorded by the agent's event store.
// The pipeline treats it as opaque input ordered by Timestamp.
type Event struct {
	// EventID uniquely identifies the event.
	EventID string `json:"eventId"`

	// EventType is the simple type name, e.g. "ClassFileChanged".
	EventType string `json:"eventType"`

	// AggregateType and AggregateID identify the aggregate that emitted the event.
	AggregateType string `json:"aggregateType,omitempty"`
	AggregateID   string `json:"aggregateId,omitempty"`

	// AggregateVersion is the aggregate version after this event was applied.
	AggregateVersion int64 `json:"aggregateVersion"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// PreviousEventID links to the preceding event of the same aggregate.
	PreviousEventID string `json:"previousEventId,omitempty"`

	// SchemaVersion is the event payload schema version.
	SchemaVersion int `json:"schemaVersion,omitempty"`

	// UserID is the user that triggered the event, if any.
	UserID string `json:"userId,omitempty"`

	// CorrelationID groups events belonging to one logical operation.
	CorrelationID string `json:"correlationId,omitempty"`

	// CausationID is the id of the event that caused this one.
	CausationID string `json:"causationId,omitempty"`
}

// IsFirstEvent reports whether the event has no predecessor in its aggregate.
func (e Event) IsFirstEvent() bool {
	return e.PreviousEventID == ""
}

// HasCausality reports whether the event records the event that caused it.
func (e Event) HasCausality() bool {
	return e.CausationID != ""
}

// HasUser reports whether a user is attached to the event.
func (e Event) HasUser() bool {
	return e.UserID != ""
}

// IsCorrelated reports whether the event belongs to a correlated operation.
func (e Event) IsCorrelated() bool {
	return e.CorrelationID != ""
}

// BelongsToSameAggregate reports whether both events share aggregate type and id.
func (e Event) BelongsToSameAggregate(other Event) bool {
	return e.AggregateType == other.AggregateType && e.AggregateID == other.AggregateID
}

// OccurredBefore reports whether e happened strictly before other.
func (e Event) OccurredBefore(other Event) bool {
	return e.Timestamp.Before(other.Timestamp)
}

// OccurredAfter reports whether e happened strictly after other.
func (e Event) OccurredAfter(other Event) bool {
	return e.Timestamp.After(other.Timestamp)
}

// UserID identifies the user on whose behalf the agent is running.
type UserID struct {
	Value       string
	DisplayName string
}

// IsAnonymous reports whether the id carries no user.
func (u UserID) IsAnonymous() bool {
	return u.Value == ""
}

// Name returns the display name, falling back to the raw value.
func (u UserID) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Value == "" {
		return "anonymous"
	}
	return u.Value
}

// formatInstant renders a timestamp in the ISO-8601 form used by every
// textual artifact (reports, generated tests, environment maps).
func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
