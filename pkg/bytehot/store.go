// store.go defines the EventStore port the snapshot generator reads from.

package bytehot

import (
	"context"
	"fmt"
	"time"
)

// EventStore returns the events recorded in a time range.
// Implementations must be safe for concurrent use.
type EventStore interface {
	// EventsBetween returns the events with from <= timestamp <= to,
	// ordered by timestamp.
	EventsBetween(ctx context.Context, from, to time.Time) ([]Event, error)
}

// EventStoreFunc adapts a function to the EventStore interface.
type EventStoreFunc func(ctx context.Context, from, to time.Time) ([]Event, error)

// EventsBetween calls f.
func (f EventStoreFunc) EventsBetween(ctx context.Context, from, to time.Time) ([]Event, error) {
	return f(ctx, from, to)
}

// OperationType names the event store operation that failed.
type OperationType string

const (
	OperationSave           OperationType = "SAVE"
	OperationRetrieve       OperationType = "RETRIEVE"
	OperationCount          OperationType = "COUNT"
	OperationHealthCheck    OperationType = "HEALTH_CHECK"
	OperationInitialization OperationType = "INITIALIZATION"
)

// EventStoreError reports a failed event store operation.
type EventStoreError struct {
	Operation     OperationType
	AggregateType string
	AggregateID   string
	Err           error
}

func (e *EventStoreError) Error() string {
	if e.AggregateType != "" {
		return fmt.Sprintf("event store %s failed for %s/%s: %v", e.Operation, e.AggregateType, e.AggregateID, e.Err)
	}
	return fmt.Sprintf("event store %s failed: %v", e.Operation, e.Err)
}

func (e *EventStoreError) Unwrap() error {
	return e.Err
}
