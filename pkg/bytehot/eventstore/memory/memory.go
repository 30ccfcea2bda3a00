// Package memory provides an in-process EventStore, optionally loaded from
// the agent's JSON-lines event log.
package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

// maxLineSize bounds a single JSON-lines record.
const maxLineSize = 1 << 20

// Store keeps events in memory ordered by timestamp.
type Store struct {
	mu     sync.RWMutex
	events []bytehot.Event
}

// New creates a store holding events.
func New(events ...bytehot.Event) *Store {
	s := &Store{}
	s.Append(events...)
	return s
}

// Append adds events, keeping the store ordered by timestamp. Events with
// equal timestamps keep their insertion order.
func (s *Store) Append(events ...bytehot.Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, events...)
	slices.SortStableFunc(s.events, func(a, b bytehot.Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}

// EventsBetween returns the events with from <= timestamp <= to.
func (s *Store) EventsBetween(ctx context.Context, from, to time.Time) ([]bytehot.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, &bytehot.EventStoreError{Operation: bytehot.OperationRetrieve, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []bytehot.Event
	for _, ev := range s.events {
		if ev.Timestamp.Before(from) {
			continue
		}
		if ev.Timestamp.After(to) {
			break
		}
		out = append(out, ev)
	}
	return out, nil
}

// All returns every stored event in timestamp order.
func (s *Store) All() []bytehot.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Latest returns the timestamp of the newest event, or false when empty.
func (s *Store) Latest() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.events) == 0 {
		return time.Time{}, false
	}
	return s.events[len(s.events)-1].Timestamp, true
}

// ReadJSONLines decodes one event per line. Blank lines are skipped.
func ReadJSONLines(r io.Reader) ([]bytehot.Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var events []bytehot.Event
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var ev bytehot.Event
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			return nil, errors.Wrapf(err, "decode event on line %d", line)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read event log")
	}
	return events, nil
}

// LoadFile reads a JSON-lines event log into a new Store.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &bytehot.EventStoreError{Operation: bytehot.OperationInitialization, Err: errors.Wrap(err, "open event log")}
	}
	defer f.Close()

	events, err := ReadJSONLines(f)
	if err != nil {
		return nil, &bytehot.EventStoreError{Operation: bytehot.OperationInitialization, Err: errors.Wrapf(err, "load %s", path)}
	}
	return New(events...), nil
}
