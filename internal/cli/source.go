// source.go opens the event log the commands replay.

package cli

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
	"github.com/rydnr/bytehot-observe/pkg/bytehot/eventstore/memory"
	"github.com/rydnr/bytehot-observe/pkg/bytehot/eventstore/redisstore"
)

// eventSource is a store plus the instant the replay treats as "now".
type eventSource struct {
	store  bytehot.EventStore
	now    time.Time
	window time.Duration
	close  func() error
}

func (s *eventSource) clock() time.Time {
	return s.now
}

// recent returns the events inside the snapshot window ending at now.
func (s *eventSource) recent(ctx context.Context) ([]bytehot.Event, error) {
	return s.store.EventsBetween(ctx, s.now.Add(-s.window), s.now)
}

func (s *eventSource) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// openSource prefers --events over Redis. A file replay defaults "now" to its
// newest event so that the snapshot window covers the recorded history.
func (a *app) openSource(ctx context.Context) (*eventSource, error) {
	now, fixed, err := a.fixedNow()
	if err != nil {
		return nil, err
	}
	window := a.cfg.Snapshot.MaxTimeWindow

	switch {
	case a.eventsPath != "":
		store, err := memory.LoadFile(a.eventsPath)
		if err != nil {
			return nil, err
		}
		if !fixed {
			latest, ok := store.Latest()
			if !ok {
				latest = time.Now()
			}
			now = latest
		}
		a.logger.Debug("replaying event log", zap.String("path", a.eventsPath), zap.Int("events", store.Len()), zap.Time("now", now))
		return &eventSource{store: store, now: now, window: window}, nil

	case a.cfg.Redis.Addr != "":
		store, err := redisstore.Dial(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB,
			redisstore.WithKey(a.cfg.Redis.Key), redisstore.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		if !fixed {
			now = time.Now()
		}
		return &eventSource{store: store, now: now, window: window, close: store.Close}, nil

	default:
		return nil, errors.New("no event source: pass --events or configure redis.addr")
	}
}
