// Package redisstore implements an EventStore on a Redis sorted set. Each
// member is the JSON encoding of an event, scored by its Unix millisecond
// timestamp, so range queries map to ZRANGEBYSCORE.
package redisstore

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

// DefaultKey is the sorted set events are stored under.
const DefaultKey = "bytehot:events"

// Option configures a Store.
type Option func(*Store)

// WithKey sets the sorted-set key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the logger used to report undecodable members.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store reads and writes events in a Redis sorted set.
type Store struct {
	client redis.UniversalClient
	key    string
	logger *zap.Logger
}

// New creates a store on client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client: client,
		key:    DefaultKey,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr, password string, db int, opts ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	s := New(client, opts...)
	if err := s.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	s.logger.Info("redis event store connected", zap.String("addr", addr), zap.Int("db", db), zap.String("key", s.key))
	return s, nil
}

// Key returns the sorted-set key.
func (s *Store) Key() string {
	return s.key
}

// Append stores events.
func (s *Store) Append(ctx context.Context, events ...bytehot.Event) error {
	if len(events) == 0 {
		return nil
	}
	members := make([]redis.Z, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return s.fail(bytehot.OperationSave, ev, errors.Wrap(err, "encode event"))
		}
		members = append(members, redis.Z{Score: float64(ev.Timestamp.UnixMilli()), Member: string(data)})
	}
	if err := s.client.ZAdd(ctx, s.key, members...).Err(); err != nil {
		return s.fail(bytehot.OperationSave, events[0], errors.Wrap(err, "zadd"))
	}
	return nil
}

// EventsBetween returns the events with from <= timestamp <= to, ordered by
// timestamp. Members that cannot be decoded are logged and skipped.
func (s *Store) EventsBetween(ctx context.Context, from, to time.Time) ([]bytehot.Event, error) {
	members, err := s.client.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixMilli(), 10),
		Max: strconv.FormatInt(to.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, &bytehot.EventStoreError{Operation: bytehot.OperationRetrieve, Err: errors.Wrap(err, "zrangebyscore")}
	}

	events := make([]bytehot.Event, 0, len(members))
	for _, m := range members {
		var ev bytehot.Event
		if err := json.Unmarshal([]byte(m), &ev); err != nil {
			s.logger.Warn("skipping undecodable event", zap.String("key", s.key), zap.Error(err))
			continue
		}
		if ev.Timestamp.Before(from) || ev.Timestamp.After(to) {
			continue
		}
		events = append(events, ev)
	}
	slices.SortStableFunc(events, func(a, b bytehot.Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return events, nil
}

// Count returns the number of stored events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, s.key).Result()
	if err != nil {
		return 0, &bytehot.EventStoreError{Operation: bytehot.OperationCount, Err: errors.Wrap(err, "zcard")}
	}
	return n, nil
}

// TrimBefore removes events older than cutoff and returns how many went.
func (s *Store) TrimBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.client.ZRemRangeByScore(ctx, s.key, "-inf", "("+strconv.FormatInt(cutoff.UnixMilli(), 10)).Result()
	if err != nil {
		return 0, &bytehot.EventStoreError{Operation: bytehot.OperationSave, Err: errors.Wrap(err, "zremrangebyscore")}
	}
	return n, nil
}

// Ping checks that Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &bytehot.EventStoreError{Operation: bytehot.OperationHealthCheck, Err: errors.Wrap(err, "ping")}
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) fail(op bytehot.OperationType, ev bytehot.Event, err error) error {
	return &bytehot.EventStoreError{
		Operation:     op,
		AggregateType: ev.AggregateType,
		AggregateID:   ev.AggregateID,
		Err:           err,
	}
}
