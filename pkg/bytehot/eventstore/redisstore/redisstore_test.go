package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setupStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, opts...), mr
}

func event(id string, offset time.Duration) bytehot.Event {
	return bytehot.Event{
		EventID:       id,
		EventType:     "ClassFileChanged",
		AggregateType: "hotswap",
		AggregateID:   "com.acme.Foo",
		Timestamp:     t0.Add(offset),
	}
}

func TestStore_AppendAndRange(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, event("c", 2*time.Second), event("a", 0), event("b", time.Second), event("d", time.Minute)))

	got, err := s.EventsBetween(ctx, t0, t0.Add(2*time.Second))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].EventID)
	assert.Equal(t, "b", got[1].EventID)
	assert.Equal(t, "c", got[2].EventID)
	assert.Equal(t, "com.acme.Foo", got[0].AggregateID)
	assert.True(t, got[2].Timestamp.Equal(t0.Add(2*time.Second)))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestStore_SubMillisecondBounds(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, event("a", 500*time.Microsecond)))

	got, err := s.EventsBetween(ctx, t0.Add(600*time.Microsecond), t0.Add(time.Second))
	require.NoError(t, err)
	assert.Empty(t, got, "events before from are filtered even within the same millisecond")
}

func TestStore_TrimBefore(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, event("a", 0), event("b", time.Second), event("c", 2*time.Second)))

	removed, err := s.TrimBefore(ctx, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStore_SkipsUndecodableMembers(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s, mr := setupStore(t, WithLogger(zap.New(core)), WithKey("test:events"))
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, event("a", 0)))
	_, err := mr.ZAdd("test:events", float64(t0.UnixMilli()), "not json")
	require.NoError(t, err)

	got, err := s.EventsBetween(ctx, t0, t0.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].EventID)
	assert.Equal(t, 1, logs.FilterMessage("skipping undecodable event").Len())
	assert.Equal(t, "test:events", s.Key())
}

func TestStore_ErrorsAreEventStoreErrors(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()
	mr.Close()

	var storeErr *bytehot.EventStoreError

	err := s.Ping(ctx)
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, bytehot.OperationHealthCheck, storeErr.Operation)

	_, err = s.EventsBetween(ctx, t0, t0)
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, bytehot.OperationRetrieve, storeErr.Operation)

	err = s.Append(ctx, event("a", 0))
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, bytehot.OperationSave, storeErr.Operation)
	assert.Equal(t, "com.acme.Foo", storeErr.AggregateID)
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := Dial(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	assert.NoError(t, s.Ping(context.Background()))
}

func TestStore_FeedsSnapshotGenerator(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, event("a", -2*time.Second), event("b", -time.Second)))

	gen := bytehot.NewSnapshotGenerator(s, bytehot.WithClock(func() time.Time { return t0 }))
	snapshot := gen.GenerateSnapshot(ctx, nil)

	assert.Equal(t, 2, snapshot.EventCount())
	assert.False(t, snapshot.IsFallback())
}
