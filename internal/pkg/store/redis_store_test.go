package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s, err := NewRedisStore(context.Background(), rdb, "test")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		_ = rdb.Close()
	})
	return s, rdb
}

func TestRedisStore_SetGetKeepsInsertionOrder(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users/zed", map[string]string{"displayName": "Zed"}))
	require.NoError(t, s.Set(ctx, "users/amy", map[string]string{"displayName": "Amy"}))
	require.NoError(t, s.Set(ctx, "users/zed", map[string]string{"displayName": "Zed 2"}))

	snap, err := s.Get(ctx, "users")
	require.NoError(t, err)
	require.Len(t, snap.Children, 2)
	assert.Equal(t, "zed", snap.Children[0].Key)
	assert.JSONEq(t, `{"displayName":"Zed 2"}`, string(snap.Children[0].Value))
	assert.Equal(t, "amy", snap.Children[1].Key)
}

func TestRedisStore_UpdateAndRemove(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "messages/a_b/m1", map[string]any{"id": "m1", "message": "hi"}))
	require.NoError(t, s.Update(ctx, "messages/a_b/m1", map[string]any{"isRead": true}))

	snap, err := s.Get(ctx, "messages/a_b")
	require.NoError(t, err)
	raw, ok := snap.Lookup("m1")
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"m1","message":"hi","isRead":true}`, string(raw))

	require.NoError(t, s.Remove(ctx, "messages/a_b/m1"))
	require.NoError(t, s.Remove(ctx, "messages/a_b/m1"))
	snap, err = s.Get(ctx, "messages/a_b")
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
}

func TestRedisStore_UpdateMissingDoesNotCreate(t *testing.T) {
	s, rdb := newTestRedisStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Update(ctx, "messages/a_b/m1", map[string]any{"message": "edited"}), ErrNotFound)
	n, err := rdb.Exists(ctx, s.hashKey("messages/a_b"), s.orderKey("messages/a_b")).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisStore_RemoveCollection(t *testing.T) {
	s, rdb := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "lastMessages/u1/u2", map[string]any{"id": "m1"}))
	require.NoError(t, s.Remove(ctx, "lastMessages/u1"))

	n, err := rdb.Exists(ctx, s.hashKey("lastMessages/u1"), s.orderKey("lastMessages/u1")).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisStore_SubscriptionSeesWritesFromAnotherInstance(t *testing.T) {
	s, rdb := newTestRedisStore(t)
	ctx := context.Background()

	other, err := NewRedisStore(ctx, rdb, "test")
	require.NoError(t, err)
	defer func() { _ = other.Close() }()

	rec := &recorder{}
	sub, err := s.Subscribe(ctx, "presence", rec.handle)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, other.Set(ctx, "presence/u1", true))
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"u1"}, rec.keys())
	}, 2*time.Second, 10*time.Millisecond)
}
