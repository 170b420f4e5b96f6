package redislock_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oliveiracleidson/golock"
	"github.com/oliveiracleidson/golock/store/redislock"
)

func newTestStore(t *testing.T) *redislock.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := redislock.NewConfig().SetAddr(mr.Addr()).SetDefaultTTL(30 * time.Second)
	return redislock.New(client, cfg)
}

func newKey(t *testing.T, resource string) *golock.Key {
	t.Helper()
	k, err := golock.NewKey(resource)
	require.NoError(t, err)
	return k
}

func TestStore_Save_ExclusivityAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	kA := newKey(t, "job/42")
	kB := newKey(t, "job/42")

	require.NoError(t, s.Save(ctx, kA))

	existsA, err := s.Exists(ctx, kA)
	require.NoError(t, err)
	assert.True(t, existsA)

	err = s.Save(ctx, kB)
	assert.ErrorIs(t, err, golock.ErrLockConflicted)

	require.NoError(t, s.Delete(ctx, kA))

	existsA, err = s.Exists(ctx, kA)
	require.NoError(t, err)
	assert.False(t, existsA)

	require.NoError(t, s.Save(ctx, kB))
}

func TestStore_Save_IdempotentForSameHolder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	k := newKey(t, "r")

	require.NoError(t, s.Save(ctx, k))
	require.NoError(t, s.Save(ctx, k))
}

func TestStore_PutOffExpiration_ExtendsTTL(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	k := newKey(t, "r")

	require.NoError(t, s.Save(ctx, k))
	require.NoError(t, s.PutOffExpiration(ctx, k, 60*time.Second))

	held, err := s.Exists(ctx, k)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestStore_PutOffExpiration_RejectsNonHolder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	kA := newKey(t, "r")
	kB := newKey(t, "r")

	require.NoError(t, s.Save(ctx, kA))
	err := s.PutOffExpiration(ctx, kB, 60*time.Second)
	assert.ErrorIs(t, err, golock.ErrLockConflicted)
}

func TestStore_Delete_NonOwnerIsNoop(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	kA := newKey(t, "r")
	kB := newKey(t, "r")

	require.NoError(t, s.Save(ctx, kA))
	require.NoError(t, s.Delete(ctx, kB))

	held, err := s.Exists(ctx, kA)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestStore_SharedReadersCoexist(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	kA := newKey(t, "r")
	kB := newKey(t, "r")
	kC := newKey(t, "r")

	require.NoError(t, s.SaveRead(ctx, kA))
	require.NoError(t, s.SaveRead(ctx, kB))

	err := s.Save(ctx, kC)
	assert.ErrorIs(t, err, golock.ErrLockConflicted)
}

func TestStore_WriterBlocksReader(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	kA := newKey(t, "r")
	kB := newKey(t, "r")

	require.NoError(t, s.Save(ctx, kA))

	err := s.SaveRead(ctx, kB)
	assert.ErrorIs(t, err, golock.ErrLockConflicted)
}
