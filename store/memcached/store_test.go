package memcached_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/oliveiracleidson/golock"
	"github.com/oliveiracleidson/golock/store/memcached"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireStore(t *testing.T) *memcached.Store {
	t.Helper()
	addr := os.Getenv("MEMCACHED_ADDR")
	if addr == "" {
		t.Skip("MEMCACHED_ADDR not set, skipping memcached integration tests")
	}

	s, err := memcached.New(memcached.NewConfig().SetAddrs(addr).SetReleaseGrace(1 * time.Second))
	require.NoError(t, err)
	return s
}

func newKey(t *testing.T, resource string) *golock.Key {
	t.Helper()
	k, err := golock.NewKey(resource)
	require.NoError(t, err)
	return k
}

func TestStore_Save_ExclusivityAndRoundTrip(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	kA := newKey(t, "memcached/job-1")
	kB := newKey(t, "memcached/job-1")
	defer s.Delete(ctx, kA)

	require.NoError(t, s.Save(ctx, kA))

	held, err := s.Exists(ctx, kA)
	require.NoError(t, err)
	assert.True(t, held)

	err = s.Save(ctx, kB)
	assert.ErrorIs(t, err, golock.ErrLockConflicted)
}

func TestStore_Save_IdempotentForSameHolder(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	k := newKey(t, "memcached/job-2")
	defer s.Delete(ctx, k)

	require.NoError(t, s.Save(ctx, k))
	require.NoError(t, s.Save(ctx, k))
}

func TestStore_PutOffExpiration_RejectsNonHolder(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	kA := newKey(t, "memcached/job-3")
	kB := newKey(t, "memcached/job-3")
	defer s.Delete(ctx, kA)

	require.NoError(t, s.Save(ctx, kA))
	err := s.PutOffExpiration(ctx, kB, 30*time.Second)
	assert.ErrorIs(t, err, golock.ErrLockConflicted)
}

func TestStore_Delete_NonOwnerIsNoop(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	kA := newKey(t, "memcached/job-4")
	kB := newKey(t, "memcached/job-4")
	defer s.Delete(ctx, kA)

	require.NoError(t, s.Save(ctx, kA))
	require.NoError(t, s.Delete(ctx, kB))

	held, err := s.Exists(ctx, kA)
	require.NoError(t, err)
	assert.True(t, held)
}
