package filelock_test

import (
	"context"
	"testing"
	"time"

	"github.com/oliveiracleidson/golock"
	"github.com/oliveiracleidson/golock/store/filelock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *filelock.Store {
	t.Helper()
	s, err := filelock.New(filelock.NewConfig().SetDir(t.TempDir()))
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
	ctx := context.Background()
	s := newStore(t)

	kA := newKey(t, "job/42")
	kB := newKey(t, "job/42")

	require.NoError(t, s.Save(ctx, kA))

	held, err := s.Exists(ctx, kA)
	require.NoError(t, err)
	assert.True(t, held)

	err = s.Save(ctx, kB)
	assert.ErrorIs(t, err, golock.ErrLockConflicted)

	require.NoError(t, s.Delete(ctx, kA))
	require.NoError(t, s.Save(ctx, kB))
	assert.False(t, kA.Serializable())
}

func TestStore_Save_IdempotentForSameHolder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	k := newKey(t, "r")

	require.NoError(t, s.Save(ctx, k))
	require.NoError(t, s.Save(ctx, k))
}

func TestStore_Independence(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	kA := newKey(t, "r1")
	kB := newKey(t, "r2")

	require.NoError(t, s.Save(ctx, kA))

	held, err := s.Exists(ctx, kB)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestStore_PutOffExpiration_NoopWhenHeld(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	k := newKey(t, "r")

	require.NoError(t, s.Save(ctx, k))
	require.NoError(t, s.PutOffExpiration(ctx, k, 30*time.Second))
}
