package mongostore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/oliveiracleidson/golock"
	"github.com/oliveiracleidson/golock/store/mongostore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireStore(t *testing.T) *mongostore.Store {
	t.Helper()
	uri := os.Getenv("MONGO_URL")
	if uri == "" {
		t.Skip("MONGO_URL not set, skipping mongostore integration tests")
	}

	cfg := mongostore.NewConfig().SetURI(uri).SetCollection("golock_locks_test").SetDefaultTTL(5 * time.Second)
	s, err := mongostore.New(cfg)
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

	kA := newKey(t, "mongostore/job-1")
	kB := newKey(t, "mongostore/job-1")
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
	k := newKey(t, "mongostore/job-2")
	defer s.Delete(ctx, k)

	require.NoError(t, s.Save(ctx, k))
	require.NoError(t, s.Save(ctx, k))
}

func TestStore_TTLExpiry_AllowsReacquire(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	kA := newKey(t, "mongostore/job-3")
	kA.SetExpiration(50 * time.Millisecond)
	require.NoError(t, s.Save(ctx, kA))

	time.Sleep(100 * time.Millisecond)

	kB := newKey(t, "mongostore/job-3")
	defer s.Delete(ctx, kB)
	require.NoError(t, s.Save(ctx, kB))
}

func TestStore_Delete_NonOwnerIsNoop(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	kA := newKey(t, "mongostore/job-4")
	kB := newKey(t, "mongostore/job-4")
	defer s.Delete(ctx, kA)

	require.NoError(t, s.Save(ctx, kA))
	require.NoError(t, s.Delete(ctx, kB))

	held, err := s.Exists(ctx, kA)
	require.NoError(t, err)
	assert.True(t, held)
}
