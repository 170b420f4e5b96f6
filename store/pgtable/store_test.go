package pgtable_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/oliveiracleidson/golock"
	"github.com/oliveiracleidson/golock/store/pgtable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	store *pgtable.Store
	once  sync.Once
)

// requireStore skips the test unless DB_URL points at a live Postgres,
// mirroring the teacher's pg package: integration tests here need a real
// server and are opt-in rather than run by default.
func requireStore(t *testing.T) *pgtable.Store {
	t.Helper()
	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		t.Skip("DB_URL not set, skipping pgtable integration tests")
	}

	once.Do(func() {
		cfg := pgtable.NewConfig().SetConnString(dbURL).SetLockTableName("golock_locks_test")
		s, err := pgtable.New(context.Background(), cfg)
		if err != nil {
			t.Fatalf("pgtable.New: %v", err)
		}
		store = s
	})
	return store
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

	kA := newKey(t, "pgtable/job-1")
	kB := newKey(t, "pgtable/job-1")
	kA.SetExpiration(5 * time.Second)
	kB.SetExpiration(5 * time.Second)
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

	k := newKey(t, "pgtable/job-2")
	k.SetExpiration(5 * time.Second)
	defer s.Delete(ctx, k)

	require.NoError(t, s.Save(ctx, k))
	require.NoError(t, s.Save(ctx, k))
}

func TestStore_PutOffExpiration_RejectsNonHolder(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	kA := newKey(t, "pgtable/job-3")
	kB := newKey(t, "pgtable/job-3")
	kA.SetExpiration(5 * time.Second)
	defer s.Delete(ctx, kA)

	require.NoError(t, s.Save(ctx, kA))
	err := s.PutOffExpiration(ctx, kB, 30*time.Second)
	assert.ErrorIs(t, err, golock.ErrLockConflicted)
}

func TestStore_Delete_NonOwnerIsNoop(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	kA := newKey(t, "pgtable/job-4")
	kB := newKey(t, "pgtable/job-4")
	kA.SetExpiration(5 * time.Second)
	defer s.Delete(ctx, kA)

	require.NoError(t, s.Save(ctx, kA))
	require.NoError(t, s.Delete(ctx, kB))

	held, err := s.Exists(ctx, kA)
	require.NoError(t, err)
	assert.True(t, held)
}
