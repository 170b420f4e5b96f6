package zookeeper_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/oliveiracleidson/golock"
	"github.com/oliveiracleidson/golock/store/zookeeper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireStore(t *testing.T) *zookeeper.Store {
	t.Helper()
	servers := os.Getenv("ZK_SERVERS")
	if servers == "" {
		t.Skip("ZK_SERVERS not set, skipping zookeeper integration tests")
	}

	cfg := zookeeper.NewConfig().SetServers(strings.Split(servers, ",")...).SetRootPath("/golock-test")
	s, err := zookeeper.New(cfg)
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

	kA := newKey(t, "zookeeper/job-1")
	kB := newKey(t, "zookeeper/job-1")
	defer s.Delete(ctx, kA)

	require.NoError(t, s.Save(ctx, kA))

	held, err := s.Exists(ctx, kA)
	require.NoError(t, err)
	assert.True(t, held)

	err = s.Save(ctx, kB)
	assert.ErrorIs(t, err, golock.ErrLockConflicted)

	assert.False(t, kA.Serializable())
}

func TestStore_Save_IdempotentForSameHolder(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	k := newKey(t, "zookeeper/job-2")
	defer s.Delete(ctx, k)

	require.NoError(t, s.Save(ctx, k))
	require.NoError(t, s.Save(ctx, k))
}

func TestStore_WaitAndSave_UnblocksOnRelease(t *testing.T) {
	s := requireStore(t)

	kA := newKey(t, "zookeeper/job-3")
	kB := newKey(t, "zookeeper/job-3")

	require.NoError(t, s.Save(context.Background(), kA))

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- s.WaitAndSave(ctx, kB)
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Delete(context.Background(), kA))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitAndSave did not unblock after release")
	}
	s.Delete(context.Background(), kB)
}
