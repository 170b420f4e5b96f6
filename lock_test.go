package golock_test

import (
	"context"
	"testing"
	"time"

	"github.com/oliveiracleidson/golock"
	"github.com/oliveiracleidson/golock/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T, resource string) *golock.Key {
	t.Helper()
	k, err := golock.NewKey(resource)
	require.NoError(t, err)
	return k
}

// S1 from spec.md §8: two handles, non-blocking acquire/release round trip.
func TestLock_S1_TwoProcessesNonBlocking(t *testing.T) {
	ctx := context.Background()
	store := memory.New("memory", memory.NewConfig())

	k1 := newKey(t, "job/42")
	k2 := newKey(t, "job/42")

	l1 := golock.NewLock(k1, store, golock.Options{})
	l2 := golock.NewLock(k2, store, golock.Options{})

	ok, err := l1.Acquire(ctx, false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l2.Acquire(ctx, false)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l1.Release(ctx))

	ok, err = l2.Acquire(ctx, false)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_TTLExpiry_ThenSecondHolderAcquires(t *testing.T) {
	ctx := context.Background()
	store := memory.New("memory", memory.NewConfig().SetDefaultTTL(5*time.Second))

	k1 := newKey(t, "r")
	l1 := golock.NewLock(k1, store, golock.Options{TTL: 100 * time.Millisecond})

	ok, err := l1.Acquire(ctx, false)
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(200 * time.Millisecond)

	held, err := l1.IsAcquired(ctx)
	require.NoError(t, err)
	assert.False(t, held)

	k2 := newKey(t, "r")
	l2 := golock.NewLock(k2, store, golock.Options{})
	ok, err = l2.Acquire(ctx, false)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_Refresh_ExtendsPastOriginalDeadline(t *testing.T) {
	ctx := context.Background()
	store := memory.New("memory", memory.NewConfig().SetDefaultTTL(5*time.Second))

	k := newKey(t, "r")
	l := golock.NewLock(k, store, golock.Options{TTL: 300 * time.Millisecond})

	ok, err := l.Acquire(ctx, false)
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(150 * time.Millisecond)
	_, err = l.Refresh(ctx, 500*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(250 * time.Millisecond)
	held, err := l.IsAcquired(ctx)
	require.NoError(t, err)
	assert.True(t, held, "refresh should have extended the hold past the original 300ms deadline")
}

func TestLock_AutoRelease_OnClose(t *testing.T) {
	ctx := context.Background()
	store := memory.New("memory", memory.NewConfig())

	k := newKey(t, "r")
	l := golock.NewLock(k, store, golock.Options{AutoRelease: true})

	ok, err := l.Acquire(ctx, false)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Close(ctx))

	held, err := store.Exists(ctx, k)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestLock_SharedExclusiveExclusion(t *testing.T) {
	ctx := context.Background()
	store := memory.New("memory", memory.NewConfig())

	l1 := golock.NewLock(newKey(t, "r"), store, golock.Options{})
	l2 := golock.NewLock(newKey(t, "r"), store, golock.Options{})
	l3 := golock.NewLock(newKey(t, "r"), store, golock.Options{})

	ok, err := l1.AcquireRead(ctx, false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l2.AcquireRead(ctx, false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l3.Acquire(ctx, false)
	require.NoError(t, err)
	assert.False(t, ok, "exclusive acquire should be blocked by existing readers")
}

func TestLock_BlockingAcquire_WaitsForRelease(t *testing.T) {
	store := memory.New("memory", memory.NewConfig())

	l1 := golock.NewLock(newKey(t, "r"), store, golock.Options{})
	l2 := golock.NewLock(newKey(t, "r"), store, golock.Options{})

	require.True(t, mustAcquire(t, l1))

	done := make(chan bool, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		ok, err := l2.Acquire(ctx, true)
		assert.NoError(t, err)
		done <- ok
	}()

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, l1.Release(context.Background()))

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("blocking acquire never unblocked")
	}
}

func TestLock_MarshalJSON_Refuses(t *testing.T) {
	store := memory.New("memory", memory.NewConfig())
	l := golock.NewLock(newKey(t, "r"), store, golock.Options{})

	_, err := l.MarshalJSON()
	assert.ErrorIs(t, err, golock.ErrNotSerializable)
}

func mustAcquire(t *testing.T, l *golock.Lock) bool {
	t.Helper()
	ok, err := l.Acquire(context.Background(), false)
	require.NoError(t, err)
	return ok
}
