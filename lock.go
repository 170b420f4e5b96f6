package golock

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// pollInterval and pollJitter implement spec.md §4.2 step 2 and §9: a
// polling waiter sleeps 100ms ± 10% between retries so contenders on the
// same backend don't thunder-herd each other.
const (
	pollInterval = 100 * time.Millisecond
	pollJitter   = 0.10
)

// Options configures a Lock at construction. TTL is optional: zero means
// the backend's own default TTL governs the hold and the coordinator
// never calls Refresh on the caller's behalf during Acquire.
type Options struct {
	TTL         time.Duration
	AutoRelease bool
	Logger      Logger
	Metrics     Metrics
}

// Lock is the stateful handle a caller holds: it binds a Key to a Store
// and translates high-level operations into backend calls, layering
// polling, capability fallback, expiry checks and compensating release.
//
// A Lock is not safe for concurrent use by multiple goroutines; distinct
// Lock handles for the same resource coordinate only through the Store.
type Lock struct {
	id          string // correlates this handle's log lines across Acquire/Refresh/Release
	key         *Key
	store       Store
	ttl         time.Duration
	autoRelease bool
	dirty       bool
	mode        string // "" | "exclusive" | "shared", the mode currently believed held

	log     Logger
	metrics Metrics
}

// NewLock constructs a Lock bound to (key, store) with the given options.
// The returned Lock starts in the Fresh state (spec.md §4.7).
func NewLock(key *Key, store Store, opts Options) *Lock {
	log := opts.Logger
	if log == nil {
		log = NewNopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewNopMetrics()
	}
	return &Lock{
		id:          uuid.NewString(),
		key:         key,
		store:       store,
		ttl:         opts.TTL,
		autoRelease: opts.AutoRelease,
		log:         log,
		metrics:     metrics,
	}
}

// ID is a random identifier minted for this handle, carried on every log
// line it emits so acquire/refresh/release calls for the same handle can
// be correlated in aggregated logs even when several Lock instances
// contend for the same resource.
func (l *Lock) ID() string { return l.id }

// Key returns the Key this Lock is bound to.
func (l *Lock) Key() *Key { return l.key }

// Dirty reports the locally-held belief that this handle currently owns
// the resource at the backend. It may be conservatively stale; call
// IsAcquired to force a backend read.
func (l *Lock) Dirty() bool { return l.dirty }

func (l *Lock) backendName() string {
	return l.store.Identity()
}

// Acquire implements spec.md §4.2: reset the expiry clock, take an
// exclusive hold (blocking natively, blocking via polling, or once,
// depending on blocking and the store's capability), translate the
// store's default TTL into the caller's requested one if configured, then
// check for a self-inflicted expiry loss.
func (l *Lock) Acquire(ctx context.Context, blocking bool) (bool, error) {
	return l.acquire(ctx, blocking, false)
}

// AcquireRead is Acquire's shared-mode counterpart (spec.md §4.2 final
// paragraph). If the store lacks Shared capability, it silently promotes
// to exclusive Acquire.
func (l *Lock) AcquireRead(ctx context.Context, blocking bool) (bool, error) {
	if _, ok := l.store.(Shared); !ok {
		return l.acquire(ctx, blocking, false)
	}
	return l.acquire(ctx, blocking, true)
}

func (l *Lock) acquire(ctx context.Context, blocking, shared bool) (bool, error) {
	start := time.Now()
	mode := modeLabel(shared)

	l.key.ResetExpiration()

	err := l.acquireOnce(ctx, blocking, shared)
	if err != nil {
		if cerr, ok := asConflict(err); ok {
			if blocking {
				// spec.md §4.2: conflict during a blocking acquire should
				// not occur with polling; propagate if a native blocking
				// call was aborted mid-wait.
				l.dirty = false
				l.metrics.ObserveAcquire(l.backendName(), mode, "error", time.Since(start))
				return false, cerr
			}
			l.dirty = false
			l.metrics.ObserveAcquire(l.backendName(), mode, "conflict", time.Since(start))
			return false, nil
		}
		l.metrics.ObserveAcquire(l.backendName(), mode, "error", time.Since(start))
		return false, wrap(KindLockAcquiring, err)
	}

	l.dirty = true
	if shared {
		l.mode = "shared"
	} else {
		l.mode = "exclusive"
	}
	l.log.Debugw("golock: acquired", "lock_id", l.id, "backend", l.backendName(), "resource", l.key.ResourceID(), "mode", mode)

	if l.ttl > 0 {
		if _, rerr := l.refresh(ctx, l.ttl); rerr != nil {
			l.metrics.ObserveAcquire(l.backendName(), mode, "error", time.Since(start))
			return false, rerr
		}
	}

	if l.key.IsExpired() {
		l.compensateRelease(ctx)
		l.metrics.ObserveAcquire(l.backendName(), mode, "expired", time.Since(start))
		return false, wrap(KindLockExpired, nil)
	}

	l.metrics.ObserveAcquire(l.backendName(), mode, "success", time.Since(start))
	return true, nil
}

// acquireOnce performs exactly one dispatch: native blocking, polling
// blocking, or a single non-blocking attempt, per spec.md §4.2 step 2.
func (l *Lock) acquireOnce(ctx context.Context, blocking, shared bool) error {
	if shared {
		if blocking {
			if bs, ok := l.store.(BlockingShared); ok {
				return bs.WaitAndSaveRead(ctx, l.key)
			}
			return l.pollUntilAcquired(ctx, func(ctx context.Context) error {
				return l.store.(Shared).SaveRead(ctx, l.key)
			})
		}
		return l.store.(Shared).SaveRead(ctx, l.key)
	}

	if blocking {
		if be, ok := l.store.(BlockingExclusive); ok {
			return be.WaitAndSave(ctx, l.key)
		}
		return l.pollUntilAcquired(ctx, func(ctx context.Context) error {
			return l.store.Save(ctx, l.key)
		})
	}
	return l.store.Save(ctx, l.key)
}

// pollUntilAcquired is the fallback blocking strategy for stores that
// don't natively support suspension: call once, and on ErrLockConflicted
// sleep 100ms ± 10% jitter before retrying, until ctx is done.
func (l *Lock) pollUntilAcquired(ctx context.Context, attempt func(context.Context) error) error {
	mode := "exclusive"
	for {
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if _, ok := asConflict(err); !ok {
			return err
		}

		l.metrics.ObserveRetry(l.backendName(), mode)
		l.log.Debugw("golock: polling retry", "lock_id", l.id, "backend", l.backendName(), "resource", l.key.ResourceID())

		jitter := 1 + (rand.Float64()*2-1)*pollJitter
		sleep := time.Duration(float64(pollInterval) * jitter)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// Refresh implements spec.md §4.3. ttl defaults to the value fixed at
// construction; a null-or-zero effective TTL is a usage error.
func (l *Lock) Refresh(ctx context.Context, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = l.ttl
	}
	return l.refresh(ctx, ttl)
}

func (l *Lock) refresh(ctx context.Context, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, wrap(KindInvalidTTL, nil)
	}

	l.key.ResetExpiration()

	err := l.store.PutOffExpiration(ctx, l.key, ttl)
	if err != nil {
		if cerr, ok := asConflict(err); ok {
			// spec.md §7: clear dirty so destructor-driven auto-release
			// doesn't try to delete a lock it no longer owns.
			l.dirty = false
			return false, cerr
		}
		return false, wrap(KindLockAcquiring, err)
	}

	l.dirty = true
	l.key.SetExpiration(ttl)

	if l.key.IsExpired() {
		l.compensateRelease(ctx)
		return false, wrap(KindLockExpired, nil)
	}

	return true, nil
}

// Release implements spec.md §4.4: delete, then verify via Exists that
// the resource no longer appears held by this caller, to defend against
// backends whose delete silently failed to reach durable state.
func (l *Lock) Release(ctx context.Context) error {
	err := l.store.Delete(ctx, l.key)
	if err != nil {
		l.metrics.ObserveRelease(l.backendName(), "error")
		return wrap(KindLockReleasing, err)
	}
	l.dirty = false

	stillHeld, err := l.store.Exists(ctx, l.key)
	if err != nil {
		l.metrics.ObserveRelease(l.backendName(), "error")
		return wrap(KindLockReleasing, err)
	}
	if stillHeld {
		l.metrics.ObserveRelease(l.backendName(), "error")
		return wrap(KindLockReleasing, errStillLocked)
	}

	l.mode = ""
	l.metrics.ObserveRelease(l.backendName(), "success")
	l.log.Debugw("golock: released", "lock_id", l.id, "backend", l.backendName(), "resource", l.key.ResourceID())
	return nil
}

// compensateRelease is the best-effort release invoked when Acquire or
// Refresh discovers the local deadline already elapsed (spec.md §4.2 step
// 5, §7): any secondary failure is swallowed and logged, never masking
// the original ErrLockExpired.
func (l *Lock) compensateRelease(ctx context.Context) {
	if err := l.Release(ctx); err != nil {
		l.log.Warnw("golock: compensating release failed", "lock_id", l.id, "backend", l.backendName(), "resource", l.key.ResourceID(), "error", err)
	}
}

// IsAcquired re-reads the backend via Exists, updates Dirty as a side
// effect, and returns the (racy) authoritative answer.
func (l *Lock) IsAcquired(ctx context.Context) (bool, error) {
	held, err := l.store.Exists(ctx, l.key)
	if err != nil {
		return false, wrap(KindLockAcquiring, err)
	}
	l.dirty = held
	return held, nil
}

// IsExpired is a pure function over the Key's local clock.
func (l *Lock) IsExpired() bool {
	return l.key.IsExpired()
}

// RemainingLifetime is a pure function over the Key's local clock.
func (l *Lock) RemainingLifetime() time.Duration {
	return l.key.RemainingLifetime()
}

// Close implements the scoped-teardown idiom (spec.md §9): when
// autoRelease is set and the handle believes it still holds the
// resource, issue a best-effort release. Safe to call on an already
// released or never-acquired Lock.
func (l *Lock) Close(ctx context.Context) error {
	if !l.autoRelease || !l.dirty {
		return nil
	}
	held, err := l.IsAcquired(ctx)
	if err != nil || !held {
		return nil
	}
	if err := l.Release(ctx); err != nil {
		l.log.Warnw("golock: auto-release failed", "lock_id", l.id, "backend", l.backendName(), "resource", l.key.ResourceID(), "error", err)
		return nil
	}
	return nil
}

// MarshalJSON always fails: Lock handles hold process-local identity
// (connection-bound fencing tokens, session handles) that cannot be
// transported, so serialization must refuse loudly rather than produce a
// handle that silently doesn't work elsewhere.
func (l *Lock) MarshalJSON() ([]byte, error) {
	return nil, ErrNotSerializable
}

// GobEncode mirrors MarshalJSON's refusal for the gob wire format.
func (l *Lock) GobEncode() ([]byte, error) {
	return nil, ErrNotSerializable
}

func modeLabel(shared bool) string {
	if shared {
		return "shared"
	}
	return "exclusive"
}
