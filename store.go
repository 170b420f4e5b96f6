package golock

import (
	"context"
	"time"
)

// Identity is a stable, short per-backend name ("memory", "redis",
// "pg-advisory", ...) used as the key into Key.StateFor, so the same Key
// can in principle be inspected (never concurrently acquired) against
// more than one backend kind without state collisions.
type Identity interface {
	Identity() string
}

// Persisting is the weakest capability a Store can offer: exclusive,
// non-blocking writes with no TTL semantics of their own.
//
// save and saveRead are idempotent for the same holder: re-saving with
// the same fencing token succeeds (refreshing the TTL where applicable).
// With a different token on a still-held resource they fail with
// ErrLockConflicted. delete is a no-op when the caller is not the current
// holder. exists returns true iff the resource is held by this caller's
// token specifically, not merely by someone.
type Persisting interface {
	Identity

	// Save attempts to take an exclusive hold on key. Returns
	// ErrLockConflicted if a different holder's token is already present.
	Save(ctx context.Context, key *Key) error

	// PutOffExpiration extends the backend deadline by ttl, which may be
	// sub-second: stores honor it at millisecond granularity where their
	// protocol allows and never truncate it down to whole seconds
	// (memcached, whose protocol is whole-second, rounds up). Returns
	// ErrLockConflicted if the holder has changed since Save.
	PutOffExpiration(ctx context.Context, key *Key, ttl time.Duration) error

	// Delete releases key if, and only if, this caller is the current
	// holder. Never errors merely because nothing was held.
	Delete(ctx context.Context, key *Key) error

	// Exists reports whether key is currently held by this caller's token.
	Exists(ctx context.Context, key *Key) (bool, error)
}

// Expiring stores enforce a TTL of their own on top of Persisting (a
// store default when the Key carries no deadline). The coordinator does
// not assert this interface: it checks the Key's local deadline after
// every Save/PutOffExpiration on any store.
type Expiring interface {
	Persisting

	// SupportsExpiry always returns true for a conforming Expiring store;
	// it is the one method that distinguishes Expiring from Persisting.
	SupportsExpiry() bool
}

// Shared adds read-lock acquisition (many-readers/one-writer) to whatever
// exclusive capability the store already has.
type Shared interface {
	Persisting

	// SaveRead takes a shared (read) hold on key. Coexists with other
	// shared holds; conflicts with an exclusive hold.
	SaveRead(ctx context.Context, key *Key) error
}

// BlockingExclusive lets Save suspend the caller until an exclusive hold
// is granted, instead of returning ErrLockConflicted immediately.
type BlockingExclusive interface {
	Persisting

	// WaitAndSave blocks until key can be exclusively held or ctx is done.
	WaitAndSave(ctx context.Context, key *Key) error
}

// BlockingShared is BlockingExclusive's counterpart for shared holds.
type BlockingShared interface {
	Shared

	// WaitAndSaveRead blocks until key can be held for reading or ctx is done.
	WaitAndSaveRead(ctx context.Context, key *Key) error
}

// Store is the minimal capability every backend must implement. Higher
// capabilities are detected at runtime via interface assertion
// (spec.md §9's "interface declarations each extending the previous, with
// runtime downcasts" option), never by a feature-flag field, so a store
// that genuinely can't support a tier simply doesn't implement its
// interface and the coordinator falls back accordingly.
type Store interface {
	Persisting
}
