package pgadvisory

import (
	"context"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oliveiracleidson/golock"
	"github.com/oliveiracleidson/golock/store/memory"
)

// Store implements golock.Store, golock.Shared, golock.BlockingExclusive
// and golock.BlockingShared by holding a dedicated pooled connection open
// for the lifetime of each acquisition.
//
// Per spec, acquisition first passes through an in-memory guard so two
// Lock handles in the same process contending for the same resource fail
// fast against a mutex rather than racing two different pooled
// connections against the same advisory lock id.
type Store struct {
	identity string
	pool     *pgxpool.Pool
	guard    *memory.Store
}

// handle is the per-(Key,Store) state stashed in Key.StateFor: the
// connection the advisory lock is bound to, and which mode it was taken
// in (exclusive locks and shared locks unlock through different calls).
type handle struct {
	conn   *pgxpool.Conn
	shared bool
}

// New connects a pgxpool.Pool for advisory locking.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("pgadvisory: connect: %w", err)
	}
	return &Store{
		identity: "pgadvisory",
		pool:     pool,
		guard:    memory.New("pgadvisory-guard", memory.NewConfig()),
	}, nil
}

func (s *Store) Identity() string { return s.identity }

func (s *Store) Close() { s.pool.Close() }

// lockID hashes a resource id to the int64 pg_advisory_lock expects, via
// crc32 as spec.md §4.6 names explicitly.
func lockID(resourceID string) int64 {
	return int64(crc32.ChecksumIEEE([]byte(resourceID)))
}

func (s *Store) Save(ctx context.Context, key *golock.Key) error {
	return s.tryAcquire(ctx, key, false)
}

func (s *Store) SaveRead(ctx context.Context, key *golock.Key) error {
	return s.tryAcquire(ctx, key, true)
}

func (s *Store) tryAcquire(ctx context.Context, key *golock.Key, shared bool) error {
	st := key.StateFor(s.identity)
	if st.Handle != nil {
		// Already held by this Key; Save/SaveRead from the same holder is
		// idempotent rather than a conflict.
		return nil
	}

	if err := s.guardSave(ctx, key, shared); err != nil {
		return err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		s.guard.Delete(ctx, key)
		return wrapStorage(err)
	}

	fn := "pg_try_advisory_lock"
	if shared {
		fn = "pg_try_advisory_lock_shared"
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT "+fn+"($1)", lockID(key.ResourceID())).Scan(&acquired); err != nil {
		conn.Release()
		s.guard.Delete(ctx, key)
		return wrapStorage(err)
	}
	if !acquired {
		conn.Release()
		s.guard.Delete(ctx, key)
		return golock.ErrLockConflicted
	}

	st.Handle = &handle{conn: conn, shared: shared}
	key.MarkNonSerializable()
	return nil
}

func (s *Store) WaitAndSave(ctx context.Context, key *golock.Key) error {
	return s.waitAcquire(ctx, key, false)
}

func (s *Store) WaitAndSaveRead(ctx context.Context, key *golock.Key) error {
	return s.waitAcquire(ctx, key, true)
}

func (s *Store) waitAcquire(ctx context.Context, key *golock.Key, shared bool) error {
	st := key.StateFor(s.identity)
	if st.Handle != nil {
		return nil
	}

	if err := s.guardWait(ctx, key, shared); err != nil {
		return err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		s.guard.Delete(ctx, key)
		return wrapStorage(err)
	}

	fn := "pg_advisory_lock"
	if shared {
		fn = "pg_advisory_lock_shared"
	}

	// pg_advisory_lock blocks server-side until granted; cancelling ctx
	// sends a query-cancel that aborts the wait, releasing the connection
	// back to the pool without ever having acquired the lock.
	if _, err := conn.Exec(ctx, "SELECT "+fn+"($1)", lockID(key.ResourceID())); err != nil {
		conn.Release()
		s.guard.Delete(ctx, key)
		return wrapStorage(err)
	}

	st.Handle = &handle{conn: conn, shared: shared}
	key.MarkNonSerializable()
	return nil
}

func (s *Store) guardSave(ctx context.Context, key *golock.Key, shared bool) error {
	if shared {
		return s.guard.SaveRead(ctx, key)
	}
	return s.guard.Save(ctx, key)
}

func (s *Store) guardWait(ctx context.Context, key *golock.Key, shared bool) error {
	if shared {
		return s.guard.WaitAndSaveRead(ctx, key)
	}
	return s.guard.WaitAndSave(ctx, key)
}

// PutOffExpiration is a no-op: an advisory lock lives exactly as long as
// the session holding it, with no independent TTL to extend. It still
// verifies the handle is present so a caller that lost the lock out from
// under it (e.g. its connection died) learns about the conflict.
func (s *Store) PutOffExpiration(ctx context.Context, key *golock.Key, ttl time.Duration) error {
	st := key.StateFor(s.identity)
	if st.Handle == nil {
		return golock.ErrLockConflicted
	}
	return nil
}

// Delete releases both the guard and the advisory lock itself, looping
// pg_advisory_unlock (per spec.md §4.6) until pg_locks confirms no
// session-held advisory lock remains for that id in the acquired mode —
// advisory locks are reference-counted, so a session that somehow
// re-entered the same id needs more than one unlock call to fully drop it.
func (s *Store) Delete(ctx context.Context, key *golock.Key) error {
	st := key.StateFor(s.identity)
	h, ok := st.Handle.(*handle)
	if !ok || h == nil {
		return nil
	}

	fn := "pg_advisory_unlock"
	if h.shared {
		fn = "pg_advisory_unlock_shared"
	}
	id := lockID(key.ResourceID())

	for {
		held, err := s.stillHeld(ctx, h.conn, id, h.shared)
		if err != nil {
			h.conn.Release()
			st.Handle = nil
			return wrapStorage(err)
		}
		if !held {
			break
		}
		if _, err := h.conn.Exec(ctx, "SELECT "+fn+"($1)", id); err != nil {
			h.conn.Release()
			st.Handle = nil
			return wrapStorage(err)
		}
	}

	h.conn.Release()
	st.Handle = nil
	return s.guard.Delete(ctx, key)
}

func (s *Store) stillHeld(ctx context.Context, conn *pgxpool.Conn, id int64, shared bool) (bool, error) {
	mode := "ExclusiveLock"
	if shared {
		mode = "ShareLock"
	}
	classid := int32(id >> 32)
	objid := int32(id & 0xFFFFFFFF)

	var held bool
	err := conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_locks
			WHERE locktype = 'advisory'
			  AND pid = pg_backend_pid()
			  AND classid = $1 AND objid = $2
			  AND mode = $3
		)
	`, classid, objid, mode).Scan(&held)
	return held, err
}

// Exists reports whether this Key still believes it holds the connection
// the lock was granted on. Advisory locks have no out-of-band way to
// query "does some other holder have this" without inspecting pg_locks
// for a connection we don't control, so existence here is local-state
// only: it answers "does *this* handle still hold it", which is exactly
// what the Lock coordinator needs for Release's double-check.
func (s *Store) Exists(ctx context.Context, key *golock.Key) (bool, error) {
	st := key.StateFor(s.identity)
	return st.Handle != nil, nil
}

func wrapStorage(err error) error {
	return fmt.Errorf("pgadvisory: %w", err)
}
