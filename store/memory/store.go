package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oliveiracleidson/golock"
)

// Store is golock's in-memory backend. It satisfies Store, Shared,
// BlockingExclusive and BlockingShared, since there is no network
// round-trip to fall back from. It enforces TTLs but does not declare
// golock.Expiring (it has no SupportsExpiry method).
//
// Every independent *Store value owns its own map and mutex; two
// instances never interact, which is what store/pgadvisory relies on
// when it gives each of its Stores a private guard.
type Store struct {
	identity   string
	defaultTTL time.Duration

	mu        sync.Mutex
	resources map[string]*resourceState
}

type readerEntry struct {
	expiresAt time.Time
	hasExpiry bool
}

type resourceState struct {
	writerToken     string
	writerExpiresAt time.Time
	hasWriterExpiry bool
	readers         map[string]readerEntry
	notify          chan struct{}
}

func newResourceState() *resourceState {
	return &resourceState{
		readers: make(map[string]readerEntry),
		notify:  make(chan struct{}),
	}
}

// New constructs a Store. identity namespaces the Key.StateFor blob this
// Store reads/writes; pass a distinct identity per logically separate
// in-memory guard.
func New(identity string, cfg *Config) *Store {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Store{
		identity:   identity,
		defaultTTL: cfg.DefaultTTL,
		resources:  make(map[string]*resourceState),
	}
}

func (s *Store) Identity() string { return s.identity }

func (s *Store) resourceLocked(resource string) *resourceState {
	rs, ok := s.resources[resource]
	if !ok {
		rs = newResourceState()
		s.resources[resource] = rs
	}
	return rs
}

// reapLocked drops writer/reader entries whose TTL has elapsed. Expiry is
// checked lazily on access, per spec.md §4.6.
func (s *Store) reapLocked(rs *resourceState) {
	now := time.Now()
	if rs.hasWriterExpiry && now.After(rs.writerExpiresAt) {
		rs.writerToken = ""
		rs.hasWriterExpiry = false
	}
	for token, r := range rs.readers {
		if r.hasExpiry && now.After(r.expiresAt) {
			delete(rs.readers, token)
		}
	}
}

// wakeLocked broadcasts a release to every blocked waiter on rs by
// closing the current notify channel and installing a fresh one. Only
// Delete calls it; reaping an expired entry does not.
func (s *Store) wakeLocked(rs *resourceState) {
	close(rs.notify)
	rs.notify = make(chan struct{})
}

func (s *Store) hasActiveReaders(rs *resourceState) bool {
	return len(rs.readers) > 0
}

func (s *Store) Save(ctx context.Context, key *golock.Key) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.resourceLocked(key.ResourceID())
	s.reapLocked(rs)

	if rs.writerToken != "" && rs.writerToken != token {
		return golock.ErrLockConflicted
	}
	if s.hasActiveReaders(rs) {
		return golock.ErrLockConflicted
	}

	rs.writerToken = token
	if s.defaultTTL > 0 {
		rs.writerExpiresAt = time.Now().Add(s.defaultTTL)
		rs.hasWriterExpiry = true
	}
	return nil
}

func (s *Store) SaveRead(ctx context.Context, key *golock.Key) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.resourceLocked(key.ResourceID())
	s.reapLocked(rs)

	if rs.writerToken != "" && rs.writerToken != token {
		return golock.ErrLockConflicted
	}

	entry := readerEntry{}
	if s.defaultTTL > 0 {
		entry.expiresAt = time.Now().Add(s.defaultTTL)
		entry.hasExpiry = true
	}
	rs.readers[token] = entry
	return nil
}

func (s *Store) PutOffExpiration(ctx context.Context, key *golock.Key, ttl time.Duration) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.resourceLocked(key.ResourceID())
	s.reapLocked(rs)

	if r, ok := rs.readers[token]; ok {
		r.expiresAt = time.Now().Add(ttl)
		r.hasExpiry = true
		rs.readers[token] = r
		return nil
	}

	if rs.writerToken != token {
		return golock.ErrLockConflicted
	}

	rs.writerExpiresAt = time.Now().Add(ttl)
	rs.hasWriterExpiry = true
	return nil
}

func (s *Store) Delete(ctx context.Context, key *golock.Key) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rs, ok := s.resources[key.ResourceID()]
	if !ok {
		return nil
	}
	s.reapLocked(rs)

	changed := false
	if rs.writerToken == token {
		rs.writerToken = ""
		rs.hasWriterExpiry = false
		changed = true
	}
	if _, ok := rs.readers[token]; ok {
		delete(rs.readers, token)
		changed = true
	}
	if changed {
		s.wakeLocked(rs)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key *golock.Key) (bool, error) {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rs, ok := s.resources[key.ResourceID()]
	if !ok {
		return false, nil
	}
	s.reapLocked(rs)

	if rs.writerToken == token {
		return true, nil
	}
	_, isReader := rs.readers[token]
	return isReader, nil
}

// WaitAndSave blocks until an exclusive hold is granted or ctx is done.
func (s *Store) WaitAndSave(ctx context.Context, key *golock.Key) error {
	return s.waitFor(ctx, key, func(ctx context.Context) error { return s.Save(ctx, key) })
}

// WaitAndSaveRead blocks until a shared hold is granted or ctx is done.
func (s *Store) WaitAndSaveRead(ctx context.Context, key *golock.Key) error {
	return s.waitFor(ctx, key, func(ctx context.Context) error { return s.SaveRead(ctx, key) })
}

// waitFor retries attempt, blocking between tries on the resource's
// notify channel (broadcast on every release) with a bounded fallback
// timer that also catches holds freed by TTL expiry, which send no
// broadcast.
func (s *Store) waitFor(ctx context.Context, key *golock.Key, attempt func(context.Context) error) error {
	const fallback = 50 * time.Millisecond
	for {
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if err != golock.ErrLockConflicted {
			return err
		}

		s.mu.Lock()
		rs := s.resourceLocked(key.ResourceID())
		ch := rs.notify
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		case <-time.After(fallback):
		}
	}
}
