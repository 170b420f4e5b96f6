package filelock

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/oliveiracleidson/golock"
)

// Store implements golock.Store (Persisting only — no TTL, no native
// blocking capability) over OS advisory file locks.
type Store struct {
	identity string
	cfg      *Config
}

// New ensures cfg.Dir exists and returns a Store rooted there.
func New(cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("filelock: mkdir %s: %w", cfg.Dir, err)
	}
	return &Store{identity: "filelock", cfg: cfg}, nil
}

func (s *Store) Identity() string { return s.identity }

func (s *Store) Save(ctx context.Context, key *golock.Key) error {
	st := key.StateFor(s.identity)
	if st.Handle != nil {
		return nil
	}

	fl := flock.New(lockFilePath(s.cfg.Dir, key.ResourceID()))
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("filelock: trylock: %w", err)
	}
	if !locked {
		return golock.ErrLockConflicted
	}

	st.Handle = fl
	key.MarkNonSerializable()
	return nil
}

// PutOffExpiration is a no-op: file locks have no TTL, only a held/not
// held state tied to the descriptor.
func (s *Store) PutOffExpiration(ctx context.Context, key *golock.Key, ttl time.Duration) error {
	st := key.StateFor(s.identity)
	if st.Handle == nil {
		return golock.ErrLockConflicted
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key *golock.Key) error {
	st := key.StateFor(s.identity)
	fl, ok := st.Handle.(*flock.Flock)
	if !ok || fl == nil {
		return nil
	}
	if err := fl.Unlock(); err != nil {
		return fmt.Errorf("filelock: unlock: %w", err)
	}
	st.Handle = nil
	return nil
}

// Exists reports whether this Key's handle currently holds its file lock.
// Like the session-scoped backends, there is no portable way to ask the OS
// "does some other process hold this lock" without attempting (and
// potentially disturbing) the lock itself, so existence here answers
// "does *this* handle still hold it".
func (s *Store) Exists(ctx context.Context, key *golock.Key) (bool, error) {
	st := key.StateFor(s.identity)
	fl, ok := st.Handle.(*flock.Flock)
	return ok && fl != nil && fl.Locked(), nil
}
