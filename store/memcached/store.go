package memcached

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/oliveiracleidson/golock"
)

// ttlSeconds converts a ttl to the whole-second granularity memcached's
// wire protocol requires, rounding up rather than truncating so a
// sub-second ttl (e.g. 300ms) still buys at least one second of life
// instead of expiring immediately.
func ttlSeconds(ttl time.Duration) int32 {
	secs := int32(math.Ceil(ttl.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Store implements golock.Store (Persisting + Expiring) against a
// Memcached cluster. ctx is accepted on every method for interface
// symmetry with the other backends but is not honored mid-call: the
// underlying client has no per-call context support.
type Store struct {
	identity string
	client   *memcache.Client
	cfg      *Config
}

// New dials a memcache.Client against cfg.Addrs.
func New(cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		identity: "memcached",
		client:   memcache.New(cfg.Addrs...),
		cfg:      cfg,
	}, nil
}

func (s *Store) Identity() string { return s.identity }

func (s *Store) SupportsExpiry() bool { return true }

// Save uses ADD so a fresh acquisition fails loudly if anyone already
// holds the key; on ErrNotStored it falls through to PutOffExpiration,
// which succeeds only if the existing value is this same caller's
// fencing token — the self-reacquire path spec.md §4.6 describes.
func (s *Store) Save(ctx context.Context, key *golock.Key) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}
	ttl := key.RemainingLifetime()
	if ttl < 0 {
		ttl = s.cfg.DefaultTTL
	}

	addErr := s.client.Add(&memcache.Item{
		Key:        key.ResourceID(),
		Value:      []byte(token),
		Expiration: ttlSeconds(ttl),
	})
	if addErr == nil {
		return nil
	}
	if addErr != memcache.ErrNotStored {
		return fmt.Errorf("memcached: add: %w", addErr)
	}

	return s.putOffExpiration(key, token, ttl)
}

func (s *Store) PutOffExpiration(ctx context.Context, key *golock.Key, ttl time.Duration) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}
	return s.putOffExpiration(key, token, ttl)
}

// putOffExpiration reads the current value+CAS id, compares the fencing
// token, then writes the new TTL with CompareAndSwap so a concurrent
// holder change between the read and the write is detected rather than
// silently overwritten.
func (s *Store) putOffExpiration(key *golock.Key, token string, ttl time.Duration) error {
	item, err := s.client.Get(key.ResourceID())
	if err == memcache.ErrCacheMiss {
		return golock.ErrLockConflicted
	}
	if err != nil {
		return fmt.Errorf("memcached: get: %w", err)
	}
	if string(item.Value) != token {
		return golock.ErrLockConflicted
	}

	item.Expiration = ttlSeconds(ttl)
	err = s.client.CompareAndSwap(item)
	if err == memcache.ErrCASConflict || err == memcache.ErrNotStored {
		return golock.ErrLockConflicted
	}
	if err != nil {
		return fmt.Errorf("memcached: cas: %w", err)
	}
	return nil
}

// Delete implements the extend-then-delete trick from spec.md §4.6: CAS
// the TTL down to a short grace window before issuing DELETE, so that a
// contender who read the value just before the delete, but applies its
// own write just after, can't end up looking at a value that outlives
// this caller's intended release.
func (s *Store) Delete(ctx context.Context, key *golock.Key) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}

	item, err := s.client.Get(key.ResourceID())
	if err == memcache.ErrCacheMiss {
		return nil
	}
	if err != nil {
		return fmt.Errorf("memcached: get: %w", err)
	}
	if string(item.Value) != token {
		return nil
	}

	item.Expiration = ttlSeconds(s.cfg.ReleaseGrace)
	if err := s.client.CompareAndSwap(item); err != nil &&
		err != memcache.ErrCASConflict && err != memcache.ErrNotStored {
		return fmt.Errorf("memcached: cas shrink: %w", err)
	}

	if err := s.client.Delete(key.ResourceID()); err != nil && err != memcache.ErrCacheMiss {
		return fmt.Errorf("memcached: delete: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key *golock.Key) (bool, error) {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return false, err
	}

	item, err := s.client.Get(key.ResourceID())
	if err == memcache.ErrCacheMiss {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("memcached: get: %w", err)
	}
	return string(item.Value) == token, nil
}
