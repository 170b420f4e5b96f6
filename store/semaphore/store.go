package semaphore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oliveiracleidson/golock"
)

// Store implements golock.Store and golock.Shared over a Redis-backed
// bounded-capacity permit ledger. An exclusive Save claims the entire
// configured Capacity (equivalent to a full drain, so nothing else can
// be admitted); SaveRead claims one unit and coexists with up to
// Capacity-1 other readers.
type Store struct {
	identity   string
	client     redis.UniversalClient
	keyPrefix  string
	capacity   int
	defaultTTL time.Duration
}

// New constructs a Store from an already-connected client.
func New(client redis.UniversalClient, cfg *Config) *Store {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Store{
		identity:   "semaphore",
		client:     client,
		keyPrefix:  cfg.KeyPrefix,
		capacity:   cfg.Capacity,
		defaultTTL: cfg.DefaultTTL,
	}
}

func (s *Store) Identity() string { return s.identity }

func (s *Store) permitsKey(resource string) string { return s.keyPrefix + resource + ":permits" }
func (s *Store) weightsKey(resource string) string { return s.keyPrefix + resource + ":weights" }

func (s *Store) acquire(ctx context.Context, key *golock.Key, weight int) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}
	pk := s.permitsKey(key.ResourceID())
	wk := s.weightsKey(key.ResourceID())
	now := time.Now()
	newScore := now.Add(s.defaultTTL).UnixMilli()

	res, err := acquireScript.Run(ctx, s.client, []string{pk, wk},
		token, weight, s.capacity, now.UnixMilli(), newScore).Int()
	if err != nil {
		return fmt.Errorf("semaphore: acquire: %w", err)
	}
	if res == 1 {
		return nil
	}
	return golock.ErrLockConflicted
}

// Save claims the entire Capacity for this holder, so the resource
// behaves exclusively: no other Save or SaveRead can be admitted while
// it's live.
func (s *Store) Save(ctx context.Context, key *golock.Key) error {
	return s.acquire(ctx, key, s.capacity)
}

// SaveRead claims a single unit of Capacity.
func (s *Store) SaveRead(ctx context.Context, key *golock.Key) error {
	return s.acquire(ctx, key, 1)
}

func (s *Store) PutOffExpiration(ctx context.Context, key *golock.Key, ttl time.Duration) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}
	pk := s.permitsKey(key.ResourceID())
	wk := s.weightsKey(key.ResourceID())
	newScore := time.Now().Add(ttl).UnixMilli()

	res, err := refreshScript.Run(ctx, s.client, []string{pk, wk}, token, newScore).Int()
	if err != nil {
		return fmt.Errorf("semaphore: refresh: %w", err)
	}
	if res == 1 {
		return nil
	}
	return golock.ErrLockConflicted
}

func (s *Store) Delete(ctx context.Context, key *golock.Key) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}
	pk := s.permitsKey(key.ResourceID())
	wk := s.weightsKey(key.ResourceID())

	if _, err := releaseScript.Run(ctx, s.client, []string{pk, wk}, token).Int(); err != nil {
		return fmt.Errorf("semaphore: release: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key *golock.Key) (bool, error) {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return false, err
	}
	pk := s.permitsKey(key.ResourceID())

	score, err := s.client.ZScore(ctx, pk, token).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("semaphore: zscore: %w", err)
	}
	return int64(score) > time.Now().UnixMilli(), nil
}
