package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oliveiracleidson/golock"
)

// Store implements golock.Store and golock.Shared against a single Redis
// node (or anything speaking the redis.UniversalClient surface, which
// includes miniredis-backed test clients).
type Store struct {
	identity   string
	client     redis.UniversalClient
	keyPrefix  string
	defaultTTL time.Duration
}

// New constructs a Store from an already-connected client, e.g.
// redis.NewClient(&redis.Options{Addr: cfg.Addr, ...}).
func New(client redis.UniversalClient, cfg *Config) *Store {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Store{
		identity:   "redis",
		client:     client,
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
	}
}

func (s *Store) Identity() string { return s.identity }

func (s *Store) writerKey(resource string) string  { return s.keyPrefix + resource + ":w" }
func (s *Store) readersKey(resource string) string { return s.keyPrefix + resource + ":r" }

func (s *Store) Save(ctx context.Context, key *golock.Key) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}
	wk := s.writerKey(key.ResourceID())
	rk := s.readersKey(key.ResourceID())

	res, err := acquireWriterScript.Run(ctx, s.client, []string{wk, rk},
		token, s.defaultTTL.Milliseconds(), time.Now().UnixMilli()).Int()
	if err != nil {
		return fmt.Errorf("redislock: acquire: %w", err)
	}
	if res == 1 {
		return nil
	}
	return golock.ErrLockConflicted
}

func (s *Store) SaveRead(ctx context.Context, key *golock.Key) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}
	wk := s.writerKey(key.ResourceID())
	rk := s.readersKey(key.ResourceID())

	if err := s.reapReaders(ctx, rk); err != nil {
		return fmt.Errorf("redislock: reap readers: %w", err)
	}

	score := float64(time.Now().Add(s.defaultTTL).UnixMilli())
	res, err := addReaderScript.Run(ctx, s.client, []string{wk, rk}, token, score).Int()
	if err != nil {
		return fmt.Errorf("redislock: add reader: %w", err)
	}
	if res == 0 {
		return golock.ErrLockConflicted
	}
	return nil
}

func (s *Store) PutOffExpiration(ctx context.Context, key *golock.Key, ttl time.Duration) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}
	rk := s.readersKey(key.ResourceID())

	score, err := s.client.ZScore(ctx, rk, token).Result()
	if err == nil {
		newScore := float64(time.Now().Add(ttl).UnixMilli())
		res, err := refreshReaderScript.Run(ctx, s.client, []string{rk}, token, newScore).Int()
		if err != nil {
			return fmt.Errorf("redislock: refresh reader: %w", err)
		}
		if res == 1 {
			return nil
		}
		return golock.ErrLockConflicted
	} else if err != redis.Nil {
		return fmt.Errorf("redislock: zscore: %w", err)
	}
	_ = score

	wk := s.writerKey(key.ResourceID())
	res, err := refreshScript.Run(ctx, s.client, []string{wk}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redislock: refresh CAS: %w", err)
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
	wk := s.writerKey(key.ResourceID())
	rk := s.readersKey(key.ResourceID())

	if _, err := removeReaderScript.Run(ctx, s.client, []string{rk}, token).Int(); err != nil {
		return fmt.Errorf("redislock: remove reader: %w", err)
	}
	if _, err := deleteScript.Run(ctx, s.client, []string{wk}, token).Int(); err != nil {
		return fmt.Errorf("redislock: delete CAS: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key *golock.Key) (bool, error) {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return false, err
	}
	wk := s.writerKey(key.ResourceID())
	rk := s.readersKey(key.ResourceID())

	val, err := s.client.Get(ctx, wk).Result()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("redislock: get: %w", err)
	}
	if val == token {
		return true, nil
	}

	_, err = s.client.ZScore(ctx, rk, token).Result()
	if err == nil {
		return true, nil
	}
	if err == redis.Nil {
		return false, nil
	}
	return false, fmt.Errorf("redislock: zscore: %w", err)
}

func (s *Store) reapReaders(ctx context.Context, readersKey string) error {
	now := float64(time.Now().UnixMilli())
	return s.client.ZRemRangeByScore(ctx, readersKey, "-inf", fmt.Sprintf("(%f", now)).Err()
}
