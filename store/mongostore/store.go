package mongostore

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oliveiracleidson/golock"
)

// Store implements golock.Store (Persisting + Expiring) against a single
// MongoDB collection, one document per held resource.
//
// The underlying *mongo.Client is connected lazily on first use, under a
// sync.Once, rather than at construction: spec.md's "Lazy connection"
// guidance for this backend, preserved exactly rather than dialing eagerly.
type Store struct {
	identity string
	cfg      *Config

	connectOnce sync.Once
	connectErr  error
	client      *mongo.Client
	coll        *mongo.Collection
}

type lockDoc struct {
	ID        string    `bson:"_id"`
	Token     string    `bson:"token"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// New returns a Store that will connect to cfg.URI on first operation.
func New(cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{identity: "mongo", cfg: cfg}, nil
}

func (s *Store) Identity() string { return s.identity }

func (s *Store) SupportsExpiry() bool { return true }

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) connect(ctx context.Context) error {
	s.connectOnce.Do(func() {
		connCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		defer cancel()

		client, err := mongo.Connect(connCtx, options.Client().ApplyURI(s.cfg.URI))
		if err != nil {
			s.connectErr = fmt.Errorf("mongostore: connect: %w", err)
			return
		}
		s.client = client
		s.coll = client.Database(s.cfg.Database).Collection(s.cfg.Collection)
	})
	return s.connectErr
}

// maybeEnsureTTLIndex creates the TTL index on expires_at with probability
// cfg.GCProbability per spec.md §4.6: a Bernoulli trial on every Save call
// rather than a deterministic once-per-startup index creation, so the
// index gets installed lazily without requiring admin access up front and
// without every single Save paying the createIndex round trip.
func (s *Store) maybeEnsureTTLIndex(ctx context.Context) {
	if rand.Float64() >= s.cfg.GCProbability {
		return
	}
	_, _ = s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
}

// EnsureTTLIndex creates the TTL index unconditionally; callers that want
// the index installed deterministically at startup rather than waiting on
// the probabilistic trial can call this once during initialization.
func (s *Store) EnsureTTLIndex(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

func (s *Store) Save(ctx context.Context, key *golock.Key) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}

	ttl := key.RemainingLifetime()
	if ttl < 0 {
		ttl = s.cfg.DefaultTTL
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	filter := bson.M{
		"_id": key.ResourceID(),
		"$or": []bson.M{
			{"token": token},
			{"expires_at": bson.M{"$lte": now}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"token":      token,
			"expires_at": expiresAt,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var result lockDoc
	err = s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return golock.ErrLockConflicted
		}
		if mongo.IsDuplicateKeyError(err) {
			return golock.ErrLockConflicted
		}
		return fmt.Errorf("mongostore: save: %w", err)
	}

	s.maybeEnsureTTLIndex(ctx)
	return nil
}

func (s *Store) PutOffExpiration(ctx context.Context, key *golock.Key, ttl time.Duration) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}

	expiresAt := time.Now().UTC().Add(ttl)
	filter := bson.M{"_id": key.ResourceID(), "token": token}
	update := bson.M{"$set": bson.M{"expires_at": expiresAt}}

	result, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("mongostore: refresh: %w", err)
	}
	if result.MatchedCount == 0 {
		return golock.ErrLockConflicted
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key *golock.Key) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}

	_, err = s.coll.DeleteOne(ctx, bson.M{"_id": key.ResourceID(), "token": token})
	if err != nil {
		return fmt.Errorf("mongostore: delete: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key *golock.Key) (bool, error) {
	if err := s.connect(ctx); err != nil {
		return false, err
	}
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return false, err
	}

	var doc lockDoc
	err = s.coll.FindOne(ctx, bson.M{
		"_id":        key.ResourceID(),
		"token":      token,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mongostore: exists: %w", err)
	}
	return true, nil
}
