package pgtable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oliveiracleidson/golock"
)

// Store implements golock.Store (Persisting + Expiring) against a single
// Postgres table, one row per held resource.
type Store struct {
	identity string
	pool     *pgxpool.Pool
	cfg      *Config
}

// New connects a pgxpool.Pool and ensures the lock/migration schema and
// tables exist, running any outstanding migration.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("pgtable: connect: %w", err)
	}

	s := &Store{identity: "pgtable", pool: pool, cfg: cfg}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgtable: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Identity() string { return s.identity }

func (s *Store) Close() { s.pool.Close() }

func (s *Store) SupportsExpiry() bool { return true }

func (s *Store) table() string { return `"` + s.cfg.LockSchema + `"."` + s.cfg.LockTableName + `"` }

// Save inserts a new row for the resource, or — if an existing row has
// expired or already belongs to this same fencing token — overwrites it.
// That WHERE clause is what makes repeated Save calls from the same
// holder idempotent instead of conflicting with themselves.
func (s *Store) Save(ctx context.Context, key *golock.Key) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}
	ttl := key.RemainingLifetime()
	if ttl < 0 {
		ttl = 24 * time.Hour
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.table()+` (resource_id, token, valid_until)
		VALUES ($1, $2, NOW() + $3 * INTERVAL '1 millisecond')
		ON CONFLICT (resource_id) DO UPDATE SET
			token = EXCLUDED.token,
			valid_until = EXCLUDED.valid_until,
			updated_at = NOW()
		WHERE `+s.cfg.LockTableName+`.valid_until < NOW()
			OR `+s.cfg.LockTableName+`.token = EXCLUDED.token
	`, key.ResourceID(), token, ttl.Milliseconds())
	if err != nil {
		return fmt.Errorf("pgtable: save: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return golock.ErrLockConflicted
	}
	return nil
}

// SaveRead is unsupported: pgtable only implements the Persisting/Expiring
// tower, not Shared — a shared-read table design needs a separate
// reader-rows table this backend does not carry. Callers asking for a
// read lock against this store are promoted to exclusive by the
// coordinator.

func (s *Store) PutOffExpiration(ctx context.Context, key *golock.Key, ttl time.Duration) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.table()+`
		SET valid_until = NOW() + $2 * INTERVAL '1 millisecond', updated_at = NOW()
		WHERE resource_id = $1 AND token = $3
	`, key.ResourceID(), ttl.Milliseconds(), token)
	if err != nil {
		return fmt.Errorf("pgtable: refresh: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return golock.ErrLockConflicted
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key *golock.Key) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		DELETE FROM `+s.table()+` WHERE resource_id = $1 AND token = $2
	`, key.ResourceID(), token)
	if err != nil {
		return fmt.Errorf("pgtable: delete: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key *golock.Key) (bool, error) {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return false, err
	}
	var validUntil time.Time
	err = s.pool.QueryRow(ctx, `
		SELECT valid_until FROM `+s.table()+` WHERE resource_id = $1 AND token = $2
	`, key.ResourceID(), token).Scan(&validUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pgtable: exists: %w", err)
	}
	return validUntil.After(time.Now()), nil
}
