package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/oliveiracleidson/golock"
)

// Store implements golock.Store and golock.BlockingExclusive against a
// ZooKeeper ensemble using ephemeral nodes.
type Store struct {
	identity string
	conn     *zk.Conn
	cfg      *Config
}

// New connects to the ensemble and ensures Config.RootPath exists as a
// persistent node.
func New(cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, _, err := zk.Connect(cfg.Servers, cfg.SessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("zookeeper: connect: %w", err)
	}

	s := &Store{identity: "zookeeper", conn: conn, cfg: cfg}
	if err := s.ensureRoot(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureRoot() error {
	exists, _, err := s.conn.Exists(s.cfg.RootPath)
	if err != nil {
		return fmt.Errorf("zookeeper: check root: %w", err)
	}
	if exists {
		return nil
	}
	_, err = s.conn.Create(s.cfg.RootPath, nil, 0, zk.WorldACL(zk.PermAll))
	if err != nil && err != zk.ErrNodeExists {
		return fmt.Errorf("zookeeper: create root: %w", err)
	}
	return nil
}

func (s *Store) Identity() string { return s.identity }

func (s *Store) Close() { s.conn.Close() }

func (s *Store) Save(ctx context.Context, key *golock.Key) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}
	path := nodePath(s.cfg.RootPath, key.ResourceID())

	_, err = s.conn.Create(path, []byte(token), zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if err == nil {
		key.StateFor(s.identity).Handle = path
		key.MarkNonSerializable()
		return nil
	}
	if err != zk.ErrNodeExists {
		return fmt.Errorf("zookeeper: create: %w", err)
	}

	// Node exists: if the data is our own token, this is a self-reacquire
	// of a node we already hold (idempotent Save), not a conflict.
	data, _, getErr := s.conn.Get(path)
	if getErr != nil {
		return golock.ErrLockConflicted
	}
	if string(data) != token {
		return golock.ErrLockConflicted
	}
	key.StateFor(s.identity).Handle = path
	key.MarkNonSerializable()
	return nil
}

// WaitAndSave blocks until the ephemeral node can be created, waking on
// ZooKeeper's own watch notification instead of a fixed polling interval
// — session-lifetime nodes give a precise deletion event to wait on.
func (s *Store) WaitAndSave(ctx context.Context, key *golock.Key) error {
	for {
		err := s.Save(ctx, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, golock.ErrLockConflicted) {
			return err
		}

		path := nodePath(s.cfg.RootPath, key.ResourceID())
		exists, _, events, watchErr := s.conn.ExistsW(path)
		if watchErr != nil {
			return fmt.Errorf("zookeeper: watch: %w", watchErr)
		}
		if !exists {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-events:
			continue
		}
	}
}

// PutOffExpiration is a no-op: the node's lifetime is bound to the
// session, not a TTL. It still verifies the node is present under our
// token so a caller that lost its session learns about the conflict.
func (s *Store) PutOffExpiration(ctx context.Context, key *golock.Key, ttl time.Duration) error {
	held, err := s.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !held {
		return golock.ErrLockConflicted
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key *golock.Key) error {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return err
	}
	path := nodePath(s.cfg.RootPath, key.ResourceID())

	data, _, getErr := s.conn.Get(path)
	if getErr == zk.ErrNoNode {
		return nil
	}
	if getErr != nil {
		return fmt.Errorf("zookeeper: get: %w", getErr)
	}
	if string(data) != token {
		return nil
	}

	if err := s.conn.Delete(path, -1); err != nil && err != zk.ErrNoNode {
		return fmt.Errorf("zookeeper: delete: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key *golock.Key) (bool, error) {
	token, err := key.FencingToken(s.identity)
	if err != nil {
		return false, err
	}
	path := nodePath(s.cfg.RootPath, key.ResourceID())

	data, _, getErr := s.conn.Get(path)
	if getErr == zk.ErrNoNode {
		return false, nil
	}
	if getErr != nil {
		return false, fmt.Errorf("zookeeper: get: %w", getErr)
	}
	return string(data) == token, nil
}
