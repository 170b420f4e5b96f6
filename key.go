package golock

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// MaxResourceIDBytes is the maximum length, in UTF-8 bytes, of a Key's
// resource identifier before any backend-specific encoding is applied
// (MongoDB _id and ZooKeeper node-name limits are both well above this).
const MaxResourceIDBytes = 1024

// FencingTokenBytes is the number of random bytes making up a fencing
// token before base64 encoding (44 ASCII chars once encoded).
const FencingTokenBytes = 32

// Key identifies a locked resource. It carries per-store ephemeral state
// (fencing tokens, backend handles) keyed by store identity, and a
// monotonic expiration instant used by the Lock coordinator to detect
// that a hold has outlived its own deadline.
//
// A Key must never be used with two stores of different identities
// concurrently: per-store state is written at most once per (Key, Store)
// pair and is stable thereafter until Reset.
type Key struct {
	resourceID string

	mu           sync.Mutex
	state        map[string]*StoreState
	expiresAt    time.Time
	hasExpiry    bool
	serializable bool
}

// StoreState is the per-store blob a Key carries for one backend identity:
// a fencing token (lazily generated on first use) plus an arbitrary
// backend-owned handle (e.g. a ZooKeeper node path, a Mongo ObjectID).
type StoreState struct {
	FencingToken string
	Handle       any
}

// NewKey constructs a Key for resourceID. resourceID must be non-empty
// UTF-8 of at most MaxResourceIDBytes bytes.
func NewKey(resourceID string) (*Key, error) {
	if resourceID == "" || len(resourceID) > MaxResourceIDBytes {
		return nil, wrap(KindInvalidArgument, fmt.Errorf("resource id must be 1..%d bytes, got %d", MaxResourceIDBytes, len(resourceID)))
	}
	return &Key{
		resourceID:   resourceID,
		state:        make(map[string]*StoreState),
		serializable: true,
	}, nil
}

// ResourceID returns the immutable resource identifier.
func (k *Key) ResourceID() string {
	return k.resourceID
}

// StateFor returns the StoreState for storeIdentity, creating an empty one
// on first access. storeIdentity should be a stable per-backend name
// (e.g. "redis", "pg-advisory") so unrelated stores never collide.
func (k *Key) StateFor(storeIdentity string) *StoreState {
	k.mu.Lock()
	defer k.mu.Unlock()

	s, ok := k.state[storeIdentity]
	if !ok {
		s = &StoreState{}
		k.state[storeIdentity] = s
	}
	return s
}

// FencingToken returns the fencing token for storeIdentity, generating one
// lazily on first use: 32 random bytes, base64-encoded.
func (k *Key) FencingToken(storeIdentity string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	s, ok := k.state[storeIdentity]
	if !ok {
		s = &StoreState{}
		k.state[storeIdentity] = s
	}
	if s.FencingToken != "" {
		return s.FencingToken, nil
	}

	b := make([]byte, FencingTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", wrap(KindLockAcquiring, fmt.Errorf("generate fencing token: %w", err))
	}
	s.FencingToken = base64.StdEncoding.EncodeToString(b)
	return s.FencingToken, nil
}

// MarkNonSerializable clears the serializable flag. Backends whose holder
// identity cannot survive a process boundary (ZooKeeper session, an open
// os.File handle) call this when they inject state into the Key.
func (k *Key) MarkNonSerializable() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.serializable = false
}

// Serializable reports whether this Key's current state can, in
// principle, be transported across a process boundary.
func (k *Key) Serializable() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.serializable
}

// ResetExpiration clears the local expiry clock. Called at the start of
// every acquire/refresh attempt (spec §4.2 step 1, §4.3) so a stale
// deadline from a previous hold never leaks into a fresh one.
func (k *Key) ResetExpiration() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.hasExpiry = false
	k.expiresAt = time.Time{}
}

// SetExpiration force-sets the expiration instant. Used once per
// acquire/refresh cycle, right after ResetExpiration, to record the
// deadline the caller actually asked for (spec §4.2 step 4: "translate
// the store's default TTL into the caller's requested TTL").
func (k *Key) SetExpiration(ttl time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.expiresAt = time.Now().Add(ttl)
	k.hasExpiry = true
}

// IsExpired reports whether the local deadline has already elapsed. Pure
// function over the Key's local clock; never contacts the backend.
func (k *Key) IsExpired() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.hasExpiry {
		return false
	}
	return time.Now().After(k.expiresAt)
}

// RemainingLifetime returns how long until the local deadline elapses, or
// zero if it already has. A Key with no deadline set returns -1 to signal
// "unbounded" rather than zero, which would read as already-expired.
func (k *Key) RemainingLifetime() time.Duration {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.hasExpiry {
		return -1
	}
	remaining := time.Until(k.expiresAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears all per-store state and the expiry clock, returning the Key
// to its freshly-constructed state for reuse by a new Lock.
func (k *Key) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.state = make(map[string]*StoreState)
	k.hasExpiry = false
	k.expiresAt = time.Time{}
	k.serializable = true
}
