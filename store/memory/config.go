// Package memory implements golock's in-memory Store: a single mutex
// guarding a map of resource -> {writer token, reader token set,
// expiration}, used both standalone (single-process locking, tests) and
// as the intra-process guard other stores compose (store/pgadvisory keeps
// one per Store to serialize same-process contenders before ever reaching
// the database, per spec.md §4.6).
package memory

import (
	"fmt"
	"time"

	"github.com/oliveiracleidson/golock"
)

// Config configures a Store. DefaultTTL is the deadline granted by a bare
// Save/SaveRead call (spec.md §4.2 step 4: the coordinator immediately
// calls Refresh to translate this into the caller's requested TTL when
// one was configured).
type Config struct {
	DefaultTTL time.Duration
}

// NewConfig returns a Config with defaults applied.
func NewConfig() *Config {
	return (&Config{}).WithDefaults()
}

// WithDefaults fills in zero-valued fields and returns the same instance.
//
// Defaults:
//
// - DefaultTTL: 30s
func (c *Config) WithDefaults() *Config {
	if c.DefaultTTL == 0 {
		c.DefaultTTL = 30 * time.Second
	}
	return c
}

// Validate checks Config parameters.
func (c *Config) Validate() error {
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("%w: DefaultTTL must be positive", golock.ErrInvalidArgument)
	}
	return nil
}

// SetDefaultTTL sets DefaultTTL in fluent style.
func (c *Config) SetDefaultTTL(v time.Duration) *Config {
	c.DefaultTTL = v
	return c
}
