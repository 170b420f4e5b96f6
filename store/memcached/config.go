// Package memcached implements golock's Memcached backend: ADD for
// first-time exclusive acquisition, CAS-verified refresh, and an
// "extend-then-delete" release that shrinks the TTL to a short grace
// window before deleting so a contender racing the delete never observes
// a stale value outliving it — the three operations spec.md §4.6 names.
package memcached

import (
	"fmt"
	"time"

	"github.com/oliveiracleidson/golock"
)

// Config configures a Store.
type Config struct {
	Addrs        []string
	DefaultTTL   time.Duration
	ReleaseGrace time.Duration
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
//
// - ReleaseGrace: 1s, the window release shrinks the TTL to before
//   deleting (spec.md §4.6's "extend-then-delete" trick)
func (c *Config) WithDefaults() *Config {
	if c.DefaultTTL == 0 {
		c.DefaultTTL = 30 * time.Second
	}
	if c.ReleaseGrace == 0 {
		c.ReleaseGrace = 1 * time.Second
	}
	return c
}

// Validate checks Config parameters.
func (c *Config) Validate() error {
	if len(c.Addrs) == 0 {
		return fmt.Errorf("%w: at least one Addr is required", golock.ErrInvalidArgument)
	}
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("%w: DefaultTTL must be positive", golock.ErrInvalidArgument)
	}
	return nil
}

// SetAddrs sets Addrs in fluent style.
func (c *Config) SetAddrs(v ...string) *Config { c.Addrs = v; return c }

// SetDefaultTTL sets DefaultTTL in fluent style.
func (c *Config) SetDefaultTTL(v time.Duration) *Config { c.DefaultTTL = v; return c }

// SetReleaseGrace sets ReleaseGrace in fluent style.
func (c *Config) SetReleaseGrace(v time.Duration) *Config { c.ReleaseGrace = v; return c }
