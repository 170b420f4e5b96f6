// Package mongostore implements golock's MongoDB backend: one document per
// resource with a unique index on _id, an upsert-based FindOneAndUpdate for
// atomic acquisition, and a TTL index on expires_at for passive reaping of
// dead locks, following spec.md §4.6 and the upsert/filter shape of the
// pack's lock_repo.go reference file.
package mongostore

import (
	"fmt"
	"time"

	"github.com/oliveiracleidson/golock"
)

// Config configures a Store.
type Config struct {
	URI            string
	Database       string
	Collection     string
	DefaultTTL     time.Duration
	GCProbability  float64
	ConnectTimeout time.Duration

	gcProbabilitySet bool
}

// NewConfig returns a Config with defaults applied.
func NewConfig() *Config {
	return (&Config{}).WithDefaults()
}

// WithDefaults fills in zero-valued fields and returns the same instance.
//
// Defaults:
//
// - Database: golock
//
// - Collection: locks
//
// - DefaultTTL: 30s
//
// - GCProbability: 0.001 (per spec.md §4.6, a 1-in-1000 chance per Save
//   that the TTL index gets (re-)created, rather than once per startup)
//
// - ConnectTimeout: 5s
func (c *Config) WithDefaults() *Config {
	if c.Database == "" {
		c.Database = "golock"
	}
	if c.Collection == "" {
		c.Collection = "locks"
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = 30 * time.Second
	}
	if c.GCProbability == 0 && !c.gcProbabilitySet {
		c.GCProbability = 0.001
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	return c
}

// Validate checks Config parameters.
func (c *Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("%w: URI is required", golock.ErrInvalidArgument)
	}
	if c.GCProbability < 0 || c.GCProbability > 1 {
		return fmt.Errorf("%w: GCProbability must be in [0,1]", golock.ErrInvalidArgument)
	}
	return nil
}

// SetURI sets URI in fluent style.
func (c *Config) SetURI(v string) *Config { c.URI = v; return c }

// SetDatabase sets Database in fluent style.
func (c *Config) SetDatabase(v string) *Config { c.Database = v; return c }

// SetCollection sets Collection in fluent style.
func (c *Config) SetCollection(v string) *Config { c.Collection = v; return c }

// SetDefaultTTL sets DefaultTTL in fluent style.
func (c *Config) SetDefaultTTL(v time.Duration) *Config { c.DefaultTTL = v; return c }

// SetGCProbability sets GCProbability in fluent style. Explicitly setting
// it to 0 disables the TTL-index creation trial entirely, rather than
// being silently replaced by the default in WithDefaults.
func (c *Config) SetGCProbability(v float64) *Config {
	c.GCProbability = v
	c.gcProbabilitySet = true
	return c
}

// SetConnectTimeout sets ConnectTimeout in fluent style.
func (c *Config) SetConnectTimeout(v time.Duration) *Config { c.ConnectTimeout = v; return c }
