// Package semaphore implements golock's bounded-capacity backend: up to
// Capacity concurrent holders of a resource, tracked in a single Redis
// sorted set scored by expiry epoch milliseconds, with a companion hash
// recording each holder's weight. An exclusive Save claims the full
// Capacity in one member (nothing else can be admitted while it's held);
// a shared SaveRead claims a single unit and coexists with other readers
// up to the configured limit. The data model follows the permit-ledger
// sorted-set design used for Redis-backed distributed semaphores: one
// ZSET per resource, member = caller token, score = expiry, capacity
// enforced by summing live weights before admitting a new member.
package semaphore

import (
	"fmt"
	"time"

	"github.com/oliveiracleidson/golock"
)

// Config configures a Store.
type Config struct {
	Addr       string
	Username   string
	Password   string
	DB         int
	KeyPrefix  string
	Capacity   int
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
// - KeyPrefix: "golock:sem:"
//
// - Capacity: 1
//
// - DefaultTTL: 30s
func (c *Config) WithDefaults() *Config {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "golock:sem:"
	}
	if c.Capacity == 0 {
		c.Capacity = 1
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = 30 * time.Second
	}
	return c
}

// Validate checks Config parameters.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: Addr is required", golock.ErrInvalidArgument)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: Capacity must be positive", golock.ErrInvalidArgument)
	}
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("%w: DefaultTTL must be positive", golock.ErrInvalidArgument)
	}
	return nil
}

// SetAddr sets Addr in fluent style.
func (c *Config) SetAddr(v string) *Config { c.Addr = v; return c }

// SetUsername sets Username in fluent style.
func (c *Config) SetUsername(v string) *Config { c.Username = v; return c }

// SetPassword sets Password in fluent style.
func (c *Config) SetPassword(v string) *Config { c.Password = v; return c }

// SetDB sets DB in fluent style.
func (c *Config) SetDB(v int) *Config { c.DB = v; return c }

// SetKeyPrefix sets KeyPrefix in fluent style.
func (c *Config) SetKeyPrefix(v string) *Config { c.KeyPrefix = v; return c }

// SetCapacity sets Capacity in fluent style.
func (c *Config) SetCapacity(v int) *Config { c.Capacity = v; return c }

// SetDefaultTTL sets DefaultTTL in fluent style.
func (c *Config) SetDefaultTTL(v time.Duration) *Config { c.DefaultTTL = v; return c }
