// Package redislock implements golock's Redis-family backend: a Lua script
// that claims the writer key with SET PX only when no other token and no
// live reader holds it, for exclusive holds; a compare-and-set Lua script for refresh/delete so
// only the fencing-token holder can touch its own key, and a sorted set
// of per-member-scored tokens for shared (read) holds — the protocol
// spec.md §4.6 describes for single-node Redis.
package redislock

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
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
// - KeyPrefix: "golock:"
//
// - DefaultTTL: 30s
func (c *Config) WithDefaults() *Config {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "golock:"
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

// SetDefaultTTL sets DefaultTTL in fluent style.
func (c *Config) SetDefaultTTL(v time.Duration) *Config { c.DefaultTTL = v; return c }

// ParseDSN parses a "redis://[username:password@]host:port[/db]" DSN into
// a Config, per spec.md §6: the coordinator never parses DSNs, each store
// owns its own scheme.
func ParseDSN(dsn string) (*Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", golock.ErrInvalidArgument, err)
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", golock.ErrInvalidArgument, u.Scheme)
	}

	cfg := NewConfig()
	cfg.Addr = u.Host
	if u.User != nil {
		cfg.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			cfg.Password = pw
		}
	}
	if path := strings.TrimPrefix(u.Path, "/"); path != "" {
		db, err := strconv.Atoi(path)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid db path %q", golock.ErrInvalidArgument, u.Path)
		}
		cfg.DB = db
	}
	return cfg.WithDefaults(), nil
}
