// Package zookeeper implements golock's ZooKeeper backend: one ephemeral
// node per resource, created under a configurable root path. A node's
// lifetime is bound to the creating session rather than any TTL, so
// PutOffExpiration is a no-op and held Keys are marked non-serializable —
// session identity cannot migrate to another process, per spec.md §4.6.
package zookeeper

import (
	"fmt"
	"time"

	"github.com/oliveiracleidson/golock"
)

// Config configures a Store.
type Config struct {
	Servers        []string
	SessionTimeout time.Duration
	RootPath       string
}

// NewConfig returns a Config with defaults applied.
func NewConfig() *Config {
	return (&Config{}).WithDefaults()
}

// WithDefaults fills in zero-valued fields and returns the same instance.
//
// Defaults:
//
// - SessionTimeout: 10s
//
// - RootPath: /golock
func (c *Config) WithDefaults() *Config {
	if c.SessionTimeout == 0 {
		c.SessionTimeout = 10 * time.Second
	}
	if c.RootPath == "" {
		c.RootPath = "/golock"
	}
	return c
}

// Validate checks Config parameters.
func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("%w: at least one server is required", golock.ErrInvalidArgument)
	}
	return nil
}

// SetServers sets Servers in fluent style.
func (c *Config) SetServers(v ...string) *Config { c.Servers = v; return c }

// SetSessionTimeout sets SessionTimeout in fluent style.
func (c *Config) SetSessionTimeout(v time.Duration) *Config { c.SessionTimeout = v; return c }

// SetRootPath sets RootPath in fluent style.
func (c *Config) SetRootPath(v string) *Config { c.RootPath = v; return c }
