// Package filelock implements golock's single-host backend: one OS
// advisory file lock (flock(2) via github.com/gofrs/flock) per resource,
// living under a configured directory. It coordinates processes on one
// machine only — there is no network protocol here — and carries no TTL:
// the lock is held exactly as long as the owning file descriptor is open.
package filelock

import (
	"fmt"

	"github.com/oliveiracleidson/golock"
)

// Config configures a Store.
type Config struct {
	Dir string
}

// NewConfig returns a Config with defaults applied.
func NewConfig() *Config {
	return (&Config{}).WithDefaults()
}

// WithDefaults fills in zero-valued fields and returns the same instance.
//
// Defaults:
//
// - Dir: /var/run/golock
func (c *Config) WithDefaults() *Config {
	if c.Dir == "" {
		c.Dir = "/var/run/golock"
	}
	return c
}

// Validate checks Config parameters.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("%w: Dir is required", golock.ErrInvalidArgument)
	}
	return nil
}

// SetDir sets Dir in fluent style.
func (c *Config) SetDir(v string) *Config { c.Dir = v; return c }
