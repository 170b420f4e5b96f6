// Package pgtable implements golock's relational-table backend: one row
// per held resource in an ordinary Postgres table, with the fencing token
// doubling as the ownership column the teacher's lease_id/server_nonce
// pair used to play. Acquisition, refresh and release are plain
// INSERT/UPDATE/DELETE statements guarded by a WHERE clause on that column, so
// any Postgres reachable over pgx works without extensions.
//
// For the pg_advisory_lock-based backend see store/pgadvisory instead;
// this package never takes a session-scoped advisory lock.
package pgtable

import (
	"fmt"
	"strings"

	"github.com/oliveiracleidson/golock"
)

// Config configures a Store.
type Config struct {
	ConnString               string
	LockSchema               string
	LockTableName            string
	MigrationSchema          string
	MigrationTableName       string
	CreateSchemasIfNotExists bool
}

// NewConfig returns a Config with defaults applied.
func NewConfig() *Config {
	return (&Config{CreateSchemasIfNotExists: true}).WithDefaults()
}

// WithDefaults fills in zero-valued fields and returns the same instance.
//
// Defaults:
//
// - LockSchema: public
//
// - LockTableName: golock_locks
//
// - MigrationSchema: public
//
// - MigrationTableName: golock_migrations
func (c *Config) WithDefaults() *Config {
	if c.LockSchema == "" {
		c.LockSchema = "public"
	}
	if c.LockTableName == "" {
		c.LockTableName = "golock_locks"
	}
	if c.MigrationSchema == "" {
		c.MigrationSchema = "public"
	}
	if c.MigrationTableName == "" {
		c.MigrationTableName = "golock_migrations"
	}
	return c
}

// Validate checks Config parameters.
func (c *Config) Validate() error {
	msgs := []string{}
	if c.ConnString == "" {
		msgs = append(msgs, "ConnString is required")
	}
	if c.LockTableName == c.MigrationTableName && c.LockSchema == c.MigrationSchema {
		msgs = append(msgs, "LockTableName and MigrationTableName must be different within the same schema")
	}
	if len(msgs) > 0 {
		return fmt.Errorf("%w: %s", golock.ErrInvalidArgument, strings.Join(msgs, ", "))
	}
	return nil
}

// SetConnString sets ConnString in fluent style.
func (c *Config) SetConnString(v string) *Config { c.ConnString = v; return c }

// SetLockSchema sets LockSchema in fluent style.
func (c *Config) SetLockSchema(v string) *Config { c.LockSchema = v; return c }

// SetLockTableName sets LockTableName in fluent style.
func (c *Config) SetLockTableName(v string) *Config { c.LockTableName = v; return c }

// SetMigrationSchema sets MigrationSchema in fluent style.
func (c *Config) SetMigrationSchema(v string) *Config { c.MigrationSchema = v; return c }

// SetMigrationTableName sets MigrationTableName in fluent style.
func (c *Config) SetMigrationTableName(v string) *Config { c.MigrationTableName = v; return c }

// SetCreateSchemasIfNotExists sets CreateSchemasIfNotExists in fluent style.
func (c *Config) SetCreateSchemasIfNotExists(v bool) *Config {
	c.CreateSchemasIfNotExists = v
	return c
}
