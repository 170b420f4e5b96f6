package pgtable_test

import (
	"testing"

	"github.com/oliveiracleidson/golock"
	"github.com/oliveiracleidson/golock/store/pgtable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_WithDefaults(t *testing.T) {
	cfg := pgtable.NewConfig()

	assert.Equal(t, "public", cfg.LockSchema)
	assert.Equal(t, "golock_locks", cfg.LockTableName)
	assert.Equal(t, "public", cfg.MigrationSchema)
	assert.Equal(t, "golock_migrations", cfg.MigrationTableName)
	assert.True(t, cfg.CreateSchemasIfNotExists)
}

func TestConfig_Validate(t *testing.T) {
	t.Run("missing conn string", func(t *testing.T) {
		cfg := pgtable.NewConfig()
		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, golock.ErrInvalidArgument)
		assert.Contains(t, err.Error(), "ConnString is required")
	})

	t.Run("same table name in same schema", func(t *testing.T) {
		cfg := pgtable.NewConfig().SetConnString("postgres://x").SetLockTableName("t").SetMigrationTableName("t")
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be different")
	})

	t.Run("valid config", func(t *testing.T) {
		cfg := pgtable.NewConfig().SetConnString("postgres://x")
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfig_Setters(t *testing.T) {
	cfg := pgtable.NewConfig()
	cfg.SetLockSchema("s").SetLockTableName("l").SetMigrationSchema("ms").SetMigrationTableName("mt").SetCreateSchemasIfNotExists(false)

	assert.Equal(t, "s", cfg.LockSchema)
	assert.Equal(t, "l", cfg.LockTableName)
	assert.Equal(t, "ms", cfg.MigrationSchema)
	assert.Equal(t, "mt", cfg.MigrationTableName)
	assert.False(t, cfg.CreateSchemasIfNotExists)
}
