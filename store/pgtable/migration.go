package pgtable

import (
	"context"
	"embed"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
)

type migrationData struct {
	Version  string
	FileName string
}

var (
	//go:embed migrations/*.sql
	migrationsEmbed embed.FS
	migrationsData  = []migrationData{
		{Version: "v1", FileName: "migrations/v1.sql"},
		{Version: "v1-indexes", FileName: "migrations/v1-indexes.sql"},
	}
)

var (
	schemaExistsQuery = `SELECT EXISTS (
		SELECT schema_name FROM information_schema.schemata WHERE schema_name = $1
	);`
	tableExistsQuery = `SELECT EXISTS (
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_name = $2
	);`
)

func (s *Store) prepareSchemas(ctx context.Context) error {
	if !s.cfg.CreateSchemasIfNotExists {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+s.cfg.LockSchema); err != nil {
		return err
	}
	if s.cfg.MigrationSchema != s.cfg.LockSchema {
		if _, err := s.pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+s.cfg.MigrationSchema); err != nil {
			return err
		}
	}
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.cfg.MigrationSchema+`.`+s.cfg.MigrationTableName+` (
		id SERIAL PRIMARY KEY,
		version varchar(50) NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`)
	return err
}

// runMigrations applies any migration not already recorded in the
// migrations table, in order. Safe to call on every Store startup.
func (s *Store) runMigrations(ctx context.Context) error {
	if err := s.prepareSchemas(ctx); err != nil {
		return err
	}

	for _, m := range migrationsData {
		applied, err := s.migrationApplied(ctx, m.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) migrationApplied(ctx context.Context, version string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+s.cfg.MigrationSchema+`.`+s.cfg.MigrationTableName+` WHERE version = $1)`,
		version,
	).Scan(&exists)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}
	return exists, nil
}

func (s *Store) applyMigration(ctx context.Context, m migrationData) error {
	raw, err := migrationsEmbed.ReadFile(m.FileName)
	if err != nil {
		return err
	}
	sql := string(raw)
	sql = strings.ReplaceAll(sql, "{{ LockSchema }}", s.cfg.LockSchema)
	sql = strings.ReplaceAll(sql, "{{ LockTable }}", s.cfg.LockTableName)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, sql); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO `+s.cfg.MigrationSchema+`.`+s.cfg.MigrationTableName+` (version) VALUES ($1)`,
		m.Version,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
