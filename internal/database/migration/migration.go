package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_passports",
		SQL: `CREATE TABLE IF NOT EXISTS passports (
  id               TEXT        PRIMARY KEY,
  kind             TEXT        NOT NULL,
  documents        JSONB       NOT NULL DEFAULT '{}'::jsonb,
  aggregate_status TEXT        NOT NULL DEFAULT 'no_documents',
  revision         BIGINT      NOT NULL DEFAULT 1 CHECK (revision >= 1),
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_passports_kind",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_passports_kind ON passports (kind);`,
	},
	{
		Name: "create_index_passports_aggregate_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_passports_aggregate_status ON passports (aggregate_status);`,
	},
	{
		Name: "create_index_passports_updated_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_passports_updated_at ON passports (updated_at);`,
	},
}

// EnsureMigrated checks if the 'passports' table exists and runs the schema
// steps if it doesn't. Steps are idempotent so a partial earlier run is safe
// to repeat.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	start := time.Now()

	var exists bool
	query := "SELECT to_regclass('public.passports') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("migration sentinel check failed", zap.Error(err))
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("schema already exists, skipping migration",
			zap.Duration("elapsed", time.Since(start)))
		return nil
	}

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("migration step failed",
				zap.String("step", step.Name),
				zap.Error(err))
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		log.Info("migration step applied",
			zap.String("step", step.Name),
			zap.Duration("elapsed", time.Since(stepStart)))
	}

	log.Info("migration complete", zap.Duration("elapsed", time.Since(start)))
	return nil
}
