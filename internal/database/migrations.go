package database

import (
	"context"
	"fmt"
)

// migration defines a single idempotent schema migration.
type migration struct {
	name  string
	sql   string
	check string // query that returns true if the migration is already applied
}

// migrations is the ordered list of schema migrations to apply.
// Each must be idempotent (use IF NOT EXISTS, IF EXISTS, etc.).
var migrations = []migration{
	{
		name:  "add media_sources.owner",
		sql:   `ALTER TABLE media_sources ADD COLUMN IF NOT EXISTS owner text NOT NULL DEFAULT ''`,
		check: `SELECT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'media_sources' AND column_name = 'owner')`,
	},
	{
		name:  "add transcripts.diagnostics",
		sql:   `ALTER TABLE transcripts ADD COLUMN IF NOT EXISTS diagnostics jsonb`,
		check: `SELECT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'transcripts' AND column_name = 'diagnostics')`,
	},
	{
		name:  "add render_artifacts.size_bytes",
		sql:   `ALTER TABLE render_artifacts ADD COLUMN IF NOT EXISTS size_bytes bigint`,
		check: `SELECT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'render_artifacts' AND column_name = 'size_bytes')`,
	},
	{
		name:  "add clip_jobs status index",
		sql:   `CREATE INDEX IF NOT EXISTS idx_clip_jobs_status ON clip_jobs (status)`,
		check: `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_clip_jobs_status')`,
	},
}

// Migrate runs all pending schema migrations. For each migration, it first
// checks whether the change is already present. If not, it attempts to apply
// it. An apply failure is fatal: the application's queries depend on these
// columns existing.
func (db *DB) Migrate(ctx context.Context) error {
	var pending []migration
	for _, m := range migrations {
		if m.check != "" {
			var exists bool
			if err := db.Pool.QueryRow(ctx, m.check).Scan(&exists); err == nil && exists {
				continue
			}
		}
		pending = append(pending, m)
	}

	if len(pending) == 0 {
		db.log.Debug().Msg("no pending migrations")
		return nil
	}

	for _, m := range pending {
		db.log.Info().Str("migration", m.name).Msg("applying migration")
		if _, err := db.Pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %q: %w", m.name, err)
		}
	}

	db.log.Info().Int("applied", len(pending)).Msg("migrations complete")
	return nil
}
