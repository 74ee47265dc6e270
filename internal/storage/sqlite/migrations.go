package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrate runs database migrations
func (s *SQLiteDB) migrate() error {
	ctx := context.Background()

	if err := s.createMigrationsTable(ctx); err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "initial_schema", up: migrateV1},
		{version: 2, name: "quality_score", up: migrateV2},
		{version: 3, name: "export_fields", up: migrateV3},
		{version: 4, name: "export_job_link", up: migrateV4},
		{version: 5, name: "candidates_progress_export_error", up: migrateV5},
	}

	for _, m := range migrations {
		if err := s.runMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
	}

	return nil
}

type migration struct {
	version int
	name    string
	up      func(context.Context, *sql.Tx) error
}

func (s *SQLiteDB) createMigrationsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	)`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *SQLiteDB) runMigration(ctx context.Context, m migration) error {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.version).Scan(&count)
	if err != nil {
		return err
	}

	if count > 0 {
		return nil // Already applied
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.up(ctx, tx); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, strftime('%s', 'now'))",
		m.version, m.name)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// migrateV1 creates the initial schema
func migrateV1(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, schemaSQL)
	return err
}

// migrateV2 adds the quality score column for keeper recommendations.
// No-op on fresh databases where the column is part of the base schema.
func migrateV2(ctx context.Context, tx *sql.Tx) error {
	return addColumnIfMissing(ctx, tx, "files", "quality_score", "REAL NOT NULL DEFAULT 0")
}

// migrateV3 adds export bookkeeping columns
func migrateV3(ctx context.Context, tx *sql.Tx) error {
	if err := addColumnIfMissing(ctx, tx, "files", "output_path", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return err
	}
	return addColumnIfMissing(ctx, tx, "files", "exported_at", "INTEGER")
}

// migrateV4 links export jobs to the import job they draw files from
func migrateV4(ctx context.Context, tx *sql.Tx) error {
	return addColumnIfMissing(ctx, tx, "jobs", "source_job_id", "TEXT NOT NULL DEFAULT ''")
}

// migrateV5 adds the serialized timestamp candidate set and export
// error to files, and the current filename to job progress
func migrateV5(ctx context.Context, tx *sql.Tx) error {
	if err := addColumnIfMissing(ctx, tx, "files", "candidates", "TEXT NOT NULL DEFAULT '[]'"); err != nil {
		return err
	}
	if err := addColumnIfMissing(ctx, tx, "files", "export_error", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return err
	}
	return addColumnIfMissing(ctx, tx, "jobs", "current_filename", "TEXT NOT NULL DEFAULT ''")
}

// addColumnIfMissing checks PRAGMA table_info before ALTER TABLE so
// migrations stay re-runnable against databases created from the full
// base schema.
func addColumnIfMissing(ctx context.Context, tx *sql.Tx, table, column, definition string) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}
