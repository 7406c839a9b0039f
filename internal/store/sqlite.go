package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps *sql.DB for TwinBot storage. Schema is owned by the app; content
// rows (twins, stories, segments) are authored out of band and loaded at boot.
type DB struct {
	*sql.DB
}

// Open opens the SQLite database at path and applies the schema. Creates the
// file if missing.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}

	// Migration: story_progress.last_interaction was added after the first
	// deployments; probe and add for old databases.
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pragma_table_info('story_progress') WHERE name='last_interaction'").Scan(&count); err == nil && count == 0 {
		if _, err := db.ExecContext(ctx, "ALTER TABLE story_progress ADD COLUMN last_interaction DATETIME"); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating schema (story_progress.last_interaction): %w", err)
		}
	}

	return &DB{db}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.DB.Close()
}
