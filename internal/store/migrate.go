package store

import (
	"context"
	"fmt"
)

// schema is applied at startup. Statements are idempotent so the service can
// be restarted against an existing database.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS current_songs (
		party_id   TEXT PRIMARY KEY,
		track_id   TEXT NOT NULL,
		track_name TEXT NOT NULL,
		artist     TEXT NOT NULL,
		upvotes    INT NOT NULL DEFAULT 0,
		downvotes  INT NOT NULL DEFAULT 0,
		added_by   TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS votes (
		party_id   TEXT NOT NULL,
		track_id   TEXT NOT NULL,
		device_id  TEXT NOT NULL,
		direction  TEXT NOT NULL CHECK (direction IN ('up', 'down')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (party_id, track_id, device_id)
	)`,
	`CREATE TABLE IF NOT EXISTS track_history (
		id         UUID PRIMARY KEY,
		party_id   TEXT NOT NULL,
		track_id   TEXT NOT NULL,
		track_name TEXT NOT NULL,
		artist     TEXT NOT NULL,
		downvotes  INT NOT NULL DEFAULT 0,
		skipped    BOOLEAN NOT NULL DEFAULT FALSE,
		added_by   TEXT,
		ended_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (party_id, track_id, skipped)
	)`,
	`CREATE TABLE IF NOT EXISTS queue_attributions (
		party_id TEXT NOT NULL,
		track_id TEXT NOT NULL,
		added_by TEXT NOT NULL,
		PRIMARY KEY (party_id, track_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_track_history_party ON track_history (party_id, ended_at DESC)`,
}

// Migrate creates the schema if it does not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
