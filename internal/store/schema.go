package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

// Table names.
const (
	tableSessions = "sessions"
	tableTrials   = "trial_records"
	tableBlocks   = "completed_blocks"
	tableExports  = "exports"
)

// Times are stored as unix milliseconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		file_name TEXT NOT NULL,
		sequence_path TEXT NOT NULL DEFAULT '',
		seed INTEGER NOT NULL DEFAULT 0,
		settings TEXT NOT NULL DEFAULT '{}',
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS trial_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		block_id INTEGER NOT NULL,
		trial_index INTEGER NOT NULL,
		folder INTEGER NOT NULL,
		stimulus_id INTEGER NOT NULL,
		mode TEXT NOT NULL,
		phase INTEGER NOT NULL,
		response INTEGER,
		correct_response INTEGER NOT NULL,
		correct INTEGER NOT NULL,
		rt_ms INTEGER,
		threshold INTEGER NOT NULL,
		consecutive_correct INTEGER NOT NULL,
		reversed INTEGER NOT NULL,
		reversals INTEGER NOT NULL,
		recorded_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS trial_records_session ON trial_records (session_id, block_id)`,
	`CREATE TABLE IF NOT EXISTS completed_blocks (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		block_id INTEGER NOT NULL,
		points INTEGER NOT NULL,
		completed_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, block_id)
	)`,
	`CREATE TABLE IF NOT EXISTS exports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		content_type TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`,
}

func migrate(ctx context.Context, drv *entsql.Driver) error {
	for _, stmt := range schema {
		if err := drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("exec schema: %w", err)
		}
	}
	return nil
}
