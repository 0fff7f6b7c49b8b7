package lending

import (
	"context"
	"database/sql"
	"fmt"
)

const sqliteSchemaVersion = 1

//nolint:gochecknoglobals
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT    UNIQUE NOT NULL,
		verifier   BLOB    NOT NULL,
		role       TEXT    NOT NULL CHECK (role IN ('member', 'admin')),
		active     INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token_hash BLOB    PRIMARY KEY,
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_expires_at ON sessions (expires_at)`,
	`CREATE TABLE IF NOT EXISTS items (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		title      TEXT    NOT NULL CHECK (title <> ''),
		creator    TEXT    NOT NULL CHECK (creator <> ''),
		withdrawn  INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		item_id    INTEGER NOT NULL REFERENCES items(id),
		status     TEXT    NOT NULL CHECK (status IN ('open', 'closed')),
		opened_at  INTEGER NOT NULL,
		closed_at  INTEGER
	)`,
	// at most one open loan per (account, item)
	`CREATE UNIQUE INDEX IF NOT EXISTS loans_one_open_per_pair
		ON loans (account_id, item_id) WHERE status = 'open'`,
	`CREATE INDEX IF NOT EXISTS loans_item_status ON loans (item_id, status)`,
	`CREATE TRIGGER IF NOT EXISTS loans_closed_is_terminal
		BEFORE UPDATE OF status ON loans WHEN OLD.status = 'closed'
		BEGIN SELECT RAISE(ABORT, 'loan is closed'); END`,
	`CREATE TRIGGER IF NOT EXISTS loans_refs_immutable
		BEFORE UPDATE OF account_id, item_id ON loans
		BEGIN SELECT RAISE(ABORT, 'loan references are immutable'); END`,
}

func initializeSQLiteDB(ctx context.Context, db *sql.DB) error {
	var current int

	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if current >= sqliteSchemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range sqliteSchema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", sqliteSchemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}

	return nil
}
