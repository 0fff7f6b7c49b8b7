package lending

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresMigrationLock serializes schema setup across processes sharing a database.
const postgresMigrationLock = 7_311_046_001

//nolint:gochecknoglobals
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id         BIGINT  GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		name       TEXT    UNIQUE NOT NULL,
		verifier   BYTEA   NOT NULL,
		role       TEXT    NOT NULL CHECK (role IN ('member', 'admin')),
		active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at BIGINT  NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token_hash BYTEA  PRIMARY KEY,
		account_id BIGINT NOT NULL REFERENCES accounts (id),
		created_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_expires_at ON sessions (expires_at)`,
	`CREATE TABLE IF NOT EXISTS items (
		id         BIGINT  GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		title      TEXT    NOT NULL CHECK (title <> ''),
		creator    TEXT    NOT NULL CHECK (creator <> ''),
		withdrawn  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT  NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		account_id BIGINT NOT NULL REFERENCES accounts (id),
		item_id    BIGINT NOT NULL REFERENCES items (id),
		status     TEXT   NOT NULL CHECK (status IN ('open', 'closed')),
		opened_at  BIGINT NOT NULL,
		closed_at  BIGINT
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS loans_one_open_per_pair
		ON loans (account_id, item_id) WHERE status = 'open'`,
	`CREATE INDEX IF NOT EXISTS loans_item_status ON loans (item_id, status)`,
	`CREATE OR REPLACE FUNCTION loans_guard() RETURNS trigger AS $$
	BEGIN
		IF OLD.status = 'closed' THEN
			RAISE EXCEPTION 'loan is closed';
		END IF;
		IF NEW.account_id <> OLD.account_id OR NEW.item_id <> OLD.item_id THEN
			RAISE EXCEPTION 'loan references are immutable';
		END IF;
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS loans_guard ON loans`,
	`CREATE TRIGGER loans_guard BEFORE UPDATE ON loans
		FOR EACH ROW EXECUTE FUNCTION loans_guard()`,
}

// the unique index names mapped to semantic errors in the repository
const (
	pgConstraintAccountName = "accounts_name_key"
	pgConstraintOpenLoan    = "loans_one_open_per_pair"
)

func initializePostgresDB(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", int64(postgresMigrationLock)); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}

	for _, stmt := range postgresSchema {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}

	return nil
}
