package lending

import (
	"context"
	"fmt"
)

// Truncate empties every table and restarts the identity sequences.
func (r *PostgresRepository) Truncate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, "TRUNCATE loans, sessions, items, accounts RESTART IDENTITY"); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	return nil
}
