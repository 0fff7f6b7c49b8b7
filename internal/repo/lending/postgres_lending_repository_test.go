package lending_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mkrupp/homecase-lending/internal/repo/lending"
)

const postgresTestURLEnv = "LENDING_TEST_POSTGRES_URL"

// newPostgresRepo connects to the database named by LENDING_TEST_POSTGRES_URL
// and empties it. The subtests share the database, so they run sequentially.
func newPostgresRepo(t *testing.T) lending.Repository {
	t.Helper()

	ctx := context.Background()

	repo, err := lending.NewPostgresRepository(ctx, lending.PostgresRepositoryConfig{
		URL:      os.Getenv(postgresTestURLEnv),
		MaxConns: 8,
		MinConns: 1,
	})
	require.NoError(t, err)

	require.NoError(t, repo.Truncate(ctx))

	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

//nolint:paralleltest
func TestPostgresRepository(t *testing.T) {
	if os.Getenv(postgresTestURLEnv) == "" {
		t.Skipf("%s not set", postgresTestURLEnv)
	}

	runRepositoryContract(t, newPostgresRepo)
}
