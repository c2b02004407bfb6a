package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/storyblok-devtools/internal/storage"
	"github.com/scrypster/storyblok-devtools/internal/storage/postgres"
)

// postgresTestDSN returns the DSN for the test database.
// If SBDT_TEST_POSTGRES_DSN is not set, tests are skipped.
func postgresTestDSN(t *testing.T) string {
	t.Helper()

	dsn := os.Getenv("SBDT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SBDT_TEST_POSTGRES_DSN not set; skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()

	store, err := postgres.NewStore(postgresTestDSN(t))
	require.NoError(t, err, "NewStore should succeed")
	require.NoError(t, store.TruncateForTest(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Set(ctx, "k", []byte("one")))
	require.NoError(t, store.Set(ctx, "k", []byte("two")))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	require.NoError(t, store.Remove(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_EmptyKeyRejected(t *testing.T) {
	store := newTestStore(t)
	assert.ErrorIs(t, store.Set(context.Background(), "", []byte("x")), storage.ErrInvalidInput)
}
