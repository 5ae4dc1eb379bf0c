package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestStore starts a PostgreSQL container and returns an initialized store.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("events_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := Open(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Initialize(ctx))
	return store
}

func TestMigrationURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db", migrationURL("postgres://u:p@h:5432/db"))
	assert.Equal(t, "pgx5://u:p@h/db", migrationURL("postgresql://u:p@h/db"))
	assert.Equal(t, "pgx5://h/db", migrationURL("pgx5://h/db"))
}

func TestStore_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	events, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	// Initialize stays idempotent once the schema exists.
	require.NoError(t, store.Initialize(ctx))

	first, err := store.Insert(ctx, "t", "p", time.Now())
	require.NoError(t, err)
	second, err := store.Insert(ctx, "u", `{"k":1}`, time.Now())
	require.NoError(t, err)
	assert.Greater(t, second, first)

	events, err = store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "t", events[0].EventType)
	assert.Equal(t, "p", events[0].EventPayload)
	assert.Equal(t, `{"k":1}`, events[1].EventPayload)
}

func TestStore_ConcurrentInserts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Insert(ctx, "concurrent", "payload", time.Now())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	events, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 20)
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].ID, events[i-1].ID)
	}
}
