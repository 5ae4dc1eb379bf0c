package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Initialize(context.Background()))
	return store
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestInitialize_CreatesTable(t *testing.T) {
	store := newTestStore(t)

	var name string
	err := store.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='events'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "events", name)
}

func TestInitialize_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(ctx))
	_, err = store.Insert(ctx, "user.login", "user123", time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Initialize(ctx))
	require.NoError(t, store.Close())

	// A fresh process start against the same file keeps existing rows.
	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Initialize(ctx))

	events, err := reopened.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestListAll_EmptyStore(t *testing.T) {
	store := newTestStore(t)

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestInsert_PersistsRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	receivedAt := time.Date(2025, 6, 1, 12, 30, 0, 500, time.UTC)

	id, err := store.Insert(ctx, "user.login", "user123", receivedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	var eventType, payload, stamp string
	err = store.db.QueryRow(`SELECT event_type, event_payload, received_at FROM events WHERE id = ?`, id).
		Scan(&eventType, &payload, &stamp)
	require.NoError(t, err)
	assert.Equal(t, "user.login", eventType)
	assert.Equal(t, `"user123"`, payload, "payload is stored JSON-encoded")
	assert.Equal(t, "2025-06-01T12:30:00.0000005Z", stamp)

	events, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.Equal(t, "user.login", events[0].EventType)
	assert.Equal(t, "user123", events[0].EventPayload)
	assert.True(t, receivedAt.Equal(events[0].ReceivedAt))
}

func TestInsert_IDsIncreaseInInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for _, eventType := range []string{"a", "b", "c"} {
		id, err := store.Insert(ctx, eventType, "p", time.Now())
		require.NoError(t, err)
		ids = append(ids, id)
	}

	events, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, ids[i], e.ID)
	}
	assert.Equal(t, "a", events[0].EventType)
	assert.Equal(t, "c", events[2].EventType)
}

func TestInsert_FailureReleasesConnection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.db.Exec(`DROP TABLE events`)
	require.NoError(t, err)

	_, err = store.Insert(ctx, "t", "p", time.Now())
	require.Error(t, err)
	assert.Equal(t, 0, store.db.Stats().InUse, "connection must be returned after a failed insert")
}

func TestInsert_CanceledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Insert(ctx, "t", "p", time.Now())
	require.Error(t, err)

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 0, store.db.Stats().InUse)
}

func TestStore_ConcurrentInsertAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const writers, perWriter = 8, 10

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter+writers)

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := store.Insert(ctx, "concurrent", "payload", time.Now()); err != nil {
					errs <- err
				}
			}
		}()
	}
	for r := 0; r < writers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, err := store.ListAll(ctx)
			if err != nil {
				errs <- err
				return
			}
			for _, e := range events {
				if e.EventType != "concurrent" || e.EventPayload != "payload" || e.ReceivedAt.IsZero() {
					errs <- fmt.Errorf("event %d read partially: %+v", e.ID, e)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	events, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, events, writers*perWriter)
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].ID, events[i-1].ID)
	}
}

func TestListAll_NullColumns(t *testing.T) {
	store := newTestStore(t)

	_, err := store.db.Exec(`INSERT INTO events (event_type, event_payload, received_at) VALUES (?, ?, ?)`,
		sql.NullString{}, "not json", sql.NullString{})
	require.NoError(t, err)

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "", events[0].EventType)
	assert.Equal(t, "not json", events[0].EventPayload)
	assert.True(t, events[0].ReceivedAt.IsZero())
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
