// Package sqlite provides the file-backed SQLite events store.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/telhawk-systems/event-relay/internal/models"
	"github.com/telhawk-systems/event-relay/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists events in a single SQLite file.
//
// A read-write mutex serializes Insert against ListAll: writers never
// contend on the file lock and readers never see a half-written row.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.RWMutex
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if needed) the SQLite file at path. Call Initialize
// before the first Insert.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &Store{path: cleanPath, db: db}, nil
}

// Initialize applies the embedded migrations. It is safe to call on every
// start; an up-to-date schema is not an error. The migration connection is
// closed before Initialize returns.
func (s *Store) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+s.path)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Insert writes one event row inside a transaction on a dedicated
// connection. Any failure rolls the transaction back.
func (s *Store) Insert(ctx context.Context, eventType, eventPayload string, receivedAt time.Time) (id int64, err error) {
	stored, err := storage.EncodePayload(eventPayload)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO events (event_type, event_payload, received_at) VALUES (?, ?, ?)`,
		eventType, stored, storage.FormatTimestamp(receivedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read event id: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit event: %w", err)
	}
	return id, nil
}

// ListAll returns every event ordered by id.
func (s *Store) ListAll(ctx context.Context) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx,
		`SELECT id, event_type, event_payload, received_at FROM events ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		var (
			e          models.Event
			eventType  sql.NullString
			payload    sql.NullString
			receivedAt sql.NullString
		)
		if err := rows.Scan(&e.ID, &eventType, &payload, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.EventType = eventType.String
		if payload.Valid {
			e.EventPayload = storage.DecodePayload(payload.String)
		}
		if receivedAt.Valid {
			ts, err := storage.ParseTimestamp(receivedAt.String)
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", e.ID, err)
			}
			e.ReceivedAt = ts
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Ping checks that the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
