// Package postgres provides a PostgreSQL events store backed by pgxpool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telhawk-systems/event-relay/internal/models"
	"github.com/telhawk-systems/event-relay/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements storage.Store using PostgreSQL. Row-level atomicity
// comes from one transaction per insert.
type Store struct {
	connString string
	pool       *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// Open creates a connection pool and verifies connectivity.
func Open(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{connString: connString, pool: pool}, nil
}

// migrationURL rewrites a postgres:// URL to the scheme of the pgx/v5
// migrate driver.
func migrationURL(connString string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(connString, prefix) {
			return "pgx5://" + strings.TrimPrefix(connString, prefix)
		}
	}
	return connString
}

// Initialize applies the embedded migrations on a dedicated connection.
func (s *Store) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrationURL(s.connString))
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Insert writes one event row in its own transaction.
func (s *Store) Insert(ctx context.Context, eventType, eventPayload string, receivedAt time.Time) (int64, error) {
	stored, err := storage.EncodePayload(eventPayload)
	if err != nil {
		return 0, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO events (event_type, event_payload, received_at) VALUES ($1, $2, $3) RETURNING id`,
		eventType, stored, storage.FormatTimestamp(receivedAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit event: %w", err)
	}
	return id, nil
}

// ListAll returns every event ordered by id.
func (s *Store) ListAll(ctx context.Context) ([]models.Event, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx,
		`SELECT id, event_type, event_payload, received_at FROM events ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		var (
			e          models.Event
			eventType  *string
			payload    *string
			receivedAt *string
		)
		if err := rows.Scan(&e.ID, &eventType, &payload, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if eventType != nil {
			e.EventType = *eventType
		}
		if payload != nil {
			e.EventPayload = storage.DecodePayload(*payload)
		}
		if receivedAt != nil {
			ts, err := storage.ParseTimestamp(*receivedAt)
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

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
