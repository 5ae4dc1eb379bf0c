// Package storage defines the durable event table contract shared by the
// SQLite and PostgreSQL backends.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/telhawk-systems/event-relay/internal/models"
)

// Backend names accepted by the consumer.db_type setting.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// ErrUnknownBackend is returned for an unsupported db_type.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Store is the minimal CRUD contract over the events table. Every call
// acquires its own connection and releases it before returning.
type Store interface {
	// Initialize creates the events table if it does not exist.
	Initialize(ctx context.Context) error

	// Insert writes one row in its own transaction and returns its id.
	// On failure nothing is written.
	Insert(ctx context.Context, eventType, eventPayload string, receivedAt time.Time) (int64, error)

	// ListAll returns every row in ascending id order with payloads decoded.
	ListAll(ctx context.Context) ([]models.Event, error)

	Ping(ctx context.Context) error
	Close() error
}

// EncodePayload serializes a logical payload to the text stored in the
// event_payload column.
func EncodePayload(payload any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// DecodePayload parses stored text back to its logical form. Text that is
// not JSON is returned unchanged.
func DecodePayload(stored string) any {
	var v any
	if err := json.Unmarshal([]byte(stored), &v); err != nil {
		return stored
	}
	return v
}

// timestampLayouts are tried in order when reading received_at. The last
// one accepts ISO-8601 values written without a zone offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// FormatTimestamp renders t for the received_at column.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp reads a received_at value.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid received_at %q", s)
}
