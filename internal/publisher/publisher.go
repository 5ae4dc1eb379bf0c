// Package publisher announces committed events to downstream consumers.
// Publication is best-effort and never affects the outcome of a submission.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/telhawk-systems/event-relay/internal/models"
)

// Publisher receives every event after its insert has committed.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
	Close() error
}

// Noop discards events. It is used when publication is disabled.
type Noop struct{}

func (Noop) Publish(context.Context, models.Event) error { return nil }
func (Noop) Close() error                                { return nil }

// Config holds NATS connection settings.
type Config struct {
	URL     string
	Subject string
	Name    string
}

// NATS publishes events as JSON to a single subject.
type NATS struct {
	conn    *nats.Conn
	subject string
}

// NewNATS connects to the NATS server at cfg.URL. Reconnects are unbounded.
func NewNATS(cfg Config, logger *slog.Logger) (*NATS, error) {
	if cfg.Subject == "" {
		return nil, fmt.Errorf("nats subject is required")
	}
	name := cfg.Name
	if name == "" {
		name = "event-relay-consumer"
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATS{conn: conn, subject: cfg.Subject}, nil
}

// Encode renders an event as the message body published to NATS.
func Encode(event models.Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event %d: %w", event.ID, err)
	}
	return data, nil
}

func (p *NATS) Publish(ctx context.Context, event models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, data)
}

// Close flushes pending messages and closes the connection.
func (p *NATS) Close() error {
	return p.conn.Drain()
}
