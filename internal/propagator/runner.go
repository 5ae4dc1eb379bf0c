// Package propagator replays a pool of events against the consumer's
// submission endpoint at a fixed interval.
package propagator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/telhawk-systems/event-relay/internal/logging"
	"github.com/telhawk-systems/event-relay/internal/metrics"
)

// Config controls delivery.
type Config struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

// Runner sends one randomly chosen event per interval until stopped.
type Runner struct {
	config     Config
	events     []json.RawMessage
	HTTPClient *http.Client
	logger     *logging.Logger
	pick       func(n int) int
}

// NewRunner creates a runner over a non-empty event pool.
func NewRunner(cfg Config, events []json.RawMessage, logger *logging.Logger) (*Runner, error) {
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Runner{
		config: cfg,
		events: events,
		HTTPClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
		pick:   rand.Intn,
	}, nil
}

// Run delivers events until ctx is done. Delivery failures are logged and
// never stop the loop. It returns nil once ctx is canceled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, fmt.Sprintf("Starting propagator: url=%s interval=%gs events=%d",
		r.config.URL, r.config.Interval.Seconds(), len(r.events)),
		logging.URL(r.config.URL),
		logging.Count(len(r.events)),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Stopped propagator")
			return nil
		case <-timer.C:
		}

		event := r.events[r.pick(len(r.events))]
		status, err := r.Send(ctx, event)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			metrics.DeliveriesTotal.WithLabelValues("error").Inc()
			r.logger.ErrorContext(ctx, fmt.Sprintf("Error sending event: %v", err), logging.Error(err))
		case status >= 200 && status < 300:
			metrics.DeliveriesTotal.WithLabelValues("success").Inc()
			r.logger.InfoContext(ctx, fmt.Sprintf("Sent event -> status=%d", status), logging.Status(status))
		default:
			metrics.DeliveriesTotal.WithLabelValues("rejected").Inc()
			r.logger.WarnContext(ctx, fmt.Sprintf("Sent event -> status=%d", status), logging.Status(status))
		}

		timer.Reset(r.config.Interval)
	}
}

// Send posts a single event and returns the response status code.
func (r *Runner) Send(ctx context.Context, event json.RawMessage) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.URL, bytes.NewReader(event))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send event: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
