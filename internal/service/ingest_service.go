package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/telhawk-systems/event-relay/internal/logging"
	"github.com/telhawk-systems/event-relay/internal/metrics"
	"github.com/telhawk-systems/event-relay/internal/models"
	"github.com/telhawk-systems/event-relay/internal/publisher"
	"github.com/telhawk-systems/event-relay/internal/storage"
	"github.com/telhawk-systems/event-relay/internal/validator"
)

// IngestService runs the validate-then-persist pipeline. It holds no state
// between requests.
type IngestService struct {
	store     storage.Store
	publisher publisher.Publisher
	logger    *logging.Logger
	now       func() time.Time
}

type Option func(*IngestService)

// WithPublisher announces every committed event through p.
func WithPublisher(p publisher.Publisher) Option {
	return func(s *IngestService) { s.publisher = p }
}

// WithLogger replaces the default logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *IngestService) { s.logger = l }
}

// WithClock replaces time.Now as the source of received_at.
func WithClock(now func() time.Time) Option {
	return func(s *IngestService) { s.now = now }
}

func NewIngestService(store storage.Store, opts ...Option) *IngestService {
	s := &IngestService{
		store:     store,
		publisher: publisher.Noop{},
		logger:    logging.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PersistError reports a storage failure after validation succeeded.
// Persisted rows of the same batch stay committed.
type PersistError struct {
	Persisted int
	Total     int
	Err       error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist event %d of %d: %v", e.Persisted+1, e.Total, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Submit validates the whole of raw and then persists each event in order,
// stamping each one with its own received_at. It returns the number of
// events persisted. A *validator.Error means nothing was written; a
// *PersistError means the first Persisted events were written.
func (s *IngestService) Submit(ctx context.Context, raw any) (int, error) {
	events, err := validator.Validate(raw)
	if err != nil {
		var verr *validator.Error
		if errors.As(err, &verr) {
			metrics.ValidationErrors.WithLabelValues(verr.Kind.String()).Inc()
		}
		return 0, err
	}

	for i, event := range events {
		receivedAt := s.now()

		start := time.Now()
		id, err := s.store.Insert(ctx, event.EventType, event.EventPayload, receivedAt)
		metrics.StorageDuration.WithLabelValues("insert").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.StorageErrors.WithLabelValues("insert").Inc()
			return i, &PersistError{Persisted: i, Total: len(events), Err: err}
		}
		metrics.EventsPersisted.Inc()

		s.logger.DebugContext(ctx, "event persisted",
			logging.EventID(id),
			logging.EventType(event.EventType),
		)

		record := models.Event{
			ID:           id,
			EventType:    event.EventType,
			EventPayload: event.EventPayload,
			ReceivedAt:   receivedAt,
		}
		if err := s.publisher.Publish(ctx, record); err != nil {
			metrics.PublishErrors.Inc()
			s.logger.WarnContext(ctx, "failed to publish event",
				logging.EventID(id),
				logging.Error(err),
			)
		}
	}
	return len(events), nil
}

// List returns the full event history ordered by id.
func (s *IngestService) List(ctx context.Context) ([]models.Event, error) {
	start := time.Now()
	events, err := s.store.ListAll(ctx)
	metrics.StorageDuration.WithLabelValues("list").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StorageErrors.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Ping reports whether storage is reachable.
func (s *IngestService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
