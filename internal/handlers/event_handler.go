package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/telhawk-systems/event-relay/internal/httputil"
	"github.com/telhawk-systems/event-relay/internal/logging"
	"github.com/telhawk-systems/event-relay/internal/metrics"
	"github.com/telhawk-systems/event-relay/internal/models"
	"github.com/telhawk-systems/event-relay/internal/ratelimit"
	"github.com/telhawk-systems/event-relay/internal/validator"
)

const (
	healthMessage       = "Event Consumer is running"
	internalErrorDetail = "Internal Server Error"
	tooLargeDetail      = "Request body too large"
	rateLimitedDetail   = "Too Many Requests"
	unavailableDetail   = "Storage unavailable"
)

// IngestService is the subset of service.IngestService used by the handlers.
type IngestService interface {
	Submit(ctx context.Context, raw any) (int, error)
	List(ctx context.Context) ([]models.Event, error)
	Ping(ctx context.Context) error
}

type EventHandler struct {
	service      IngestService
	limiter      ratelimit.RateLimiter
	logger       *logging.Logger
	maxBodyBytes int64
}

// NewEventHandler builds the HTTP surface over svc. A nil limiter admits
// every request and a nil logger falls back to logging.Default. A
// maxBodyBytes of zero or less disables the body size limit.
func NewEventHandler(svc IngestService, limiter ratelimit.RateLimiter, logger *logging.Logger, maxBodyBytes int64) *EventHandler {
	if limiter == nil {
		limiter = ratelimit.NoOpRateLimiter{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &EventHandler{
		service:      svc,
		limiter:      limiter,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// Health answers liveness probes. It never touches storage.
func (h *EventHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, models.StatusResponse{
		Status:  "ok",
		Message: healthMessage,
	})
}

// Ready reports 503 while storage cannot be reached.
func (h *EventHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "readiness check failed", logging.Error(err))
		httputil.WriteDetail(w, http.StatusServiceUnavailable, unavailableDetail)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.StatusResponse{
		Status:  "ok",
		Message: "ready",
	})
}

// Submit accepts a single event object or an array of them.
func (h *EventHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	allowed, err := h.limiter.Allow(ctx, getClientIP(r))
	if err != nil {
		// Fail open while the limiter is unreachable.
		h.logger.WarnContext(ctx, "rate limit check failed", logging.Error(err))
	} else if !allowed {
		h.respondDetail(w, "submit", http.StatusTooManyRequests, rateLimitedDetail)
		return
	}

	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	defer body.Close()

	raw, err := validator.Decode(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondDetail(w, "submit", http.StatusRequestEntityTooLarge, tooLargeDetail)
			return
		}
		h.submitError(w, r, err)
		return
	}

	received, err := h.service.Submit(ctx, raw)
	if err != nil {
		h.submitError(w, r, err)
		return
	}

	metrics.RequestsTotal.WithLabelValues("submit", strconv.Itoa(http.StatusOK)).Inc()
	httputil.WriteJSON(w, http.StatusOK, models.SubmitResponse{
		Status:   "ok",
		Received: received,
	})
}

// List returns every stored event in id order.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list events", logging.Error(err))
		h.respondDetail(w, "list", http.StatusInternalServerError, internalErrorDetail)
		return
	}
	if events == nil {
		events = []models.Event{}
	}

	metrics.RequestsTotal.WithLabelValues("list", strconv.Itoa(http.StatusOK)).Inc()
	httputil.WriteJSON(w, http.StatusOK, models.ListResponse{
		Status: "ok",
		Events: events,
	})
}

func (h *EventHandler) submitError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validator.Error
	if errors.As(err, &verr) {
		h.respondDetail(w, "submit", http.StatusBadRequest, verr.Message)
		return
	}

	h.logger.ErrorContext(r.Context(), "failed to persist events", logging.Error(err))
	h.respondDetail(w, "submit", http.StatusInternalServerError, internalErrorDetail)
}

func (h *EventHandler) respondDetail(w http.ResponseWriter, endpoint string, status int, detail string) {
	metrics.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	httputil.WriteDetail(w, status, detail)
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
