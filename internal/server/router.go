package server

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/telhawk-systems/event-relay/internal/handlers"
	"github.com/telhawk-systems/event-relay/internal/httputil"
	"github.com/telhawk-systems/event-relay/internal/logging"
	"github.com/telhawk-systems/event-relay/internal/middleware"
)

type route struct {
	method  string
	path    string
	handler http.Handler
}

// NewRouter constructs a ServeMux with the consumer API routes registered.
func NewRouter(h *handlers.EventHandler, logger *logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}

	routes := []route{
		{http.MethodGet, "/{$}", http.HandlerFunc(h.Health)},
		{http.MethodPost, "/event", http.HandlerFunc(h.Submit)},
		{http.MethodGet, "/events", http.HandlerFunc(h.List)},

		// Health endpoints
		{http.MethodGet, "/healthz", http.HandlerFunc(h.Health)},
		{http.MethodGet, "/readyz", http.HandlerFunc(h.Ready)},

		// Prometheus metrics
		{http.MethodGet, "/metrics", promhttp.Handler()},
	}

	mux := http.NewServeMux()
	allowed := make(map[string][]string)
	for _, rt := range routes {
		mux.Handle(rt.method+" "+rt.path, rt.handler)
		allowed[rt.path] = append(allowed[rt.path], rt.method)
	}
	for path, methods := range allowed {
		mux.Handle(path, methodNotAllowed(methods))
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteDetail(w, http.StatusNotFound, "Not Found")
	})

	traced := otelhttp.NewHandler(mux, "event-consumer")
	return middleware.RequestID(middleware.AccessLog(logger.Logger)(traced))
}

func methodNotAllowed(methods []string) http.Handler {
	allow := strings.Join(methods, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		httputil.WriteDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
}
