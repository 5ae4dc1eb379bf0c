package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/telhawk-systems/event-relay/internal/models"
)

// WriteJSON writes data as a JSON response with the given status code.
// Encoding failures are logged; the status line has already been sent.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// WriteDetail writes a {"detail": message} error body.
func WriteDetail(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, models.ErrorResponse{Detail: message})
}
