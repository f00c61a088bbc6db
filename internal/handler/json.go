package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/msomdec/care-practice/internal/domain"
	"github.com/msomdec/care-practice/internal/llm"
)

// writeJSON sends a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write JSON response", "error", err)
	}
}

// writeError sends a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// readJSON decodes the request body into the given destination.
func readJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}

// errorStatus maps a service error to a status code and a message safe
// to show. Unknown errors are logged and hidden.
func errorStatus(op string, err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Not authorized."
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrFeedbackDisabled):
		return http.StatusConflict, err.Error()
	case llm.IsGenerationFailure(err):
		slog.Warn("generation unavailable", "op", op, "error", err)
		return http.StatusBadGateway, "The language model is unavailable right now. Please try again."
	}
	slog.Error(op, "error", err)
	return http.StatusInternalServerError, "An unexpected error occurred. Please try again."
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	status, msg := errorStatus(op, err)
	writeError(w, status, msg)
}
