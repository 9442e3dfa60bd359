package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pool/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-pool/pkg/logging"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteError maps a pool error to an HTTP status and writes it as a JSON error.
// The message is sanitized so that DSNs and credentials never reach the client.
func WriteError(w http.ResponseWriter, err error) error {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, apperrors.ErrPoolNotFound):
		status, code = http.StatusNotFound, "pool_not_found"
	case errors.Is(err, apperrors.ErrNoHealthySession), errors.Is(err, apperrors.ErrNotConnected):
		status, code = http.StatusServiceUnavailable, "no_healthy_session"
	case errors.Is(err, apperrors.ErrInvalidPoolName):
		status, code = http.StatusBadRequest, "invalid_pool_name"
	}
	return ErrorResponse(w, status, code, logging.SanitizeError(err))
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// methodNotAllowed rejects anything but GET on the read-only routes.
func methodNotAllowed(w http.ResponseWriter, logger *zap.Logger) {
	w.Header().Set("Allow", http.MethodGet)
	if err := ErrorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET is supported"); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
