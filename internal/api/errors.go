package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"submux/internal/intake"
	"submux/internal/jobs"
	"submux/internal/logging"
	"submux/internal/services"
)

// errorResponse is the JSON body for every non-2xx reply.
type errorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

func statusFor(err error) int {
	var missing *jobs.MissingAssetsError
	switch {
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, jobs.ErrJobInProgress), errors.Is(err, intake.ErrJobRunning):
		return http.StatusConflict
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", logging.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	writeJSON(w, logger, status, errorResponse{Error: message})
}

// writeServiceError maps err to a status and a user-safe message. Server-side
// failures are logged with their full chain.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	body := errorResponse{Error: services.UserMessage(err), Kind: services.Kind(err)}
	var missing *jobs.MissingAssetsError
	if errors.As(err, &missing) {
		body.Error = missing.Error()
		body.Missing = missing.Missing
	}
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), logger), "request failed", "request_failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the service logs for the failing component"),
		)
	}
	writeJSON(w, logger, status, body)
}
