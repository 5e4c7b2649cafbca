package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/kreativo/ai-gateway/internal/job"
	"github.com/kreativo/ai-gateway/internal/poll"
	"github.com/kreativo/ai-gateway/internal/service"
)

// Error codes carried in every error response body.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	CodeProviderError   = "PROVIDER_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeFeatureDisabled = "FEATURE_DISABLED"
)

// ErrorResponse is the wire shape for every non-2xx response.
type ErrorResponse struct {
	Error     string         `json:"error"`
	ErrorCode string         `json:"error_code"`
	Details   map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, ErrorResponse{Error: message, ErrorCode: code, Details: details})
}

// writeServiceError maps service-layer errors onto the HTTP error taxonomy.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, CodeValidation, verr.Message, map[string]any{"field": verr.Field})

	case errors.Is(err, job.ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "job not found", nil)

	case errors.Is(err, job.ErrTerminalState):
		writeError(w, http.StatusBadRequest, CodeValidation, "job already finished", nil)

	case errors.Is(err, service.ErrNotConfigured):
		writeError(w, http.StatusNotImplemented, CodeFeatureDisabled, "capability not configured", nil)

	case errors.Is(err, poll.ErrTimeout):
		writeError(w, http.StatusInternalServerError, CodeProviderError, "prediction timed out; please retry", nil)

	case errors.Is(err, poll.ErrCancelled):
		writeError(w, http.StatusBadRequest, CodeValidation, "job was cancelled", nil)

	default:
		var perr *poll.ProviderError
		if errors.As(err, &perr) {
			writeError(w, http.StatusInternalServerError, CodeProviderError, perr.Message, nil)
			return
		}
		log.Printf("Unhandled error: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error", nil)
	}
}
