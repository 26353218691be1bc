package handler

// Response helpers: every endpoint sends JSON through writeJSON, and every
// failure goes through writeError so the error shape is identical across
// endpoints:
//
//	{"error": "out_of_stock", "message": "...", "retryable": false}
//
// The mapping from error kind to HTTP status lives here and nowhere else —
// the service layer returns apperror kinds and knows nothing about HTTP.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/talmor/giftdesk/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
// Retryable tells the frontend whether to show a "try again" action.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; logging is all that's left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status. Each terminal state of
// the claim flow gets a distinct status so the frontend can branch on it;
// transient kinds use 503 with a retry-suggesting message.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"
		retryable := false

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrIneligible):
			status = http.StatusForbidden
			errorType = "ineligible"
		case errors.Is(err, apperror.ErrAlreadyClaimed):
			status = http.StatusConflict
			errorType = "already_claimed"
		case errors.Is(err, apperror.ErrOutOfStock):
			status = http.StatusGone
			errorType = "out_of_stock"
		case errors.Is(err, apperror.ErrInventoryUpdate):
			status = http.StatusBadGateway
			errorType = "inventory_update_failed"
		case errors.Is(err, apperror.ErrSubmission):
			status = http.StatusServiceUnavailable
			errorType = "submission_failed"
			retryable = true
		case errors.Is(err, apperror.ErrUnavailable):
			status = http.StatusServiceUnavailable
			errorType = "service_unavailable"
			retryable = true
		}

		writeJSON(w, status, ErrorResponse{
			Error:     errorType,
			Message:   appErr.Message,
			Retryable: retryable,
		})
		return
	}

	// Unknown error — never leak internals to the client.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
