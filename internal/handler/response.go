package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so status codes,
// headers and the error body look the same on every route.
//
//   writeJSON(w, http.StatusOK, profile)
//   writeError(w, err)
//
// ERROR FORMAT:
// Errors always carry a machine-readable type and a message. Validation
// failures add the offending field:
//
//   {"error": "validation_error", "message": "amount is required", "field": "amount"}
//
// The CLI and the web client switch on "error" and show "message" as is.
//
// STATUS MAPPING:
// Handlers never choose an error status themselves. The domain returns an
// apperror sentinel and writeError translates it:
//
//   ErrValidation   → 400    ErrForbidden → 403
//   ErrUnauthorized → 401    ErrConflict  → 409
//   ErrNotFound     → 404    anything else → 500

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/cmdshift-learn/internal/apperror"
)

// ErrorResponse is the body of every API error:
//
//	{"error": "not_found", "message": "profile not found with id github:1"}
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeJSON sets headers and status before the body; once Encode writes,
// header changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error onto an HTTP status. errors.Is walks the
// wrap chain, so a store error wrapping apperror.ErrNotFound still maps to
// 404.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	// Raw errors may carry SQL or file paths; never echo them.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
