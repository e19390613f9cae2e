package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/transfa/banking-service/internal/app"
	"github.com/transfa/banking-service/internal/store"
)

// envelope is the body every JSON endpoint returns.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: status < 400, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, message, nil)
}

// statusFor maps service and store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case store.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, app.ErrSameAccount):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrInvalidCredential),
		errors.Is(err, app.ErrNoPendingOTP),
		errors.Is(err, app.ErrOTPExpired),
		errors.Is(err, app.ErrOTPAlreadyUsed),
		errors.Is(err, app.ErrOTPMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrAccountFrozen),
		errors.Is(err, app.ErrAccountInactive):
		return http.StatusForbidden
	case errors.Is(err, app.ErrDailyLimitExceeded),
		errors.Is(err, app.ErrInsufficientFunds),
		errors.Is(err, app.ErrCardLimitExceeded),
		errors.Is(err, app.ErrCardExpired),
		errors.Is(err, app.ErrCardOnlineDisabled):
		return http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrInvalidStateTransition),
		errors.Is(err, app.ErrOutstandingLoans),
		errors.Is(err, app.ErrDeleteRequestPending),
		errors.Is(err, app.ErrCardAlreadyActive),
		errors.Is(err, app.ErrCardRequestPending),
		errors.Is(err, store.ErrDuplicateAccount):
		return http.StatusConflict
	case errors.Is(err, app.ErrOTPRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, app.ErrNotificationDeliveryFailed):
		return http.StatusBadGateway
	case errors.Is(err, app.ErrShuttingDown):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with its mapped status. Unexpected errors are logged
// and hidden from the client.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "endpoint", endpoint, "path", r.URL.Path, "err", err)
		writeError(w, status, "Internal server error")
		return
	}
	h.logger.Info("request rejected", "endpoint", endpoint, "status", status, "reason", err.Error())
	writeError(w, status, err.Error())
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, name)))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a UUID", app.ErrInvalidInput, name)
	}
	return id, nil
}

func intQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", app.ErrInvalidInput, name)
	}
	return v, nil
}

func newHandlerLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", "api")
}
