package helpers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"eventportal/internal/domain"
)

// WriteServiceError maps a service error to its HTTP status and envelope code. Unexpected errors
// are logged and answered with a generic 500.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var pe *domain.ProviderError
	switch {
	case errors.As(err, &pe):
		msg := pe.Message
		if msg == "" {
			msg = "payment provider error"
		}
		logger.WarnContext(r.Context(), "payment provider error", "path", r.URL.Path, "status_code", pe.StatusCode, "err", err)
		WriteJSONError(w, http.StatusBadGateway, ErrCodePaymentProvider, msg)
	case errors.Is(err, domain.ErrInvalidInput):
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, detail(err, domain.ErrInvalidInput))
	case errors.Is(err, domain.ErrAmountMismatch), errors.Is(err, domain.ErrInvalidCode):
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidSignature):
		WriteJSONError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid signature")
	case errors.Is(err, domain.ErrForbidden):
		WriteJSONError(w, http.StatusForbidden, ErrCodeForbidden, "forbidden")
	case errors.Is(err, domain.ErrUserNotFound):
		WriteJSONError(w, http.StatusNotFound, ErrCodeNotFound, "user not found")
	case errors.Is(err, domain.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, ErrCodeNotFound, "not found")
	case errors.Is(err, domain.ErrEventUnavailable),
		errors.Is(err, domain.ErrInsufficientCapacity),
		errors.Is(err, domain.ErrDuplicateEmail):
		WriteJSONError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		WriteJSONError(w, http.StatusConflict, ErrCodeConflict, detail(err, domain.ErrInvalidTransition))
	case errors.Is(err, domain.ErrRateLimited):
		WriteJSONError(w, http.StatusTooManyRequests, ErrCodeTooManyRequests, "too many requests, try again later")
	case errors.Is(err, domain.ErrPaymentTimeout):
		WriteJSONError(w, http.StatusGatewayTimeout, ErrCodeTimeout, err.Error())
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		WriteJSONError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
	}
}

// detail strips the sentinel prefix from "sentinel: detail" messages.
func detail(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return msg
}
