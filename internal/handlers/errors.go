package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	"github.com/SscSPs/transfer_engine/internal/core/domain"
	"github.com/SscSPs/transfer_engine/internal/dto"
	"github.com/gin-gonic/gin"
)

// retryAfterSeconds is advertised on responses the client may safely resubmit.
const retryAfterSeconds = "1"

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrAccountNotActive),
		errors.Is(err, apperrors.ErrDuplicate),
		errors.Is(err, apperrors.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrLockTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error body for err. A journaled FAILED record, when present, is
// returned alongside so the client can see what was persisted for its reference id.
func respondError(c *gin.Context, logger *slog.Logger, err error, record *domain.TransactionRecord) {
	status := statusFor(err)
	body := dto.ErrorResponse{Error: err.Error(), Retryable: apperrors.IsRetryable(err)}

	if status == http.StatusInternalServerError {
		logger.Error("Request failed", slog.String("error", err.Error()))
		body.Error = "Internal server error"
	} else {
		logger.Warn("Request rejected", slog.Int("status", status), slog.String("error", err.Error()))
	}
	if body.Retryable {
		c.Header("Retry-After", retryAfterSeconds)
	}
	if record != nil {
		resp := dto.ToTransactionResponse(record)
		body.Record = &resp
	}
	c.JSON(status, body)
}

// badRequest reports a binding or parameter problem.
func badRequest(c *gin.Context, logger *slog.Logger, msg string, err error) {
	logger.Warn(msg, slog.String("error", err.Error()))
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msg + ": " + err.Error()})
}
