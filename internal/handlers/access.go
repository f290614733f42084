package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portssvc "github.com/SscSPs/transfer_engine/internal/core/ports/services"
	"github.com/SscSPs/transfer_engine/internal/dto"
	"github.com/SscSPs/transfer_engine/internal/middleware"
	"github.com/gin-gonic/gin"
)

// principal returns the authenticated caller, answering 401 when there is none.
func principal(c *gin.Context, logger *slog.Logger) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized"})
		return "", false
	}
	return userID, true
}

// ownedAccount loads accountID and checks that userID holds it.
// The response is written on every failure path.
func ownedAccount(c *gin.Context, logger *slog.Logger, accounts portssvc.AccountReaderSvc, userID, accountID string) (*domain.Account, bool) {
	acc, err := accounts.GetAccountByID(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, logger, err, nil)
		return nil, false
	}
	if acc.OwnerID != userID {
		respondError(c, logger, fmt.Errorf("%w: account %s belongs to another owner", apperrors.ErrForbidden, accountID), nil)
		return nil, false
	}
	return acc, true
}

// withMiddleware returns mw followed by h without sharing mw's backing array.
func withMiddleware(mw []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	return append(slices.Clip(mw), h)
}
