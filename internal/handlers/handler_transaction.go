package handlers

import (
	"fmt"
	"net/http"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	portssvc "github.com/SscSPs/transfer_engine/internal/core/ports/services"
	"github.com/SscSPs/transfer_engine/internal/dto"
	"github.com/SscSPs/transfer_engine/internal/middleware"
	"github.com/gin-gonic/gin"
)

type transactionHandler struct {
	accountService portssvc.AccountReaderSvc
	queryService   portssvc.BalanceQuerySvc
}

// RegisterTransactionRoutes registers the journal lookup route.
func RegisterTransactionRoutes(rg *gin.RouterGroup, accountService portssvc.AccountReaderSvc, queryService portssvc.BalanceQuerySvc) {
	h := &transactionHandler{accountService: accountService, queryService: queryService}
	rg.GET("/transactions/:transactionID", h.getTransaction)
}

// getTransaction godoc
// @Summary Get a transaction
// @Description Returns a journal record. The caller must own one side of it.
// @Tags transactions
// @Produce  json
// @Param   transactionID path string true "Transaction ID"
// @Success 200 {object} dto.TransactionResponse
// @Failure 403 {object} dto.ErrorResponse "Neither side belongs to the caller"
// @Failure 404 {object} dto.ErrorResponse "Transaction not found"
// @Security BearerAuth
// @Router /transactions/{transactionID} [get]
func (h *transactionHandler) getTransaction(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := principal(c, logger)
	if !ok {
		return
	}

	record, err := h.queryService.GetTransaction(c.Request.Context(), c.Param("transactionID"))
	if err != nil {
		respondError(c, logger, err, nil)
		return
	}

	for _, side := range []*string{record.FromAccountID, record.ToAccountID} {
		if side == nil {
			continue
		}
		acc, err := h.accountService.GetAccountByID(c.Request.Context(), *side)
		if err == nil && acc.OwnerID == userID {
			c.JSON(http.StatusOK, dto.ToTransactionResponse(record))
			return
		}
	}
	respondError(c, logger, fmt.Errorf("%w: transaction %s", apperrors.ErrForbidden, record.TransactionID), nil)
}
