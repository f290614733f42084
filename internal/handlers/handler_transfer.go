package handlers

import (
	"log/slog"
	"net/http"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portssvc "github.com/SscSPs/transfer_engine/internal/core/ports/services"
	"github.com/SscSPs/transfer_engine/internal/dto"
	"github.com/SscSPs/transfer_engine/internal/middleware"
	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader may carry the reference id instead of the request body.
const IdempotencyKeyHeader = "Idempotency-Key"

// transferHandler handles requests that move value.
type transferHandler struct {
	accountService  portssvc.AccountReaderSvc
	transferService portssvc.TransferSvcFacade
}

func newTransferHandler(as portssvc.AccountReaderSvc, ts portssvc.TransferSvcFacade) *transferHandler {
	return &transferHandler{accountService: as, transferService: ts}
}

// RegisterTransferRoutes registers the transfer, deposit and withdrawal routes.
func RegisterTransferRoutes(rg *gin.RouterGroup, accountService portssvc.AccountReaderSvc, transferService portssvc.TransferSvcFacade, mutating ...gin.HandlerFunc) {
	h := newTransferHandler(accountService, transferService)

	rg.POST("/transfers", withMiddleware(mutating, h.createTransfer)...)
	rg.POST("/accounts/:accountID/deposits", withMiddleware(mutating, h.deposit)...)
	rg.POST("/accounts/:accountID/withdrawals", withMiddleware(mutating, h.withdraw)...)
}

// referenceFrom resolves the idempotency token from the header and the body.
// Both may be given only when they agree.
func referenceFrom(c *gin.Context, bodyRef string) (string, bool) {
	headerRef := c.GetHeader(IdempotencyKeyHeader)
	switch {
	case headerRef == "":
		return bodyRef, true
	case bodyRef == "", bodyRef == headerRef:
		return headerRef, true
	default:
		return "", false
	}
}

func rejectReference(c *gin.Context, logger *slog.Logger) {
	logger.Warn("Idempotency-Key header disagrees with referenceID")
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Idempotency-Key header and referenceID must match"})
}

// respondMovement writes the outcome of a coordinator call.
func respondMovement(c *gin.Context, logger *slog.Logger, record *domain.TransactionRecord, err error) {
	if err != nil {
		respondError(c, logger, err, record)
		return
	}
	logger.Info("Movement completed",
		slog.String("transaction_id", record.TransactionID),
		slog.String("reference_id", record.ReferenceID))
	c.JSON(http.StatusCreated, dto.ToTransactionResponse(record))
}

// createTransfer godoc
// @Summary Transfer funds
// @Description Atomically moves an amount from an account of the caller to another account.
// @Description Resubmitting a reference id returns the stored outcome without moving value again.
// @Tags transfers
// @Accept  json
// @Produce  json
// @Param   Idempotency-Key header string false "Reference id; may replace referenceID in the body"
// @Param   transfer body dto.CreateTransferRequest true "Transfer details"
// @Success 201 {object} dto.TransactionResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input or validation error"
// @Failure 403 {object} dto.ErrorResponse "Source account belongs to another owner"
// @Failure 404 {object} dto.ErrorResponse "Account not found"
// @Failure 409 {object} dto.ErrorResponse "Account not active or concurrent modification"
// @Failure 422 {object} dto.ErrorResponse "Insufficient funds; the FAILED record is included"
// @Failure 503 {object} dto.ErrorResponse "Account lock not acquired in time"
// @Security BearerAuth
// @Router /transfers [post]
func (h *transferHandler) createTransfer(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, "Invalid request format", err)
		return
	}
	referenceID, ok := referenceFrom(c, req.ReferenceID)
	if !ok {
		rejectReference(c, logger)
		return
	}

	userID, ok := principal(c, logger)
	if !ok {
		return
	}
	if _, ok := ownedAccount(c, logger, h.accountService, userID, req.FromAccountID); !ok {
		return
	}

	logger = logger.With(slog.String("reference_id", referenceID))
	logger.Info("Received transfer request",
		slog.String("from_account_id", req.FromAccountID),
		slog.String("to_account_id", req.ToAccountID),
		slog.Int64("amount", req.Amount))

	record, err := h.transferService.Execute(c.Request.Context(), req.ToDomain(referenceID))
	respondMovement(c, logger, record, err)
}

// deposit godoc
// @Summary Deposit funds
// @Description Credits an account of the caller from outside the ledger.
// @Tags transfers
// @Accept  json
// @Produce  json
// @Param   accountID path string true "Account ID"
// @Param   Idempotency-Key header string false "Reference id; may replace referenceID in the body"
// @Param   deposit body dto.FundsMovementRequest true "Deposit details"
// @Success 201 {object} dto.TransactionResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input or validation error"
// @Failure 403 {object} dto.ErrorResponse "Account belongs to another owner"
// @Failure 409 {object} dto.ErrorResponse "Account not active or concurrent modification"
// @Security BearerAuth
// @Router /accounts/{accountID}/deposits [post]
func (h *transferHandler) deposit(c *gin.Context) {
	h.funds(c, domain.KindDeposit)
}

// withdraw godoc
// @Summary Withdraw funds
// @Description Debits an account of the caller to outside the ledger.
// @Tags transfers
// @Accept  json
// @Produce  json
// @Param   accountID path string true "Account ID"
// @Param   Idempotency-Key header string false "Reference id; may replace referenceID in the body"
// @Param   withdrawal body dto.FundsMovementRequest true "Withdrawal details"
// @Success 201 {object} dto.TransactionResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input or validation error"
// @Failure 403 {object} dto.ErrorResponse "Account belongs to another owner"
// @Failure 409 {object} dto.ErrorResponse "Account not active or concurrent modification"
// @Failure 422 {object} dto.ErrorResponse "Insufficient funds; the FAILED record is included"
// @Security BearerAuth
// @Router /accounts/{accountID}/withdrawals [post]
func (h *transferHandler) withdraw(c *gin.Context) {
	h.funds(c, domain.KindWithdrawal)
}

func (h *transferHandler) funds(c *gin.Context, kind domain.TransactionKind) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.FundsMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, "Invalid request format", err)
		return
	}
	referenceID, ok := referenceFrom(c, req.ReferenceID)
	if !ok {
		rejectReference(c, logger)
		return
	}

	userID, ok := principal(c, logger)
	if !ok {
		return
	}
	accountID := c.Param("accountID")
	if _, ok := ownedAccount(c, logger, h.accountService, userID, accountID); !ok {
		return
	}

	logger = logger.With(slog.String("reference_id", referenceID), slog.String("kind", string(kind)))
	fundsReq := req.ToDomain(accountID, referenceID)

	var (
		record *domain.TransactionRecord
		err    error
	)
	if kind == domain.KindDeposit {
		record, err = h.transferService.Deposit(c.Request.Context(), fundsReq)
	} else {
		record, err = h.transferService.Withdraw(c.Request.Context(), fundsReq)
	}
	respondMovement(c, logger, record, err)
}
