package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/transfer_engine/internal/core/ports/services"
	"github.com/SscSPs/transfer_engine/internal/dto"
	"github.com/SscSPs/transfer_engine/internal/middleware"
	"github.com/gin-gonic/gin"
)

// accountHandler handles HTTP requests related to accounts.
type accountHandler struct {
	accountService portssvc.AccountSvcFacade
	queryService   portssvc.BalanceQuerySvc
}

// newAccountHandler creates a new accountHandler.
func newAccountHandler(as portssvc.AccountSvcFacade, qs portssvc.BalanceQuerySvc) *accountHandler {
	return &accountHandler{
		accountService: as,
		queryService:   qs,
	}
}

// RegisterAccountRoutes registers routes related to accounts.
// mutating carries middleware applied only to state-changing routes, such as rate limiting.
func RegisterAccountRoutes(rg *gin.RouterGroup, accountService portssvc.AccountSvcFacade, queryService portssvc.BalanceQuerySvc, mutating ...gin.HandlerFunc) {
	h := newAccountHandler(accountService, queryService)

	accounts := rg.Group("/accounts")
	{
		accounts.POST("", withMiddleware(mutating, h.createAccount)...)
		accounts.GET("", h.listAccounts)
		accounts.GET("/:accountID", h.getAccount)
		accounts.GET("/:accountID/balance", h.getBalance)
		accounts.GET("/:accountID/transactions", h.listTransactions)
		accounts.PUT("/:accountID/status", withMiddleware(mutating, h.updateStatus)...)
	}
}

// createAccount godoc
// @Summary Open a new account
// @Description Opens an ACTIVE account with a zero balance for the logged-in user
// @Tags accounts
// @Accept  json
// @Produce  json
// @Param   account body dto.CreateAccountRequest true "Account details"
// @Success 201 {object} dto.AccountResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input format or validation error"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 500 {object} dto.ErrorResponse "Failed to open account"
// @Security BearerAuth
// @Router /accounts [post]
func (h *accountHandler) createAccount(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, "Invalid request format", err)
		return
	}

	ownerID, ok := principal(c, logger)
	if !ok {
		return
	}

	logger.Info("Received request to open account", slog.String("currency_code", req.CurrencyCode))

	account, err := h.accountService.OpenAccount(c.Request.Context(), ownerID, req)
	if err != nil {
		respondError(c, logger, err, nil)
		return
	}

	logger.Info("Account opened", slog.String("account_id", account.AccountID))
	c.JSON(http.StatusCreated, dto.ToAccountResponse(account))
}

// listAccounts godoc
// @Summary List accounts
// @Description Lists the accounts held by the logged-in user
// @Tags accounts
// @Produce  json
// @Success 200 {array} dto.AccountResponse
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 500 {object} dto.ErrorResponse "Failed to list accounts"
// @Security BearerAuth
// @Router /accounts [get]
func (h *accountHandler) listAccounts(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	ownerID, ok := principal(c, logger)
	if !ok {
		return
	}

	accounts, err := h.accountService.ListAccountsByOwner(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, dto.ToListAccountResponse(accounts))
}

// getAccount godoc
// @Summary Get an account
// @Tags accounts
// @Produce  json
// @Param   accountID path string true "Account ID"
// @Success 200 {object} dto.AccountResponse
// @Failure 403 {object} dto.ErrorResponse "Account belongs to another owner"
// @Failure 404 {object} dto.ErrorResponse "Account not found"
// @Security BearerAuth
// @Router /accounts/{accountID} [get]
func (h *accountHandler) getAccount(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := principal(c, logger)
	if !ok {
		return
	}

	account, ok := ownedAccount(c, logger, h.accountService, userID, c.Param("accountID"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.ToAccountResponse(account))
}

// getBalance godoc
// @Summary Get account balance
// @Description Returns the committed balance and version of an account
// @Tags accounts
// @Produce  json
// @Param   accountID path string true "Account ID"
// @Success 200 {object} dto.BalanceResponse
// @Failure 403 {object} dto.ErrorResponse "Account belongs to another owner"
// @Failure 404 {object} dto.ErrorResponse "Account not found"
// @Security BearerAuth
// @Router /accounts/{accountID}/balance [get]
func (h *accountHandler) getBalance(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := principal(c, logger)
	if !ok {
		return
	}
	accountID := c.Param("accountID")
	if _, ok := ownedAccount(c, logger, h.accountService, userID, accountID); !ok {
		return
	}

	balance, err := h.queryService.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, dto.ToBalanceResponse(balance))
}

// listTransactions godoc
// @Summary List account transactions
// @Description Lists journal records touching the account, newest first, using token pagination
// @Tags accounts
// @Produce  json
// @Param   accountID path string true "Account ID"
// @Param   limit query int false "Page size (1-100)" default(20)
// @Param   nextToken query string false "Token from the previous page"
// @Success 200 {object} dto.ListTransactionsResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid query parameters"
// @Failure 403 {object} dto.ErrorResponse "Account belongs to another owner"
// @Failure 404 {object} dto.ErrorResponse "Account not found"
// @Security BearerAuth
// @Router /accounts/{accountID}/transactions [get]
func (h *accountHandler) listTransactions(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var params dto.ListTransactionsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		badRequest(c, logger, "Invalid query parameters", err)
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

	var nextToken *string
	if params.NextToken != "" {
		nextToken = &params.NextToken
	}
	page, err := h.queryService.ListByAccount(c.Request.Context(), accountID, params.Limit, nextToken)
	if err != nil {
		respondError(c, logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, dto.ToListTransactionsResponse(page))
}

// updateStatus godoc
// @Summary Change account status
// @Description Freezes, unfreezes or closes an account. Only empty accounts can be closed.
// @Tags accounts
// @Accept  json
// @Produce  json
// @Param   accountID path string true "Account ID"
// @Param   status body dto.UpdateAccountStatusRequest true "New status"
// @Success 200 {object} dto.AccountResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid status or transition"
// @Failure 403 {object} dto.ErrorResponse "Account belongs to another owner"
// @Failure 404 {object} dto.ErrorResponse "Account not found"
// @Failure 409 {object} dto.ErrorResponse "Concurrent modification"
// @Security BearerAuth
// @Router /accounts/{accountID}/status [put]
func (h *accountHandler) updateStatus(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.UpdateAccountStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, "Invalid request format", err)
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

	account, err := h.accountService.ChangeStatus(c.Request.Context(), accountID, req.Status)
	if err != nil {
		respondError(c, logger, err, nil)
		return
	}

	logger.Info("Account status changed", slog.String("account_id", accountID), slog.String("status", string(account.Status)))
	c.JSON(http.StatusOK, dto.ToAccountResponse(account))
}
