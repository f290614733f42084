package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portssvc "github.com/SscSPs/transfer_engine/internal/core/ports/services"
	"github.com/SscSPs/transfer_engine/internal/dto"
	"github.com/SscSPs/transfer_engine/internal/middleware"
	"github.com/gin-gonic/gin"
)

// EventSubscriber hands out live feeds of completed movements for one account.
type EventSubscriber interface {
	Subscribe(accountID string) (<-chan domain.TransferCompletedEvent, func())
}

const (
	sseEventName   = "transfer.completed"
	sseKeepAlive   = 20 * time.Second
	sseKeepAliveID = "keepalive"
)

type eventsHandler struct {
	accountService portssvc.AccountReaderSvc
	events         EventSubscriber
}

// RegisterEventRoutes registers the server-sent events stream.
func RegisterEventRoutes(rg *gin.RouterGroup, accountService portssvc.AccountReaderSvc, events EventSubscriber) {
	h := &eventsHandler{accountService: accountService, events: events}
	rg.GET("/events", h.stream)
}

// stream godoc
// @Summary Stream completed movements
// @Description Server-sent events for every movement touching the account, starting from now.
// @Tags events
// @Produce  text/event-stream
// @Param   accountID query string true "Account ID"
// @Success 200 {object} domain.TransferCompletedEvent
// @Failure 400 {object} dto.ErrorResponse "accountID missing"
// @Failure 403 {object} dto.ErrorResponse "Account belongs to another owner"
// @Failure 404 {object} dto.ErrorResponse "Account not found"
// @Security BearerAuth
// @Router /events [get]
func (h *eventsHandler) stream(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	accountID := c.Query("accountID")
	if accountID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "accountID query parameter is required"})
		return
	}

	userID, ok := principal(c, logger)
	if !ok {
		return
	}
	if _, ok := ownedAccount(c, logger, h.accountService, userID, accountID); !ok {
		return
	}

	events, cancel := h.events.Subscribe(accountID)
	defer cancel()

	logger.Info("Event stream opened", slog.String("account_id", accountID))
	defer logger.Info("Event stream closed", slog.String("account_id", accountID))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SSEvent(sseKeepAliveID, "")
		case event, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(sseEventName, event)
		}
		c.Writer.Flush()
	}
}
