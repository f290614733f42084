package handlers

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	portssvc "github.com/SscSPs/transfer_engine/internal/core/ports/services"
	"github.com/SscSPs/transfer_engine/internal/dto"
	"github.com/SscSPs/transfer_engine/internal/middleware"
	"github.com/gin-gonic/gin"
)

type statsHandler struct {
	queryService portssvc.BalanceQuerySvc
	admins       []string
}

// RegisterStatsRoutes registers the journal summary, readable by admin subjects only.
func RegisterStatsRoutes(rg *gin.RouterGroup, queryService portssvc.BalanceQuerySvc, admins []string) {
	h := &statsHandler{queryService: queryService, admins: admins}
	rg.GET("/stats", h.getStats)
}

// getStats godoc
// @Summary Journal statistics
// @Description Counts and volumes of all journal records per kind, status and currency. Admin only.
// @Tags transactions
// @Produce  json
// @Success 200 {object} dto.StatsResponse
// @Failure 403 {object} dto.ErrorResponse "Caller is not an admin"
// @Security BearerAuth
// @Router /stats [get]
func (h *statsHandler) getStats(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := principal(c, logger)
	if !ok {
		return
	}
	if !slices.Contains(h.admins, userID) {
		respondError(c, logger, fmt.Errorf("%w: admin access required", apperrors.ErrForbidden), nil)
		return
	}

	stats, err := h.queryService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, dto.ToStatsResponse(stats))
}
