package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotswapper/slotswapper-api/internal/dto"
	"github.com/slotswapper/slotswapper-api/internal/middleware"
	"github.com/slotswapper/slotswapper-api/internal/service"
	appErrors "github.com/slotswapper/slotswapper-api/pkg/errors"
	"github.com/slotswapper/slotswapper-api/pkg/response"
)

// SwapHandler handles the swap marketplace endpoints.
type SwapHandler struct {
	swaps   *service.SwapService
	events  *service.EventService
	exports *service.ExportService
}

// NewSwapHandler constructs a swap handler.
func NewSwapHandler(swaps *service.SwapService, events *service.EventService, exports *service.ExportService) *SwapHandler {
	return &SwapHandler{swaps: swaps, events: events, exports: exports}
}

// SwappableSlots godoc
// @Summary List swappable slots from other users
// @Tags Swaps
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /swaps/swappable-slots [get]
func (h *SwapHandler) SwappableSlots(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	slots, cacheHit, err := h.events.ListSwappable(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, slots, nil)
}

// Create godoc
// @Summary Create a swap request
// @Tags Swaps
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateSwapRequest true "Swap request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /swaps/requests [post]
func (h *SwapHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid swap request payload"))
		return
	}

	swap, err := h.swaps.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, swap)
}

// Respond godoc
// @Summary Accept or reject a pending swap request
// @Tags Swaps
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Swap request ID"
// @Param payload body dto.RespondSwapRequest true "Response payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /swaps/requests/{id}/response [post]
func (h *SwapHandler) Respond(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.RespondSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid response payload"))
		return
	}

	swap, err := h.swaps.Respond(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, swap, nil)
}

// Cancel godoc
// @Summary Cancel a pending swap request
// @Tags Swaps
// @Produce json
// @Security BearerAuth
// @Param id path string true "Swap request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /swaps/requests/{id} [delete]
func (h *SwapHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	swap, err := h.swaps.Cancel(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, swap, nil)
}

// History godoc
// @Summary Swap request history
// @Tags Swaps
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /swaps/history [get]
func (h *SwapHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var query dto.SwapHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid history query"))
		return
	}

	swaps, summary, pagination, err := h.swaps.History(c.Request.Context(), claims.UserID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"requests": swaps, "summary": summary}, &pagination)
}

// ExportHistory godoc
// @Summary Export swap history
// @Tags Swaps
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string true "Export format (csv or pdf)"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /swaps/history/export [get]
func (h *SwapHandler) ExportHistory(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatCSV)))
	result, err := h.exports.ExportHistory(c.Request.Context(), claims.UserID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// MyRequests godoc
// @Summary Pending swap traffic split by direction
// @Tags Swaps
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /swaps/my-requests [get]
func (h *SwapHandler) MyRequests(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	inbox, err := h.swaps.Inbox(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, inbox, nil)
}
