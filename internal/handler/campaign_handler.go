package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"flashsale/internal/model"
	"flashsale/internal/service/campaign"
	"flashsale/pkg/utils"
)

// CampaignService is the slice of the campaign service the handler needs
type CampaignService interface {
	Create(ctx context.Context, req *campaign.CreateRequest) (*model.Campaign, error)
	Get(ctx context.Context, id uint64) (*campaign.View, error)
	Update(ctx context.Context, id uint64, req *campaign.UpdateRequest) (*model.Campaign, error)
	Delete(ctx context.Context, id uint64) error
	SetEnabled(ctx context.Context, id uint64, enabled bool) error
	ListActive(ctx context.Context, page, pageSize int) ([]*campaign.View, int64, error)
	ListUpcoming(ctx context.Context, limit int) ([]*campaign.View, error)
	ListEndingSoon(ctx context.Context) ([]*campaign.View, error)
	RecordView(ctx context.Context, id uint64) error
	RecordClick(ctx context.Context, id uint64) error
	Stats(ctx context.Context, id uint64) (*campaign.Stats, error)
}

// CampaignHandler campaign administration and read endpoints
type CampaignHandler struct {
	campaigns CampaignService
}

// NewCampaignHandler creates a campaign handler
func NewCampaignHandler(campaigns CampaignService) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns}
}

// Create creates a campaign
func (h *CampaignHandler) Create(c *gin.Context) {
	var req campaign.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, "invalid parameters: "+err.Error())
		return
	}

	created, err := h.campaigns.Create(c.Request.Context(), &req)
	if err != nil {
		h.campaignError(c, err)
		return
	}
	utils.CreatedResponse(c, created)
}

// Get returns a campaign with its derived status
func (h *CampaignHandler) Get(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}

	view, err := h.campaigns.Get(c.Request.Context(), id)
	if err != nil {
		h.campaignError(c, err)
		return
	}
	utils.SuccessResponse(c, view)
}

// Update updates mutable campaign fields
func (h *CampaignHandler) Update(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}

	var req campaign.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, "invalid parameters: "+err.Error())
		return
	}

	updated, err := h.campaigns.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.campaignError(c, err)
		return
	}
	utils.SuccessResponse(c, updated)
}

// Delete removes an ended campaign
func (h *CampaignHandler) Delete(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}

	if err := h.campaigns.Delete(c.Request.Context(), id); err != nil {
		h.campaignError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"deleted": true})
}

// Enable turns the kill-switch on
func (h *CampaignHandler) Enable(c *gin.Context) {
	h.setEnabled(c, true)
}

// Disable turns the kill-switch off
func (h *CampaignHandler) Disable(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *CampaignHandler) setEnabled(c *gin.Context, enabled bool) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}

	if err := h.campaigns.SetEnabled(c.Request.Context(), id, enabled); err != nil {
		h.campaignError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"enabled": enabled})
}

// ListActive lists campaigns currently inside their sale window
func (h *CampaignHandler) ListActive(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	views, total, err := h.campaigns.ListActive(c.Request.Context(), page, size)
	if err != nil {
		h.campaignError(c, err)
		return
	}
	utils.SuccessPageResponse(c, views, total, page, size)
}

// ListUpcoming lists campaigns that have not started yet
func (h *CampaignHandler) ListUpcoming(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	views, err := h.campaigns.ListUpcoming(c.Request.Context(), limit)
	if err != nil {
		h.campaignError(c, err)
		return
	}
	utils.SuccessResponse(c, views)
}

// ListEndingSoon lists campaigns closing within the configured window
func (h *CampaignHandler) ListEndingSoon(c *gin.Context) {
	views, err := h.campaigns.ListEndingSoon(c.Request.Context())
	if err != nil {
		h.campaignError(c, err)
		return
	}
	utils.SuccessResponse(c, views)
}

// Stats returns the campaign funnel and stock picture
func (h *CampaignHandler) Stats(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}

	stats, err := h.campaigns.Stats(c.Request.Context(), id)
	if err != nil {
		h.campaignError(c, err)
		return
	}
	utils.SuccessResponse(c, stats)
}

// RecordView counts a campaign page view
func (h *CampaignHandler) RecordView(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}

	if err := h.campaigns.RecordView(c.Request.Context(), id); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeInternalError, "failed to record view")
		return
	}
	utils.SuccessResponse(c, gin.H{"recorded": true})
}

// RecordClick counts a buy-button click
func (h *CampaignHandler) RecordClick(c *gin.Context) {
	id, ok := h.campaignID(c)
	if !ok {
		return
	}

	if err := h.campaigns.RecordClick(c.Request.Context(), id); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeInternalError, "failed to record click")
		return
	}
	utils.SuccessResponse(c, gin.H{"recorded": true})
}

func (h *CampaignHandler) campaignID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, "invalid campaign id")
		return 0, false
	}
	return id, true
}

func (h *CampaignHandler) campaignError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, utils.CodeNotFound, "campaign not found")
	case errors.Is(err, campaign.ErrInvalidWindow),
		errors.Is(err, campaign.ErrInvalidQuantity),
		errors.Is(err, campaign.ErrInvalidUserLimit),
		errors.Is(err, campaign.ErrInvalidPrice):
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, err.Error())
	case errors.Is(err, campaign.ErrQuantityBelow),
		errors.Is(err, campaign.ErrQuantityLocked):
		utils.ErrorResponse(c, http.StatusUnprocessableEntity, utils.CodeUnprocessable, err.Error())
	case errors.Is(err, campaign.ErrNotEnded):
		utils.ErrorResponse(c, http.StatusConflict, utils.CodeConflict, err.Error())
	default:
		utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeInternalError, "request failed")
	}
}
