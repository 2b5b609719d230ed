package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"flashsale/internal/model"
	"flashsale/internal/monitor"
	"flashsale/internal/service/reservation"
	"flashsale/pkg/utils"
)

// ReservationEngine is the slice of the reservation engine the handler needs
type ReservationEngine interface {
	TryReserve(ctx context.Context, campaignID, userID uint64, quantity int, idempotencyKey string) (*model.Reservation, error)
	Release(ctx context.Context, reservationID uint64) error
}

// ReserveRequest API request for a reservation attempt
type ReserveRequest struct {
	CampaignID     uint64 `json:"campaign_id" binding:"required"`
	UserID         uint64 `json:"user_id" binding:"required"`
	Quantity       int    `json:"quantity" binding:"required,min=1"`
	IdempotencyKey string `json:"idempotency_key" binding:"required,max=64"`
}

// ReservationHandler reservation endpoints
type ReservationHandler struct {
	engine  ReservationEngine
	metrics *monitor.MetricsCollector
	tracer  *monitor.Tracer
}

// NewReservationHandler creates a reservation handler
func NewReservationHandler(engine ReservationEngine, metrics *monitor.MetricsCollector, tracer *monitor.Tracer) *ReservationHandler {
	return &ReservationHandler{
		engine:  engine,
		metrics: metrics,
		tracer:  tracer,
	}
}

// Reserve attempts a reservation
func (h *ReservationHandler) Reserve(c *gin.Context) {
	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, "invalid parameters: "+err.Error())
		return
	}

	ctx, span := h.tracer.StartReservationSpan(c.Request.Context(), req.CampaignID, req.UserID)
	defer span.End()

	start := time.Now()
	res, err := h.engine.TryReserve(ctx, req.CampaignID, req.UserID, req.Quantity, req.IdempotencyKey)
	if err != nil {
		h.tracer.RecordError(span, err)
		h.metrics.RecordReservation("rejected", time.Since(start))
		h.rejectReservation(c, err)
		return
	}

	h.metrics.RecordReservation("reserved", time.Since(start))
	utils.CreatedResponse(c, res)
}

// Release releases a reservation
func (h *ReservationHandler) Release(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, "invalid reservation id")
		return
	}

	if err := h.engine.Release(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, reservation.ErrReservationNotFound):
			h.metrics.RecordRelease("not_found")
			utils.ErrorResponse(c, http.StatusNotFound, utils.CodeNotFound, "reservation not found")
		case errors.Is(err, reservation.ErrAlreadyReleased):
			h.metrics.RecordRelease("already_released")
			utils.ErrorResponse(c, http.StatusConflict, utils.CodeConflict, "reservation already released")
		case errors.Is(err, reservation.ErrStorageUnavailable):
			h.metrics.RecordRelease("unavailable")
			utils.ErrorResponse(c, http.StatusServiceUnavailable, utils.CodeUnavailable, "storage unavailable, retry later")
		default:
			h.metrics.RecordRelease("error")
			utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeInternalError, "release failed")
		}
		return
	}

	h.metrics.RecordRelease("released")
	utils.SuccessResponse(c, gin.H{"released": true})
}

// rejectReservation maps engine rejections to HTTP responses. Transient
// storage trouble maps to 503 so clients retry; business rejections map to
// 4xx so they do not.
func (h *ReservationHandler) rejectReservation(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reservation.ErrCampaignNotFound):
		h.metrics.RecordRejection("campaign_not_found")
		utils.ErrorResponse(c, http.StatusNotFound, utils.CodeNotFound, "campaign not found")
	case errors.Is(err, reservation.ErrSoldOut):
		h.metrics.RecordRejection("sold_out")
		utils.ErrorResponse(c, http.StatusConflict, utils.CodeConflict, "campaign sold out")
	case errors.Is(err, reservation.ErrPerUserLimitExceeded):
		h.metrics.RecordRejection("per_user_limit")
		utils.ErrorResponse(c, http.StatusUnprocessableEntity, utils.CodeUnprocessable, "per-user purchase limit exceeded")
	case errors.Is(err, reservation.ErrPerPurchaseLimitExceeded):
		h.metrics.RecordRejection("per_purchase_limit")
		utils.ErrorResponse(c, http.StatusUnprocessableEntity, utils.CodeUnprocessable, "quantity exceeds per-purchase limit")
	case errors.Is(err, reservation.ErrCampaignNotPurchasable):
		h.metrics.RecordRejection("not_purchasable")
		utils.ErrorResponse(c, http.StatusForbidden, utils.CodeForbidden, "campaign is not purchasable")
	case errors.Is(err, reservation.ErrDisabled):
		h.metrics.RecordRejection("disabled")
		utils.ErrorResponse(c, http.StatusForbidden, utils.CodeForbidden, "campaign is disabled")
	case errors.Is(err, reservation.ErrInvalidQuantity):
		h.metrics.RecordRejection("invalid_quantity")
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, "quantity must be positive")
	case errors.Is(err, reservation.ErrStorageUnavailable):
		h.metrics.RecordRejection("storage_unavailable")
		utils.ErrorResponse(c, http.StatusServiceUnavailable, utils.CodeUnavailable, "storage unavailable, retry later")
	default:
		h.metrics.RecordRejection("internal")
		utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeInternalError, "reservation failed")
	}
}
