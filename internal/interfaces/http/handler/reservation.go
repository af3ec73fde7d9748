package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	appstock "github.com/stockcore/backend/internal/application/stock"
	"github.com/stockcore/backend/internal/domain/shared/valueobject"
	"github.com/stockcore/backend/internal/domain/stock"
)

// ReservationHandler handles stock reservation API endpoints
type ReservationHandler struct {
	BaseHandler
	reservationService *appstock.ReservationService
}

// NewReservationHandler creates a new ReservationHandler
func NewReservationHandler(reservationService *appstock.ReservationService) *ReservationHandler {
	return &ReservationHandler{
		reservationService: reservationService,
	}
}

// CreateReservationRequest is the request body for placing a hold
type CreateReservationRequest struct {
	ProductID    string  `json:"product_id" binding:"required,uuid"`
	WarehouseID  string  `json:"warehouse_id" binding:"required,uuid"`
	LocationID   string  `json:"location_id" binding:"omitempty,uuid"`
	Quantity     float64 `json:"quantity" binding:"required,gt=0"`
	Kind         string  `json:"kind" binding:"required"`
	DocumentKind string  `json:"document_kind" binding:"required"`
	DocumentID   string  `json:"document_id" binding:"required"`
	ExpiresAt    string  `json:"expires_at" binding:"omitempty"`
}

// ReleaseReservationRequest is the request body for a partial or full release
type ReleaseReservationRequest struct {
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
}

// Create handles POST /stock/reservations
func (h *ReservationHandler) Create(c *gin.Context) {
	var req CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	document, err := valueobject.NewDocumentReference(valueobject.DocumentKind(req.DocumentKind), req.DocumentID)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var locationID *uuid.UUID
	if req.LocationID != "" {
		id := uuid.MustParse(req.LocationID)
		locationID = &id
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := parseDateTime(req.ExpiresAt)
		if err != nil {
			h.BadRequest(c, "Invalid expires_at format")
			return
		}
		expiresAt = &t
	}

	result, err := h.reservationService.Reserve(c.Request.Context(), appstock.ReserveRequest{
		ProductID:   uuid.MustParse(req.ProductID),
		WarehouseID: uuid.MustParse(req.WarehouseID),
		LocationID:  locationID,
		Quantity:    decimal.NewFromFloat(req.Quantity),
		Kind:        stock.ReservationKind(req.Kind),
		Document:    document,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// GetByID handles GET /stock/reservations/:id
func (h *ReservationHandler) GetByID(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid reservation ID format")
		return
	}

	result, err := h.reservationService.Get(c.Request.Context(), reservationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Release handles POST /stock/reservations/:id/release
func (h *ReservationHandler) Release(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid reservation ID format")
		return
	}

	var req ReleaseReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.reservationService.Release(c.Request.Context(), appstock.ReleaseRequest{
		ReservationID: reservationID,
		Quantity:      decimal.NewFromFloat(req.Quantity),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Cancel handles POST /stock/reservations/:id/cancel
func (h *ReservationHandler) Cancel(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid reservation ID format")
		return
	}

	result, err := h.reservationService.Cancel(c.Request.Context(), reservationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
