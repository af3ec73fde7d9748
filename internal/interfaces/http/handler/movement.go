package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	appstock "github.com/stockcore/backend/internal/application/stock"
	"github.com/stockcore/backend/internal/domain/shared/valueobject"
	"github.com/stockcore/backend/internal/domain/stock"
)

// MovementHandler handles stock movement API endpoints
type MovementHandler struct {
	BaseHandler
	movementService *appstock.MovementService
}

// NewMovementHandler creates a new MovementHandler
func NewMovementHandler(movementService *appstock.MovementService) *MovementHandler {
	return &MovementHandler{
		movementService: movementService,
	}
}

// MovementLineRequest is one balance effect in a movement request
type MovementLineRequest struct {
	ProductID             string   `json:"product_id" binding:"required,uuid"`
	LocationID            string   `json:"location_id" binding:"omitempty,uuid"`
	Quantity              float64  `json:"quantity" binding:"required"`
	UnitCost              *float64 `json:"unit_cost" binding:"omitempty,gte=0"`
	FulfillsReservationID string   `json:"fulfills_reservation_id" binding:"omitempty,uuid"`
}

// RecordMovementRequest is the request body for recording a stock movement
type RecordMovementRequest struct {
	MovementType string                `json:"movement_type" binding:"required"`
	WarehouseID  string                `json:"warehouse_id" binding:"required,uuid"`
	DocumentKind string                `json:"document_kind" binding:"omitempty"`
	DocumentID   string                `json:"document_id" binding:"omitempty"`
	EmployeeID   string                `json:"employee_id" binding:"omitempty,uuid"`
	Lines        []MovementLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// Record handles POST /stock/movements. All quantity changes, inbound and
// outbound alike, enter through here; each line quantity is signed.
func (h *MovementHandler) Record(c *gin.Context) {
	var req RecordMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	warehouseID := uuid.MustParse(req.WarehouseID)

	document := valueobject.DocumentReference{}
	if req.DocumentKind != "" || req.DocumentID != "" {
		ref, err := valueobject.NewDocumentReference(valueobject.DocumentKind(req.DocumentKind), req.DocumentID)
		if err != nil {
			h.BadRequest(c, err.Error())
			return
		}
		document = ref
	}

	var employeeID *uuid.UUID
	if req.EmployeeID != "" {
		id := uuid.MustParse(req.EmployeeID)
		employeeID = &id
	}

	lines := make([]appstock.MovementLineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		input := appstock.MovementLineInput{
			ProductID: uuid.MustParse(l.ProductID),
			Quantity:  decimal.NewFromFloat(l.Quantity),
		}
		if l.LocationID != "" {
			id := uuid.MustParse(l.LocationID)
			input.LocationID = &id
		}
		if l.UnitCost != nil {
			input.UnitCost = decimal.NewNullDecimal(decimal.NewFromFloat(*l.UnitCost))
		}
		if l.FulfillsReservationID != "" {
			id := uuid.MustParse(l.FulfillsReservationID)
			input.FulfillsReservationID = &id
		}
		lines = append(lines, input)
	}

	result, err := h.movementService.Move(c.Request.Context(), appstock.MovementRequest{
		MovementType: stock.MovementType(req.MovementType),
		WarehouseID:  warehouseID,
		Document:     document,
		EmployeeID:   employeeID,
		Lines:        lines,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}
