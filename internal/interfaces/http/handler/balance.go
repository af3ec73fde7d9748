package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appstock "github.com/stockcore/backend/internal/application/stock"
	"github.com/stockcore/backend/internal/domain/shared"
	"github.com/stockcore/backend/internal/domain/shared/valueobject"
	"github.com/stockcore/backend/internal/interfaces/http/dto"
)

// parseDateTime parses a datetime string in the formats clients send
func parseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// BalanceHandler handles balance and ledger query API endpoints
type BalanceHandler struct {
	BaseHandler
	queryService *appstock.BalanceQueryService
}

// NewBalanceHandler creates a new BalanceHandler
func NewBalanceHandler(queryService *appstock.BalanceQueryService) *BalanceHandler {
	return &BalanceHandler{
		queryService: queryService,
	}
}

// List handles GET /stock/balances. With product_id and warehouse_id query
// parameters it resolves the single balance at that composite key (plus
// optional location_id); otherwise it returns a paginated listing.
func (h *BalanceHandler) List(c *gin.Context) {
	productIDStr := c.Query("product_id")
	warehouseIDStr := c.Query("warehouse_id")

	if productIDStr != "" && warehouseIDStr != "" {
		h.lookupCurrent(c, productIDStr, warehouseIDStr)
		return
	}

	listReq := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if listReq.Page <= 0 {
		listReq.Page = 1
	}
	if listReq.PageSize <= 0 {
		listReq.PageSize = 20
	}

	filter := shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
		OrderBy:  listReq.OrderBy,
		OrderDir: listReq.OrderDir,
		Filters:  map[string]interface{}{},
	}
	if productIDStr != "" {
		productID, err := uuid.Parse(productIDStr)
		if err != nil {
			h.BadRequest(c, "Invalid product ID format")
			return
		}
		filter.Filters["product_id"] = productID
	}
	if v := c.Query("has_stock"); v == "true" {
		filter.Filters["has_stock"] = true
	}
	if v := c.Query("has_reserved"); v == "true" {
		filter.Filters["has_reserved"] = true
	}

	var warehouseID *uuid.UUID
	if warehouseIDStr != "" {
		id, err := uuid.Parse(warehouseIDStr)
		if err != nil {
			h.BadRequest(c, "Invalid warehouse ID format")
			return
		}
		warehouseID = &id
	}

	page, err := h.queryService.ListBalances(c.Request.Context(), warehouseID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, filter.Page, filter.PageSize)
}

// lookupCurrent resolves the one balance at product+warehouse(+location)
func (h *BalanceHandler) lookupCurrent(c *gin.Context, productIDStr, warehouseIDStr string) {
	productID, err := uuid.Parse(productIDStr)
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}
	warehouseID, err := uuid.Parse(warehouseIDStr)
	if err != nil {
		h.BadRequest(c, "Invalid warehouse ID format")
		return
	}

	var locationID *uuid.UUID
	if s := c.Query("location_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			h.BadRequest(c, "Invalid location ID format")
			return
		}
		locationID = &id
	}

	balance, err := h.queryService.CurrentBalance(c.Request.Context(), productID, warehouseID, locationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, balance)
}

// GetByID handles GET /stock/balances/:id
func (h *BalanceHandler) GetByID(c *gin.Context) {
	balanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid balance ID format")
		return
	}

	balance, err := h.queryService.GetByID(c.Request.Context(), balanceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, balance)
}

// ListByProduct handles GET /stock/products/:product_id/balances
func (h *BalanceHandler) ListByProduct(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("product_id"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}

	balances, err := h.queryService.BalancesForProduct(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, balances)
}

// History handles GET /stock/balances/:id/transactions. The lines come back
// in replay order; from/to bound the window when given.
func (h *BalanceHandler) History(c *gin.Context) {
	balanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid balance ID format")
		return
	}

	var from, to *time.Time
	if s := c.Query("from"); s != "" {
		t, err := parseDateTime(s)
		if err != nil {
			h.BadRequest(c, "Invalid from date format")
			return
		}
		from = &t
	}
	if s := c.Query("to"); s != "" {
		t, err := parseDateTime(s)
		if err != nil {
			h.BadRequest(c, "Invalid to date format")
			return
		}
		to = &t
	}

	lines, err := h.queryService.History(c.Request.Context(), balanceID, from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, lines)
}

// DocumentHistory handles GET /stock/documents/:kind/:id/transactions
func (h *BalanceHandler) DocumentHistory(c *gin.Context) {
	kind := valueobject.DocumentKind(c.Param("kind"))
	if !kind.IsValid() {
		h.BadRequest(c, "Unknown document kind")
		return
	}
	documentID := c.Param("id")
	if documentID == "" {
		h.BadRequest(c, "Document ID is required")
		return
	}

	lines, err := h.queryService.DocumentHistory(c.Request.Context(), kind, documentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, lines)
}

// GetTransaction handles GET /stock/transactions/:id
func (h *BalanceHandler) GetTransaction(c *gin.Context) {
	headerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transaction ID format")
		return
	}

	header, err := h.queryService.Transaction(c.Request.Context(), headerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, header)
}
