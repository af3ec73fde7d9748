package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockcore/backend/internal/domain/shared/valueobject"
	"github.com/stockcore/backend/internal/domain/stock"
)

// MovementLineInput is one balance effect requested by a movement
type MovementLineInput struct {
	ProductID             uuid.UUID           `json:"product_id"`
	LocationID            *uuid.UUID          `json:"location_id,omitempty"`
	Quantity              decimal.Decimal     `json:"quantity"` // Signed: positive inbound, negative outbound
	UnitCost              decimal.NullDecimal `json:"unit_cost,omitempty"`
	FulfillsReservationID *uuid.UUID          `json:"fulfills_reservation_id,omitempty"`
}

// MovementRequest describes one stock movement to record
type MovementRequest struct {
	MovementType stock.MovementType            `json:"movement_type"`
	WarehouseID  uuid.UUID                     `json:"warehouse_id"`
	Document     valueobject.DocumentReference `json:"document"`
	EmployeeID   *uuid.UUID                    `json:"employee_id,omitempty"`
	Lines        []MovementLineInput           `json:"lines"`
}

// ReserveRequest asks for a hold on available stock
type ReserveRequest struct {
	ProductID   uuid.UUID                     `json:"product_id"`
	WarehouseID uuid.UUID                     `json:"warehouse_id"`
	LocationID  *uuid.UUID                    `json:"location_id,omitempty"`
	Quantity    decimal.Decimal               `json:"quantity"`
	Kind        stock.ReservationKind         `json:"kind"`
	Document    valueobject.DocumentReference `json:"document"`
	ExpiresAt   *time.Time                    `json:"expires_at,omitempty"`
}

// ReleaseRequest returns part of a hold to availability
type ReleaseRequest struct {
	ReservationID uuid.UUID       `json:"reservation_id"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// TransactionLineResponse mirrors one persisted ledger line
type TransactionLineResponse struct {
	ID          uuid.UUID       `json:"id"`
	BalanceID   uuid.UUID       `json:"balance_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	LocationID  *uuid.UUID      `json:"location_id,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Amount      decimal.Decimal `json:"amount"`
	StockBefore decimal.Decimal `json:"stock_before"`
	StockAfter  decimal.Decimal `json:"stock_after"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// TransactionHeaderResponse mirrors one persisted ledger entry
type TransactionHeaderResponse struct {
	ID            uuid.UUID                 `json:"id"`
	MovementType  stock.MovementType        `json:"movement_type"`
	WarehouseID   uuid.UUID                 `json:"warehouse_id"`
	Document      string                    `json:"document,omitempty"`
	EmployeeID    *uuid.UUID                `json:"employee_id,omitempty"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	TotalQuantity decimal.Decimal           `json:"total_quantity"`
	TotalAmount   decimal.Decimal           `json:"total_amount"`
	Lines         []TransactionLineResponse `json:"lines"`
}

// BalanceResponse is the external view of one stock location balance
type BalanceResponse struct {
	ID                uuid.UUID           `json:"id"`
	ProductID         uuid.UUID           `json:"product_id"`
	WarehouseID       uuid.UUID           `json:"warehouse_id"`
	LocationID        *uuid.UUID          `json:"location_id,omitempty"`
	CurrentStock      decimal.Decimal     `json:"current_stock"`
	ReservedStock     decimal.Decimal     `json:"reserved_stock"`
	InTransitStock    decimal.Decimal     `json:"in_transit_stock"`
	InProductionStock decimal.Decimal     `json:"in_production_stock"`
	AvailableStock    decimal.Decimal     `json:"available_stock"`
	AverageCost       decimal.NullDecimal `json:"average_cost"`
	LastMovementAt    *time.Time          `json:"last_movement_at,omitempty"`
	Version           int                 `json:"version"`
}

// ReservationResponse is the external view of one reservation
type ReservationResponse struct {
	ID               uuid.UUID               `json:"id"`
	BalanceID        *uuid.UUID              `json:"balance_id,omitempty"`
	Kind             stock.ReservationKind   `json:"kind"`
	Status           stock.ReservationStatus `json:"status"`
	ReservedQuantity decimal.Decimal         `json:"reserved_quantity"`
	ReleasedQuantity decimal.Decimal         `json:"released_quantity"`
	Outstanding      decimal.Decimal         `json:"outstanding"`
	ExpiresAt        *time.Time              `json:"expires_at,omitempty"`
	Document         string                  `json:"document"`
	CreatedAt        time.Time               `json:"created_at"`
}

// ToTransactionLineResponse converts a ledger line to its response form
func ToTransactionLineResponse(line *stock.TransactionLine) TransactionLineResponse {
	return TransactionLineResponse{
		ID:          line.ID,
		BalanceID:   line.BalanceID,
		ProductID:   line.ProductID,
		LocationID:  line.LocationID,
		Quantity:    line.Quantity,
		UnitCost:    line.UnitCost,
		Amount:      line.Amount,
		StockBefore: line.StockBefore,
		StockAfter:  line.StockAfter,
		OccurredAt:  line.OccurredAt,
	}
}

// ToTransactionHeaderResponse converts a ledger header to its response form
func ToTransactionHeaderResponse(header *stock.TransactionHeader) TransactionHeaderResponse {
	lines := make([]TransactionLineResponse, 0, len(header.Lines))
	for i := range header.Lines {
		lines = append(lines, ToTransactionLineResponse(&header.Lines[i]))
	}
	return TransactionHeaderResponse{
		ID:            header.ID,
		MovementType:  header.MovementType,
		WarehouseID:   header.WarehouseID,
		Document:      header.Document().String(),
		EmployeeID:    header.EmployeeID,
		OccurredAt:    header.OccurredAt,
		TotalQuantity: header.TotalQuantity,
		TotalAmount:   header.TotalAmount,
		Lines:         lines,
	}
}

// ToBalanceResponse converts a balance to its response form
func ToBalanceResponse(b *stock.StockLocationBalance) BalanceResponse {
	return BalanceResponse{
		ID:                b.ID,
		ProductID:         b.ProductID,
		WarehouseID:       b.WarehouseID,
		LocationID:        b.LocationID,
		CurrentStock:      b.CurrentStock,
		ReservedStock:     b.ReservedStock,
		InTransitStock:    b.InTransitStock,
		InProductionStock: b.InProductionStock,
		AvailableStock:    b.AvailableStock(),
		AverageCost:       b.AverageCost,
		LastMovementAt:    b.LastMovementAt,
		Version:           b.Version,
	}
}

// ToReservationResponse converts a reservation to its response form
func ToReservationResponse(r *stock.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:               r.ID,
		BalanceID:        r.BalanceID,
		Kind:             r.Kind,
		Status:           r.Status,
		ReservedQuantity: r.ReservedQuantity,
		ReleasedQuantity: r.ReleasedQuantity,
		Outstanding:      r.Outstanding(),
		ExpiresAt:        r.ExpiresAt,
		Document:         r.Document().String(),
		CreatedAt:        r.CreatedAt,
	}
}
