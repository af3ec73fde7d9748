package stock

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockcore/backend/internal/domain/shared"
)

// Event type constants
const (
	EventTypeBalanceChanged       = "stock.balance_changed"
	EventTypeStockReserved        = "stock.reserved"
	EventTypeReservationReleased  = "stock.reservation_released"
	EventTypeReservationCancelled = "stock.reservation_cancelled"
	EventTypeReservationExpired   = "stock.reservation_expired"
	EventTypeMovementRecorded     = "stock.movement_recorded"
)

// BalanceChangedEvent is emitted whenever a balance's quantity buckets change
type BalanceChangedEvent struct {
	shared.BaseDomainEvent
	ProductID   uuid.UUID       `json:"product_id"`
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	LocationID  *uuid.UUID      `json:"location_id,omitempty"`
	Delta       BalanceDelta    `json:"delta"`
	Before      BalanceSnapshot `json:"before"`
	After       BalanceSnapshot `json:"after"`
}

// NewBalanceChangedEvent creates a balance changed event
func NewBalanceChangedEvent(b *StockLocationBalance, delta BalanceDelta, before, after BalanceSnapshot) *BalanceChangedEvent {
	return &BalanceChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBalanceChanged, "StockLocationBalance", b.ID),
		ProductID:       b.ProductID,
		WarehouseID:     b.WarehouseID,
		LocationID:      b.LocationID,
		Delta:           delta,
		Before:          before,
		After:           after,
	}
}

// StockReservedEvent is emitted when a reservation is created
type StockReservedEvent struct {
	shared.BaseDomainEvent
	BalanceID *uuid.UUID      `json:"balance_id,omitempty"`
	Kind      ReservationKind `json:"kind"`
	Quantity  decimal.Decimal `json:"quantity"`
	Document  string          `json:"document"`
}

// NewStockReservedEvent creates a stock reserved event
func NewStockReservedEvent(r *Reservation) *StockReservedEvent {
	return &StockReservedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockReserved, "Reservation", r.ID),
		BalanceID:       r.BalanceID,
		Kind:            r.Kind,
		Quantity:        r.ReservedQuantity,
		Document:        r.Document().String(),
	}
}

// ReservationReleasedEvent is emitted when held stock returns to availability
type ReservationReleasedEvent struct {
	shared.BaseDomainEvent
	BalanceID   *uuid.UUID        `json:"balance_id,omitempty"`
	Quantity    decimal.Decimal   `json:"quantity"`
	Outstanding decimal.Decimal   `json:"outstanding"`
	Status      ReservationStatus `json:"status"`
}

// NewReservationReleasedEvent creates a reservation released event
func NewReservationReleasedEvent(r *Reservation, quantity decimal.Decimal) *ReservationReleasedEvent {
	return &ReservationReleasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReservationReleased, "Reservation", r.ID),
		BalanceID:       r.BalanceID,
		Quantity:        quantity,
		Outstanding:     r.Outstanding(),
		Status:          r.Status,
	}
}

// ReservationCancelledEvent is emitted when a reservation is voided
type ReservationCancelledEvent struct {
	shared.BaseDomainEvent
	BalanceID *uuid.UUID      `json:"balance_id,omitempty"`
	Released  decimal.Decimal `json:"released"`
}

// NewReservationCancelledEvent creates a reservation cancelled event
func NewReservationCancelledEvent(r *Reservation, released decimal.Decimal) *ReservationCancelledEvent {
	return &ReservationCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReservationCancelled, "Reservation", r.ID),
		BalanceID:       r.BalanceID,
		Released:        released,
	}
}

// ReservationExpiredEvent is emitted when the expiry sweep ends a reservation
type ReservationExpiredEvent struct {
	shared.BaseDomainEvent
	BalanceID *uuid.UUID      `json:"balance_id,omitempty"`
	Released  decimal.Decimal `json:"released"`
}

// NewReservationExpiredEvent creates a reservation expired event
func NewReservationExpiredEvent(r *Reservation, released decimal.Decimal) *ReservationExpiredEvent {
	return &ReservationExpiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReservationExpired, "Reservation", r.ID),
		BalanceID:       r.BalanceID,
		Released:        released,
	}
}

// MovementRecordedEvent is emitted after a ledger header commits
type MovementRecordedEvent struct {
	shared.BaseDomainEvent
	MovementType MovementType    `json:"movement_type"`
	WarehouseID  uuid.UUID       `json:"warehouse_id"`
	Document     string          `json:"document"`
	LineCount    int             `json:"line_count"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// NewMovementRecordedEvent creates a movement recorded event
func NewMovementRecordedEvent(h *TransactionHeader) *MovementRecordedEvent {
	return &MovementRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMovementRecorded, "TransactionHeader", h.ID),
		MovementType:    h.MovementType,
		WarehouseID:     h.WarehouseID,
		Document:        h.Document().String(),
		LineCount:       len(h.Lines),
		TotalAmount:     h.TotalAmount,
	}
}
