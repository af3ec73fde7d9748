package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockcore/backend/internal/domain/shared"
)

// StockLocationBalance tracks the stock of one product at one warehouse
// location. It is the unit of mutual exclusion: every quantity change is
// serialized per balance through optimistic version locking.
// The composite identifier is ProductID + WarehouseID + LocationID, where a
// nil LocationID means warehouse-level stock without bin tracking.
type StockLocationBalance struct {
	shared.BaseAggregateRoot
	AggregateID uuid.UUID  `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_balance_product_warehouse_location,priority:1"`
	WarehouseID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_balance_product_warehouse_location,priority:2"`
	LocationID  *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_balance_product_warehouse_location,priority:3"`

	CurrentStock      decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"` // On-hand quantity
	ReservedStock     decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"` // Held for pending documents
	InTransitStock    decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"` // Shipped but not received
	InProductionStock decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"` // Committed to production
	AverageCost       decimal.NullDecimal `gorm:"type:decimal(18,4)"`                    // Moving weighted average, null until first costed receipt
	LastMovementAt    *time.Time

	BatchNumber string `gorm:"size:64"`
	ExpiryDate  *time.Time
}

// TableName returns the table name for GORM
func (StockLocationBalance) TableName() string {
	return "stock_location_balances"
}

// NewStockLocationBalance creates a zeroed balance for a product at a location
func NewStockLocationBalance(aggregateID, productID, warehouseID uuid.UUID, locationID *uuid.UUID) (*StockLocationBalance, error) {
	if aggregateID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_AGGREGATE", "Aggregate ID cannot be empty")
	}
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE", "Warehouse ID cannot be empty")
	}
	return &StockLocationBalance{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		AggregateID:       aggregateID,
		ProductID:         productID,
		WarehouseID:       warehouseID,
		LocationID:        locationID,
		CurrentStock:      decimal.Zero,
		ReservedStock:     decimal.Zero,
		InTransitStock:    decimal.Zero,
		InProductionStock: decimal.Zero,
	}, nil
}

// AvailableStock returns the quantity free to reserve (current - reserved)
func (b *StockLocationBalance) AvailableStock() decimal.Decimal {
	return b.CurrentStock.Sub(b.ReservedStock)
}

// BalanceDelta describes one atomic change to a balance. Quantities are
// signed; zero fields leave their bucket untouched. UnitCost, when valid and
// accompanying a positive OnHand delta, feeds the moving weighted average.
// A movement that fulfills a reservation carries the released hold as a
// negative Reserved component of the same delta, so the reserved-floor check
// below sees both sides of the fulfillment at once.
type BalanceDelta struct {
	OnHand       decimal.Decimal
	Reserved     decimal.Decimal
	InTransit    decimal.Decimal
	InProduction decimal.Decimal
	UnitCost     decimal.NullDecimal
}

// BalanceSnapshot is an immutable view of the quantity buckets at one instant
type BalanceSnapshot struct {
	CurrentStock      decimal.Decimal     `json:"current_stock"`
	ReservedStock     decimal.Decimal     `json:"reserved_stock"`
	InTransitStock    decimal.Decimal     `json:"in_transit_stock"`
	InProductionStock decimal.Decimal     `json:"in_production_stock"`
	AvailableStock    decimal.Decimal     `json:"available_stock"`
	AverageCost       decimal.NullDecimal `json:"average_cost"`
}

// Snapshot returns the current state of the quantity buckets
func (b *StockLocationBalance) Snapshot() BalanceSnapshot {
	return BalanceSnapshot{
		CurrentStock:      b.CurrentStock,
		ReservedStock:     b.ReservedStock,
		InTransitStock:    b.InTransitStock,
		InProductionStock: b.InProductionStock,
		AvailableStock:    b.AvailableStock(),
		AverageCost:       b.AverageCost,
	}
}

// ApplyDelta is the sole mutator of the quantity buckets. It validates every
// invariant, updates the moving weighted average cost on costed receipts, and
// returns the snapshot taken before the change so callers can record
// before/after pairs. On any error the balance is left untouched.
func (b *StockLocationBalance) ApplyDelta(delta BalanceDelta) (BalanceSnapshot, error) {
	before := b.Snapshot()

	newCurrent := b.CurrentStock.Add(delta.OnHand)
	newReserved := b.ReservedStock.Add(delta.Reserved)
	newInTransit := b.InTransitStock.Add(delta.InTransit)
	newInProduction := b.InProductionStock.Add(delta.InProduction)

	if newCurrent.IsNegative() {
		return before, ErrInsufficientStock
	}
	if newReserved.IsNegative() {
		return before, ErrOverRelease
	}
	if newInTransit.IsNegative() || newInProduction.IsNegative() {
		return before, shared.ErrInvalidState
	}

	// Reserved stock never exceeds on-hand stock. A decrement that would sink
	// below the remaining holds is a stock shortage; a hold that outgrows
	// on-hand stock is an availability shortage.
	if newReserved.GreaterThan(newCurrent) {
		if delta.OnHand.IsNegative() {
			return before, ErrInsufficientStock
		}
		return before, ErrInsufficientAvailable
	}

	// Moving weighted average on costed receipts:
	// newCost = (oldQty*oldCost + inQty*inCost) / (oldQty + inQty)
	if delta.OnHand.IsPositive() && delta.UnitCost.Valid {
		if !b.AverageCost.Valid || b.CurrentStock.LessThanOrEqual(decimal.Zero) {
			b.AverageCost = decimal.NewNullDecimal(delta.UnitCost.Decimal.Round(4))
		} else {
			totalValue := b.CurrentStock.Mul(b.AverageCost.Decimal).Add(delta.OnHand.Mul(delta.UnitCost.Decimal))
			b.AverageCost = decimal.NewNullDecimal(totalValue.Div(newCurrent).Round(4))
		}
	}

	b.CurrentStock = newCurrent
	b.ReservedStock = newReserved
	b.InTransitStock = newInTransit
	b.InProductionStock = newInProduction

	now := time.Now()
	b.LastMovementAt = &now
	b.UpdatedAt = now
	b.IncrementVersion()

	b.AddDomainEvent(NewBalanceChangedEvent(b, delta, before, b.Snapshot()))

	return before, nil
}

// Reserve places a hold on available stock
func (b *StockLocationBalance) Reserve(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Reservation quantity must be positive")
	}
	if b.AvailableStock().LessThan(quantity) {
		return ErrInsufficientAvailable
	}
	_, err := b.ApplyDelta(BalanceDelta{Reserved: quantity})
	return err
}

// ReleaseReserved returns held stock to availability. Current stock is never
// touched by a release.
func (b *StockLocationBalance) ReleaseReserved(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Release quantity must be positive")
	}
	if b.ReservedStock.LessThan(quantity) {
		return ErrOverRelease
	}
	_, err := b.ApplyDelta(BalanceDelta{Reserved: quantity.Neg()})
	return err
}
