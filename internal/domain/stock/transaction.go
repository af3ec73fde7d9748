package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockcore/backend/internal/domain/shared"
	"github.com/stockcore/backend/internal/domain/shared/valueobject"
)

// MovementType classifies why stock moved
type MovementType string

const (
	MovementTypeReceipt               MovementType = "RECEIPT"
	MovementTypeIssue                 MovementType = "ISSUE"
	MovementTypeTransferIn            MovementType = "TRANSFER_IN"
	MovementTypeTransferOut           MovementType = "TRANSFER_OUT"
	MovementTypeAdjustment            MovementType = "ADJUSTMENT"
	MovementTypeProductionConsumption MovementType = "PRODUCTION_CONSUMPTION"
	MovementTypeProductionOutput      MovementType = "PRODUCTION_OUTPUT"
	MovementTypeSalesDelivery         MovementType = "SALES_DELIVERY"
	MovementTypePurchaseReturn        MovementType = "PURCHASE_RETURN"
	MovementTypeSalesReturn           MovementType = "SALES_RETURN"
)

// IsValid returns true if the movement type is one of the known types
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeReceipt, MovementTypeIssue, MovementTypeTransferIn,
		MovementTypeTransferOut, MovementTypeAdjustment,
		MovementTypeProductionConsumption, MovementTypeProductionOutput,
		MovementTypeSalesDelivery, MovementTypePurchaseReturn, MovementTypeSalesReturn:
		return true
	}
	return false
}

// TransactionHeader is one ledger entry: a stock movement with its lines.
// Headers are append-only; nothing updates or deletes them once persisted.
type TransactionHeader struct {
	shared.BaseAggregateRoot
	MovementType MovementType `gorm:"size:32;not null;index"`
	OccurredAt   time.Time    `gorm:"not null;index"`
	WarehouseID  uuid.UUID    `gorm:"type:uuid;not null;index"`
	EmployeeID   *uuid.UUID   `gorm:"type:uuid"`

	DocumentKind valueobject.DocumentKind `gorm:"size:32;index:idx_transaction_document,priority:1"`
	DocumentID   string                   `gorm:"size:64;index:idx_transaction_document,priority:2"`

	TotalQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // Sum of absolute line quantities
	TotalAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // Sum of absolute line amounts

	Lines []TransactionLine `gorm:"foreignKey:HeaderID;references:ID"`
}

// TableName returns the table name for GORM
func (TransactionHeader) TableName() string {
	return "stock_transaction_headers"
}

// TransactionLine records the effect of one movement on one balance,
// including the on-hand quantity before and after the change. Replaying a
// balance's lines in (occurred_at, id) order reproduces its current stock.
type TransactionLine struct {
	shared.BaseEntity
	HeaderID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	BalanceID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_transaction_line_balance_time,priority:1"`
	ProductID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	LocationID *uuid.UUID `gorm:"type:uuid"`

	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Signed: positive inbound, negative outbound
	UnitCost    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	StockBefore decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	StockAfter  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OccurredAt  time.Time       `gorm:"not null;index:idx_transaction_line_balance_time,priority:2"`
}

// TableName returns the table name for GORM
func (TransactionLine) TableName() string {
	return "stock_transaction_lines"
}

// NewTransactionHeader creates a ledger header awaiting lines
func NewTransactionHeader(movementType MovementType, warehouseID uuid.UUID, document valueobject.DocumentReference, employeeID *uuid.UUID) (*TransactionHeader, error) {
	if !movementType.IsValid() {
		return nil, shared.NewDomainError("INVALID_MOVEMENT_TYPE", "Unknown movement type")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE", "Warehouse ID cannot be empty")
	}

	return &TransactionHeader{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		MovementType:      movementType,
		OccurredAt:        time.Now(),
		WarehouseID:       warehouseID,
		EmployeeID:        employeeID,
		DocumentKind:      document.Kind(),
		DocumentID:        document.ID(),
		TotalQuantity:     decimal.Zero,
		TotalAmount:       decimal.Zero,
		Lines:             make([]TransactionLine, 0),
	}, nil
}

// Document returns the source document reference, zero when absent
func (h *TransactionHeader) Document() valueobject.DocumentReference {
	if h.DocumentKind == "" && h.DocumentID == "" {
		return valueobject.DocumentReference{}
	}
	ref, _ := valueobject.NewDocumentReference(h.DocumentKind, h.DocumentID)
	return ref
}

// AddLine appends one balance effect to the header and rolls the totals
func (h *TransactionHeader) AddLine(balanceID, productID uuid.UUID, locationID *uuid.UUID, quantity, unitCost, stockBefore, stockAfter decimal.Decimal) error {
	if balanceID == uuid.Nil {
		return shared.NewDomainError("INVALID_BALANCE", "Balance ID cannot be empty")
	}
	if quantity.IsZero() {
		return shared.NewDomainError("INVALID_QUANTITY", "Line quantity cannot be zero")
	}

	amount := quantity.Mul(unitCost).Round(4)
	line := TransactionLine{
		BaseEntity:  shared.NewBaseEntity(),
		HeaderID:    h.ID,
		BalanceID:   balanceID,
		ProductID:   productID,
		LocationID:  locationID,
		Quantity:    quantity,
		UnitCost:    unitCost,
		Amount:      amount,
		StockBefore: stockBefore,
		StockAfter:  stockAfter,
		OccurredAt:  h.OccurredAt,
	}
	h.Lines = append(h.Lines, line)
	h.TotalQuantity = h.TotalQuantity.Add(quantity.Abs())
	h.TotalAmount = h.TotalAmount.Add(amount.Abs())
	return nil
}

// Validate checks that the header is complete enough to append to the ledger
func (h *TransactionHeader) Validate() error {
	if len(h.Lines) == 0 {
		return ErrEmptyTransaction
	}
	return nil
}
