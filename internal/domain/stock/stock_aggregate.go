package stock

import (
	"github.com/google/uuid"
	"github.com/stockcore/backend/internal/domain/shared"
)

// StockAggregate is the per-product root that groups every location balance
// of one product. It is created lazily on the product's first movement and
// never deleted.
type StockAggregate struct {
	shared.BaseAggregateRoot
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_aggregate_product"`

	// Associations - loaded lazily
	Balances []StockLocationBalance `gorm:"foreignKey:AggregateID;references:ID"`
}

// TableName returns the table name for GORM
func (StockAggregate) TableName() string {
	return "stock_aggregates"
}

// NewStockAggregate creates a stock aggregate for a product
func NewStockAggregate(productID uuid.UUID) (*StockAggregate, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	return &StockAggregate{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProductID:         productID,
		Balances:          make([]StockLocationBalance, 0),
	}, nil
}
