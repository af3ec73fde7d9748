package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stockcore/backend/internal/domain/shared"
	"github.com/stockcore/backend/internal/domain/stock"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockAggregateRepository implements StockAggregateRepository using GORM
type GormStockAggregateRepository struct {
	db *gorm.DB
}

// NewGormStockAggregateRepository creates a new GormStockAggregateRepository
func NewGormStockAggregateRepository(db *gorm.DB) *GormStockAggregateRepository {
	return &GormStockAggregateRepository{db: db}
}

// FindByProduct returns the aggregate for a product
func (r *GormStockAggregateRepository) FindByProduct(ctx context.Context, productID uuid.UUID) (*stock.StockAggregate, error) {
	var agg stock.StockAggregate
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		First(&agg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &agg, nil
}

// GetOrCreate returns the aggregate for a product, creating it on first use.
// ON CONFLICT DO NOTHING absorbs the race when two movements touch a new
// product at the same time; the loser re-reads the winner's row.
func (r *GormStockAggregateRepository) GetOrCreate(ctx context.Context, productID uuid.UUID) (*stock.StockAggregate, error) {
	agg, err := r.FindByProduct(ctx, productID)
	if err == nil {
		return agg, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	agg, err = stock.NewStockAggregate(productID)
	if err != nil {
		return nil, err
	}

	result := r.db.WithContext(ctx).
		Omit("Balances").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoNothing: true,
		}).
		Create(agg)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return r.FindByProduct(ctx, productID)
	}
	return agg, nil
}

// Ensure GormStockAggregateRepository implements StockAggregateRepository
var _ stock.StockAggregateRepository = (*GormStockAggregateRepository)(nil)
