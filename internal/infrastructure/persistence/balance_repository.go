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

// GormBalanceRepository implements BalanceRepository using GORM
type GormBalanceRepository struct {
	db *gorm.DB
}

// NewGormBalanceRepository creates a new GormBalanceRepository
func NewGormBalanceRepository(db *gorm.DB) *GormBalanceRepository {
	return &GormBalanceRepository{db: db}
}

// FindByID returns a balance by its ID
func (r *GormBalanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.StockLocationBalance, error) {
	var bal stock.StockLocationBalance
	if err := r.db.WithContext(ctx).First(&bal, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &bal, nil
}

// FindByComposite returns the balance for product+warehouse+location, where a
// nil location means the warehouse-level row
func (r *GormBalanceRepository) FindByComposite(ctx context.Context, productID, warehouseID uuid.UUID, locationID *uuid.UUID) (*stock.StockLocationBalance, error) {
	query := r.db.WithContext(ctx).
		Where("product_id = ? AND warehouse_id = ?", productID, warehouseID)
	if locationID != nil {
		query = query.Where("location_id = ?", *locationID)
	} else {
		query = query.Where("location_id IS NULL")
	}

	var bal stock.StockLocationBalance
	if err := query.First(&bal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &bal, nil
}

// GetOrCreate returns the balance for the composite key, creating a zeroed row
// on first movement. Creation races resolve through ON CONFLICT DO NOTHING
// plus a re-read.
func (r *GormBalanceRepository) GetOrCreate(ctx context.Context, aggregateID, productID, warehouseID uuid.UUID, locationID *uuid.UUID) (*stock.StockLocationBalance, error) {
	bal, err := r.FindByComposite(ctx, productID, warehouseID, locationID)
	if err == nil {
		return bal, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	bal, err = stock.NewStockLocationBalance(aggregateID, productID, warehouseID, locationID)
	if err != nil {
		return nil, err
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "warehouse_id"}, {Name: "location_id"}},
			DoNothing: true,
		}).
		Create(bal)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return r.FindByComposite(ctx, productID, warehouseID, locationID)
	}
	return bal, nil
}

// FindByProduct returns every balance of a product across warehouses
func (r *GormBalanceRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]stock.StockLocationBalance, error) {
	var balances []stock.StockLocationBalance
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("warehouse_id, location_id").
		Find(&balances).Error; err != nil {
		return nil, err
	}
	return balances, nil
}

// FindByWarehouse returns balances in a warehouse, paginated
func (r *GormBalanceRepository) FindByWarehouse(ctx context.Context, warehouseID uuid.UUID, filter shared.Filter) (shared.Paginated[stock.StockLocationBalance], error) {
	base := r.db.WithContext(ctx).
		Model(&stock.StockLocationBalance{}).
		Where("warehouse_id = ?", warehouseID)
	return r.paginate(base, filter)
}

// FindAll returns balances matching the filter, paginated
func (r *GormBalanceRepository) FindAll(ctx context.Context, filter shared.Filter) (shared.Paginated[stock.StockLocationBalance], error) {
	base := r.db.WithContext(ctx).Model(&stock.StockLocationBalance{})
	return r.paginate(base, filter)
}

// Save persists a balance without version checking (initial creation)
func (r *GormBalanceRepository) Save(ctx context.Context, balance *stock.StockLocationBalance) error {
	return r.db.WithContext(ctx).Save(balance).Error
}

// SaveWithLock persists a balance only if the stored version has not moved.
// The in-memory aggregate already carries the incremented version, so the
// predicate compares against version-1; zero rows affected means another
// transaction won the race.
func (r *GormBalanceRepository) SaveWithLock(ctx context.Context, balance *stock.StockLocationBalance) error {
	result := r.db.WithContext(ctx).
		Model(balance).
		Where("id = ? AND version = ?", balance.ID, balance.Version-1).
		Updates(map[string]interface{}{
			"current_stock":       balance.CurrentStock,
			"reserved_stock":      balance.ReservedStock,
			"in_transit_stock":    balance.InTransitStock,
			"in_production_stock": balance.InProductionStock,
			"average_cost":        balance.AverageCost,
			"last_movement_at":    balance.LastMovementAt,
			"batch_number":        balance.BatchNumber,
			"expiry_date":         balance.ExpiryDate,
			"version":             balance.Version,
			"updated_at":          balance.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// paginate applies filter options and wraps results with totals
func (r *GormBalanceRepository) paginate(query *gorm.DB, filter shared.Filter) (shared.Paginated[stock.StockLocationBalance], error) {
	query = applyBalanceFilters(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[stock.StockLocationBalance]{}, err
	}

	page, pageSize := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	query = query.Offset((page - 1) * pageSize).Limit(pageSize)

	orderBy := ValidateSortField(filter.OrderBy, BalanceSortFields, "created_at")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	var items []stock.StockLocationBalance
	if err := query.Find(&items).Error; err != nil {
		return shared.Paginated[stock.StockLocationBalance]{}, err
	}
	return shared.NewPaginated(items, total, page, pageSize), nil
}

func applyBalanceFilters(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "product_id":
			query = query.Where("product_id = ?", value)
		case "location_id":
			query = query.Where("location_id = ?", value)
		case "has_stock":
			if value == true {
				query = query.Where("current_stock > 0")
			}
		case "has_reserved":
			if value == true {
				query = query.Where("reserved_stock > 0")
			}
		}
	}
	return query
}

// Ensure GormBalanceRepository implements BalanceRepository
var _ stock.BalanceRepository = (*GormBalanceRepository)(nil)
