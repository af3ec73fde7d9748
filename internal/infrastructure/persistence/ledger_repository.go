package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stockcore/backend/internal/domain/shared"
	"github.com/stockcore/backend/internal/domain/shared/valueobject"
	"github.com/stockcore/backend/internal/domain/stock"
	"gorm.io/gorm"
)

// GormLedgerRepository implements the append-only LedgerRepository using GORM.
// Headers and lines are written once and never updated or deleted.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Append persists a header with its lines; empty headers are rejected
func (r *GormLedgerRepository) Append(ctx context.Context, header *stock.TransactionHeader) error {
	if err := header.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(header).Error
}

// HeaderByID returns a header with its lines
func (r *GormLedgerRepository) HeaderByID(ctx context.Context, id uuid.UUID) (*stock.TransactionHeader, error) {
	var header stock.TransactionHeader
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&header, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &header, nil
}

// LinesForBalance returns a balance's lines ordered by (occurred_at, id) so
// replay is deterministic; from/to bound the window when non-nil
func (r *GormLedgerRepository) LinesForBalance(ctx context.Context, balanceID uuid.UUID, from, to *time.Time) ([]stock.TransactionLine, error) {
	query := r.db.WithContext(ctx).
		Where("balance_id = ?", balanceID)
	if from != nil {
		query = query.Where("occurred_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("occurred_at <= ?", *to)
	}

	var lines []stock.TransactionLine
	if err := query.Order("occurred_at, id").Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// LinesForDocument returns every line recorded under a document, joining
// through the headers that carry the document reference
func (r *GormLedgerRepository) LinesForDocument(ctx context.Context, kind valueobject.DocumentKind, id string) ([]stock.TransactionLine, error) {
	var lines []stock.TransactionLine
	if err := r.db.WithContext(ctx).
		Model(&stock.TransactionLine{}).
		Joins("JOIN stock_transaction_headers ON stock_transaction_headers.id = stock_transaction_lines.header_id").
		Where("stock_transaction_headers.document_kind = ? AND stock_transaction_headers.document_id = ?", kind, id).
		Order("stock_transaction_lines.occurred_at, stock_transaction_lines.id").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// HeadersForWarehouse returns headers for a warehouse, paginated
func (r *GormLedgerRepository) HeadersForWarehouse(ctx context.Context, warehouseID uuid.UUID, filter shared.Filter) (shared.Paginated[stock.TransactionHeader], error) {
	query := r.db.WithContext(ctx).
		Model(&stock.TransactionHeader{}).
		Where("warehouse_id = ?", warehouseID)

	for key, value := range filter.Filters {
		switch key {
		case "movement_type":
			query = query.Where("movement_type = ?", value)
		case "document_kind":
			query = query.Where("document_kind = ?", value)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[stock.TransactionHeader]{}, err
	}

	page, pageSize := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	query = query.Offset((page - 1) * pageSize).Limit(pageSize)

	orderBy := ValidateSortField(filter.OrderBy, TransactionSortFields, "occurred_at")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	var headers []stock.TransactionHeader
	if err := query.Preload("Lines").Find(&headers).Error; err != nil {
		return shared.Paginated[stock.TransactionHeader]{}, err
	}
	return shared.NewPaginated(headers, total, page, pageSize), nil
}

// Ensure GormLedgerRepository implements LedgerRepository
var _ stock.LedgerRepository = (*GormLedgerRepository)(nil)
