package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stockcore/backend/internal/domain/shared"
	"github.com/stockcore/backend/internal/domain/shared/valueobject"
)

// StockAggregateRepository manages per-product stock aggregates
type StockAggregateRepository interface {
	// GetOrCreate returns the aggregate for a product, creating it on first use
	GetOrCreate(ctx context.Context, productID uuid.UUID) (*StockAggregate, error)
	// FindByProduct returns the aggregate for a product
	FindByProduct(ctx context.Context, productID uuid.UUID) (*StockAggregate, error)
}

// BalanceRepository manages stock location balances
type BalanceRepository interface {
	// FindByID returns a balance by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*StockLocationBalance, error)
	// FindByComposite returns the balance for product+warehouse+location,
	// where a nil location means the warehouse-level row
	FindByComposite(ctx context.Context, productID, warehouseID uuid.UUID, locationID *uuid.UUID) (*StockLocationBalance, error)
	// GetOrCreate returns the balance for the composite key, creating a
	// zeroed row on first movement
	GetOrCreate(ctx context.Context, aggregateID, productID, warehouseID uuid.UUID, locationID *uuid.UUID) (*StockLocationBalance, error)
	// FindByProduct returns every balance of a product across warehouses
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]StockLocationBalance, error)
	// FindByWarehouse returns balances in a warehouse, paginated
	FindByWarehouse(ctx context.Context, warehouseID uuid.UUID, filter shared.Filter) (shared.Paginated[StockLocationBalance], error)
	// FindAll returns balances matching the filter, paginated
	FindAll(ctx context.Context, filter shared.Filter) (shared.Paginated[StockLocationBalance], error)
	// Save persists a balance without version checking (initial creation)
	Save(ctx context.Context, balance *StockLocationBalance) error
	// SaveWithLock persists a balance only if the stored version has not
	// moved; a lost race surfaces as shared.ErrConcurrencyConflict
	SaveWithLock(ctx context.Context, balance *StockLocationBalance) error
}

// ReservationRepository manages stock reservations
type ReservationRepository interface {
	// FindByID returns a reservation by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	// FindActiveByBalance returns non-terminal reservations holding a balance
	FindActiveByBalance(ctx context.Context, balanceID uuid.UUID) ([]Reservation, error)
	// FindByDocument returns reservations backing a document
	FindByDocument(ctx context.Context, kind valueobject.DocumentKind, id string) ([]Reservation, error)
	// FindExpired returns non-terminal reservations whose expiry passed,
	// oldest first, capped at limit
	FindExpired(ctx context.Context, asOf time.Time, limit int) ([]Reservation, error)
	// Save persists a new reservation
	Save(ctx context.Context, reservation *Reservation) error
	// SaveWithLock persists a reservation with optimistic version checking
	SaveWithLock(ctx context.Context, reservation *Reservation) error
}

// LedgerRepository is the append-only transaction ledger. There is no update
// or delete: corrections happen through compensating movements.
type LedgerRepository interface {
	// Append persists a header with its lines; empty headers are rejected
	Append(ctx context.Context, header *TransactionHeader) error
	// HeaderByID returns a header with its lines
	HeaderByID(ctx context.Context, id uuid.UUID) (*TransactionHeader, error)
	// LinesForBalance returns a balance's lines ordered by (occurred_at, id)
	// so replay is deterministic; from/to bound the window when non-nil
	LinesForBalance(ctx context.Context, balanceID uuid.UUID, from, to *time.Time) ([]TransactionLine, error)
	// LinesForDocument returns every line recorded under a document
	LinesForDocument(ctx context.Context, kind valueobject.DocumentKind, id string) ([]TransactionLine, error)
	// HeadersForWarehouse returns headers for a warehouse, paginated
	HeadersForWarehouse(ctx context.Context, warehouseID uuid.UUID, filter shared.Filter) (shared.Paginated[TransactionHeader], error)
}

// LocationDirectory resolves whether a location belongs to a warehouse.
// Locations are opaque to stock tracking beyond this membership check.
type LocationDirectory interface {
	LocationInWarehouse(ctx context.Context, locationID, warehouseID uuid.UUID) (bool, error)
}
