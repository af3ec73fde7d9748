package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	appstock "github.com/stockcore/backend/internal/application/stock"
	"github.com/stockcore/backend/internal/domain/shared"
	"github.com/stockcore/backend/internal/domain/shared/valueobject"
	"github.com/stockcore/backend/internal/domain/stock"
)

// Map-backed repository mocks shared by the stock handler tests.

type mockAggregateRepository struct {
	byProduct map[uuid.UUID]*stock.StockAggregate
}

func newMockAggregateRepository() *mockAggregateRepository {
	return &mockAggregateRepository{byProduct: make(map[uuid.UUID]*stock.StockAggregate)}
}

func (m *mockAggregateRepository) GetOrCreate(ctx context.Context, productID uuid.UUID) (*stock.StockAggregate, error) {
	if agg, ok := m.byProduct[productID]; ok {
		return agg, nil
	}
	agg, err := stock.NewStockAggregate(productID)
	if err != nil {
		return nil, err
	}
	m.byProduct[productID] = agg
	return agg, nil
}

func (m *mockAggregateRepository) FindByProduct(ctx context.Context, productID uuid.UUID) (*stock.StockAggregate, error) {
	if agg, ok := m.byProduct[productID]; ok {
		return agg, nil
	}
	return nil, shared.ErrNotFound
}

type mockBalanceRepository struct {
	balances map[uuid.UUID]*stock.StockLocationBalance
}

func newMockBalanceRepository() *mockBalanceRepository {
	return &mockBalanceRepository{balances: make(map[uuid.UUID]*stock.StockLocationBalance)}
}

func (m *mockBalanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.StockLocationBalance, error) {
	if bal, ok := m.balances[id]; ok {
		return bal, nil
	}
	return nil, shared.ErrNotFound
}

func sameLocation(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *mockBalanceRepository) FindByComposite(ctx context.Context, productID, warehouseID uuid.UUID, locationID *uuid.UUID) (*stock.StockLocationBalance, error) {
	for _, bal := range m.balances {
		if bal.ProductID == productID && bal.WarehouseID == warehouseID && sameLocation(bal.LocationID, locationID) {
			return bal, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockBalanceRepository) GetOrCreate(ctx context.Context, aggregateID, productID, warehouseID uuid.UUID, locationID *uuid.UUID) (*stock.StockLocationBalance, error) {
	if bal, err := m.FindByComposite(ctx, productID, warehouseID, locationID); err == nil {
		return bal, nil
	}
	bal, err := stock.NewStockLocationBalance(aggregateID, productID, warehouseID, locationID)
	if err != nil {
		return nil, err
	}
	m.balances[bal.ID] = bal
	return bal, nil
}

func (m *mockBalanceRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]stock.StockLocationBalance, error) {
	var result []stock.StockLocationBalance
	for _, bal := range m.balances {
		if bal.ProductID == productID {
			result = append(result, *bal)
		}
	}
	return result, nil
}

func (m *mockBalanceRepository) FindByWarehouse(ctx context.Context, warehouseID uuid.UUID, filter shared.Filter) (shared.Paginated[stock.StockLocationBalance], error) {
	var items []stock.StockLocationBalance
	for _, bal := range m.balances {
		if bal.WarehouseID == warehouseID {
			items = append(items, *bal)
		}
	}
	return shared.NewPaginated(items, int64(len(items)), filter.Page, filter.PageSize), nil
}

func (m *mockBalanceRepository) FindAll(ctx context.Context, filter shared.Filter) (shared.Paginated[stock.StockLocationBalance], error) {
	var items []stock.StockLocationBalance
	for _, bal := range m.balances {
		items = append(items, *bal)
	}
	return shared.NewPaginated(items, int64(len(items)), filter.Page, filter.PageSize), nil
}

func (m *mockBalanceRepository) Save(ctx context.Context, balance *stock.StockLocationBalance) error {
	m.balances[balance.ID] = balance
	return nil
}

func (m *mockBalanceRepository) SaveWithLock(ctx context.Context, balance *stock.StockLocationBalance) error {
	m.balances[balance.ID] = balance
	return nil
}

type mockReservationRepository struct {
	reservations map[uuid.UUID]*stock.Reservation
}

func newMockReservationRepository() *mockReservationRepository {
	return &mockReservationRepository{reservations: make(map[uuid.UUID]*stock.Reservation)}
}

func (m *mockReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.Reservation, error) {
	if res, ok := m.reservations[id]; ok {
		return res, nil
	}
	return nil, shared.ErrNotFound
}

func (m *mockReservationRepository) FindActiveByBalance(ctx context.Context, balanceID uuid.UUID) ([]stock.Reservation, error) {
	var result []stock.Reservation
	for _, res := range m.reservations {
		if res.BalanceID != nil && *res.BalanceID == balanceID && !res.Status.IsTerminal() {
			result = append(result, *res)
		}
	}
	return result, nil
}

func (m *mockReservationRepository) FindByDocument(ctx context.Context, kind valueobject.DocumentKind, id string) ([]stock.Reservation, error) {
	var result []stock.Reservation
	for _, res := range m.reservations {
		if res.DocumentKind == kind && res.DocumentID == id {
			result = append(result, *res)
		}
	}
	return result, nil
}

func (m *mockReservationRepository) FindExpired(ctx context.Context, asOf time.Time, limit int) ([]stock.Reservation, error) {
	var result []stock.Reservation
	for _, res := range m.reservations {
		if len(result) >= limit {
			break
		}
		if res.IsExpiredAt(asOf) && !res.Status.IsTerminal() {
			result = append(result, *res)
		}
	}
	return result, nil
}

func (m *mockReservationRepository) Save(ctx context.Context, reservation *stock.Reservation) error {
	m.reservations[reservation.ID] = reservation
	return nil
}

func (m *mockReservationRepository) SaveWithLock(ctx context.Context, reservation *stock.Reservation) error {
	m.reservations[reservation.ID] = reservation
	return nil
}

type mockLedgerRepository struct {
	headers map[uuid.UUID]*stock.TransactionHeader
	order   []uuid.UUID
}

func newMockLedgerRepository() *mockLedgerRepository {
	return &mockLedgerRepository{headers: make(map[uuid.UUID]*stock.TransactionHeader)}
}

func (m *mockLedgerRepository) Append(ctx context.Context, header *stock.TransactionHeader) error {
	if err := header.Validate(); err != nil {
		return err
	}
	m.headers[header.ID] = header
	m.order = append(m.order, header.ID)
	return nil
}

func (m *mockLedgerRepository) HeaderByID(ctx context.Context, id uuid.UUID) (*stock.TransactionHeader, error) {
	if header, ok := m.headers[id]; ok {
		return header, nil
	}
	return nil, shared.ErrNotFound
}

func (m *mockLedgerRepository) LinesForBalance(ctx context.Context, balanceID uuid.UUID, from, to *time.Time) ([]stock.TransactionLine, error) {
	var result []stock.TransactionLine
	for _, id := range m.order {
		for _, line := range m.headers[id].Lines {
			if line.BalanceID != balanceID {
				continue
			}
			if from != nil && line.OccurredAt.Before(*from) {
				continue
			}
			if to != nil && line.OccurredAt.After(*to) {
				continue
			}
			result = append(result, line)
		}
	}
	return result, nil
}

func (m *mockLedgerRepository) LinesForDocument(ctx context.Context, kind valueobject.DocumentKind, id string) ([]stock.TransactionLine, error) {
	var result []stock.TransactionLine
	for _, headerID := range m.order {
		header := m.headers[headerID]
		if header.DocumentKind == kind && header.DocumentID == id {
			result = append(result, header.Lines...)
		}
	}
	return result, nil
}

func (m *mockLedgerRepository) HeadersForWarehouse(ctx context.Context, warehouseID uuid.UUID, filter shared.Filter) (shared.Paginated[stock.TransactionHeader], error) {
	var items []stock.TransactionHeader
	for _, id := range m.order {
		if m.headers[id].WarehouseID == warehouseID {
			items = append(items, *m.headers[id])
		}
	}
	return shared.NewPaginated(items, int64(len(items)), filter.Page, filter.PageSize), nil
}

// allowAllLocations accepts every location/warehouse pairing
type allowAllLocations struct{}

func (allowAllLocations) LocationInWarehouse(ctx context.Context, locationID, warehouseID uuid.UUID) (bool, error) {
	return true, nil
}

// denyAllLocations rejects every location/warehouse pairing
type denyAllLocations struct{}

func (denyAllLocations) LocationInWarehouse(ctx context.Context, locationID, warehouseID uuid.UUID) (bool, error) {
	return false, nil
}

// stockFixture wires the application services over in-memory repositories
type stockFixture struct {
	aggregates   *mockAggregateRepository
	balances     *mockBalanceRepository
	reservations *mockReservationRepository
	ledger       *mockLedgerRepository

	movements    *appstock.MovementService
	reservationS *appstock.ReservationService
	queries      *appstock.BalanceQueryService
}

func newStockFixture() *stockFixture {
	gin.SetMode(gin.TestMode)

	f := &stockFixture{
		aggregates:   newMockAggregateRepository(),
		balances:     newMockBalanceRepository(),
		reservations: newMockReservationRepository(),
		ledger:       newMockLedgerRepository(),
	}
	scope := appstock.NewNoOpTransactionScope(f.aggregates, f.balances, f.reservations, f.ledger)
	f.movements = appstock.NewMovementService(scope, allowAllLocations{}, nil)
	f.reservationS = appstock.NewReservationService(scope, nil)
	f.queries = appstock.NewBalanceQueryService(f.balances, f.ledger, nil)
	return f
}

// seedBalance creates a balance with the given on-hand stock
func (f *stockFixture) seedBalance(productID, warehouseID uuid.UUID, onHand int64) *stock.StockLocationBalance {
	agg, _ := stock.NewStockAggregate(productID)
	f.aggregates.byProduct[productID] = agg

	bal, _ := stock.NewStockLocationBalance(agg.ID, productID, warehouseID, nil)
	if onHand > 0 {
		_, _ = bal.ApplyDelta(stock.BalanceDelta{
			OnHand:   decimal.NewFromInt(onHand),
			UnitCost: decimal.NewNullDecimal(decimal.NewFromInt(10)),
		})
	}
	bal.ClearDomainEvents()
	f.balances.balances[bal.ID] = bal
	return bal
}
