package stock

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stockcore/backend/internal/domain/shared"
	"github.com/stockcore/backend/internal/domain/shared/valueobject"
	"github.com/stockcore/backend/internal/domain/stock"
)

// memStore backs the in-memory repositories with the same optimistic locking
// semantics as the database-backed ones. Loads and stores copy, so callers
// mutate detached instances until they save.
type memStore struct {
	mu           sync.Mutex
	aggregates   map[uuid.UUID]*stock.StockAggregate // keyed by product ID
	balances     map[uuid.UUID]*stock.StockLocationBalance
	reservations map[uuid.UUID]*stock.Reservation
	headers      map[uuid.UUID]*stock.TransactionHeader
}

func newMemStore() *memStore {
	return &memStore{
		aggregates:   make(map[uuid.UUID]*stock.StockAggregate),
		balances:     make(map[uuid.UUID]*stock.StockLocationBalance),
		reservations: make(map[uuid.UUID]*stock.Reservation),
		headers:      make(map[uuid.UUID]*stock.TransactionHeader),
	}
}

func (s *memStore) Aggregates() stock.StockAggregateRepository { return &memAggregateRepo{s} }
func (s *memStore) Balances() stock.BalanceRepository          { return &memBalanceRepo{s} }
func (s *memStore) Reservations() stock.ReservationRepository  { return &memReservationRepo{s} }
func (s *memStore) Ledger() stock.LedgerRepository             { return &memLedgerRepo{s} }

var _ TransactionalRepositories = (*memStore)(nil)

func cloneBalance(b *stock.StockLocationBalance) *stock.StockLocationBalance {
	c := *b
	c.ClearDomainEvents()
	return &c
}

func cloneReservation(r *stock.Reservation) *stock.Reservation {
	c := *r
	c.ClearDomainEvents()
	return &c
}

func cloneHeader(h *stock.TransactionHeader) *stock.TransactionHeader {
	c := *h
	c.Lines = append([]stock.TransactionLine(nil), h.Lines...)
	c.ClearDomainEvents()
	return &c
}

func sameLocation(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// --- StockAggregateRepository ---

type memAggregateRepo struct{ s *memStore }

func (r *memAggregateRepo) GetOrCreate(ctx context.Context, productID uuid.UUID) (*stock.StockAggregate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if agg, ok := r.s.aggregates[productID]; ok {
		c := *agg
		return &c, nil
	}
	agg, err := stock.NewStockAggregate(productID)
	if err != nil {
		return nil, err
	}
	r.s.aggregates[productID] = agg
	c := *agg
	return &c, nil
}

func (r *memAggregateRepo) FindByProduct(ctx context.Context, productID uuid.UUID) (*stock.StockAggregate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if agg, ok := r.s.aggregates[productID]; ok {
		c := *agg
		return &c, nil
	}
	return nil, shared.ErrNotFound
}

// --- BalanceRepository ---

type memBalanceRepo struct{ s *memStore }

func (r *memBalanceRepo) FindByID(ctx context.Context, id uuid.UUID) (*stock.StockLocationBalance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b, ok := r.s.balances[id]; ok {
		return cloneBalance(b), nil
	}
	return nil, shared.ErrNotFound
}

func (r *memBalanceRepo) FindByComposite(ctx context.Context, productID, warehouseID uuid.UUID, locationID *uuid.UUID) (*stock.StockLocationBalance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.balances {
		if b.ProductID == productID && b.WarehouseID == warehouseID && sameLocation(b.LocationID, locationID) {
			return cloneBalance(b), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memBalanceRepo) GetOrCreate(ctx context.Context, aggregateID, productID, warehouseID uuid.UUID, locationID *uuid.UUID) (*stock.StockLocationBalance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.balances {
		if b.ProductID == productID && b.WarehouseID == warehouseID && sameLocation(b.LocationID, locationID) {
			return cloneBalance(b), nil
		}
	}
	b, err := stock.NewStockLocationBalance(aggregateID, productID, warehouseID, locationID)
	if err != nil {
		return nil, err
	}
	r.s.balances[b.ID] = b
	return cloneBalance(b), nil
}

func (r *memBalanceRepo) FindByProduct(ctx context.Context, productID uuid.UUID) ([]stock.StockLocationBalance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []stock.StockLocationBalance
	for _, b := range r.s.balances {
		if b.ProductID == productID {
			out = append(out, *cloneBalance(b))
		}
	}
	return out, nil
}

func (r *memBalanceRepo) FindByWarehouse(ctx context.Context, warehouseID uuid.UUID, filter shared.Filter) (shared.Paginated[stock.StockLocationBalance], error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var items []stock.StockLocationBalance
	for _, b := range r.s.balances {
		if b.WarehouseID == warehouseID {
			items = append(items, *cloneBalance(b))
		}
	}
	return shared.NewPaginated(items, int64(len(items)), filter.Page, filter.PageSize), nil
}

func (r *memBalanceRepo) FindAll(ctx context.Context, filter shared.Filter) (shared.Paginated[stock.StockLocationBalance], error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var items []stock.StockLocationBalance
	for _, b := range r.s.balances {
		items = append(items, *cloneBalance(b))
	}
	return shared.NewPaginated(items, int64(len(items)), filter.Page, filter.PageSize), nil
}

func (r *memBalanceRepo) Save(ctx context.Context, balance *stock.StockLocationBalance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.balances[balance.ID] = cloneBalance(balance)
	return nil
}

func (r *memBalanceRepo) SaveWithLock(ctx context.Context, balance *stock.StockLocationBalance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.balances[balance.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != balance.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.s.balances[balance.ID] = cloneBalance(balance)
	return nil
}

// --- ReservationRepository ---

type memReservationRepo struct{ s *memStore }

func (r *memReservationRepo) FindByID(ctx context.Context, id uuid.UUID) (*stock.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if res, ok := r.s.reservations[id]; ok {
		return cloneReservation(res), nil
	}
	return nil, shared.ErrNotFound
}

func (r *memReservationRepo) FindActiveByBalance(ctx context.Context, balanceID uuid.UUID) ([]stock.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []stock.Reservation
	for _, res := range r.s.reservations {
		if res.BalanceID != nil && *res.BalanceID == balanceID && !res.Status.IsTerminal() {
			out = append(out, *cloneReservation(res))
		}
	}
	return out, nil
}

func (r *memReservationRepo) FindByDocument(ctx context.Context, kind valueobject.DocumentKind, id string) ([]stock.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []stock.Reservation
	for _, res := range r.s.reservations {
		if res.DocumentKind == kind && res.DocumentID == id {
			out = append(out, *cloneReservation(res))
		}
	}
	return out, nil
}

func (r *memReservationRepo) FindExpired(ctx context.Context, asOf time.Time, limit int) ([]stock.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []stock.Reservation
	for _, res := range r.s.reservations {
		if !res.Status.IsTerminal() && res.IsExpiredAt(asOf) {
			out = append(out, *cloneReservation(res))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memReservationRepo) Save(ctx context.Context, reservation *stock.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.reservations[reservation.ID] = cloneReservation(reservation)
	return nil
}

func (r *memReservationRepo) SaveWithLock(ctx context.Context, reservation *stock.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.reservations[reservation.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != reservation.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.s.reservations[reservation.ID] = cloneReservation(reservation)
	return nil
}

// --- LedgerRepository ---

type memLedgerRepo struct{ s *memStore }

func (r *memLedgerRepo) Append(ctx context.Context, header *stock.TransactionHeader) error {
	if err := header.Validate(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.headers[header.ID] = cloneHeader(header)
	return nil
}

func (r *memLedgerRepo) HeaderByID(ctx context.Context, id uuid.UUID) (*stock.TransactionHeader, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if h, ok := r.s.headers[id]; ok {
		return cloneHeader(h), nil
	}
	return nil, shared.ErrNotFound
}

func (r *memLedgerRepo) LinesForBalance(ctx context.Context, balanceID uuid.UUID, from, to *time.Time) ([]stock.TransactionLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []stock.TransactionLine
	for _, h := range r.s.headers {
		for _, line := range h.Lines {
			if line.BalanceID != balanceID {
				continue
			}
			if from != nil && line.OccurredAt.Before(*from) {
				continue
			}
			if to != nil && line.OccurredAt.After(*to) {
				continue
			}
			out = append(out, line)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		a, b := out[i].ID, out[j].ID
		return bytes.Compare(a[:], b[:]) < 0
	})
	return out, nil
}

func (r *memLedgerRepo) LinesForDocument(ctx context.Context, kind valueobject.DocumentKind, id string) ([]stock.TransactionLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []stock.TransactionLine
	for _, h := range r.s.headers {
		if h.DocumentKind != kind || h.DocumentID != id {
			continue
		}
		out = append(out, h.Lines...)
	}
	return out, nil
}

func (r *memLedgerRepo) HeadersForWarehouse(ctx context.Context, warehouseID uuid.UUID, filter shared.Filter) (shared.Paginated[stock.TransactionHeader], error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var items []stock.TransactionHeader
	for _, h := range r.s.headers {
		if h.WarehouseID == warehouseID {
			items = append(items, *cloneHeader(h))
		}
	}
	return shared.NewPaginated(items, int64(len(items)), filter.Page, filter.PageSize), nil
}

// memTransactionScope executes units of work against a memStore, restoring a
// snapshot on error so a failed unit of work leaves no partial state. Units
// of work are serialized, which coarsely matches per-transaction isolation.
type memTransactionScope struct {
	execMu sync.Mutex
	store  *memStore
}

func newMemTransactionScope(store *memStore) *memTransactionScope {
	return &memTransactionScope{store: store}
}

func (s *memTransactionScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	snapshot := s.store.snapshot()
	if err := fn(s.store); err != nil {
		s.store.restore(snapshot)
		return err
	}
	return nil
}

var _ TransactionScope = (*memTransactionScope)(nil)

type memSnapshot struct {
	aggregates   map[uuid.UUID]*stock.StockAggregate
	balances     map[uuid.UUID]*stock.StockLocationBalance
	reservations map[uuid.UUID]*stock.Reservation
	headers      map[uuid.UUID]*stock.TransactionHeader
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		aggregates:   make(map[uuid.UUID]*stock.StockAggregate, len(s.aggregates)),
		balances:     make(map[uuid.UUID]*stock.StockLocationBalance, len(s.balances)),
		reservations: make(map[uuid.UUID]*stock.Reservation, len(s.reservations)),
		headers:      make(map[uuid.UUID]*stock.TransactionHeader, len(s.headers)),
	}
	for k, v := range s.aggregates {
		c := *v
		snap.aggregates[k] = &c
	}
	for k, v := range s.balances {
		snap.balances[k] = cloneBalance(v)
	}
	for k, v := range s.reservations {
		snap.reservations[k] = cloneReservation(v)
	}
	for k, v := range s.headers {
		snap.headers[k] = cloneHeader(v)
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregates = snap.aggregates
	s.balances = snap.balances
	s.reservations = snap.reservations
	s.headers = snap.headers
}

// conflictingBalanceRepo wraps a balance repository and fails the first N
// optimistic saves, exercising the retry path deterministically
type conflictingBalanceRepo struct {
	stock.BalanceRepository
	mu        sync.Mutex
	conflicts int
}

func (r *conflictingBalanceRepo) SaveWithLock(ctx context.Context, balance *stock.StockLocationBalance) error {
	r.mu.Lock()
	if r.conflicts != 0 {
		if r.conflicts > 0 {
			r.conflicts--
		}
		r.mu.Unlock()
		return shared.ErrConcurrencyConflict
	}
	r.mu.Unlock()
	return r.BalanceRepository.SaveWithLock(ctx, balance)
}

// conflictingScope swaps the balance repository for the conflicting wrapper
type conflictingScope struct {
	inner TransactionScope
	repo  *conflictingBalanceRepo
}

func (s *conflictingScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	return s.inner.Execute(ctx, func(repos TransactionalRepositories) error {
		s.repo.BalanceRepository = repos.Balances()
		return fn(&conflictingRepos{TransactionalRepositories: repos, balances: s.repo})
	})
}

type conflictingRepos struct {
	TransactionalRepositories
	balances stock.BalanceRepository
}

func (r *conflictingRepos) Balances() stock.BalanceRepository { return r.balances }

// allowAllLocations approves every location-warehouse pairing
type allowAllLocations struct{}

func (allowAllLocations) LocationInWarehouse(ctx context.Context, locationID, warehouseID uuid.UUID) (bool, error) {
	return true, nil
}

// denyAllLocations rejects every location-warehouse pairing
type denyAllLocations struct{}

func (denyAllLocations) LocationInWarehouse(ctx context.Context, locationID, warehouseID uuid.UUID) (bool, error) {
	return false, nil
}

// capturePublisher records published events for assertions
type capturePublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *capturePublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}
