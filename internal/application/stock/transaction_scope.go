package stock

import (
	"context"

	"github.com/stockcore/backend/internal/domain/stock"
)

// TransactionScope provides transactional access to stock repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all stock repositories within
// a transaction. All repositories returned share the same underlying
// database transaction.
//
// Aggregate boundary notes:
//   - Balances: the StockLocationBalance aggregate is the unit of mutual
//     exclusion; every quantity change goes through SaveWithLock here.
//   - Reservations: reservations are separate aggregates so holds can be
//     queried and expired independently of the balance they pin.
//   - Ledger: append-only; a header and its lines persist in one write.
type TransactionalRepositories interface {
	// Aggregates returns the per-product aggregate repository scoped to the current transaction
	Aggregates() stock.StockAggregateRepository
	// Balances returns the balance repository scoped to the current transaction
	Balances() stock.BalanceRepository
	// Reservations returns the reservation repository scoped to the current transaction
	Reservations() stock.ReservationRepository
	// Ledger returns the transaction ledger scoped to the current transaction
	Ledger() stock.LedgerRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. This is useful for testing.
type NoOpTransactionScope struct {
	aggregateRepo   stock.StockAggregateRepository
	balanceRepo     stock.BalanceRepository
	reservationRepo stock.ReservationRepository
	ledgerRepo      stock.LedgerRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	aggregateRepo stock.StockAggregateRepository,
	balanceRepo stock.BalanceRepository,
	reservationRepo stock.ReservationRepository,
	ledgerRepo stock.LedgerRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		aggregateRepo:   aggregateRepo,
		balanceRepo:     balanceRepo,
		reservationRepo: reservationRepo,
		ledgerRepo:      ledgerRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Aggregates returns the per-product aggregate repository.
func (s *NoOpTransactionScope) Aggregates() stock.StockAggregateRepository {
	return s.aggregateRepo
}

// Balances returns the balance repository.
func (s *NoOpTransactionScope) Balances() stock.BalanceRepository {
	return s.balanceRepo
}

// Reservations returns the reservation repository.
func (s *NoOpTransactionScope) Reservations() stock.ReservationRepository {
	return s.reservationRepo
}

// Ledger returns the transaction ledger.
func (s *NoOpTransactionScope) Ledger() stock.LedgerRepository {
	return s.ledgerRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
