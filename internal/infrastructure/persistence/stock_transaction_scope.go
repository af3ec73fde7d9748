package persistence

import (
	"context"

	appstock "github.com/stockcore/backend/internal/application/stock"
	"github.com/stockcore/backend/internal/domain/stock"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Every repository handed to the unit of work shares one *gorm.DB transaction,
// so a failing movement rolls back balances, reservations, and ledger rows
// together.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction. An error
// from the function rolls the transaction back; success commits it.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appstock.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Aggregates returns the stock aggregate repository scoped to the current transaction
func (r *gormTransactionalRepositories) Aggregates() stock.StockAggregateRepository {
	return NewGormStockAggregateRepository(r.tx)
}

// Balances returns the balance repository scoped to the current transaction
func (r *gormTransactionalRepositories) Balances() stock.BalanceRepository {
	return NewGormBalanceRepository(r.tx)
}

// Reservations returns the reservation repository scoped to the current transaction
func (r *gormTransactionalRepositories) Reservations() stock.ReservationRepository {
	return NewGormReservationRepository(r.tx)
}

// Ledger returns the transaction ledger repository scoped to the current transaction
func (r *gormTransactionalRepositories) Ledger() stock.LedgerRepository {
	return NewGormLedgerRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appstock.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appstock.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
