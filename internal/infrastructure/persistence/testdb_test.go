package persistence

import (
	"testing"

	"github.com/stockcore/backend/internal/domain/stock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory sqlite database with the stock schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&stock.StockAggregate{},
		&stock.StockLocationBalance{},
		&stock.Reservation{},
		&stock.TransactionHeader{},
		&stock.TransactionLine{},
		&WarehouseLocation{},
	))

	t.Cleanup(func() {
		for _, table := range []string{
			"stock_transaction_lines", "stock_transaction_headers",
			"stock_reservations", "stock_location_balances",
			"stock_aggregates", "warehouse_locations",
		} {
			db.Exec("DELETE FROM " + table)
		}
	})

	return db
}
