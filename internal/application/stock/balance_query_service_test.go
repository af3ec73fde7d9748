package stock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockcore/backend/internal/domain/shared/valueobject"
	"github.com/stockcore/backend/internal/domain/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBalanceCache is a map-backed BalanceCache for tests
type memBalanceCache struct {
	mu      sync.Mutex
	entries map[string]*BalanceResponse
	hits    int
}

func newMemBalanceCache() *memBalanceCache {
	return &memBalanceCache{entries: make(map[string]*BalanceResponse)}
}

func (c *memBalanceCache) Get(ctx context.Context, key string) (*BalanceResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.entries[key]; ok {
		c.hits++
		return v, nil
	}
	return nil, nil
}

func (c *memBalanceCache) Set(ctx context.Context, key string, value *BalanceResponse, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memBalanceCache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func TestBalanceQueryService(t *testing.T) {
	ctx := context.Background()

	t.Run("current balance reports availability", func(t *testing.T) {
		f := newMovementFixture(t)
		productID, warehouseID := uuid.New(), uuid.New()
		f.seedStock(t, productID, warehouseID, 100, 2.0)
		_, err := f.reservations.Reserve(ctx, ReserveRequest{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Quantity:    decimal.NewFromInt(30),
			Kind:        stock.ReservationKindOrderHold,
			Document:    soDoc("SO-40"),
		})
		require.NoError(t, err)

		queries := NewBalanceQueryService(f.store.Balances(), f.store.Ledger(), nil)
		snap, err := queries.CurrentBalance(ctx, productID, warehouseID, nil)

		require.NoError(t, err)
		assert.True(t, snap.CurrentStock.Equal(decimal.NewFromInt(100)))
		assert.True(t, snap.ReservedStock.Equal(decimal.NewFromInt(30)))
		assert.True(t, snap.AvailableStock.Equal(decimal.NewFromInt(70)))
	})

	t.Run("second read hits the cache", func(t *testing.T) {
		f := newMovementFixture(t)
		productID, warehouseID := uuid.New(), uuid.New()
		f.seedStock(t, productID, warehouseID, 10, 1.0)

		cache := newMemBalanceCache()
		queries := NewBalanceQueryService(f.store.Balances(), f.store.Ledger(), nil)
		queries.SetCache(cache, time.Minute)

		_, err := queries.CurrentBalance(ctx, productID, warehouseID, nil)
		require.NoError(t, err)
		_, err = queries.CurrentBalance(ctx, productID, warehouseID, nil)
		require.NoError(t, err)

		assert.Equal(t, 1, cache.hits)
	})

	t.Run("history returns lines in replay order", func(t *testing.T) {
		f := newMovementFixture(t)
		productID, warehouseID := uuid.New(), uuid.New()
		f.seedStock(t, productID, warehouseID, 20, 1.0)
		time.Sleep(2 * time.Millisecond)
		f.seedStock(t, productID, warehouseID, 5, 1.0)

		queries := NewBalanceQueryService(f.store.Balances(), f.store.Ledger(), nil)
		bal := f.balance(t, productID, warehouseID)
		lines, err := queries.History(ctx, bal.ID, nil, nil)

		require.NoError(t, err)
		require.Len(t, lines, 2)
		assert.True(t, lines[0].OccurredAt.Before(lines[1].OccurredAt) || lines[0].OccurredAt.Equal(lines[1].OccurredAt))
		assert.True(t, lines[1].StockAfter.Equal(decimal.NewFromInt(25)))
	})

	t.Run("document history collects all lines for the document", func(t *testing.T) {
		f := newMovementFixture(t)
		productID, warehouseID := uuid.New(), uuid.New()
		f.seedStock(t, productID, warehouseID, 50, 1.0)

		_, err := f.movements.Move(ctx, MovementRequest{
			MovementType: stock.MovementTypeSalesDelivery,
			WarehouseID:  warehouseID,
			Document:     soDoc("SO-41"),
			Lines:        []MovementLineInput{{ProductID: productID, Quantity: decimal.NewFromInt(-8)}},
		})
		require.NoError(t, err)

		queries := NewBalanceQueryService(f.store.Balances(), f.store.Ledger(), nil)
		lines, err := queries.DocumentHistory(ctx, valueobject.DocumentKindSalesOrder, "SO-41")

		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.True(t, lines[0].Quantity.Equal(decimal.NewFromInt(-8)))
	})

	t.Run("balances for product spans warehouses", func(t *testing.T) {
		f := newMovementFixture(t)
		productID := uuid.New()
		f.seedStock(t, productID, uuid.New(), 10, 1.0)
		f.seedStock(t, productID, uuid.New(), 20, 1.0)

		queries := NewBalanceQueryService(f.store.Balances(), f.store.Ledger(), nil)
		balances, err := queries.BalancesForProduct(ctx, productID)

		require.NoError(t, err)
		assert.Len(t, balances, 2)
	})
}
