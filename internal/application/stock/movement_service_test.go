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
	"go.uber.org/zap"
)

type movementFixture struct {
	store        *memStore
	scope        *memTransactionScope
	movements    *MovementService
	reservations *ReservationService
	publisher    *capturePublisher
}

func newMovementFixture(t *testing.T) *movementFixture {
	t.Helper()
	store := newMemStore()
	scope := newMemTransactionScope(store)
	publisher := &capturePublisher{}

	movements := NewMovementService(scope, allowAllLocations{}, zap.NewNop())
	movements.SetEventPublisher(publisher)
	reservations := NewReservationService(scope, zap.NewNop())
	reservations.SetEventPublisher(publisher)

	return &movementFixture{
		store:        store,
		scope:        scope,
		movements:    movements,
		reservations: reservations,
		publisher:    publisher,
	}
}

func receiptRequest(productID, warehouseID uuid.UUID, qty int64, cost float64) MovementRequest {
	return MovementRequest{
		MovementType: stock.MovementTypeReceipt,
		WarehouseID:  warehouseID,
		Document:     valueobject.MustNewDocumentReference(valueobject.DocumentKindPurchaseOrder, "PO-1"),
		Lines: []MovementLineInput{{
			ProductID: productID,
			Quantity:  decimal.NewFromInt(qty),
			UnitCost:  decimal.NewNullDecimal(decimal.NewFromFloat(cost)),
		}},
	}
}

func (f *movementFixture) seedStock(t *testing.T, productID, warehouseID uuid.UUID, qty int64, cost float64) *TransactionHeaderResponse {
	t.Helper()
	resp, err := f.movements.Move(context.Background(), receiptRequest(productID, warehouseID, qty, cost))
	require.NoError(t, err)
	return resp
}

func (f *movementFixture) balance(t *testing.T, productID, warehouseID uuid.UUID) *stock.StockLocationBalance {
	t.Helper()
	bal, err := f.store.Balances().FindByComposite(context.Background(), productID, warehouseID, nil)
	require.NoError(t, err)
	return bal
}

func TestMovementServiceMove(t *testing.T) {
	ctx := context.Background()

	t.Run("receipt creates balance and ledger entry", func(t *testing.T) {
		f := newMovementFixture(t)
		productID, warehouseID := uuid.New(), uuid.New()

		resp := f.seedStock(t, productID, warehouseID, 100, 5.0)

		require.Len(t, resp.Lines, 1)
		assert.True(t, resp.Lines[0].StockBefore.IsZero())
		assert.True(t, resp.Lines[0].StockAfter.Equal(decimal.NewFromInt(100)))
		assert.True(t, resp.TotalQuantity.Equal(decimal.NewFromInt(100)))

		bal := f.balance(t, productID, warehouseID)
		assert.True(t, bal.CurrentStock.Equal(decimal.NewFromInt(100)))
		require.True(t, bal.AverageCost.Valid)
		assert.True(t, bal.AverageCost.Decimal.Equal(decimal.NewFromInt(5)))

		header, err := f.store.Ledger().HeaderByID(ctx, resp.ID)
		require.NoError(t, err)
		assert.Equal(t, stock.MovementTypeReceipt, header.MovementType)
	})

	t.Run("rejects movement without lines", func(t *testing.T) {
		f := newMovementFixture(t)

		_, err := f.movements.Move(ctx, MovementRequest{
			MovementType: stock.MovementTypeReceipt,
			WarehouseID:  uuid.New(),
		})

		assert.ErrorIs(t, err, stock.ErrEmptyTransaction)
	})

	t.Run("rejects unknown movement type", func(t *testing.T) {
		f := newMovementFixture(t)

		req := receiptRequest(uuid.New(), uuid.New(), 1, 1)
		req.MovementType = stock.MovementType("BOGUS")
		_, err := f.movements.Move(ctx, req)

		assert.Error(t, err)
	})

	t.Run("insufficient decrement leaves no trace", func(t *testing.T) {
		f := newMovementFixture(t)
		productID, warehouseID := uuid.New(), uuid.New()
		f.seedStock(t, productID, warehouseID, 10, 2.0)

		_, err := f.movements.Move(ctx, MovementRequest{
			MovementType: stock.MovementTypeIssue,
			WarehouseID:  warehouseID,
			Document:     valueobject.MustNewDocumentReference(valueobject.DocumentKindSalesOrder, "SO-1"),
			Lines: []MovementLineInput{{
				ProductID: productID,
				Quantity:  decimal.NewFromInt(-15),
			}},
		})

		assert.ErrorIs(t, err, stock.ErrInsufficientStock)
		bal := f.balance(t, productID, warehouseID)
		assert.True(t, bal.CurrentStock.Equal(decimal.NewFromInt(10)))
	})

	t.Run("invalid location rejected before applying", func(t *testing.T) {
		f := newMovementFixture(t)
		f.movements = NewMovementService(f.scope, denyAllLocations{}, zap.NewNop())
		locationID := uuid.New()

		req := receiptRequest(uuid.New(), uuid.New(), 5, 1.0)
		req.Lines[0].LocationID = &locationID
		_, err := f.movements.Move(ctx, req)

		assert.ErrorIs(t, err, stock.ErrInvalidLocation)
	})

	t.Run("weighted average cost across receipts", func(t *testing.T) {
		f := newMovementFixture(t)
		productID, warehouseID := uuid.New(), uuid.New()

		f.seedStock(t, productID, warehouseID, 10, 10.00)
		f.seedStock(t, productID, warehouseID, 20, 7.50)

		bal := f.balance(t, productID, warehouseID)
		require.True(t, bal.AverageCost.Valid)
		assert.True(t, bal.AverageCost.Decimal.Equal(decimal.NewFromFloat(8.3333)),
			"expected 8.3333, got %s", bal.AverageCost.Decimal)
	})

	t.Run("multi-line failure rolls back every line", func(t *testing.T) {
		f := newMovementFixture(t)
		warehouseID := uuid.New()
		productA, productB := uuid.New(), uuid.New()
		f.seedStock(t, productA, warehouseID, 50, 1.0)
		// productB has no stock, so its line must fail the whole movement.

		_, err := f.movements.Move(ctx, MovementRequest{
			MovementType: stock.MovementTypeTransferOut,
			WarehouseID:  warehouseID,
			Document:     valueobject.MustNewDocumentReference(valueobject.DocumentKindTransferOrder, "TR-1"),
			Lines: []MovementLineInput{
				{ProductID: productA, Quantity: decimal.NewFromInt(-10)},
				{ProductID: productB, Quantity: decimal.NewFromInt(-10)},
			},
		})

		require.ErrorIs(t, err, stock.ErrInsufficientStock)
		bal := f.balance(t, productA, warehouseID)
		assert.True(t, bal.CurrentStock.Equal(decimal.NewFromInt(50)), "applied line must roll back")

		lines, err := f.store.Ledger().LinesForBalance(ctx, bal.ID, nil, nil)
		require.NoError(t, err)
		assert.Len(t, lines, 1, "only the seeding receipt may remain")
	})

	t.Run("publishes events post-commit", func(t *testing.T) {
		f := newMovementFixture(t)
		f.seedStock(t, uuid.New(), uuid.New(), 10, 1.0)

		types := f.publisher.types()
		assert.Contains(t, types, stock.EventTypeBalanceChanged)
		assert.Contains(t, types, stock.EventTypeMovementRecorded)
	})
}

func TestMovementServiceReservationFulfillment(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*movementFixture, uuid.UUID, uuid.UUID, *ReservationResponse) {
		f := newMovementFixture(t)
		productID, warehouseID := uuid.New(), uuid.New()
		f.seedStock(t, productID, warehouseID, 100, 4.0)

		res, err := f.reservations.Reserve(ctx, ReserveRequest{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Quantity:    decimal.NewFromInt(30),
			Kind:        stock.ReservationKindOrderHold,
			Document:    valueobject.MustNewDocumentReference(valueobject.DocumentKindSalesOrder, "SO-100"),
		})
		require.NoError(t, err)
		return f, productID, warehouseID, res
	}

	t.Run("fulfilling delivery releases hold and decrements", func(t *testing.T) {
		f, productID, warehouseID, res := setup(t)

		resp, err := f.movements.Move(ctx, MovementRequest{
			MovementType: stock.MovementTypeSalesDelivery,
			WarehouseID:  warehouseID,
			Document:     valueobject.MustNewDocumentReference(valueobject.DocumentKindSalesOrder, "SO-100"),
			Lines: []MovementLineInput{{
				ProductID:             productID,
				Quantity:              decimal.NewFromInt(-30),
				FulfillsReservationID: &res.ID,
			}},
		})

		require.NoError(t, err)
		assert.True(t, resp.Lines[0].StockBefore.Equal(decimal.NewFromInt(100)))
		assert.True(t, resp.Lines[0].StockAfter.Equal(decimal.NewFromInt(70)))

		bal := f.balance(t, productID, warehouseID)
		assert.True(t, bal.CurrentStock.Equal(decimal.NewFromInt(70)))
		assert.True(t, bal.ReservedStock.IsZero())

		updated, err := f.reservations.Get(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, stock.ReservationStatusReleased, updated.Status)
	})

	t.Run("plain decrement cannot eat into reserved stock", func(t *testing.T) {
		f, productID, warehouseID, _ := setup(t)

		// 100 on hand, 30 reserved: only 70 may leave without a reservation.
		_, err := f.movements.Move(ctx, MovementRequest{
			MovementType: stock.MovementTypeIssue,
			WarehouseID:  warehouseID,
			Document:     valueobject.MustNewDocumentReference(valueobject.DocumentKindAdjustment, "ADJ-1"),
			Lines: []MovementLineInput{{
				ProductID: productID,
				Quantity:  decimal.NewFromInt(-80),
			}},
		})

		assert.ErrorIs(t, err, stock.ErrInsufficientStock)
	})

	t.Run("shipment beyond the hold honors other reservations", func(t *testing.T) {
		f, productID, warehouseID, res := setup(t)

		// A second hold of 40 leaves 30 free beyond the fulfilled 30. Shipping
		// 80 against the first hold would sink on-hand below the second hold.
		_, err := f.reservations.Reserve(ctx, ReserveRequest{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Quantity:    decimal.NewFromInt(40),
			Kind:        stock.ReservationKindOrderHold,
			Document:    valueobject.MustNewDocumentReference(valueobject.DocumentKindSalesOrder, "SO-101"),
		})
		require.NoError(t, err)

		_, err = f.movements.Move(ctx, MovementRequest{
			MovementType: stock.MovementTypeSalesDelivery,
			WarehouseID:  warehouseID,
			Document:     valueobject.MustNewDocumentReference(valueobject.DocumentKindSalesOrder, "SO-100"),
			Lines: []MovementLineInput{{
				ProductID:             productID,
				Quantity:              decimal.NewFromInt(-80),
				FulfillsReservationID: &res.ID,
			}},
		})

		require.ErrorIs(t, err, stock.ErrInsufficientStock)

		bal := f.balance(t, productID, warehouseID)
		assert.True(t, bal.CurrentStock.Equal(decimal.NewFromInt(100)), "rejected movement must not mutate")
		assert.True(t, bal.ReservedStock.Equal(decimal.NewFromInt(70)))
		assert.True(t, bal.ReservedStock.LessThanOrEqual(bal.CurrentStock))

		updated, err := f.reservations.Get(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, stock.ReservationStatusActive, updated.Status)
		assert.True(t, updated.Outstanding.Equal(decimal.NewFromInt(30)))
	})

	t.Run("fulfilling line must decrement", func(t *testing.T) {
		f, productID, warehouseID, res := setup(t)

		_, err := f.movements.Move(ctx, MovementRequest{
			MovementType: stock.MovementTypeSalesDelivery,
			WarehouseID:  warehouseID,
			Document:     valueobject.MustNewDocumentReference(valueobject.DocumentKindSalesOrder, "SO-100"),
			Lines: []MovementLineInput{{
				ProductID:             productID,
				Quantity:              decimal.NewFromInt(30),
				FulfillsReservationID: &res.ID,
			}},
		})

		assert.Error(t, err)
	})

	t.Run("terminal reservation cannot be fulfilled again", func(t *testing.T) {
		f, productID, warehouseID, res := setup(t)
		_, err := f.reservations.Cancel(ctx, res.ID)
		require.NoError(t, err)

		_, err = f.movements.Move(ctx, MovementRequest{
			MovementType: stock.MovementTypeSalesDelivery,
			WarehouseID:  warehouseID,
			Document:     valueobject.MustNewDocumentReference(valueobject.DocumentKindSalesOrder, "SO-100"),
			Lines: []MovementLineInput{{
				ProductID:             productID,
				Quantity:              decimal.NewFromInt(-10),
				FulfillsReservationID: &res.ID,
			}},
		})

		assert.ErrorIs(t, err, stock.ErrReservationNotActive)
	})
}

func TestMovementServiceRetries(t *testing.T) {
	ctx := context.Background()

	t.Run("transient conflict retries to success", func(t *testing.T) {
		f := newMovementFixture(t)
		productID, warehouseID := uuid.New(), uuid.New()
		f.seedStock(t, productID, warehouseID, 50, 1.0)

		conflicting := &conflictingBalanceRepo{conflicts: 1}
		movements := NewMovementService(&conflictingScope{inner: f.scope, repo: conflicting}, allowAllLocations{}, zap.NewNop())

		_, err := movements.Move(ctx, MovementRequest{
			MovementType: stock.MovementTypeIssue,
			WarehouseID:  warehouseID,
			Document:     valueobject.MustNewDocumentReference(valueobject.DocumentKindSalesOrder, "SO-2"),
			Lines:        []MovementLineInput{{ProductID: productID, Quantity: decimal.NewFromInt(-5)}},
		})

		require.NoError(t, err)
		bal := f.balance(t, productID, warehouseID)
		assert.True(t, bal.CurrentStock.Equal(decimal.NewFromInt(45)))
	})

	t.Run("persistent contention surfaces as busy", func(t *testing.T) {
		f := newMovementFixture(t)
		productID, warehouseID := uuid.New(), uuid.New()
		f.seedStock(t, productID, warehouseID, 50, 1.0)

		conflicting := &conflictingBalanceRepo{conflicts: -1}
		movements := NewMovementService(&conflictingScope{inner: f.scope, repo: conflicting}, allowAllLocations{}, zap.NewNop())
		movements.SetMaxAttempts(2)

		_, err := movements.Move(ctx, MovementRequest{
			MovementType: stock.MovementTypeIssue,
			WarehouseID:  warehouseID,
			Document:     valueobject.MustNewDocumentReference(valueobject.DocumentKindSalesOrder, "SO-3"),
			Lines:        []MovementLineInput{{ProductID: productID, Quantity: decimal.NewFromInt(-5)}},
		})

		assert.ErrorIs(t, err, stock.ErrBusy)
		bal := f.balance(t, productID, warehouseID)
		assert.True(t, bal.CurrentStock.Equal(decimal.NewFromInt(50)))
	})
}

func TestMovementServiceConcurrency(t *testing.T) {
	t.Run("two concurrent decrements have exactly one winner", func(t *testing.T) {
		f := newMovementFixture(t)
		productID, warehouseID := uuid.New(), uuid.New()
		f.seedStock(t, productID, warehouseID, 15, 1.0)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = f.movements.Move(context.Background(), MovementRequest{
					MovementType: stock.MovementTypeIssue,
					WarehouseID:  warehouseID,
					Document:     valueobject.MustNewDocumentReference(valueobject.DocumentKindSalesOrder, "SO-C"),
					Lines:        []MovementLineInput{{ProductID: productID, Quantity: decimal.NewFromInt(-10)}},
				})
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, stock.ErrInsufficientStock)
			}
		}
		assert.Equal(t, 1, succeeded, "exactly one decrement may win")

		bal := f.balance(t, productID, warehouseID)
		assert.True(t, bal.CurrentStock.Equal(decimal.NewFromInt(5)))
	})
}

func TestLedgerReplayReproducesBalance(t *testing.T) {
	ctx := context.Background()
	f := newMovementFixture(t)
	productID, warehouseID := uuid.New(), uuid.New()

	f.seedStock(t, productID, warehouseID, 100, 2.0)
	time.Sleep(2 * time.Millisecond)
	f.seedStock(t, productID, warehouseID, 40, 3.0)
	time.Sleep(2 * time.Millisecond)

	_, err := f.movements.Move(ctx, MovementRequest{
		MovementType: stock.MovementTypeIssue,
		WarehouseID:  warehouseID,
		Document:     valueobject.MustNewDocumentReference(valueobject.DocumentKindSalesOrder, "SO-R"),
		Lines:        []MovementLineInput{{ProductID: productID, Quantity: decimal.NewFromInt(-55)}},
	})
	require.NoError(t, err)

	bal := f.balance(t, productID, warehouseID)
	lines, err := f.store.Ledger().LinesForBalance(ctx, bal.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	// Folding the signed quantities from zero reproduces the stored balance,
	// and every line's before/after pair chains onto the previous one.
	folded := decimal.Zero
	for _, line := range lines {
		assert.True(t, line.StockBefore.Equal(folded),
			"line %s: before %s, folded %s", line.ID, line.StockBefore, folded)
		folded = folded.Add(line.Quantity)
		assert.True(t, line.StockAfter.Equal(folded))
	}
	assert.True(t, folded.Equal(bal.CurrentStock))
}
