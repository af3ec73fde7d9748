package stock

import (
	"bytes"
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockcore/backend/internal/domain/shared"
	"github.com/stockcore/backend/internal/domain/stock"
	"go.uber.org/zap"
)

// MovementService is the single entry point for changing stock quantities.
// Every movement applies its balance deltas and appends the matching ledger
// header inside one transaction; concurrent writers to the same balance are
// serialized through optimistic version locking with bounded retries.
type MovementService struct {
	txScope        TransactionScope
	locations      stock.LocationDirectory
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	maxAttempts    int
}

// NewMovementService creates a new MovementService
func NewMovementService(txScope TransactionScope, locations stock.LocationDirectory, logger *zap.Logger) *MovementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MovementService{
		txScope:     txScope,
		locations:   locations,
		logger:      logger.Named("movement_service"),
		maxAttempts: DefaultMaxAttempts,
	}
}

// SetEventPublisher sets the event publisher for post-commit domain events
func (s *MovementService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMaxAttempts overrides the optimistic retry budget
func (s *MovementService) SetMaxAttempts(attempts int) {
	s.maxAttempts = attempts
}

// Move records one stock movement: it resolves each line to its balance,
// applies the deltas in a fixed global order, and appends the ledger header
// with before/after snapshots, all inside one transaction. A lost version
// race retries the whole unit of work; exhausted retries surface as Busy.
func (s *MovementService) Move(ctx context.Context, req MovementRequest) (*TransactionHeaderResponse, error) {
	if err := s.validateRequest(ctx, req); err != nil {
		return nil, err
	}

	var response *TransactionHeaderResponse
	var pending []shared.DomainEvent

	err := executeWithRetry(ctx, s.maxAttempts, func() error {
		pending = nil
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			resp, events, err := s.apply(ctx, repos, req)
			if err != nil {
				return err
			}
			response = resp
			pending = events
			return nil
		})
	})
	if err != nil {
		s.logger.Warn("movement rejected",
			zap.String("movement_type", string(req.MovementType)),
			zap.String("warehouse_id", req.WarehouseID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.publishEvents(ctx, pending)

	s.logger.Info("movement recorded",
		zap.String("movement_type", string(req.MovementType)),
		zap.String("warehouse_id", req.WarehouseID.String()),
		zap.String("document", req.Document.String()),
		zap.Int("lines", len(response.Lines)),
	)
	return response, nil
}

// validateRequest checks the request shape and location membership before
// any transactional work starts
func (s *MovementService) validateRequest(ctx context.Context, req MovementRequest) error {
	if !req.MovementType.IsValid() {
		return shared.NewDomainError("INVALID_MOVEMENT_TYPE", "Unknown movement type")
	}
	if req.WarehouseID == uuid.Nil {
		return shared.NewDomainError("INVALID_WAREHOUSE", "Warehouse ID cannot be empty")
	}
	if len(req.Lines) == 0 {
		return stock.ErrEmptyTransaction
	}
	for _, line := range req.Lines {
		if line.ProductID == uuid.Nil {
			return shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
		}
		if line.Quantity.IsZero() {
			return shared.NewDomainError("INVALID_QUANTITY", "Line quantity cannot be zero")
		}
		if line.FulfillsReservationID != nil && !line.Quantity.IsNegative() {
			return shared.NewDomainError("INVALID_QUANTITY", "Reservation-fulfilling lines must decrement stock")
		}
		if line.LocationID != nil && s.locations != nil {
			ok, err := s.locations.LocationInWarehouse(ctx, *line.LocationID, req.WarehouseID)
			if err != nil {
				return err
			}
			if !ok {
				return stock.ErrInvalidLocation
			}
		}
	}
	return nil
}

// resolvedLine pairs one request line with the balance it targets
type resolvedLine struct {
	input   MovementLineInput
	balance *stock.StockLocationBalance
}

// apply performs the whole movement against transaction-scoped repositories
func (s *MovementService) apply(ctx context.Context, repos TransactionalRepositories, req MovementRequest) (*TransactionHeaderResponse, []shared.DomainEvent, error) {
	header, err := stock.NewTransactionHeader(req.MovementType, req.WarehouseID, req.Document, req.EmployeeID)
	if err != nil {
		return nil, nil, err
	}

	// Resolve every line to its balance, sharing one loaded instance when
	// several lines target the same balance.
	balances := make(map[uuid.UUID]*stock.StockLocationBalance)
	resolved := make([]resolvedLine, 0, len(req.Lines))
	for _, input := range req.Lines {
		agg, err := repos.Aggregates().GetOrCreate(ctx, input.ProductID)
		if err != nil {
			return nil, nil, err
		}
		bal, err := repos.Balances().GetOrCreate(ctx, agg.ID, input.ProductID, req.WarehouseID, input.LocationID)
		if err != nil {
			return nil, nil, err
		}
		if loaded, ok := balances[bal.ID]; ok {
			bal = loaded
		} else {
			balances[bal.ID] = bal
		}
		resolved = append(resolved, resolvedLine{input: input, balance: bal})
	}

	// Fixed ascending balance order keeps concurrent multi-line moves from
	// deadlocking each other.
	sort.SliceStable(resolved, func(i, j int) bool {
		a, b := resolved[i].balance.ID, resolved[j].balance.ID
		return bytes.Compare(a[:], b[:]) < 0
	})

	var events []shared.DomainEvent

	for _, rl := range resolved {
		input, bal := rl.input, rl.balance

		delta := stock.BalanceDelta{OnHand: input.Quantity, UnitCost: input.UnitCost}

		if input.FulfillsReservationID != nil {
			released, resEvents, err := s.fulfillReservation(ctx, repos, bal, *input.FulfillsReservationID, input.Quantity.Abs())
			if err != nil {
				return nil, nil, err
			}
			events = append(events, resEvents...)
			// The hold returns to availability in the same delta that
			// decrements on-hand stock, keeping the save a single version
			// step. Any quantity beyond the hold decrements under the normal
			// reserved-floor rule.
			delta.Reserved = released.Neg()
		}

		// Outbound lines are costed at the moving average in force when
		// they apply; inbound lines carry their own cost.
		lineCost := decimal.Zero
		if input.UnitCost.Valid {
			lineCost = input.UnitCost.Decimal
		} else if bal.AverageCost.Valid {
			lineCost = bal.AverageCost.Decimal
		}

		before, err := bal.ApplyDelta(delta)
		if err != nil {
			return nil, nil, err
		}
		if err := header.AddLine(bal.ID, input.ProductID, input.LocationID, input.Quantity, lineCost, before.CurrentStock, bal.CurrentStock); err != nil {
			return nil, nil, err
		}

		// One delta means one version step, so the balance saves immediately
		// after each line; later lines on the same balance step again.
		if err := repos.Balances().SaveWithLock(ctx, bal); err != nil {
			return nil, nil, err
		}
		events = append(events, bal.GetDomainEvents()...)
		bal.ClearDomainEvents()
	}

	if err := header.Validate(); err != nil {
		return nil, nil, err
	}
	if err := repos.Ledger().Append(ctx, header); err != nil {
		return nil, nil, err
	}
	events = append(events, stock.NewMovementRecordedEvent(header))

	resp := ToTransactionHeaderResponse(header)
	return &resp, events, nil
}

// fulfillReservation releases the hold that a decrementing line fulfills and
// returns the released quantity, capped at the reservation's outstanding
// quantity so a larger shipment does not over-release.
func (s *MovementService) fulfillReservation(ctx context.Context, repos TransactionalRepositories, bal *stock.StockLocationBalance, reservationID uuid.UUID, quantity decimal.Decimal) (decimal.Decimal, []shared.DomainEvent, error) {
	res, err := repos.Reservations().FindByID(ctx, reservationID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if res.Status.IsTerminal() {
		return decimal.Zero, nil, stock.ErrReservationNotActive
	}
	if res.BalanceID == nil || *res.BalanceID != bal.ID {
		return decimal.Zero, nil, shared.NewDomainError("RESERVATION_MISMATCH", "Reservation does not hold the targeted balance")
	}

	releaseQty := decimal.Min(quantity, res.Outstanding())
	if !releaseQty.IsPositive() {
		return decimal.Zero, nil, nil
	}
	if err := res.Release(releaseQty); err != nil {
		return decimal.Zero, nil, err
	}
	if err := repos.Reservations().SaveWithLock(ctx, res); err != nil {
		return decimal.Zero, nil, err
	}

	events := res.GetDomainEvents()
	res.ClearDomainEvents()
	return releaseQty, events, nil
}

// publishEvents publishes post-commit domain events; bus errors are logged
// by the bus itself, not propagated
func (s *MovementService) publishEvents(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
}
