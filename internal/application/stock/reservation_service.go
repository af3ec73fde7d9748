package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockcore/backend/internal/domain/shared"
	"github.com/stockcore/backend/internal/domain/stock"
	"go.uber.org/zap"
)

// ReservationService manages holds on available stock. Reserving and
// releasing go through the same per-balance optimistic serialization as
// movements, so a hold can never be granted twice for the same units.
type ReservationService struct {
	txScope        TransactionScope
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	maxAttempts    int
}

// NewReservationService creates a new ReservationService
func NewReservationService(txScope TransactionScope, logger *zap.Logger) *ReservationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationService{
		txScope:     txScope,
		logger:      logger.Named("reservation_service"),
		maxAttempts: DefaultMaxAttempts,
	}
}

// SetEventPublisher sets the event publisher for post-commit domain events
func (s *ReservationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMaxAttempts overrides the optimistic retry budget
func (s *ReservationService) SetMaxAttempts(attempts int) {
	s.maxAttempts = attempts
}

// Reserve places a hold on available stock at one balance. The hold fails
// with InsufficientAvailable when the quantity exceeds current minus
// reserved; reserving never changes current stock.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (*ReservationResponse, error) {
	if req.ProductID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if req.WarehouseID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE", "Warehouse ID cannot be empty")
	}
	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Reservation quantity must be positive")
	}
	if !req.Kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_KIND", "Unknown reservation kind")
	}

	var response *ReservationResponse
	var pending []shared.DomainEvent

	err := executeWithRetry(ctx, s.maxAttempts, func() error {
		pending = nil
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			bal, err := repos.Balances().FindByComposite(ctx, req.ProductID, req.WarehouseID, req.LocationID)
			if err != nil {
				// No balance row means nothing has ever been received here.
				if errors.Is(err, shared.ErrNotFound) {
					return stock.ErrInsufficientAvailable
				}
				return err
			}
			if err := bal.Reserve(req.Quantity); err != nil {
				return err
			}

			res, err := stock.NewReservation(bal.AggregateID, bal.ID, req.Kind, req.Quantity, req.Document, req.ExpiresAt)
			if err != nil {
				return err
			}

			if err := repos.Balances().SaveWithLock(ctx, bal); err != nil {
				return err
			}
			if err := repos.Reservations().Save(ctx, res); err != nil {
				return err
			}

			pending = append(pending, bal.GetDomainEvents()...)
			pending = append(pending, res.GetDomainEvents()...)
			bal.ClearDomainEvents()
			res.ClearDomainEvents()

			r := ToReservationResponse(res)
			response = &r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, pending)
	s.logger.Info("stock reserved",
		zap.String("reservation_id", response.ID.String()),
		zap.String("document", response.Document),
		zap.String("quantity", req.Quantity.String()),
	)
	return response, nil
}

// Release returns part of a hold to availability. Releasing never changes
// current stock; releasing more than the outstanding quantity fails with
// OverRelease.
func (s *ReservationService) Release(ctx context.Context, req ReleaseRequest) (*ReservationResponse, error) {
	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Release quantity must be positive")
	}
	return s.mutate(ctx, req.ReservationID, func(res *stock.Reservation, bal *stock.StockLocationBalance) error {
		if err := res.Release(req.Quantity); err != nil {
			return err
		}
		if bal != nil {
			return bal.ReleaseReserved(req.Quantity)
		}
		return nil
	})
}

// Cancel voids a reservation, returning whatever is still outstanding
func (s *ReservationService) Cancel(ctx context.Context, reservationID uuid.UUID) (*ReservationResponse, error) {
	return s.mutate(ctx, reservationID, func(res *stock.Reservation, bal *stock.StockLocationBalance) error {
		outstanding, err := res.Cancel()
		if err != nil {
			return err
		}
		if bal != nil && outstanding.IsPositive() {
			return bal.ReleaseReserved(outstanding)
		}
		return nil
	})
}

// Get returns one reservation
func (s *ReservationService) Get(ctx context.Context, reservationID uuid.UUID) (*ReservationResponse, error) {
	var response *ReservationResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		res, err := repos.Reservations().FindByID(ctx, reservationID)
		if err != nil {
			return err
		}
		r := ToReservationResponse(res)
		response = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

// mutate loads a reservation and its balance, applies fn, and persists both
// under optimistic locking with retries
func (s *ReservationService) mutate(ctx context.Context, reservationID uuid.UUID, fn func(res *stock.Reservation, bal *stock.StockLocationBalance) error) (*ReservationResponse, error) {
	var response *ReservationResponse
	var pending []shared.DomainEvent

	err := executeWithRetry(ctx, s.maxAttempts, func() error {
		pending = nil
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			res, err := repos.Reservations().FindByID(ctx, reservationID)
			if err != nil {
				return err
			}

			var bal *stock.StockLocationBalance
			if res.BalanceID != nil {
				bal, err = repos.Balances().FindByID(ctx, *res.BalanceID)
				if err != nil {
					return err
				}
			}

			if err := fn(res, bal); err != nil {
				return err
			}

			if err := repos.Reservations().SaveWithLock(ctx, res); err != nil {
				return err
			}
			if bal != nil && len(bal.GetDomainEvents()) > 0 {
				if err := repos.Balances().SaveWithLock(ctx, bal); err != nil {
					return err
				}
				pending = append(pending, bal.GetDomainEvents()...)
				bal.ClearDomainEvents()
			}
			pending = append(pending, res.GetDomainEvents()...)
			res.ClearDomainEvents()

			r := ToReservationResponse(res)
			response = &r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, pending)
	return response, nil
}

func (s *ReservationService) publishEvents(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
}
