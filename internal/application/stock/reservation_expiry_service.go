package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stockcore/backend/internal/domain/shared"
	"github.com/stockcore/backend/internal/domain/stock"
	"go.uber.org/zap"
)

// DefaultExpiryBatchSize caps how many overdue reservations one sweep handles
const DefaultExpiryBatchSize = 100

// ExpirySweepStats summarizes one expiry sweep
type ExpirySweepStats struct {
	Scanned int `json:"scanned"`
	Expired int `json:"expired"`
	Failed  int `json:"failed"`
}

// ReservationExpiryService ends overdue reservations, returning their
// outstanding quantities to availability. Each reservation is expired in its
// own unit of work so one failure never blocks the rest of the sweep.
type ReservationExpiryService struct {
	txScope        TransactionScope
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	batchSize      int
	maxAttempts    int
}

// NewReservationExpiryService creates a new ReservationExpiryService
func NewReservationExpiryService(txScope TransactionScope, logger *zap.Logger) *ReservationExpiryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationExpiryService{
		txScope:     txScope,
		logger:      logger.Named("reservation_expiry"),
		batchSize:   DefaultExpiryBatchSize,
		maxAttempts: DefaultMaxAttempts,
	}
}

// SetEventPublisher sets the event publisher for post-commit domain events
func (s *ReservationExpiryService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetBatchSize overrides how many reservations one sweep handles
func (s *ReservationExpiryService) SetBatchSize(size int) {
	if size > 0 {
		s.batchSize = size
	}
}

// ExpireDue finds reservations whose expiry passed and ends them, releasing
// their full outstanding quantity back to availability
func (s *ReservationExpiryService) ExpireDue(ctx context.Context, now time.Time) (ExpirySweepStats, error) {
	var stats ExpirySweepStats

	var candidates []uuid.UUID
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		expired, err := repos.Reservations().FindExpired(ctx, now, s.batchSize)
		if err != nil {
			return err
		}
		for i := range expired {
			candidates = append(candidates, expired[i].ID)
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	stats.Scanned = len(candidates)
	for _, id := range candidates {
		if err := s.expireOne(ctx, id, now); err != nil {
			// Already-terminal reservations lost a race with a release or
			// cancel between the scan and now; that is not a failure.
			if errors.Is(err, stock.ErrReservationNotActive) {
				continue
			}
			stats.Failed++
			s.logger.Error("failed to expire reservation",
				zap.String("reservation_id", id.String()),
				zap.Error(err),
			)
			continue
		}
		stats.Expired++
	}

	if stats.Expired > 0 || stats.Failed > 0 {
		s.logger.Info("reservation expiry sweep finished",
			zap.Int("scanned", stats.Scanned),
			zap.Int("expired", stats.Expired),
			zap.Int("failed", stats.Failed),
		)
	}
	return stats, nil
}

// expireOne ends one overdue reservation in its own unit of work
func (s *ReservationExpiryService) expireOne(ctx context.Context, reservationID uuid.UUID, now time.Time) error {
	var pending []shared.DomainEvent

	err := executeWithRetry(ctx, s.maxAttempts, func() error {
		pending = nil
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			res, err := repos.Reservations().FindByID(ctx, reservationID)
			if err != nil {
				return err
			}

			outstanding, err := res.Expire(now)
			if err != nil {
				return err
			}

			if res.BalanceID != nil && outstanding.IsPositive() {
				bal, err := repos.Balances().FindByID(ctx, *res.BalanceID)
				if err != nil {
					return err
				}
				if err := bal.ReleaseReserved(outstanding); err != nil {
					return err
				}
				if err := repos.Balances().SaveWithLock(ctx, bal); err != nil {
					return err
				}
				pending = append(pending, bal.GetDomainEvents()...)
				bal.ClearDomainEvents()
			}

			if err := repos.Reservations().SaveWithLock(ctx, res); err != nil {
				return err
			}
			pending = append(pending, res.GetDomainEvents()...)
			res.ClearDomainEvents()
			return nil
		})
	})
	if err != nil {
		return err
	}

	if s.eventPublisher != nil && len(pending) > 0 {
		_ = s.eventPublisher.Publish(ctx, pending...)
	}
	return nil
}
