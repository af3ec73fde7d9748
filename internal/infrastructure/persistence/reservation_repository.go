package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stockcore/backend/internal/domain/shared"
	"github.com/stockcore/backend/internal/domain/shared/valueobject"
	"github.com/stockcore/backend/internal/domain/stock"
	"gorm.io/gorm"
)

// terminalReservationStatuses lists the states that no longer hold stock
var terminalReservationStatuses = []stock.ReservationStatus{
	stock.ReservationStatusReleased,
	stock.ReservationStatusExpired,
	stock.ReservationStatusCancelled,
}

// GormReservationRepository implements ReservationRepository using GORM
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// FindByID returns a reservation by its ID
func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.Reservation, error) {
	var res stock.Reservation
	if err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// FindActiveByBalance returns non-terminal reservations holding a balance
func (r *GormReservationRepository) FindActiveByBalance(ctx context.Context, balanceID uuid.UUID) ([]stock.Reservation, error) {
	var reservations []stock.Reservation
	if err := r.db.WithContext(ctx).
		Where("balance_id = ? AND status NOT IN ?", balanceID, terminalReservationStatuses).
		Order("created_at").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// FindByDocument returns reservations backing a document
func (r *GormReservationRepository) FindByDocument(ctx context.Context, kind valueobject.DocumentKind, id string) ([]stock.Reservation, error) {
	var reservations []stock.Reservation
	if err := r.db.WithContext(ctx).
		Where("document_kind = ? AND document_id = ?", kind, id).
		Order("created_at").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// FindExpired returns non-terminal reservations whose expiry passed, oldest
// first, capped at limit
func (r *GormReservationRepository) FindExpired(ctx context.Context, asOf time.Time, limit int) ([]stock.Reservation, error) {
	var reservations []stock.Reservation
	if err := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ? AND status NOT IN ?", asOf, terminalReservationStatuses).
		Order("expires_at").
		Limit(limit).
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// Save persists a new reservation
func (r *GormReservationRepository) Save(ctx context.Context, reservation *stock.Reservation) error {
	return r.db.WithContext(ctx).Save(reservation).Error
}

// SaveWithLock persists a reservation with optimistic version checking
func (r *GormReservationRepository) SaveWithLock(ctx context.Context, reservation *stock.Reservation) error {
	result := r.db.WithContext(ctx).
		Model(reservation).
		Where("id = ? AND version = ?", reservation.ID, reservation.Version-1).
		Updates(map[string]interface{}{
			"status":            reservation.Status,
			"released_quantity": reservation.ReleasedQuantity,
			"balance_id":        reservation.BalanceID,
			"expires_at":        reservation.ExpiresAt,
			"version":           reservation.Version,
			"updated_at":        reservation.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Ensure GormReservationRepository implements ReservationRepository
var _ stock.ReservationRepository = (*GormReservationRepository)(nil)
