package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockcore/backend/internal/domain/shared"
	"github.com/stockcore/backend/internal/domain/shared/valueobject"
)

// ReservationKind classifies why stock is being held
type ReservationKind string

const (
	ReservationKindOrderHold      ReservationKind = "ORDER_HOLD"
	ReservationKindTransferHold   ReservationKind = "TRANSFER_HOLD"
	ReservationKindProductionHold ReservationKind = "PRODUCTION_HOLD"
)

// IsValid returns true if the kind is one of the known reservation kinds
func (k ReservationKind) IsValid() bool {
	switch k {
	case ReservationKindOrderHold, ReservationKindTransferHold, ReservationKindProductionHold:
		return true
	}
	return false
}

// ReservationStatus is the lifecycle state of a reservation
type ReservationStatus string

const (
	ReservationStatusActive            ReservationStatus = "ACTIVE"
	ReservationStatusPartiallyReleased ReservationStatus = "PARTIALLY_RELEASED"
	ReservationStatusReleased          ReservationStatus = "RELEASED"
	ReservationStatusExpired           ReservationStatus = "EXPIRED"
	ReservationStatusCancelled         ReservationStatus = "CANCELLED"
)

// IsTerminal returns true once the reservation can no longer hold stock
func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case ReservationStatusReleased, ReservationStatusExpired, ReservationStatusCancelled:
		return true
	}
	return false
}

// Reservation is a hold on a quantity of stock at one balance, backing a
// business document. Reservations are never deleted; terminal ones simply
// stop counting toward reserved stock.
type Reservation struct {
	shared.BaseAggregateRoot
	AggregateID uuid.UUID  `gorm:"type:uuid;not null;index"`
	BalanceID   *uuid.UUID `gorm:"type:uuid;index"` // nil until resolved to a concrete location

	Kind             ReservationKind   `gorm:"size:32;not null"`
	Status           ReservationStatus `gorm:"size:32;not null;index"`
	ReservedQuantity decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	ReleasedQuantity decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	ExpiresAt        *time.Time        `gorm:"index"`

	DocumentKind valueobject.DocumentKind `gorm:"size:32;not null"`
	DocumentID   string                   `gorm:"size:64;not null;index"`
}

// TableName returns the table name for GORM
func (Reservation) TableName() string {
	return "stock_reservations"
}

// NewReservation creates an active reservation against a balance
func NewReservation(aggregateID, balanceID uuid.UUID, kind ReservationKind, quantity decimal.Decimal, document valueobject.DocumentReference, expiresAt *time.Time) (*Reservation, error) {
	if aggregateID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_AGGREGATE", "Aggregate ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_KIND", "Unknown reservation kind")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Reservation quantity must be positive")
	}
	if document.IsZero() {
		return nil, shared.NewDomainError("INVALID_DOCUMENT", "Reservation requires a source document")
	}

	r := &Reservation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		AggregateID:       aggregateID,
		Kind:              kind,
		Status:            ReservationStatusActive,
		ReservedQuantity:  quantity,
		ReleasedQuantity:  decimal.Zero,
		ExpiresAt:         expiresAt,
		DocumentKind:      document.Kind(),
		DocumentID:        document.ID(),
	}
	if balanceID != uuid.Nil {
		r.BalanceID = &balanceID
	}

	r.AddDomainEvent(NewStockReservedEvent(r))
	return r, nil
}

// Document returns the source document reference
func (r *Reservation) Document() valueobject.DocumentReference {
	ref, _ := valueobject.NewDocumentReference(r.DocumentKind, r.DocumentID)
	return ref
}

// Outstanding returns the quantity still held (reserved - released)
func (r *Reservation) Outstanding() decimal.Decimal {
	return r.ReservedQuantity.Sub(r.ReleasedQuantity)
}

// IsExpiredAt returns true if the reservation carries an expiry in the past
func (r *Reservation) IsExpiredAt(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// Release records the return of a held quantity. Released quantity grows
// monotonically; releasing the full remainder transitions to RELEASED.
func (r *Reservation) Release(quantity decimal.Decimal) error {
	if r.Status.IsTerminal() {
		return ErrReservationNotActive
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Release quantity must be positive")
	}
	if quantity.GreaterThan(r.Outstanding()) {
		return ErrOverRelease
	}

	r.ReleasedQuantity = r.ReleasedQuantity.Add(quantity)
	if r.Outstanding().IsZero() {
		r.Status = ReservationStatusReleased
	} else {
		r.Status = ReservationStatusPartiallyReleased
	}
	r.UpdatedAt = time.Now()
	r.IncrementVersion()

	r.AddDomainEvent(NewReservationReleasedEvent(r, quantity))
	return nil
}

// Cancel voids the reservation, releasing whatever is still outstanding
func (r *Reservation) Cancel() (decimal.Decimal, error) {
	if r.Status.IsTerminal() {
		return decimal.Zero, ErrReservationNotActive
	}

	outstanding := r.Outstanding()
	r.ReleasedQuantity = r.ReservedQuantity
	r.Status = ReservationStatusCancelled
	r.UpdatedAt = time.Now()
	r.IncrementVersion()

	r.AddDomainEvent(NewReservationCancelledEvent(r, outstanding))
	return outstanding, nil
}

// Expire ends an overdue reservation, releasing whatever is still outstanding
func (r *Reservation) Expire(now time.Time) (decimal.Decimal, error) {
	if r.Status.IsTerminal() {
		return decimal.Zero, ErrReservationNotActive
	}
	if !r.IsExpiredAt(now) {
		return decimal.Zero, shared.NewDomainError("NOT_EXPIRED", "Reservation has not reached its expiry")
	}

	outstanding := r.Outstanding()
	r.ReleasedQuantity = r.ReservedQuantity
	r.Status = ReservationStatusExpired
	r.UpdatedAt = time.Now()
	r.IncrementVersion()

	r.AddDomainEvent(NewReservationExpiredEvent(r, outstanding))
	return outstanding, nil
}
