package stock

import "github.com/stockcore/backend/internal/domain/shared"

// Typed errors for stock operations. Services return these unwrapped so
// callers can match on the code.
var (
	// ErrInsufficientStock signals a decrement that would drive on-hand stock
	// negative, or below the reserved floor for a non-fulfilling movement.
	ErrInsufficientStock = shared.NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock on hand")

	// ErrInsufficientAvailable signals a reservation exceeding current minus reserved.
	ErrInsufficientAvailable = shared.NewDomainError("INSUFFICIENT_AVAILABLE", "Insufficient unreserved stock available")

	// ErrOverRelease signals a release exceeding the outstanding reserved quantity.
	ErrOverRelease = shared.NewDomainError("OVER_RELEASE", "Release exceeds outstanding reserved quantity")

	// ErrInvalidLocation signals a location that does not belong to the movement's warehouse.
	ErrInvalidLocation = shared.NewDomainError("INVALID_LOCATION", "Location does not belong to the warehouse")

	// ErrEmptyTransaction signals a ledger append with no lines.
	ErrEmptyTransaction = shared.NewDomainError("EMPTY_TRANSACTION", "Transaction must contain at least one line")

	// ErrBusy signals that optimistic retries on a contended balance were exhausted.
	ErrBusy = shared.NewDomainError("BUSY", "Stock balance is contended, retry later")

	// ErrReservationNotActive signals an operation on a terminal reservation.
	ErrReservationNotActive = shared.NewDomainError("RESERVATION_NOT_ACTIVE", "Reservation is not active")
)
