package reservations

import (
	"time"

	"github.com/angelmondragon/stockhold/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
)

// InsufficientQuantityDetails is attached to INSUFFICIENT_QUANTITY errors.
type InsufficientQuantityDetails struct {
	Requested int `json:"requested"`
	Available int `json:"available"`
}

// InvalidTransitionDetails is attached to INVALID_TRANSITION errors.
type InvalidTransitionDetails struct {
	CurrentStatus enums.ReservationStatus `json:"current_status"`
}

// ExpiredDetails is attached to RESERVATION_EXPIRED errors.
type ExpiredDetails struct {
	ExpiredAt time.Time `json:"expired_at"`
}

func errItemNotFound() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
}

func errReservationNotFound() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
}

func errInsufficientQuantity(requested, available int) *pkgerrors.Error {
	if available < 0 {
		available = 0
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientQuantity, "insufficient quantity available").
		WithDetails(InsufficientQuantityDetails{Requested: requested, Available: available})
}

func errInvalidTransition(current enums.ReservationStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, "reservation is "+current.String()).
		WithDetails(InvalidTransitionDetails{CurrentStatus: current})
}

func errExpired(expiredAt time.Time) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeReservationExpired, "reservation has expired").
		WithDetails(ExpiredDetails{ExpiredAt: expiredAt.UTC()})
}
