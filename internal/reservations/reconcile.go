package reservations

import (
	"time"

	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
	"github.com/angelmondragon/stockhold/pkg/metrics"
)

type decisionKind int

const (
	// decisionApply: the guarded update should be attempted.
	decisionApply decisionKind = iota
	// decisionIdempotent: the reservation already reflects the request.
	decisionIdempotent
	// decisionConflict: the current state forbids the request.
	decisionConflict
)

// decision is the outcome of comparing a requested transition with the
// observed state of a reservation.
type decision struct {
	kind decisionKind
	err  *pkgerrors.Error
}

func (d decision) outcome() string {
	switch d.kind {
	case decisionIdempotent:
		return metrics.OutcomeIdempotent
	case decisionConflict:
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeApplied
	}
}

func apply() decision { return decision{kind: decisionApply} }

func idempotent() decision { return decision{kind: decisionIdempotent} }

func conflict(err *pkgerrors.Error) decision {
	return decision{kind: decisionConflict, err: err}
}

// lifecycleOp describes one of the guarded lifecycle transitions.
type lifecycleOp struct {
	name             string
	appliedMessage   string
	target           enums.ReservationStatus
	requireUnexpired bool
	decide           func(current *models.Reservation, now time.Time) decision
}

var (
	confirmOp = lifecycleOp{
		name:             "confirm",
		appliedMessage:   "reservation confirmed",
		target:           enums.ReservationStatusConfirmed,
		requireUnexpired: true,
		decide:           decideConfirm,
	}
	cancelOp = lifecycleOp{
		name:           "cancel",
		appliedMessage: "reservation cancelled",
		target:         enums.ReservationStatusCancelled,
		decide:         decideCancel,
	}
)

// decideConfirm: CONFIRMED is idempotent, other terminal states conflict, and
// a PENDING row past expires_at is expired even if no sweep has run.
func decideConfirm(current *models.Reservation, now time.Time) decision {
	switch current.Status {
	case enums.ReservationStatusConfirmed:
		return idempotent()
	case enums.ReservationStatusCancelled, enums.ReservationStatusExpired:
		return conflict(errInvalidTransition(current.Status))
	case enums.ReservationStatusPending:
		if !current.ExpiresAt.After(now) {
			return conflict(errExpired(current.ExpiresAt))
		}
		return apply()
	default:
		return conflict(errInvalidTransition(current.Status))
	}
}

// decideCancel: CANCELLED and EXPIRED are idempotent, CONFIRMED is
// irreversible.
func decideCancel(current *models.Reservation, _ time.Time) decision {
	switch current.Status {
	case enums.ReservationStatusCancelled, enums.ReservationStatusExpired:
		return idempotent()
	case enums.ReservationStatusConfirmed:
		return conflict(errInvalidTransition(current.Status))
	case enums.ReservationStatusPending:
		return apply()
	default:
		return conflict(errInvalidTransition(current.Status))
	}
}

// applied returns a copy of current as it looks after winning the transition.
func applied(current models.Reservation, target enums.ReservationStatus, at time.Time) models.Reservation {
	current.Status = target
	stamp := at
	switch target {
	case enums.ReservationStatusConfirmed:
		current.ConfirmedAt = &stamp
	case enums.ReservationStatusCancelled:
		current.CancelledAt = &stamp
	case enums.ReservationStatusExpired:
		current.ExpiredAt = &stamp
	}
	return current
}
