package controllers

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold/api/responses"
	"github.com/angelmondragon/stockhold/api/validators"
	"github.com/angelmondragon/stockhold/internal/reservations"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
	"github.com/angelmondragon/stockhold/pkg/logger"
)

type reservationCreateRequest struct {
	ItemID           string `json:"item_id" validate:"required,uuid"`
	CustomerID       string `json:"customer_id" validate:"required,max=255"`
	Quantity         int    `json:"quantity" validate:"required,gt=0"`
	ExpiresInSeconds *int   `json:"expires_in_seconds" validate:"omitempty,gt=0"`
}

func (r reservationCreateRequest) toInput() (reservations.CreateReservationInput, error) {
	itemID, err := uuid.Parse(r.ItemID)
	if err != nil {
		return reservations.CreateReservationInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item_id").
			WithDetails(map[string]string{"item_id": "must be a valid uuid"})
	}

	input := reservations.CreateReservationInput{
		ItemID:     itemID,
		CustomerID: validators.SanitizeString(r.CustomerID, maxNameLength),
		Quantity:   r.Quantity,
	}
	if r.ExpiresInSeconds != nil {
		expiresIn := secondsToDuration(*r.ExpiresInSeconds)
		input.ExpiresIn = &expiresIn
	}
	return input, nil
}

// secondsToDuration saturates instead of wrapping when seconds does not fit
// in a Duration, so oversized values still fail the expiry bound.
func secondsToDuration(seconds int) time.Duration {
	const maxSeconds = int64(math.MaxInt64 / time.Second)
	switch {
	case int64(seconds) > maxSeconds:
		return time.Duration(math.MaxInt64)
	case int64(seconds) < -maxSeconds:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(seconds) * time.Second
}

// ReservationCreate admits a hold against an item's available stock.
func ReservationCreate(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		var payload reservationCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateReservation(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteCreated(w, reservationResponseFromModel(created))
	}
}

func ReservationDetail(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationAction(svc, logg, reservations.Service.GetReservation)
}

// ReservationConfirm is idempotent: confirming a CONFIRMED reservation
// returns it unchanged.
func ReservationConfirm(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationAction(svc, logg, reservations.Service.Confirm)
}

// ReservationCancel is idempotent for CANCELLED and EXPIRED reservations.
func ReservationCancel(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationAction(svc, logg, reservations.Service.Cancel)
}

func reservationAction(svc reservations.Service, logg *logger.Logger, op func(reservations.Service, context.Context, uuid.UUID) (*models.Reservation, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		reservationID, err := validators.ParsePathUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation, err := op(svc, r.Context(), reservationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reservationResponseFromModel(reservation))
	}
}

// ReservationExpire runs one expiry sweep. An empty sweep is a success.
func ReservationExpire(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		result, err := svc.ExpireDue(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
