package reservations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
)

func insertReservation(t *testing.T, f *fixture, itemID uuid.UUID, status enums.ReservationStatus, quantity int, expiresAt time.Time) models.Reservation {
	t.Helper()
	row := models.Reservation{
		ID:         uuid.New(),
		ItemID:     itemID,
		CustomerID: "cust",
		Quantity:   quantity,
		Status:     status,
		ExpiresAt:  expiresAt,
		CreatedAt:  baseTime.Add(-time.Hour),
	}
	at := baseTime.Add(-time.Minute)
	switch status {
	case enums.ReservationStatusConfirmed:
		row.ConfirmedAt = &at
	case enums.ReservationStatusCancelled:
		row.CancelledAt = &at
	case enums.ReservationStatusExpired:
		row.ExpiredAt = &at
	}
	require.NoError(t, f.repo.Insert(context.Background(), &row))
	return row
}

func TestSumHoldsCountsUnexpiredPendingAndConfirmed(t *testing.T) {
	f := newFixture(t)
	item := f.createItem(t, 100)

	insertReservation(t, f, item.ID, enums.ReservationStatusPending, 3, baseTime.Add(time.Minute))
	insertReservation(t, f, item.ID, enums.ReservationStatusPending, 5, baseTime)
	insertReservation(t, f, item.ID, enums.ReservationStatusConfirmed, 7, baseTime.Add(-time.Minute))
	insertReservation(t, f, item.ID, enums.ReservationStatusCancelled, 11, baseTime.Add(time.Hour))
	insertReservation(t, f, item.ID, enums.ReservationStatusExpired, 13, baseTime.Add(-time.Hour))

	totals, err := f.repo.SumHolds(context.Background(), item.ID, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 3, totals.Reserved)
	assert.Equal(t, 7, totals.Confirmed)

	empty, err := f.repo.SumHolds(context.Background(), uuid.New(), baseTime)
	require.NoError(t, err)
	assert.Zero(t, empty.Reserved)
	assert.Zero(t, empty.Confirmed)
}

func TestTransitionGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.createItem(t, 10)
	pending := insertReservation(t, f, item.ID, enums.ReservationStatusPending, 1, baseTime.Add(time.Minute))

	won, err := f.repo.Transition(ctx, guardedTransition{ID: pending.ID, To: enums.ReservationStatusConfirmed, At: baseTime.Add(2 * time.Minute), RequireUnexpired: true})
	require.NoError(t, err)
	assert.False(t, won, "expired rows must not confirm")

	won, err = f.repo.Transition(ctx, guardedTransition{ID: pending.ID, To: enums.ReservationStatusConfirmed, At: baseTime, RequireUnexpired: true})
	require.NoError(t, err)
	assert.True(t, won)

	won, err = f.repo.Transition(ctx, guardedTransition{ID: pending.ID, To: enums.ReservationStatusCancelled, At: baseTime})
	require.NoError(t, err)
	assert.False(t, won, "terminal rows must not move")

	stored, err := f.repo.FindByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReservationStatusConfirmed, stored.Status)
	require.NotNil(t, stored.ConfirmedAt)
	assert.True(t, stored.ConfirmedAt.Equal(baseTime))
	assert.Nil(t, stored.CancelledAt)

	_, err = f.repo.Transition(ctx, guardedTransition{ID: pending.ID, To: enums.ReservationStatusPending, At: baseTime})
	require.Error(t, err)
}

func TestRepositoryExpireDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.createItem(t, 10)
	due := insertReservation(t, f, item.ID, enums.ReservationStatusPending, 1, baseTime.Add(-time.Second))
	insertReservation(t, f, item.ID, enums.ReservationStatusPending, 1, baseTime.Add(time.Second))
	insertReservation(t, f, item.ID, enums.ReservationStatusConfirmed, 1, baseTime.Add(-time.Hour))

	expired, err := f.repo.ExpireDue(ctx, baseTime)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, due.ID, expired[0].ID)
	assert.Equal(t, enums.ReservationStatusExpired, expired[0].Status)
	assert.Equal(t, "cust", expired[0].CustomerID)
	require.NotNil(t, expired[0].ExpiredAt)
	assert.True(t, expired[0].ExpiredAt.Equal(baseTime))

	again, err := f.repo.ExpireDue(ctx, baseTime)
	require.NoError(t, err)
	assert.NotNil(t, again)
	assert.Empty(t, again)
}
