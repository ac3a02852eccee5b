package reservations

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/pkg/db"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
	"github.com/angelmondragon/stockhold/pkg/logger"
	"github.com/angelmondragon/stockhold/pkg/metrics"
	"github.com/angelmondragon/stockhold/pkg/outbox"
)

// staleReadRepo serves a snapshot taken before another writer moved the row,
// for the first few FindByID calls, so the guarded update misses.
type staleReadRepo struct {
	Repository
	snapshot models.Reservation
	stale    *int
}

func (r staleReadRepo) WithTx(tx *gorm.DB) Repository {
	return staleReadRepo{Repository: r.Repository.WithTx(tx), snapshot: r.snapshot, stale: r.stale}
}

func (r staleReadRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	if id == r.snapshot.ID && *r.stale > 0 {
		*r.stale--
		copied := r.snapshot
		return &copied, nil
	}
	return r.Repository.FindByID(ctx, id)
}

func (f *fixture) serviceWithStaleReads(t *testing.T, snapshot models.Reservation, staleReads int) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "reservations-test", Output: io.Discard})
	svc, err := NewService(ServiceParams{
		Logger:        logg,
		DB:            db.FromConn(f.conn),
		Repo:          staleReadRepo{Repository: f.repo, snapshot: snapshot, stale: &staleReads},
		Items:         f.items,
		Outbox:        outbox.NewService(outbox.NewRepository(f.conn), logg),
		Metrics:       metrics.NewReservationMetrics(prometheus.NewRegistry()),
		DefaultExpiry: 15 * time.Minute,
		MaxExpiry:     24 * time.Hour,
		Now:           f.clock.Now,
	})
	require.NoError(t, err)
	return svc
}

func TestLostRaceReconcilesToInvalidTransition(t *testing.T) {
	cases := []struct {
		name    string
		winner  func(Service, context.Context, uuid.UUID) (*models.Reservation, error)
		loser   func(Service, context.Context, uuid.UUID) (*models.Reservation, error)
		current enums.ReservationStatus
	}{
		{"confirm after concurrent cancel", Service.Cancel, Service.Confirm, enums.ReservationStatusCancelled},
		{"cancel after concurrent confirm", Service.Confirm, Service.Cancel, enums.ReservationStatusConfirmed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			item := f.createItem(t, 10)
			pending := f.reserve(t, item.ID, 3)
			snapshot := *pending

			_, err := tc.winner(f.svc, ctx, pending.ID)
			require.NoError(t, err)

			_, err = tc.loser(f.serviceWithStaleReads(t, snapshot, 1), ctx, pending.ID)
			typed := requireCode(t, err, pkgerrors.CodeInvalidTransition)
			assert.Equal(t, InvalidTransitionDetails{CurrentStatus: tc.current}, typed.Details())

			stored, err := f.svc.GetReservation(ctx, pending.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.current, stored.Status)
		})
	}
}

func TestLostRaceRepeatedlySettlesFromFreshRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.createItem(t, 10)
	pending := f.reserve(t, item.ID, 3)
	snapshot := *pending

	_, err := f.svc.Cancel(ctx, pending.ID)
	require.NoError(t, err)

	_, err = f.serviceWithStaleReads(t, snapshot, maxReconcileAttempts).Confirm(ctx, pending.ID)
	requireCode(t, err, pkgerrors.CodeInvalidTransition)

	cancelled, err := f.serviceWithStaleReads(t, snapshot, maxReconcileAttempts).Cancel(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReservationStatusCancelled, cancelled.Status)
	assert.EqualValues(t, 1, f.countEvents(t, pending.ID, enums.EventReservationCancelled))
}
