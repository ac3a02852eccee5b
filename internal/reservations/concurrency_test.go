package reservations

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockhold/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
)

func runNoOversell(t *testing.T, f *fixture, stock, callers int) {
	t.Helper()
	item := f.createItem(t, stock)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		admitted     int
		insufficient int
		unexpected   []error
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.CreateReservation(context.Background(), CreateReservationInput{
				ItemID:     item.ID,
				CustomerID: "racer",
				Quantity:   1,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case pkgerrors.As(err) != nil && pkgerrors.As(err).Code() == pkgerrors.CodeInsufficientQuantity:
				insufficient++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, unexpected)
	assert.Equal(t, stock, admitted)
	assert.Equal(t, callers-stock, insufficient)

	availability := f.availability(t, item)
	assert.Equal(t, 0, availability.Available)
	assert.Equal(t, stock, availability.Reserved)
}

func runConfirmCancelRace(t *testing.T, f *fixture) {
	t.Helper()
	item := f.createItem(t, 10)

	for round := 0; round < 10; round++ {
		reservation := f.reserve(t, item.ID, 1)

		var (
			wg                          sync.WaitGroup
			confirmErr, cancelErr       error
			confirmStatus, cancelStatus enums.ReservationStatus
		)
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			r, err := f.svc.Confirm(context.Background(), reservation.ID)
			confirmErr = err
			if err == nil {
				confirmStatus = r.Status
			}
		}()
		go func() {
			defer wg.Done()
			<-start
			r, err := f.svc.Cancel(context.Background(), reservation.ID)
			cancelErr = err
			if err == nil {
				cancelStatus = r.Status
			}
		}()
		close(start)
		wg.Wait()

		stored, err := f.svc.GetReservation(context.Background(), reservation.ID)
		require.NoError(t, err)

		switch stored.Status {
		case enums.ReservationStatusConfirmed:
			require.NoError(t, confirmErr)
			assert.Equal(t, enums.ReservationStatusConfirmed, confirmStatus)
			requireCode(t, cancelErr, pkgerrors.CodeInvalidTransition)
			assert.Nil(t, stored.CancelledAt)
		case enums.ReservationStatusCancelled:
			require.NoError(t, cancelErr)
			assert.Equal(t, enums.ReservationStatusCancelled, cancelStatus)
			requireCode(t, confirmErr, pkgerrors.CodeInvalidTransition)
			assert.Nil(t, stored.ConfirmedAt)
		default:
			t.Fatalf("reservation ended in %s", stored.Status)
		}
	}
}

func runConcurrentExpiry(t *testing.T, f *fixture, eligible, sweepers int) {
	t.Helper()
	item := f.createItem(t, eligible)
	short := time.Minute
	want := make(map[uuid.UUID]bool, eligible)
	for i := 0; i < eligible; i++ {
		r, err := f.svc.CreateReservation(context.Background(), CreateReservationInput{
			ItemID:     item.ID,
			CustomerID: "sweep",
			Quantity:   1,
			ExpiresIn:  &short,
		})
		require.NoError(t, err)
		want[r.ID] = true
	}
	f.clock.Advance(2 * short)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
		seen  = map[uuid.UUID]int{}
		errs  []error
	)
	start := make(chan struct{})
	for i := 0; i < sweepers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			result, err := f.svc.ExpireDue(context.Background())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			assert.Equal(t, result.ExpiredCount, len(result.ExpiredIDs))
			total += result.ExpiredCount
			for _, id := range result.ExpiredIDs {
				seen[id]++
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, eligible, total)
	assert.Len(t, seen, eligible)
	for id, n := range seen {
		assert.True(t, want[id], "unexpected id %s", id)
		assert.Equal(t, 1, n, "reservation %s expired %d times", id, n)
	}
}

func TestConcurrentAdmissionNoOversell(t *testing.T) {
	runNoOversell(t, newFixture(t), 5, 20)
}

func TestConcurrentConfirmCancelMutualExclusion(t *testing.T) {
	runConfirmCancelRace(t, newFixture(t))
}

func TestConcurrentExpireDueExpiresEachOnce(t *testing.T) {
	runConcurrentExpiry(t, newFixture(t), 50, 10)
}

func TestPostgresConcurrentAdmissionNoOversell(t *testing.T) {
	conn := newPostgresDB(t)
	runNoOversell(t, newFixtureOn(t, conn, newTestClock(time.Now().UTC())), 5, 20)
}

func TestPostgresConcurrentConfirmCancelMutualExclusion(t *testing.T) {
	conn := newPostgresDB(t)
	runConfirmCancelRace(t, newFixtureOn(t, conn, newTestClock(time.Now().UTC())))
}

func TestPostgresConcurrentExpireDueExpiresEachOnce(t *testing.T) {
	conn := newPostgresDB(t)
	// Other tests may leave due rows behind; start from a clean table.
	require.NoError(t, conn.Exec("UPDATE reservations SET status = 'CANCELLED', cancelled_at = expires_at WHERE status = 'PENDING'").Error)
	runConcurrentExpiry(t, newFixtureOn(t, conn, newTestClock(time.Now().UTC())), 50, 10)
}
