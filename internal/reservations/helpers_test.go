package reservations

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/stockhold/internal/items"
	"github.com/angelmondragon/stockhold/pkg/db"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	"github.com/angelmondragon/stockhold/pkg/logger"
	"github.com/angelmondragon/stockhold/pkg/metrics"
	"github.com/angelmondragon/stockhold/pkg/migrate"
	"github.com/angelmondragon/stockhold/pkg/outbox"
)

const postgresURLEnv = "STOCKHOLD_TEST_DATABASE_URL"

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	conn  *gorm.DB
	clock *testClock
	repo  Repository
	items items.Repository
	svc   Service
}

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reservations_" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.AutoMigrateModels(conn))
	return conn
}

// newPostgresDB connects to the database named by STOCKHOLD_TEST_DATABASE_URL
// and skips the test when it is unset.
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv(postgresURLEnv)
	if dsn == "" {
		t.Skipf("%s not set", postgresURLEnv)
	}
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(20)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.AutoMigrateModels(conn))
	return conn
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, newSQLiteDB(t), newTestClock(baseTime))
}

func newFixtureOn(t *testing.T, conn *gorm.DB, clock *testClock) *fixture {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "reservations-test", Output: io.Discard})
	repo := NewRepository(conn)
	itemsRepo := items.NewRepository(conn)
	svc, err := NewService(ServiceParams{
		Logger:        logg,
		DB:            db.FromConn(conn),
		Repo:          repo,
		Items:         itemsRepo,
		Outbox:        outbox.NewService(outbox.NewRepository(conn), logg),
		Metrics:       metrics.NewReservationMetrics(prometheus.NewRegistry()),
		DefaultExpiry: 15 * time.Minute,
		MaxExpiry:     24 * time.Hour,
		LockTimeout:   5 * time.Second,
		Now:           clock.Now,
	})
	require.NoError(t, err)
	return &fixture{conn: conn, clock: clock, repo: repo, items: itemsRepo, svc: svc}
}

func (f *fixture) createItem(t *testing.T, total int) models.Item {
	t.Helper()
	now := f.clock.Now()
	item := models.Item{
		ID:            uuid.New(),
		Name:          "widget",
		TotalQuantity: total,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, f.items.Create(context.Background(), &item))
	return item
}

func (f *fixture) reserve(t *testing.T, itemID uuid.UUID, quantity int) *models.Reservation {
	t.Helper()
	reservation, err := f.svc.CreateReservation(context.Background(), CreateReservationInput{
		ItemID:     itemID,
		CustomerID: "cust-1",
		Quantity:   quantity,
	})
	require.NoError(t, err)
	return reservation
}

func (f *fixture) availability(t *testing.T, item models.Item) items.Availability {
	t.Helper()
	totals, err := f.repo.SumHolds(context.Background(), item.ID, f.clock.Now())
	require.NoError(t, err)
	return items.ComputeAvailability(item, totals)
}

func (f *fixture) countEvents(t *testing.T, aggregateID uuid.UUID, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ? AND event_type = ?", aggregateID, eventType).
		Count(&count).Error)
	return count
}
