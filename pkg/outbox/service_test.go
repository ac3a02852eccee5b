package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:outbox_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}))
	return conn
}

func TestEmitManyStoresEnvelopes(t *testing.T) {
	conn := newTestDB(t)
	svc := NewService(NewRepository(conn), nil)

	first, second := uuid.New(), uuid.New()
	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.EmitMany(context.Background(), tx, []DomainEvent{
			{EventType: enums.EventReservationExpired, AggregateType: enums.AggregateReservation, AggregateID: first, Data: map[string]string{"id": first.String()}, OccurredAt: occurred},
			{EventType: enums.EventReservationExpired, AggregateType: enums.AggregateReservation, AggregateID: second, Data: map[string]string{"id": second.String()}, OccurredAt: occurred},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Order("aggregate_id").Find(&rows).Error)
	require.Len(t, rows, 2)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	assert.Equal(t, 1, env.Version)
	assert.Equal(t, envelopeSource, env.Source)
	assert.NotEmpty(t, env.EventID)
	assert.True(t, env.OccurredAt.Equal(occurred))
}

func TestEmitRejectsInvalidEventType(t *testing.T) {
	conn := newTestDB(t)
	svc := NewService(NewRepository(conn), nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     "bogus",
			AggregateType: enums.AggregateReservation,
			AggregateID:   uuid.New(),
		})
	})
	require.Error(t, err)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventItemCreated, AggregateType: enums.AggregateItem})
	require.Error(t, err)
}

func TestRepositoryPublishBookkeeping(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)

	ok := models.OutboxEvent{EventType: enums.EventItemCreated, AggregateType: enums.AggregateItem, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	failing := models.OutboxEvent{EventType: enums.EventItemCreated, AggregateType: enums.AggregateItem, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	require.NoError(t, repo.InsertBatch(conn, []models.OutboxEvent{ok, failing}))

	var rows []models.OutboxEvent
	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkTerminalTx(conn, rows[1].ID, assert.AnError, 3))

	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRepositoryDeleteSettledBefore(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(60 * 24 * time.Hour)
	cutoff := old.Add(30 * 24 * time.Hour)

	newRow := func(created time.Time, published *time.Time, attempts int) models.OutboxEvent {
		return models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventItemCreated,
			AggregateType: enums.AggregateItem,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			CreatedAt:     created,
			PublishedAt:   published,
			AttemptCount:  attempts,
		}
	}
	rows := []models.OutboxEvent{
		newRow(old, &old, 0),
		newRow(old, nil, 10),
		newRow(old, nil, 2),
		newRow(recent, &recent, 0),
	}
	require.NoError(t, repo.InsertBatch(conn, rows))

	deleted, err := repo.DeleteSettledBefore(context.Background(), conn, cutoff, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Order("created_at").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	assert.Equal(t, rows[2].ID, remaining[0].ID)
	assert.Equal(t, rows[3].ID, remaining[1].ID)
}
