package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	"github.com/angelmondragon/stockhold/pkg/logger"
)

const envelopeSource = "stockhold"

type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Data          interface{}
	Version       int
	OccurredAt    time.Time
}

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit stores a single event in the caller's transaction.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	return s.EmitMany(ctx, tx, []DomainEvent{event})
}

// EmitMany stores events in the caller's transaction with one insert.
func (s *Service) EmitMany(ctx context.Context, tx *gorm.DB, events []DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if len(events) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows := make([]models.OutboxEvent, 0, len(events))
	envelopes := make([]PayloadEnvelope, 0, len(events))
	for _, event := range events {
		row, envelope, err := buildRow(event)
		if err != nil {
			return err
		}
		rows = append(rows, row)
		envelopes = append(envelopes, envelope)
	}
	if err := s.repo.InsertBatch(tx, rows); err != nil {
		return err
	}

	if s.logg != nil {
		for i, row := range rows {
			fields := map[string]any{
				"event_id":       envelopes[i].EventID,
				"event_type":     row.EventType,
				"aggregate_id":   row.AggregateID.String(),
				"aggregate_type": row.AggregateType,
			}
			s.logg.Debug(s.logg.WithFields(ctx, fields), "outbox event queued")
		}
	}
	return nil
}

func buildRow(event DomainEvent) (models.OutboxEvent, PayloadEnvelope, error) {
	if !event.EventType.IsValid() {
		return models.OutboxEvent{}, PayloadEnvelope{}, errors.New("invalid outbox event type " + string(event.EventType))
	}
	if !event.AggregateType.IsValid() {
		return models.OutboxEvent{}, PayloadEnvelope{}, errors.New("invalid outbox aggregate type " + string(event.AggregateType))
	}
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return models.OutboxEvent{}, PayloadEnvelope{}, err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.Version == 0 {
		event.Version = 1
	}
	envelope := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Source:     envelopeSource,
		Data:       payload,
	}
	payloadJSON, err := json.Marshal(envelope)
	if err != nil {
		return models.OutboxEvent{}, PayloadEnvelope{}, err
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       json.RawMessage(payloadJSON),
		CreatedAt:     event.OccurredAt,
	}, envelope, nil
}
