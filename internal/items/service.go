package items

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/pkg/db"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
	"github.com/angelmondragon/stockhold/pkg/logger"
	"github.com/angelmondragon/stockhold/pkg/outbox"
	"github.com/angelmondragon/stockhold/pkg/outbox/payloads"
	"github.com/angelmondragon/stockhold/pkg/pagination"
)

const maxNameLength = 255

// Service defines item creation and read operations.
type Service interface {
	CreateItem(ctx context.Context, input CreateItemInput) (*models.Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	ListItems(ctx context.Context, params pagination.Params) (*ListResult, error)
	GetAvailability(ctx context.Context, id uuid.UUID) (*Availability, error)
}

// CreateItemInput carries the fields accepted when creating an item.
type CreateItemInput struct {
	Name          string
	TotalQuantity int
}

// ListResult wraps returned items and the cursor for the next page.
type ListResult struct {
	Items  []models.Item `json:"items"`
	Cursor string        `json:"cursor"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type holdsReader interface {
	SumHolds(ctx context.Context, itemID uuid.UUID, now time.Time) (models.HoldTotals, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires item dependencies.
type ServiceParams struct {
	Logger *logger.Logger
	DB     txRunner
	Repo   Repository
	Holds  holdsReader
	Outbox eventEmitter
	Now    func() time.Time
}

type service struct {
	logg   *logger.Logger
	db     txRunner
	repo   Repository
	holds  holdsReader
	outbox eventEmitter
	now    func() time.Time
}

// NewService validates and wires the items service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "items repository required")
	}
	if params.Holds == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "holds reader required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	return &service{
		logg:   params.Logger,
		db:     params.DB,
		repo:   params.Repo,
		holds:  params.Holds,
		outbox: params.Outbox,
		now:    db.StorageClock(params.Now),
	}, nil
}

func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*models.Item, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required").
			WithDetails(map[string]string{"name": "required"})
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is too long").
			WithDetails(map[string]string{"name": "max 255 characters"})
	}
	if input.TotalQuantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total_quantity must be positive").
			WithDetails(map[string]string{"total_quantity": "must be greater than 0"})
	}

	now := s.now()
	item := &models.Item{
		ID:            uuid.New(),
		Name:          name,
		TotalQuantity: input.TotalQuantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, item); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventItemCreated,
			AggregateType: enums.AggregateItem,
			AggregateID:   item.ID,
			OccurredAt:    now,
			Data: payloads.ItemCreatedEvent{
				ItemID:        item.ID,
				Name:          item.Name,
				TotalQuantity: item.TotalQuantity,
			},
		})
	})
	if err != nil {
		return nil, storageError(err, "create item")
	}

	logCtx := s.logg.WithItemID(ctx, item.ID.String())
	s.logg.Info(s.logg.WithField(logCtx, "total_quantity", item.TotalQuantity), "item created")
	return item, nil
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, storageError(err, "load item")
	}
	return item, nil
}

func (s *service) ListItems(ctx context.Context, params pagination.Params) (*ListResult, error) {
	query := listItemsParams{Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, storageError(err, "list items")
	}
	if rows == nil {
		rows = []models.Item{}
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

// GetAvailability is a non-locking diagnostic read. Under concurrent writes it
// is an approximation, never an admission decision.
func (s *service) GetAvailability(ctx context.Context, id uuid.UUID) (*Availability, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	totals, err := s.holds.SumHolds(ctx, item.ID, s.now())
	if err != nil {
		return nil, storageError(err, "sum holds")
	}
	availability := ComputeAvailability(*item, totals)
	return &availability, nil
}

func storageError(err error, action string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if db.IsTransient(err) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}
