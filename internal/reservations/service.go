package reservations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold/internal/items"
	"github.com/angelmondragon/stockhold/pkg/db"
	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold/pkg/errors"
	"github.com/angelmondragon/stockhold/pkg/logger"
	"github.com/angelmondragon/stockhold/pkg/metrics"
	"github.com/angelmondragon/stockhold/pkg/outbox"
	"github.com/angelmondragon/stockhold/pkg/outbox/payloads"
	"github.com/angelmondragon/stockhold/pkg/pagination"
)

const (
	maxCustomerIDLength  = 255
	maxReconcileAttempts = 3
)

// errGuardMiss aborts a lifecycle transaction whose guarded update lost a race.
var errGuardMiss = errors.New("guarded update affected no rows")

// Service admits reservations against item stock and drives their lifecycle.
type Service interface {
	CreateReservation(ctx context.Context, input CreateReservationInput) (*models.Reservation, error)
	GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	ListReservations(ctx context.Context, params ListParams) (*ListResult, error)
	Confirm(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	ExpireDue(ctx context.Context) (*ExpireResult, error)
}

// CreateReservationInput carries a hold request. ExpiresIn falls back to the
// configured default when nil.
type CreateReservationInput struct {
	ItemID     uuid.UUID
	CustomerID string
	Quantity   int
	ExpiresIn  *time.Duration
}

// ListParams filters reservations of one item.
type ListParams struct {
	ItemID uuid.UUID
	Status string
	Limit  int
	Cursor string
}

// ListResult wraps returned reservations and the cursor for the next page.
type ListResult struct {
	Reservations []models.Reservation `json:"reservations"`
	Cursor       string               `json:"cursor"`
}

// ExpireResult reports the reservations moved to EXPIRED by one sweep.
type ExpireResult struct {
	ExpiredCount int         `json:"expired_count"`
	ExpiredIDs   []uuid.UUID `json:"expired_ids"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitMany(ctx context.Context, tx *gorm.DB, events []outbox.DomainEvent) error
}

// ServiceParams wires reservation dependencies.
type ServiceParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repo          Repository
	Items         items.Repository
	Outbox        eventEmitter
	Metrics       *metrics.ReservationMetrics
	DefaultExpiry time.Duration
	MaxExpiry     time.Duration
	LockTimeout   time.Duration
	Now           func() time.Time
}

type service struct {
	logg          *logger.Logger
	db            txRunner
	repo          Repository
	items         items.Repository
	outbox        eventEmitter
	metrics       *metrics.ReservationMetrics
	defaultExpiry time.Duration
	maxExpiry     time.Duration
	lockTimeout   time.Duration
	now           func() time.Time
}

// NewService validates and wires the reservations service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reservations repository required")
	}
	if params.Items == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "items repository required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	if params.DefaultExpiry <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "default expiry must be positive")
	}
	maxExpiry := params.MaxExpiry
	if maxExpiry < params.DefaultExpiry {
		maxExpiry = params.DefaultExpiry
	}
	return &service{
		logg:          params.Logger,
		db:            params.DB,
		repo:          params.Repo,
		items:         params.Items,
		outbox:        params.Outbox,
		metrics:       params.Metrics,
		defaultExpiry: params.DefaultExpiry,
		maxExpiry:     maxExpiry,
		lockTimeout:   params.LockTimeout,
		now:           db.StorageClock(params.Now),
	}, nil
}

func (s *service) CreateReservation(ctx context.Context, input CreateReservationInput) (*models.Reservation, error) {
	customerID, expiry, err := s.validateCreate(input)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	var created *models.Reservation
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.applyLockTimeout(tx); err != nil {
			return err
		}

		// Serializes admissions per item until commit.
		item, err := s.items.WithTx(tx).FindForUpdate(ctx, input.ItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errItemNotFound()
			}
			return err
		}

		now := s.now()
		repo := s.repo.WithTx(tx)
		totals, err := repo.SumHolds(ctx, item.ID, now)
		if err != nil {
			return err
		}
		availability := items.ComputeAvailability(*item, totals)
		if input.Quantity > availability.Available {
			return errInsufficientQuantity(input.Quantity, availability.Available)
		}

		reservation := &models.Reservation{
			ID:         uuid.New(),
			ItemID:     item.ID,
			CustomerID: customerID,
			Quantity:   input.Quantity,
			Status:     enums.ReservationStatusPending,
			ExpiresAt:  now.Add(expiry),
			CreatedAt:  now,
		}
		if err := repo.Insert(ctx, reservation); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, *reservation, now); err != nil {
			return err
		}
		created = reservation
		return nil
	})
	if err != nil {
		mapped := storageError(err, "create reservation")
		s.metrics.ObserveAdmission(admissionOutcome(mapped), time.Since(started))
		if pkgerrors.As(mapped).Code() == pkgerrors.CodeInternal {
			s.logg.Error(s.logg.WithItemID(ctx, input.ItemID.String()), "reservation admission failed", err)
		}
		return nil, mapped
	}
	s.metrics.ObserveAdmission(metrics.OutcomeAdmitted, time.Since(started))

	logCtx := s.logg.WithReservationID(s.logg.WithItemID(ctx, created.ItemID.String()), created.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"quantity":   created.Quantity,
		"expires_at": created.ExpiresAt,
	})
	s.logg.Info(logCtx, "reservation created")
	return created, nil
}

func (s *service) validateCreate(input CreateReservationInput) (string, time.Duration, error) {
	fields := map[string]string{}
	if input.ItemID == uuid.Nil {
		fields["item_id"] = "required"
	}
	customerID := strings.TrimSpace(input.CustomerID)
	switch {
	case customerID == "":
		fields["customer_id"] = "required"
	case utf8.RuneCountInString(customerID) > maxCustomerIDLength:
		fields["customer_id"] = "max 255 characters"
	}
	if input.Quantity <= 0 {
		fields["quantity"] = "must be greater than 0"
	}
	expiry := s.defaultExpiry
	if input.ExpiresIn != nil {
		expiry = *input.ExpiresIn
		switch {
		case expiry <= 0:
			fields["expires_in_seconds"] = "must be greater than 0"
		case expiry > s.maxExpiry:
			fields["expires_in_seconds"] = fmt.Sprintf("must be at most %d", int64(s.maxExpiry/time.Second))
		}
	}
	if len(fields) > 0 {
		return "", 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid reservation request").WithDetails(fields)
	}
	return customerID, expiry, nil
}

// applyLockTimeout bounds how long admission waits on the item row lock.
func (s *service) applyLockTimeout(tx *gorm.DB) error {
	if s.lockTimeout <= 0 || tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())).Error
}

func (s *service) GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errReservationNotFound()
		}
		return nil, storageError(err, "load reservation")
	}
	return reservation, nil
}

func (s *service) ListReservations(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listReservationsParams{ItemID: params.ItemID, Limit: params.Limit}
	if params.Status != "" {
		status, err := enums.ParseReservationStatus(strings.ToUpper(strings.TrimSpace(params.Status)))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		query.Status = status
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	if _, err := s.items.FindByID(ctx, params.ItemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errItemNotFound()
		}
		return nil, storageError(err, "load item")
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, storageError(err, "list reservations")
	}
	if rows == nil {
		rows = []models.Reservation{}
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Reservations: rows, Cursor: cursor}, nil
}

// Confirm finalizes a PENDING, unexpired reservation. Confirming an already
// CONFIRMED reservation returns it unchanged.
func (s *service) Confirm(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return s.transition(ctx, id, confirmOp)
}

// Cancel releases a PENDING reservation. CANCELLED and EXPIRED reservations
// are returned unchanged.
func (s *service) Cancel(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return s.transition(ctx, id, cancelOp)
}

func (s *service) transition(ctx context.Context, id uuid.UUID, op lifecycleOp) (*models.Reservation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id is required")
	}
	logCtx := s.logg.WithReservationID(ctx, id.String())

	for attempt := 1; attempt <= maxReconcileAttempts; attempt++ {
		var (
			result  *models.Reservation
			outcome decision
		)
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			current, err := repo.FindByID(ctx, id)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errReservationNotFound()
				}
				return err
			}

			now := s.now()
			outcome = op.decide(current, now)
			switch outcome.kind {
			case decisionIdempotent:
				result = current
				return nil
			case decisionConflict:
				return outcome.err
			}

			won, err := repo.Transition(ctx, guardedTransition{
				ID:               id,
				To:               op.target,
				At:               now,
				RequireUnexpired: op.requireUnexpired,
			})
			if err != nil {
				return err
			}
			if !won {
				return errGuardMiss
			}
			updated := applied(*current, op.target, now)
			if err := s.emit(ctx, tx, updated, now); err != nil {
				return err
			}
			result = &updated
			return nil
		})

		switch {
		case errors.Is(err, errGuardMiss):
			s.metrics.IncGuardMiss(op.name)
			s.logg.Debug(s.logg.WithField(logCtx, "attempt", attempt), "reservation "+op.name+" lost a race; reconciling")
			continue
		case err != nil:
			mapped := storageError(err, op.name+" reservation")
			s.metrics.IncTransition(op.name, transitionOutcome(mapped))
			if pkgerrors.As(mapped).Code() == pkgerrors.CodeInternal {
				s.logg.Error(logCtx, "reservation "+op.name+" failed", err)
			}
			return nil, mapped
		}

		s.metrics.IncTransition(op.name, outcome.outcome())
		if outcome.kind == decisionApply {
			s.logg.Info(s.logg.WithField(logCtx, "status", result.Status), op.appliedMessage)
		}
		return result, nil
	}

	return s.settleAfterRaces(ctx, logCtx, id, op)
}

// settleAfterRaces answers a transition whose guarded update kept losing by
// deciding once more against a fresh read of the row.
func (s *service) settleAfterRaces(ctx, logCtx context.Context, id uuid.UUID, op lifecycleOp) (*models.Reservation, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errReservationNotFound()
		}
		return nil, storageError(err, op.name+" reservation")
	}

	outcome := op.decide(current, s.now())
	switch outcome.kind {
	case decisionIdempotent:
		s.metrics.IncTransition(op.name, outcome.outcome())
		return current, nil
	case decisionConflict:
		s.metrics.IncTransition(op.name, outcome.outcome())
		return nil, outcome.err
	}

	s.metrics.IncTransition(op.name, metrics.OutcomeError)
	s.logg.Warn(s.logg.WithField(logCtx, "status", current.Status), "reservation "+op.name+" exhausted reconcile attempts")
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "reservation is changing concurrently; retry")
}

// ExpireDue moves every PENDING reservation whose expires_at has passed to
// EXPIRED. Concurrent sweeps never report the same reservation twice.
func (s *service) ExpireDue(ctx context.Context) (*ExpireResult, error) {
	now := s.now()
	var expired []models.Reservation
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).ExpireDue(ctx, now)
		if err != nil {
			return err
		}
		events := make([]outbox.DomainEvent, 0, len(rows))
		for _, row := range rows {
			event, err := reservationEvent(row, now)
			if err != nil {
				return err
			}
			events = append(events, event)
		}
		if err := s.outbox.EmitMany(ctx, tx, events); err != nil {
			return err
		}
		expired = rows
		return nil
	})
	if err != nil {
		s.logg.Error(ctx, "reservation expiry sweep failed", err)
		return nil, storageError(err, "expire reservations")
	}

	result := &ExpireResult{ExpiredCount: len(expired), ExpiredIDs: make([]uuid.UUID, 0, len(expired))}
	for _, row := range expired {
		result.ExpiredIDs = append(result.ExpiredIDs, row.ID)
	}
	s.metrics.AddExpired(result.ExpiredCount)
	if result.ExpiredCount > 0 {
		s.logg.Info(s.logg.WithField(ctx, "expired_count", result.ExpiredCount), "reservations expired")
	}
	return result, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, reservation models.Reservation, at time.Time) error {
	event, err := reservationEvent(reservation, at)
	if err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, event)
}

func reservationEvent(reservation models.Reservation, at time.Time) (outbox.DomainEvent, error) {
	eventType, ok := enums.ReservationEventFor(reservation.Status)
	if !ok {
		return outbox.DomainEvent{}, fmt.Errorf("no event for reservation status %s", reservation.Status)
	}
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateReservation,
		AggregateID:   reservation.ID,
		OccurredAt:    at,
		Data: payloads.ReservationEvent{
			ReservationID: reservation.ID,
			ItemID:        reservation.ItemID,
			CustomerID:    reservation.CustomerID,
			Quantity:      reservation.Quantity,
			Status:        reservation.Status,
			ExpiresAt:     reservation.ExpiresAt,
			ConfirmedAt:   reservation.ConfirmedAt,
			CancelledAt:   reservation.CancelledAt,
			ExpiredAt:     reservation.ExpiredAt,
		},
	}, nil
}

func admissionOutcome(err error) string {
	switch pkgerrors.As(err).Code() {
	case pkgerrors.CodeInsufficientQuantity:
		return metrics.OutcomeInsufficient
	case pkgerrors.CodeNotFound:
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}

func transitionOutcome(err error) string {
	switch pkgerrors.As(err).Code() {
	case pkgerrors.CodeNotFound:
		return metrics.OutcomeNotFound
	case pkgerrors.CodeInvalidTransition, pkgerrors.CodeReservationExpired:
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}

func storageError(err error, action string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if db.IsForeignKeyViolation(err) {
		return errItemNotFound()
	}
	if db.IsTransient(err) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}
