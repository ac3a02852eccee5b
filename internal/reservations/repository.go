package reservations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
	"github.com/angelmondragon/stockhold/pkg/pagination"
)

// Repository exposes persistence helpers for reservations. Rows are only
// mutated through guarded updates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, reservation *models.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	List(ctx context.Context, params listReservationsParams) ([]models.Reservation, *pagination.Cursor, error)
	SumHolds(ctx context.Context, itemID uuid.UUID, now time.Time) (models.HoldTotals, error)
	Transition(ctx context.Context, t guardedTransition) (bool, error)
	ExpireDue(ctx context.Context, now time.Time) ([]models.Reservation, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a reservations repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listReservationsParams struct {
	ItemID uuid.UUID
	Status enums.ReservationStatus
	Limit  int
	Cursor *pagination.Cursor
}

// guardedTransition moves a PENDING reservation to To. When RequireUnexpired
// is set the row must also satisfy expires_at > At.
type guardedTransition struct {
	ID               uuid.UUID
	To               enums.ReservationStatus
	At               time.Time
	RequireUnexpired bool
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Insert(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(reservation).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).First(&reservation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listReservationsParams) ([]models.Reservation, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Reservation{}).Where("item_id = ?", params.ItemID)
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Reservation
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(params.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	page, more := pagination.Split(rows, params.Limit)
	if more {
		last := page[len(page)-1]
		return page, pagination.CursorOf(last.CreatedAt, last.ID), nil
	}
	return page, nil, nil
}

// SumHolds returns the quantity held by unexpired PENDING reservations and by
// CONFIRMED reservations of the item as of now.
func (r *repositoryImpl) SumHolds(ctx context.Context, itemID uuid.UUID, now time.Time) (models.HoldTotals, error) {
	var totals models.HoldTotals
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Select(
			"COALESCE(SUM(CASE WHEN status = ? AND expires_at > ? THEN quantity ELSE 0 END), 0) AS reserved, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN quantity ELSE 0 END), 0) AS confirmed",
			enums.ReservationStatusPending, now, enums.ReservationStatusConfirmed,
		).
		Where("item_id = ?", itemID).
		Scan(&totals).Error
	return totals, err
}

// Transition applies the guarded update and reports whether this call won it.
func (r *repositoryImpl) Transition(ctx context.Context, t guardedTransition) (bool, error) {
	column, err := timestampColumn(t.To)
	if err != nil {
		return false, err
	}
	query := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND status = ?", t.ID, enums.ReservationStatusPending)
	if t.RequireUnexpired {
		query = query.Where("expires_at > ?", t.At)
	}
	result := query.UpdateColumns(map[string]any{
		"status": t.To,
		column:   t.At,
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ExpireDue moves every due PENDING reservation to EXPIRED in one statement
// and returns the rows this call expired. Only ids come back through
// RETURNING; the full rows are re-read in the same transaction.
func (r *repositoryImpl) ExpireDue(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	var claimed []models.Reservation
	err := r.db.WithContext(ctx).
		Model(&claimed).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}}}).
		Where("status = ? AND expires_at <= ?", enums.ReservationStatusPending, now).
		UpdateColumns(map[string]any{
			"status":     enums.ReservationStatusExpired,
			"expired_at": now,
		}).Error
	if err != nil {
		return nil, err
	}
	if len(claimed) == 0 {
		return []models.Reservation{}, nil
	}

	ids := make([]uuid.UUID, 0, len(claimed))
	for _, row := range claimed {
		ids = append(ids, row.ID)
	}
	var expired []models.Reservation
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("expires_at ASC, id ASC").Find(&expired).Error; err != nil {
		return nil, err
	}
	return expired, nil
}

func timestampColumn(status enums.ReservationStatus) (string, error) {
	switch status {
	case enums.ReservationStatusConfirmed:
		return "confirmed_at", nil
	case enums.ReservationStatusCancelled:
		return "cancelled_at", nil
	case enums.ReservationStatusExpired:
		return "expired_at", nil
	default:
		return "", fmt.Errorf("no transition into %s", status)
	}
}
