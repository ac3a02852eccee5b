package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold/pkg/db/models"
	"github.com/angelmondragon/stockhold/pkg/enums"
)

type itemResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	TotalQuantity int       `json:"total_quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func itemResponseFromModel(m *models.Item) itemResponse {
	return itemResponse{
		ID:            m.ID,
		Name:          m.Name,
		TotalQuantity: m.TotalQuantity,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

type reservationResponse struct {
	ID          uuid.UUID               `json:"id"`
	ItemID      uuid.UUID               `json:"item_id"`
	CustomerID  string                  `json:"customer_id"`
	Quantity    int                     `json:"quantity"`
	Status      enums.ReservationStatus `json:"status"`
	ExpiresAt   time.Time               `json:"expires_at"`
	CreatedAt   time.Time               `json:"created_at"`
	ConfirmedAt *time.Time              `json:"confirmed_at"`
	CancelledAt *time.Time              `json:"cancelled_at"`
	ExpiredAt   *time.Time              `json:"expired_at"`
}

func reservationResponseFromModel(m *models.Reservation) reservationResponse {
	return reservationResponse{
		ID:          m.ID,
		ItemID:      m.ItemID,
		CustomerID:  m.CustomerID,
		Quantity:    m.Quantity,
		Status:      m.Status,
		ExpiresAt:   m.ExpiresAt,
		CreatedAt:   m.CreatedAt,
		ConfirmedAt: m.ConfirmedAt,
		CancelledAt: m.CancelledAt,
		ExpiredAt:   m.ExpiredAt,
	}
}

type itemListResponse struct {
	Items  []itemResponse `json:"items"`
	Cursor string         `json:"cursor,omitempty"`
}

type reservationListResponse struct {
	Reservations []reservationResponse `json:"reservations"`
	Cursor       string                `json:"cursor,omitempty"`
}
