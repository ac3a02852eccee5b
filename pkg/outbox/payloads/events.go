package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold/pkg/enums"
)

// ItemCreatedEvent announces a new stock record.
type ItemCreatedEvent struct {
	ItemID        uuid.UUID `json:"item_id"`
	Name          string    `json:"name"`
	TotalQuantity int       `json:"total_quantity"`
}

// ReservationEvent is the payload shared by every reservation lifecycle event.
// Only the timestamp matching Status is set.
type ReservationEvent struct {
	ReservationID uuid.UUID               `json:"reservation_id"`
	ItemID        uuid.UUID               `json:"item_id"`
	CustomerID    string                  `json:"customer_id"`
	Quantity      int                     `json:"quantity"`
	Status        enums.ReservationStatus `json:"status"`
	ExpiresAt     time.Time               `json:"expires_at"`
	ConfirmedAt   *time.Time              `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time              `json:"cancelled_at,omitempty"`
	ExpiredAt     *time.Time              `json:"expired_at,omitempty"`
}
