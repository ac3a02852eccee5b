package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold/pkg/enums"
)

// Reservation is a hold of Quantity units on an item. It is created PENDING
// and moves exactly once into a terminal status.
type Reservation struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ItemID      uuid.UUID               `gorm:"column:item_id;type:uuid;not null;index:idx_reservations_item_status,priority:1"`
	Item        *Item                   `gorm:"foreignKey:ItemID;references:ID;constraint:OnDelete:RESTRICT"`
	CustomerID  string                  `gorm:"column:customer_id;type:varchar(255);not null"`
	Quantity    int                     `gorm:"column:quantity;not null"`
	Status      enums.ReservationStatus `gorm:"column:status;type:varchar(16);not null;index:idx_reservations_item_status,priority:2;index:idx_reservations_status_expires,priority:1"`
	ExpiresAt   time.Time               `gorm:"column:expires_at;not null;index:idx_reservations_status_expires,priority:2"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime:false"`
	ConfirmedAt *time.Time              `gorm:"column:confirmed_at"`
	CancelledAt *time.Time              `gorm:"column:cancelled_at"`
	ExpiredAt   *time.Time              `gorm:"column:expired_at"`
}

func (Reservation) TableName() string { return "reservations" }

// HoldTotals aggregates the quantities currently held against an item.
type HoldTotals struct {
	Reserved  int `gorm:"column:reserved"`
	Confirmed int `gorm:"column:confirmed"`
}
