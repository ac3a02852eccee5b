package models

import (
	"time"

	"github.com/google/uuid"
)

// Item is an immutable stock record. TotalQuantity is fixed at creation.
type Item struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name          string    `gorm:"column:name;type:varchar(255);not null"`
	TotalQuantity int       `gorm:"column:total_quantity;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Item) TableName() string { return "items" }
