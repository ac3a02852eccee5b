package items

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold/pkg/db/models"
)

// Availability is the derived stock view of an item. It is never stored.
type Availability struct {
	ItemID    uuid.UUID `json:"item_id"`
	Total     int       `json:"total"`
	Reserved  int       `json:"reserved"`
	Confirmed int       `json:"confirmed"`
	Available int       `json:"available"`
}

// ComputeAvailability derives available = total - reserved - confirmed from
// the current hold totals.
func ComputeAvailability(item models.Item, totals models.HoldTotals) Availability {
	return Availability{
		ItemID:    item.ID,
		Total:     item.TotalQuantity,
		Reserved:  totals.Reserved,
		Confirmed: totals.Confirmed,
		Available: item.TotalQuantity - totals.Reserved - totals.Confirmed,
	}
}
