package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ingredient carries the costing side of the stock ledger. AverageCost stays
// nil until the first priced inbound movement; LastPrice/PreviousPrice feed
// external price-trend reporting.
type Ingredient struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID   uuid.UUID        `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Name           string           `gorm:"column:name;not null"`
	Unit           string           `gorm:"column:unit;not null;default:'unit'"`
	CriticalLevel  decimal.Decimal  `gorm:"column:critical_level;type:numeric(14,3);not null;default:0"`
	AverageCost    *decimal.Decimal `gorm:"column:average_cost;type:numeric(12,2)"`
	LastPrice      *decimal.Decimal `gorm:"column:last_price;type:numeric(12,2)"`
	PreviousPrice  *decimal.Decimal `gorm:"column:previous_price;type:numeric(12,2)"`
	PriceUpdatedAt *time.Time       `gorm:"column:price_updated_at"`
	Stock          *Stock           `gorm:"foreignKey:IngredientID"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
