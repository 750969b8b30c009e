package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stock tracks quantity on hand per ingredient, one row per ingredient.
// Sale-driven deduction may take it transiently negative; manual movements
// may not.
type Stock struct {
	IngredientID uuid.UUID       `gorm:"column:ingredient_id;type:uuid;primaryKey"`
	Quantity     decimal.Decimal `gorm:"column:quantity;type:numeric(14,3);not null;default:0"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's default pluralization.
func (Stock) TableName() string { return "stocks" }
