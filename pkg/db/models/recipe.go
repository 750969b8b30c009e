package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Recipe links a menu item to the ingredient quantity consumed per unit sold.
// Read-only input to stock deduction; authored by the menu subsystem.
type Recipe struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MenuItemID   uuid.UUID       `gorm:"column:menu_item_id;type:uuid;not null;index"`
	IngredientID uuid.UUID       `gorm:"column:ingredient_id;type:uuid;not null;index"`
	Quantity     decimal.Decimal `gorm:"column:quantity;type:numeric(14,3);not null"`
}
