package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orlcnr/mesa-core/pkg/enums"
)

// StockMovement is the append-only audit trail of every stock change.
// Rows are never updated or deleted; quantity is always a positive magnitude
// with the direction carried by Type.
type StockMovement struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IngredientID uuid.UUID               `gorm:"column:ingredient_id;type:uuid;not null;index"`
	Type         enums.StockMovementType `gorm:"column:type;type:stock_movement_type;not null"`
	Quantity     decimal.Decimal         `gorm:"column:quantity;type:numeric(14,3);not null"`
	UnitPrice    *decimal.Decimal        `gorm:"column:unit_price;type:numeric(12,2)"`
	Reason       string                  `gorm:"column:reason"`
	ReferenceID  *uuid.UUID              `gorm:"column:reference_id;type:uuid;index"`
	CreatedBy    uuid.UUID               `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
}
