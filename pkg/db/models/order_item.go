package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/orlcnr/mesa-core/pkg/enums"
)

// OrderItem is a single line of an order. UnitPrice is a snapshot of the menu
// price at the moment the row was added and is never retroactively changed.
type OrderItem struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	MenuItemID uuid.UUID             `gorm:"column:menu_item_id;type:uuid;not null;index"`
	Quantity   int                   `gorm:"column:quantity;not null"`
	UnitPrice  decimal.Decimal       `gorm:"column:unit_price;type:numeric(12,2);not null"`
	TotalPrice decimal.Decimal       `gorm:"column:total_price;type:numeric(12,2);not null"`
	Status     enums.OrderItemStatus `gorm:"column:status;type:order_item_status;not null;default:'pending'"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time             `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt  gorm.DeletedAt        `gorm:"column:deleted_at;index"`
}
