package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/orlcnr/mesa-core/pkg/enums"
)

// Order is the aggregate root of the order ledger. TotalAmount is always
// recomputed from the attached items, never incremented in place.
type Order struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID uuid.UUID         `gorm:"column:restaurant_id;type:uuid;not null;index"`
	TableID      *uuid.UUID        `gorm:"column:table_id;type:uuid;index"`
	WaiterID     *uuid.UUID        `gorm:"column:waiter_id;type:uuid"`
	Status       enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	Type         enums.OrderType   `gorm:"column:type;type:order_type;not null;default:'dine_in'"`
	Source       enums.OrderSource `gorm:"column:source;type:order_source;not null;default:'pos'"`
	TotalAmount  decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null;default:0"`
	Notes        *string           `gorm:"column:notes"`
	Items        []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt    gorm.DeletedAt    `gorm:"column:deleted_at;index"`
}
