package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/orlcnr/mesa-core/pkg/enums"
)

// DiningTable represents a physical table in the dining room.
type DiningTable struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID uuid.UUID         `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Number       int               `gorm:"column:number;not null"`
	Status       enums.TableStatus `gorm:"column:status;type:table_status;not null;default:'available'"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides GORM's default pluralization.
func (DiningTable) TableName() string { return "dining_tables" }
