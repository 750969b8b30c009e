package models

import (
	"time"

	"github.com/google/uuid"
)

// Rule is a named yes/no gate consulted before guarded actions. Rule
// authoring lives outside the core; a missing or disabled row means allow.
type Rule struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID uuid.UUID `gorm:"column:restaurant_id;type:uuid;not null;index:idx_rules_restaurant_key,unique"`
	Key          string    `gorm:"column:key;not null;index:idx_rules_restaurant_key,unique"`
	Enabled      bool      `gorm:"column:enabled;not null;default:false"`
	DenyReason   string    `gorm:"column:deny_reason"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
