package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer holds open-account (tab) credit state. CurrentDebt moves with
// open-account payments and reversals; TotalDebt only ever grows.
type Customer struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID       uuid.UUID       `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Name               string          `gorm:"column:name;not null"`
	CreditLimitEnabled bool            `gorm:"column:credit_limit_enabled;not null;default:false"`
	CreditLimit        decimal.Decimal `gorm:"column:credit_limit;type:numeric(12,2);not null;default:0"`
	CurrentDebt        decimal.Decimal `gorm:"column:current_debt;type:numeric(12,2);not null;default:0"`
	TotalDebt          decimal.Decimal `gorm:"column:total_debt;type:numeric(12,2);not null;default:0"`
	MaxOpenOrders      int             `gorm:"column:max_open_orders;not null;default:0"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt          gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}
