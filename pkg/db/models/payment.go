package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/orlcnr/mesa-core/pkg/enums"
)

// Payment is one settlement leg against an order. Completed rows are
// immutable except for the transition to refunded.
type Payment struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	RestaurantID   uuid.UUID           `gorm:"column:restaurant_id;type:uuid;not null;index"`
	CustomerID     *uuid.UUID          `gorm:"column:customer_id;type:uuid;index"`
	Amount         decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	DiscountType   *enums.DiscountType `gorm:"column:discount_type;type:discount_type"`
	DiscountAmount decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	FinalAmount    decimal.Decimal     `gorm:"column:final_amount;type:numeric(12,2);not null"`
	Status         enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	TipAmount      decimal.Decimal     `gorm:"column:tip_amount;type:numeric(12,2);not null;default:0"`
	CommissionRate decimal.Decimal     `gorm:"column:commission_rate;type:numeric(5,2);not null;default:0"`
	NetTipAmount   decimal.Decimal     `gorm:"column:net_tip_amount;type:numeric(12,2);not null;default:0"`
	CashReceived   decimal.Decimal     `gorm:"column:cash_received;type:numeric(12,2);not null;default:0"`
	ChangeGiven    decimal.Decimal     `gorm:"column:change_given;type:numeric(12,2);not null;default:0"`
	Description    string              `gorm:"column:description"`
	CreatedBy      uuid.UUID           `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt      gorm.DeletedAt      `gorm:"column:deleted_at;index"`
}
