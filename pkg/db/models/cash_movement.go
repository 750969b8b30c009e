package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orlcnr/mesa-core/pkg/enums"
)

// CashMovement is the append-only record of money entering or leaving a
// session. Non-cash methods are recorded for audit but do not move the till.
type CashMovement struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SessionID     uuid.UUID              `gorm:"column:session_id;type:uuid;not null;index"`
	Type          enums.CashMovementType `gorm:"column:type;type:cash_movement_type;not null"`
	PaymentMethod enums.PaymentMethod    `gorm:"column:payment_method;type:payment_method;not null"`
	Amount        decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	OrderID       *uuid.UUID             `gorm:"column:order_id;type:uuid;index"`
	Description   string                 `gorm:"column:description"`
	CreatedBy     uuid.UUID              `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
}
