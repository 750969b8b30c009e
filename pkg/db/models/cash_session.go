package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orlcnr/mesa-core/pkg/enums"
)

// CashSession is one open/close cycle of a register. The running balance is
// never stored; it is always derived as opening balance plus the signed sum
// of cash-method movements. The four closing fields are set together in one
// update.
type CashSession struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RegisterID     uuid.UUID               `gorm:"column:register_id;type:uuid;not null;index"`
	OpenedBy       uuid.UUID               `gorm:"column:opened_by;type:uuid;not null"`
	OpeningBalance decimal.Decimal         `gorm:"column:opening_balance;type:numeric(12,2);not null"`
	Status         enums.CashSessionStatus `gorm:"column:status;type:cash_session_status;not null;default:'open'"`
	ClosedBy       *uuid.UUID              `gorm:"column:closed_by;type:uuid"`
	ClosingBalance *decimal.Decimal        `gorm:"column:closing_balance;type:numeric(12,2)"`
	CountedBalance *decimal.Decimal        `gorm:"column:counted_balance;type:numeric(12,2)"`
	Difference     *decimal.Decimal        `gorm:"column:difference;type:numeric(12,2)"`
	ClosedAt       *time.Time              `gorm:"column:closed_at"`
	Movements      []CashMovement          `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
