package outbox

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orlcnr/mesa-core/pkg/enums"
)

// OrderPayload is the data section of order.updated events.
type OrderPayload struct {
	OrderID     uuid.UUID         `json:"orderId"`
	Status      enums.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal   `json:"totalAmount"`
	TableID     *uuid.UUID        `json:"tableId,omitempty"`
}

// TablePayload is the data section of table.status.changed events.
type TablePayload struct {
	TableID uuid.UUID         `json:"tableId"`
	Status  enums.TableStatus `json:"status"`
	OrderID *uuid.UUID        `json:"orderId,omitempty"`
}

// PaymentPayload is the data section of payment.completed and
// payment.reverted events.
type PaymentPayload struct {
	PaymentID     uuid.UUID           `json:"paymentId"`
	OrderID       uuid.UUID           `json:"orderId"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	Status        enums.PaymentStatus `json:"status"`
	FinalAmount   decimal.Decimal     `json:"finalAmount"`
	ChangeGiven   decimal.Decimal     `json:"changeGiven,omitempty"`
	Reason        string              `json:"reason,omitempty"`
}
