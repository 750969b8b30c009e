package enums

import "fmt"

// OrderItemStatus maps to the order_item_status enum in Postgres.
type OrderItemStatus string

const (
	OrderItemStatusPending   OrderItemStatus = "pending"
	OrderItemStatusPreparing OrderItemStatus = "preparing"
	OrderItemStatusReady     OrderItemStatus = "ready"
	OrderItemStatusServed    OrderItemStatus = "served"
	OrderItemStatusCancelled OrderItemStatus = "cancelled"
)

var validOrderItemStatuses = []OrderItemStatus{
	OrderItemStatusPending,
	OrderItemStatusPreparing,
	OrderItemStatusReady,
	OrderItemStatusServed,
	OrderItemStatusCancelled,
}

// IsValid reports whether the value is a known OrderItemStatus.
func (s OrderItemStatus) IsValid() bool {
	for _, candidate := range validOrderItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsFrozen reports whether the line is past the point where edits may claw
// it back. Served and ready food is excluded from quantity reductions and
// bulk status syncs.
func (s OrderItemStatus) IsFrozen() bool {
	return s == OrderItemStatusServed || s == OrderItemStatusReady
}

// ParseOrderItemStatus converts raw input into an OrderItemStatus.
func ParseOrderItemStatus(value string) (OrderItemStatus, error) {
	for _, candidate := range validOrderItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order item status %q", value)
}
