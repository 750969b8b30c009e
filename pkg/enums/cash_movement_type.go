package enums

import "fmt"

// CashMovementType maps to the cash_movement_type enum in Postgres.
type CashMovementType string

const (
	CashMovementTypeIn   CashMovementType = "in"
	CashMovementTypeOut  CashMovementType = "out"
	CashMovementTypeSale CashMovementType = "sale"
)

var validCashMovementTypes = []CashMovementType{
	CashMovementTypeIn,
	CashMovementTypeOut,
	CashMovementTypeSale,
}

// IsValid reports whether the value is a known CashMovementType.
func (t CashMovementType) IsValid() bool {
	for _, candidate := range validCashMovementTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Sign returns the direction the movement applies to the till balance:
// in and sale add, out subtracts.
func (t CashMovementType) Sign() int {
	if t == CashMovementTypeOut {
		return -1
	}
	return 1
}

// ParseCashMovementType converts raw input into a CashMovementType.
func ParseCashMovementType(value string) (CashMovementType, error) {
	for _, candidate := range validCashMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cash movement type %q", value)
}
