package enums

import "fmt"

// StockMovementType maps to the stock_movement_type enum in Postgres.
type StockMovementType string

const (
	StockMovementTypeIn     StockMovementType = "in"
	StockMovementTypeOut    StockMovementType = "out"
	StockMovementTypeAdjust StockMovementType = "adjust"
)

var validStockMovementTypes = []StockMovementType{
	StockMovementTypeIn,
	StockMovementTypeOut,
	StockMovementTypeAdjust,
}

// IsValid reports whether the value is a known StockMovementType.
func (t StockMovementType) IsValid() bool {
	for _, candidate := range validStockMovementTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseStockMovementType converts raw input into a StockMovementType.
func ParseStockMovementType(value string) (StockMovementType, error) {
	for _, candidate := range validStockMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock movement type %q", value)
}
