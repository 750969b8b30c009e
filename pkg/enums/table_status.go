package enums

import "fmt"

// TableStatus maps to the table_status enum in Postgres.
type TableStatus string

const (
	TableStatusAvailable    TableStatus = "available"
	TableStatusOccupied     TableStatus = "occupied"
	TableStatusReserved     TableStatus = "reserved"
	TableStatusOutOfService TableStatus = "out_of_service"
)

var validTableStatuses = []TableStatus{
	TableStatusAvailable,
	TableStatusOccupied,
	TableStatusReserved,
	TableStatusOutOfService,
}

// IsValid reports whether the value is a known TableStatus.
func (s TableStatus) IsValid() bool {
	for _, candidate := range validTableStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTableStatus converts raw input into a TableStatus.
func ParseTableStatus(value string) (TableStatus, error) {
	for _, candidate := range validTableStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid table status %q", value)
}
