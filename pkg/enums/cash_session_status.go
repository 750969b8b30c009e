package enums

import "fmt"

// CashSessionStatus maps to the cash_session_status enum in Postgres.
type CashSessionStatus string

const (
	CashSessionStatusOpen   CashSessionStatus = "open"
	CashSessionStatusClosed CashSessionStatus = "closed"
)

var validCashSessionStatuses = []CashSessionStatus{
	CashSessionStatusOpen,
	CashSessionStatusClosed,
}

// IsValid reports whether the value is a known CashSessionStatus.
func (s CashSessionStatus) IsValid() bool {
	for _, candidate := range validCashSessionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCashSessionStatus converts raw input into a CashSessionStatus.
func ParseCashSessionStatus(value string) (CashSessionStatus, error) {
	for _, candidate := range validCashSessionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cash session status %q", value)
}
