package enums

import "fmt"

// OrderSource records which channel placed the order.
type OrderSource string

const (
	OrderSourcePOS   OrderSource = "pos"
	OrderSourceQR    OrderSource = "qr"
	OrderSourcePhone OrderSource = "phone"
)

var validOrderSources = []OrderSource{
	OrderSourcePOS,
	OrderSourceQR,
	OrderSourcePhone,
}

// IsValid reports whether the value is a known OrderSource.
func (s OrderSource) IsValid() bool {
	for _, candidate := range validOrderSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrderSource converts raw input into an OrderSource.
func ParseOrderSource(value string) (OrderSource, error) {
	for _, candidate := range validOrderSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order source %q", value)
}
