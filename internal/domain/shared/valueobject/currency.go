// Package valueobject holds small immutable domain values shared across
// bounded contexts.
package valueobject

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	USD Currency = "USD" // US Dollar (default)
	EUR Currency = "EUR" // Euro
	GBP Currency = "GBP" // British Pound
	CNY Currency = "CNY" // Chinese Yuan
	JPY Currency = "JPY" // Japanese Yen
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = USD

// IsValid reports whether the code is one of the supported currencies.
func (c Currency) IsValid() bool {
	switch c {
	case USD, EUR, GBP, CNY, JPY:
		return true
	}
	return false
}

// String returns the currency code
func (c Currency) String() string {
	return string(c)
}
