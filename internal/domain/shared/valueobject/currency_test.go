package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrency_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		currency Currency
		expected bool
	}{
		{"USD is valid", USD, true},
		{"EUR is valid", EUR, true},
		{"JPY is valid", JPY, true},
		{"lowercase is not valid", Currency("usd"), false},
		{"unknown code is not valid", Currency("XXX"), false},
		{"empty is not valid", Currency(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.currency.IsValid())
		})
	}
}

func TestDefaultCurrency(t *testing.T) {
	assert.Equal(t, USD, DefaultCurrency)
	assert.True(t, DefaultCurrency.IsValid())
}
