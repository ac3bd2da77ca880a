package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wantErr bool
	}{
		{"positive integer", "100", false},
		{"positive fraction", "0.01", false},
		{"eight decimals", "1.12345678", false},
		{"trailing zeros beyond scale", "1.100000000", false},
		{"zero", "0", true},
		{"negative", "-5", true},
		{"nine decimals", "1.123456789", true},
		{"largest storable", "999999999999.99999999", false},
		{"twelve integer digits with exponent", "1e12", true},
		{"above limit", "1000000000000.5", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmount(decimal.RequireFromString(tt.amount))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount(" 250.50 ")
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.RequireFromString("250.5")))

	_, err = ParseAmount("abc")
	assert.Error(t, err)

	_, err = ParseAmount("-1")
	assert.Error(t, err)
}

func TestValidateReference(t *testing.T) {
	assert.NoError(t, ValidateReference(NormalizeReference("  pay_123 ")))
	assert.Error(t, ValidateReference(NormalizeReference("   ")))

	long := make([]byte, MaxReferenceLength+1)
	for i := range long {
		long[i] = 'x'
	}
	assert.Error(t, ValidateReference(string(long)))
}

func TestReferCode(t *testing.T) {
	code := NormalizeReferCode(" ab12cd34 ")
	assert.Equal(t, "AB12CD34", code)
	assert.NoError(t, ValidateReferCode(code))

	assert.Error(t, ValidateReferCode("ABC"), "too short")
	assert.Error(t, ValidateReferCode("AB12CD3-"), "bad character")
}

func TestWithinLimit(t *testing.T) {
	assert.True(t, WithinLimit(decimal.RequireFromString("999999999999.99999999")))
	assert.False(t, WithinLimit(MaxAmount))
	assert.True(t, WithinLimit(decimal.NewFromInt(-5)), "only the upper bound is checked")
}
