package validation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// MaxAmountScale is the number of fractional digits the ledger stores.
	MaxAmountScale = 8
	// MaxReferenceLength matches the external_reference column size.
	MaxReferenceLength = 191
	// ReferCodeLength is the length of generated referral codes.
	ReferCodeLength = 8
)

// MaxAmount is the exclusive upper bound of any stored amount or balance.
// Ledger columns are numeric(20,8), which leaves twelve integer digits.
var MaxAmount = decimal.New(1, 12)

// WithinLimit reports whether a stored value fits the ledger columns.
func WithinLimit(value decimal.Decimal) bool {
	return value.LessThan(MaxAmount)
}

// ValidateAmount checks that a ledger amount is positive and fits the stored scale.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be greater than zero, got %s", amount.String())
	}
	if !WithinLimit(amount) {
		return fmt.Errorf("amount must be less than %s, got %s", MaxAmount.String(), amount.String())
	}
	if -amount.Exponent() > MaxAmountScale && !amount.Equal(amount.Truncate(MaxAmountScale)) {
		return fmt.Errorf("amount has more than %d decimal places", MaxAmountScale)
	}
	return nil
}

// ParseAmount parses a decimal string and validates it.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// NormalizeReference trims surrounding whitespace from an external payment reference.
func NormalizeReference(ref string) string {
	return strings.TrimSpace(ref)
}

// ValidateReference checks a normalized external reference.
func ValidateReference(ref string) error {
	if ref == "" {
		return fmt.Errorf("reference cannot be empty")
	}
	if len(ref) > MaxReferenceLength {
		return fmt.Errorf("reference is longer than %d characters", MaxReferenceLength)
	}
	return nil
}

// NormalizeReferCode converts a referral code to its canonical upper-case form.
func NormalizeReferCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateReferCode checks a normalized referral code.
func ValidateReferCode(code string) error {
	if len(code) != ReferCodeLength {
		return fmt.Errorf("invalid referral code length: expected %d characters, got %d", ReferCodeLength, len(code))
	}
	for _, r := range code {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return fmt.Errorf("invalid referral code character %q", r)
		}
	}
	return nil
}
