package domain

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/minibank/internal/errors"
)

// ParseAmount reads user input such as "12,5" or " 100.456 " and returns the
// value rounded to cents. Zero and negative values are rejected after rounding.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if raw == "" {
		return decimal.Zero, errors.ErrInvalidAmount
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrap(errors.ErrInvalidAmount, err)
	}

	amount = amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, errors.ErrInvalidAmount
	}

	return amount, nil
}

// FormatAmount renders two decimals with thousands separators: 1234.5 -> "1,234.50".
func FormatAmount(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if amount.IsNegative() {
		b.WriteByte('-')
	}

	lead := len(intPart) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(intPart[:lead])
	for i := lead; i < len(intPart); i += 3 {
		b.WriteByte(',')
		b.WriteString(intPart[i : i+3])
	}

	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
