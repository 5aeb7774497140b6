// Package core provides money parsing and handling utilities.
//
// Amounts are decimal values rounded half-up to two places. Rule amounts
// are positive magnitudes; one-off amounts carry their own sign.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the number of fractional digits kept for every amount.
const AmountPlaces = 2

// ParseAmount converts a decimal string to a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// performs half-up rounding on the third decimal place. Signs, zero and
// malformed input return ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = RoundAmount(d)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseSignedAmount is ParseAmount for one-off items, where a leading minus
// marks a payment.
func ParseSignedAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		d, err := ParseAmount(rest)
		if err != nil {
			return decimal.Zero, err
		}
		return d.Neg(), nil
	}
	return ParseAmount(strings.TrimPrefix(s, "+"))
}

// RoundAmount rounds half away from zero to AmountPlaces.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPlaces)
}

// FormatAmount renders an amount with a currency code, e.g. "-1200.00 EUR".
func FormatAmount(d decimal.Decimal, currency string) string {
	s := d.StringFixed(AmountPlaces)
	if currency == "" {
		return s
	}
	return s + " " + currency
}
