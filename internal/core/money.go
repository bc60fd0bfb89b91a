// Package core holds the loan domain model.
//
// This file contains helpers for parsing user-entered amounts and rates and
// for rounding computed figures before they leave the process.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the number of decimal places kept in rounded amounts.
const AmountPlaces = 2

// ParseAmount converts a user-entered amount into a float64.
//
// It accepts an optional leading currency sign (¥ or ￥), comma or underscore
// digit grouping and a dot decimal separator, and rounds half-up to
// AmountPlaces. Negative and malformed values are rejected; zero is allowed.
//
// Examples:
//
//	ParseAmount("3,000,000") -> 3000000, nil
//	ParseAmount("¥12,345.678") -> 12345.68, nil
//	ParseAmount("-1") -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "¥")
	s = strings.TrimPrefix(s, "￥")
	s = strings.NewReplacer(",", "", "_", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	// decimal accepts exponents; amounts typed by people never use them
	if strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return d.Round(AmountPlaces).InexactFloat64(), nil
}

// ParseRate converts an annual percentage such as "2.5" or "14.5%" into a
// float64. Only the syntax is checked here; Loan.Validate enforces rate > 0.
func ParseRate(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		return 0, ErrInvalidRate
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidRate
	}
	return d.InexactFloat64(), nil
}

// RoundAmount rounds a computed amount half away from zero to AmountPlaces
// for display or export. Non-finite values round to zero.
func RoundAmount(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(AmountPlaces)
}
