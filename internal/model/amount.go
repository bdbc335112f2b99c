package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decimals is the number of wei digits per whole currency unit.
const Decimals = 18

// ErrInvalidAmount is returned for malformed, fractional-wei or negative amounts.
var ErrInvalidAmount = errors.New("invalid amount")

// WeiPerUnit is 10^18.
var WeiPerUnit = decimal.New(1, Decimals)

// FromWhole converts a whole-unit amount (e.g. "0.9") to wei.
func FromWhole(units decimal.Decimal) decimal.Decimal {
	return units.Shift(Decimals)
}

// ToWhole converts wei to whole units.
func ToWhole(wei decimal.Decimal) decimal.Decimal {
	return wei.Shift(-Decimals)
}

// ParseWei parses a non-negative integer wei amount.
func ParseWei(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if err := CheckWei(d); err != nil {
		return decimal.Decimal{}, err
	}
	return d, nil
}

// ParseWhole parses a whole-unit amount and converts it to wei.
func ParseWhole(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	wei := FromWhole(d)
	if err := CheckWei(wei); err != nil {
		return decimal.Decimal{}, err
	}
	return wei, nil
}

// CheckWei verifies d is a non-negative whole number of wei.
func CheckWei(d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("%w: negative %s", ErrInvalidAmount, d)
	}
	if !d.IsInteger() {
		return fmt.Errorf("%w: fractional wei %s", ErrInvalidAmount, d)
	}
	return nil
}
