package market

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rickgao/nft-market/internal/model"
)

// Config holds Listing Registry configuration. Fixed for the registry's lifetime.
type Config struct {
	MinPrice        decimal.Decimal // wei, inclusive
	MaxPrice        decimal.Decimal // wei, inclusive
	FeeNumerator    int64
	FeeDenominator  int64
	FeeRecipient    model.Address
	EventBufferSize int
}

// DefaultConfig returns the marketplace defaults: 1 to 100,000,000 whole units,
// 0.5% fee. The fee recipient has no default.
func DefaultConfig() Config {
	return Config{
		MinPrice:        model.FromWhole(decimal.NewFromInt(1)),
		MaxPrice:        model.FromWhole(decimal.NewFromInt(100_000_000)),
		FeeNumerator:    5,
		FeeDenominator:  1000,
		EventBufferSize: DefaultEventBufferSize,
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if c.FeeRecipient.IsZero() {
		return errors.New("fee recipient is required")
	}
	if c.MinPrice.IsNegative() {
		return fmt.Errorf("min price %s is negative", c.MinPrice)
	}
	if c.MaxPrice.LessThan(c.MinPrice) {
		return fmt.Errorf("max price %s below min price %s", c.MaxPrice, c.MinPrice)
	}
	if c.FeeDenominator <= 0 {
		return fmt.Errorf("fee denominator must be > 0, got %d", c.FeeDenominator)
	}
	if c.FeeNumerator < 0 || c.FeeNumerator > c.FeeDenominator {
		return fmt.Errorf("fee numerator must be in [0, %d], got %d", c.FeeDenominator, c.FeeNumerator)
	}
	return nil
}

// SplitFee divides price into the operator fee and seller proceeds.
// The fee is truncated toward zero; fee + proceeds == price always.
func (c Config) SplitFee(price decimal.Decimal) (fee, proceeds decimal.Decimal) {
	fee, _ = price.
		Mul(decimal.NewFromInt(c.FeeNumerator)).
		QuoRem(decimal.NewFromInt(c.FeeDenominator), 0)
	return fee, price.Sub(fee)
}

// checkPrice applies the listing price bounds.
func (c Config) checkPrice(price decimal.Decimal) error {
	if price.LessThan(c.MinPrice) {
		return fmt.Errorf("%w: %s < %s", ErrPriceTooLow, price, c.MinPrice)
	}
	if price.GreaterThan(c.MaxPrice) {
		return fmt.Errorf("%w: %s > %s", ErrPriceTooHigh, price, c.MaxPrice)
	}
	return model.CheckWei(price)
}
