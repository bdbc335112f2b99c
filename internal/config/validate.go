package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rickgao/nft-market/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *MarketdConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if err := c.Market.validate(); err != nil {
		return err
	}

	if c.Auth.Enabled {
		if len(c.Auth.Callers) == 0 {
			return errors.New("auth.callers must not be empty when auth is enabled")
		}
		for i, caller := range c.Auth.Callers {
			if _, err := model.ParseAddress(caller.Address); err != nil {
				return fmt.Errorf("auth.callers[%d].address: %w", i, err)
			}
			if caller.PublicKeyPath == "" {
				return fmt.Errorf("auth.callers[%d].public_key_path is required", i)
			}
		}
	}

	if c.Database.Enabled {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers must not be empty when kafka is enabled")
	}

	if c.Journal.BatchSize < 1 {
		return errors.New("journal.batch_size must be >= 1")
	}
	if c.Journal.BufferSize < 1 {
		return errors.New("journal.buffer_size must be >= 1")
	}

	if c.Feed.ClientBuffer < 1 {
		return errors.New("feed.client_buffer must be >= 1")
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (m *MarketConfig) validate() error {
	if m.Address == "" {
		return errors.New("market.address is required")
	}
	addr, err := model.ParseAddress(m.Address)
	if err != nil {
		return fmt.Errorf("market.address: %w", err)
	}
	if m.FeeRecipient == "" {
		return errors.New("market.fee_recipient is required")
	}
	recipient, err := model.ParseAddress(m.FeeRecipient)
	if err != nil {
		return fmt.Errorf("market.fee_recipient: %w", err)
	}
	if recipient.IsZero() || addr.IsZero() {
		return errors.New("market.address and market.fee_recipient must not be the zero address")
	}

	minPrice, maxPrice, err := m.Prices()
	if err != nil {
		return err
	}
	if maxPrice.LessThan(minPrice) {
		return fmt.Errorf("market.max_price (%s) cannot be below min_price (%s)", m.MaxPrice, m.MinPrice)
	}

	if m.FeeDenominator < 1 {
		return errors.New("market.fee_denominator must be >= 1")
	}
	if m.FeeNumerator < 0 || m.FeeNumerator > m.FeeDenominator {
		return fmt.Errorf("market.fee_numerator must be between 0 and %d, got %d", m.FeeDenominator, m.FeeNumerator)
	}
	if m.EventBufferSize < 1 {
		return errors.New("market.event_buffer_size must be >= 1")
	}
	return nil
}

// Prices returns the price bounds converted to wei.
func (m *MarketConfig) Prices() (minPrice, maxPrice decimal.Decimal, err error) {
	minPrice, err = model.ParseWhole(m.MinPrice)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("market.min_price: %w", err)
	}
	maxPrice, err = model.ParseWhole(m.MaxPrice)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("market.max_price: %w", err)
	}
	return minPrice, maxPrice, nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

// ParseLevel maps a log.level string to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level %q is not one of debug, info, warn, error", level)
	}
}
