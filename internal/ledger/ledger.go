// Package ledger provides an in-memory native-currency payment rail.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rickgao/nft-market/internal/model"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidParty      = errors.New("invalid party")
)

// Ledger holds wei balances per address.
type Ledger struct {
	logger *slog.Logger

	mu       sync.RWMutex
	balances map[model.Address]decimal.Decimal
}

// Balance pairs an address with its balance.
type Balance struct {
	Address model.Address   `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

// New creates an empty ledger.
func New(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		logger:   logger,
		balances: make(map[model.Address]decimal.Decimal),
	}
}

// Deposit funds an account from outside the marketplace.
func (l *Ledger) Deposit(ctx context.Context, to model.Address, amount decimal.Decimal) error {
	return l.Credit(ctx, to, amount)
}

// BalanceOf returns the spendable balance of addr.
func (l *Ledger) BalanceOf(addr model.Address) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if b, ok := l.balances[addr]; ok {
		return b
	}
	return decimal.Zero
}

// Balances returns all non-zero balances ordered by address.
func (l *Ledger) Balances() []Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]Balance, 0, len(l.balances))
	for addr, amt := range l.balances {
		if amt.IsZero() {
			continue
		}
		result = append(result, Balance{Address: addr, Amount: amt})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Address < result[j].Address })
	return result
}

// Collect takes an attached payment from the buyer's balance.
func (l *Ledger) Collect(ctx context.Context, from model.Address, amount decimal.Decimal) error {
	if err := l.debit(from, amount); err != nil {
		return fmt.Errorf("collect from %s: %w", from, err)
	}
	l.logger.Debug("payment collected", "from", from, "amount", amount)
	return nil
}

// Credit increases to's balance by amount.
func (l *Ledger) Credit(ctx context.Context, to model.Address, amount decimal.Decimal) error {
	if to.IsZero() {
		return ErrInvalidParty
	}
	if err := model.CheckWei(amount); err != nil {
		return err
	}

	l.mu.Lock()
	l.balances[to] = l.balanceLocked(to).Add(amount)
	l.mu.Unlock()

	l.logger.Debug("account credited", "to", to, "amount", amount)
	return nil
}

// Debit reverses a credit.
func (l *Ledger) Debit(ctx context.Context, from model.Address, amount decimal.Decimal) error {
	if err := l.debit(from, amount); err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	return nil
}

func (l *Ledger) debit(from model.Address, amount decimal.Decimal) error {
	if from.IsZero() {
		return ErrInvalidParty
	}
	if err := model.CheckWei(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balanceLocked(from)
	if bal.LessThan(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, bal, amount)
	}
	l.balances[from] = bal.Sub(amount)
	return nil
}

func (l *Ledger) balanceLocked(addr model.Address) decimal.Decimal {
	if b, ok := l.balances[addr]; ok {
		return b
	}
	return decimal.Zero
}
