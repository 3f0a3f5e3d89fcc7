// Package vault is the token account service. It moves minor units between
// named accounts and refuses transfers that would overdraw the sender.
// Balances live behind an Accounts backend: in memory for tests, or in a
// SQLite database for the daemon.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrInsufficientFunds is returned when the sender cannot cover a transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInvalidAccount is returned for an empty account name.
	ErrInvalidAccount = errors.New("account must not be empty")
	// ErrBalanceOverflow is returned when a credit would exceed the int64 range.
	ErrBalanceOverflow = errors.New("balance would overflow")
)

// Accounts stores balances. Implementations apply each call atomically.
type Accounts interface {
	// Credit adds amount to account unless a deposit with ref was already
	// applied. It reports whether the deposit was applied.
	Credit(ctx context.Context, ref, account string, amount int64) (bool, error)
	// Move debits from and credits to, failing with ErrInsufficientFunds
	// when from cannot cover amount.
	Move(ctx context.Context, amount int64, from, to string) error
	Balance(ctx context.Context, account string) (int64, error)
	Total(ctx context.Context) (int64, error)
}

// Vault validates token movements and applies them to its Accounts.
type Vault struct {
	accounts Accounts
}

// New creates an empty vault held in memory.
func New() *Vault {
	return NewWith(newMemory())
}

// NewWith creates a vault over accounts.
func NewWith(accounts Accounts) *Vault {
	return &Vault{accounts: accounts}
}

// Deposit credits an account from outside the vault.
func (v *Vault) Deposit(account string, amount int64) error {
	_, err := v.DepositOnce(context.Background(), uuid.NewString(), account, amount)
	return err
}

// DepositOnce credits an account the first time ref is seen. Later calls
// with the same ref leave balances untouched and report false.
func (v *Vault) DepositOnce(ctx context.Context, ref, account string, amount int64) (bool, error) {
	if account == "" || ref == "" {
		return false, ErrInvalidAccount
	}
	if amount <= 0 {
		return false, ErrInvalidAmount
	}

	applied, err := v.accounts.Credit(ctx, ref, account, amount)
	if err != nil {
		return false, fmt.Errorf("deposit %d to %s: %w", amount, account, err)
	}
	if applied {
		slog.Debug("Deposit", "account", account, "amount", amount, "ref", ref)
	}
	return applied, nil
}

// Transfer moves amount from one account to another.
func (v *Vault) Transfer(ctx context.Context, amount int64, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if from == "" || to == "" {
		return ErrInvalidAccount
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if err := v.accounts.Move(ctx, amount, from, to); err != nil {
		return fmt.Errorf("transfer %d from %s: %w", amount, from, err)
	}
	return nil
}

// Balance returns the current balance of an account. Unknown accounts hold zero.
func (v *Vault) Balance(ctx context.Context, account string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return v.accounts.Balance(ctx, account)
}

// Total returns the sum of all balances.
func (v *Vault) Total(ctx context.Context) (int64, error) {
	return v.accounts.Total(ctx)
}

// CanCredit reports whether adding amount to balance stays in range.
func CanCredit(balance, amount int64) bool {
	return balance <= math.MaxInt64-amount
}

// memory keeps balances in a map.
type memory struct {
	mu       sync.Mutex
	balances map[string]int64
	refs     map[string]bool
}

func newMemory() *memory {
	return &memory{balances: make(map[string]int64), refs: make(map[string]bool)}
}

func (m *memory) Credit(_ context.Context, ref, account string, amount int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refs[ref] {
		return false, nil
	}
	if !CanCredit(m.balances[account], amount) {
		return false, ErrBalanceOverflow
	}
	m.refs[ref] = true
	m.balances[account] += amount
	return true, nil
}

func (m *memory) Move(_ context.Context, amount int64, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[from] < amount {
		return ErrInsufficientFunds
	}
	if from != to && !CanCredit(m.balances[to], amount) {
		return ErrBalanceOverflow
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}

func (m *memory) Balance(_ context.Context, account string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account], nil
}

func (m *memory) Total(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, b := range m.balances {
		total += b
	}
	return total, nil
}
