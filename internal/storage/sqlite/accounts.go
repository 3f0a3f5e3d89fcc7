package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mmynk/splitledger/internal/vault"
)

var _ vault.Accounts = (*AccountStore)(nil)

// AccountStore keeps token balances in their own SQLite database, so vault
// writes never wait on a ledger transaction holding the ledger's write lock.
type AccountStore struct {
	db *sql.DB
}

// OpenAccounts opens the account database at dbPath, creating parent
// directories and running migrations.
func OpenAccounts(dbPath string) (*AccountStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	if err := RunAccountMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("failed to run account migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &AccountStore{db: db}, nil
}

// Close closes the database connection.
func (s *AccountStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *AccountStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *AccountStore) within(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func balanceOf(ctx context.Context, tx *sql.Tx, account string) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE account = ?`, account).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance of %s: %w", account, err)
	}
	return balance, nil
}

func setBalance(ctx context.Context, tx *sql.Tx, account string, balance int64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (account, balance) VALUES (?, ?)
		 ON CONFLICT(account) DO UPDATE SET balance = excluded.balance`,
		account, balance,
	)
	if err != nil {
		return fmt.Errorf("failed to set balance of %s: %w", account, err)
	}
	return nil
}

// Credit records the deposit under ref and credits the account, unless ref
// was already recorded.
func (s *AccountStore) Credit(ctx context.Context, ref, account string, amount int64) (bool, error) {
	applied := false
	err := s.within(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO deposits (ref, account, amount, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(ref) DO NOTHING`,
			ref, account, amount, time.Now().Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to record deposit: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return err
		}

		balance, err := balanceOf(ctx, tx, account)
		if err != nil {
			return err
		}
		if !vault.CanCredit(balance, amount) {
			return vault.ErrBalanceOverflow
		}
		if err := setBalance(ctx, tx, account, balance+amount); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// Move debits from and credits to in one transaction.
func (s *AccountStore) Move(ctx context.Context, amount int64, from, to string) error {
	return s.within(ctx, func(tx *sql.Tx) error {
		fromBalance, err := balanceOf(ctx, tx, from)
		if err != nil {
			return err
		}
		if fromBalance < amount {
			return vault.ErrInsufficientFunds
		}
		if from == to {
			return nil
		}

		toBalance, err := balanceOf(ctx, tx, to)
		if err != nil {
			return err
		}
		if !vault.CanCredit(toBalance, amount) {
			return vault.ErrBalanceOverflow
		}
		if err := setBalance(ctx, tx, from, fromBalance-amount); err != nil {
			return err
		}
		return setBalance(ctx, tx, to, toBalance+amount)
	})
}

// Balance returns the balance of account, zero when it has never held tokens.
func (s *AccountStore) Balance(ctx context.Context, account string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE account = ?`, account).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance of %s: %w", account, err)
	}
	return balance, nil
}

// Total returns the sum of all balances.
func (s *AccountStore) Total(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(balance), 0) FROM accounts`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum balances: %w", err)
	}
	return total, nil
}
