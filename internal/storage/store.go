// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitledger/internal/models"
)

// ErrNotFound is returned (possibly wrapped) when a record does not exist.
var ErrNotFound = errors.New("not found")

// Sequence names used with Tx.NextID.
const (
	SeqSplit   = "split"
	SeqPayment = "payment"
	SeqRefund  = "refund"
	SeqHistory = "split_history"
)

// Store defines the ledger's persistent state.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the ledger.
type Store interface {
	// WithinTx runs fn inside a single transaction. The transaction commits
	// only if fn returns nil; any error rolls back every write made by fn.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any resources held by the store.
	Close() error
}

// Tx is the set of ledger reads and writes available inside a transaction.
// Lookups of absent records return an error wrapping ErrNotFound.
type Tx interface {
	// Settings returns the process-wide ledger settings.
	Settings(ctx context.Context) (*models.Settings, error)
	PutSettings(ctx context.Context, s *models.Settings) error

	// NextID returns the next value of a strictly increasing named sequence.
	NextID(ctx context.Context, sequence string) (int64, error)

	CreateSplit(ctx context.Context, split *models.SplitRecord) error
	GetSplit(ctx context.Context, splitID int64) (*models.SplitRecord, error)
	GetSplitByBill(ctx context.Context, billID string) (*models.SplitRecord, error)
	// UpdateSplit replaces the shares, approval flag and approvals of a split.
	UpdateSplit(ctx context.Context, split *models.SplitRecord) error
	AppendSplitHistory(ctx context.Context, entry *models.SplitHistoryEntry) error
	ListSplitHistory(ctx context.Context, billID string) ([]models.SplitHistoryEntry, error)

	CreateBalance(ctx context.Context, balance *models.BillBalance) error
	GetBalance(ctx context.Context, billID string) (*models.BillBalance, error)
	UpdateBalance(ctx context.Context, balance *models.BillBalance) error

	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, paymentID int64) (*models.Payment, error)
	// PaymentHistory returns payment IDs for the pair in the order they were made.
	PaymentHistory(ctx context.Context, billID, payer string) ([]int64, error)
	AppendPaymentHistory(ctx context.Context, billID, payer string, paymentID int64) error

	// PayerTotal returns the cumulative net amount paid by payer toward billID,
	// after refunds. Zero when the payer has not paid.
	PayerTotal(ctx context.Context, billID, payer string) (int64, error)
	SetPayerTotal(ctx context.Context, billID, payer string, amount int64) error

	CreateRefund(ctx context.Context, refund *models.Refund) error
	ListRefunds(ctx context.Context, billID, payer string) ([]models.Refund, error)
}

// Catalog defines bill and group storage used by the catalog service.
type Catalog interface {
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	ListGroups(ctx context.Context) ([]*models.Group, error)
	AddGroupMembers(ctx context.Context, groupID string, members []string) error

	CreateBill(ctx context.Context, bill *models.Bill) error
	GetBill(ctx context.Context, billID string) (*models.Bill, error)
	ListBillsByGroup(ctx context.Context, groupID string) ([]*models.Bill, error)
}
