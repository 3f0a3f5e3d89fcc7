package ledger

import (
	"context"
	"time"

	"github.com/mmynk/splitledger/internal/models"
)

// BillCatalog resolves bills. A missing bill is reported with an error
// wrapping storage.ErrNotFound.
type BillCatalog interface {
	GetBill(ctx context.Context, billID string) (*models.Bill, error)
}

// GroupDirectory resolves groups and their members. A missing group is
// reported with an error wrapping storage.ErrNotFound.
type GroupDirectory interface {
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
}

// TokenTransferService moves tokens between accounts.
type TokenTransferService interface {
	Transfer(ctx context.Context, amount int64, from, to string) error
	Balance(ctx context.Context, account string) (int64, error)
}

// Clock supplies the logical time stamped on records.
type Clock interface {
	Now() int64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() int64

func (f ClockFunc) Now() int64 { return f() }

// UnixClock reports wall-clock seconds.
var UnixClock Clock = ClockFunc(func() int64 { return time.Now().Unix() })
