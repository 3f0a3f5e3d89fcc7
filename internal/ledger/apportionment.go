package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// CreateEvenSplit gives every member of the bill's group floor(10000/n)
// basis points. The caller must belong to the group.
func (l *Ledger) CreateEvenSplit(ctx context.Context, billID, caller string) (int64, error) {
	return l.createSplit(ctx, "create_even_split", billID, caller, models.SplitEven, nil)
}

// CreateCustomSplit records an explicit share per group member.
func (l *Ledger) CreateCustomSplit(ctx context.Context, billID string, shares []models.Share, caller string) (int64, error) {
	return l.createSplit(ctx, "create_custom_split", billID, caller, models.SplitCustom, shares)
}

func (l *Ledger) createSplit(ctx context.Context, op, billID, caller string, typ models.SplitType, custom []models.Share) (int64, error) {
	var splitID int64
	err := l.run(ctx, op, func(tx storage.Tx, out *outcome) error {
		_, group, err := l.billGroup(ctx, billID)
		if err != nil {
			return err
		}
		if !group.HasMember(caller) {
			return fmt.Errorf("%w: %s", ErrNotMember, caller)
		}

		s, err := settings(ctx, tx)
		if err != nil {
			return err
		}

		var shares []models.Share
		switch typ {
		case models.SplitEven:
			if s.MaxSharesPerBill > 0 && len(group.Members) > s.MaxSharesPerBill {
				return fmt.Errorf("%w: %d members, limit %d", ErrTooManyShares, len(group.Members), s.MaxSharesPerBill)
			}
			if shares, err = calculator.EvenShares(group.Members); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidShares, err)
			}
		default:
			if err := validateShares(custom, group.Members, s.MaxSharesPerBill); err != nil {
				return err
			}
			shares = append([]models.Share(nil), custom...)
		}

		if _, err := tx.GetSplitByBill(ctx, billID); err == nil {
			return fmt.Errorf("%w: %s", ErrSplitExists, billID)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to check existing split: %w", err)
		}

		id, err := tx.NextID(ctx, storage.SeqSplit)
		if err != nil {
			return fmt.Errorf("failed to allocate split id: %w", err)
		}

		split := &models.SplitRecord{
			ID:          id,
			BillID:      billID,
			GroupID:     group.ID,
			Type:        typ,
			Shares:      shares,
			TotalShares: models.TotalShares,
			Timestamp:   out.now,
			Creator:     caller,
		}
		if err := tx.CreateSplit(ctx, split); err != nil {
			return fmt.Errorf("failed to create split: %w", err)
		}

		out.emit(events.Event{Type: events.SplitCreated, BillID: billID, SplitID: id, Account: caller})
		splitID = id
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Info("Split created", "split_id", splitID, "bill_id", billID, "type", typ, "creator", caller)
	return splitID, nil
}

// validateShares maps calculator errors onto ledger kinds.
func validateShares(shares []models.Share, members []string, maxShares int) error {
	err := calculator.ValidateShares(shares, members, maxShares)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, calculator.ErrTooManyShares):
		return fmt.Errorf("%w: %w", ErrTooManyShares, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidShares, err)
	}
}

// Approve records the caller's vote on a split and reports whether the
// split is approved. A split becomes approved once ceil(0.7n) distinct
// members of its group have voted and stays approved.
func (l *Ledger) Approve(ctx context.Context, splitID int64, caller string) (bool, error) {
	var approved, crossed bool
	err := l.run(ctx, "approve", func(tx storage.Tx, out *outcome) error {
		split, err := tx.GetSplit(ctx, splitID)
		if err != nil {
			return mapNotFound(err, ErrSplitNotFound, splitID)
		}

		group, err := l.group(ctx, split.GroupID)
		if err != nil {
			return err
		}
		if !group.HasMember(caller) {
			return fmt.Errorf("%w: %s", ErrNotMember, caller)
		}
		if split.HasApproved(caller) {
			return fmt.Errorf("%w: %s on split %d", ErrDuplicateVote, caller, splitID)
		}

		split.Approvals = append(split.Approvals, caller)
		if !split.Approved && len(split.Approvals) >= calculator.ApprovalThreshold(len(group.Members)) {
			split.Approved = true
			crossed = true
		}
		if err := tx.UpdateSplit(ctx, split); err != nil {
			return fmt.Errorf("failed to record approval: %w", err)
		}

		if crossed {
			out.emit(events.Event{Type: events.SplitApproved, BillID: split.BillID, SplitID: splitID, Account: caller})
		}
		approved = split.Approved
		return nil
	})
	if err != nil {
		return false, err
	}

	if crossed {
		slog.Info("Split approved", "split_id", splitID, "last_vote", caller)
	}
	return approved, nil
}

// UpdateShares replaces the shares of a split. Only the split's creator
// may do so; every change is appended to the bill's split history.
func (l *Ledger) UpdateShares(ctx context.Context, splitID int64, shares []models.Share, caller string) error {
	var billID string
	err := l.run(ctx, "update_shares", func(tx storage.Tx, out *outcome) error {
		split, err := tx.GetSplit(ctx, splitID)
		if err != nil {
			return mapNotFound(err, ErrSplitNotFound, splitID)
		}
		if caller == "" || caller != split.Creator {
			return fmt.Errorf("%w: %s", ErrNotCreator, caller)
		}

		group, err := l.group(ctx, split.GroupID)
		if err != nil {
			return err
		}
		s, err := settings(ctx, tx)
		if err != nil {
			return err
		}
		if err := validateShares(shares, group.Members, s.MaxSharesPerBill); err != nil {
			return err
		}

		old := split.Shares
		split.Shares = append([]models.Share(nil), shares...)
		if l.resetApprovalsOnEdit && !split.Approved {
			split.Approvals = nil
		}
		if err := tx.UpdateSplit(ctx, split); err != nil {
			return fmt.Errorf("failed to update split: %w", err)
		}

		id, err := tx.NextID(ctx, storage.SeqHistory)
		if err != nil {
			return fmt.Errorf("failed to allocate history id: %w", err)
		}
		entry := &models.SplitHistoryEntry{
			ID:        id,
			SplitID:   splitID,
			BillID:    split.BillID,
			OldShares: old,
			NewShares: split.Shares,
			Updater:   caller,
			Timestamp: out.now,
		}
		if err := tx.AppendSplitHistory(ctx, entry); err != nil {
			return fmt.Errorf("failed to append split history: %w", err)
		}

		out.emit(events.Event{Type: events.SplitUpdated, BillID: split.BillID, SplitID: splitID, Account: caller})
		billID = split.BillID
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("Split updated", "split_id", splitID, "bill_id", billID, "updater", caller)
	return nil
}

// CalculateOwe returns floor(total * share / 10000) for member on billID.
func (l *Ledger) CalculateOwe(ctx context.Context, billID, member string) (int64, error) {
	var owed int64
	err := l.run(ctx, "calculate_owe", func(tx storage.Tx, _ *outcome) error {
		var err error
		owed, err = l.owe(ctx, tx, billID, member)
		return err
	})
	return owed, err
}

func (l *Ledger) owe(ctx context.Context, tx storage.Tx, billID, member string) (int64, error) {
	bill, err := l.bill(ctx, billID)
	if err != nil {
		return 0, err
	}
	split, err := tx.GetSplitByBill(ctx, billID)
	if err != nil {
		return 0, mapNotFound(err, ErrNoSplit, billID)
	}
	share := split.ShareOf(member)
	if share == 0 {
		return 0, fmt.Errorf("%w: %s on bill %s", ErrNoShare, member, billID)
	}
	return calculator.Owed(bill.TotalAmount, share, split.TotalShares), nil
}

// Split returns the split recorded for billID.
func (l *Ledger) Split(ctx context.Context, billID string) (*models.SplitRecord, error) {
	var split *models.SplitRecord
	err := l.run(ctx, "get_split", func(tx storage.Tx, _ *outcome) error {
		var err error
		split, err = tx.GetSplitByBill(ctx, billID)
		return mapNotFound(err, ErrNoSplit, billID)
	})
	return split, err
}

// SplitHistory returns every share update made to the bill's split, oldest first.
func (l *Ledger) SplitHistory(ctx context.Context, billID string) ([]models.SplitHistoryEntry, error) {
	var entries []models.SplitHistoryEntry
	err := l.run(ctx, "get_split_history", func(tx storage.Tx, _ *outcome) error {
		var err error
		entries, err = tx.ListSplitHistory(ctx, billID)
		return err
	})
	return entries, err
}
