package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mmynk/splitledger/internal/models"
)

// CreateSplit inserts a split with its shares and approvals.
func (t *ledgerTx) CreateSplit(ctx context.Context, split *models.SplitRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO splits (id, bill_id, group_id, split_type, total_shares, created_at, creator, approved)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		split.ID, split.BillID, split.GroupID, string(split.Type), split.TotalShares,
		split.Timestamp, split.Creator, boolToInt(split.Approved),
	)
	if err != nil {
		return fmt.Errorf("failed to insert split: %w", err)
	}

	if err := t.writeShares(ctx, split.ID, split.Shares); err != nil {
		return err
	}
	return t.writeApprovals(ctx, split.ID, split.Approvals)
}

// GetSplit retrieves a split by its ID.
func (t *ledgerTx) GetSplit(ctx context.Context, splitID int64) (*models.SplitRecord, error) {
	return t.loadSplit(ctx, "id = ?", splitID)
}

// GetSplitByBill retrieves the split of a bill.
func (t *ledgerTx) GetSplitByBill(ctx context.Context, billID string) (*models.SplitRecord, error) {
	return t.loadSplit(ctx, "bill_id = ?", billID)
}

func (t *ledgerTx) loadSplit(ctx context.Context, where string, arg any) (*models.SplitRecord, error) {
	split := &models.SplitRecord{}
	var splitType string
	var approved int
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, bill_id, group_id, split_type, total_shares, created_at, creator, approved
		 FROM splits WHERE `+where,
		arg,
	).Scan(&split.ID, &split.BillID, &split.GroupID, &splitType, &split.TotalShares,
		&split.Timestamp, &split.Creator, &approved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("split", arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get split: %w", err)
	}
	split.Type = models.SplitType(splitType)
	split.Approved = approved != 0

	if split.Shares, err = t.readShares(ctx, split.ID); err != nil {
		return nil, err
	}
	if split.Approvals, err = t.readApprovals(ctx, split.ID); err != nil {
		return nil, err
	}

	return split, nil
}

func (t *ledgerTx) readShares(ctx context.Context, splitID int64) ([]models.Share, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT member, share FROM split_shares WHERE split_id = ? ORDER BY position",
		splitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get shares: %w", err)
	}
	defer rows.Close()

	var shares []models.Share
	for rows.Next() {
		var sh models.Share
		if err := rows.Scan(&sh.Member, &sh.Share); err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		shares = append(shares, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shares: %w", err)
	}
	return shares, nil
}

func (t *ledgerTx) readApprovals(ctx context.Context, splitID int64) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT account FROM split_approvals WHERE split_id = ? ORDER BY position",
		splitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get approvals: %w", err)
	}
	defer rows.Close()

	var approvals []string
	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate approvals: %w", err)
	}
	return approvals, nil
}

// UpdateSplit rewrites the mutable parts of a split.
func (t *ledgerTx) UpdateSplit(ctx context.Context, split *models.SplitRecord) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE splits SET approved = ? WHERE id = ?",
		boolToInt(split.Approved), split.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update split: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound("split", split.ID)
	}

	if _, err := t.tx.ExecContext(ctx, "DELETE FROM split_shares WHERE split_id = ?", split.ID); err != nil {
		return fmt.Errorf("failed to clear shares: %w", err)
	}
	if err := t.writeShares(ctx, split.ID, split.Shares); err != nil {
		return err
	}

	if _, err := t.tx.ExecContext(ctx, "DELETE FROM split_approvals WHERE split_id = ?", split.ID); err != nil {
		return fmt.Errorf("failed to clear approvals: %w", err)
	}
	return t.writeApprovals(ctx, split.ID, split.Approvals)
}

func (t *ledgerTx) writeShares(ctx context.Context, splitID int64, shares []models.Share) error {
	for i, sh := range shares {
		_, err := t.tx.ExecContext(ctx,
			"INSERT INTO split_shares (split_id, position, member, share) VALUES (?, ?, ?, ?)",
			splitID, i, sh.Member, sh.Share,
		)
		if err != nil {
			return fmt.Errorf("failed to insert share: %w", err)
		}
	}
	return nil
}

func (t *ledgerTx) writeApprovals(ctx context.Context, splitID int64, approvals []string) error {
	for i, account := range approvals {
		_, err := t.tx.ExecContext(ctx,
			"INSERT INTO split_approvals (split_id, position, account) VALUES (?, ?, ?)",
			splitID, i, account,
		)
		if err != nil {
			return fmt.Errorf("failed to insert approval: %w", err)
		}
	}
	return nil
}

// AppendSplitHistory records a share edit.
func (t *ledgerTx) AppendSplitHistory(ctx context.Context, entry *models.SplitHistoryEntry) error {
	oldShares, err := json.Marshal(entry.OldShares)
	if err != nil {
		return fmt.Errorf("failed to encode old shares: %w", err)
	}
	newShares, err := json.Marshal(entry.NewShares)
	if err != nil {
		return fmt.Errorf("failed to encode new shares: %w", err)
	}

	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO split_history (id, split_id, bill_id, old_shares, new_shares, updater, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.SplitID, entry.BillID, string(oldShares), string(newShares),
		entry.Updater, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert split history: %w", err)
	}
	return nil
}

// ListSplitHistory returns the edits of a bill's split, oldest first.
func (t *ledgerTx) ListSplitHistory(ctx context.Context, billID string) ([]models.SplitHistoryEntry, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, split_id, bill_id, old_shares, new_shares, updater, created_at
		 FROM split_history WHERE bill_id = ? ORDER BY id`,
		billID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list split history: %w", err)
	}
	defer rows.Close()

	var entries []models.SplitHistoryEntry
	for rows.Next() {
		var e models.SplitHistoryEntry
		var oldShares, newShares string
		if err := rows.Scan(&e.ID, &e.SplitID, &e.BillID, &oldShares, &newShares, &e.Updater, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan split history: %w", err)
		}
		if err := json.Unmarshal([]byte(oldShares), &e.OldShares); err != nil {
			return nil, fmt.Errorf("failed to decode old shares: %w", err)
		}
		if err := json.Unmarshal([]byte(newShares), &e.NewShares); err != nil {
			return nil, fmt.Errorf("failed to decode new shares: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate split history: %w", err)
	}
	return entries, nil
}
