package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/splitledger/internal/models"
)

// CreateBalance inserts the balance row of a bill.
func (t *ledgerTx) CreateBalance(ctx context.Context, b *models.BillBalance) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO bill_balances (bill_id, group_id, total_owed, total_paid, settled, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.BillID, b.GroupID, b.TotalOwed, b.TotalPaid, boolToInt(b.Settled), b.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to insert balance: %w", err)
	}
	return nil
}

// GetBalance retrieves the balance of a bill.
func (t *ledgerTx) GetBalance(ctx context.Context, billID string) (*models.BillBalance, error) {
	b := &models.BillBalance{}
	var settled int
	err := t.tx.QueryRowContext(ctx,
		`SELECT bill_id, group_id, total_owed, total_paid, settled, last_updated
		 FROM bill_balances WHERE bill_id = ?`,
		billID,
	).Scan(&b.BillID, &b.GroupID, &b.TotalOwed, &b.TotalPaid, &settled, &b.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("balance", billID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	b.Settled = settled != 0
	return b, nil
}

// UpdateBalance writes the paid total, settled flag and timestamp of a bill.
func (t *ledgerTx) UpdateBalance(ctx context.Context, b *models.BillBalance) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE bill_balances SET total_paid = ?, settled = ?, last_updated = ? WHERE bill_id = ?",
		b.TotalPaid, boolToInt(b.Settled), b.LastUpdated, b.BillID,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound("balance", b.BillID)
	}
	return nil
}

// CreatePayment inserts an immutable payment record.
func (t *ledgerTx) CreatePayment(ctx context.Context, p *models.Payment) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO payments (id, bill_id, payer, amount, fee_deducted, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.BillID, p.Payer, p.Amount, p.FeeDeducted, string(p.Status), p.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// GetPayment retrieves a payment by ID.
func (t *ledgerTx) GetPayment(ctx context.Context, paymentID int64) (*models.Payment, error) {
	p := &models.Payment{}
	var status string
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, bill_id, payer, amount, fee_deducted, status, created_at
		 FROM payments WHERE id = ?`,
		paymentID,
	).Scan(&p.ID, &p.BillID, &p.Payer, &p.Amount, &p.FeeDeducted, &status, &p.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("payment", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	p.Status = models.PaymentStatus(status)
	return p, nil
}

// PaymentHistory returns the payment IDs of a (bill, payer) pair in order.
func (t *ledgerTx) PaymentHistory(ctx context.Context, billID, payer string) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT payment_id FROM payment_history WHERE bill_id = ? AND payer = ? ORDER BY position",
		billID, payer,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment history: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan payment history: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment history: %w", err)
	}
	return ids, nil
}

// AppendPaymentHistory adds a payment ID to the end of the pair's history.
func (t *ledgerTx) AppendPaymentHistory(ctx context.Context, billID, payer string, paymentID int64) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO payment_history (bill_id, payer, position, payment_id)
		 VALUES (?, ?, (SELECT COUNT(*) FROM payment_history WHERE bill_id = ? AND payer = ?), ?)`,
		billID, payer, billID, payer, paymentID,
	)
	if err != nil {
		return fmt.Errorf("failed to append payment history: %w", err)
	}
	return nil
}

// PayerTotal returns the cumulative net paid by payer toward a bill.
func (t *ledgerTx) PayerTotal(ctx context.Context, billID, payer string) (int64, error) {
	var total int64
	err := t.tx.QueryRowContext(ctx,
		"SELECT net_paid FROM payer_totals WHERE bill_id = ? AND payer = ?",
		billID, payer,
	).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get payer total: %w", err)
	}
	return total, nil
}

// SetPayerTotal stores the cumulative net paid by payer toward a bill.
func (t *ledgerTx) SetPayerTotal(ctx context.Context, billID, payer string, amount int64) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO payer_totals (bill_id, payer, net_paid) VALUES (?, ?, ?)
		 ON CONFLICT(bill_id, payer) DO UPDATE SET net_paid = excluded.net_paid`,
		billID, payer, amount,
	)
	if err != nil {
		return fmt.Errorf("failed to set payer total: %w", err)
	}
	return nil
}

// CreateRefund inserts an immutable refund record.
func (t *ledgerTx) CreateRefund(ctx context.Context, r *models.Refund) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO refunds (id, bill_id, payer, amount, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.BillID, r.Payer, r.Amount, r.Reason, r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert refund: %w", err)
	}
	return nil
}

// ListRefunds returns refunds for a bill, optionally narrowed to one payer.
func (t *ledgerTx) ListRefunds(ctx context.Context, billID, payer string) ([]models.Refund, error) {
	query := "SELECT id, bill_id, payer, amount, reason, created_at FROM refunds WHERE bill_id = ?"
	args := []any{billID}
	if payer != "" {
		query += " AND payer = ?"
		args = append(args, payer)
	}
	query += " ORDER BY id"

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []models.Refund
	for rows.Next() {
		var r models.Refund
		if err := rows.Scan(&r.ID, &r.BillID, &r.Payer, &r.Amount, &r.Reason, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan refund: %w", err)
		}
		refunds = append(refunds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate refunds: %w", err)
	}
	return refunds, nil
}
