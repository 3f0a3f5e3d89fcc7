package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/splitledger/internal/models"
)

// Settings returns the single ledger settings row.
func (t *ledgerTx) Settings(ctx context.Context) (*models.Settings, error) {
	s := &models.Settings{}
	err := t.tx.QueryRowContext(ctx,
		`SELECT admin, payment_fee_percent, settlement_threshold_percent,
		        max_payments_per_bill, max_shares_per_bill
		 FROM ledger_settings WHERE id = 1`,
	).Scan(&s.Admin, &s.PaymentFeePercent, &s.SettlementThresholdPercent,
		&s.MaxPaymentsPerBill, &s.MaxSharesPerBill)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("ledger settings", "row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return s, nil
}

// PutSettings inserts or replaces the settings row.
func (t *ledgerTx) PutSettings(ctx context.Context, s *models.Settings) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO ledger_settings (id, admin, payment_fee_percent, settlement_threshold_percent,
		                              max_payments_per_bill, max_shares_per_bill)
		 VALUES (1, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     admin = excluded.admin,
		     payment_fee_percent = excluded.payment_fee_percent,
		     settlement_threshold_percent = excluded.settlement_threshold_percent,
		     max_payments_per_bill = excluded.max_payments_per_bill,
		     max_shares_per_bill = excluded.max_shares_per_bill`,
		s.Admin, s.PaymentFeePercent, s.SettlementThresholdPercent,
		s.MaxPaymentsPerBill, s.MaxSharesPerBill,
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// NextID increments and returns the named sequence, starting at 1.
func (t *ledgerTx) NextID(ctx context.Context, sequence string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO sequences (name, value) VALUES (?, 1)
		 ON CONFLICT(name) DO UPDATE SET value = value + 1
		 RETURNING value`,
		sequence,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", sequence, err)
	}
	return id, nil
}
