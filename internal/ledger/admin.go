package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// DefaultSettings are the recommended settings. Bootstrap applies the limits
// for any limit left at zero.
var DefaultSettings = models.Settings{
	PaymentFeePercent:          1,
	SettlementThresholdPercent: 100,
	MaxPaymentsPerBill:         100,
	MaxSharesPerBill:           50,
}

// Bootstrap stores the initial ledger settings. It is idempotent: once
// settings exist they are returned unchanged and want is ignored.
// Zero limits in want take their DefaultSettings value, since the setters
// never accept a zero limit. Percentages are kept as given: a zero fee or a
// zero settlement threshold is valid here exactly as it is for
// SetPaymentFee and SetSettlementThreshold.
func (l *Ledger) Bootstrap(ctx context.Context, want models.Settings) (*models.Settings, error) {
	if want.Admin == "" {
		return nil, fmt.Errorf("%w: admin", ErrInvalidAccount)
	}
	if want.MaxPaymentsPerBill == 0 {
		want.MaxPaymentsPerBill = DefaultSettings.MaxPaymentsPerBill
	}
	if want.MaxSharesPerBill == 0 {
		want.MaxSharesPerBill = DefaultSettings.MaxSharesPerBill
	}
	if err := validPercent(want.PaymentFeePercent); err != nil {
		return nil, err
	}
	if err := validPercent(want.SettlementThresholdPercent); err != nil {
		return nil, err
	}
	if want.MaxPaymentsPerBill < 0 || want.MaxSharesPerBill < 0 {
		return nil, ErrInvalidLimit
	}

	var result *models.Settings
	created := false
	err := l.run(ctx, "bootstrap", func(tx storage.Tx, _ *outcome) error {
		existing, err := tx.Settings(ctx)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		if err := tx.PutSettings(ctx, &want); err != nil {
			return fmt.Errorf("failed to store settings: %w", err)
		}
		result = &want
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		slog.Info("Ledger bootstrapped", "admin", result.Admin, "fee_percent", result.PaymentFeePercent)
	}
	return result, nil
}

// Settings returns the current ledger settings.
func (l *Ledger) Settings(ctx context.Context) (*models.Settings, error) {
	var s *models.Settings
	err := l.run(ctx, "get_settings", func(tx storage.Tx, _ *outcome) error {
		var err error
		s, err = settings(ctx, tx)
		return err
	})
	return s, err
}

// updateSettings applies change to the settings after checking the caller
// is the administrator.
func (l *Ledger) updateSettings(ctx context.Context, op, caller string, change func(s *models.Settings) error) error {
	err := l.run(ctx, op, func(tx storage.Tx, _ *outcome) error {
		s, err := settings(ctx, tx)
		if err != nil {
			return err
		}
		if err := requireAdmin(s, caller); err != nil {
			return err
		}
		if err := change(s); err != nil {
			return err
		}
		if err := tx.PutSettings(ctx, s); err != nil {
			return fmt.Errorf("failed to store settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("Ledger settings changed", "operation", op, "admin", caller)
	return nil
}

// SetAdmin hands administration to another account.
func (l *Ledger) SetAdmin(ctx context.Context, newAdmin, caller string) error {
	return l.updateSettings(ctx, "set_admin", caller, func(s *models.Settings) error {
		if newAdmin == "" {
			return fmt.Errorf("%w: admin", ErrInvalidAccount)
		}
		s.Admin = newAdmin
		return nil
	})
}

// SetPaymentFee sets the fee percentage deducted from every payment.
func (l *Ledger) SetPaymentFee(ctx context.Context, percent int64, caller string) error {
	return l.updateSettings(ctx, "set_payment_fee", caller, func(s *models.Settings) error {
		if err := validPercent(percent); err != nil {
			return err
		}
		s.PaymentFeePercent = percent
		return nil
	})
}

// SetSettlementThreshold sets the paid percentage at which a bill settles.
func (l *Ledger) SetSettlementThreshold(ctx context.Context, percent int64, caller string) error {
	return l.updateSettings(ctx, "set_settlement_threshold", caller, func(s *models.Settings) error {
		if err := validPercent(percent); err != nil {
			return err
		}
		s.SettlementThresholdPercent = percent
		return nil
	})
}

// SetMaxPaymentsPerBill bounds the payments one payer may make toward a bill.
func (l *Ledger) SetMaxPaymentsPerBill(ctx context.Context, limit int, caller string) error {
	return l.updateSettings(ctx, "set_max_payments_per_bill", caller, func(s *models.Settings) error {
		if limit <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
		}
		s.MaxPaymentsPerBill = limit
		return nil
	})
}

// SetMaxSharesPerBill bounds the number of shares in one split.
func (l *Ledger) SetMaxSharesPerBill(ctx context.Context, limit int, caller string) error {
	return l.updateSettings(ctx, "set_max_shares_per_bill", caller, func(s *models.Settings) error {
		if limit <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
		}
		s.MaxSharesPerBill = limit
		return nil
	})
}

func validPercent(p int64) error {
	if p < 0 || p > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidPercent, p)
	}
	return nil
}
