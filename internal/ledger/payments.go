package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// InitializeBalance opens the settlement balance of a bill. Admin only.
func (l *Ledger) InitializeBalance(ctx context.Context, billID string, totalOwed int64, groupID, caller string) error {
	err := l.run(ctx, "initialize_balance", func(tx storage.Tx, out *outcome) error {
		s, err := settings(ctx, tx)
		if err != nil {
			return err
		}
		if err := requireAdmin(s, caller); err != nil {
			return err
		}
		if totalOwed <= 0 {
			return fmt.Errorf("%w: total owed %d", ErrInvalidAmount, totalOwed)
		}

		split, err := tx.GetSplitByBill(ctx, billID)
		if err != nil {
			return mapNotFound(err, ErrNoSplit, billID)
		}
		if _, err := l.group(ctx, groupID); err != nil {
			return err
		}
		if split.GroupID != groupID {
			return fmt.Errorf("%w: split %d belongs to %s, got %s", ErrGroupMismatch, split.ID, split.GroupID, groupID)
		}

		if _, err := tx.GetBalance(ctx, billID); err == nil {
			return fmt.Errorf("%w: %s", ErrBalanceExists, billID)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to check existing balance: %w", err)
		}

		balance := &models.BillBalance{
			BillID:      billID,
			GroupID:     groupID,
			TotalOwed:   totalOwed,
			LastUpdated: out.now,
		}
		if err := tx.CreateBalance(ctx, balance); err != nil {
			return fmt.Errorf("failed to create balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("Balance initialized", "bill_id", billID, "group_id", groupID, "total_owed", totalOwed)
	return nil
}

// MakeFullPayment settles the payer's share in one payment. The fee is
// deducted from amount and only the net amount counts toward the bill;
// the gross amount is transferred from payer to escrow.
func (l *Ledger) MakeFullPayment(ctx context.Context, billID string, amount int64, payer string) (*models.Payment, error) {
	return l.pay(ctx, "make_full_payment", billID, amount, payer, models.PaymentSettled)
}

// MakePartialPayment credits part of the payer's share. Cumulative net
// payments may not exceed the amount owed.
func (l *Ledger) MakePartialPayment(ctx context.Context, billID string, amount int64, payer string) (*models.Payment, error) {
	return l.pay(ctx, "make_partial_payment", billID, amount, payer, models.PaymentPartial)
}

func (l *Ledger) pay(ctx context.Context, op, billID string, amount int64, payer string, status models.PaymentStatus) (*models.Payment, error) {
	var payment *models.Payment
	var settledNow bool
	err := l.run(ctx, op, func(tx storage.Tx, out *outcome) error {
		if amount <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
		}
		if payer == "" {
			return ErrInvalidAccount
		}
		s, err := settings(ctx, tx)
		if err != nil {
			return err
		}

		fee, net := calculator.Fee(amount, s.PaymentFeePercent)
		owed, err := l.owe(ctx, tx, billID, payer)
		if err != nil {
			return err
		}
		paid, err := tx.PayerTotal(ctx, billID, payer)
		if err != nil {
			return fmt.Errorf("failed to load payer total: %w", err)
		}
		history, err := tx.PaymentHistory(ctx, billID, payer)
		if err != nil {
			return fmt.Errorf("failed to load payment history: %w", err)
		}

		switch status {
		case models.PaymentSettled:
			if net > owed {
				return fmt.Errorf("%w: net %d, owed %d", ErrInsufficientCoverage, net, owed)
			}
			if len(history) > 0 {
				return fmt.Errorf("%w: %s on %s", ErrAlreadyPaid, payer, billID)
			}
		default:
			if paid+net > owed {
				return fmt.Errorf("%w: paid %d + net %d, owed %d", ErrPartialExceeds, paid, net, owed)
			}
		}

		balance, err := tx.GetBalance(ctx, billID)
		if err != nil {
			return mapNotFound(err, ErrNoBalance, billID)
		}
		if s.MaxPaymentsPerBill > 0 && len(history) >= s.MaxPaymentsPerBill {
			return fmt.Errorf("%w: %d payments by %s", ErrHistoryFull, len(history), payer)
		}

		id, err := tx.NextID(ctx, storage.SeqPayment)
		if err != nil {
			return fmt.Errorf("failed to allocate payment id: %w", err)
		}
		payment = &models.Payment{
			ID:          id,
			BillID:      billID,
			Payer:       payer,
			Amount:      net,
			FeeDeducted: fee,
			Status:      status,
			Timestamp:   out.now,
		}
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		if err := tx.AppendPaymentHistory(ctx, billID, payer, id); err != nil {
			return fmt.Errorf("failed to append payment history: %w", err)
		}
		if err := tx.SetPayerTotal(ctx, billID, payer, paid+net); err != nil {
			return fmt.Errorf("failed to update payer total: %w", err)
		}

		wasSettled := balance.Settled
		balance.TotalPaid += net
		balance.Settled = calculator.Settled(wasSettled, balance.TotalPaid, balance.TotalOwed, s.SettlementThresholdPercent)
		balance.LastUpdated = out.now
		if err := tx.UpdateBalance(ctx, balance); err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}
		settledNow = !wasSettled && balance.Settled

		if err := l.transfer(ctx, out, amount, payer, l.escrow); err != nil {
			return err
		}

		eventType := events.PaymentMade
		if status == models.PaymentPartial {
			eventType = events.PartialPayment
		}
		out.emit(events.Event{Type: eventType, BillID: billID, PaymentID: id, Account: payer, Amount: net})
		out.after(func() { metrics.RecordPayment(string(status), net, fee) })
		if settledNow {
			out.emit(events.Event{Type: events.BillSettled, BillID: billID, Account: payer, Amount: balance.TotalPaid})
			out.after(metrics.IncBillSettled)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Payment recorded",
		"payment_id", payment.ID, "bill_id", billID, "payer", payer,
		"status", status, "net", payment.Amount, "fee", payment.FeeDeducted)
	if settledNow {
		slog.Info("Bill settled", "bill_id", billID)
	}
	return payment, nil
}

// RequestRefund returns amount from escrow to a payer who has paid toward
// billID. A settled bill stays settled.
func (l *Ledger) RequestRefund(ctx context.Context, billID string, amount int64, reason, payer string) (*models.Refund, error) {
	var refund *models.Refund
	err := l.run(ctx, "request_refund", func(tx storage.Tx, out *outcome) error {
		if amount <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
		}
		s, err := settings(ctx, tx)
		if err != nil {
			return err
		}

		history, err := tx.PaymentHistory(ctx, billID, payer)
		if err != nil {
			return fmt.Errorf("failed to load payment history: %w", err)
		}
		if len(history) == 0 {
			return fmt.Errorf("%w: %s on %s", ErrNoPayments, payer, billID)
		}
		paid, err := tx.PayerTotal(ctx, billID, payer)
		if err != nil {
			return fmt.Errorf("failed to load payer total: %w", err)
		}
		if amount > paid {
			return fmt.Errorf("%w: refund %d, paid %d", ErrRefundExceedsPaid, amount, paid)
		}
		balance, err := tx.GetBalance(ctx, billID)
		if err != nil {
			return mapNotFound(err, ErrNoBalance, billID)
		}

		id, err := tx.NextID(ctx, storage.SeqRefund)
		if err != nil {
			return fmt.Errorf("failed to allocate refund id: %w", err)
		}
		refund = &models.Refund{
			ID:        id,
			BillID:    billID,
			Payer:     payer,
			Amount:    amount,
			Reason:    reason,
			Timestamp: out.now,
		}
		if err := tx.CreateRefund(ctx, refund); err != nil {
			return fmt.Errorf("failed to create refund: %w", err)
		}
		if err := tx.SetPayerTotal(ctx, billID, payer, paid-amount); err != nil {
			return fmt.Errorf("failed to update payer total: %w", err)
		}

		balance.TotalPaid -= amount
		balance.Settled = calculator.Settled(balance.Settled, balance.TotalPaid, balance.TotalOwed, s.SettlementThresholdPercent)
		balance.LastUpdated = out.now
		if err := tx.UpdateBalance(ctx, balance); err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		if err := l.transfer(ctx, out, amount, l.escrow, payer); err != nil {
			return err
		}

		out.emit(events.Event{Type: events.RefundRequested, BillID: billID, RefundID: id, Account: payer, Amount: amount})
		out.after(func() { metrics.RecordRefund(amount) })
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Refund issued", "refund_id", refund.ID, "bill_id", billID, "payer", payer, "amount", amount)
	return refund, nil
}

// SettleBill marks a bill settled regardless of payments. Admin only.
func (l *Ledger) SettleBill(ctx context.Context, billID, caller string) error {
	err := l.run(ctx, "settle_bill", func(tx storage.Tx, out *outcome) error {
		s, err := settings(ctx, tx)
		if err != nil {
			return err
		}
		if err := requireAdmin(s, caller); err != nil {
			return err
		}
		if _, err := tx.GetSplitByBill(ctx, billID); err != nil {
			return mapNotFound(err, ErrNoSplit, billID)
		}
		balance, err := tx.GetBalance(ctx, billID)
		if err != nil {
			return mapNotFound(err, ErrNoBalance, billID)
		}
		if balance.Settled {
			return fmt.Errorf("%w: %s", ErrAlreadySettled, billID)
		}

		balance.Settled = true
		balance.LastUpdated = out.now
		if err := tx.UpdateBalance(ctx, balance); err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		out.emit(events.Event{Type: events.BillSettled, BillID: billID, Account: caller, Amount: balance.TotalPaid})
		out.after(metrics.IncBillSettled)
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("Bill settled manually", "bill_id", billID, "admin", caller)
	return nil
}

// Balance returns the settlement balance of billID.
func (l *Ledger) Balance(ctx context.Context, billID string) (*models.BillBalance, error) {
	var balance *models.BillBalance
	err := l.run(ctx, "get_balance", func(tx storage.Tx, _ *outcome) error {
		var err error
		balance, err = tx.GetBalance(ctx, billID)
		return mapNotFound(err, ErrNoBalance, billID)
	})
	return balance, err
}

// PaymentHistory returns the payer's payments toward billID, oldest first.
func (l *Ledger) PaymentHistory(ctx context.Context, billID, payer string) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := l.run(ctx, "get_payment_history", func(tx storage.Tx, _ *outcome) error {
		ids, err := tx.PaymentHistory(ctx, billID, payer)
		if err != nil {
			return fmt.Errorf("failed to load payment history: %w", err)
		}
		for _, id := range ids {
			p, err := tx.GetPayment(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load payment %d: %w", id, err)
			}
			payments = append(payments, p)
		}
		return nil
	})
	return payments, err
}

// Payment returns a single payment.
func (l *Ledger) Payment(ctx context.Context, paymentID int64) (*models.Payment, error) {
	var payment *models.Payment
	err := l.run(ctx, "get_payment", func(tx storage.Tx, _ *outcome) error {
		var err error
		payment, err = tx.GetPayment(ctx, paymentID)
		return mapNotFound(err, ErrPaymentNotFound, paymentID)
	})
	return payment, err
}

// Refunds lists refunds on billID; an empty payer lists every payer's refunds.
func (l *Ledger) Refunds(ctx context.Context, billID, payer string) ([]models.Refund, error) {
	var refunds []models.Refund
	err := l.run(ctx, "list_refunds", func(tx storage.Tx, _ *outcome) error {
		var err error
		refunds, err = tx.ListRefunds(ctx, billID, payer)
		return err
	})
	return refunds, err
}

// AccountBalance reports the token balance of an account.
func (l *Ledger) AccountBalance(ctx context.Context, account string) (int64, error) {
	if account == "" {
		return 0, ErrInvalidAccount
	}
	balance, err := l.tokens.Balance(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("%w: balance of %s: %w", ErrLookupFailed, account, err)
	}
	return balance, nil
}
