package models

// PaymentStatus distinguishes one-shot payments from installments.
type PaymentStatus string

const (
	PaymentSettled PaymentStatus = "settled"
	PaymentPartial PaymentStatus = "partial"
)

// Payment is an immutable record of money paid against an obligation.
type Payment struct {
	// ID is assigned from the payment sequence.
	ID int64

	BillID string
	Payer  string

	// Amount is the net amount credited toward the obligation (fee excluded).
	Amount int64

	// FeeDeducted is the fee charged on top of Amount.
	FeeDeducted int64

	Status PaymentStatus

	// Timestamp is the logical clock reading when the payment was made.
	Timestamp int64
}

// Gross returns the amount that left the payer's account.
func (p *Payment) Gross() int64 {
	return p.Amount + p.FeeDeducted
}

// Refund is an immutable record of money returned from escrow to a payer.
type Refund struct {
	ID        int64
	BillID    string
	Payer     string
	Amount    int64
	Reason    string
	Timestamp int64
}

// BillBalance aggregates what is owed and paid for one bill.
type BillBalance struct {
	BillID    string
	GroupID   string
	TotalOwed int64
	TotalPaid int64

	// Settled is one-way: once true it stays true.
	Settled bool

	// LastUpdated is the logical clock reading of the last mutation.
	LastUpdated int64
}

// Settings is the process-wide ledger configuration.
type Settings struct {
	// Admin is the account allowed to run administrative operations.
	Admin string

	// PaymentFeePercent is charged on every payment, 0-100.
	PaymentFeePercent int64

	// SettlementThresholdPercent is the paid/owed ratio that settles a bill, 0-100.
	SettlementThresholdPercent int64

	// MaxPaymentsPerBill bounds the payment history of each (bill, payer) pair.
	MaxPaymentsPerBill int

	// MaxSharesPerBill bounds the number of shares in a split.
	MaxSharesPerBill int
}
