package service

import "github.com/mmynk/splitledger/internal/models"

// Wire messages. Amounts are integer minor units, shares are basis points.

type Share struct {
	Member string `json:"member"`
	Share  int64  `json:"share"`
}

type Split struct {
	ID          int64    `json:"id"`
	BillID      string   `json:"bill_id"`
	GroupID     string   `json:"group_id"`
	Type        string   `json:"type"`
	Shares      []Share  `json:"shares"`
	TotalShares int64    `json:"total_shares"`
	Timestamp   int64    `json:"timestamp"`
	Creator     string   `json:"creator"`
	Approved    bool     `json:"approved"`
	Approvals   []string `json:"approvals"`
}

type SplitHistoryEntry struct {
	ID        int64   `json:"id"`
	SplitID   int64   `json:"split_id"`
	OldShares []Share `json:"old_shares"`
	NewShares []Share `json:"new_shares"`
	Updater   string  `json:"updater"`
	Timestamp int64   `json:"timestamp"`
}

type Payment struct {
	ID          int64  `json:"id"`
	BillID      string `json:"bill_id"`
	Payer       string `json:"payer"`
	Amount      int64  `json:"amount"`
	FeeDeducted int64  `json:"fee_deducted"`
	Status      string `json:"status"`
	Timestamp   int64  `json:"timestamp"`
}

type Refund struct {
	ID        int64  `json:"id"`
	BillID    string `json:"bill_id"`
	Payer     string `json:"payer"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

type BillBalance struct {
	BillID      string `json:"bill_id"`
	GroupID     string `json:"group_id"`
	TotalOwed   int64  `json:"total_owed"`
	TotalPaid   int64  `json:"total_paid"`
	Settled     bool   `json:"settled"`
	LastUpdated int64  `json:"last_updated"`
}

type Settings struct {
	Admin                      string `json:"admin"`
	PaymentFeePercent          int64  `json:"payment_fee_percent"`
	SettlementThresholdPercent int64  `json:"settlement_threshold_percent"`
	MaxPaymentsPerBill         int    `json:"max_payments_per_bill"`
	MaxSharesPerBill           int    `json:"max_shares_per_bill"`
}

type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Members   []string `json:"members"`
	CreatedAt int64    `json:"created_at"`
}

type Bill struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	GroupID     string `json:"group_id"`
	TotalAmount int64  `json:"total_amount"`
	CreatedAt   int64  `json:"created_at"`
}

// Ledger requests and responses.

type Empty struct{}

type CreateEvenSplitRequest struct {
	BillID string `json:"bill_id"`
}

type CreateCustomSplitRequest struct {
	BillID string  `json:"bill_id"`
	Shares []Share `json:"shares"`
}

type CreateSplitResponse struct {
	SplitID int64 `json:"split_id"`
}

type ApproveSplitRequest struct {
	SplitID int64 `json:"split_id"`
}

type ApproveSplitResponse struct {
	Approved bool `json:"approved"`
}

type UpdateSharesRequest struct {
	SplitID int64   `json:"split_id"`
	Shares  []Share `json:"shares"`
}

type CalculateOweRequest struct {
	BillID string `json:"bill_id"`
	// Member defaults to the caller.
	Member string `json:"member,omitempty"`
}

type CalculateOweResponse struct {
	Member string `json:"member"`
	Owed   int64  `json:"owed"`
}

type BillRequest struct {
	BillID string `json:"bill_id"`
}

type SplitResponse struct {
	Split *Split `json:"split"`
}

type SplitHistoryResponse struct {
	Entries []*SplitHistoryEntry `json:"entries"`
}

type InitializeBalanceRequest struct {
	BillID    string `json:"bill_id"`
	TotalOwed int64  `json:"total_owed"`
	GroupID   string `json:"group_id"`
}

type BalanceResponse struct {
	Balance *BillBalance `json:"balance"`
}

type PaymentRequest struct {
	BillID string `json:"bill_id"`
	Amount int64  `json:"amount"`
}

type PaymentResponse struct {
	Payment *Payment `json:"payment"`
}

type RefundRequest struct {
	BillID string `json:"bill_id"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type RefundResponse struct {
	Refund *Refund `json:"refund"`
}

type PaymentHistoryRequest struct {
	BillID string `json:"bill_id"`
	// Payer defaults to the caller.
	Payer string `json:"payer,omitempty"`
}

type PaymentHistoryResponse struct {
	Payments []*Payment `json:"payments"`
}

type GetPaymentRequest struct {
	PaymentID int64 `json:"payment_id"`
}

type ListRefundsRequest struct {
	BillID string `json:"bill_id"`
	// Payer filters by payer when set.
	Payer string `json:"payer,omitempty"`
}

type ListRefundsResponse struct {
	Refunds []*Refund `json:"refunds"`
}

type SettingsResponse struct {
	Settings *Settings `json:"settings"`
}

type SetAdminRequest struct {
	Admin string `json:"admin"`
}

type SetPercentRequest struct {
	Percent int64 `json:"percent"`
}

type SetLimitRequest struct {
	Limit int `json:"limit"`
}

type AccountBalanceRequest struct {
	// Account defaults to the caller.
	Account string `json:"account,omitempty"`
}

type AccountBalanceResponse struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

// Catalog requests and responses.

type CreateGroupRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type GroupRequest struct {
	GroupID string `json:"group_id"`
}

type GroupResponse struct {
	Group *Group `json:"group"`
}

type ListGroupsResponse struct {
	Groups []*Group `json:"groups"`
}

type AddGroupMembersRequest struct {
	GroupID string   `json:"group_id"`
	Members []string `json:"members"`
}

type CreateBillRequest struct {
	GroupID     string `json:"group_id"`
	Title       string `json:"title,omitempty"`
	TotalAmount int64  `json:"total_amount"`
}

type BillResponse struct {
	Bill *Bill `json:"bill"`
}

type ListBillsResponse struct {
	Bills []*Bill `json:"bills"`
}

// Conversions between models and wire messages.

func toShares(shares []models.Share) []Share {
	out := make([]Share, len(shares))
	for i, sh := range shares {
		out[i] = Share{Member: sh.Member, Share: sh.Share}
	}
	return out
}

func fromShares(shares []Share) []models.Share {
	out := make([]models.Share, len(shares))
	for i, sh := range shares {
		out[i] = models.Share{Member: sh.Member, Share: sh.Share}
	}
	return out
}

func toSplit(s *models.SplitRecord) *Split {
	approvals := s.Approvals
	if approvals == nil {
		approvals = []string{}
	}
	return &Split{
		ID:          s.ID,
		BillID:      s.BillID,
		GroupID:     s.GroupID,
		Type:        string(s.Type),
		Shares:      toShares(s.Shares),
		TotalShares: s.TotalShares,
		Timestamp:   s.Timestamp,
		Creator:     s.Creator,
		Approved:    s.Approved,
		Approvals:   approvals,
	}
}

func toHistoryEntry(e models.SplitHistoryEntry) *SplitHistoryEntry {
	return &SplitHistoryEntry{
		ID:        e.ID,
		SplitID:   e.SplitID,
		OldShares: toShares(e.OldShares),
		NewShares: toShares(e.NewShares),
		Updater:   e.Updater,
		Timestamp: e.Timestamp,
	}
}

func toPayment(p *models.Payment) *Payment {
	return &Payment{
		ID:          p.ID,
		BillID:      p.BillID,
		Payer:       p.Payer,
		Amount:      p.Amount,
		FeeDeducted: p.FeeDeducted,
		Status:      string(p.Status),
		Timestamp:   p.Timestamp,
	}
}

func toRefund(r *models.Refund) *Refund {
	return &Refund{
		ID:        r.ID,
		BillID:    r.BillID,
		Payer:     r.Payer,
		Amount:    r.Amount,
		Reason:    r.Reason,
		Timestamp: r.Timestamp,
	}
}

func toBalance(b *models.BillBalance) *BillBalance {
	return &BillBalance{
		BillID:      b.BillID,
		GroupID:     b.GroupID,
		TotalOwed:   b.TotalOwed,
		TotalPaid:   b.TotalPaid,
		Settled:     b.Settled,
		LastUpdated: b.LastUpdated,
	}
}

func toSettings(s *models.Settings) *Settings {
	return &Settings{
		Admin:                      s.Admin,
		PaymentFeePercent:          s.PaymentFeePercent,
		SettlementThresholdPercent: s.SettlementThresholdPercent,
		MaxPaymentsPerBill:         s.MaxPaymentsPerBill,
		MaxSharesPerBill:           s.MaxSharesPerBill,
	}
}

func toGroup(g *models.Group) *Group {
	return &Group{
		ID:        g.ID,
		Name:      g.Name,
		Members:   g.Members,
		CreatedAt: g.CreatedAt,
	}
}

func toBill(b *models.Bill) *Bill {
	return &Bill{
		ID:          b.ID,
		Title:       b.Title,
		GroupID:     b.GroupID,
		TotalAmount: b.TotalAmount,
		CreatedAt:   b.CreatedAt,
	}
}
