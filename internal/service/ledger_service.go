package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/middleware"
)

// LedgerServicePath is the path prefix of every LedgerService procedure.
const LedgerServicePath = "/splitledger.v1.LedgerService/"

// LedgerService procedures.
const (
	LedgerCreateEvenSplitProcedure        = LedgerServicePath + "CreateEvenSplit"
	LedgerCreateCustomSplitProcedure      = LedgerServicePath + "CreateCustomSplit"
	LedgerApproveSplitProcedure           = LedgerServicePath + "ApproveSplit"
	LedgerUpdateSharesProcedure           = LedgerServicePath + "UpdateShares"
	LedgerCalculateOweProcedure           = LedgerServicePath + "CalculateOwe"
	LedgerGetSplitProcedure               = LedgerServicePath + "GetSplit"
	LedgerGetSplitHistoryProcedure        = LedgerServicePath + "GetSplitHistory"
	LedgerInitializeBalanceProcedure      = LedgerServicePath + "InitializeBalance"
	LedgerMakeFullPaymentProcedure        = LedgerServicePath + "MakeFullPayment"
	LedgerMakePartialPaymentProcedure     = LedgerServicePath + "MakePartialPayment"
	LedgerRequestRefundProcedure          = LedgerServicePath + "RequestRefund"
	LedgerSettleBillProcedure             = LedgerServicePath + "SettleBill"
	LedgerGetBalanceProcedure             = LedgerServicePath + "GetBalance"
	LedgerGetPaymentHistoryProcedure      = LedgerServicePath + "GetPaymentHistory"
	LedgerGetPaymentProcedure             = LedgerServicePath + "GetPayment"
	LedgerListRefundsProcedure            = LedgerServicePath + "ListRefunds"
	LedgerGetSettingsProcedure            = LedgerServicePath + "GetSettings"
	LedgerSetAdminProcedure               = LedgerServicePath + "SetAdmin"
	LedgerSetPaymentFeeProcedure          = LedgerServicePath + "SetPaymentFee"
	LedgerSetSettlementThresholdProcedure = LedgerServicePath + "SetSettlementThreshold"
	LedgerSetMaxPaymentsPerBillProcedure  = LedgerServicePath + "SetMaxPaymentsPerBill"
	LedgerSetMaxSharesPerBillProcedure    = LedgerServicePath + "SetMaxSharesPerBill"
	LedgerGetAccountBalanceProcedure      = LedgerServicePath + "GetAccountBalance"
)

// LedgerService exposes the ledger over Connect. The caller of every
// operation is the account carried by the request's bearer token.
type LedgerService struct {
	ledger *ledger.Ledger
}

// NewLedgerService creates a LedgerService backed by l.
func NewLedgerService(l *ledger.Ledger) *LedgerService {
	return &LedgerService{ledger: l}
}

// NewLedgerServiceHandler builds the HTTP handler serving every LedgerService procedure.
func NewLedgerServiceHandler(svc *LedgerService, opts ...connect.HandlerOption) (string, http.Handler) {
	o := handlerOptions(opts)
	mux := http.NewServeMux()
	unary(mux, LedgerCreateEvenSplitProcedure, svc.CreateEvenSplit, o)
	unary(mux, LedgerCreateCustomSplitProcedure, svc.CreateCustomSplit, o)
	unary(mux, LedgerApproveSplitProcedure, svc.ApproveSplit, o)
	unary(mux, LedgerUpdateSharesProcedure, svc.UpdateShares, o)
	unary(mux, LedgerCalculateOweProcedure, svc.CalculateOwe, o)
	unary(mux, LedgerGetSplitProcedure, svc.GetSplit, o)
	unary(mux, LedgerGetSplitHistoryProcedure, svc.GetSplitHistory, o)
	unary(mux, LedgerInitializeBalanceProcedure, svc.InitializeBalance, o)
	unary(mux, LedgerMakeFullPaymentProcedure, svc.MakeFullPayment, o)
	unary(mux, LedgerMakePartialPaymentProcedure, svc.MakePartialPayment, o)
	unary(mux, LedgerRequestRefundProcedure, svc.RequestRefund, o)
	unary(mux, LedgerSettleBillProcedure, svc.SettleBill, o)
	unary(mux, LedgerGetBalanceProcedure, svc.GetBalance, o)
	unary(mux, LedgerGetPaymentHistoryProcedure, svc.GetPaymentHistory, o)
	unary(mux, LedgerGetPaymentProcedure, svc.GetPayment, o)
	unary(mux, LedgerListRefundsProcedure, svc.ListRefunds, o)
	unary(mux, LedgerGetSettingsProcedure, svc.GetSettings, o)
	unary(mux, LedgerSetAdminProcedure, svc.SetAdmin, o)
	unary(mux, LedgerSetPaymentFeeProcedure, svc.SetPaymentFee, o)
	unary(mux, LedgerSetSettlementThresholdProcedure, svc.SetSettlementThreshold, o)
	unary(mux, LedgerSetMaxPaymentsPerBillProcedure, svc.SetMaxPaymentsPerBill, o)
	unary(mux, LedgerSetMaxSharesPerBillProcedure, svc.SetMaxSharesPerBill, o)
	unary(mux, LedgerGetAccountBalanceProcedure, svc.GetAccountBalance, o)
	return LedgerServicePath, mux
}

// CreateEvenSplit splits a bill evenly across its group.
func (s *LedgerService) CreateEvenSplit(ctx context.Context, req *connect.Request[CreateEvenSplitRequest]) (*connect.Response[CreateSplitResponse], error) {
	caller := middleware.GetAccountID(ctx)
	slog.Info("CreateEvenSplit request received", "bill_id", req.Msg.BillID, "caller", caller)

	id, err := s.ledger.CreateEvenSplit(ctx, req.Msg.BillID, caller)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CreateSplitResponse{SplitID: id}), nil
}

// CreateCustomSplit records explicit member shares for a bill.
func (s *LedgerService) CreateCustomSplit(ctx context.Context, req *connect.Request[CreateCustomSplitRequest]) (*connect.Response[CreateSplitResponse], error) {
	caller := middleware.GetAccountID(ctx)
	slog.Info("CreateCustomSplit request received",
		"bill_id", req.Msg.BillID,
		"shares_count", len(req.Msg.Shares),
		"caller", caller,
	)

	id, err := s.ledger.CreateCustomSplit(ctx, req.Msg.BillID, fromShares(req.Msg.Shares), caller)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CreateSplitResponse{SplitID: id}), nil
}

// ApproveSplit records the caller's approval.
func (s *LedgerService) ApproveSplit(ctx context.Context, req *connect.Request[ApproveSplitRequest]) (*connect.Response[ApproveSplitResponse], error) {
	caller := middleware.GetAccountID(ctx)
	slog.Info("ApproveSplit request received", "split_id", req.Msg.SplitID, "caller", caller)

	approved, err := s.ledger.Approve(ctx, req.Msg.SplitID, caller)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ApproveSplitResponse{Approved: approved}), nil
}

// UpdateShares replaces the shares of a split.
func (s *LedgerService) UpdateShares(ctx context.Context, req *connect.Request[UpdateSharesRequest]) (*connect.Response[Empty], error) {
	caller := middleware.GetAccountID(ctx)
	slog.Info("UpdateShares request received", "split_id", req.Msg.SplitID, "caller", caller)

	if err := s.ledger.UpdateShares(ctx, req.Msg.SplitID, fromShares(req.Msg.Shares), caller); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

// CalculateOwe returns what a member owes on a bill.
func (s *LedgerService) CalculateOwe(ctx context.Context, req *connect.Request[CalculateOweRequest]) (*connect.Response[CalculateOweResponse], error) {
	member := req.Msg.Member
	if member == "" {
		member = middleware.GetAccountID(ctx)
	}

	owed, err := s.ledger.CalculateOwe(ctx, req.Msg.BillID, member)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CalculateOweResponse{Member: member, Owed: owed}), nil
}

// GetSplit returns the split of a bill.
func (s *LedgerService) GetSplit(ctx context.Context, req *connect.Request[BillRequest]) (*connect.Response[SplitResponse], error) {
	split, err := s.ledger.Split(ctx, req.Msg.BillID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SplitResponse{Split: toSplit(split)}), nil
}

// GetSplitHistory returns the share updates made to a bill's split.
func (s *LedgerService) GetSplitHistory(ctx context.Context, req *connect.Request[BillRequest]) (*connect.Response[SplitHistoryResponse], error) {
	entries, err := s.ledger.SplitHistory(ctx, req.Msg.BillID)
	if err != nil {
		return nil, toConnectError(err)
	}

	out := make([]*SplitHistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = toHistoryEntry(e)
	}
	return connect.NewResponse(&SplitHistoryResponse{Entries: out}), nil
}

// InitializeBalance opens a bill's settlement balance.
func (s *LedgerService) InitializeBalance(ctx context.Context, req *connect.Request[InitializeBalanceRequest]) (*connect.Response[BalanceResponse], error) {
	caller := middleware.GetAccountID(ctx)
	slog.Info("InitializeBalance request received",
		"bill_id", req.Msg.BillID,
		"group_id", req.Msg.GroupID,
		"total_owed", req.Msg.TotalOwed,
		"caller", caller,
	)

	if err := s.ledger.InitializeBalance(ctx, req.Msg.BillID, req.Msg.TotalOwed, req.Msg.GroupID, caller); err != nil {
		return nil, toConnectError(err)
	}
	balance, err := s.ledger.Balance(ctx, req.Msg.BillID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&BalanceResponse{Balance: toBalance(balance)}), nil
}

// MakeFullPayment pays the caller's whole share in one payment.
func (s *LedgerService) MakeFullPayment(ctx context.Context, req *connect.Request[PaymentRequest]) (*connect.Response[PaymentResponse], error) {
	caller := middleware.GetAccountID(ctx)
	slog.Info("MakeFullPayment request received", "bill_id", req.Msg.BillID, "amount", req.Msg.Amount, "payer", caller)

	payment, err := s.ledger.MakeFullPayment(ctx, req.Msg.BillID, req.Msg.Amount, caller)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&PaymentResponse{Payment: toPayment(payment)}), nil
}

// MakePartialPayment pays part of the caller's share.
func (s *LedgerService) MakePartialPayment(ctx context.Context, req *connect.Request[PaymentRequest]) (*connect.Response[PaymentResponse], error) {
	caller := middleware.GetAccountID(ctx)
	slog.Info("MakePartialPayment request received", "bill_id", req.Msg.BillID, "amount", req.Msg.Amount, "payer", caller)

	payment, err := s.ledger.MakePartialPayment(ctx, req.Msg.BillID, req.Msg.Amount, caller)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&PaymentResponse{Payment: toPayment(payment)}), nil
}

// RequestRefund returns part of what the caller paid.
func (s *LedgerService) RequestRefund(ctx context.Context, req *connect.Request[RefundRequest]) (*connect.Response[RefundResponse], error) {
	caller := middleware.GetAccountID(ctx)
	slog.Info("RequestRefund request received", "bill_id", req.Msg.BillID, "amount", req.Msg.Amount, "payer", caller)

	refund, err := s.ledger.RequestRefund(ctx, req.Msg.BillID, req.Msg.Amount, req.Msg.Reason, caller)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RefundResponse{Refund: toRefund(refund)}), nil
}

// SettleBill marks a bill settled.
func (s *LedgerService) SettleBill(ctx context.Context, req *connect.Request[BillRequest]) (*connect.Response[BalanceResponse], error) {
	caller := middleware.GetAccountID(ctx)
	slog.Info("SettleBill request received", "bill_id", req.Msg.BillID, "caller", caller)

	if err := s.ledger.SettleBill(ctx, req.Msg.BillID, caller); err != nil {
		return nil, toConnectError(err)
	}
	balance, err := s.ledger.Balance(ctx, req.Msg.BillID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&BalanceResponse{Balance: toBalance(balance)}), nil
}

// GetBalance returns a bill's settlement balance.
func (s *LedgerService) GetBalance(ctx context.Context, req *connect.Request[BillRequest]) (*connect.Response[BalanceResponse], error) {
	balance, err := s.ledger.Balance(ctx, req.Msg.BillID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&BalanceResponse{Balance: toBalance(balance)}), nil
}

// GetPaymentHistory lists a payer's payments toward a bill.
func (s *LedgerService) GetPaymentHistory(ctx context.Context, req *connect.Request[PaymentHistoryRequest]) (*connect.Response[PaymentHistoryResponse], error) {
	payer := req.Msg.Payer
	if payer == "" {
		payer = middleware.GetAccountID(ctx)
	}

	payments, err := s.ledger.PaymentHistory(ctx, req.Msg.BillID, payer)
	if err != nil {
		return nil, toConnectError(err)
	}

	out := make([]*Payment, len(payments))
	for i, p := range payments {
		out[i] = toPayment(p)
	}
	return connect.NewResponse(&PaymentHistoryResponse{Payments: out}), nil
}

// GetPayment returns one payment.
func (s *LedgerService) GetPayment(ctx context.Context, req *connect.Request[GetPaymentRequest]) (*connect.Response[PaymentResponse], error) {
	payment, err := s.ledger.Payment(ctx, req.Msg.PaymentID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&PaymentResponse{Payment: toPayment(payment)}), nil
}

// ListRefunds lists refunds issued on a bill.
func (s *LedgerService) ListRefunds(ctx context.Context, req *connect.Request[ListRefundsRequest]) (*connect.Response[ListRefundsResponse], error) {
	refunds, err := s.ledger.Refunds(ctx, req.Msg.BillID, req.Msg.Payer)
	if err != nil {
		return nil, toConnectError(err)
	}

	out := make([]*Refund, len(refunds))
	for i := range refunds {
		out[i] = toRefund(&refunds[i])
	}
	return connect.NewResponse(&ListRefundsResponse{Refunds: out}), nil
}

// GetSettings returns the ledger settings.
func (s *LedgerService) GetSettings(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[SettingsResponse], error) {
	return s.settingsResponse(ctx)
}

// SetAdmin transfers administration to another account.
func (s *LedgerService) SetAdmin(ctx context.Context, req *connect.Request[SetAdminRequest]) (*connect.Response[SettingsResponse], error) {
	caller := middleware.GetAccountID(ctx)
	slog.Info("SetAdmin request received", "new_admin", req.Msg.Admin, "caller", caller)

	if err := s.ledger.SetAdmin(ctx, req.Msg.Admin, caller); err != nil {
		return nil, toConnectError(err)
	}
	return s.settingsResponse(ctx)
}

// SetPaymentFee sets the payment fee percentage.
func (s *LedgerService) SetPaymentFee(ctx context.Context, req *connect.Request[SetPercentRequest]) (*connect.Response[SettingsResponse], error) {
	caller := middleware.GetAccountID(ctx)
	slog.Info("SetPaymentFee request received", "percent", req.Msg.Percent, "caller", caller)

	if err := s.ledger.SetPaymentFee(ctx, req.Msg.Percent, caller); err != nil {
		return nil, toConnectError(err)
	}
	return s.settingsResponse(ctx)
}

// SetSettlementThreshold sets the automatic settlement threshold.
func (s *LedgerService) SetSettlementThreshold(ctx context.Context, req *connect.Request[SetPercentRequest]) (*connect.Response[SettingsResponse], error) {
	caller := middleware.GetAccountID(ctx)
	slog.Info("SetSettlementThreshold request received", "percent", req.Msg.Percent, "caller", caller)

	if err := s.ledger.SetSettlementThreshold(ctx, req.Msg.Percent, caller); err != nil {
		return nil, toConnectError(err)
	}
	return s.settingsResponse(ctx)
}

// SetMaxPaymentsPerBill sets the per-payer payment history bound.
func (s *LedgerService) SetMaxPaymentsPerBill(ctx context.Context, req *connect.Request[SetLimitRequest]) (*connect.Response[SettingsResponse], error) {
	caller := middleware.GetAccountID(ctx)
	slog.Info("SetMaxPaymentsPerBill request received", "limit", req.Msg.Limit, "caller", caller)

	if err := s.ledger.SetMaxPaymentsPerBill(ctx, req.Msg.Limit, caller); err != nil {
		return nil, toConnectError(err)
	}
	return s.settingsResponse(ctx)
}

// SetMaxSharesPerBill sets the share count bound.
func (s *LedgerService) SetMaxSharesPerBill(ctx context.Context, req *connect.Request[SetLimitRequest]) (*connect.Response[SettingsResponse], error) {
	caller := middleware.GetAccountID(ctx)
	slog.Info("SetMaxSharesPerBill request received", "limit", req.Msg.Limit, "caller", caller)

	if err := s.ledger.SetMaxSharesPerBill(ctx, req.Msg.Limit, caller); err != nil {
		return nil, toConnectError(err)
	}
	return s.settingsResponse(ctx)
}

// GetAccountBalance reports an account's token balance.
func (s *LedgerService) GetAccountBalance(ctx context.Context, req *connect.Request[AccountBalanceRequest]) (*connect.Response[AccountBalanceResponse], error) {
	account := req.Msg.Account
	if account == "" {
		account = middleware.GetAccountID(ctx)
	}

	balance, err := s.ledger.AccountBalance(ctx, account)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&AccountBalanceResponse{Account: account, Balance: balance}), nil
}

func (s *LedgerService) settingsResponse(ctx context.Context) (*connect.Response[SettingsResponse], error) {
	settings, err := s.ledger.Settings(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SettingsResponse{Settings: toSettings(settings)}), nil
}
