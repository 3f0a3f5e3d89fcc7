package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
	"github.com/mmynk/splitledger/internal/vault"
)

type testEnv struct {
	server *httptest.Server
	jwt    *auth.JWTManager
	vault  *vault.Vault
}

// setupTestServer creates a test server backed by a temp SQLite database.
// The ledger is bootstrapped with "admin" as administrator and a 10% fee.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	v := vault.New()
	l, err := ledger.New(store, ledger.Deps{Bills: store, Groups: store, Tokens: v}, ledger.Options{EscrowAccount: "escrow"})
	if err != nil {
		t.Fatalf("failed to create ledger: %v", err)
	}
	if _, err := l.Bootstrap(context.Background(), models.Settings{Admin: "admin", PaymentFeePercent: 10, SettlementThresholdPercent: 100}); err != nil {
		t.Fatalf("failed to bootstrap ledger: %v", err)
	}

	jwtManager := auth.NewJWTManager("test-secret-key-0123456789abcdef", "splitledger", time.Hour)
	server := httptest.NewServer(NewRouter(RouterConfig{
		Ledger:  l,
		Catalog: store,
		JWT:     jwtManager,
		Health:  func(context.Context) error { return nil },
	}))
	t.Cleanup(server.Close)

	return &testEnv{server: server, jwt: jwtManager, vault: v}
}

// call invokes procedure as account. An empty account sends no token.
func call[Req, Res any](t *testing.T, env *testEnv, procedure, account string, msg *Req) (*Res, error) {
	t.Helper()

	client := NewClient[Req, Res](env.server.Client(), env.server.URL, procedure)
	req := connect.NewRequest(msg)
	if account != "" {
		token, err := env.jwt.Generate(account, auth.RoleMember)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header().Set("Authorization", "Bearer "+token)
	}

	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func mustCall[Req, Res any](t *testing.T, env *testEnv, procedure, account string, msg *Req) *Res {
	t.Helper()
	res, err := call[Req, Res](t, env, procedure, account, msg)
	if err != nil {
		t.Fatalf("%s as %s failed: %v", procedure, account, err)
	}
	return res
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Errorf("code = %v, want %v (%v)", got, want, err)
	}
}

// seedBill creates a group of alice and bob with one bill of 1000.
func seedBill(t *testing.T, env *testEnv) (*Group, *Bill) {
	t.Helper()

	g := mustCall[CreateGroupRequest, GroupResponse](t, env, CatalogCreateGroupProcedure, "alice",
		&CreateGroupRequest{Name: "Roommates", Members: []string{"bob"}})
	b := mustCall[CreateBillRequest, BillResponse](t, env, CatalogCreateBillProcedure, "alice",
		&CreateBillRequest{GroupID: g.Group.ID, TotalAmount: 1000})
	return g.Group, b.Bill
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t)

	resp, err := http.Get(env.server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRequiresToken(t *testing.T) {
	env := setupTestServer(t)

	_, err := call[Empty, SettingsResponse](t, env, LedgerGetSettingsProcedure, "", &Empty{})
	assertCode(t, err, connect.CodeUnauthenticated)
}

func TestCatalog(t *testing.T) {
	env := setupTestServer(t)
	group, bill := seedBill(t, env)

	if len(group.Members) != 2 || group.Members[0] != "bob" || group.Members[1] != "alice" {
		t.Errorf("members = %v, want [bob alice]", group.Members)
	}
	if bill.Title == "" || bill.TotalAmount != 1000 {
		t.Errorf("bill = %+v", bill)
	}

	t.Run("list groups filters by caller", func(t *testing.T) {
		mine := mustCall[Empty, ListGroupsResponse](t, env, CatalogListGroupsProcedure, "bob", &Empty{})
		if len(mine.Groups) != 1 {
			t.Errorf("bob sees %d groups, want 1", len(mine.Groups))
		}
		none := mustCall[Empty, ListGroupsResponse](t, env, CatalogListGroupsProcedure, "carol", &Empty{})
		if len(none.Groups) != 0 {
			t.Errorf("carol sees %d groups, want 0", len(none.Groups))
		}
	})

	t.Run("non-member cannot add bills", func(t *testing.T) {
		_, err := call[CreateBillRequest, BillResponse](t, env, CatalogCreateBillProcedure, "carol",
			&CreateBillRequest{GroupID: group.ID, TotalAmount: 50})
		assertCode(t, err, connect.CodePermissionDenied)
	})

	t.Run("non-positive total", func(t *testing.T) {
		_, err := call[CreateBillRequest, BillResponse](t, env, CatalogCreateBillProcedure, "alice",
			&CreateBillRequest{GroupID: group.ID})
		assertCode(t, err, connect.CodeInvalidArgument)
	})

	t.Run("add members", func(t *testing.T) {
		resp := mustCall[AddGroupMembersRequest, GroupResponse](t, env, CatalogAddGroupMembersProcedure, "bob",
			&AddGroupMembersRequest{GroupID: group.ID, Members: []string{"carol", "alice"}})
		if len(resp.Group.Members) != 3 {
			t.Errorf("members = %v, want 3", resp.Group.Members)
		}
	})

	t.Run("unknown bill", func(t *testing.T) {
		_, err := call[BillRequest, BillResponse](t, env, CatalogGetBillProcedure, "alice", &BillRequest{BillID: "missing"})
		assertCode(t, err, connect.CodeNotFound)
	})

	bills := mustCall[GroupRequest, ListBillsResponse](t, env, CatalogListBillsProcedure, "alice", &GroupRequest{GroupID: group.ID})
	if len(bills.Bills) != 1 || bills.Bills[0].ID != bill.ID {
		t.Errorf("bills = %+v", bills.Bills)
	}
}

func TestSplitLifecycle(t *testing.T) {
	env := setupTestServer(t)
	_, bill := seedBill(t, env)

	created := mustCall[CreateEvenSplitRequest, CreateSplitResponse](t, env, LedgerCreateEvenSplitProcedure, "alice",
		&CreateEvenSplitRequest{BillID: bill.ID})

	owe := mustCall[CalculateOweRequest, CalculateOweResponse](t, env, LedgerCalculateOweProcedure, "bob",
		&CalculateOweRequest{BillID: bill.ID})
	if owe.Member != "bob" || owe.Owed != 500 {
		t.Errorf("CalculateOwe = %+v, want bob owes 500", owe)
	}

	t.Run("duplicate split", func(t *testing.T) {
		_, err := call[CreateEvenSplitRequest, CreateSplitResponse](t, env, LedgerCreateEvenSplitProcedure, "bob",
			&CreateEvenSplitRequest{BillID: bill.ID})
		assertCode(t, err, connect.CodeFailedPrecondition)
	})

	t.Run("outsider", func(t *testing.T) {
		_, err := call[ApproveSplitRequest, ApproveSplitResponse](t, env, LedgerApproveSplitProcedure, "carol",
			&ApproveSplitRequest{SplitID: created.SplitID})
		assertCode(t, err, connect.CodePermissionDenied)
		var cerr *connect.Error
		if errors.As(err, &cerr) && cerr.Meta().Get("Ledger-Error-Kind") != "unauthorized" {
			t.Errorf("Ledger-Error-Kind = %q, want unauthorized", cerr.Meta().Get("Ledger-Error-Kind"))
		}
	})

	first := mustCall[ApproveSplitRequest, ApproveSplitResponse](t, env, LedgerApproveSplitProcedure, "alice",
		&ApproveSplitRequest{SplitID: created.SplitID})
	second := mustCall[ApproveSplitRequest, ApproveSplitResponse](t, env, LedgerApproveSplitProcedure, "bob",
		&ApproveSplitRequest{SplitID: created.SplitID})
	if first.Approved || !second.Approved {
		t.Errorf("approvals = %v then %v, want false then true", first.Approved, second.Approved)
	}

	t.Run("invalid shares", func(t *testing.T) {
		_, err := call[UpdateSharesRequest, Empty](t, env, LedgerUpdateSharesProcedure, "alice",
			&UpdateSharesRequest{SplitID: created.SplitID, Shares: []Share{{Member: "alice", Share: 9000}, {Member: "bob", Share: 0}}})
		assertCode(t, err, connect.CodeInvalidArgument)
	})

	mustCall[UpdateSharesRequest, Empty](t, env, LedgerUpdateSharesProcedure, "alice",
		&UpdateSharesRequest{SplitID: created.SplitID, Shares: []Share{{Member: "alice", Share: 6000}, {Member: "bob", Share: 4000}}})

	split := mustCall[BillRequest, SplitResponse](t, env, LedgerGetSplitProcedure, "bob", &BillRequest{BillID: bill.ID})
	if !split.Split.Approved || split.Split.Shares[0].Share != 6000 {
		t.Errorf("split = %+v", split.Split)
	}

	history := mustCall[BillRequest, SplitHistoryResponse](t, env, LedgerGetSplitHistoryProcedure, "bob", &BillRequest{BillID: bill.ID})
	if len(history.Entries) != 1 || history.Entries[0].Updater != "alice" {
		t.Errorf("history = %+v", history.Entries)
	}

	t.Run("missing split", func(t *testing.T) {
		_, err := call[BillRequest, SplitResponse](t, env, LedgerGetSplitProcedure, "bob", &BillRequest{BillID: "missing"})
		assertCode(t, err, connect.CodeNotFound)
	})
}

func TestPaymentFlow(t *testing.T) {
	env := setupTestServer(t)
	group, bill := seedBill(t, env)
	if err := env.vault.Deposit("bob", 1000); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}

	mustCall[CreateEvenSplitRequest, CreateSplitResponse](t, env, LedgerCreateEvenSplitProcedure, "alice",
		&CreateEvenSplitRequest{BillID: bill.ID})

	t.Run("non-admin cannot initialize", func(t *testing.T) {
		_, err := call[InitializeBalanceRequest, BalanceResponse](t, env, LedgerInitializeBalanceProcedure, "alice",
			&InitializeBalanceRequest{BillID: bill.ID, TotalOwed: 1000, GroupID: group.ID})
		assertCode(t, err, connect.CodePermissionDenied)
	})

	opened := mustCall[InitializeBalanceRequest, BalanceResponse](t, env, LedgerInitializeBalanceProcedure, "admin",
		&InitializeBalanceRequest{BillID: bill.ID, TotalOwed: 1000, GroupID: group.ID})
	if opened.Balance.TotalOwed != 1000 || opened.Balance.TotalPaid != 0 {
		t.Errorf("balance = %+v", opened.Balance)
	}

	paid := mustCall[PaymentRequest, PaymentResponse](t, env, LedgerMakeFullPaymentProcedure, "bob",
		&PaymentRequest{BillID: bill.ID, Amount: 550})
	if paid.Payment.Amount != 495 || paid.Payment.FeeDeducted != 55 || paid.Payment.Status != "settled" {
		t.Errorf("payment = %+v", paid.Payment)
	}

	t.Run("second full payment", func(t *testing.T) {
		_, err := call[PaymentRequest, PaymentResponse](t, env, LedgerMakeFullPaymentProcedure, "bob",
			&PaymentRequest{BillID: bill.ID, Amount: 10})
		assertCode(t, err, connect.CodeFailedPrecondition)
	})

	t.Run("transfer without funds", func(t *testing.T) {
		_, err := call[PaymentRequest, PaymentResponse](t, env, LedgerMakePartialPaymentProcedure, "alice",
			&PaymentRequest{BillID: bill.ID, Amount: 100})
		assertCode(t, err, connect.CodeUnavailable)
	})

	refund := mustCall[RefundRequest, RefundResponse](t, env, LedgerRequestRefundProcedure, "bob",
		&RefundRequest{BillID: bill.ID, Amount: 100, Reason: "overpaid"})
	if refund.Refund.Amount != 100 {
		t.Errorf("refund = %+v", refund.Refund)
	}

	balance := mustCall[BillRequest, BalanceResponse](t, env, LedgerGetBalanceProcedure, "alice", &BillRequest{BillID: bill.ID})
	if balance.Balance.TotalPaid != 395 || balance.Balance.Settled {
		t.Errorf("balance = %+v, want 395 unsettled", balance.Balance)
	}

	payments := mustCall[PaymentHistoryRequest, PaymentHistoryResponse](t, env, LedgerGetPaymentHistoryProcedure, "bob",
		&PaymentHistoryRequest{BillID: bill.ID})
	if len(payments.Payments) != 1 {
		t.Errorf("payments = %+v", payments.Payments)
	}

	refunds := mustCall[ListRefundsRequest, ListRefundsResponse](t, env, LedgerListRefundsProcedure, "alice",
		&ListRefundsRequest{BillID: bill.ID})
	if len(refunds.Refunds) != 1 || refunds.Refunds[0].Reason != "overpaid" {
		t.Errorf("refunds = %+v", refunds.Refunds)
	}

	escrow := mustCall[AccountBalanceRequest, AccountBalanceResponse](t, env, LedgerGetAccountBalanceProcedure, "bob",
		&AccountBalanceRequest{Account: "escrow"})
	if escrow.Balance != 450 {
		t.Errorf("escrow balance = %d, want 450", escrow.Balance)
	}

	settled := mustCall[BillRequest, BalanceResponse](t, env, LedgerSettleBillProcedure, "admin", &BillRequest{BillID: bill.ID})
	if !settled.Balance.Settled {
		t.Error("expected bill settled")
	}
}

func TestAdminProcedures(t *testing.T) {
	env := setupTestServer(t)

	_, err := call[SetPercentRequest, SettingsResponse](t, env, LedgerSetPaymentFeeProcedure, "alice", &SetPercentRequest{Percent: 5})
	assertCode(t, err, connect.CodePermissionDenied)

	_, err = call[SetPercentRequest, SettingsResponse](t, env, LedgerSetSettlementThresholdProcedure, "admin", &SetPercentRequest{Percent: 150})
	assertCode(t, err, connect.CodeInvalidArgument)

	mustCall[SetPercentRequest, SettingsResponse](t, env, LedgerSetPaymentFeeProcedure, "admin", &SetPercentRequest{Percent: 5})
	mustCall[SetLimitRequest, SettingsResponse](t, env, LedgerSetMaxPaymentsPerBillProcedure, "admin", &SetLimitRequest{Limit: 7})
	mustCall[SetLimitRequest, SettingsResponse](t, env, LedgerSetMaxSharesPerBillProcedure, "admin", &SetLimitRequest{Limit: 9})
	mustCall[SetPercentRequest, SettingsResponse](t, env, LedgerSetSettlementThresholdProcedure, "admin", &SetPercentRequest{Percent: 90})
	resp := mustCall[SetAdminRequest, SettingsResponse](t, env, LedgerSetAdminProcedure, "admin", &SetAdminRequest{Admin: "ops"})

	want := Settings{Admin: "ops", PaymentFeePercent: 5, SettlementThresholdPercent: 90, MaxPaymentsPerBill: 7, MaxSharesPerBill: 9}
	if *resp.Settings != want {
		t.Errorf("settings = %+v, want %+v", resp.Settings, want)
	}

	got := mustCall[Empty, SettingsResponse](t, env, LedgerGetSettingsProcedure, "alice", &Empty{})
	if *got.Settings != want {
		t.Errorf("GetSettings = %+v, want %+v", got.Settings, want)
	}
}
