package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(dir, "ledger.db")
	cfg.Vault.Path = filepath.Join(dir, "vault.db")
	cfg.Vault.Deposits = map[string]int64{"alice": 1000, "bob": 1000}
	cfg.Ledger.Admin = "root"
	cfg.Ledger.PaymentFeePercent = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Invalid config: %v", err)
	}
	return cfg
}

func open(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := Open(cfg, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := a.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	return a
}

func balances(t *testing.T, a *App, accounts ...string) []int64 {
	t.Helper()
	out := make([]int64, len(accounts))
	for i, account := range accounts {
		b, err := a.Ledger.AccountBalance(context.Background(), account)
		if err != nil {
			t.Fatalf("AccountBalance(%s) failed: %v", account, err)
		}
		out[i] = b
	}
	return out
}

func TestReopenKeepsTokenBalances(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a := open(t, cfg)
	group := &models.Group{Name: "Roommates", Members: []string{"alice", "bob"}}
	if err := a.Store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	bill := &models.Bill{GroupID: group.ID, TotalAmount: 1000}
	if err := a.Store.CreateBill(ctx, bill); err != nil {
		t.Fatalf("CreateBill failed: %v", err)
	}
	if _, err := a.Ledger.CreateEvenSplit(ctx, bill.ID, "alice"); err != nil {
		t.Fatalf("CreateEvenSplit failed: %v", err)
	}
	if err := a.Ledger.InitializeBalance(ctx, bill.ID, 1000, group.ID, "root"); err != nil {
		t.Fatalf("InitializeBalance failed: %v", err)
	}
	if _, err := a.Ledger.MakePartialPayment(ctx, bill.ID, 500, "alice"); err != nil {
		t.Fatalf("MakePartialPayment failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	a = open(t, cfg)
	defer a.Close()

	got := balances(t, a, "alice", "bob", a.Ledger.EscrowAccount())
	if got[0] != 500 || got[1] != 1000 || got[2] != 500 {
		t.Errorf("after reopen alice=%d bob=%d escrow=%d, want 500 1000 500", got[0], got[1], got[2])
	}

	if _, err := a.Ledger.RequestRefund(ctx, bill.ID, 100, "overpaid", "alice"); err != nil {
		t.Fatalf("RequestRefund after reopen failed: %v", err)
	}
	got = balances(t, a, "alice", a.Ledger.EscrowAccount())
	if got[0] != 600 || got[1] != 400 {
		t.Errorf("after refund alice=%d escrow=%d, want 600 400", got[0], got[1])
	}

	balance, err := a.Ledger.Balance(ctx, bill.ID)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance.TotalPaid != 400 {
		t.Errorf("TotalPaid = %d, want 400", balance.TotalPaid)
	}
}

func TestSeedDepositsApplyOnce(t *testing.T) {
	cfg := testConfig(t)

	a := open(t, cfg)
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	cfg.Vault.Deposits["alice"] = 5000
	cfg.Vault.Deposits["carol"] = 300
	a = open(t, cfg)
	defer a.Close()

	got := balances(t, a, "alice", "carol")
	if got[0] != 1000 || got[1] != 300 {
		t.Errorf("alice=%d carol=%d, want 1000 (first seed wins) and 300", got[0], got[1])
	}

	if err := a.Health(context.Background()); err != nil {
		t.Errorf("Health failed: %v", err)
	}
}
