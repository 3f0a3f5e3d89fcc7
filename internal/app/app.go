// Package app assembles a ledger from configuration. Both the server and
// ledgerctl open the same store through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/splitledger/internal/amqp"
	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
	"github.com/mmynk/splitledger/internal/vault"
)

// App holds the wired components.
type App struct {
	Config    *config.Config
	Store     *sqlite.SQLiteStore
	Accounts  *sqlite.AccountStore
	Vault     *vault.Vault
	Ledger    *ledger.Ledger
	JWT       *auth.JWTManager
	publisher *amqp.Publisher
}

// Options controls optional parts of Open.
type Options struct {
	// Publish connects to the AMQP broker when one is configured.
	Publish bool
}

// Open opens the ledger and account databases, applies seed deposits not
// yet applied and builds the ledger.
func Open(cfg *config.Config, opts Options) (*App, error) {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	slog.Info("Storage initialized", "database", cfg.Database.Path)

	a := &App{
		Config: cfg,
		Store:  store,
		JWT:    auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTLDuration()),
	}

	a.Accounts, err = sqlite.OpenAccounts(cfg.Vault.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open token accounts: %w", err)
	}
	a.Vault = vault.NewWith(a.Accounts)
	slog.Info("Token accounts initialized", "database", cfg.Vault.Path)

	// Seed deposits are keyed by account, so each is applied once per vault.
	for account, amount := range cfg.Vault.Deposits {
		applied, err := a.Vault.DepositOnce(context.Background(), SeedRef(account), account, amount)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("seed vault: %w", err)
		}
		if applied {
			slog.Info("Seeded account", "account", account, "amount", amount)
		}
	}

	publishers := events.Multi{events.LogPublisher{}}
	if opts.Publish && cfg.AMQP.Enabled() {
		p, err := amqp.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue, cfg.AMQP.PublishTimeoutDuration())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect AMQP: %w", err)
		}
		a.publisher = p
		publishers = append(publishers, p)
		slog.Info("Publishing events", "exchange", cfg.AMQP.Exchange, "queue", cfg.AMQP.Queue)
	}

	a.Ledger, err = ledger.New(store, ledger.Deps{
		Bills:  store,
		Groups: store,
		Tokens: a.Vault,
		Events: publishers,
	}, ledger.Options{
		EscrowAccount:        cfg.Ledger.EscrowAccount,
		ResetApprovalsOnEdit: cfg.Ledger.ResetApprovalsOnEdit,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// SeedRef is the deposit reference of the configured seed for account.
func SeedRef(account string) string {
	return "config-seed:" + account
}

// Bootstrap stores the configured settings unless the ledger already has
// some, and returns the settings in effect.
func (a *App) Bootstrap(ctx context.Context) (*models.Settings, error) {
	lc := a.Config.Ledger
	return a.Ledger.Bootstrap(ctx, models.Settings{
		Admin:                      lc.Admin,
		PaymentFeePercent:          lc.PaymentFeePercent,
		SettlementThresholdPercent: lc.SettlementThresholdPercent,
		MaxPaymentsPerBill:         lc.MaxPaymentsPerBill,
		MaxSharesPerBill:           lc.MaxSharesPerBill,
	})
}

// Health reports whether both databases are reachable.
func (a *App) Health(ctx context.Context) error {
	if err := a.Store.Ping(ctx); err != nil {
		return err
	}
	return a.Accounts.Ping(ctx)
}

// Close releases the publisher and the store.
func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.Accounts != nil {
		errs = append(errs, a.Accounts.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
