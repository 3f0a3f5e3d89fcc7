package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitledger/internal/app"
	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a .toml or .yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		slog.Error("Failed to configure logging", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Metrics {
		metrics.Init()
	}

	a, err := app.Open(cfg, app.Options{Publish: true})
	if err != nil {
		return err
	}
	defer a.Close()

	settings, err := a.Bootstrap(ctx)
	if err != nil {
		return err
	}
	slog.Info("Ledger ready",
		"admin", settings.Admin,
		"escrow", a.Ledger.EscrowAccount(),
		"fee_percent", settings.PaymentFeePercent,
		"threshold_percent", settings.SettlementThresholdPercent,
	)

	router := service.NewRouter(service.RouterConfig{
		Ledger:         a.Ledger,
		Catalog:        a.Store,
		JWT:            a.JWT,
		Health:         a.Health,
		Metrics:        cfg.Server.Metrics,
		RequestTimeout: cfg.Server.RequestTimeoutDuration(),
	})

	// h2c serves HTTP/2 without TLS, which Connect's gRPC protocol needs
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(router, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Connect server starting", "address", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")

		timeout := cfg.Server.ShutdownTimeoutDuration()
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
