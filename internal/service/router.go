package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/storage"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Ledger  *ledger.Ledger
	Catalog storage.Catalog
	JWT     *auth.JWTManager
	// Health reports whether dependencies are reachable. Optional.
	Health func(ctx context.Context) error
	// Metrics mounts the Prometheus handler at /metrics.
	Metrics bool
	// RequestTimeout bounds each request. Zero disables the bound.
	RequestTimeout time.Duration
}

// NewRouter returns the chi router with health, metrics and both Connect
// services mounted.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status, code := "ok", http.StatusOK
		if cfg.Health != nil {
			if err := cfg.Health(req.Context()); err != nil {
				slog.Warn("Health check failed", "error", err)
				status, code = "unavailable", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})

	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	interceptors := connect.WithInterceptors(
		middleware.RequireAuth(cfg.JWT),
		middleware.LoggingInterceptor(nil),
	)

	ledgerPath, ledgerHandler := NewLedgerServiceHandler(NewLedgerService(cfg.Ledger), interceptors)
	r.Handle(ledgerPath+"*", ledgerHandler)

	catalogPath, catalogHandler := NewCatalogServiceHandler(NewCatalogService(cfg.Catalog), interceptors)
	r.Handle(catalogPath+"*", catalogHandler)

	return r
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms, Ledger-Error-Kind")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
