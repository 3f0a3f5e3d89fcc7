// Package config loads splitledger configuration.
//
// Values are layered: built-in defaults, then an optional config file
// (.toml, .yaml or .yml), then environment variables. A .env file in the
// working directory is loaded into the environment first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the config file when no path is given.
const EnvConfigPath = "SPLITLEDGER_CONFIG"

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Database DatabaseConfig `toml:"database" yaml:"database"`
	Ledger   LedgerConfig   `toml:"ledger" yaml:"ledger"`
	Vault    VaultConfig    `toml:"vault" yaml:"vault"`
	Auth     AuthConfig     `toml:"auth" yaml:"auth"`
	AMQP     AMQPConfig     `toml:"amqp" yaml:"amqp"`
	Log      LogConfig      `toml:"log" yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
	// RequestTimeout bounds each request, e.g. "30s". Empty disables it.
	RequestTimeout string `toml:"request_timeout" yaml:"request_timeout"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout string `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
	Metrics         bool   `toml:"metrics" yaml:"metrics"`

	requestTimeout  time.Duration
	shutdownTimeout time.Duration
}

// RequestTimeoutDuration returns the parsed request timeout.
func (s ServerConfig) RequestTimeoutDuration() time.Duration { return s.requestTimeout }

// ShutdownTimeoutDuration returns the parsed shutdown timeout.
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration { return s.shutdownTimeout }

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `toml:"path" yaml:"path"`
}

// LedgerConfig holds the settings applied when the ledger is bootstrapped
// and the options of the running ledger.
type LedgerConfig struct {
	Admin                      string `toml:"admin" yaml:"admin"`
	EscrowAccount              string `toml:"escrow_account" yaml:"escrow_account"`
	PaymentFeePercent          int64  `toml:"payment_fee_percent" yaml:"payment_fee_percent"`
	SettlementThresholdPercent int64  `toml:"settlement_threshold_percent" yaml:"settlement_threshold_percent"`
	MaxPaymentsPerBill         int    `toml:"max_payments_per_bill" yaml:"max_payments_per_bill"`
	MaxSharesPerBill           int    `toml:"max_shares_per_bill" yaml:"max_shares_per_bill"`
	ResetApprovalsOnEdit       bool   `toml:"reset_approvals_on_edit" yaml:"reset_approvals_on_edit"`
}

// VaultConfig configures the token account database.
type VaultConfig struct {
	// Path is the SQLite file holding token balances.
	Path string `toml:"path" yaml:"path"`
	// Deposits credits accounts the first time each account is seen here.
	// Later startups skip accounts already seeded, even if the amount changed.
	Deposits map[string]int64 `toml:"deposits" yaml:"deposits"`
}

// AuthConfig configures caller tokens.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret" yaml:"jwt_secret"`
	Issuer    string `toml:"issuer" yaml:"issuer"`
	TokenTTL  string `toml:"token_ttl" yaml:"token_ttl"`
	// OperatorKeyHash is the bcrypt hash of the key ledgerctl requires
	// before minting tokens.
	OperatorKeyHash string `toml:"operator_key_hash" yaml:"operator_key_hash"`

	tokenTTL time.Duration
}

// TokenTTLDuration returns the parsed token lifetime.
func (a AuthConfig) TokenTTLDuration() time.Duration { return a.tokenTTL }

// AMQPConfig configures event publication. Publication is disabled when
// URL is empty.
type AMQPConfig struct {
	URL            string `toml:"url" yaml:"url"`
	Exchange       string `toml:"exchange" yaml:"exchange"`
	Queue          string `toml:"queue" yaml:"queue"`
	PublishTimeout string `toml:"publish_timeout" yaml:"publish_timeout"`

	publishTimeout time.Duration
}

// Enabled reports whether events should be published to a broker.
func (a AMQPConfig) Enabled() bool { return a.URL != "" }

// PublishTimeoutDuration returns the parsed publish timeout.
func (a AMQPConfig) PublishTimeoutDuration() time.Duration { return a.publishTimeout }

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" yaml:"level"`
	// Format is "text" (colored, for terminals) or "json".
	Format string `toml:"format" yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			RequestTimeout:  "30s",
			ShutdownTimeout: "10s",
			Metrics:         true,
		},
		Database: DatabaseConfig{
			Path: "./data/ledger.db",
		},
		Vault: VaultConfig{
			Path: "./data/vault.db",
		},
		Ledger: LedgerConfig{
			EscrowAccount:              "escrow",
			PaymentFeePercent:          1,
			SettlementThresholdPercent: 100,
			MaxPaymentsPerBill:         100,
			MaxSharesPerBill:           50,
		},
		Auth: AuthConfig{
			Issuer:   "splitledger",
			TokenTTL: "24h",
		},
		AMQP: AMQPConfig{
			Exchange:       "splitledger.events",
			PublishTimeout: "5s",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, .env, the config file at
// path (or $SPLITLEDGER_CONFIG when path is empty) and the environment,
// then validates it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges a config file into c, picking the decoder by extension.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	return nil
}

// applyEnv overrides values from environment variables.
func (c *Config) applyEnv() error {
	var errs []error

	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
			}
		}
	}
	i64 := func(dst *int64, key string) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	integer := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(dst *bool, key string) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str(&c.Server.Addr, "SPLITLEDGER_ADDR")
	str(&c.Server.RequestTimeout, "SPLITLEDGER_REQUEST_TIMEOUT")
	str(&c.Server.ShutdownTimeout, "SPLITLEDGER_SHUTDOWN_TIMEOUT")
	boolean(&c.Server.Metrics, "SPLITLEDGER_METRICS")

	str(&c.Database.Path, "DB_PATH", "SPLITLEDGER_DB_PATH")
	str(&c.Vault.Path, "SPLITLEDGER_VAULT_PATH")

	str(&c.Ledger.Admin, "SPLITLEDGER_ADMIN")
	str(&c.Ledger.EscrowAccount, "SPLITLEDGER_ESCROW_ACCOUNT")
	i64(&c.Ledger.PaymentFeePercent, "SPLITLEDGER_PAYMENT_FEE_PERCENT")
	i64(&c.Ledger.SettlementThresholdPercent, "SPLITLEDGER_SETTLEMENT_THRESHOLD_PERCENT")
	integer(&c.Ledger.MaxPaymentsPerBill, "SPLITLEDGER_MAX_PAYMENTS_PER_BILL")
	integer(&c.Ledger.MaxSharesPerBill, "SPLITLEDGER_MAX_SHARES_PER_BILL")
	boolean(&c.Ledger.ResetApprovalsOnEdit, "SPLITLEDGER_RESET_APPROVALS_ON_EDIT")

	str(&c.Auth.JWTSecret, "SPLITLEDGER_JWT_SECRET")
	str(&c.Auth.Issuer, "SPLITLEDGER_JWT_ISSUER")
	str(&c.Auth.TokenTTL, "SPLITLEDGER_TOKEN_TTL")
	str(&c.Auth.OperatorKeyHash, "SPLITLEDGER_OPERATOR_KEY_HASH")

	str(&c.AMQP.URL, "SPLITLEDGER_AMQP_URL", "AMQP_URL")
	str(&c.AMQP.Exchange, "SPLITLEDGER_AMQP_EXCHANGE")
	str(&c.AMQP.Queue, "SPLITLEDGER_AMQP_QUEUE")

	str(&c.Log.Level, "LOG_LEVEL", "SPLITLEDGER_LOG_LEVEL")
	str(&c.Log.Format, "SPLITLEDGER_LOG_FORMAT")

	return errors.Join(errs...)
}

// Validate checks every section and parses durations. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	duration := func(name, value string, dst *time.Duration) {
		if value == "" {
			*dst = 0
			return
		}
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, value))
			return
		}
		*dst = d
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	duration("server.request_timeout", c.Server.RequestTimeout, &c.Server.requestTimeout)
	duration("server.shutdown_timeout", c.Server.ShutdownTimeout, &c.Server.shutdownTimeout)

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	if c.Ledger.EscrowAccount == "" {
		errs = append(errs, errors.New("ledger.escrow_account is required"))
	}
	if p := c.Ledger.PaymentFeePercent; p < 0 || p > 100 {
		errs = append(errs, fmt.Errorf("ledger.payment_fee_percent must be 0-100, got %d", p))
	}
	if p := c.Ledger.SettlementThresholdPercent; p < 0 || p > 100 {
		errs = append(errs, fmt.Errorf("ledger.settlement_threshold_percent must be 0-100, got %d", p))
	}
	if c.Ledger.MaxPaymentsPerBill <= 0 {
		errs = append(errs, errors.New("ledger.max_payments_per_bill must be positive"))
	}
	if c.Ledger.MaxSharesPerBill <= 0 {
		errs = append(errs, errors.New("ledger.max_shares_per_bill must be positive"))
	}

	if c.Vault.Path == "" {
		errs = append(errs, errors.New("vault.path is required"))
	} else if c.Vault.Path == c.Database.Path {
		errs = append(errs, errors.New("vault.path must differ from database.path"))
	}
	for account, amount := range c.Vault.Deposits {
		if account == "" || amount <= 0 {
			errs = append(errs, fmt.Errorf("vault.deposits: invalid deposit %q=%d", account, amount))
		}
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 32 characters"))
	}
	duration("auth.token_ttl", c.Auth.TokenTTL, &c.Auth.tokenTTL)

	if c.AMQP.Enabled() && c.AMQP.Exchange == "" {
		errs = append(errs, errors.New("amqp.exchange is required when amqp.url is set"))
	}
	duration("amqp.publish_timeout", c.AMQP.PublishTimeout, &c.AMQP.publishTimeout)

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// ValidateServer adds the checks only the server needs.
func (c *Config) ValidateServer() error {
	var errs []error
	if c.Ledger.Admin == "" {
		errs = append(errs, errors.New("ledger.admin is required to bootstrap the ledger"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	return errors.Join(errs...)
}
