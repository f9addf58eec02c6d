// Package config defines the top-level configuration for the up/down bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by UPDOWN_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Auth       AuthConfig       `toml:"auth"`
	Trading    TradingConfig    `toml:"trading"`
	History    HistoryConfig    `toml:"history"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds Ethereum wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds Polymarket API endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost  string `toml:"clob_host"`
	GammaHost string `toml:"gamma_host"`
	WsHost    string `toml:"ws_host"`
	ChainID   int    `toml:"chain_id"`
}

// AuthConfig holds pre-derived CLOB API credentials. When all three fields
// are empty the bot derives a fresh key set from the wallet at startup.
type AuthConfig struct {
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`
}

// TradingConfig holds the per-cycle trading parameters.
type TradingConfig struct {
	// Symbols maps a display name to a slug stem, e.g. "BTC" -> "btc-updown-15m".
	Symbols         map[string]string `toml:"symbols"`
	BaseSuffix      int64             `toml:"base_suffix"`
	TargetSellPrice float64           `toml:"target_sell_price"`
	Notional        float64           `toml:"notional"`
	GuardBand       float64           `toml:"guard_band"`
	EvalFrom        int               `toml:"eval_from"`
	EvalTo          int               `toml:"eval_to"`
	EvalStep        int               `toml:"eval_step"`
	SellAttempts    int               `toml:"sell_attempts"`
	SellSpacing     duration          `toml:"sell_spacing"`
	ThresholdFile   string            `toml:"threshold_file"`
	LedgerFile      string            `toml:"ledger_file"`
	MaxCycles       int               `toml:"max_cycles"`
}

// HistoryConfig holds parameters for the backward outcome scan.
type HistoryConfig struct {
	Symbol      string `toml:"symbol"`
	ResultsFile string `toml:"results_file"`
}

// PostgresConfig holds PostgreSQL connection parameters for the durable
// trade ledger.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the live quote cache.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for ledger archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "30s", "5m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "30s" or "5m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:  "https://clob.polymarket.com",
			GammaHost: "https://gamma-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com/ws",
			ChainID:   137,
		},
		Trading: TradingConfig{
			Symbols: map[string]string{
				"BTC": "btc-updown-15m",
				"ETH": "eth-updown-15m",
				"SOL": "sol-updown-15m",
				"XRP": "xrp-updown-15m",
			},
			BaseSuffix:      1768539600,
			TargetSellPrice: 0.99,
			Notional:        1.1,
			GuardBand:       0.01,
			EvalFrom:        120,
			EvalTo:          780,
			EvalStep:        60,
			SellAttempts:    3,
			SellSpacing:     duration{30 * time.Second},
			ThresholdFile:   "data/15min_thresholds.csv",
			LedgerFile:      "trade_record.csv",
		},
		History: HistoryConfig{
			Symbol:      "btc-updown-15m",
			ResultsFile: "event_results.csv",
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "updownbot-data",
			Prefix:         "ledgers",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"trade", "error"},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"history": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, history)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet credentials are only needed when orders get placed.
	if strings.ToLower(c.Mode) == "trade" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode trade")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Polymarket endpoints
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.WsHost == "" {
		errs = append(errs, "polymarket: ws_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}

	// Auth — all three fields must be set together, or all empty.
	ak := c.Auth.ApiKey != ""
	as := c.Auth.ApiSecret != ""
	ap := c.Auth.ApiPassphrase != ""
	if ak || as || ap {
		if !(ak && as && ap) {
			errs = append(errs, "auth: api_key, api_secret, and api_passphrase must all be set together")
		}
	}

	// Trading
	if len(c.Trading.Symbols) == 0 {
		errs = append(errs, "trading: symbols must not be empty")
	}
	for name, stem := range c.Trading.Symbols {
		if strings.TrimSpace(stem) == "" {
			errs = append(errs, fmt.Sprintf("trading: symbol %q has an empty slug stem", name))
		}
	}
	if c.Trading.BaseSuffix <= 0 {
		errs = append(errs, "trading: base_suffix must be positive")
	}
	if c.Trading.TargetSellPrice <= 0 || c.Trading.TargetSellPrice > 1 {
		errs = append(errs, fmt.Sprintf("trading: target_sell_price must be in (0, 1], got %v", c.Trading.TargetSellPrice))
	}
	if c.Trading.Notional <= 0 {
		errs = append(errs, "trading: notional must be > 0")
	}
	if c.Trading.GuardBand < 0 {
		errs = append(errs, "trading: guard_band must be >= 0")
	}
	if c.Trading.EvalFrom <= 0 || c.Trading.EvalTo < c.Trading.EvalFrom {
		errs = append(errs, fmt.Sprintf("trading: eval window [%d, %d] is invalid", c.Trading.EvalFrom, c.Trading.EvalTo))
	}
	if c.Trading.EvalStep <= 0 {
		errs = append(errs, "trading: eval_step must be > 0")
	}
	if c.Trading.SellAttempts < 1 {
		errs = append(errs, "trading: sell_attempts must be >= 1")
	}
	if c.Trading.SellSpacing.Duration < 0 {
		errs = append(errs, "trading: sell_spacing must not be negative")
	}
	if c.Trading.ThresholdFile == "" {
		errs = append(errs, "trading: threshold_file must not be empty")
	}
	if c.Trading.LedgerFile == "" {
		errs = append(errs, "trading: ledger_file must not be empty")
	}

	// History
	if strings.ToLower(c.Mode) == "history" {
		if c.History.Symbol == "" {
			errs = append(errs, "history: symbol must not be empty")
		}
		if c.History.ResultsFile == "" {
			errs = append(errs, "history: results_file must not be empty")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
