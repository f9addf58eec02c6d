package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "trade"
log_level = "debug"

[wallet]
private_key = "0xdeadbeef"

[trading]
base_suffix = 1768626000
target_sell_price = 0.98
sell_spacing = "45s"

[trading.symbols]
BTC = "btc-updown-15m"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Trading.BaseSuffix != 1768626000 {
		t.Errorf("BaseSuffix = %d, want 1768626000", cfg.Trading.BaseSuffix)
	}
	if cfg.Trading.TargetSellPrice != 0.98 {
		t.Errorf("TargetSellPrice = %v, want 0.98", cfg.Trading.TargetSellPrice)
	}
	if cfg.Trading.SellSpacing.Duration != 45*time.Second {
		t.Errorf("SellSpacing = %v, want 45s", cfg.Trading.SellSpacing.Duration)
	}
	// Defaults survive where the file is silent.
	if cfg.Polymarket.ClobHost != "https://clob.polymarket.com" {
		t.Errorf("ClobHost = %q, want default", cfg.Polymarket.ClobHost)
	}
	if cfg.Trading.Notional != 1.1 {
		t.Errorf("Notional = %v, want default 1.1", cfg.Trading.Notional)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := writeConfig(t, `
mode = "trade"

[wallet]
private_key = "file-key"

[trading]
notional = 2.0
`)

	t.Setenv("UPDOWN_WALLET_PRIVATE_KEY", "env-key")
	t.Setenv("UPDOWN_TRADING_NOTIONAL", "3.5")
	t.Setenv("UPDOWN_NOTIFY_EVENTS", "trade, cycle ,error")
	t.Setenv("UPDOWN_TRADING_SELL_SPACING", "10s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Wallet.PrivateKey != "env-key" {
		t.Errorf("PrivateKey = %q, want env-key", cfg.Wallet.PrivateKey)
	}
	if cfg.Trading.Notional != 3.5 {
		t.Errorf("Notional = %v, want 3.5", cfg.Trading.Notional)
	}
	if len(cfg.Notify.Events) != 3 || cfg.Notify.Events[1] != "cycle" {
		t.Errorf("Events = %v, want [trade cycle error]", cfg.Notify.Events)
	}
	if cfg.Trading.SellSpacing.Duration != 10*time.Second {
		t.Errorf("SellSpacing = %v, want 10s", cfg.Trading.SellSpacing.Duration)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "nonsense"
	cfg.Trading.TargetSellPrice = 1.5
	cfg.Trading.EvalFrom = 0
	cfg.Polymarket.ClobHost = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate: expected error")
	}
	for _, want := range []string{"unknown mode", "target_sell_price", "eval window", "clob_host"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidateTradeModeNeedsWallet(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "private_key or encrypted_key_path") {
		t.Fatalf("expected wallet error, got %v", err)
	}

	cfg.Wallet.EncryptedKeyPath = "wallet.enc"
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "key_password") {
		t.Fatalf("expected key_password error, got %v", err)
	}

	cfg.Wallet.KeyPassword = "hunter2"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateHistoryModeSkipsWallet(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "history"

	if err := cfg.Validate(); err != nil {
		t.Errorf("history mode should not require a wallet: %v", err)
	}
}

func TestValidatePartialAuthRejected(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "history"
	cfg.Auth.ApiKey = "key-only"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "all be set together") {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0xsecret"
	cfg.Auth.ApiSecret = "shh"
	cfg.Postgres.Password = "pgpass"
	cfg.Notify.TelegramToken = "bot-token"

	red := RedactedConfig(&cfg)

	if red.Wallet.PrivateKey != redacted {
		t.Errorf("PrivateKey = %q, want %q", red.Wallet.PrivateKey, redacted)
	}
	if red.Auth.ApiSecret != redacted {
		t.Errorf("ApiSecret = %q, want %q", red.Auth.ApiSecret, redacted)
	}
	if red.Postgres.Password != redacted {
		t.Errorf("Postgres password = %q, want %q", red.Postgres.Password, redacted)
	}
	if red.Notify.TelegramToken != redacted {
		t.Errorf("TelegramToken = %q, want %q", red.Notify.TelegramToken, redacted)
	}
	// Empty fields stay empty rather than getting the placeholder.
	if red.Redis.Password != "" {
		t.Errorf("Redis password = %q, want empty", red.Redis.Password)
	}
	// The original is untouched.
	if cfg.Wallet.PrivateKey != "0xsecret" {
		t.Errorf("original mutated: %q", cfg.Wallet.PrivateKey)
	}
	// Mutating the copy's map must not leak back.
	red.Trading.Symbols["BTC"] = "changed"
	if cfg.Trading.Symbols["BTC"] == "changed" {
		t.Error("redacted copy shares the symbols map with the original")
	}
}
