package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfgPath := writeTempConfig(t, `
exchange:
  symbol: eth
  api_key_private_key: deadbeef
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Exchange.Name != "lighter" {
		t.Fatalf("exchange.name = %q, want lighter", cfg.Exchange.Name)
	}
	if cfg.Exchange.Symbol != "ETH" {
		t.Fatalf("exchange.symbol = %q, want ETH", cfg.Exchange.Symbol)
	}
	if cfg.Exchange.BaseURL != "https://mainnet.zklighter.elliot.ai" {
		t.Fatalf("exchange.base_url = %q, want mainnet default", cfg.Exchange.BaseURL)
	}
	if cfg.Exchange.HTTPTimeoutSec != 15 {
		t.Fatalf("exchange.http_timeout_sec = %d, want 15", cfg.Exchange.HTTPTimeoutSec)
	}
	if cfg.Alerts.RateLimitPerMin != 20 {
		t.Fatalf("alerts.rate_limit_per_min = %d, want 20", cfg.Alerts.RateLimitPerMin)
	}
	if cfg.Alerts.BatchIntervalSec != 5 {
		t.Fatalf("alerts.batch_interval_sec = %d, want 5", cfg.Alerts.BatchIntervalSec)
	}
	if !cfg.Check.OrderSize.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("check.order_size = %s, want 0.01", cfg.Check.OrderSize)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	cfgPath := writeTempConfig(t, `
exchange:
  symbol: ETH
  api_key_private_key: deadbeef
  recv_window_ms: 5000
`)

	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("Load() with unknown key succeeded, want error")
	}
}

func TestLoadRequiresSymbol(t *testing.T) {
	cfgPath := writeTempConfig(t, `
exchange:
  api_key_private_key: deadbeef
`)

	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "symbol is required") {
		t.Fatalf("Load() error = %v, want symbol is required", err)
	}
}

func TestLoadTelegramValidation(t *testing.T) {
	cfgPath := writeTempConfig(t, `
exchange:
  symbol: ETH
  api_key_private_key: deadbeef

telegram:
  enabled: true
`)

	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "bot_token") {
		t.Fatalf("Load() error = %v, want bot_token required", err)
	}
}

func TestLoadParsesDecimalScalars(t *testing.T) {
	cfgPath := writeTempConfig(t, `
exchange:
  symbol: ETH
  api_key_private_key: deadbeef

check:
  place_test_order: true
  order_size: "0.05"
  price_offset_pct: "25"
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Check.OrderSize.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("check.order_size = %s, want 0.05", cfg.Check.OrderSize)
	}
	if !cfg.Check.PriceOffsetPct.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("check.price_offset_pct = %s, want 25", cfg.Check.PriceOffsetPct)
	}
}

func TestLoadRejectsInvalidOffset(t *testing.T) {
	cfgPath := writeTempConfig(t, `
exchange:
  symbol: ETH
  api_key_private_key: deadbeef

check:
  place_test_order: true
  order_size: "0.05"
  price_offset_pct: "150"
`)

	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "price_offset_pct") {
		t.Fatalf("Load() error = %v, want price_offset_pct range error", err)
	}
}
