package core

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func ethInfo() SymbolInfo {
	return SymbolInfo{
		Symbol:            "ETH",
		BaseCurrency:      "ETH",
		QuoteCurrency:     "USDC",
		PricePrecision:    2,
		QuantityPrecision: 4,
		TickSize:          decimal.RequireFromString("0.01"),
		MinOrderSize:      decimal.RequireFromString("0.001"),
		MinNotional:       decimal.RequireFromString("10"),
		TradingEnabled:    true,
	}
}

func TestRoundPriceHalfUp(t *testing.T) {
	info := ethInfo()

	got := info.RoundPrice(decimal.RequireFromString("2000.006"))
	if !got.Equal(decimal.RequireFromString("2000.01")) {
		t.Fatalf("RoundPrice(2000.006) = %s, want 2000.01", got)
	}
	got = info.RoundPrice(decimal.RequireFromString("2000.004"))
	if !got.Equal(decimal.RequireFromString("2000.00")) {
		t.Fatalf("RoundPrice(2000.004) = %s, want 2000.00", got)
	}
	got = info.RoundPrice(decimal.RequireFromString("2000.005"))
	if !got.Equal(decimal.RequireFromString("2000.01")) {
		t.Fatalf("RoundPrice(2000.005) = %s, want 2000.01 under half-up", got)
	}
}

func TestRoundPriceIdempotent(t *testing.T) {
	info := ethInfo()
	for _, raw := range []string{"2000.006", "1999.999", "0.015", "12345.67"} {
		once := info.RoundPrice(decimal.RequireFromString(raw))
		twice := info.RoundPrice(once)
		if !once.Equal(twice) {
			t.Fatalf("RoundPrice not idempotent for %s: %s != %s", raw, once, twice)
		}
	}
}

func TestRoundSizeNeverRoundsUp(t *testing.T) {
	info := ethInfo()

	got := info.RoundSize(decimal.RequireFromString("0.123456"))
	if !got.Equal(decimal.RequireFromString("0.1234")) {
		t.Fatalf("RoundSize(0.123456) = %s, want 0.1234", got)
	}
	got = info.RoundSize(decimal.RequireFromString("0.12349999"))
	if !got.Equal(decimal.RequireFromString("0.1234")) {
		t.Fatalf("RoundSize(0.12349999) = %s, want 0.1234", got)
	}
	if !info.RoundSize(got).Equal(got) {
		t.Fatalf("RoundSize not idempotent: %s", got)
	}
}

func TestRoundDownToStep(t *testing.T) {
	step := decimal.RequireFromString("0.001")
	got := RoundDownToStep(decimal.RequireFromString("0.1239"), step)
	if !got.Equal(decimal.RequireFromString("0.123")) {
		t.Fatalf("RoundDownToStep(0.1239, 0.001) = %s, want 0.123", got)
	}
	if !RoundDownToStep(got, step).Equal(got) {
		t.Fatalf("RoundDownToStep not idempotent: %s", got)
	}
}

func TestValidateOrderSizeMustBePositive(t *testing.T) {
	info := ethInfo()
	ok, reason := info.ValidateOrder(Limit, decimal.Zero, decimal.RequireFromString("2000"))
	if ok {
		t.Fatalf("ValidateOrder(size=0) ok = true, want false")
	}
	if reason != "size must be positive" {
		t.Fatalf("reason = %q, want %q", reason, "size must be positive")
	}
}

func TestValidateOrderMinSize(t *testing.T) {
	info := ethInfo()
	ok, reason := info.ValidateOrder(Limit, decimal.RequireFromString("0.0001"), decimal.RequireFromString("2000"))
	if ok {
		t.Fatalf("ValidateOrder(size=0.0001) ok = true, want false")
	}
	if !strings.Contains(reason, "minimum order size") {
		t.Fatalf("reason = %q, want minimum order size violation", reason)
	}

	ok, reason = info.ValidateOrder(Limit, decimal.RequireFromString("0.01"), decimal.RequireFromString("2000"))
	if !ok || reason != "" {
		t.Fatalf("ValidateOrder(size=0.01) = (%v, %q), want (true, \"\")", ok, reason)
	}
}

func TestValidateOrderMaxSize(t *testing.T) {
	info := ethInfo()
	info.MaxOrderSize = decimal.RequireFromString("5")
	ok, reason := info.ValidateOrder(Limit, decimal.RequireFromString("6"), decimal.RequireFromString("2000"))
	if ok {
		t.Fatalf("ValidateOrder(size above max) ok = true, want false")
	}
	if !strings.Contains(reason, "maximum order size") {
		t.Fatalf("reason = %q, want maximum order size violation", reason)
	}
}

func TestValidateOrderLimitRequiresPositivePrice(t *testing.T) {
	info := ethInfo()
	ok, reason := info.ValidateOrder(Limit, decimal.RequireFromString("0.01"), decimal.Zero)
	if ok {
		t.Fatalf("ValidateOrder(limit, price=0) ok = true, want false")
	}
	if !strings.Contains(reason, "price must be positive") {
		t.Fatalf("reason = %q, want positive price violation", reason)
	}

	// Market orders skip the price checks entirely.
	ok, _ = info.ValidateOrder(Market, decimal.RequireFromString("0.01"), decimal.Zero)
	if !ok {
		t.Fatalf("ValidateOrder(market, price=0) ok = false, want true")
	}
}

func TestValidateOrderMinNotional(t *testing.T) {
	info := ethInfo()
	ok, reason := info.ValidateOrder(Limit, decimal.RequireFromString("0.001"), decimal.RequireFromString("2000"))
	if ok {
		t.Fatalf("ValidateOrder(notional=2) ok = true, want false")
	}
	if !strings.Contains(reason, "notional") {
		t.Fatalf("reason = %q, want notional violation", reason)
	}
}

func TestValidateOrderDisabledSymbol(t *testing.T) {
	info := ethInfo()
	info.TradingEnabled = false
	ok, reason := info.ValidateOrder(Limit, decimal.RequireFromString("0.1"), decimal.RequireFromString("2000"))
	if ok {
		t.Fatalf("ValidateOrder(disabled symbol) ok = true, want false")
	}
	if !strings.Contains(reason, "not currently tradable") {
		t.Fatalf("reason = %q, want tradable violation", reason)
	}
}
