package config

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Exchange ExchangeConfig `yaml:"exchange"`
	Logging  LoggingConfig  `yaml:"logging"`
	Telegram TelegramConfig `yaml:"telegram"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	State    StateConfig    `yaml:"state"`
	Check    CheckConfig    `yaml:"check"`
}

// ExchangeConfig carries the resolved venue options. The private key may be
// left empty in the file and supplied through the environment instead.
type ExchangeConfig struct {
	Name             string `yaml:"name"`
	Symbol           string `yaml:"symbol"`
	APIKeyPrivateKey string `yaml:"api_key_private_key"`
	AccountIndex     int64  `yaml:"account_index"`
	APIKeyIndex      uint8  `yaml:"api_key_index"`
	BaseURL          string `yaml:"base_url"`
	ChainID          uint32 `yaml:"chain_id"`
	HTTPTimeoutSec   int64  `yaml:"http_timeout_sec"`
}

type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
}

type TelegramConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BotToken   string `yaml:"bot_token"`
	ChatID     int64  `yaml:"chat_id"`
	TimeoutSec int64  `yaml:"timeout_sec"`
}

type AlertsConfig struct {
	QueueSize        int   `yaml:"queue_size"`
	RateLimitPerMin  int   `yaml:"rate_limit_per_min"`
	BatchIntervalSec int64 `yaml:"batch_interval_sec"`
}

type StateConfig struct {
	Dir          string `yaml:"dir"`
	LockTakeover *bool  `yaml:"lock_takeover"`
	LockStaleSec int64  `yaml:"lock_stale_sec"`
}

// CheckConfig drives the optional order-lifecycle check in cmd/trader: a
// limit order placed far from the market, verified, then cancelled.
type CheckConfig struct {
	PlaceTestOrder bool    `yaml:"place_test_order"`
	OrderSize      Decimal `yaml:"order_size"`
	PriceOffsetPct Decimal `yaml:"price_offset_pct"`
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Config{}, fmt.Errorf("config must contain a single YAML document")
		}
		return Config{}, err
	}
	cfg.normalize()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Exchange.Name = strings.ToLower(strings.TrimSpace(c.Exchange.Name))
	c.Exchange.Symbol = strings.ToUpper(strings.TrimSpace(c.Exchange.Symbol))
	c.Exchange.APIKeyPrivateKey = strings.TrimSpace(c.Exchange.APIKeyPrivateKey)
	c.Exchange.BaseURL = strings.TrimRight(strings.TrimSpace(c.Exchange.BaseURL), "/")
	c.Logging.Dir = strings.TrimSpace(c.Logging.Dir)
	c.Logging.ConsoleLevel = strings.ToLower(strings.TrimSpace(c.Logging.ConsoleLevel))
	c.Logging.FileLevel = strings.ToLower(strings.TrimSpace(c.Logging.FileLevel))
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	c.State.Dir = strings.TrimSpace(c.State.Dir)
}

func (c *Config) applyDefaults() {
	if c.Exchange.Name == "" {
		c.Exchange.Name = "lighter"
	}
	if c.Exchange.APIKeyPrivateKey == "" {
		c.Exchange.APIKeyPrivateKey = strings.TrimSpace(os.Getenv("API_KEY_PRIVATE_KEY"))
	}
	if c.Exchange.BaseURL == "" {
		c.Exchange.BaseURL = "https://mainnet.zklighter.elliot.ai"
	}
	if c.Exchange.ChainID == 0 {
		c.Exchange.ChainID = 1
	}
	if c.Exchange.HTTPTimeoutSec == 0 {
		c.Exchange.HTTPTimeoutSec = 15
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
	if c.Logging.ConsoleLevel == "" {
		c.Logging.ConsoleLevel = "info"
	}
	if c.Logging.FileLevel == "" {
		c.Logging.FileLevel = "debug"
	}
	if c.Telegram.TimeoutSec == 0 {
		c.Telegram.TimeoutSec = 10
	}
	if c.Alerts.QueueSize == 0 {
		c.Alerts.QueueSize = 128
	}
	if c.Alerts.RateLimitPerMin == 0 {
		c.Alerts.RateLimitPerMin = 20
	}
	if c.Alerts.BatchIntervalSec == 0 {
		c.Alerts.BatchIntervalSec = 5
	}
	if c.State.Dir == "" {
		c.State.Dir = "state"
	}
	if c.State.LockTakeover == nil {
		enabled := true
		c.State.LockTakeover = &enabled
	}
	if c.State.LockStaleSec == 0 {
		c.State.LockStaleSec = 600
	}
	if c.Check.OrderSize.Cmp(decimal.Zero) == 0 {
		c.Check.OrderSize = Decimal{decimal.RequireFromString("0.01")}
	}
	if c.Check.PriceOffsetPct.Cmp(decimal.Zero) == 0 {
		c.Check.PriceOffsetPct = Decimal{decimal.RequireFromString("20")}
	}
}

func (c Config) Validate() error {
	if c.Exchange.Name != "lighter" {
		return fmt.Errorf("exchange name %q is not supported", c.Exchange.Name)
	}
	if c.Exchange.Symbol == "" {
		return fmt.Errorf("exchange symbol is required")
	}
	if !isValidSymbol(c.Exchange.Symbol) {
		return fmt.Errorf("exchange symbol must match [A-Z0-9], length 1..20")
	}
	if c.Exchange.AccountIndex < 0 {
		return fmt.Errorf("account_index must be >= 0")
	}
	if u, err := url.Parse(c.Exchange.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q is not a valid URL", c.Exchange.BaseURL)
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram chat_id is required when telegram is enabled")
		}
	}
	if c.Check.PlaceTestOrder {
		if c.Check.OrderSize.Cmp(decimal.Zero) <= 0 {
			return fmt.Errorf("check order_size must be > 0")
		}
		if c.Check.PriceOffsetPct.Cmp(decimal.Zero) <= 0 || c.Check.PriceOffsetPct.Cmp(decimal.NewFromInt(100)) >= 0 {
			return fmt.Errorf("check price_offset_pct must be in (0, 100)")
		}
	}
	return nil
}

func isValidSymbol(v string) bool {
	if len(v) == 0 || len(v) > 20 {
		return false
	}
	for _, r := range v {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
