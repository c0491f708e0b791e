package lighter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"perp-gateway/internal/alert"
	"perp-gateway/internal/config"
	"perp-gateway/internal/core"
	"perp-gateway/internal/exchange"
)

const authTokenTTL = 10 * time.Minute

// Client talks to the Lighter zk-rollup perpetuals venue. Reads go over plain
// REST; order mutations are signed locally by the txSigner and submitted as
// transaction payloads.
type Client struct {
	symbol       string
	baseURL      string
	accountIndex int64
	apiKeyIndex  uint8
	chainID      uint32
	privateKey   string
	httpClient   *http.Client
	log          *logrus.Entry
	alerter      alert.Alerter

	// newSigner is swapped out in tests.
	newSigner func() (txSigner, error)

	mu        sync.Mutex
	connected bool
	signer    txSigner
	market    *marketConfig
	orders    map[string]core.OrderInfo
	handler   exchange.OrderUpdateHandler
	stream    *orderStream

	lastNonce atomic.Int64
}

// marketConfig is the venue-side view of the traded market, fetched once on
// Connect and reused for rounding and fixed-point conversion.
type marketConfig struct {
	info          core.SymbolInfo
	marketID      uint8
	priceDecimals int32
	sizeDecimals  int32
}

func New(cfg config.ExchangeConfig, log *logrus.Entry, alerter alert.Alerter) (*Client, error) {
	if cfg.APIKeyPrivateKey == "" {
		return nil, fmt.Errorf("%w: api key private key required", core.ErrConfig)
	}
	return newClient(cfg, log, alerter)
}

// NewReadOnly builds a client for the public market-data endpoints. Connect
// and every signing operation fail on it; queries like GetSymbols, GetTicker
// and GetSymbolInfo work without credentials.
func NewReadOnly(cfg config.ExchangeConfig, log *logrus.Entry) (*Client, error) {
	return newClient(cfg, log, nil)
}

func newClient(cfg config.ExchangeConfig, log *logrus.Entry, alerter alert.Alerter) (*Client, error) {
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol required", core.ErrConfig)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base_url required", core.ErrConfig)
	}
	timeout := 15 * time.Second
	if cfg.HTTPTimeoutSec > 0 {
		timeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
	}
	c := &Client{
		symbol:       strings.ToUpper(cfg.Symbol),
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		accountIndex: cfg.AccountIndex,
		apiKeyIndex:  cfg.APIKeyIndex,
		chainID:      cfg.ChainID,
		privateKey:   cfg.APIKeyPrivateKey,
		httpClient:   &http.Client{Timeout: timeout},
		log:          log,
		alerter:      alerter,
		orders:       make(map[string]core.OrderInfo),
	}
	c.newSigner = func() (txSigner, error) {
		return newSDKSigner(c.baseURL, c.privateKey, c.chainID, c.apiKeyIndex, c.accountIndex)
	}
	c.lastNonce.Store(time.Now().UnixMilli())
	return c, nil
}

var _ exchange.Exchange = (*Client)(nil)

func (c *Client) Name() string { return "lighter" }

// Connect verifies the signing key against the venue and loads the market
// configuration for the traded symbol. Calling it on a connected client is a
// no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	signer, err := c.newSigner()
	if err != nil {
		return errors.Join(core.ErrConnection, err)
	}
	if err := signer.Check(); err != nil {
		return errors.Join(core.ErrConnection, fmt.Errorf("api key check: %w", err))
	}
	market, err := c.fetchMarketConfig(ctx, c.symbol)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.signer = signer
	c.market = market
	c.connected = true
	handler := c.handler
	c.mu.Unlock()

	if handler != nil {
		c.startStream(market.marketID)
	}
	c.log.WithFields(logrus.Fields{
		"symbol":    c.symbol,
		"market_id": market.marketID,
		"account":   c.accountIndex,
	}).Info("connected")
	return nil
}

// Disconnect releases the session. Safe to call when never connected.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	wasConnected := c.connected
	c.connected = false
	c.signer = nil
	c.mu.Unlock()

	if stream != nil {
		stream.stop()
	}
	if wasConnected {
		c.log.Info("disconnected")
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SetOrderUpdateHandler registers the push callback for order state changes.
// When set before Connect, the update stream starts with the session.
func (c *Client) SetOrderUpdateHandler(handler exchange.OrderUpdateHandler) {
	c.mu.Lock()
	c.handler = handler
	connected := c.connected
	var marketID uint8
	if c.market != nil {
		marketID = c.market.marketID
	}
	hasStream := c.stream != nil
	c.mu.Unlock()

	if handler != nil && connected && !hasStream {
		c.startStream(marketID)
	}
}

func (c *Client) session() (txSigner, *marketConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.signer == nil || c.market == nil {
		return nil, nil, core.ErrNotConnected
	}
	return c.signer, c.market, nil
}

// nextNonce yields a strictly increasing client order index.
func (c *Client) nextNonce() int64 {
	for {
		prev := c.lastNonce.Load()
		next := time.Now().UnixMilli()
		if next <= prev {
			next = prev + 1
		}
		if c.lastNonce.CompareAndSwap(prev, next) {
			return next
		}
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, body string, authToken string) ([]byte, error) {
	urlStr := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		urlStr += "?" + encoded
	}
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set("Authorization", authToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransportErr(method, path, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapTransportErr(method, path, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

func parseAPIError(status int, body []byte) error {
	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return classifyAPIError(payload.Code, payload.Message)
	}
	return &APIError{Code: status, Message: strings.TrimSpace(string(body))}
}

// wrapTransportErr tags request failures so callers can tell a timed out
// submission (outcome unknown) from a refused connection.
func wrapTransportErr(method, path string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return errors.Join(core.ErrTimeout, fmt.Errorf("%s %s: %w", method, path, err))
	}
	return errors.Join(core.ErrConnection, fmt.Errorf("%s %s: %w", method, path, err))
}

func (c *Client) authToken() (string, error) {
	c.mu.Lock()
	signer := c.signer
	c.mu.Unlock()
	if signer == nil {
		return "", core.ErrNotConnected
	}
	return signer.AuthToken(time.Now().Add(authTokenTTL))
}

// fetchMarketConfig loads the symbol's listing parameters from the venue's
// order book catalogue.
func (c *Client) fetchMarketConfig(ctx context.Context, symbol string) (*marketConfig, error) {
	entry, err := c.findOrderBook(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &marketConfig{
		info:          parseSymbolInfo(*entry),
		marketID:      entry.MarketID,
		priceDecimals: entry.SupportedPriceDecimals,
		sizeDecimals:  entry.SupportedSizeDecimals,
	}, nil
}

func (c *Client) findOrderBook(ctx context.Context, symbol string) (*orderBookEntry, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v1/orderBooks", nil, "", "")
	if err != nil {
		return nil, err
	}
	var resp orderBooksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode order books: %w", err)
	}
	for i := range resp.OrderBooks {
		if strings.EqualFold(resp.OrderBooks[i].Symbol, symbol) {
			return &resp.OrderBooks[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", core.ErrSymbolNotFound, symbol)
}

// RefreshSymbolInfo refetches the traded market's listing parameters and
// replaces the cached entry whole, never field by field.
func (c *Client) RefreshSymbolInfo(ctx context.Context) error {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return core.ErrNotConnected
	}
	market, err := c.fetchMarketConfig(ctx, c.symbol)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.market = market
	c.mu.Unlock()
	return nil
}

// GetSymbolInfo returns listing parameters for any symbol the venue carries.
// The traded symbol is served from the session cache.
func (c *Client) GetSymbolInfo(ctx context.Context, symbol string) (*core.SymbolInfo, error) {
	symbol = strings.ToUpper(symbol)
	c.mu.Lock()
	if c.market != nil && c.market.info.Symbol == symbol {
		info := c.market.info
		c.mu.Unlock()
		return &info, nil
	}
	c.mu.Unlock()

	entry, err := c.findOrderBook(ctx, symbol)
	if err != nil {
		return nil, err
	}
	info := parseSymbolInfo(*entry)
	return &info, nil
}

func (c *Client) GetSymbols(ctx context.Context) ([]string, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v1/orderBooks", nil, "", "")
	if err != nil {
		return nil, err
	}
	var resp orderBooksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode order books: %w", err)
	}
	symbols := make([]string, 0, len(resp.OrderBooks))
	for _, ob := range resp.OrderBooks {
		symbols = append(symbols, ob.Symbol)
	}
	return symbols, nil
}

func (c *Client) GetTicker(ctx context.Context, symbol string) (*core.Ticker, error) {
	symbol = strings.ToUpper(symbol)
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v1/orderBookDetails", nil, "", "")
	if err != nil {
		return nil, err
	}
	var resp orderBookDetailsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode order book details: %w", err)
	}
	for _, d := range resp.OrderBookDetails {
		if strings.EqualFold(d.Symbol, symbol) {
			return &core.Ticker{
				Symbol:    symbol,
				LastPrice: parseDecimal(d.LastTradePrice),
				BidPrice:  parseDecimal(d.BestBid),
				AskPrice:  parseDecimal(d.BestAsk),
				Volume24h: parseDecimal(d.DailyBaseVolume),
				Timestamp: time.Now().UTC(),
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", core.ErrSymbolNotFound, symbol)
}

// RoundToTick snaps a price to the traded market's tick grid. Prices for
// other symbols pass through unchanged.
func (c *Client) RoundToTick(symbol string, price decimal.Decimal) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.market == nil || !strings.EqualFold(symbol, c.market.info.Symbol) {
		return price
	}
	return c.market.info.RoundPrice(price)
}

// RoundToSize truncates a size to the traded market's precision, never up.
func (c *Client) RoundToSize(symbol string, size decimal.Decimal) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.market == nil || !strings.EqualFold(symbol, c.market.info.Symbol) {
		return size
	}
	return c.market.info.RoundSize(size)
}

func (c *Client) ValidateOrder(ctx context.Context, req core.OrderRequest) (bool, string) {
	info, err := c.GetSymbolInfo(ctx, req.Symbol)
	if err != nil {
		return false, fmt.Sprintf("symbol info unavailable: %v", err)
	}
	return info.ValidateOrder(req.Type, req.Size, req.Price)
}

func (c *Client) GetPosition(ctx context.Context, symbol string) (*core.Position, error) {
	positions, err := c.GetAllPositions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range positions {
		if strings.EqualFold(positions[i].Symbol, symbol) {
			return &positions[i], nil
		}
	}
	return nil, nil
}

// GetAllPositions lists every non-flat position on the account. Flat markets
// are omitted entirely.
func (c *Client) GetAllPositions(ctx context.Context) ([]core.Position, error) {
	if _, _, err := c.session(); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("by", "index")
	params.Set("value", strconv.FormatInt(c.accountIndex, 10))
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v1/account", params, "", "")
	if err != nil {
		return nil, err
	}
	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	if len(resp.Accounts) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	var out []core.Position
	for _, p := range resp.Accounts[0].Positions {
		size := parseDecimal(p.Position)
		if size.IsZero() {
			continue
		}
		side := core.Long
		if size.IsNegative() {
			side = core.Short
			size = size.Abs()
		}
		out = append(out, core.Position{
			Symbol:        strings.ToUpper(p.Symbol),
			Side:          side,
			Size:          size,
			EntryPrice:    parseDecimal(p.AvgEntryPrice),
			UnrealizedPnL: parseDecimal(p.UnrealizedPnL),
			RealizedPnL:   parseDecimal(p.RealizedPnL),
			Timestamp:     now,
		})
	}
	return out, nil
}
