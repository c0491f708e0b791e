package lighter

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"perp-gateway/internal/core"
)

// Wire shapes of the venue's REST surface. Amounts arrive as decimal strings
// and are parsed exactly; nothing in this package touches float64 for money.

type orderBooksResponse struct {
	Code       int              `json:"code"`
	OrderBooks []orderBookEntry `json:"order_books"`
}

type orderBookEntry struct {
	Symbol                 string `json:"symbol"`
	MarketID               uint8  `json:"market_id"`
	SupportedPriceDecimals int32  `json:"supported_price_decimals"`
	SupportedSizeDecimals  int32  `json:"supported_size_decimals"`
	MinBaseAmount          string `json:"min_base_amount"`
	MinQuoteAmount         string `json:"min_quote_amount"`
	Status                 string `json:"status"`
}

type orderBookDetailsResponse struct {
	Code             int                `json:"code"`
	OrderBookDetails []orderBookDetails `json:"order_book_details"`
}

type orderBookDetails struct {
	Symbol          string `json:"symbol"`
	LastTradePrice  string `json:"last_trade_price"`
	BestBid         string `json:"best_bid"`
	BestAsk         string `json:"best_ask"`
	DailyBaseVolume string `json:"daily_base_token_volume"`
}

type activeOrdersResponse struct {
	Code   int          `json:"code"`
	Orders []orderEntry `json:"orders"`
}

type orderEntry struct {
	OrderIndex          int64  `json:"order_index"`
	ClientOrderIndex    int64  `json:"client_order_index"`
	MarketID            uint8  `json:"market_id"`
	InitialBaseAmount   string `json:"initial_base_amount"`
	FilledBaseAmount    string `json:"filled_base_amount"`
	RemainingBaseAmount string `json:"remaining_base_amount"`
	AvgFilledPrice      string `json:"avg_filled_price"`
	Price               string `json:"price"`
	IsAsk               bool   `json:"is_ask"`
	Type                string `json:"type"`
	Status              string `json:"status"`
	Timestamp           int64  `json:"timestamp"`
}

type accountResponse struct {
	Code     int            `json:"code"`
	Accounts []accountEntry `json:"accounts"`
}

type accountEntry struct {
	Positions []positionEntry `json:"positions"`
}

type positionEntry struct {
	Symbol        string `json:"symbol"`
	MarketID      uint8  `json:"market_id"`
	Position      string `json:"position"`
	AvgEntryPrice string `json:"avg_entry_price"`
	UnrealizedPnL string `json:"unrealized_pnl"`
	RealizedPnL   string `json:"realized_pnl"`
}

type sendTxResponse struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	TxHash     string `json:"tx_hash"`
	OrderIndex int64  `json:"order_index"`
}

// mapOrderStatus translates the venue's status vocabulary into the common
// progression. Unknown values conservatively map to PENDING so a new venue
// status never looks terminal.
func mapOrderStatus(v string) core.OrderStatus {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "pending", "in-progress":
		return core.OrderPending
	case "open", "active", "resting":
		return core.OrderOpen
	case "partially_filled", "partially-filled", "partial":
		return core.OrderPartiallyFilled
	case "filled", "executed":
		return core.OrderFilled
	case "canceled", "cancelled", "canceled-expired", "expired":
		return core.OrderCancelled
	case "rejected", "failed":
		return core.OrderRejected
	}
	return core.OrderPending
}

func mapOrderType(v string) core.OrderType {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "market":
		return core.Market
	case "stop_limit", "stop-limit":
		return core.StopLimit
	case "stop_market", "stop-market":
		return core.StopMarket
	}
	return core.Limit
}

// parseOrderEntry maps one venue order into the uniform OrderInfo shape.
func parseOrderEntry(symbol string, src orderEntry) core.OrderInfo {
	size := parseDecimal(src.InitialBaseAmount)
	filled := parseDecimal(src.FilledBaseAmount)
	remaining := parseDecimal(src.RemainingBaseAmount)
	if remaining.IsZero() && filled.Cmp(size) < 0 {
		remaining = size.Sub(filled)
	}
	side := core.Buy
	if src.IsAsk {
		side = core.Sell
	}
	info := core.OrderInfo{
		OrderID:       strconv.FormatInt(src.OrderIndex, 10),
		ClientOrderID: strconv.FormatInt(src.ClientOrderIndex, 10),
		Symbol:        symbol,
		Side:          side,
		Type:          mapOrderType(src.Type),
		Size:          size,
		Price:         parseDecimal(src.Price),
		Status:        mapOrderStatus(src.Status),
		FilledSize:    filled,
		RemainingSize: remaining,
		AveragePrice:  parseDecimal(src.AvgFilledPrice),
	}
	if src.Timestamp > 0 {
		info.UpdatedAt = time.UnixMilli(src.Timestamp)
	}
	return info
}

func parseSymbolInfo(src orderBookEntry) core.SymbolInfo {
	tick := decimal.New(1, -src.SupportedPriceDecimals)
	return core.SymbolInfo{
		Symbol:            src.Symbol,
		BaseCurrency:      src.Symbol,
		QuoteCurrency:     "USDC",
		PricePrecision:    src.SupportedPriceDecimals,
		QuantityPrecision: src.SupportedSizeDecimals,
		TickSize:          tick,
		MinOrderSize:      parseDecimal(src.MinBaseAmount),
		MinNotional:       parseDecimal(src.MinQuoteAmount),
		TradingEnabled:    strings.EqualFold(src.Status, "active"),
	}
}

func parseDecimal(v string) decimal.Decimal {
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}
