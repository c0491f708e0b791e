package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderType string

type OrderSide string

type OrderStatus string

type PositionSide string

const (
	Limit      OrderType = "LIMIT"
	Market     OrderType = "MARKET"
	StopLimit  OrderType = "STOP_LIMIT"
	StopMarket OrderType = "STOP_MARKET"
)

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

const (
	OrderPending         OrderStatus = "PENDING"
	OrderOpen            OrderStatus = "OPEN"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCancelled       OrderStatus = "CANCELLED"
	OrderRejected        OrderStatus = "REJECTED"
)

const (
	Long  PositionSide = "LONG"
	Short PositionSide = "SHORT"
)

// IsTerminal reports whether the status can never change again.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderRejected:
		return true
	}
	return false
}

// SymbolInfo describes the trading rules of one market. MaxOrderSize and
// MinNotional equal to zero mean the venue does not enforce that bound.
type SymbolInfo struct {
	Symbol            string
	BaseCurrency      string
	QuoteCurrency     string
	PricePrecision    int32
	QuantityPrecision int32
	TickSize          decimal.Decimal
	MinOrderSize      decimal.Decimal
	MaxOrderSize      decimal.Decimal
	MinNotional       decimal.Decimal
	TradingEnabled    bool
}

// OrderRequest carries the caller-supplied parameters of a new order.
// Price is ignored for MARKET orders.
type OrderRequest struct {
	Symbol     string
	Side       OrderSide
	Type       OrderType
	Size       decimal.Decimal
	Price      decimal.Decimal
	ReduceOnly bool
}

// OrderResult is the immediate outcome of a place/cancel attempt. Exactly one
// of OrderID and ErrorMessage is populated: OrderID on success, ErrorMessage
// on failure.
type OrderResult struct {
	Success      bool
	OrderID      string
	Symbol       string
	Side         OrderSide
	Type         OrderType
	Size         decimal.Decimal
	Price        decimal.Decimal
	Status       OrderStatus
	ErrorMessage string
	FilledSize   decimal.Decimal
	Timestamp    time.Time
}

// OrderInfo is the authoritative post-submission view of an order.
// RemainingSize always equals Size minus FilledSize.
type OrderInfo struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Size          decimal.Decimal
	Price         decimal.Decimal
	Status        OrderStatus
	FilledSize    decimal.Decimal
	RemainingSize decimal.Decimal
	AveragePrice  decimal.Decimal
	Fee           decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CancelReason  string
}

func (o OrderInfo) IsFilled() bool {
	return o.Status == OrderFilled
}

func (o OrderInfo) IsOpen() bool {
	return o.Status == OrderOpen || o.Status == OrderPartiallyFilled
}

func (o OrderInfo) FillPercent() decimal.Decimal {
	if o.Size.IsZero() {
		return decimal.Zero
	}
	return o.FilledSize.Div(o.Size).Mul(decimal.NewFromInt(100))
}

// Position is a snapshot of one open position. CurrentPrice, PnL, Leverage,
// Margin and LiquidationPrice are zero when the venue did not report them.
type Position struct {
	Symbol           string
	Side             PositionSide
	Size             decimal.Decimal
	EntryPrice       decimal.Decimal
	CurrentPrice     decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	RealizedPnL      decimal.Decimal
	Leverage         decimal.Decimal
	Margin           decimal.Decimal
	LiquidationPrice decimal.Decimal
	Timestamp        time.Time
}

// NotionalValue is size times the current price, falling back to the entry
// price when no mark price is known.
func (p Position) NotionalValue() decimal.Decimal {
	if p.CurrentPrice.IsZero() {
		return p.Size.Mul(p.EntryPrice)
	}
	return p.Size.Mul(p.CurrentPrice)
}

// Ticker is a point-in-time price snapshot, never mutated after creation.
type Ticker struct {
	Symbol    string
	LastPrice decimal.Decimal
	BidPrice  decimal.Decimal
	AskPrice  decimal.Decimal
	Volume24h decimal.Decimal
	Timestamp time.Time
}

// Spread is ask minus bid, zero when either side of the book is missing.
func (t Ticker) Spread() decimal.Decimal {
	if t.BidPrice.IsZero() || t.AskPrice.IsZero() {
		return decimal.Zero
	}
	return t.AskPrice.Sub(t.BidPrice)
}

func (t Ticker) MidPrice() decimal.Decimal {
	if t.BidPrice.IsZero() || t.AskPrice.IsZero() {
		return t.LastPrice
	}
	return t.BidPrice.Add(t.AskPrice).Div(decimal.NewFromInt(2))
}

// Trade is a single fill of an order.
type Trade struct {
	TradeID   string
	OrderID   string
	Symbol    string
	Side      OrderSide
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	IsMaker   bool
	Timestamp time.Time
}

func (t Trade) TotalValue() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}
