package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"perp-gateway/internal/core"
)

// OrderUpdateHandler receives asynchronous order-state changes pushed by the
// venue. Handlers must not block; long work belongs on the caller's side.
type OrderUpdateHandler func(core.OrderInfo)

// Exchange is the capability set every venue adapter exposes. Implementations
// translate the venue's native vocabulary into the core value types so
// strategy code never branches per exchange.
//
// Behavioral contract shared by all implementations:
//
//   - Connect and Disconnect are idempotent.
//   - PlaceOrder and CancelOrder return an error only on transport or
//     protocol failure. Venue-level rejections and local validation failures
//     come back as a failed OrderResult with the reason preserved.
//   - Timeout outcomes satisfy core.IsTimeout and are never conflated with a
//     rejection; an unacknowledged submission is never retried internally.
//   - Queries for unknown orders or flat positions return (nil, nil).
type Exchange interface {
	Name() string

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	PlaceOrder(ctx context.Context, req core.OrderRequest) (core.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) (core.OrderResult, error)
	ModifyOrder(ctx context.Context, orderID string, newPrice, newSize decimal.Decimal) (core.OrderResult, error)
	GetOrderInfo(ctx context.Context, orderID string) (*core.OrderInfo, error)
	GetActiveOrders(ctx context.Context, symbol string) ([]core.OrderInfo, error)

	GetPosition(ctx context.Context, symbol string) (*core.Position, error)
	GetAllPositions(ctx context.Context) ([]core.Position, error)

	GetTicker(ctx context.Context, symbol string) (*core.Ticker, error)
	GetSymbols(ctx context.Context) ([]string, error)
	GetSymbolInfo(ctx context.Context, symbol string) (*core.SymbolInfo, error)

	RoundToTick(symbol string, price decimal.Decimal) decimal.Decimal
	RoundToSize(symbol string, size decimal.Decimal) decimal.Decimal
	ValidateOrder(ctx context.Context, req core.OrderRequest) (bool, string)

	SetOrderUpdateHandler(handler OrderUpdateHandler)
}
