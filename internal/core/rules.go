package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RoundPrice rounds a price to the nearest multiple of the symbol's tick
// size. Ties round half-up regardless of order side; the rule is applied
// consistently everywhere a price touches the wire.
func (s SymbolInfo) RoundPrice(price decimal.Decimal) decimal.Decimal {
	if s.TickSize.Cmp(decimal.Zero) <= 0 {
		return price
	}
	return price.DivRound(s.TickSize, 0).Mul(s.TickSize)
}

// RoundSize rounds a size down to the symbol's quantity precision, never up,
// so a rounded order cannot exceed the requested exposure.
func (s SymbolInfo) RoundSize(size decimal.Decimal) decimal.Decimal {
	return size.RoundDown(s.QuantityPrecision)
}

// RoundDownToStep rounds value down to the nearest multiple of step.
func RoundDownToStep(value, step decimal.Decimal) decimal.Decimal {
	if step.Cmp(decimal.Zero) <= 0 {
		return value
	}
	return value.Div(step).Floor().Mul(step)
}

// ValidateOrder checks order parameters against the symbol's rules. Checks
// run in a fixed order and the first violation wins. The returned reason is
// empty exactly when the order is valid.
func (s SymbolInfo) ValidateOrder(orderType OrderType, size, price decimal.Decimal) (bool, string) {
	if !s.TradingEnabled {
		return false, fmt.Sprintf("symbol %s is not currently tradable", s.Symbol)
	}
	if size.Cmp(decimal.Zero) <= 0 {
		return false, "size must be positive"
	}
	if s.MinOrderSize.Cmp(decimal.Zero) > 0 && size.Cmp(s.MinOrderSize) < 0 {
		return false, fmt.Sprintf("size %s below minimum order size %s", size, s.MinOrderSize)
	}
	if s.MaxOrderSize.Cmp(decimal.Zero) > 0 && size.Cmp(s.MaxOrderSize) > 0 {
		return false, fmt.Sprintf("size %s above maximum order size %s", size, s.MaxOrderSize)
	}
	if orderType == Limit || orderType == StopLimit {
		if price.Cmp(decimal.Zero) <= 0 {
			return false, "price must be positive for limit orders"
		}
		if s.RoundPrice(price).Cmp(decimal.Zero) <= 0 {
			return false, fmt.Sprintf("price %s rounds to zero at tick size %s", price, s.TickSize)
		}
	}
	if s.MinNotional.Cmp(decimal.Zero) > 0 && price.Cmp(decimal.Zero) > 0 {
		notional := price.Mul(size)
		if notional.Cmp(s.MinNotional) < 0 {
			return false, fmt.Sprintf("notional %s below minimum %s", notional, s.MinNotional)
		}
	}
	return true, ""
}
