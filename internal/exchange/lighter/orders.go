package lighter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/elliottech/lighter-go/types"
	"github.com/elliottech/lighter-go/types/txtypes"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"perp-gateway/internal/core"
)

const orderExpiryWindow = 24 * time.Hour

func failedResult(req core.OrderRequest, reason string) core.OrderResult {
	return core.OrderResult{
		Success:      false,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Type:         req.Type,
		Size:         req.Size,
		Price:        req.Price,
		Status:       core.OrderRejected,
		ErrorMessage: reason,
		Timestamp:    time.Now().UTC(),
	}
}

// PlaceOrder validates, rounds and submits a new order. Local validation
// failures and venue rejections come back as a failed result; an error means
// the submission outcome is unknown or the transport failed.
func (c *Client) PlaceOrder(ctx context.Context, req core.OrderRequest) (core.OrderResult, error) {
	signer, market, err := c.session()
	if err != nil {
		return core.OrderResult{}, err
	}
	if !strings.EqualFold(req.Symbol, market.info.Symbol) {
		return failedResult(req, fmt.Sprintf("symbol %s not configured, trading %s", req.Symbol, market.info.Symbol)), nil
	}
	if req.Type != core.Limit && req.Type != core.Market {
		return failedResult(req, fmt.Sprintf("unsupported order type %s", req.Type)), nil
	}
	if ok, reason := market.info.ValidateOrder(req.Type, req.Size, req.Price); !ok {
		return failedResult(req, reason), nil
	}

	size := market.info.RoundSize(req.Size)
	price := req.Price
	if req.Type == core.Limit {
		price = market.info.RoundPrice(req.Price)
	}
	if size.Sign() <= 0 {
		return failedResult(req, "size rounds to zero at market precision"), nil
	}

	baseAmount := size.Shift(market.sizeDecimals).IntPart()
	var priceInt uint32
	if req.Type == core.Limit {
		p := price.Shift(market.priceDecimals).IntPart()
		if p <= 0 || p > int64(^uint32(0)) {
			return failedResult(req, "price outside representable range"), nil
		}
		priceInt = uint32(p)
	}

	isAsk := uint8(0)
	if req.Side == core.Sell {
		isAsk = 1
	}
	orderType := uint8(txtypes.LimitOrder)
	timeInForce := uint8(txtypes.GoodTillTime)
	if req.Type == core.Market {
		orderType = uint8(txtypes.MarketOrder)
		timeInForce = uint8(txtypes.ImmediateOrCancel)
	}
	reduceOnly := uint8(0)
	if req.ReduceOnly {
		reduceOnly = 1
	}
	nonce := c.nextNonce()

	txReq := &types.CreateOrderTxReq{
		MarketIndex:      int16(market.marketID),
		ClientOrderIndex: nonce,
		BaseAmount:       baseAmount,
		Price:            priceInt,
		IsAsk:            isAsk,
		Type:             orderType,
		TimeInForce:      timeInForce,
		ReduceOnly:       reduceOnly,
		TriggerPrice:     txtypes.NilOrderTriggerPrice,
		OrderExpiry:      time.Now().Add(orderExpiryWindow).Unix(),
	}
	txJSON, err := signer.SignCreateOrder(txReq)
	if err != nil {
		return core.OrderResult{}, fmt.Errorf("sign order: %w", err)
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/api/v1/orders", nil, txJSON, "")
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && !core.IsTimeout(err) {
			reason := apiMessage(err)
			c.log.WithField("reason", reason).Warn("order rejected")
			return failedResult(req, reason), nil
		}
		return core.OrderResult{}, err
	}

	var resp sendTxResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.OrderResult{}, fmt.Errorf("decode order response: %w", err)
	}
	orderID := strconv.FormatInt(resp.OrderIndex, 10)
	if resp.OrderIndex == 0 {
		orderID = strconv.FormatInt(nonce, 10)
	}

	now := time.Now().UTC()
	info := core.OrderInfo{
		OrderID:       orderID,
		ClientOrderID: strconv.FormatInt(nonce, 10),
		Symbol:        market.info.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Size:          size,
		Price:         price,
		Status:        core.OrderPending,
		RemainingSize: size,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	c.trackOrder(info)

	c.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"side":     req.Side,
		"type":     req.Type,
		"size":     size.String(),
		"price":    price.String(),
	}).Info("order placed")
	if c.alerter != nil {
		c.alerter.Important("order_placed", map[string]string{
			"symbol": market.info.Symbol,
			"side":   string(req.Side),
			"size":   size.String(),
			"price":  price.String(),
			"id":     orderID,
		})
	}

	return core.OrderResult{
		Success:   true,
		OrderID:   orderID,
		Symbol:    market.info.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Size:      size,
		Price:     price,
		Status:    core.OrderPending,
		Timestamp: now,
	}, nil
}

// CancelOrder submits a signed cancellation. A success result is advisory;
// the order is gone only once a query reports it CANCELLED.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (core.OrderResult, error) {
	signer, market, err := c.session()
	if err != nil {
		return core.OrderResult{}, err
	}
	result := core.OrderResult{
		Symbol:    market.info.Symbol,
		Timestamp: time.Now().UTC(),
	}
	if tracked, ok := c.trackedOrder(orderID); ok && tracked.Status.IsTerminal() {
		result.Status = tracked.Status
		result.ErrorMessage = fmt.Sprintf("order already %s", tracked.Status)
		return result, nil
	}
	index, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		result.Status = core.OrderRejected
		result.ErrorMessage = fmt.Sprintf("malformed order id %q", orderID)
		return result, nil
	}

	txJSON, err := signer.SignCancelOrder(&types.CancelOrderTxReq{
		MarketIndex: int16(market.marketID),
		Index:       index,
	})
	if err != nil {
		return core.OrderResult{}, fmt.Errorf("sign cancel: %w", err)
	}
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/v1/orders/cancel", nil, txJSON, ""); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && !core.IsTimeout(err) {
			result.Status = core.OrderRejected
			result.ErrorMessage = apiMessage(err)
			return result, nil
		}
		return core.OrderResult{}, err
	}

	c.markCancelled(orderID, "requested by client")
	c.log.WithField("order_id", orderID).Info("order cancel submitted")

	result.Success = true
	result.OrderID = orderID
	result.Status = core.OrderCancelled
	return result, nil
}

// ModifyOrder is not supported by the venue; amend by cancelling and placing
// a fresh order.
func (c *Client) ModifyOrder(ctx context.Context, orderID string, newPrice, newSize decimal.Decimal) (core.OrderResult, error) {
	return core.OrderResult{
		Success:      false,
		OrderID:      orderID,
		Status:       core.OrderRejected,
		ErrorMessage: "order modification not supported, cancel and re-place",
		Timestamp:    time.Now().UTC(),
	}, nil
}

// GetOrderInfo resolves an order by ID, preferring fresh venue state and
// falling back to the last tracked snapshot. Unknown IDs yield (nil, nil).
func (c *Client) GetOrderInfo(ctx context.Context, orderID string) (*core.OrderInfo, error) {
	if tracked, ok := c.trackedOrder(orderID); ok && tracked.Status.IsTerminal() {
		return &tracked, nil
	}
	active, err := c.GetActiveOrders(ctx, c.symbol)
	if err != nil {
		if tracked, ok := c.trackedOrder(orderID); ok {
			return &tracked, nil
		}
		return nil, err
	}
	for i := range active {
		if active[i].OrderID == orderID || active[i].ClientOrderID == orderID {
			return &active[i], nil
		}
	}
	if tracked, ok := c.trackedOrder(orderID); ok {
		return &tracked, nil
	}
	return nil, nil
}

// GetActiveOrders lists the account's resting orders for the symbol and
// refreshes the tracker with what the venue reports.
func (c *Client) GetActiveOrders(ctx context.Context, symbol string) ([]core.OrderInfo, error) {
	_, market, err := c.session()
	if err != nil {
		return nil, err
	}
	if symbol == "" {
		symbol = market.info.Symbol
	}
	if !strings.EqualFold(symbol, market.info.Symbol) {
		return nil, nil
	}
	token, err := c.authToken()
	if err != nil {
		return nil, fmt.Errorf("auth token: %w", err)
	}
	params := url.Values{}
	params.Set("account_index", strconv.FormatInt(c.accountIndex, 10))
	params.Set("market_id", strconv.Itoa(int(market.marketID)))
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v1/accountActiveOrders", params, "", token)
	if err != nil {
		return nil, err
	}
	var resp activeOrdersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode active orders: %w", err)
	}
	out := make([]core.OrderInfo, 0, len(resp.Orders))
	for _, entry := range resp.Orders {
		info := parseOrderEntry(market.info.Symbol, entry)
		if info.RemainingSize.Sign() <= 0 && info.Status != core.OrderPartiallyFilled {
			continue
		}
		c.trackOrder(info)
		out = append(out, info)
	}
	return out, nil
}

// trackOrder records the latest known state of an order. A terminal status is
// final: later snapshots never downgrade it.
func (c *Client) trackOrder(info core.OrderInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.orders[info.OrderID]; ok {
		if prev.Status.IsTerminal() {
			return
		}
		if info.CreatedAt.IsZero() {
			info.CreatedAt = prev.CreatedAt
		}
	}
	c.orders[info.OrderID] = info
}

func (c *Client) trackedOrder(orderID string) (core.OrderInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, info := range c.orders {
		if id == orderID || info.ClientOrderID == orderID {
			return info, true
		}
	}
	return core.OrderInfo{}, false
}

func (c *Client) markCancelled(orderID, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.orders[orderID]
	if !ok || info.Status.IsTerminal() {
		return
	}
	info.Status = core.OrderCancelled
	info.CancelReason = reason
	info.UpdatedAt = time.Now().UTC()
	c.orders[orderID] = info
}
