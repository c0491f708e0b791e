package lighter

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"perp-gateway/internal/core"
)

const (
	streamDialTimeout  = 10 * time.Second
	streamReadDeadline = 90 * time.Second
	streamMaxBackoff   = 30 * time.Second
)

// orderStream maintains the account-orders websocket subscription and feeds
// updates into the tracker and the registered handler. It reconnects with
// backoff until stopped.
type orderStream struct {
	client   *Client
	marketID uint8
	cancel   context.CancelFunc
	done     chan struct{}

	once sync.Once
}

type wsSubscribe struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Auth    string `json:"auth,omitempty"`
}

type wsMessage struct {
	Type    string       `json:"type"`
	Channel string       `json:"channel"`
	Orders  []orderEntry `json:"orders"`
}

func (c *Client) startStream(marketID uint8) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &orderStream{
		client:   c,
		marketID: marketID,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	c.mu.Lock()
	if c.stream != nil {
		c.mu.Unlock()
		cancel()
		return
	}
	c.stream = s
	c.mu.Unlock()
	go s.run(ctx)
}

func (s *orderStream) stop() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// wsURL derives the stream endpoint from the REST base.
func (s *orderStream) wsURL() string {
	base := s.client.baseURL
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/stream"
}

func (s *orderStream) run(ctx context.Context) {
	defer close(s.done)
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.client.log.WithField("error", err.Error()).Warn("order stream dropped, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > streamMaxBackoff {
			backoff = streamMaxBackoff
		}
	}
}

func (s *orderStream) consume(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, streamDialTimeout)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.wsURL(), nil)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	token, err := s.client.authToken()
	if err != nil {
		return err
	}
	sub := wsSubscribe{
		Type:    "subscribe",
		Channel: "account_orders/" + strconv.Itoa(int(s.marketID)) + "/" + strconv.FormatInt(s.client.accountIndex, 10),
		Auth:    token,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	readerDone := make(chan struct{})
	defer close(readerDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-readerDone:
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(streamReadDeadline))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg wsMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		if !strings.HasPrefix(msg.Type, "update") {
			continue
		}
		s.dispatch(msg.Orders)
	}
}

func (s *orderStream) dispatch(entries []orderEntry) {
	c := s.client
	c.mu.Lock()
	handler := c.handler
	symbol := c.symbol
	c.mu.Unlock()

	for _, entry := range entries {
		info := parseOrderEntry(symbol, entry)
		c.trackOrder(info)
		if info.Status == core.OrderFilled || info.Status == core.OrderPartiallyFilled {
			trade := fillTrade(info)
			c.log.WithFields(map[string]interface{}{
				"order_id": trade.OrderID,
				"status":   info.Status,
				"filled":   trade.Quantity.String(),
				"value":    trade.TotalValue().String(),
			}).Info("order fill update")
			if c.alerter != nil && info.Status == core.OrderFilled {
				c.alerter.Important("order_filled", map[string]string{
					"symbol": info.Symbol,
					"side":   string(info.Side),
					"size":   info.FilledSize.String(),
					"price":  info.AveragePrice.String(),
					"id":     info.OrderID,
				})
			}
		}
		if handler != nil {
			handler(info)
		}
	}
}

// fillTrade derives the executed-trade view of an order update. The venue
// stream reports cumulative fill state, so price is the average fill price
// and quantity the total filled so far.
func fillTrade(info core.OrderInfo) core.Trade {
	return core.Trade{
		OrderID:   info.OrderID,
		Symbol:    info.Symbol,
		Side:      info.Side,
		Price:     info.AveragePrice,
		Quantity:  info.FilledSize,
		Timestamp: info.UpdatedAt,
	}
}
