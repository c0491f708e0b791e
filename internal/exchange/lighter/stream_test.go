package lighter

import (
	"context"
	"sync"
	"testing"
	"time"

	"perp-gateway/internal/core"
)

type alerterSpy struct {
	mu     sync.Mutex
	events []string
}

func (s *alerterSpy) Important(name string, fields map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, name)
}

func (s *alerterSpy) has(name string) bool {
	for _, ev := range s.seen() {
		if ev == name {
			return true
		}
	}
	return false
}

func (s *alerterSpy) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func awaitSubscription(t *testing.T, v *fakeVenue) wsSubscribe {
	t.Helper()
	select {
	case sub := <-v.subscriptions:
		return sub
	case <-time.After(3 * time.Second):
		t.Fatal("no stream subscription received")
		return wsSubscribe{}
	}
}

func TestOrderStreamDeliversUpdates(t *testing.T) {
	v := newFakeVenue()
	defer v.close()
	c := newTestClient(t, v)
	spy := &alerterSpy{}
	c.alerter = spy

	updates := make(chan core.OrderInfo, 8)
	c.SetOrderUpdateHandler(func(info core.OrderInfo) { updates <- info })
	mustConnect(t, c)
	defer c.Disconnect(context.Background())

	sub := awaitSubscription(t, v)
	if sub.Type != "subscribe" {
		t.Fatalf("subscription type = %q", sub.Type)
	}
	if sub.Channel != "account_orders/3/7" {
		t.Fatalf("subscription channel = %q", sub.Channel)
	}
	if sub.Auth != "test-token" {
		t.Fatalf("subscription auth = %q", sub.Auth)
	}

	v.pushOrders([]orderEntry{{
		OrderIndex:          501,
		ClientOrderIndex:    1,
		MarketID:            3,
		InitialBaseAmount:   "0.5",
		FilledBaseAmount:    "0.2",
		RemainingBaseAmount: "0.3",
		AvgFilledPrice:      "2000.50",
		Price:               "2000.50",
		IsAsk:               false,
		Type:                "limit",
		Status:              "partially_filled",
		Timestamp:           time.Now().UnixMilli(),
	}})

	select {
	case info := <-updates:
		if info.OrderID != "501" {
			t.Fatalf("order id = %q", info.OrderID)
		}
		if info.Status != core.OrderPartiallyFilled {
			t.Fatalf("status = %s, want %s", info.Status, core.OrderPartiallyFilled)
		}
		if info.FilledSize.String() != "0.2" || info.RemainingSize.String() != "0.3" {
			t.Fatalf("fill state = %s/%s", info.FilledSize, info.RemainingSize)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("handler never received the update")
	}

	tracked, ok := c.trackedOrder("501")
	if !ok {
		t.Fatal("update not recorded in tracker")
	}
	if tracked.Status != core.OrderPartiallyFilled {
		t.Fatalf("tracked status = %s", tracked.Status)
	}

	v.pushOrders([]orderEntry{{
		OrderIndex:          501,
		ClientOrderIndex:    1,
		MarketID:            3,
		InitialBaseAmount:   "0.5",
		FilledBaseAmount:    "0.5",
		RemainingBaseAmount: "0",
		AvgFilledPrice:      "2000.50",
		Price:               "2000.50",
		IsAsk:               false,
		Type:                "limit",
		Status:              "filled",
		Timestamp:           time.Now().UnixMilli(),
	}})

	select {
	case info := <-updates:
		if info.Status != core.OrderFilled {
			t.Fatalf("status = %s, want %s", info.Status, core.OrderFilled)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("handler never received the fill")
	}

	// The alert fires before the handler for the same frame, so it must be
	// visible by now.
	if !spy.has("order_filled") {
		t.Fatalf("no order_filled alert, saw %v", spy.seen())
	}

	tracked, ok = c.trackedOrder("501")
	if !ok || tracked.Status != core.OrderFilled {
		t.Fatalf("tracker did not record fill: %+v", tracked)
	}
}

func TestOrderStreamTerminalStateStaysSticky(t *testing.T) {
	v := newFakeVenue()
	defer v.close()
	c := newTestClient(t, v)

	updates := make(chan core.OrderInfo, 8)
	c.SetOrderUpdateHandler(func(info core.OrderInfo) { updates <- info })
	mustConnect(t, c)
	defer c.Disconnect(context.Background())
	awaitSubscription(t, v)

	filled := orderEntry{
		OrderIndex:          601,
		ClientOrderIndex:    2,
		MarketID:            3,
		InitialBaseAmount:   "0.1",
		FilledBaseAmount:    "0.1",
		RemainingBaseAmount: "0",
		AvgFilledPrice:      "1999",
		Price:               "1999",
		IsAsk:               true,
		Type:                "limit",
		Status:              "filled",
		Timestamp:           time.Now().UnixMilli(),
	}
	v.pushOrders([]orderEntry{filled})
	select {
	case <-updates:
	case <-time.After(3 * time.Second):
		t.Fatal("fill update not delivered")
	}

	// A stale frame arriving after the fill must not reopen the order.
	stale := filled
	stale.FilledBaseAmount = "0"
	stale.RemainingBaseAmount = "0.1"
	stale.Status = "open"
	v.pushOrders([]orderEntry{stale})
	select {
	case <-updates:
	case <-time.After(3 * time.Second):
		t.Fatal("stale update not delivered")
	}

	tracked, ok := c.trackedOrder("601")
	if !ok || tracked.Status != core.OrderFilled {
		t.Fatalf("terminal state downgraded: %+v", tracked)
	}
}

func TestOrderStreamStartsWhenHandlerSetAfterConnect(t *testing.T) {
	v := newFakeVenue()
	defer v.close()
	c := newTestClient(t, v)
	mustConnect(t, c)
	defer c.Disconnect(context.Background())

	select {
	case <-v.subscriptions:
		t.Fatal("no handler registered, stream must not start")
	case <-time.After(100 * time.Millisecond):
	}

	c.SetOrderUpdateHandler(func(core.OrderInfo) {})
	sub := awaitSubscription(t, v)
	if sub.Channel != "account_orders/3/7" {
		t.Fatalf("subscription channel = %q", sub.Channel)
	}
}
