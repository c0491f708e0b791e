package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"perp-gateway/internal/alert"
	"perp-gateway/internal/config"
	"perp-gateway/internal/core"
	"perp-gateway/internal/exchange"
	"perp-gateway/internal/exchange/lighter"
	"perp-gateway/internal/logging"
	"perp-gateway/internal/store"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config/config.yaml", "config yaml path")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err.Error())
	}

	logs, err := logging.NewManager(logging.Options{
		Dir:          cfg.Logging.Dir,
		ConsoleLevel: cfg.Logging.ConsoleLevel,
		FileLevel:    cfg.Logging.FileLevel,
	})
	if err != nil {
		fatal(err.Error())
	}
	defer logs.Close()
	sysLog := logs.Logger("trader", cfg.Exchange.Name, logging.CategorySystem)

	notifier, err := alert.NewTelegramNotifier(
		cfg.Telegram.Enabled,
		cfg.Telegram.BotToken,
		cfg.Telegram.ChatID,
		time.Duration(cfg.Telegram.TimeoutSec)*time.Second,
	)
	if err != nil {
		fatal(err.Error())
	}
	alerts := alert.NewManagerWithOptions(cfg.Exchange.Name, notifier, sysLog, alert.ManagerOptions{
		QueueSize:     cfg.Alerts.QueueSize,
		RateLimit:     cfg.Alerts.RateLimitPerMin,
		BatchInterval: time.Duration(cfg.Alerts.BatchIntervalSec) * time.Second,
	})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := alerts.Close(closeCtx); err != nil {
			fmt.Fprintf(os.Stderr, "close alert manager failed: %v\n", err)
		}
	}()

	lockTakeover := true
	if cfg.State.LockTakeover != nil {
		lockTakeover = *cfg.State.LockTakeover
	}
	if err := os.MkdirAll(cfg.State.Dir, 0o755); err != nil {
		fatal(err.Error())
	}
	sessionLock, err := store.AcquireSessionLockWithOptions(cfg.State.Dir, cfg.Exchange.Name, cfg.Exchange.AccountIndex, store.LockOptions{
		TakeoverEnabled: lockTakeover,
		StaleAfter:      time.Duration(cfg.State.LockStaleSec) * time.Second,
	})
	if err != nil {
		fatal(err.Error())
	}
	defer func() {
		if relErr := sessionLock.Release(); relErr != nil {
			fmt.Fprintf(os.Stderr, "release session lock failed: %v\n", relErr)
		}
	}()

	tradeLog := logs.Logger("lighter", cfg.Exchange.Name, logging.CategoryTrade)
	client, err := lighter.New(cfg.Exchange, tradeLog, alerts)
	if err != nil {
		fatal(err.Error())
	}
	client.SetOrderUpdateHandler(func(info core.OrderInfo) {
		tradeLog.WithField("order_id", info.OrderID).
			WithField("status", string(info.Status)).
			Info("order update")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Connect(ctx); err != nil {
		fatal(err.Error())
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	if err := printAccountState(ctx, client, cfg.Exchange.Symbol); err != nil {
		sysLog.WithField("error", err.Error()).Error("account snapshot failed")
	}

	if cfg.Check.PlaceTestOrder {
		if err := runOrderCheck(ctx, client, cfg); err != nil {
			alerts.Important("order_check_failed", map[string]string{"error": err.Error()})
			fatal("order check: " + err.Error())
		}
		sysLog.Info("order lifecycle check passed")
		return
	}

	sysLog.Info("trader running, waiting for shutdown signal")
	<-ctx.Done()
}

func printAccountState(ctx context.Context, ex exchange.Exchange, symbol string) error {
	ticker, err := ex.GetTicker(ctx, symbol)
	if err != nil {
		return err
	}
	fmt.Printf("%s last=%s bid=%s ask=%s spread=%s\n",
		symbol, ticker.LastPrice, ticker.BidPrice, ticker.AskPrice, ticker.Spread())

	positions, err := ex.GetAllPositions(ctx)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		fmt.Println("no open positions")
	}
	for _, p := range positions {
		fmt.Printf("position %s %s size=%s entry=%s upnl=%s\n",
			p.Symbol, p.Side, p.Size, p.EntryPrice, p.UnrealizedPnL)
	}

	orders, err := ex.GetActiveOrders(ctx, symbol)
	if err != nil {
		return err
	}
	for _, o := range orders {
		fmt.Printf("order %s %s %s size=%s price=%s filled=%s status=%s\n",
			o.OrderID, o.Side, o.Type, o.Size, o.Price, o.FilledSize, o.Status)
	}
	return nil
}

// runOrderCheck places a resting limit buy far below the market, confirms it
// is visible, cancels it and confirms the cancellation. It proves the whole
// signing and submission path without taking on fill risk.
func runOrderCheck(ctx context.Context, ex exchange.Exchange, cfg config.Config) error {
	symbol := cfg.Exchange.Symbol
	ticker, err := ex.GetTicker(ctx, symbol)
	if err != nil {
		return err
	}
	if ticker.LastPrice.Cmp(decimal.Zero) <= 0 {
		return errors.New("no market price available")
	}

	offset := cfg.Check.PriceOffsetPct.Decimal.Div(decimal.NewFromInt(100))
	price := ex.RoundToTick(symbol, ticker.LastPrice.Mul(decimal.NewFromInt(1).Sub(offset)))
	size := ex.RoundToSize(symbol, cfg.Check.OrderSize.Decimal)

	req := core.OrderRequest{
		Symbol: symbol,
		Side:   core.Buy,
		Type:   core.Limit,
		Size:   size,
		Price:  price,
	}
	if ok, reason := ex.ValidateOrder(ctx, req); !ok {
		return fmt.Errorf("test order invalid: %s", reason)
	}

	result, err := ex.PlaceOrder(ctx, req)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("test order rejected: %s", result.ErrorMessage)
	}
	fmt.Printf("test order placed id=%s price=%s size=%s\n", result.OrderID, result.Price, result.Size)

	info, err := ex.GetOrderInfo(ctx, result.OrderID)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("order %s not found after placement", result.OrderID)
	}
	if info.Status.IsTerminal() {
		return fmt.Errorf("order %s terminal before cancel: %s", result.OrderID, info.Status)
	}

	cancelled, err := ex.CancelOrder(ctx, result.OrderID)
	if err != nil {
		return err
	}
	if !cancelled.Success {
		return fmt.Errorf("cancel rejected: %s", cancelled.ErrorMessage)
	}

	info, err = ex.GetOrderInfo(ctx, result.OrderID)
	if err != nil {
		return err
	}
	if info == nil || info.Status != core.OrderCancelled {
		return fmt.Errorf("order %s not cancelled, state: %+v", result.OrderID, info)
	}
	fmt.Printf("test order cancelled id=%s\n", result.OrderID)
	return nil
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
