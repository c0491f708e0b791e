package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"perp-gateway/internal/config"
	"perp-gateway/internal/exchange/lighter"
)

// marketdata is a read-only inspection tool: it lists the venue's markets and
// prints listing rules and the current ticker for the configured symbol. It
// needs no signing key.
func main() {
	var (
		configPath string
		allMarkets bool
	)
	flag.StringVar(&configPath, "config", "config/config.yaml", "config yaml path")
	flag.BoolVar(&allMarkets, "all", false, "list every market instead of just the configured symbol")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err.Error())
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	client, err := lighter.NewReadOnly(cfg.Exchange, logrus.NewEntry(logger))
	if err != nil {
		fatal(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if allMarkets {
		symbols, err := client.GetSymbols(ctx)
		if err != nil {
			fatal(err.Error())
		}
		sort.Strings(symbols)
		for _, s := range symbols {
			fmt.Println(s)
		}
		return
	}

	symbol := cfg.Exchange.Symbol
	info, err := client.GetSymbolInfo(ctx, symbol)
	if err != nil {
		fatal(err.Error())
	}
	fmt.Printf("symbol        %s/%s\n", info.BaseCurrency, info.QuoteCurrency)
	fmt.Printf("tick size     %s\n", info.TickSize)
	fmt.Printf("size decimals %d\n", info.QuantityPrecision)
	fmt.Printf("min size      %s\n", info.MinOrderSize)
	fmt.Printf("min notional  %s\n", info.MinNotional)
	fmt.Printf("tradable      %v\n", info.TradingEnabled)

	ticker, err := client.GetTicker(ctx, symbol)
	if err != nil {
		fatal(err.Error())
	}
	fmt.Printf("last          %s\n", ticker.LastPrice)
	fmt.Printf("bid/ask       %s / %s\n", ticker.BidPrice, ticker.AskPrice)
	fmt.Printf("spread        %s\n", ticker.Spread())
	fmt.Printf("mid           %s\n", ticker.MidPrice())
	fmt.Printf("volume 24h    %s\n", ticker.Volume24h)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
