package cmd

import (
	"log/slog"
	"net/http"

	"github.com/quantnest/executor/pkg/indicator"
	"github.com/quantnest/executor/pkg/market"
	"github.com/quantnest/executor/pkg/trigger"
)

const (
	nseRequestsPerSecond     = 2
	binanceRequestsPerSecond = 10
	yahooRequestsPerSecond   = 4
)

// MarketData bundles the price feeds, the indicator engine and the trigger evaluators built on them.
type MarketData struct {
	Prices     *market.RoutedPriceSource
	Engine     *indicator.CandleEngine
	PriceCheck *trigger.PriceEvaluator
	Conditions *trigger.ConditionalEvaluator
}

// NewMarketData serves Indian quotes from NSE and Indian candles from Yahoo; crypto uses Binance
// for both.
func NewMarketData(logger *slog.Logger, client *http.Client) *MarketData {
	binance := market.NewBinanceSource("", client, binanceRequestsPerSecond)

	prices := &market.RoutedPriceSource{
		Indian: market.NewNSEQuoteSource("", client, nseRequestsPerSecond),
		Crypto: binance,
	}

	engine := indicator.NewCandleEngine(logger, &market.RoutedCandleSource{
		Indian: market.NewYahooChartSource("", client, yahooRequestsPerSecond),
		Crypto: binance,
	})

	return &MarketData{
		Prices:     prices,
		Engine:     engine,
		PriceCheck: trigger.NewPriceEvaluator(logger, prices),
		Conditions: trigger.NewConditionalEvaluator(logger, engine, prices),
	}
}
