package market

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quantnest/executor/pkg/indicator"
	"github.com/quantnest/executor/pkg/models"
)

const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

var yahooRanges = map[string]string{
	"1m":  "5d",
	"5m":  "5d",
	"15m": "1mo",
	"1h":  "3mo",
}

// YahooChartSource serves NSE candles from the Yahoo Finance chart API.
type YahooChartSource struct {
	baseURL string
	fetcher httpFetcher
}

func NewYahooChartSource(baseURL string, client *http.Client, requestsPerSecond float64) *YahooChartSource {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}

	return &YahooChartSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: newHTTPFetcher(client, requestsPerSecond, map[string]string{
			"User-Agent": "Mozilla/5.0 (quantnest-executor)",
		}),
	}
}

type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (s *YahooChartSource) Candles(ctx context.Context, _ models.MarketType, symbol, timeframe string, limit int) ([]indicator.Candle, error) {
	chartRange, ok := yahooRanges[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		s.baseURL, url.PathEscape(NSESymbol(symbol)+".NS"), url.QueryEscape(timeframe), chartRange)

	var chart yahooChart

	err := s.fetcher.getJSON(ctx, endpoint, &chart)
	if err != nil {
		return nil, fmt.Errorf("yahoo chart for %s %s: %w", symbol, timeframe, err)
	}

	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart for %s: %s", symbol, chart.Chart.Error.Description)
	}

	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo chart for %s: empty result", symbol)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	candles := make([]indicator.Candle, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		closePrice := at(quote.Close, i)
		if closePrice == nil {
			continue
		}

		candles = append(candles, indicator.Candle{
			OpenTime: time.Unix(ts, 0).UTC(),
			Open:     deref(at(quote.Open, i)),
			High:     deref(at(quote.High, i)),
			Low:      deref(at(quote.Low, i)),
			Close:    *closePrice,
			Volume:   deref(at(quote.Volume, i)),
		})
	}

	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	return candles, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}

	return values[i]
}

func deref(value *float64) float64 {
	if value == nil {
		return 0
	}

	return *value
}

// RoutedCandleSource dispatches candle requests by market.
type RoutedCandleSource struct {
	Indian indicator.CandleSource
	Crypto indicator.CandleSource
}

func (r *RoutedCandleSource) Candles(ctx context.Context, market models.MarketType, symbol, timeframe string, limit int) ([]indicator.Candle, error) {
	source := r.Indian
	if market == models.MarketCrypto {
		source = r.Crypto
	}

	if source == nil {
		return nil, fmt.Errorf("no candle source for %s market", market)
	}

	return source.Candles(ctx, market, symbol, timeframe, limit)
}
