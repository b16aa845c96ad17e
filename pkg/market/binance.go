package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quantnest/executor/pkg/indicator"
	"github.com/quantnest/executor/pkg/models"
)

const DefaultBinanceBaseURL = "https://api.binance.com"

// BinanceSource serves crypto prices and klines from the Binance spot REST API.
type BinanceSource struct {
	baseURL string
	fetcher httpFetcher
}

func NewBinanceSource(baseURL string, client *http.Client, requestsPerSecond float64) *BinanceSource {
	if baseURL == "" {
		baseURL = DefaultBinanceBaseURL
	}

	return &BinanceSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: newHTTPFetcher(client, requestsPerSecond, nil),
	}
}

type binanceTicker struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (s *BinanceSource) CurrentPrice(ctx context.Context, symbol string, _ models.MarketType) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", s.baseURL, url.QueryEscape(BinancePair(symbol)))

	var ticker binanceTicker

	err := s.fetcher.getJSON(ctx, endpoint, &ticker)
	if err != nil {
		return 0, fmt.Errorf("binance ticker for %s: %w", symbol, err)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("%w: binance returned %q for %s", ErrPriceUnavailable, ticker.Price, symbol)
	}

	return price, nil
}

// Candles implements indicator.CandleSource using /api/v3/klines.
func (s *BinanceSource) Candles(ctx context.Context, _ models.MarketType, symbol, timeframe string, limit int) ([]indicator.Candle, error) {
	endpoint := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		s.baseURL, url.QueryEscape(BinancePair(symbol)), url.QueryEscape(timeframe), limit)

	var rows [][]json.RawMessage

	err := s.fetcher.getJSON(ctx, endpoint, &rows)
	if err != nil {
		return nil, fmt.Errorf("binance klines for %s %s: %w", symbol, timeframe, err)
	}

	candles := make([]indicator.Candle, 0, len(rows))

	for _, row := range rows {
		candle, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("binance klines for %s %s: %w", symbol, timeframe, err)
		}

		candles = append(candles, candle)
	}

	return candles, nil
}

func parseKline(row []json.RawMessage) (indicator.Candle, error) {
	if len(row) < 6 {
		return indicator.Candle{}, fmt.Errorf("kline has %d fields", len(row))
	}

	var openTime int64

	err := json.Unmarshal(row[0], &openTime)
	if err != nil {
		return indicator.Candle{}, fmt.Errorf("kline open time: %w", err)
	}

	fields := make([]float64, 5)

	for i := range fields {
		var raw string

		err = json.Unmarshal(row[i+1], &raw)
		if err != nil {
			return indicator.Candle{}, fmt.Errorf("kline field %d: %w", i+1, err)
		}

		fields[i], err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return indicator.Candle{}, fmt.Errorf("kline field %d: %w", i+1, err)
		}
	}

	return indicator.Candle{
		OpenTime: time.UnixMilli(openTime).UTC(),
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
	}, nil
}
