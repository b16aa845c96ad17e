package market_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quantnest/executor/pkg/market"
	"github.com/quantnest/executor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func istTime(t *testing.T, value string) time.Time {
	t.Helper()

	parsed, err := time.ParseInLocation("2006-01-02 15:04", value, market.IST)
	require.NoError(t, err)

	return parsed
}

func TestStatusAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		at       string
		open     bool
		message  string
		nextOpen string
	}{
		// 2026-10-16 is a Friday.
		{name: "before open", at: "2026-10-16 09:14", message: "Market opens at 9:15 AM IST", nextOpen: "Today 9:15 AM IST"},
		{name: "at open", at: "2026-10-16 09:15", open: true, message: "Market is open"},
		{name: "at close", at: "2026-10-16 15:30", open: true, message: "Market is open"},
		{name: "friday after close", at: "2026-10-16 15:31", message: "Market is closed for the day", nextOpen: "Monday 9:15 AM IST"},
		{name: "thursday after close", at: "2026-10-15 16:00", message: "Market is closed for the day", nextOpen: "Tomorrow 9:15 AM IST"},
		{name: "saturday", at: "2026-10-17 11:00", message: "Market is closed on Saturdays", nextOpen: "Monday 9:15 AM IST"},
		{name: "sunday", at: "2026-10-18 11:00", message: "Market is closed on Sundays", nextOpen: "Monday 9:15 AM IST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status := market.StatusAt(istTime(t, tt.at))
			assert.Equal(t, tt.open, status.Open)
			assert.Equal(t, tt.message, status.Message)
			assert.Equal(t, tt.nextOpen, status.NextOpen)
		})
	}
}

func TestStatus_ClosedMessage(t *testing.T) {
	t.Parallel()

	status := market.StatusAt(istTime(t, "2026-10-17 10:00"))
	assert.Equal(t, "Cannot execute trade: Market is closed on Saturdays. Next opening: Monday 9:15 AM IST", status.ClosedMessage())
}

func TestAfterCloseAndDayKey(t *testing.T) {
	t.Parallel()

	assert.False(t, market.AfterClose(istTime(t, "2026-10-16 15:29")))
	assert.True(t, market.AfterClose(istTime(t, "2026-10-16 15:30")))

	// 20:00 UTC is already the next day in IST.
	assert.Equal(t, "2026-10-17", market.DayKey(time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)))
}

func TestIsSupported(t *testing.T) {
	t.Parallel()

	assert.True(t, market.IsSupported(models.MarketIndian, "tcs"))
	assert.False(t, market.IsSupported(models.MarketIndian, "BTC"))
	assert.True(t, market.IsSupported(models.MarketCrypto, "BTC"))
	assert.False(t, market.IsSupported(models.MarketCrypto, "TCS"))
	assert.Equal(t, "HDFCBANK", market.NSESymbol("hdfc"))
	assert.Equal(t, "ETHUSDT", market.BinancePair("eth"))
}

func TestNSEQuoteSource(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/quote-equity", r.URL.Path)
		assert.Equal(t, "HDFCBANK", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"priceInfo":{"lastPrice":1543.25}}`))
	}))
	defer server.Close()

	source := market.NewNSEQuoteSource(server.URL, server.Client(), 0)

	price, err := source.CurrentPrice(t.Context(), "HDFC", models.MarketIndian)
	require.NoError(t, err)
	assert.InDelta(t, 1543.25, price, 0.0001)
}

func TestNSEQuoteSource_ErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	source := market.NewNSEQuoteSource(server.URL, server.Client(), 0)

	_, err := source.CurrentPrice(t.Context(), "TCS", models.MarketIndian)
	require.ErrorIs(t, err, market.ErrUnexpectedStatus)
}

func TestBinanceSource(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/ticker/price":
			assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
			_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"67000.50"}`))
		case "/api/v3/klines":
			assert.Equal(t, "5m", r.URL.Query().Get("interval"))
			_, _ = w.Write([]byte(`[
				[1760600000000,"100.0","110.0","90.0","105.0","12.5",1760600299999,"0",1,"0","0","0"],
				[1760600300000,"105.0","115.0","95.0","112.0","7.5",1760600599999,"0",1,"0","0","0"]
			]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	source := market.NewBinanceSource(server.URL, server.Client(), 0)

	price, err := source.CurrentPrice(t.Context(), "BTC", models.MarketCrypto)
	require.NoError(t, err)
	assert.InDelta(t, 67000.5, price, 0.0001)

	candles, err := source.Candles(t.Context(), models.MarketCrypto, "BTC", "5m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.InDelta(t, 112.0, candles[1].Close, 0.0001)
	assert.InDelta(t, 7.5, candles[1].Volume, 0.0001)
	assert.Equal(t, time.UnixMilli(1760600000000).UTC(), candles[0].OpenTime)
}

func TestYahooChartSource(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/TCS.NS", r.URL.Path)
		assert.Equal(t, "5d", r.URL.Query().Get("range"))
		_, _ = w.Write([]byte(`{"chart":{"result":[{"timestamp":[1,2,3],"indicators":{"quote":[{
			"open":[1,2,3],"high":[1,2,3],"low":[1,2,3],"close":[10,null,12],"volume":[5,6,7]
		}]}}],"error":null}}`))
	}))
	defer server.Close()

	source := market.NewYahooChartSource(server.URL, server.Client(), 0)

	candles, err := source.Candles(t.Context(), models.MarketIndian, "TCS", "5m", 10)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.InDelta(t, 12.0, candles[1].Close, 0.0001)

	_, err = source.Candles(t.Context(), models.MarketIndian, "TCS", "4h", 10)
	require.Error(t, err)
}

type staticPrice float64

func (s staticPrice) CurrentPrice(context.Context, string, models.MarketType) (float64, error) {
	return float64(s), nil
}

func TestRoutedPriceSource(t *testing.T) {
	t.Parallel()

	routed := &market.RoutedPriceSource{Indian: staticPrice(1), Crypto: staticPrice(2)}

	indian, err := routed.CurrentPrice(t.Context(), "TCS", models.MarketIndian)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, indian, 0.0001)

	crypto, err := routed.CurrentPrice(t.Context(), "BTC", models.MarketCrypto)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, crypto, 0.0001)

	_, err = (&market.RoutedPriceSource{}).CurrentPrice(t.Context(), "TCS", models.MarketIndian)
	require.ErrorIs(t, err, market.ErrPriceUnavailable)
}
