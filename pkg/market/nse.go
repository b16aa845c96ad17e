package market

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/quantnest/executor/pkg/models"
)

const DefaultNSEBaseURL = "https://www.nseindia.com"

// NSEQuoteSource reads last traded prices from the NSE equity quote endpoint.
type NSEQuoteSource struct {
	baseURL string
	fetcher httpFetcher
}

func NewNSEQuoteSource(baseURL string, client *http.Client, requestsPerSecond float64) *NSEQuoteSource {
	if baseURL == "" {
		baseURL = DefaultNSEBaseURL
	}

	return &NSEQuoteSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: newHTTPFetcher(client, requestsPerSecond, map[string]string{
			"User-Agent": "Mozilla/5.0 (quantnest-executor)",
		}),
	}
}

type nseQuote struct {
	PriceInfo struct {
		LastPrice float64 `json:"lastPrice"`
	} `json:"priceInfo"`
}

func (s *NSEQuoteSource) CurrentPrice(ctx context.Context, symbol string, _ models.MarketType) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/quote-equity?symbol=%s", s.baseURL, url.QueryEscape(NSESymbol(symbol)))

	var quote nseQuote

	err := s.fetcher.getJSON(ctx, endpoint, &quote)
	if err != nil {
		return 0, fmt.Errorf("nse quote for %s: %w", symbol, err)
	}

	if quote.PriceInfo.LastPrice <= 0 {
		return 0, fmt.Errorf("%w: nse returned no price for %s", ErrPriceUnavailable, symbol)
	}

	return quote.PriceInfo.LastPrice, nil
}
