package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quantnest/executor/pkg/models"
	"golang.org/x/time/rate"
)

var (
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

const defaultHTTPTimeout = 10 * time.Second

// PriceSource returns the current traded price of a symbol.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string, market models.MarketType) (float64, error)
}

// RoutedPriceSource dispatches by market.
type RoutedPriceSource struct {
	Indian PriceSource
	Crypto PriceSource
}

func (r *RoutedPriceSource) CurrentPrice(ctx context.Context, symbol string, market models.MarketType) (float64, error) {
	source := r.Indian
	if market == models.MarketCrypto {
		source = r.Crypto
	}

	if source == nil {
		return 0, fmt.Errorf("%w: no price source for %s market", ErrPriceUnavailable, market)
	}

	return source.CurrentPrice(ctx, symbol, market)
}

// httpFetcher is the rate-limited JSON GET shared by the market data clients.
type httpFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	headers map[string]string
}

func newHTTPFetcher(client *http.Client, requestsPerSecond float64, headers map[string]string) httpFetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return httpFetcher{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		headers: headers,
	}
}

func (f httpFetcher) getJSON(ctx context.Context, url string, out any) error {
	err := f.limiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	for key, value := range f.headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return fmt.Errorf("%w %d from %s: %s", ErrUnexpectedStatus, resp.StatusCode, req.URL.Path, body)
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}

	return nil
}
