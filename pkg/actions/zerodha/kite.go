package zerodha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quantnest/executor/pkg/actions/broker"
	"golang.org/x/time/rate"
)

const (
	DefaultKiteURL = "https://api.kite.trade"
	kiteVersion    = "3"
	// Kite Connect allows 10 order requests per second per API key.
	kiteOrdersPerSecond = 10
)

// KiteClient places regular market orders through Kite Connect.
type KiteClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewKiteClient(baseURL string, client *http.Client) *KiteClient {
	if baseURL == "" {
		baseURL = DefaultKiteURL
	}

	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return &KiteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(kiteOrdersPerSecond), 1),
	}
}

type kiteResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type"`
	Data      struct {
		OrderID string `json:"order_id"`
	} `json:"data"`
}

func (k *KiteClient) PlaceOrder(ctx context.Context, order broker.Order) (string, error) {
	err := k.limiter.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	form := url.Values{}
	form.Set("tradingsymbol", order.Symbol)
	form.Set("exchange", order.Exchange)
	form.Set("transaction_type", strings.ToUpper(order.Side))
	form.Set("order_type", "MARKET")
	form.Set("quantity", strconv.FormatFloat(order.Quantity, 'f', -1, 64))
	form.Set("product", "CNC")
	form.Set("validity", "DAY")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseURL+"/orders/regular", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build order request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Kite-Version", kiteVersion)
	req.Header.Set("Authorization", "token "+order.APIKey+":"+order.AccessToken)

	resp, err := k.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("kite order request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read kite response: %w", err)
	}

	var decoded kiteResponse

	err = json.Unmarshal(body, &decoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode kite response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || decoded.Status != "success" {
		return "", fmt.Errorf("%w: %s %s", broker.ErrOrderRejected, decoded.ErrorType, decoded.Message)
	}

	return decoded.Data.OrderID, nil
}
