package groww

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quantnest/executor/pkg/actions/broker"
	"golang.org/x/time/rate"
)

const (
	DefaultAPIURL        = "https://api.groww.in"
	growwOrdersPerSecond = 10
)

// Client places CNC market orders through the Groww trade API.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewClient(baseURL string, client *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}

	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(growwOrdersPerSecond), 1),
	}
}

type orderRequest struct {
	TradingSymbol    string  `json:"trading_symbol"`
	Quantity         float64 `json:"quantity"`
	Validity         string  `json:"validity"`
	Exchange         string  `json:"exchange"`
	Segment          string  `json:"segment"`
	Product          string  `json:"product"`
	OrderType        string  `json:"order_type"`
	TransactionType  string  `json:"transaction_type"`
	OrderReferenceID string  `json:"order_reference_id"`
}

type orderResponse struct {
	Status  string `json:"status"`
	Payload struct {
		OrderID     string `json:"groww_order_id"`
		OrderStatus string `json:"order_status"`
	} `json:"payload"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) PlaceOrder(ctx context.Context, order broker.Order) (string, error) {
	err := c.limiter.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	payload, err := json.Marshal(orderRequest{
		TradingSymbol:    order.Symbol,
		Quantity:         order.Quantity,
		Validity:         "DAY",
		Exchange:         order.Exchange,
		Segment:          "CASH",
		Product:          "CNC",
		OrderType:        "MARKET",
		TransactionType:  strings.ToUpper(order.Side),
		OrderReferenceID: strings.ReplaceAll(uuid.NewString(), "-", "")[:20],
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/order/create", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build order request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-VERSION", "1.0")
	req.Header.Set("Authorization", "Bearer "+order.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("groww order request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read groww response: %w", err)
	}

	var decoded orderResponse

	err = json.Unmarshal(body, &decoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode groww response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || !strings.EqualFold(decoded.Status, "SUCCESS") {
		return "", fmt.Errorf("%w: %s %s", broker.ErrOrderRejected, decoded.Error.Code, decoded.Error.Message)
	}

	return decoded.Payload.OrderID, nil
}
