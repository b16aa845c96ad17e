package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidMetadata = errors.New("invalid node metadata")

var validate = validator.New(validator.WithRequiredStructEnabled())

// TimerMetadata configures a timer trigger; Time is the interval in seconds.
type TimerMetadata struct {
	Time int `json:"time" validate:"gt=0"`
}

type PriceTriggerMetadata struct {
	Asset       string   `json:"asset,omitempty"`
	MarketType  string   `json:"marketType,omitempty"`
	TargetPrice *float64 `json:"targetPrice"          validate:"required"`
	Condition   string   `json:"condition"            validate:"required,oneof=above below"`
}

// ConditionalMetadata configures a conditional node. Expression is the preferred form;
// Asset/TargetPrice/Condition is the single-price comparison used by older graphs.
type ConditionalMetadata struct {
	MarketType        string         `json:"marketType,omitempty"`
	Asset             string         `json:"asset,omitempty"`
	TargetPrice       *float64       `json:"targetPrice,omitempty"`
	Condition         PriceCondition `json:"condition,omitempty"         validate:"omitempty,oneof=above below"`
	TimeWindowMinutes *float64       `json:"timeWindowMinutes,omitempty" validate:"omitempty,gte=0"`
	StartTime         *time.Time     `json:"startTime,omitempty"`
	Expression        *Group         `json:"expression,omitempty"`
}

// PriceCondition is "above" or "below". Conditional nodes reached through a legacy branch may carry a
// boolean condition instead; non-string values decode as empty.
type PriceCondition string

func (c *PriceCondition) UnmarshalJSON(data []byte) error {
	var value string

	err := json.Unmarshal(data, &value)
	if err != nil {
		*c = ""

		return nil
	}

	*c = PriceCondition(value)

	return nil
}

type TradeMetadata struct {
	Type         string  `json:"type"                   validate:"required,oneof=buy sell"`
	Qty          float64 `json:"qty"                    validate:"gt=0"`
	Symbol       string  `json:"symbol"                 validate:"required"`
	Exchange     string  `json:"exchange,omitempty"`
	APIKey       string  `json:"apiKey,omitempty"`
	AccessToken  string  `json:"accessToken,omitempty"`
	AccountIndex int     `json:"accountIndex,omitempty"`
	APIKeyIndex  int     `json:"apiKeyIndex,omitempty"`
}

type NotificationMetadata struct {
	RecipientName  string   `json:"recipientName,omitempty"`
	RecipientEmail string   `json:"recipientEmail,omitempty" validate:"omitempty,email"`
	WebhookURL     string   `json:"webhookUrl,omitempty"     validate:"omitempty,url"`
	Symbol         string   `json:"symbol,omitempty"`
	Exchange       string   `json:"exchange,omitempty"`
	TargetPrice    *float64 `json:"targetPrice,omitempty"`
}

type ReportMetadata struct {
	NotionAPIKey string `json:"notionApiKey" validate:"required"`
	ParentPageID string `json:"parentPageId,omitempty"`
}

// DecodeMetadata converts a node's free-form metadata into T and validates it.
func DecodeMetadata[T any](metadata map[string]any) (*T, error) {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}

	var out T

	err = json.Unmarshal(raw, &out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}

	err = validate.Struct(&out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}

	return &out, nil
}

// ExchangeOrDefault returns the configured exchange or NSE.
func (m *TradeMetadata) ExchangeOrDefault() string {
	if m.Exchange == "" {
		return "NSE"
	}

	return m.Exchange
}
