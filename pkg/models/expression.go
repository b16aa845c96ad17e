package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

type Comparator string

const (
	ComparatorGreater      Comparator = ">"
	ComparatorGreaterEqual Comparator = ">="
	ComparatorLess         Comparator = "<"
	ComparatorLessEqual    Comparator = "<="
	ComparatorEqual        Comparator = "=="
	ComparatorNotEqual     Comparator = "!="
)

type OperandType string

const (
	OperandIndicator OperandType = "indicator"
	OperandValue     OperandType = "value"
)

const (
	conditionTypeGroup  = "group"
	conditionTypeClause = "clause"
)

var (
	// Timeframes supported by the indicator engine.
	Timeframes = []string{"1m", "5m", "15m", "1h"}
	// Indicators supported by the indicator engine.
	Indicators = []string{"price", "volume", "ema", "sma", "rsi", "pct_change"}

	periodIndicators = []string{"ema", "sma", "rsi", "pct_change"}
)

// DefaultIndicatorPeriod applies to period-based indicators that omit params.period.
const DefaultIndicatorPeriod = 14

var ErrInvalidExpression = errors.New("invalid expression")

// Group folds its children with AND or OR.
type Group struct {
	Operator   LogicalOperator `json:"operator"`
	Conditions []Condition     `json:"conditions"`
}

// Condition is one child of a Group: either a nested Group or a Clause.
type Condition struct {
	Group  *Group
	Clause *Clause
}

type Clause struct {
	Left     Operand    `json:"left"`
	Operator Comparator `json:"operator"`
	Right    Operand    `json:"right"`
}

type Operand struct {
	Type      OperandType         `json:"type"`
	Indicator *IndicatorReference `json:"indicator,omitempty"`
	Value     *float64            `json:"value,omitempty"`
}

type IndicatorParams struct {
	Period int `json:"period,omitempty"`
}

// IndicatorReference identifies one computed series value: (market, symbol, timeframe, indicator, period).
type IndicatorReference struct {
	Symbol     string           `json:"symbol"`
	MarketType string           `json:"marketType"`
	Timeframe  string           `json:"timeframe"`
	Indicator  string           `json:"indicator"`
	Params     *IndicatorParams `json:"params,omitempty"`
}

// IndicatorValue is one entry of an indicator snapshot.
type IndicatorValue struct {
	Reference IndicatorReference `json:"reference"`
	Value     float64            `json:"value"`
}

// UnmarshalJSON accepts both a full group document ({"type":"group",...}) and a bare group.
func (g *Group) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type       string          `json:"type"`
		Operator   LogicalOperator `json:"operator"`
		Conditions []Condition     `json:"conditions"`
	}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	if raw.Type != "" && raw.Type != conditionTypeGroup {
		return fmt.Errorf("%w: expected group, got %q", ErrInvalidExpression, raw.Type)
	}

	g.Operator = LogicalOperator(strings.ToUpper(string(raw.Operator)))
	g.Conditions = raw.Conditions

	return nil
}

func (g Group) MarshalJSON() ([]byte, error) {
	conditions := g.Conditions
	if conditions == nil {
		conditions = []Condition{}
	}

	return json.Marshal(struct {
		Type       string          `json:"type"`
		Operator   LogicalOperator `json:"operator"`
		Conditions []Condition     `json:"conditions"`
	}{conditionTypeGroup, g.Operator, conditions})
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}

	err := json.Unmarshal(data, &head)
	if err != nil {
		return err
	}

	switch head.Type {
	case conditionTypeGroup:
		var group Group

		err = json.Unmarshal(data, &group)
		if err != nil {
			return err
		}

		c.Group = &group
	case conditionTypeClause:
		var clause Clause

		err = json.Unmarshal(data, &clause)
		if err != nil {
			return err
		}

		c.Clause = &clause
	default:
		return fmt.Errorf("%w: unknown condition type %q", ErrInvalidExpression, head.Type)
	}

	return nil
}

func (c Condition) MarshalJSON() ([]byte, error) {
	switch {
	case c.Group != nil:
		return json.Marshal(c.Group)
	case c.Clause != nil:
		return json.Marshal(struct {
			Type string `json:"type"`
			Clause
		}{conditionTypeClause, *c.Clause})
	default:
		return nil, fmt.Errorf("%w: empty condition", ErrInvalidExpression)
	}
}

// Period returns params.period, defaulting for period-based indicators and zero otherwise.
func (r IndicatorReference) Period() int {
	if !slices.Contains(periodIndicators, r.normalizedIndicator()) {
		return 0
	}

	if r.Params != nil && r.Params.Period > 0 {
		return r.Params.Period
	}

	return DefaultIndicatorPeriod
}

// Market is the parsed market type of the reference.
func (r IndicatorReference) Market() MarketType {
	return ParseMarketType(r.MarketType)
}

// Key is the snapshot lookup key "market:SYMBOL:timeframe:indicator:period".
func (r IndicatorReference) Key() string {
	return fmt.Sprintf("%s:%s:%s:%s:%d",
		r.Market(),
		strings.ToUpper(strings.TrimSpace(r.Symbol)),
		strings.ToLower(r.Timeframe),
		r.normalizedIndicator(),
		r.Period(),
	)
}

// Validate checks the reference against the supported timeframes and indicators.
func (r IndicatorReference) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("%w: indicator symbol is required", ErrInvalidExpression)
	}

	if !slices.Contains(Timeframes, strings.ToLower(r.Timeframe)) {
		return fmt.Errorf("%w: unsupported timeframe %q", ErrInvalidExpression, r.Timeframe)
	}

	if !slices.Contains(Indicators, r.normalizedIndicator()) {
		return fmt.Errorf("%w: unsupported indicator %q", ErrInvalidExpression, r.Indicator)
	}

	return nil
}

func (r IndicatorReference) normalizedIndicator() string {
	return strings.ToLower(strings.TrimSpace(r.Indicator))
}
