// Package indicator computes market indicator snapshots from candle series.
package indicator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/quantnest/executor/pkg/models"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCandleLimit     = 200
	defaultRefreshLimit    = 4
	candlesPerPeriodFactor = 3
	maxCandleLimit         = 1000
)

// Engine is the contract consumed by conditional trigger evaluation.
type Engine interface {
	RegisterReferences(refs []models.IndicatorReference)
	SetReferences(refs []models.IndicatorReference)
	RefreshSubscribedSymbols(ctx context.Context) error
	SnapshotForReferences(ctx context.Context, refs []models.IndicatorReference) ([]models.IndicatorValue, error)
}

type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// CandleSource fetches the most recent candles of a series, oldest first.
type CandleSource interface {
	Candles(ctx context.Context, market models.MarketType, symbol, timeframe string, limit int) ([]Candle, error)
}

type seriesKey struct {
	market    models.MarketType
	symbol    string
	timeframe string
}

func (k seriesKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.market, k.symbol, k.timeframe)
}

type series struct {
	maxPeriod int
	candles   []Candle
}

// CandleEngine keeps the subscribed series in memory and refreshes them in one batch.
type CandleEngine struct {
	logger       *slog.Logger
	source       CandleSource
	refreshLimit int

	mu     sync.RWMutex
	series map[seriesKey]*series
}

func NewCandleEngine(logger *slog.Logger, source CandleSource) *CandleEngine {
	return &CandleEngine{
		logger:       logger.With("module", "indicator"),
		source:       source,
		refreshLimit: defaultRefreshLimit,
		series:       make(map[seriesKey]*series),
	}
}

func keyOf(ref models.IndicatorReference) seriesKey {
	return seriesKey{
		market:    ref.Market(),
		symbol:    strings.ToUpper(strings.TrimSpace(ref.Symbol)),
		timeframe: strings.ToLower(ref.Timeframe),
	}
}

// RegisterReferences subscribes the series behind refs. Registering twice is a no-op.
func (e *CandleEngine) RegisterReferences(refs []models.IndicatorReference) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ref := range refs {
		key := keyOf(ref)

		s, ok := e.series[key]
		if !ok {
			s = &series{}
			e.series[key] = s
		}

		if period := ref.Period(); period > s.maxPeriod {
			s.maxPeriod = period
		}
	}
}

// SetReferences replaces the subscriptions with the series behind refs. Series no longer
// referenced are dropped and stop being fetched; retained series keep their candles.
func (e *CandleEngine) SetReferences(refs []models.IndicatorReference) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[seriesKey]*series, len(refs))

	for _, ref := range refs {
		key := keyOf(ref)

		s, ok := next[key]
		if !ok {
			s = &series{}
			if current, kept := e.series[key]; kept {
				s.candles = current.candles
			}

			next[key] = s
		}

		if period := ref.Period(); period > s.maxPeriod {
			s.maxPeriod = period
		}
	}

	for key := range e.series {
		if _, ok := next[key]; !ok {
			e.logger.Debug("Dropping unreferenced series", "series", key.String())
		}
	}

	e.series = next
}

// RefreshSubscribedSymbols fetches every subscribed series once. A series that fails to refresh
// is cleared so stale candles are never evaluated.
func (e *CandleEngine) RefreshSubscribedSymbols(ctx context.Context) error {
	e.mu.RLock()
	keys := make([]seriesKey, 0, len(e.series))
	limits := make(map[seriesKey]int, len(e.series))

	for key, s := range e.series {
		keys = append(keys, key)
		limits[key] = candleLimit(s.maxPeriod)
	}
	e.mu.RUnlock()

	var (
		errsMu sync.Mutex
		errs   []error
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.refreshLimit)

	for _, key := range keys {
		group.Go(func() error {
			candles, err := e.source.Candles(groupCtx, key.market, key.symbol, key.timeframe, limits[key])
			if err != nil {
				e.logger.WarnContext(groupCtx, "Failed to refresh series", "series", key.String(), "error", err)

				errsMu.Lock()
				errs = append(errs, fmt.Errorf("refresh %s: %w", key, err))
				errsMu.Unlock()

				candles = nil
			}

			e.mu.Lock()
			if s, ok := e.series[key]; ok {
				s.candles = candles
			}
			e.mu.Unlock()

			return nil
		})
	}

	_ = group.Wait()

	return errors.Join(errs...)
}

// SnapshotForReferences computes the value of every ref that has enough data. Refs without data are omitted.
func (e *CandleEngine) SnapshotForReferences(_ context.Context, refs []models.IndicatorReference) ([]models.IndicatorValue, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	values := make([]models.IndicatorValue, 0, len(refs))

	for _, ref := range refs {
		s, ok := e.series[keyOf(ref)]
		if !ok || len(s.candles) == 0 {
			continue
		}

		value, ok := Compute(ref, s.candles)
		if !ok {
			continue
		}

		values = append(values, models.IndicatorValue{Reference: ref, Value: value})
	}

	return values, nil
}

// Subscribed returns the number of subscribed series.
func (e *CandleEngine) Subscribed() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.series)
}

func candleLimit(period int) int {
	limit := max(defaultCandleLimit, period*candlesPerPeriodFactor)

	return min(limit, maxCandleLimit)
}
